// Package aiclient is the JSON-over-HTTP transport shared by the embedding
// and LLM adapters.
//
// Network errors, 429 and 5xx responses are retried with exponential backoff
// up to a bounded number of attempts. Errors that survive the retries are
// returned as *APIError, which unwraps to domain.ErrRateLimited for 429 and
// to ErrUnauthorized for rejected credentials.
package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/custodia-labs/sercha-filings/internal/logger"
)

// Retry defaults.
const (
	DefaultMaxRetries    = 2
	DefaultRetryDelay    = 500 * time.Millisecond
	DefaultMaxRetryDelay = 10 * time.Second
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 32 << 20

// Config configures a Client.
type Config struct {
	// Provider names the remote service in errors and logs.
	Provider string

	// BaseURL is prefixed to every request path. A trailing slash is trimmed.
	BaseURL string

	// Timeout bounds each attempt. Zero means no client timeout.
	Timeout time.Duration

	// Header is sent with every request, typically for credentials.
	Header http.Header

	// MaxRetries is the number of retries after the first attempt.
	// Zero means DefaultMaxRetries; negative disables retries.
	MaxRetries int

	// RetryDelay is the first backoff delay, doubled per retry.
	// Zero means DefaultRetryDelay.
	RetryDelay time.Duration

	// HTTPClient overrides the underlying client.
	HTTPClient *http.Client
}

// Client sends JSON requests to one provider.
type Client struct {
	provider string
	baseURL  string
	header   http.Header
	http     *http.Client
	retries  int
	delay    time.Duration
	log      *zap.Logger
}

// New creates a client from cfg.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	retries := cfg.MaxRetries
	switch {
	case retries == 0:
		retries = DefaultMaxRetries
	case retries < 0:
		retries = 0
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	return &Client{
		provider: cfg.Provider,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		header:   cfg.Header.Clone(),
		http:     hc,
		retries:  retries,
		delay:    delay,
		log:      logger.Named("ai").With(zap.String("provider", cfg.Provider)),
	}
}

// Provider returns the provider name.
func (c *Client) Provider() string {
	return c.provider
}

// BaseURL returns the normalised base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PostJSON sends in as a JSON body to path and decodes a 2xx response into out.
// out may be nil when the response body is not needed.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", c.provider, err)
	}
	return c.do(ctx, http.MethodPost, path, body, out, c.retries)
}

// GetJSON issues a GET to path and decodes a 2xx response into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out, c.retries)
}

// Check issues a single GET to path and reports whether it succeeded.
// It never retries, so connectivity checks fail fast.
func (c *Client) Check(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodGet, path, nil, nil, 0)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any, retries int) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		status, data, wait, err := c.once(ctx, method, path, body)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return fmt.Errorf("%s: %w", c.provider, ctx.Err())
			}
			lastErr = fmt.Errorf("%s: send request: %w", c.provider, err)
		case status >= 200 && status < 300:
			if out == nil || len(data) == 0 {
				return nil
			}
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("%s: decode response: %w", c.provider, err)
			}
			return nil
		default:
			apiErr := newAPIError(c.provider, status, data)
			if !apiErr.Temporary() {
				return apiErr
			}
			lastErr = apiErr
		}

		if attempt >= retries {
			return lastErr
		}
		d := backoff(c.delay, attempt)
		if wait > d {
			d = min(wait, DefaultMaxRetryDelay)
		}
		c.log.Debug("retrying request",
			zap.String("path", path), zap.Int("attempt", attempt+1),
			zap.Duration("delay", d), zap.Error(lastErr))
		if err := sleep(ctx, d); err != nil {
			return fmt.Errorf("%s: %w", c.provider, err)
		}
	}
}

// once performs one attempt. A transport or read failure is returned as err;
// any HTTP status is returned with its body.
func (c *Client) once(ctx context.Context, method, path string, body []byte) (int, []byte, time.Duration, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, 0, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, retryAfter(resp.Header.Get("Retry-After")), nil
}

func backoff(base time.Duration, attempt int) time.Duration {
	d := base << attempt
	if d <= 0 || d > DefaultMaxRetryDelay {
		return DefaultMaxRetryDelay
	}
	return d
}

func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
