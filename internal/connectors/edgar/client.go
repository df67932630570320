package edgar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/logger"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRetries is the default number of retries for transient errors.
	MaxRetries = 3

	// RetryDelay is the default base delay between retries.
	RetryDelay = time.Second

	// DefaultArchiveURL hosts company_tickers.json and filing documents.
	DefaultArchiveURL = "https://www.sec.gov"

	// DefaultDataURL hosts the submissions index.
	DefaultDataURL = "https://data.sec.gov"

	// maxDocumentBytes bounds a single download.
	maxDocumentBytes = 64 << 20
)

// Config configures the archive client.
type Config struct {
	UserAgent         string
	RequestsPerSecond float64
	MaxRetries        int
	RetryDelay        time.Duration
	Timeout           time.Duration

	// ArchiveURL and DataURL are overridden in tests.
	ArchiveURL string
	DataURL    string
}

// ConfigFromSettings builds a client config from application settings.
func ConfigFromSettings(s domain.EDGARSettings) Config {
	return Config{
		UserAgent:         s.UserAgent,
		RequestsPerSecond: s.RequestsPerSecond,
		MaxRetries:        s.MaxRetries,
		RetryDelay:        s.RetryDelay,
		Timeout:           s.Timeout,
	}
}

func (c Config) withDefaults() Config {
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = RetryDelay
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ArchiveURL == "" {
		c.ArchiveURL = DefaultArchiveURL
	}
	if c.DataURL == "" {
		c.DataURL = DefaultDataURL
	}
	c.ArchiveURL = strings.TrimRight(c.ArchiveURL, "/")
	c.DataURL = strings.TrimRight(c.DataURL, "/")
	return c
}

// Response is a successful archive response.
type Response struct {
	Body        []byte
	ContentType string
	URL         string
}

// Client performs rate limited, retried GET requests against the archive.
// One Client should be shared by everything in the process.
type Client struct {
	cfg         Config
	http        *http.Client
	rateLimiter *RateLimiter
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
	maxBytes    int64
}

// NewClient creates an archive client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.UserAgent) == "" {
		return nil, ErrMissingUserAgent
	}
	cfg = cfg.withDefaults()
	return &Client{
		cfg:         cfg,
		http:        &http.Client{Timeout: cfg.Timeout},
		rateLimiter: NewRateLimiter(cfg.RequestsPerSecond),
		sleep:       sleepCtx,
		now:         time.Now,
		maxBytes:    maxDocumentBytes,
	}, nil
}

// RateLimiter returns the shared rate limiter.
func (c *Client) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

// ArchiveURL returns the base URL for documents.
func (c *Client) ArchiveURL() string {
	return c.cfg.ArchiveURL
}

// DataURL returns the base URL for the submissions index.
func (c *Client) DataURL() string {
	return c.cfg.DataURL
}

// Get fetches url, retrying network errors, 429 and 5xx responses with
// exponential backoff. A 429 waits at least as long as its Retry-After.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryDelay * time.Duration(1<<(attempt-1))
			var rl *RateLimitError
			if errors.As(lastErr, &rl) {
				if wait := rl.RetryAt.Sub(c.now()); wait > delay {
					delay = wait
				}
			}
			logger.Debug("edgar: retry %d/%d for %s in %s: %v", attempt, c.cfg.MaxRetries, url, delay, lastErr)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		resp, err := c.do(ctx, url)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !isRetryable(apiErr.StatusCode) {
			return nil, err
		}
		if errors.Is(err, ErrDocumentTooLarge) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("GET %s failed after %d attempts: %w", url, c.cfg.MaxRetries+1, lastErr)
}

// GetJSON fetches url and decodes the JSON body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, url string) (*Response, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json, text/html, */*")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := retryAfter(resp, c.now())
		retryAt := c.now().Add(wait)
		c.rateLimiter.PauseUntil(retryAt)
		return nil, &RateLimitError{RetryAt: retryAt}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if int64(len(body)) > c.maxBytes {
		return nil, fmt.Errorf("%w: %s is over %d bytes", ErrDocumentTooLarge, url, c.maxBytes)
	}
	return &Response{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		URL:         url,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
