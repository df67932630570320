// Package openai embeds filing chunks and questions with the OpenAI
// embeddings endpoint or any API that speaks the same protocol.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-filings/internal/adapters/driven/aiclient"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "text-embedding-3-small"
	DefaultTimeout = 60 * time.Second

	// DefaultMaxInputChars keeps inputs under the 8191 token model limit
	// for typical filing prose.
	DefaultMaxInputChars = 24000

	fallbackDimensions = 1536
)

// nativeDimensions lists the output size of known models. Only the v3
// models accept a "dimensions" parameter to shorten it.
var nativeDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config configures EmbeddingService. APIKey is required.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Dimensions int

	// MaxInputChars clips each input before it is sent. Zero means
	// DefaultMaxInputChars, negative disables clipping.
	MaxInputChars int

	MaxRetries int
	RetryDelay time.Duration
}

// EmbeddingService calls POST /embeddings.
type EmbeddingService struct {
	api        *aiclient.Client
	model      string
	dimensions int
	maxChars   int
	shortens   bool
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// NewEmbeddingService creates the service. It does not contact the API.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	maxChars := cfg.MaxInputChars
	if maxChars == 0 {
		maxChars = DefaultMaxInputChars
	}

	dims := cfg.Dimensions
	if dims == 0 {
		dims = nativeDimensions[model]
	}
	if dims == 0 {
		dims = fallbackDimensions
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.APIKey)

	return &EmbeddingService{
		api: aiclient.New(aiclient.Config{
			Provider:   "openai",
			BaseURL:    baseURL,
			Timeout:    timeout,
			Header:     header,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
		}),
		model:      model,
		dimensions: dims,
		maxChars:   maxChars,
		shortens:   strings.HasPrefix(model, "text-embedding-3-"),
	}, nil
}

// Embed embeds a single text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request. The response may list vectors in
// any order, so they are placed by their index field.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := embeddingRequest{Model: s.model, Input: make([]string, len(texts))}
	for i, t := range texts {
		req.Input[i] = aiclient.Clip(t, s.maxChars)
	}
	if s.shortens {
		req.Dimensions = s.dimensions
	}

	var resp embeddingResponse
	if err := s.api.PostJSON(ctx, "/embeddings", req, &resp); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai: embedding index %d out of range for %d inputs", d.Index, len(out))
		}
		out[d.Index] = d.Embedding
	}
	for i := range out {
		if out[i] == nil {
			return nil, fmt.Errorf("openai: missing embedding for input %d", i)
		}
	}
	return out, nil
}

func (s *EmbeddingService) Dimensions() int   { return s.dimensions }
func (s *EmbeddingService) ModelName() string { return s.model }

// Ping lists models, which checks the key without spending tokens.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.api.Check(ctx, "/models")
}

func (s *EmbeddingService) Close() error { return nil }
