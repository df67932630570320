// Package ollama embeds text with a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-filings/internal/adapters/driven/aiclient"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "nomic-embed-text"
	DefaultTimeout = 60 * time.Second

	// DefaultDimensions is the output size of nomic-embed-text.
	DefaultDimensions = 768

	// DefaultMaxInputChars fits the 2048 token context Ollama gives
	// embedding models unless num_ctx is raised.
	DefaultMaxInputChars = 8000
)

// Config configures EmbeddingService. Every field is optional.
type Config struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Dimensions int

	// MaxInputChars clips each input. Zero means DefaultMaxInputChars,
	// negative disables clipping.
	MaxInputChars int

	MaxRetries int
	RetryDelay time.Duration
}

// EmbeddingService calls POST /api/embed, which accepts a batch of inputs.
type EmbeddingService struct {
	api        *aiclient.Client
	model      string
	dimensions int
	maxChars   int
}

type embedRequest struct {
	Model    string   `json:"model"`
	Input    []string `json:"input"`
	Truncate bool     `json:"truncate"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewEmbeddingService creates the service. It does not contact the server.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	s := &EmbeddingService{
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		maxChars:   cfg.MaxInputChars,
	}
	if s.model == "" {
		s.model = DefaultModel
	}
	if s.dimensions == 0 {
		s.dimensions = DefaultDimensions
	}
	if s.maxChars == 0 {
		s.maxChars = DefaultMaxInputChars
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	s.api = aiclient.New(aiclient.Config{
		Provider:   "ollama",
		BaseURL:    baseURL,
		Timeout:    timeout,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	})
	return s
}

// Embed embeds a single text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds all texts in one call. Ollama returns vectors in input order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	req := embedRequest{Model: s.model, Input: make([]string, len(texts)), Truncate: true}
	for i, t := range texts {
		req.Input[i] = aiclient.Clip(t, s.maxChars)
	}

	var resp embedResponse
	if err := s.api.PostJSON(ctx, "/api/embed", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama: expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}
	return resp.Embeddings, nil
}

func (s *EmbeddingService) Dimensions() int   { return s.dimensions }
func (s *EmbeddingService) ModelName() string { return s.model }

// Ping lists local models.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.api.Check(ctx, "/api/tags")
}

func (s *EmbeddingService) Close() error { return nil }
