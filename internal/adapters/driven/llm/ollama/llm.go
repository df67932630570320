// Package ollama generates answers with a local Ollama server.
package ollama

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-filings/internal/adapters/driven/aiclient"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultLLMModel   = "llama3.2"
	DefaultLLMTimeout = 120 * time.Second
)

// LLMConfig configures LLMService. Every field is optional.
type LLMConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration

	MaxRetries int
	RetryDelay time.Duration
}

// LLMService calls POST /api/chat with streaming disabled.
type LLMService struct {
	api   *aiclient.Client
	model string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// modelOptions are Ollama's sampling parameters. Omitted fields keep the
// model's Modelfile defaults.
type modelOptions struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *modelOptions `json:"options,omitempty"`
}

type chatResponse struct {
	Message    chatMessage `json:"message"`
	Done       bool        `json:"done"`
	DoneReason string      `json:"done_reason"`
}

// NewLLMService creates the service. It does not contact the server.
func NewLLMService(cfg LLMConfig) *LLMService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}
	return &LLMService{
		api: aiclient.New(aiclient.Config{
			Provider:   "ollama",
			BaseURL:    cfg.BaseURL,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
		}),
		model: cfg.Model,
	}
}

// Generate sends opts.System as a system message followed by the prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	req := chatRequest{Model: s.model}
	if opts.System != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: opts.System})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: prompt})

	o := modelOptions{NumPredict: opts.MaxTokens, Temperature: opts.Temperature, Stop: opts.StopWords}
	if o.NumPredict > 0 || o.Temperature > 0 || len(o.Stop) > 0 {
		req.Options = &o
	}

	var resp chatResponse
	if err := s.api.PostJSON(ctx, "/api/chat", req, &resp); err != nil {
		return "", err
	}
	answer := strings.TrimSpace(resp.Message.Content)
	if answer == "" {
		return "", errors.New("ollama: model returned an empty message")
	}
	return answer, nil
}

func (s *LLMService) ModelName() string { return s.model }

// Ping lists local models.
func (s *LLMService) Ping(ctx context.Context) error {
	return s.api.Check(ctx, "/api/tags")
}

func (s *LLMService) Close() error { return nil }
