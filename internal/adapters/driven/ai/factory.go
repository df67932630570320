// Package ai builds the embedding and LLM adapters selected in settings.
package ai

import (
	"errors"
	"fmt"

	hashingembed "github.com/custodia-labs/sercha-filings/internal/adapters/driven/embedding/hashing"
	ollamaembed "github.com/custodia-labs/sercha-filings/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/sercha-filings/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/sercha-filings/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/sercha-filings/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/sercha-filings/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
)

// ErrNoEmbeddingAPI is returned for providers that only offer text generation.
var ErrNoEmbeddingAPI = errors.New("provider has no embedding API, use hashing, ollama or openai")

// CreateEmbeddingService returns the embedder for settings, or nil when no
// provider is configured. It does not contact the provider.
func CreateEmbeddingService(s *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if s == nil {
		return nil, nil
	}
	if s.Provider == domain.AIProviderAnthropic {
		return nil, fmt.Errorf("anthropic: %w", ErrNoEmbeddingAPI)
	}
	if !s.IsConfigured() {
		return nil, nil
	}

	dims := s.Dimensions
	if dims == 0 {
		dims = domain.EmbeddingDimensions()[s.Model]
	}

	switch s.Provider {
	case domain.AIProviderHashing:
		return hashingembed.NewEmbeddingService(s.Dimensions), nil
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL: s.BaseURL, Model: s.Model, Dimensions: dims,
		}), nil
	case domain.AIProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey: s.APIKey, BaseURL: s.BaseURL, Model: s.Model, Dimensions: dims,
		})
	}
	return nil, fmt.Errorf("unsupported embedding provider: %s", s.Provider)
}

// CreateLLMService returns the generator for settings, or nil when no
// provider is configured. It does not contact the provider.
func CreateLLMService(s *domain.LLMSettings) (driven.LLMService, error) {
	if s == nil || !s.IsConfigured() {
		return nil, nil
	}
	switch s.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{BaseURL: s.BaseURL, Model: s.Model}), nil
	case domain.AIProviderOpenAI:
		return openaillm.NewLLMService(openaillm.LLMConfig{APIKey: s.APIKey, BaseURL: s.BaseURL, Model: s.Model})
	case domain.AIProviderAnthropic:
		return anthropicllm.NewLLMService(anthropicllm.Config{APIKey: s.APIKey, BaseURL: s.BaseURL, Model: s.Model})
	}
	return nil, fmt.Errorf("unsupported LLM provider: %s", s.Provider)
}
