package driven

import "github.com/custodia-labs/sercha-filings/internal/core/domain"

// AIConfigValidator is consulted before provider settings are saved.
// A nil error means the provider answered, or no provider is selected.
type AIConfigValidator interface {
	ValidateEmbedding(config *domain.EmbeddingSettings) error
	ValidateLLM(config *domain.LLMSettings) error
}
