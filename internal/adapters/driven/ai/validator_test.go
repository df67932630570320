package ai

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
)

func TestConfigValidator_ValidateEmbedding(t *testing.T) {
	v := NewConfigValidator()
	up := ollamaServer(t, http.StatusOK)
	down := ollamaServer(t, http.StatusServiceUnavailable)

	assert.NoError(t, v.ValidateEmbedding(nil))
	assert.NoError(t, v.ValidateEmbedding(&domain.EmbeddingSettings{Model: "test-model"}))
	assert.NoError(t, v.ValidateEmbedding(&domain.EmbeddingSettings{Provider: domain.AIProviderHashing}))
	assert.NoError(t, v.ValidateEmbedding(&domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: up.URL}))

	err := v.ValidateEmbedding(&domain.EmbeddingSettings{Provider: domain.AIProviderAnthropic, APIKey: "k"})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.ErrorIs(t, err, ErrNoEmbeddingAPI)

	err = v.ValidateEmbedding(&domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: down.URL})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.ErrorContains(t, err, "ollama unreachable")
}

func TestConfigValidator_ValidateLLM(t *testing.T) {
	v := NewConfigValidator()
	up := ollamaServer(t, http.StatusOK)
	down := ollamaServer(t, http.StatusInternalServerError)

	assert.NoError(t, v.ValidateLLM(nil))
	assert.NoError(t, v.ValidateLLM(&domain.LLMSettings{}))
	// missing key means not configured, so there is nothing to ping
	assert.NoError(t, v.ValidateLLM(&domain.LLMSettings{Provider: domain.AIProviderOpenAI}))
	assert.NoError(t, v.ValidateLLM(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: up.URL}))

	err := v.ValidateLLM(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: down.URL})
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}
