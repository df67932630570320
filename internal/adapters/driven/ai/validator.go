package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
)

var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// DefaultPingTimeout bounds the connectivity check made when settings change.
const DefaultPingTimeout = 5 * time.Second

// ConfigValidator checks provider settings by building the adapter and
// pinging it. Settings that name no provider are accepted as is.
type ConfigValidator struct {
	timeout time.Duration
}

// NewConfigValidator creates a validator using DefaultPingTimeout.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{timeout: DefaultPingTimeout}
}

// ValidateEmbedding fails with ErrEmbeddingUnavailable when the provider
// cannot be built or reached.
func (v *ConfigValidator) ValidateEmbedding(s *domain.EmbeddingSettings) error {
	svc, err := CreateEmbeddingService(s)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()
	if err := v.ping(svc.Ping); err != nil {
		return fmt.Errorf("%w: %s unreachable: %w", domain.ErrEmbeddingUnavailable, s.Provider, err)
	}
	return nil
}

// ValidateLLM fails with ErrLLMUnavailable when the provider cannot be
// built or reached.
func (v *ConfigValidator) ValidateLLM(s *domain.LLMSettings) error {
	svc, err := CreateLLMService(s)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()
	if err := v.ping(svc.Ping); err != nil {
		return fmt.Errorf("%w: %s unreachable: %w", domain.ErrLLMUnavailable, s.Provider, err)
	}
	return nil
}

func (v *ConfigValidator) ping(fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()
	return fn(ctx)
}
