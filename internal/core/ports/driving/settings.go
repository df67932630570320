package driving

import "github.com/custodia-labs/sercha-filings/internal/core/domain"

// SettingsService reads and edits the persisted configuration. Get merges
// defaults, the config file and environment overrides in that order.
type SettingsService interface {
	Get() (*domain.AppSettings, error)
	GetDefaults() domain.AppSettings

	// Save writes settings back to the store. API keys that came from the
	// environment stay out of the file.
	Save(settings *domain.AppSettings) error

	// Set parses value for one dotted key such as "retrieval.top_k".
	// Unknown keys and unparsable values fail with domain.ErrInvalidInput.
	Set(key, value string) error

	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error
	SetLLMProvider(provider domain.AIProvider, model, apiKey string) error

	// Validate checks the settings offline. The two Validate*Config
	// methods contact the configured provider.
	Validate() error
	ValidateEmbeddingConfig() error
	ValidateLLMConfig() error
}
