package services

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-filings/internal/logger"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEDGARUserAgent   = "edgar.user_agent"
	keyEDGARRate        = "edgar.requests_per_second"
	keyEDGARMaxRetries  = "edgar.max_retries"
	keyEDGARRetryDelay  = "edgar.retry_delay"
	keyEDGARTimeout     = "edgar.timeout"
	keyIngestWorkers    = "ingest.workers"
	keyIngestBatchSize  = "ingest.embed_batch_size"
	keyIngestRetention  = "ingest.job_retention"
	keyChunkTarget      = "chunker.target_size"
	keyChunkMax         = "chunker.max_size"
	keyChunkOverlap     = "chunker.overlap_sentences"
	keyEmbedProvider    = "embedding.provider"
	keyEmbedModel       = "embedding.model"
	keyEmbedBaseURL     = "embedding.base_url"
	keyEmbedAPIKey      = "embedding.api_key"
	keyEmbedDims        = "embedding.dimensions"
	keyLLMProvider      = "llm.provider"
	keyLLMModel         = "llm.model"
	keyLLMBaseURL       = "llm.base_url"
	keyLLMAPIKey        = "llm.api_key"
	keyRetrievalTopK    = "retrieval.top_k"
	keyRetrievalThresh  = "retrieval.threshold"
	keyRetrievalRelated = "retrieval.related_questions"
	keyRetrievalExcerpt = "retrieval.excerpt_length"
	keyStatusBackend    = "status.backend"
	keyStatusRedisURL   = "status.redis_url"
	keyServerAddr       = "server.addr"
)

// Environment overrides, applied on top of the config file.
//
//nolint:gosec // G101: These are environment variable names.
const (
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvUserAgent    = "SEC_USER_AGENT"
	EnvRedisURL     = "REDIS_URL"
	EnvTopK         = "SERCHA_FILINGS_TOP_K"
	EnvThreshold    = "SERCHA_FILINGS_THRESHOLD"
)

const defaultOllamaURL = "http://localhost:11434"

// settingKind is the value type of a settable key.
type settingKind int

const (
	kindString settingKind = iota
	kindInt
	kindFloat
	kindDuration
	kindProvider
	kindBackend
)

// settableKeys lists the keys accepted by Set.
var settableKeys = map[string]settingKind{
	keyEDGARUserAgent:   kindString,
	keyEDGARRate:        kindFloat,
	keyEDGARMaxRetries:  kindInt,
	keyEDGARRetryDelay:  kindDuration,
	keyEDGARTimeout:     kindDuration,
	keyIngestWorkers:    kindInt,
	keyIngestBatchSize:  kindInt,
	keyIngestRetention:  kindDuration,
	keyChunkTarget:      kindInt,
	keyChunkMax:         kindInt,
	keyChunkOverlap:     kindInt,
	keyEmbedProvider:    kindProvider,
	keyEmbedModel:       kindString,
	keyEmbedBaseURL:     kindString,
	keyEmbedAPIKey:      kindString,
	keyEmbedDims:        kindInt,
	keyLLMProvider:      kindProvider,
	keyLLMModel:         kindString,
	keyLLMBaseURL:       kindString,
	keyLLMAPIKey:        kindString,
	keyRetrievalTopK:    kindInt,
	keyRetrievalThresh:  kindFloat,
	keyRetrievalRelated: kindInt,
	keyRetrievalExcerpt: kindInt,
	keyStatusBackend:    kindBackend,
	keyStatusRedisURL:   kindString,
	keyServerAddr:       kindString,
}

// SettableKeys returns the keys accepted by Set, sorted.
func SettableKeys() []string {
	keys := make([]string, 0, len(settableKeys))
	for k := range settableKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
// Environment variables are read through os.Getenv.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// SetEnvLookup replaces the environment lookup, for tests.
func (s *SettingsService) SetEnvLookup(getenv func(string) string) {
	s.getenv = getenv
}

// Get retrieves current application settings: defaults, then the config
// store, then environment overrides.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		EDGAR: domain.EDGARSettings{
			UserAgent:         s.getString(keyEDGARUserAgent, d.EDGAR.UserAgent),
			RequestsPerSecond: s.getFloat(keyEDGARRate, d.EDGAR.RequestsPerSecond),
			MaxRetries:        s.getInt(keyEDGARMaxRetries, d.EDGAR.MaxRetries),
			RetryDelay:        s.getDuration(keyEDGARRetryDelay, d.EDGAR.RetryDelay),
			Timeout:           s.getDuration(keyEDGARTimeout, d.EDGAR.Timeout),
		},
		Ingest: domain.IngestSettings{
			Workers:        s.getInt(keyIngestWorkers, d.Ingest.Workers),
			EmbedBatchSize: s.getInt(keyIngestBatchSize, d.Ingest.EmbedBatchSize),
			JobRetention:   s.getDuration(keyIngestRetention, d.Ingest.JobRetention),
		},
		Chunker: domain.ChunkerSettings{
			TargetSize:       s.getInt(keyChunkTarget, d.Chunker.TargetSize),
			MaxSize:          s.getInt(keyChunkMax, d.Chunker.MaxSize),
			OverlapSentences: s.getIntAllowZero(keyChunkOverlap, d.Chunker.OverlapSentences),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:   s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			Model:      configString(s.configStore, keyEmbedModel),
			BaseURL:    configString(s.configStore, keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:     configString(s.configStore, keyEmbedAPIKey),
			Dimensions: configInt(s.configStore, keyEmbedDims),
		},
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider, d.LLM.Provider),
			Model:    configString(s.configStore, keyLLMModel),
			BaseURL:  configString(s.configStore, keyLLMBaseURL),
			APIKey:   configString(s.configStore, keyLLMAPIKey),
		},
		Retrieval: domain.RetrievalSettings{
			TopK:             s.getInt(keyRetrievalTopK, d.Retrieval.TopK),
			Threshold:        s.getFloat(keyRetrievalThresh, d.Retrieval.Threshold),
			RelatedQuestions: s.getIntAllowZero(keyRetrievalRelated, d.Retrieval.RelatedQuestions),
			ExcerptLength:    s.getInt(keyRetrievalExcerpt, d.Retrieval.ExcerptLength),
		},
		Status: domain.StatusSettings{
			Backend:  s.getBackend(d.Status.Backend),
			RedisURL: configString(s.configStore, keyStatusRedisURL),
		},
		Server: domain.ServerSettings{
			Addr: s.getString(keyServerAddr, d.Server.Addr),
		},
	}

	s.applyEnv(settings)
	fillModelDefaults(settings)
	return settings, nil
}

// applyEnv overlays environment variables.
func (s *SettingsService) applyEnv(settings *domain.AppSettings) {
	if v := s.getenv(EnvUserAgent); v != "" {
		settings.EDGAR.UserAgent = v
	}
	if v := s.getenv(EnvRedisURL); v != "" {
		settings.Status.RedisURL = v
	}
	if v := s.getenv(EnvTopK); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			settings.Retrieval.TopK = n
		}
	}
	if v := s.getenv(EnvThreshold); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			settings.Retrieval.Threshold = f
		}
	}
	if key := s.envKeyFor(settings.Embedding.Provider); key != "" && settings.Embedding.APIKey == "" {
		settings.Embedding.APIKey = key
	}
	if key := s.envKeyFor(settings.LLM.Provider); key != "" && settings.LLM.APIKey == "" {
		settings.LLM.APIKey = key
	}
}

func (s *SettingsService) envKeyFor(provider domain.AIProvider) string {
	switch provider {
	case domain.AIProviderOpenAI:
		return s.getenv(EnvOpenAIKey)
	case domain.AIProviderAnthropic:
		return s.getenv(EnvAnthropicKey)
	default:
		return ""
	}
}

// fillModelDefaults sets models, base URLs and dimensions left empty.
func fillModelDefaults(settings *domain.AppSettings) {
	if settings.Embedding.Model == "" {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[settings.Embedding.Provider]
	}
	if settings.Embedding.Provider == domain.AIProviderOllama && settings.Embedding.BaseURL == "" {
		settings.Embedding.BaseURL = defaultOllamaURL
	}
	if settings.Embedding.Dimensions == 0 {
		if d, ok := domain.EmbeddingDimensions()[settings.Embedding.Model]; ok {
			settings.Embedding.Dimensions = d
		} else {
			settings.Embedding.Dimensions = domain.DefaultAppSettings().Embedding.Dimensions
		}
	}
	if settings.LLM.Model == "" {
		settings.LLM.Model = domain.DefaultLLMModels()[settings.LLM.Provider]
	}
	if settings.LLM.Provider == domain.AIProviderOllama && settings.LLM.BaseURL == "" {
		settings.LLM.BaseURL = defaultOllamaURL
	}
}

// Save persists application settings. API keys are only written when set
// and not taken from the environment.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEDGARUserAgent, settings.EDGAR.UserAgent},
		{keyEDGARRate, settings.EDGAR.RequestsPerSecond},
		{keyEDGARMaxRetries, settings.EDGAR.MaxRetries},
		{keyEDGARRetryDelay, settings.EDGAR.RetryDelay.String()},
		{keyEDGARTimeout, settings.EDGAR.Timeout.String()},
		{keyIngestWorkers, settings.Ingest.Workers},
		{keyIngestBatchSize, settings.Ingest.EmbedBatchSize},
		{keyIngestRetention, settings.Ingest.JobRetention.String()},
		{keyChunkTarget, settings.Chunker.TargetSize},
		{keyChunkMax, settings.Chunker.MaxSize},
		{keyChunkOverlap, settings.Chunker.OverlapSentences},
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedDims, settings.Embedding.Dimensions},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyRetrievalTopK, settings.Retrieval.TopK},
		{keyRetrievalThresh, settings.Retrieval.Threshold},
		{keyRetrievalRelated, settings.Retrieval.RelatedQuestions},
		{keyRetrievalExcerpt, settings.Retrieval.ExcerptLength},
		{keyStatusBackend, string(settings.Status.Backend)},
		{keyStatusRedisURL, settings.Status.RedisURL},
		{keyServerAddr, settings.Server.Addr},
	}
	if settings.Embedding.APIKey != "" && settings.Embedding.APIKey != s.envKeyFor(settings.Embedding.Provider) {
		values = append(values, struct {
			key   string
			value any
		}{keyEmbedAPIKey, settings.Embedding.APIKey})
	}
	if settings.LLM.APIKey != "" && settings.LLM.APIKey != s.envKeyFor(settings.LLM.Provider) {
		values = append(values, struct {
			key   string
			value any
		}{keyLLMAPIKey, settings.LLM.APIKey})
	}

	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}

// Set parses and stores one dotted key.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settableKeys[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	value = strings.TrimSpace(value)

	var parsed any
	switch kind {
	case kindString:
		parsed = value
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidInput, key)
		}
		if key == keyRetrievalExcerpt && n > 0 && n < MinExcerptLength {
			return fmt.Errorf("%w: %s must be at least %d", domain.ErrInvalidInput, key, MinExcerptLength)
		}
		parsed = n
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number", domain.ErrInvalidInput, key)
		}
		if key == keyRetrievalThresh && f > 1 {
			return fmt.Errorf("%w: %s must be between 0 and 1", domain.ErrInvalidInput, key)
		}
		parsed = f
	case kindDuration:
		d, err := time.ParseDuration(value)
		if err != nil || d < 0 {
			return fmt.Errorf("%w: %s must be a duration such as 30s or 24h", domain.ErrInvalidInput, key)
		}
		parsed = d.String()
	case kindProvider:
		p := domain.AIProvider(value)
		if !p.IsValid() {
			return fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, value)
		}
		parsed = value
	case kindBackend:
		b := domain.StatusBackend(value)
		if !b.IsValid() {
			return fmt.Errorf("%w: unknown status backend %q", domain.ErrInvalidInput, value)
		}
		parsed = value
	}

	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}
	if !containsProvider(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" && s.envKeyFor(provider) == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider
	settings.Embedding.Model = model
	if model == "" {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[provider]
	}
	if provider == domain.AIProviderOllama {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = defaultOllamaURL
		}
	} else {
		settings.Embedding.BaseURL = ""
	}
	settings.Embedding.APIKey = apiKey

	// vector size follows the model
	settings.Embedding.Dimensions = domain.DefaultAppSettings().Embedding.Dimensions
	if d, ok := domain.EmbeddingDimensions()[settings.Embedding.Model]; ok {
		settings.Embedding.Dimensions = d
	}

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}
	if !containsProvider(domain.AllLLMProviders(), provider) {
		return fmt.Errorf("provider %s does not support text generation", provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" && s.envKeyFor(provider) == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider
	settings.LLM.Model = model
	if model == "" {
		settings.LLM.Model = domain.DefaultLLMModels()[provider]
	}
	if provider == domain.AIProviderOllama {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = defaultOllamaURL
		}
	} else {
		settings.LLM.BaseURL = ""
	}
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks that the current settings can run the pipeline.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if strings.TrimSpace(settings.EDGAR.UserAgent) == "" {
		return fmt.Errorf("%w: edgar.user_agent is required by the SEC (set it or %s)", domain.ErrInvalidInput, EnvUserAgent)
	}
	if settings.EDGAR.RequestsPerSecond <= 0 || settings.EDGAR.RequestsPerSecond > 10 {
		return fmt.Errorf("%w: edgar.requests_per_second must be in (0, 10]", domain.ErrInvalidInput)
	}
	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("%w: embedding provider %q is not configured", domain.ErrInvalidInput, settings.Embedding.Provider)
	}
	if settings.Chunker.TargetSize <= 0 || settings.Chunker.MaxSize < settings.Chunker.TargetSize {
		return fmt.Errorf("%w: chunker.max_size must be at least chunker.target_size", domain.ErrInvalidInput)
	}
	if settings.Retrieval.Threshold < 0 || settings.Retrieval.Threshold > 1 {
		return fmt.Errorf("%w: retrieval.threshold must be between 0 and 1", domain.ErrInvalidInput)
	}
	if settings.Retrieval.ExcerptLength > 0 && settings.Retrieval.ExcerptLength < MinExcerptLength {
		return fmt.Errorf("%w: retrieval.excerpt_length must be at least %d", domain.ErrInvalidInput, MinExcerptLength)
	}
	if !settings.Status.Backend.IsValid() {
		return fmt.Errorf("%w: unknown status backend %q", domain.ErrInvalidInput, settings.Status.Backend)
	}
	if settings.Status.Backend == domain.StatusBackendRedis && settings.Status.RedisURL == "" {
		return fmt.Errorf("%w: status.redis_url is required for the redis backend", domain.ErrInvalidInput)
	}
	for _, key := range s.UnknownKeys() {
		logger.Warn("Ignoring unknown setting %q in %s", key, s.configStore.Path())
	}
	return nil
}

// UnknownKeys lists stored keys that Get never reads, usually typos made
// while editing the config file by hand.
func (s *SettingsService) UnknownKeys() []string {
	var unknown []string
	for _, key := range s.configStore.Keys() {
		if _, ok := settableKeys[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	return unknown
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := configString(s.configStore, key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := configInt(s.configStore, key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

// getIntAllowZero treats an explicit zero as a value rather than unset.
func (s *SettingsService) getIntAllowZero(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return configInt(s.configStore, key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return configFloat(s.configStore, key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	d := configDuration(s.configStore, key)
	if d <= 0 {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := configString(s.configStore, key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.StatusBackend) domain.StatusBackend {
	b := domain.StatusBackend(configString(s.configStore, keyStatusBackend))
	if !b.IsValid() {
		return defaultVal
	}
	return b
}

func containsProvider(list []domain.AIProvider, p domain.AIProvider) bool {
	for _, q := range list {
		if q == p {
			return true
		}
	}
	return false
}
