package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderHashing is the offline feature-hashing embedder.
	AIProviderHashing AIProvider = "hashing"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderHashing:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderHashing
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderHashing:
		return "Feature hashing (offline)"
	default:
		return unknownDescription
	}
}

// EDGARSettings configures the filing archive client.
type EDGARSettings struct {
	// UserAgent is sent with every request. The archive rejects anonymous clients.
	UserAgent string

	// RequestsPerSecond is the shared request budget.
	RequestsPerSecond float64

	// MaxRetries bounds retries on transient failures.
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff.
	RetryDelay time.Duration

	// Timeout is the per-request timeout.
	Timeout time.Duration
}

// IngestSettings configures the ingestion pipeline.
type IngestSettings struct {
	// Workers bounds per-job document concurrency.
	Workers int

	// EmbedBatchSize bounds chunks per embedding call.
	EmbedBatchSize int

	// JobRetention is how long terminal jobs are kept before pruning.
	JobRetention time.Duration
}

// ChunkerSettings configures the sentence chunker.
type ChunkerSettings struct {
	// TargetSize is the target chunk length in characters.
	TargetSize int

	// MaxSize is the hard limit, matching the embedding input limit.
	MaxSize int

	// OverlapSentences is the number of trailing sentences carried forward.
	OverlapSentences int
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions is the vector size.
	Dimensions int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() || l.Provider == AIProviderHashing {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// RetrievalSettings tunes the synthesis engine.
type RetrievalSettings struct {
	// TopK is the maximum number of context chunks.
	TopK int

	// Threshold is the minimum similarity for a chunk to be used.
	Threshold float64

	// RelatedQuestions is the number of follow-ups to suggest. Zero disables them.
	RelatedQuestions int

	// ExcerptLength bounds citation excerpts in characters.
	ExcerptLength int
}

// StatusBackend selects where job snapshots are kept.
type StatusBackend string

// Status backends.
const (
	StatusBackendMemory StatusBackend = "memory"
	StatusBackendSQLite StatusBackend = "sqlite"
	StatusBackendRedis  StatusBackend = "redis"
)

// IsValid returns true if the backend is recognised.
func (b StatusBackend) IsValid() bool {
	switch b {
	case StatusBackendMemory, StatusBackendSQLite, StatusBackendRedis:
		return true
	default:
		return false
	}
}

// StatusSettings configures the job store.
type StatusSettings struct {
	// Backend selects the job store.
	Backend StatusBackend

	// RedisURL is used by the redis backend.
	RedisURL string
}

// ServerSettings configures the HTTP API.
type ServerSettings struct {
	// Addr is the listen address.
	Addr string
}

// AppSettings holds all application settings.
type AppSettings struct {
	EDGAR     EDGARSettings
	Ingest    IngestSettings
	Chunker   ChunkerSettings
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Retrieval RetrievalSettings
	Status    StatusSettings
	Server    ServerSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// The offline hashing embedder is the default so the pipeline runs without keys;
// the LLM is left unconfigured until the user sets one up.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		EDGAR: EDGARSettings{
			RequestsPerSecond: 9,
			MaxRetries:        3,
			RetryDelay:        time.Second,
			Timeout:           30 * time.Second,
		},
		Ingest: IngestSettings{
			Workers:        3,
			EmbedBatchSize: 32,
			JobRetention:   24 * time.Hour,
		},
		Chunker: ChunkerSettings{
			TargetSize:       1000,
			MaxSize:          4000,
			OverlapSentences: 2,
		},
		Embedding: EmbeddingSettings{
			Provider:   AIProviderHashing,
			Dimensions: 512,
		},
		LLM: LLMSettings{},
		Retrieval: RetrievalSettings{
			TopK:             8,
			Threshold:        0.7,
			RelatedQuestions: 3,
			ExcerptLength:    300,
		},
		Status: StatusSettings{
			Backend: StatusBackendSQLite,
		},
		Server: ServerSettings{
			Addr: ":8080",
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderHashing,
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:  "nomic-embed-text",
		AIProviderOpenAI:  "text-embedding-3-small",
		AIProviderHashing: "hashing-v1",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
