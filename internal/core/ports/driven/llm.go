package driven

import "context"

// LLMService turns an assembled prompt into an answer. The synthesis
// engine is its only caller; adapters exist for OpenAI, Anthropic and Ollama.
type LLMService interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	ModelName() string

	// Ping makes the cheapest request the provider offers.
	Ping(ctx context.Context) error

	Close() error
}

// GenerateOptions tune a single Generate call. Zero values leave the
// provider default in place.
type GenerateOptions struct {
	System      string
	MaxTokens   int
	Temperature float64
	StopWords   []string
}
