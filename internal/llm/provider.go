package llm

import (
	"context"

	"github.com/ppiankov/medtrust/internal/model"
)

// Provider is the completion service every LLM-backed stage talks to.
// Implementations must honor JSONMode by constraining output to a single
// parseable JSON object.
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete runs one chat completion and returns the response text
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest is one chat completion call.
type CompletionRequest struct {
	// System is the system prompt (role instructions)
	System string

	// User is the user message (the actual task payload)
	User string

	// Model overrides the provider's default model when set
	Model string

	// JSONMode constrains the response to a JSON object
	JSONMode bool

	// Temperature controls sampling (0 = provider default handling applies)
	Temperature float32

	// MaxTokens limits the response length (0 = provider default)
	MaxTokens int
}

// Config holds LLM provider configuration.
type Config struct {
	// Provider name: "openai", "anthropic", "ollama"
	Provider string

	// Model is the default model for completions
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama, proxies)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens default for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:  "openai",
		Timeout:   60,
		MaxTokens: 1000,
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config.
func ConfigFromModel(cfg model.LLMConfig, proxy model.ProxyConfig) Config {
	return Config{
		Provider:   cfg.Provider,
		Model:      cfg.GenerationModel,
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Timeout:    int(cfg.Timeout.Seconds()),
		MaxTokens:  cfg.MaxTokens,
		HTTPProxy:  proxy.HTTPProxy,
		HTTPSProxy: proxy.HTTPSProxy,
		NoProxy:    proxy.NoProxy,
	}
}
