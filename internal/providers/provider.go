package providers

import (
	"context"
	"strings"
)

// Request is the provider-neutral call surface. Each adapter maps it onto its
// own wire format.
type Request struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
	JSONMode     bool
}

// Provider is implemented once per AI backend. Both methods return the raw
// text of the response; interpreting it is the caller's job.
type Provider interface {
	Review(ctx context.Context, req Request) (string, error)
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}

// Config is a read-only snapshot of the provider settings for one operation.
type Config struct {
	Provider     string
	APIKey       string
	Model        string
	MaxTokens    int
	// Temperature is nil when unset; reviews then use ReviewTemperature.
	Temperature  *float64
	CustomPrompt string
	// BaseURL overrides the backend endpoint. Used for Azure/OpenAI-compatible
	// gateways and the local Ollama server.
	BaseURL string
}

const (
	defaultMaxTokens = 4000

	// ReviewTemperature is used when Config.Temperature is nil.
	ReviewTemperature = 0.3
	// GenerateTemperature is used for free-form text generation.
	GenerateTemperature = 0.5
)

// DefaultModels maps each provider to the model used when none is configured.
var DefaultModels = map[string]string{
	"openai":    "gpt-4-turbo-preview",
	"anthropic": "claude-3-opus-20240229",
	"gemini":    "gemini-pro",
	"ollama":    "llama3",
}

// Canonical normalises provider aliases.
func Canonical(provider string) string {
	switch p := strings.ToLower(strings.TrimSpace(provider)); p {
	case "azure-openai":
		return "openai"
	case "google":
		return "gemini"
	case "lmstudio":
		return "ollama"
	default:
		return p
	}
}

// New builds the adapter selected by cfg.Provider. It performs no network
// activity; a missing credential or unknown provider yields a *ConfigError.
func New(cfg Config) (Provider, error) {
	switch Canonical(cfg.Provider) {
	case "openai":
		return NewOpenAI(cfg)
	case "anthropic":
		return NewAnthropic(cfg)
	case "gemini":
		return NewGemini(cfg)
	case "ollama":
		return NewOllama(cfg)
	default:
		return nil, &ConfigError{Msg: "unsupported AI provider: " + cfg.Provider}
	}
}

func modelOrDefault(cfg Config, provider string) string {
	if cfg.Model != "" {
		return cfg.Model
	}
	return DefaultModels[provider]
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return defaultMaxTokens
	}
	return n
}
