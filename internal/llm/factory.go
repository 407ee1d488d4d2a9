package llm

import (
	"fmt"
	"strings"
	"time"
)

// Generation defaults shared by all providers.
const (
	DefaultMaxTokens  = 4096
	DefaultTimeout    = 120 * time.Second
	DefaultRetryDelay = 2 * time.Second
)

// GenerationConfig holds the settings shared by every provider.
type GenerationConfig struct {
	// Temperature is the sampling temperature.
	Temperature float64
	// MaxTokens caps each completion. Zero means DefaultMaxTokens.
	MaxTokens int
	// Timeout is the timeout for one API call. Zero means DefaultTimeout.
	Timeout time.Duration
	// MaxRetries is the number of retries for transient failures.
	MaxRetries int
	// RetryDelay is the base delay between retries. Zero means DefaultRetryDelay.
	RetryDelay time.Duration
}

func (g *GenerationConfig) applyDefaults() {
	if g.MaxTokens <= 0 {
		g.MaxTokens = DefaultMaxTokens
	}
	if g.Timeout <= 0 {
		g.Timeout = DefaultTimeout
	}
	if g.MaxRetries < 0 {
		g.MaxRetries = 0
	}
	if g.RetryDelay <= 0 {
		g.RetryDelay = DefaultRetryDelay
	}
}

// FactoryConfig holds the parameters needed to create a Completer.
// This is defined in the llm package to avoid importing the config package,
// keeping the llm package free of infrastructure dependencies.
type FactoryConfig struct {
	// Provider is the LLM provider name ("openai" or "anthropic").
	Provider string
	// Generation contains settings shared by all providers.
	Generation GenerationConfig
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig
	// Anthropic contains Anthropic-specific settings.
	Anthropic AnthropicConfig
}

// NewCompleter creates a Completer based on the configuration.
// Supports "openai" and "anthropic" providers, matched case-insensitively.
// Returns an error for unsupported or empty provider values.
func NewCompleter(cfg FactoryConfig) (Completer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIProvider(cfg.OpenAI, cfg.Generation), nil
	case "anthropic":
		return NewAnthropicProvider(cfg.Anthropic, cfg.Generation), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}
