package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Providers accepted by New.
const (
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

const (
	defaultHealthTimeout     = 5 * time.Second
	defaultCompletionTimeout = 60 * time.Second
)

// Client is a text-completion backend with a cheap health probe.
type Client interface {
	Health(ctx context.Context) error
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config selects and configures a completion backend.
type Config struct {
	Provider          string
	BaseURL           string
	Model             string
	APIKey            string
	Temperature       float32
	MaxTokens         int
	HealthTimeout     time.Duration
	CompletionTimeout time.Duration
}

func (c Config) healthTimeout() time.Duration {
	if c.HealthTimeout <= 0 {
		return defaultHealthTimeout
	}
	return c.HealthTimeout
}

func (c Config) completionTimeout() time.Duration {
	if c.CompletionTimeout <= 0 {
		return defaultCompletionTimeout
	}
	return c.CompletionTimeout
}

func (c Config) maxTokens() int {
	if c.MaxTokens <= 0 {
		return 1024
	}
	return c.MaxTokens
}

// New builds the client for cfg.Provider. It is constructed once at startup and passed down.
func New(cfg Config, logger zerolog.Logger) (Client, error) {
	switch cfg.Provider {
	case ProviderOllama, "":
		return NewOllamaClient(cfg, logger), nil
	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an api key")
		}
		return NewAnthropicClient(cfg, logger), nil
	case ProviderMock:
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
