package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// OllamaClient talks to a local Ollama server through its OpenAI-compatible API.
type OllamaClient struct {
	client *openai.Client
	cfg    Config
	logger zerolog.Logger
}

func NewOllamaClient(cfg Config, logger zerolog.Logger) *OllamaClient {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.2:1b"
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = base + "/v1"

	return &OllamaClient{
		client: openai.NewClientWithConfig(oc),
		cfg:    cfg,
		logger: logger.With().Str("component", "ollama").Str("model", cfg.Model).Logger(),
	}
}

// Health lists the server's models and checks the configured one is pulled.
func (c *OllamaClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.healthTimeout())
	defer cancel()

	models, err := c.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	for _, m := range models.Models {
		if m.ID == c.cfg.Model {
			return nil
		}
	}
	return fmt.Errorf("model %s is not available on the ollama server", c.cfg.Model)
}

func (c *OllamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.completionTimeout())
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.maxTokens(),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	c.logger.Debug().
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("completion")
	return resp.Choices[0].Message.Content, nil
}
