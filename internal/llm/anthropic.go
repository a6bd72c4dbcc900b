package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
)

// AnthropicClient is the hosted completion backend.
type AnthropicClient struct {
	client *anthropic.Client
	cfg    Config
	logger zerolog.Logger
}

func NewAnthropicClient(cfg Config, logger zerolog.Logger) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(1),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-haiku-latest"
	}
	client := anthropic.NewClient(opts...)

	return &AnthropicClient{
		client: &client,
		cfg:    cfg,
		logger: logger.With().Str("component", "anthropic").Str("model", cfg.Model).Logger(),
	}
}

// Health sends a one-token request.
func (c *AnthropicClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.healthTimeout())
	defer cancel()

	_, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("anthropic unreachable: %w", err)
	}
	return nil
}

func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.completionTimeout())
	defer cancel()

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: int64(c.cfg.maxTokens()),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			c.logger.Debug().
				Int64("input_tokens", message.Usage.InputTokens).
				Int64("output_tokens", message.Usage.OutputTokens).
				Msg("completion")
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in anthropic response")
}
