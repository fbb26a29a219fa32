package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

const DefaultModel = "gemini-1.5-flash"

// Client sends single prompts to a Gemini model.
type Client struct {
	llm         llms.Model
	model       string
	temperature float64
	logger      *slog.Logger
}

// NewClient creates a Gemini client using the given API key.
func NewClient(ctx context.Context, logger *slog.Logger, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return newClient(logger, llm, model), nil
}

func newClient(logger *slog.Logger, llm llms.Model, model string) *Client {
	return &Client{llm: llm, model: model, temperature: 0.7, logger: logger}
}

// GenerateContent returns the model's text reply for prompt.
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	c.logger.Debug("Sending prompt to Gemini", "model", c.model, "promptChars", len(prompt))

	text, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt,
		llms.WithModel(c.model),
		llms.WithTemperature(c.temperature),
	)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty response from Gemini model")
	}

	c.logger.Debug("Received Gemini reply", "model", c.model, "replyChars", len(text))
	return text, nil
}
