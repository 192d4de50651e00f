package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/dan1elw/LARA/internal/ai"
	"github.com/dan1elw/LARA/pkg/logger"
)

// DefaultModel is used when no model is configured
const DefaultModel = "gemini-2.0-flash"

// Client implements ai.SummaryProvider on the Gemini API
type Client struct {
	client *genai.Client
	logger *logger.Logger
}

// NewClient creates a new Gemini client
func NewClient(ctx context.Context, apiKey string, log *logger.Logger) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{
		client: client,
		logger: log.Named("gemini"),
	}, nil
}

// Summarize sends the prompt to Gemini and returns the generated text
func (c *Client) Summarize(ctx context.Context, prompt string, config ai.SummaryConfig) (string, error) {
	model := config.Model
	if model == "" {
		model = DefaultModel
	}

	var genCfg *genai.GenerateContentConfig
	if config.Temperature > 0 || config.MaxTokens > 0 {
		genCfg = &genai.GenerateContentConfig{}
		if config.Temperature > 0 {
			temp := float32(config.Temperature)
			genCfg.Temperature = &temp
		}
		if config.MaxTokens > 0 {
			genCfg.MaxOutputTokens = int32(config.MaxTokens)
		}
	}

	c.logger.Debug("Requesting summary", logger.String("model", model))
	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(prompt), genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty response")
	}
	return text, nil
}
