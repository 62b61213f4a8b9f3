// Package openai provides an Extractor implementation using OpenAI.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/ersonp/lore-graph/internal/domain/ports"
	"github.com/ersonp/lore-graph/internal/infrastructure/config"
	"github.com/ersonp/lore-graph/internal/infrastructure/llm"
)

// DefaultModel is used when the config leaves the model empty.
const DefaultModel = "gpt-4o-mini"

// Client implements the Extractor interface using OpenAI.
type Client struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewClient creates a new OpenAI extraction client.
func NewClient(cfg config.LLMConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := DefaultModel
	if cfg.Model != "" {
		model = cfg.Model
	}

	return &Client{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Extract sends one chunk to the model in JSON mode and decodes the reply.
func (c *Client) Extract(ctx context.Context, req ports.ExtractionRequest) (*ports.ExtractionResponse, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: req.SystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: llm.UserMessage(req),
			},
		},
		Temperature: 0.1,
		MaxTokens:   c.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("calling OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from OpenAI")
	}

	return llm.ParseResponse(resp.Choices[0].Message.Content)
}
