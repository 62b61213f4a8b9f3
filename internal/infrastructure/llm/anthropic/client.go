// Package anthropic provides an Extractor implementation using Claude models.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/ersonp/lore-graph/internal/domain/ports"
	"github.com/ersonp/lore-graph/internal/infrastructure/config"
	"github.com/ersonp/lore-graph/internal/infrastructure/llm"
)

const (
	// DefaultModel is used when the config leaves the model empty.
	DefaultModel = "claude-3-5-haiku-latest"
	// DefaultMaxTokens is required by the messages API.
	DefaultMaxTokens = 4096
)

// Client implements the Extractor interface using the Anthropic messages API.
type Client struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

// NewClient creates a new Anthropic extraction client.
func NewClient(cfg config.LLMConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	var opts []anthropic.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}

	model := DefaultModel
	if cfg.Model != "" {
		model = cfg.Model
	}
	maxTokens := DefaultMaxTokens
	if cfg.MaxTokens > 0 {
		maxTokens = cfg.MaxTokens
	}

	return &Client{
		client:    anthropic.NewClient(cfg.APIKey, opts...),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// Extract sends one chunk to the model and decodes the JSON reply.
func (c *Client) Extract(ctx context.Context, req ports.ExtractionRequest) (*ports.ExtractionResponse, error) {
	prompt := llm.UserMessage(req)

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System:    req.SystemPrompt,
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					{Type: anthropic.MessagesContentTypeText, Text: &prompt},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("calling Anthropic: %w", err)
	}

	text := replyText(resp.Content)
	if text == "" {
		return nil, errors.New("no response from Anthropic")
	}

	return llm.ParseResponse(text)
}

// replyText joins every text block of a reply.
func replyText(blocks []anthropic.MessageContent) string {
	var b strings.Builder
	for _, block := range blocks {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			b.WriteString(*block.Text)
		}
	}
	return b.String()
}
