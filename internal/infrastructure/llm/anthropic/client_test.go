package anthropic

import (
	"testing"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/lore-graph/internal/infrastructure/config"
)

func TestNewClient(t *testing.T) {
	client, err := NewClient(config.LLMConfig{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, client.model)
	assert.Equal(t, DefaultMaxTokens, client.maxTokens)

	client, err = NewClient(config.LLMConfig{APIKey: "test-key", Model: "claude-sonnet-4-0", MaxTokens: 1000})
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-0", client.model)
	assert.Equal(t, 1000, client.maxTokens)

	_, err = NewClient(config.LLMConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
}

func TestReplyText(t *testing.T) {
	first := `{"entities":`
	second := ` []}`
	blocks := []anthropic.MessageContent{
		{Type: anthropic.MessagesContentTypeText, Text: &first},
		{Type: anthropic.MessagesContentTypeToolUse},
		{Type: anthropic.MessagesContentTypeText, Text: &second},
	}

	assert.Equal(t, `{"entities": []}`, replyText(blocks))
	assert.Empty(t, replyText(nil))
}
