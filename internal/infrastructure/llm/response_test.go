package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/lore-graph/internal/domain/ports"
)

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain JSON",
			input:    `{"entities": []}`,
			expected: `{"entities": []}`,
		},
		{
			name:     "JSON with json code block",
			input:    "```json\n{\"entities\": []}\n```",
			expected: `{"entities": []}`,
		},
		{
			name:     "JSON with plain code block",
			input:    "```\n{\"entities\": []}\n```",
			expected: `{"entities": []}`,
		},
		{
			name:     "JSON with whitespace",
			input:    "  \n{\"entities\": []}\n  ",
			expected: `{"entities": []}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONResponse(tt.input))
		})
	}
}

func TestParseResponse(t *testing.T) {
	content := "```json\n" + `{
  "entities": [
    {"name": "Grog", "canonicalName": "grog", "type": "npc", "content": "A goliath barbarian.", "aliases": ["Grog Strongjaw"]}
  ],
  "relationships": [
    {"sourceEntity": "Grog", "targetEntity": "Vox Machina", "relationshipType": "member_of"}
  ]
}` + "\n```"

	resp, err := ParseResponse(content)
	require.NoError(t, err)

	require.Len(t, resp.Entities, 1)
	assert.Equal(t, "Grog", resp.Entities[0].Name)
	assert.Equal(t, []string{"Grog Strongjaw"}, resp.Entities[0].Aliases)
	require.Len(t, resp.Relationships, 1)
	assert.Equal(t, "member_of", resp.Relationships[0].RelationshipType)
}

func TestParseResponse_MissingArrays(t *testing.T) {
	resp, err := ParseResponse(`{}`)
	require.NoError(t, err)
	assert.NotNil(t, resp.Entities)
	assert.NotNil(t, resp.Relationships)
}

func TestParseResponse_Invalid(t *testing.T) {
	_, err := ParseResponse("not json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not json")
}

func TestUserMessage(t *testing.T) {
	msg := UserMessage(ports.ExtractionRequest{
		Text:       "Grog walked in.",
		KnownNames: []string{"Grog", "Pike"},
		Language:   "English",
	})

	assert.Contains(t, msg, "- Grog\n- Pike")
	assert.Contains(t, msg, "Write descriptions in English.")
	assert.Contains(t, msg, "Text:\nGrog walked in.")

	bare := UserMessage(ports.ExtractionRequest{Text: "Only text."})
	assert.Equal(t, "Text:\nOnly text.", bare)
}
