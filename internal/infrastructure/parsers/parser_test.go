package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownParser_Parse(t *testing.T) {
	session := 12

	tests := []struct {
		name     string
		input    string
		expected []RawDocument
	}{
		{
			name:  "plain text",
			input: "Grog drank the potion.\n",
			expected: []RawDocument{
				{Content: "Grog drank the potion.", LineNum: 1},
			},
		},
		{
			name:  "front matter",
			input: "---\ntitle: The Sunken Tomb\nsession: 12\ntags: [dungeon, undead]\n---\n# Arrival\n\nThe party descends.\n",
			expected: []RawDocument{
				{Name: "The Sunken Tomb", Session: &session, Tags: []string{"dungeon", "undead"}, Content: "# Arrival\n\nThe party descends.", LineNum: 1},
			},
		},
		{
			name:  "horizontal rule later in the text is not front matter",
			input: "Intro.\n---\nMore.",
			expected: []RawDocument{
				{Content: "Intro.\n---\nMore.", LineNum: 1},
			},
		},
		{
			name:  "unterminated front matter is content",
			input: "---\ntitle: Broken\nGrog.",
			expected: []RawDocument{
				{Content: "---\ntitle: Broken\nGrog.", LineNum: 1},
			},
		},
		{
			name:     "empty body",
			input:    "---\ntitle: Nothing\n---\n\n",
			expected: []RawDocument{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := &MarkdownParser{}
			result, err := parser.Parse(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestMarkdownParser_Parse_InvalidFrontMatter(t *testing.T) {
	parser := &MarkdownParser{}
	_, err := parser.Parse(strings.NewReader("---\nsession: [unclosed\n---\nText"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "front matter")
}

func TestJSONParser_Parse_ValidInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []RawDocument
	}{
		{
			name:  "single document",
			input: `[{"name": "Session 1", "content": "Grog meets Pike."}]`,
			expected: []RawDocument{
				{Name: "Session 1", Content: "Grog meets Pike.", LineNum: 1},
			},
		},
		{
			name:     "empty array",
			input:    "[]",
			expected: []RawDocument{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := &JSONParser{}
			result, err := parser.Parse(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestJSONParser_Parse_AllFields(t *testing.T) {
	input := `[{
		"name": "Session 4",
		"content": "The party reaches Whitestone.",
		"session": 4,
		"tags": ["whitestone"]
	}, {"name": "Session 5", "content": "More."}]`

	parser := &JSONParser{}
	result, err := parser.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, result, 2)

	doc := result[0]
	assert.Equal(t, "Session 4", doc.Name)
	assert.Equal(t, "The party reaches Whitestone.", doc.Content)
	require.NotNil(t, doc.Session)
	assert.Equal(t, 4, *doc.Session)
	assert.Equal(t, []string{"whitestone"}, doc.Tags)
	assert.Equal(t, 2, result[1].LineNum)
}

func TestJSONParser_Parse_InvalidInput(t *testing.T) {
	parser := &JSONParser{}
	_, err := parser.Parse(strings.NewReader("not json"))
	require.Error(t, err)
}

func TestCSVParser_Parse_ValidInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []RawDocument
	}{
		{
			name:  "required columns only",
			input: "name,content\nSession 1,Grog meets Pike.\n",
			expected: []RawDocument{
				{Name: "Session 1", Content: "Grog meets Pike.", LineNum: 2},
			},
		},
		{
			name:     "empty CSV (header only)",
			input:    "name,content\n",
			expected: nil,
		},
		{
			name:  "columns in different order",
			input: "content,Name\nGrog meets Pike.,Session 1\n",
			expected: []RawDocument{
				{Name: "Session 1", Content: "Grog meets Pike.", LineNum: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := &CSVParser{}
			result, err := parser.Parse(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestCSVParser_Parse_AllColumns(t *testing.T) {
	input := "name,content,session,tags\n" +
		"Session 7,\"Vex, Vax and Trinket scout.\",7,scouting; forest ;\n"

	parser := &CSVParser{}
	result, err := parser.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, result, 1)

	doc := result[0]
	assert.Equal(t, "Session 7", doc.Name)
	assert.Equal(t, "Vex, Vax and Trinket scout.", doc.Content)
	require.NotNil(t, doc.Session)
	assert.Equal(t, 7, *doc.Session)
	assert.Equal(t, []string{"scouting", "forest"}, doc.Tags)
}

func TestCSVParser_Parse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		errMsg string
	}{
		{
			name:   "missing required column",
			input:  "name\nSession 1\n",
			errMsg: "missing required column: content",
		},
		{
			name:   "invalid session value",
			input:  "name,content,session\nSession 1,text,first\n",
			errMsg: "invalid session number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := &CSVParser{}
			_, err := parser.Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestForFormat(t *testing.T) {
	assert.IsType(t, &MarkdownParser{}, ForFormat("markdown"))
	assert.IsType(t, &MarkdownParser{}, ForFormat("text"))
	assert.IsType(t, &JSONParser{}, ForFormat("json"))
	assert.IsType(t, &CSVParser{}, ForFormat("CSV"))
	assert.Nil(t, ForFormat("unknown"))
}

func TestForFile(t *testing.T) {
	assert.IsType(t, &MarkdownParser{}, ForFile("session-12.md"))
	assert.IsType(t, &MarkdownParser{}, ForFile("notes.txt"))
	assert.IsType(t, &JSONParser{}, ForFile("export.json"))
	assert.IsType(t, &CSVParser{}, ForFile("sessions.csv"))
	assert.Nil(t, ForFile("map.png"))
	assert.Nil(t, ForFile("noextension"))
}
