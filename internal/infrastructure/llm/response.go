// Package llm holds helpers shared by the extractor clients.
package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ersonp/lore-graph/internal/domain/ports"
)

// UserMessage renders the per-chunk user turn sent to the model.
func UserMessage(req ports.ExtractionRequest) string {
	var b strings.Builder
	if len(req.KnownNames) > 0 {
		b.WriteString("Known entities already in this campaign (reuse these exact names when the text refers to them):\n")
		for _, name := range req.KnownNames {
			b.WriteString("- ")
			b.WriteString(name)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if req.Language != "" {
		fmt.Fprintf(&b, "Write descriptions in %s.\n\n", req.Language)
	}
	b.WriteString("Text:\n")
	b.WriteString(req.Text)
	return b.String()
}

// ParseResponse decodes the model reply into an ExtractionResponse. Missing
// arrays decode as empty slices.
func ParseResponse(content string) (*ports.ExtractionResponse, error) {
	content = CleanJSONResponse(content)

	var resp ports.ExtractionResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return nil, fmt.Errorf("parsing extraction JSON: %w (response: %s)", err, content)
	}
	if resp.Entities == nil {
		resp.Entities = []ports.ExtractedEntity{}
	}
	if resp.Relationships == nil {
		resp.Relationships = []ports.ExtractedRelationship{}
	}
	return &resp, nil
}

// CleanJSONResponse removes markdown code blocks if present.
func CleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}

	return strings.TrimSpace(content)
}
