package ports

import "context"

// Extractor is the text-understanding service that pulls entities and
// relationships out of one chunk of narrative text.
type Extractor interface {
	Extract(ctx context.Context, req ExtractionRequest) (*ExtractionResponse, error)
}

// ExtractionRequest is one chunk sent to the extractor.
type ExtractionRequest struct {
	Text         string
	KnownNames   []string
	Language     string
	SystemPrompt string
}

// ExtractionResponse is what the extractor found in one chunk.
type ExtractionResponse struct {
	Entities      []ExtractedEntity       `json:"entities"`
	Relationships []ExtractedRelationship `json:"relationships"`
}

// ExtractedEntity is an entity as returned by the extractor.
type ExtractedEntity struct {
	Name          string   `json:"name"`
	CanonicalName string   `json:"canonicalName"`
	Type          string   `json:"type"`
	Content       string   `json:"content"`
	Aliases       []string `json:"aliases"`
	Tags          []string `json:"tags"`
}

// ExtractedRelationship references its endpoints by name.
type ExtractedRelationship struct {
	SourceEntity     string `json:"sourceEntity"`
	TargetEntity     string `json:"targetEntity"`
	RelationshipType string `json:"relationshipType"`
	ReverseLabel     string `json:"reverseLabel,omitempty"`
	Excerpt          string `json:"excerpt,omitempty"`
}
