package entities

import "time"

// Chunk is an embedded slice of one entity's content. The full set for an
// entity is replaced whenever the entity's content changes.
type Chunk struct {
	ID         string    `json:"id"`
	EntityID   string    `json:"entity_id"`
	CampaignID string    `json:"campaign_id"`
	Index      int       `json:"index"`
	Text       string    `json:"text"`
	HeaderPath []string  `json:"header_path"`
	Mentions   []string  `json:"mentions"`
	Embedding  []float32 `json:"-"`

	// Denormalized from the owning entity for stores that cannot join.
	EntityName string `json:"entity_name"`
	EntityType string `json:"entity_type"`
	Restricted bool   `json:"restricted"`

	CreatedAt time.Time `json:"created_at"`
}

// ChunkHit is a chunk returned by a similarity or keyword lookup.
type ChunkHit struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}
