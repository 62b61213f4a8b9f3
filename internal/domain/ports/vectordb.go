package ports

import (
	"context"

	"github.com/ersonp/lore-graph/internal/domain/entities"
)

// VectorDB stores embedded chunks and answers similarity and keyword lookups.
type VectorDB interface {
	// SaveChunk stores one chunk with its embedding.
	SaveChunk(ctx context.Context, chunk entities.Chunk) error

	// DeleteChunksByEntity removes every chunk of an entity.
	DeleteChunksByEntity(ctx context.Context, entityID string) error

	// CountChunksByEntity returns how many chunks an entity has.
	CountChunksByEntity(ctx context.Context, entityID string) (int, error)

	// SearchSimilar returns chunks by descending cosine similarity.
	SearchSimilar(ctx context.Context, q SimilarityQuery) ([]entities.ChunkHit, error)

	// SearchKeyword returns chunks whose text contains any of the terms.
	SearchKeyword(ctx context.Context, q KeywordQuery) ([]entities.ChunkHit, error)
}

// SimilarityQuery scopes a vector lookup.
type SimilarityQuery struct {
	CampaignID        string
	Vector            []float32
	Limit             int
	Threshold         float64
	ExcludeRestricted bool
}

// KeywordQuery scopes a substring lookup. Terms are lowercase.
type KeywordQuery struct {
	CampaignID        string
	Terms             []string
	Limit             int
	ExcludeRestricted bool
}
