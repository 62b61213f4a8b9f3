package ports

import "context"

// EmbeddingTask tells task-aware providers how the vector will be used.
type EmbeddingTask string

const (
	TaskPassage EmbeddingTask = "retrieval.passage"
	TaskQuery   EmbeddingTask = "retrieval.query"
)

// Embedder defines the interface for generating vector embeddings.
// Implementations wrap apperrors.ErrRateLimited when the provider answers 429.
type Embedder interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string, task EmbeddingTask) ([]float32, error)

	// Dimensions is the fixed length of every returned vector.
	Dimensions() int
}
