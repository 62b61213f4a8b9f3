package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/ports"
	"github.com/ersonp/lore-graph/internal/pkg/vector"
)

// VectorDB is an in-memory implementation of ports.VectorDB.
type VectorDB struct {
	Err       error
	SaveErr   error
	SearchErr error

	mu     sync.Mutex
	chunks []entities.Chunk

	// Call tracking
	DeleteCallCount        int
	SearchSimilarCallCount int
	SearchKeywordCallCount int
	LastKeywordQuery       ports.KeywordQuery
}

// NewVectorDB creates an empty mock VectorDB.
func NewVectorDB() *VectorDB {
	return &VectorDB{}
}

// SaveChunk stores one chunk.
func (m *VectorDB) SaveChunk(_ context.Context, chunk entities.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if m.Err != nil {
		return m.Err
	}
	m.chunks = append(m.chunks, chunk)
	return nil
}

// DeleteChunksByEntity removes all chunks of an entity.
func (m *VectorDB) DeleteChunksByEntity(_ context.Context, entityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCallCount++
	if m.Err != nil {
		return m.Err
	}
	kept := m.chunks[:0]
	for _, c := range m.chunks {
		if c.EntityID != entityID {
			kept = append(kept, c)
		}
	}
	m.chunks = kept
	return nil
}

// CountChunksByEntity counts an entity's chunks.
func (m *VectorDB) CountChunksByEntity(_ context.Context, entityID string) (int, error) {
	return len(m.ChunksFor(entityID)), m.Err
}

// ChunksFor returns an entity's chunks ordered by index.
func (m *VectorDB) ChunksFor(entityID string) []entities.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Chunk
	for _, c := range m.chunks {
		if c.EntityID == entityID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// AddChunk seeds a chunk directly.
func (m *VectorDB) AddChunk(chunk entities.Chunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = append(m.chunks, chunk)
}

// SearchSimilar ranks chunks by cosine similarity.
func (m *VectorDB) SearchSimilar(_ context.Context, q ports.SimilarityQuery) ([]entities.ChunkHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SearchSimilarCallCount++
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}

	hits := []entities.ChunkHit{}
	for _, c := range m.chunks {
		if c.CampaignID != q.CampaignID || (q.ExcludeRestricted && c.Restricted) {
			continue
		}
		score := vector.Cosine(q.Vector, c.Embedding)
		if score < q.Threshold {
			continue
		}
		hits = append(hits, entities.ChunkHit{Chunk: c, Score: score})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	return hits, nil
}

// SearchKeyword returns chunks containing any term.
func (m *VectorDB) SearchKeyword(_ context.Context, q ports.KeywordQuery) ([]entities.ChunkHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SearchKeywordCallCount++
	m.LastKeywordQuery = q
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}

	hits := []entities.ChunkHit{}
	for _, c := range m.chunks {
		if c.CampaignID != q.CampaignID || (q.ExcludeRestricted && c.Restricted) {
			continue
		}
		lower := strings.ToLower(c.Text)
		for _, t := range q.Terms {
			if strings.Contains(lower, t) {
				hits = append(hits, entities.ChunkHit{Chunk: c})
				break
			}
		}
	}
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	return hits, nil
}
