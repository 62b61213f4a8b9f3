package sqlite

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/ports"
	"github.com/ersonp/lore-graph/internal/pkg/vector"
)

// ChunkRepository implements ports.VectorDB on the graph database. Vectors
// are scanned per campaign and ranked in process.
type ChunkRepository struct {
	repo *Repository
}

// NewChunkRepository stores chunks next to the entities they belong to.
func NewChunkRepository(repo *Repository) *ChunkRepository {
	return &ChunkRepository{repo: repo}
}

const chunkSelect = `
	SELECT c.id, c.entity_id, c.campaign_id, c.chunk_index, c.text, c.header_path, c.mentions,
	       c.embedding, c.created_at, e.name, e.type, e.restricted
	FROM chunks c
	JOIN entities e ON e.id = c.entity_id
`

// SaveChunk stores one chunk with its embedding.
func (c *ChunkRepository) SaveChunk(ctx context.Context, chunk entities.Chunk) error {
	if chunk.ID == "" {
		chunk.ID = generateUUID()
	}
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = timeNow()
	}
	headerPath, err := encodeStrings(chunk.HeaderPath)
	if err != nil {
		return fmt.Errorf("encoding header path: %w", err)
	}
	mentions, err := encodeStrings(chunk.Mentions)
	if err != nil {
		return fmt.Errorf("encoding mentions: %w", err)
	}

	query := `
		INSERT INTO chunks (id, entity_id, campaign_id, chunk_index, text, header_path, mentions, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = c.repo.db.ExecContext(ctx, query,
		chunk.ID,
		chunk.EntityID,
		chunk.CampaignID,
		chunk.Index,
		chunk.Text,
		headerPath,
		mentions,
		encodeVector(chunk.Embedding),
		chunk.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving chunk: %w", err)
	}
	return nil
}

// DeleteChunksByEntity removes every chunk of an entity.
func (c *ChunkRepository) DeleteChunksByEntity(ctx context.Context, entityID string) error {
	_, err := c.repo.db.ExecContext(ctx, `DELETE FROM chunks WHERE entity_id = ?`, entityID)
	if err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

// CountChunksByEntity returns how many chunks an entity has.
func (c *ChunkRepository) CountChunksByEntity(ctx context.Context, entityID string) (int, error) {
	var count int
	err := c.repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE entity_id = ?`, entityID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// SearchSimilar ranks the campaign's chunks by cosine similarity.
func (c *ChunkRepository) SearchSimilar(ctx context.Context, q ports.SimilarityQuery) ([]entities.ChunkHit, error) {
	query := chunkSelect + ` WHERE c.campaign_id = ?`
	if q.ExcludeRestricted {
		query += ` AND e.restricted = 0`
	}

	chunks, err := c.queryChunks(ctx, query, q.CampaignID)
	if err != nil {
		return nil, err
	}

	hits := make([]entities.ChunkHit, 0, len(chunks))
	for _, chunk := range chunks {
		score := vector.Cosine(q.Vector, chunk.Embedding)
		if score < q.Threshold {
			continue
		}
		hits = append(hits, entities.ChunkHit{Chunk: chunk, Score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	return hits, nil
}

// SearchKeyword returns chunks containing any of the terms, case-insensitively.
func (c *ChunkRepository) SearchKeyword(ctx context.Context, q ports.KeywordQuery) ([]entities.ChunkHit, error) {
	if len(q.Terms) == 0 {
		return []entities.ChunkHit{}, nil
	}

	conditions := make([]string, len(q.Terms))
	args := make([]any, 0, len(q.Terms)+2)
	args = append(args, q.CampaignID)
	for i, term := range q.Terms {
		conditions[i] = "LOWER(c.text) LIKE ?"
		args = append(args, "%"+strings.ToLower(term)+"%")
	}

	query := chunkSelect + ` WHERE c.campaign_id = ?`
	if q.ExcludeRestricted {
		query += ` AND e.restricted = 0`
	}
	query += ` AND (` + strings.Join(conditions, " OR ") + `) ORDER BY e.name, c.chunk_index`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	chunks, err := c.queryChunks(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	hits := make([]entities.ChunkHit, len(chunks))
	for i, chunk := range chunks {
		hits[i] = entities.ChunkHit{Chunk: chunk}
	}
	return hits, nil
}

func (c *ChunkRepository) queryChunks(ctx context.Context, query string, args ...any) ([]entities.Chunk, error) {
	rows, err := c.repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	chunks := make([]entities.Chunk, 0, 32)
	for rows.Next() {
		var chunk entities.Chunk
		var headerPath, mentions string
		var embedding []byte
		if err := rows.Scan(
			&chunk.ID,
			&chunk.EntityID,
			&chunk.CampaignID,
			&chunk.Index,
			&chunk.Text,
			&headerPath,
			&mentions,
			&embedding,
			&chunk.CreatedAt,
			&chunk.EntityName,
			&chunk.EntityType,
			&chunk.Restricted,
		); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if chunk.HeaderPath, err = decodeStrings(headerPath); err != nil {
			return nil, fmt.Errorf("decoding header path: %w", err)
		}
		if chunk.Mentions, err = decodeStrings(mentions); err != nil {
			return nil, fmt.Errorf("decoding mentions: %w", err)
		}
		if chunk.Embedding, err = decodeVector(embedding); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// encodeVector packs float32s little-endian.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, errors.New("corrupt embedding: length not a multiple of 4")
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}
