package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ersonp/lore-graph/internal/domain/apperrors"
	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/ports"
	"github.com/ersonp/lore-graph/internal/pkg/retry"
)

// SyncResult reports how much of an entity made it into the chunk store.
type SyncResult struct {
	EntityID  string `json:"entity_id"`
	Attempted int    `json:"attempted"`
	Stored    int    `json:"stored"`
	Disabled  bool   `json:"disabled,omitempty"`
}

// Complete reports whether every chunk was stored.
func (r SyncResult) Complete() bool {
	return r.Stored == r.Attempted
}

// EmbeddingService keeps an entity's chunks in step with its content.
type EmbeddingService struct {
	embedder ports.Embedder
	vectorDB ports.VectorDB
	chunker  *Chunker
	retry    *retry.Config
	locks    *keyedMutex
	logger   *zap.Logger
}

// NewEmbeddingService creates a new embedding service. A nil embedder turns
// every sync into a no-op. Only rate-limited calls are retried, up to
// maxRetries times, waiting 2s, 4s, ... between attempts.
func NewEmbeddingService(embedder ports.Embedder, vectorDB ports.VectorDB, maxRetries int, logger *zap.Logger) *EmbeddingService {
	logger = logger.Named("embedding")

	cfg := retry.DefaultConfig()
	if maxRetries >= 0 {
		cfg.MaxRetries = maxRetries
	}
	cfg.Retryable = func(err error) bool {
		return errors.Is(err, apperrors.ErrRateLimited)
	}
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Warn("embedding rate limited, backing off",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}

	return &EmbeddingService{
		embedder: embedder,
		vectorDB: vectorDB,
		chunker:  NewChunker(),
		retry:    cfg,
		locks:    newKeyedMutex(),
		logger:   logger,
	}
}

// Enabled reports whether an embedding provider is configured.
func (s *EmbeddingService) Enabled() bool {
	return s.embedder != nil
}

// GenerateEmbedding embeds text, backing off on rate limits.
func (s *EmbeddingService) GenerateEmbedding(ctx context.Context, text string, task ports.EmbeddingTask) ([]float32, error) {
	if !s.Enabled() {
		return nil, errors.New("embeddings are not configured")
	}
	return retry.DoWithResult(ctx, s.retry, func() ([]float32, error) {
		return s.embedder.Embed(ctx, text, task)
	})
}

// Sync replaces the entity's chunks with freshly embedded ones. It is safe to
// call repeatedly; concurrent calls for one entity run one at a time. A chunk
// whose embedding fails is logged and skipped, so the result may be partial.
func (s *EmbeddingService) Sync(ctx context.Context, entity *entities.Entity) (*SyncResult, error) {
	result := &SyncResult{EntityID: entity.ID}
	if !s.Enabled() {
		result.Disabled = true
		return result, nil
	}

	unlock := s.locks.Lock(entity.ID)
	defer unlock()

	if err := s.vectorDB.DeleteChunksByEntity(ctx, entity.ID); err != nil {
		return nil, fmt.Errorf("deleting chunks: %w", err)
	}
	if strings.TrimSpace(entity.Content) == "" {
		return result, nil
	}

	for _, piece := range s.chunker.Chunk(entity.Content, entity.Name) {
		result.Attempted++

		vector, err := s.GenerateEmbedding(ctx, piece.Text, ports.TaskPassage)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("skipping chunk",
				zap.String("entity_id", entity.ID),
				zap.Int("chunk_index", piece.Index),
				zap.Error(err))
			continue
		}

		chunk := entities.Chunk{
			ID:         uuid.New().String(),
			EntityID:   entity.ID,
			CampaignID: entity.CampaignID,
			Index:      piece.Index,
			Text:       piece.Text,
			HeaderPath: piece.HeaderPath,
			Mentions:   ExtractWikilinks(piece.Text),
			Embedding:  vector,
			EntityName: entity.Name,
			EntityType: entity.Type,
			Restricted: entity.Restricted,
			CreatedAt:  time.Now(),
		}
		if err := s.vectorDB.SaveChunk(ctx, chunk); err != nil {
			return nil, fmt.Errorf("saving chunk %d: %w", piece.Index, err)
		}
		result.Stored++
	}

	if !result.Complete() {
		s.logger.Info("entity partially indexed",
			zap.String("entity_id", entity.ID),
			zap.Int("attempted", result.Attempted),
			zap.Int("stored", result.Stored))
	}
	return result, nil
}

// Remove deletes every chunk of an entity.
func (s *EmbeddingService) Remove(ctx context.Context, entityID string) error {
	unlock := s.locks.Lock(entityID)
	defer unlock()

	if err := s.vectorDB.DeleteChunksByEntity(ctx, entityID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}
