package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ersonp/lore-graph/internal/domain/apperrors"
	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/ports"
)

const (
	// DefaultSearchLimit is the default number of results to return.
	DefaultSearchLimit = 10
	// DefaultSimilarityThreshold drops weak vector matches.
	DefaultSimilarityThreshold = 0.5

	keywordCandidateFactor = 5
)

// SearchMode tells the caller which retrieval path answered.
type SearchMode string

const (
	ModeVector  SearchMode = "vector"
	ModeKeyword SearchMode = "keyword"
)

// SearchOptions tune a search.
type SearchOptions struct {
	Limit             int
	Threshold         float64
	ExcludeRestricted bool
	// ForceKeyword skips the vector path.
	ForceKeyword bool
}

// SearchResult is one matching chunk. In keyword mode Similarity is the
// share of query terms the chunk contains.
type SearchResult struct {
	EntityID   string   `json:"entity_id"`
	EntityName string   `json:"entity_name"`
	EntityType string   `json:"entity_type"`
	ChunkText  string   `json:"chunk_text"`
	HeaderPath []string `json:"header_path"`
	Mentions   []string `json:"mentions"`
	Similarity float64  `json:"similarity"`
}

// SearchResponse carries results and the path that produced them.
type SearchResponse struct {
	Mode           SearchMode     `json:"mode"`
	FallbackReason string         `json:"fallback_reason,omitempty"`
	Results        []SearchResult `json:"results"`
}

// QueryService answers searches over the chunk store.
type QueryService struct {
	embeddings *EmbeddingService
	vectorDB   ports.VectorDB
	logger     *zap.Logger
}

// NewQueryService creates a new query service.
func NewQueryService(embeddings *EmbeddingService, vectorDB ports.VectorDB, logger *zap.Logger) *QueryService {
	return &QueryService{
		embeddings: embeddings,
		vectorDB:   vectorDB,
		logger:     logger.Named("query"),
	}
}

// Search embeds the query and ranks chunks by cosine similarity. When
// embeddings are unavailable or fail it falls back to keyword search and
// says so in the response.
func (s *QueryService) Search(ctx context.Context, campaignID, query string, opts SearchOptions) (*SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", apperrors.ErrInvalidInput)
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultSearchLimit
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultSimilarityThreshold
	}

	var reason string
	switch {
	case opts.ForceKeyword:
		reason = "keyword search requested"
	case !s.embeddings.Enabled():
		reason = "embeddings are not configured"
	default:
		resp, err := s.searchVector(ctx, campaignID, query, opts)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("vector search failed, falling back to keyword search",
			zap.String("campaign_id", campaignID),
			zap.Error(err))
		reason = err.Error()
	}

	results, err := s.searchKeyword(ctx, campaignID, query, opts)
	if err != nil {
		return nil, err
	}
	return &SearchResponse{Mode: ModeKeyword, FallbackReason: reason, Results: results}, nil
}

func (s *QueryService) searchVector(ctx context.Context, campaignID, query string, opts SearchOptions) (*SearchResponse, error) {
	vector, err := s.embeddings.GenerateEmbedding(ctx, query, ports.TaskQuery)
	if err != nil {
		return nil, fmt.Errorf("generating query embedding: %w", err)
	}

	hits, err := s.vectorDB.SearchSimilar(ctx, ports.SimilarityQuery{
		CampaignID:        campaignID,
		Vector:            vector,
		Limit:             opts.Limit,
		Threshold:         opts.Threshold,
		ExcludeRestricted: opts.ExcludeRestricted,
	})
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}

	return &SearchResponse{Mode: ModeVector, Results: toResults(hits)}, nil
}

func (s *QueryService) searchKeyword(ctx context.Context, campaignID, query string, opts SearchOptions) ([]SearchResult, error) {
	terms := queryTerms(query)
	hits, err := s.vectorDB.SearchKeyword(ctx, ports.KeywordQuery{
		CampaignID:        campaignID,
		Terms:             terms,
		Limit:             opts.Limit * keywordCandidateFactor,
		ExcludeRestricted: opts.ExcludeRestricted,
	})
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	for i := range hits {
		hits[i].Score = termScore(hits[i].Chunk.Text, terms)
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	return toResults(hits), nil
}

// queryTerms splits a query into distinct lowercase words.
func queryTerms(query string) []string {
	var terms []string
	seen := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(query)) {
		f = strings.Trim(f, `.,;:!?"'()[]`)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

func termScore(text string, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	matched := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

func toResults(hits []entities.ChunkHit) []SearchResult {
	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, SearchResult{
			EntityID:   h.Chunk.EntityID,
			EntityName: h.Chunk.EntityName,
			EntityType: h.Chunk.EntityType,
			ChunkText:  h.Chunk.Text,
			HeaderPath: h.Chunk.HeaderPath,
			Mentions:   h.Chunk.Mentions,
			Similarity: h.Score,
		})
	}
	return results
}

// IsFallback reports whether the keyword path answered.
func (r *SearchResponse) IsFallback() bool {
	return r.Mode == ModeKeyword
}
