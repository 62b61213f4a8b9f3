package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/lore-graph/internal/domain/services"
)

// QueryHandler handles searches over committed lore.
type QueryHandler struct {
	queryService *services.QueryService
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(queryService *services.QueryService) *QueryHandler {
	return &QueryHandler{
		queryService: queryService,
	}
}

// QueryOptions tune one search.
type QueryOptions struct {
	Limit      int
	Threshold  float64
	Privileged bool
	Keyword    bool
}

// QueryResult contains the result of a query.
type QueryResult struct {
	Query          string                  `json:"query"`
	Mode           services.SearchMode     `json:"mode"`
	FallbackReason string                  `json:"fallback_reason,omitempty"`
	Results        []services.SearchResult `json:"results"`
}

// Handle searches the campaign's chunks. Viewers without privilege never see
// chunks of restricted entities.
func (h *QueryHandler) Handle(ctx context.Context, campaignID, query string, opts QueryOptions) (*QueryResult, error) {
	resp, err := h.queryService.Search(ctx, campaignID, query, services.SearchOptions{
		Limit:             opts.Limit,
		Threshold:         opts.Threshold,
		ExcludeRestricted: !opts.Privileged,
		ForceKeyword:      opts.Keyword,
	})
	if err != nil {
		return nil, fmt.Errorf("searching lore: %w", err)
	}

	return &QueryResult{
		Query:          query,
		Mode:           resp.Mode,
		FallbackReason: resp.FallbackReason,
		Results:        resp.Results,
	}, nil
}
