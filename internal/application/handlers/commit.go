package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/services"
)

// CommitHandler promotes reviewed extractions into the graph.
type CommitHandler struct {
	commitService *services.CommitService
}

// NewCommitHandler creates a new commit handler.
func NewCommitHandler(commitService *services.CommitService) *CommitHandler {
	return &CommitHandler{
		commitService: commitService,
	}
}

// CommitOptions controls how review decisions are read.
type CommitOptions struct {
	// ApprovePending treats records nobody reviewed as approved.
	ApprovePending bool
	// MergeMatches merges entities the resolver matched into the existing
	// entity instead of creating a duplicate.
	MergeMatches bool
}

// CommitBatchResult contains the outcome of every extraction in a review file.
type CommitBatchResult struct {
	Results []*services.CommitResult
	Skipped int
	Errors  []error
}

// Handle commits one reviewed extraction. It returns (nil, nil) when nothing
// in it was accepted.
func (h *CommitHandler) Handle(ctx context.Context, staged *entities.StagedExtraction, opts CommitOptions) (*services.CommitResult, error) {
	req := PrepareCommit(staged, opts)
	if !hasAccepted(req) {
		return nil, nil
	}

	result, err := h.commitService.Commit(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("committing %s: %w", staged.SourceName, err)
	}
	return result, nil
}

// HandleFile commits every extraction of a review file. One failing
// extraction does not stop the others.
func (h *CommitHandler) HandleFile(ctx context.Context, path string, opts CommitOptions) (*CommitBatchResult, error) {
	extractions, err := ReadReviewFile(path)
	if err != nil {
		return nil, err
	}

	result := &CommitBatchResult{}
	for _, staged := range extractions {
		r, err := h.Handle(ctx, staged, opts)
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		if r == nil {
			result.Skipped++
			continue
		}
		result.Results = append(result.Results, r)
	}
	return result, nil
}

// PrepareCommit applies the commit options to a staged extraction and builds
// the commit request. The staged extraction is not modified.
func PrepareCommit(staged *entities.StagedExtraction, opts CommitOptions) services.CommitRequest {
	req := services.CommitRequestFromStaged(staged)

	matched := make(map[string]string, len(staged.Matches))
	for _, m := range staged.Matches {
		matched[m.TempID] = m.ExistingEntityID
	}

	ents := make([]entities.StagedEntity, len(req.Entities))
	for i, e := range req.Entities {
		if opts.ApprovePending && isPending(e.Decision) {
			e.Decision = entities.Approved{}
		}
		if opts.MergeMatches && e.MergeTargetID == "" {
			e.MergeTargetID = matched[e.TempID]
		}
		ents[i] = e
	}
	req.Entities = ents

	rels := make([]entities.StagedRelationship, len(req.Relationships))
	for i, r := range req.Relationships {
		if opts.ApprovePending && isPending(r.Decision) {
			r.Decision = entities.Approved{}
		}
		rels[i] = r
	}
	req.Relationships = rels

	return req
}

func isPending(d entities.Decision) bool {
	switch d.(type) {
	case entities.Pending, nil:
		return true
	default:
		return false
	}
}

func isAccepted(d entities.Decision) bool {
	switch d.(type) {
	case entities.Approved, entities.Edited:
		return true
	default:
		return false
	}
}

func hasAccepted(req services.CommitRequest) bool {
	for _, e := range req.Entities {
		if isAccepted(e.Decision) {
			return true
		}
	}
	for _, r := range req.Relationships {
		if isAccepted(r.Decision) {
			return true
		}
	}
	return false
}

// WriteReviewFile stores staged extractions as indented JSON for a reviewer
// to edit.
func WriteReviewFile(path string, extractions []*entities.StagedExtraction) error {
	data, err := json.MarshalIndent(extractions, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding review file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing review file: %w", err)
	}
	return nil
}

// ReadReviewFile loads staged extractions written by WriteReviewFile.
func ReadReviewFile(path string) ([]*entities.StagedExtraction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading review file: %w", err)
	}

	var extractions []*entities.StagedExtraction
	if err := json.Unmarshal(data, &extractions); err != nil {
		return nil, fmt.Errorf("parsing review file: %w", err)
	}
	return extractions, nil
}
