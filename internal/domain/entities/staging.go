package entities

import (
	"encoding/json"
	"fmt"
)

// ReviewStatus is the wire name of a reviewer decision.
type ReviewStatus string

const (
	StatusPending  ReviewStatus = "pending"
	StatusApproved ReviewStatus = "approved"
	StatusRejected ReviewStatus = "rejected"
	StatusEdited   ReviewStatus = "edited"
)

// Decision is the reviewer's verdict on a staged record. The set of
// implementations is closed: Pending, Approved, Rejected and Edited.
type Decision interface {
	Status() ReviewStatus
	isDecision()
}

// Pending has not been reviewed yet.
type Pending struct{}

// Approved is committed as extracted.
type Approved struct{}

// Rejected is never committed.
type Rejected struct{}

// Edited is committed with the reviewer's changes applied. Empty strings and
// nil slices keep the extracted value.
type Edited struct {
	Name         string   `json:"name,omitempty"`
	Type         string   `json:"type,omitempty"`
	Content      string   `json:"content,omitempty"`
	Aliases      []string `json:"aliases,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	ReverseLabel string   `json:"reverse_label,omitempty"`
}

func (Pending) Status() ReviewStatus  { return StatusPending }
func (Approved) Status() ReviewStatus { return StatusApproved }
func (Rejected) Status() ReviewStatus { return StatusRejected }
func (Edited) Status() ReviewStatus   { return StatusEdited }

func (Pending) isDecision()  {}
func (Approved) isDecision() {}
func (Rejected) isDecision() {}
func (Edited) isDecision()   {}

// MatchKind is how a staged entity matched an existing one.
type MatchKind string

const (
	MatchExact MatchKind = "exact"
	MatchAlias MatchKind = "alias"
	MatchFuzzy MatchKind = "fuzzy"
)

// StagedEntity is a provisional entity produced by extraction. TempID is only
// meaningful inside one extraction session. A non-empty MergeTargetID means
// "merge into this existing entity" instead of creating a new one.
type StagedEntity struct {
	TempID        string   `json:"temp_id"`
	Name          string   `json:"name"`
	CanonicalName string   `json:"canonical_name"`
	Type          string   `json:"type"`
	Content       string   `json:"content"`
	Aliases       []string `json:"aliases"`
	Tags          []string `json:"tags"`
	Confidence    float64  `json:"confidence"`
	Excerpt       string   `json:"excerpt"`
	MergeTargetID string   `json:"merge_target_id,omitempty"`
	Decision      Decision `json:"-"`
}

// Resolved returns the entity with an Edited decision applied.
func (s StagedEntity) Resolved() StagedEntity {
	edit, ok := s.Decision.(Edited)
	if !ok {
		return s
	}
	if edit.Name != "" {
		s.Name = edit.Name
		s.CanonicalName = Canonicalize(edit.Name)
	}
	if edit.Type != "" {
		s.Type = edit.Type
	}
	if edit.Content != "" {
		s.Content = edit.Content
	}
	if edit.Aliases != nil {
		s.Aliases = edit.Aliases
	}
	if edit.Tags != nil {
		s.Tags = edit.Tags
	}
	return s
}

// StagedRelationship is a provisional edge. Each endpoint is either a staged
// entity (TempID) or an existing entity (EntityID).
type StagedRelationship struct {
	TempID         string   `json:"temp_id"`
	SourceTempID   string   `json:"source_temp_id,omitempty"`
	TargetTempID   string   `json:"target_temp_id,omitempty"`
	SourceEntityID string   `json:"source_entity_id,omitempty"`
	TargetEntityID string   `json:"target_entity_id,omitempty"`
	SourceName     string   `json:"source_name"`
	TargetName     string   `json:"target_name"`
	Type           string   `json:"type"`
	ReverseLabel   string   `json:"reverse_label,omitempty"`
	Excerpt        string   `json:"excerpt,omitempty"`
	Decision       Decision `json:"-"`
}

// Resolved returns the relationship with an Edited decision applied.
func (s StagedRelationship) Resolved() StagedRelationship {
	edit, ok := s.Decision.(Edited)
	if !ok {
		return s
	}
	if edit.Type != "" {
		s.Type = edit.Type
	}
	if edit.ReverseLabel != "" {
		s.ReverseLabel = edit.ReverseLabel
	}
	return s
}

// EntityMatch pairs a staged entity with an existing entity it collides with.
type EntityMatch struct {
	TempID           string    `json:"temp_id"`
	ExistingEntityID string    `json:"existing_entity_id"`
	ExistingName     string    `json:"existing_name"`
	Kind             MatchKind `json:"kind"`
	Confidence       float64   `json:"confidence"`
}

// StagedExtraction is the review payload of one extraction session.
type StagedExtraction struct {
	SessionID       string               `json:"session_id"`
	CampaignID      string               `json:"campaign_id"`
	SourceName      string               `json:"source_name"`
	SourceText      string               `json:"source_text,omitempty"`
	Entities        []StagedEntity       `json:"entities"`
	Relationships   []StagedRelationship `json:"relationships"`
	Matches         []EntityMatch        `json:"matches"`
	ChunksProcessed int                  `json:"chunks_processed"`
	ChunksTotal     int                  `json:"chunks_total"`
}

type reviewJSON struct {
	Status ReviewStatus `json:"status"`
	Edits  *Edited      `json:"edits,omitempty"`
}

func encodeDecision(d Decision) reviewJSON {
	switch v := d.(type) {
	case Edited:
		return reviewJSON{Status: StatusEdited, Edits: &v}
	case nil:
		return reviewJSON{Status: StatusPending}
	default:
		return reviewJSON{Status: v.Status()}
	}
}

func decodeDecision(r reviewJSON) (Decision, error) {
	switch r.Status {
	case "", StatusPending:
		return Pending{}, nil
	case StatusApproved:
		return Approved{}, nil
	case StatusRejected:
		return Rejected{}, nil
	case StatusEdited:
		if r.Edits == nil {
			return Edited{}, nil
		}
		return *r.Edits, nil
	default:
		return nil, fmt.Errorf("unknown review status %q", r.Status)
	}
}

// MarshalJSON writes the decision as a "review" object.
func (s StagedEntity) MarshalJSON() ([]byte, error) {
	type alias StagedEntity
	return json.Marshal(struct {
		alias
		Review reviewJSON `json:"review"`
	}{alias(s), encodeDecision(s.Decision)})
}

// UnmarshalJSON reads the "review" object back into a Decision.
func (s *StagedEntity) UnmarshalJSON(data []byte) error {
	type alias StagedEntity
	aux := struct {
		*alias
		Review reviewJSON `json:"review"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d, err := decodeDecision(aux.Review)
	if err != nil {
		return fmt.Errorf("staged entity %s: %w", s.TempID, err)
	}
	s.Decision = d
	return nil
}

// MarshalJSON writes the decision as a "review" object.
func (s StagedRelationship) MarshalJSON() ([]byte, error) {
	type alias StagedRelationship
	return json.Marshal(struct {
		alias
		Review reviewJSON `json:"review"`
	}{alias(s), encodeDecision(s.Decision)})
}

// UnmarshalJSON reads the "review" object back into a Decision.
func (s *StagedRelationship) UnmarshalJSON(data []byte) error {
	type alias StagedRelationship
	aux := struct {
		*alias
		Review reviewJSON `json:"review"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d, err := decodeDecision(aux.Review)
	if err != nil {
		return fmt.Errorf("staged relationship %s: %w", s.TempID, err)
	}
	s.Decision = d
	return nil
}
