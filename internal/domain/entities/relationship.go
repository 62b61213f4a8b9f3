package entities

import "time"

// Common relationship types offered to the extraction model. Relationship.Type
// is an open string; these are only suggestions.
const (
	RelationAlly      = "ally_of"
	RelationEnemy     = "enemy_of"
	RelationMemberOf  = "member_of"
	RelationLocatedIn = "located_in"
	RelationOwns      = "owns"
	RelationParentOf  = "parent_of"
	RelationSiblingOf = "sibling_of"
	RelationServes    = "serves"
	RelationAppearsIn = "appears_in"
)

// Relationship is a directed edge between two entities of one campaign.
// (SourceEntityID, TargetEntityID, Type) is unique.
type Relationship struct {
	ID             string    `json:"id"`
	CampaignID     string    `json:"campaign_id"`
	SourceEntityID string    `json:"source_entity_id"`
	TargetEntityID string    `json:"target_entity_id"`
	Type           string    `json:"type"`
	ReverseLabel   string    `json:"reverse_label,omitempty"`
	DocumentID     string    `json:"document_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Involves reports whether the entity is either endpoint.
func (r *Relationship) Involves(entityID string) bool {
	return r.SourceEntityID == entityID || r.TargetEntityID == entityID
}
