package entities

import "time"

// ChangeType indicates why an entity was changed.
type ChangeType string

const (
	ChangeUpdate   ChangeType = "update"
	ChangeMerge    ChangeType = "merge"
	ChangeMergedIn ChangeType = "merged_in"
	ChangeDeletion ChangeType = "deletion"
)

// EntityVersion is a historical snapshot of an entity.
type EntityVersion struct {
	ID         string     `json:"id"`
	EntityID   string     `json:"entity_id"`
	Version    int        `json:"version"`
	ChangeType ChangeType `json:"change_type"`
	Data       Entity     `json:"data"`
	Reason     string     `json:"reason"`
	CreatedAt  time.Time  `json:"created_at"`
}
