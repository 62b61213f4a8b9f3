package entities

import "time"

// Audit actions.
const (
	AuditCommit = "commit"
	AuditMerge  = "merge"
	AuditUpdate = "update"
	AuditDelete = "delete"
)

// AuditEntry represents a logged action in the system.
type AuditEntry struct {
	ID         int64          `json:"id"`
	CampaignID string         `json:"campaign_id"`
	Action     string         `json:"action"`
	EntityID   string         `json:"entity_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
