package entities

import "time"

// Document records the source text a commit was made from.
type Document struct {
	ID         string    `json:"id"`
	CampaignID string    `json:"campaign_id"`
	Name       string    `json:"name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}
