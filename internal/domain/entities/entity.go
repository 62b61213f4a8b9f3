package entities

import (
	"regexp"
	"strings"
	"time"
)

var reCanonicalSeparator = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Entity is a named, typed node in a campaign's knowledge graph.
// CanonicalName is derived from Name and is unique within a campaign.
type Entity struct {
	ID            string     `json:"id"`
	CampaignID    string     `json:"campaign_id"`
	Name          string     `json:"name"`
	CanonicalName string     `json:"canonical_name"`
	Type          string     `json:"type"`
	Content       string     `json:"content"`
	Aliases       []string   `json:"aliases"`
	Tags          []string   `json:"tags"`
	Restricted    bool       `json:"restricted"`
	SourceNoteID  string     `json:"source_note_id,omitempty"`
	SessionNumber *int       `json:"session_number,omitempty"`
	SessionDate   *time.Time `json:"session_date,omitempty"`
	SessionStatus string     `json:"session_status,omitempty"`
	OwnerPlayerID string     `json:"owner_player_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Canonicalize turns a display name into its campaign-unique slug:
// lowercased, runs of non-alphanumerics collapsed to "-", trimmed.
func Canonicalize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = reCanonicalSeparator.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// NormalizeName converts a name to lowercase for case-insensitive matching.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// VisibleTo reports whether a viewer may see the entity.
func (e *Entity) VisibleTo(privileged bool) bool {
	return privileged || !e.Restricted
}

// HasAlias checks the alias set case-insensitively.
func (e *Entity) HasAlias(alias string) bool {
	n := NormalizeName(alias)
	for _, a := range e.Aliases {
		if NormalizeName(a) == n {
			return true
		}
	}
	return false
}
