package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/ports"
)

// DefaultDuplicateThreshold is the minimum similarity reported by
// FindPotentialDuplicates.
const DefaultDuplicateThreshold = 0.7

// Resolution is the existing entity a candidate name resolved to.
type Resolution struct {
	Entity     *entities.Entity
	Kind       entities.MatchKind
	Confidence float64
}

// Resolve finds the existing entity a candidate refers to. Tiers are tried
// cheapest-first and the first hit wins: canonical name, case-insensitive
// name, candidate name among existing aliases, candidate aliases among
// existing names and aliases.
func Resolve(existing []*entities.Entity, name string, aliases []string) *Resolution {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	canonical := entities.Canonicalize(name)

	for _, e := range existing {
		if canonical != "" && e.CanonicalName == canonical {
			return &Resolution{Entity: e, Kind: entities.MatchExact, Confidence: 1.0}
		}
	}
	for _, e := range existing {
		if strings.EqualFold(e.Name, name) {
			return &Resolution{Entity: e, Kind: entities.MatchExact, Confidence: 1.0}
		}
	}
	for _, e := range existing {
		for _, a := range e.Aliases {
			if namesMatch(a, name) {
				return &Resolution{Entity: e, Kind: entities.MatchAlias, Confidence: 0.8}
			}
		}
	}
	for _, alias := range aliases {
		if strings.TrimSpace(alias) == "" {
			continue
		}
		for _, e := range existing {
			if namesMatch(e.Name, alias) {
				return &Resolution{Entity: e, Kind: entities.MatchAlias, Confidence: 0.8}
			}
			for _, a := range e.Aliases {
				if namesMatch(a, alias) {
					return &Resolution{Entity: e, Kind: entities.MatchAlias, Confidence: 0.8}
				}
			}
		}
	}
	return nil
}

func namesMatch(a, b string) bool {
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return true
	}
	ca := entities.Canonicalize(a)
	return ca != "" && ca == entities.Canonicalize(b)
}

// Similarity scores two names in [0, 1]. Identical names score 1, one
// containing the other 0.8, otherwise one minus the normalized edit
// distance. Comparison is case-insensitive and symmetric.
func Similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.8
	}

	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

// levenshtein is the classic two-row edit distance.
func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// DuplicateCandidate is an existing entity that looks like a given name.
type DuplicateCandidate struct {
	Entity    *entities.Entity `json:"entity"`
	Score     float64          `json:"score"`
	MatchedOn string           `json:"matched_on"`
}

// DuplicateFinder reports advisory fuzzy matches. It is separate from
// Resolve, which alone decides identity at extraction time.
type DuplicateFinder struct {
	relationalDB ports.RelationalDB
}

// NewDuplicateFinder creates a new DuplicateFinder.
func NewDuplicateFinder(relationalDB ports.RelationalDB) *DuplicateFinder {
	return &DuplicateFinder{relationalDB: relationalDB}
}

// FindPotentialDuplicates scores every entity of the campaign (name and
// aliases) against name and returns those at or above threshold, best
// first. A non-positive threshold uses DefaultDuplicateThreshold.
func (f *DuplicateFinder) FindPotentialDuplicates(ctx context.Context, campaignID, name string, threshold float64) ([]DuplicateCandidate, error) {
	if threshold <= 0 {
		threshold = DefaultDuplicateThreshold
	}

	all, err := f.relationalDB.ListAllEntities(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}

	return rankDuplicates(all, name, threshold), nil
}

func rankDuplicates(all []*entities.Entity, name string, threshold float64) []DuplicateCandidate {
	candidates := []DuplicateCandidate{}
	for _, e := range all {
		best := DuplicateCandidate{Entity: e, Score: Similarity(name, e.Name), MatchedOn: e.Name}
		for _, a := range e.Aliases {
			if score := Similarity(name, a); score > best.Score {
				best.Score = score
				best.MatchedOn = a
			}
		}
		if best.Score >= threshold {
			candidates = append(candidates, best)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}
