package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/ports"
)

const (
	// DefaultSpotlightTTL bounds how long a cached spotlight is served.
	DefaultSpotlightTTL = 10 * time.Minute

	spotlightTopN = 5
)

// ConnectedEntity is an entity ranked by relationship count.
type ConnectedEntity struct {
	EntityID string `json:"entity_id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Degree   int    `json:"degree"`
}

// Spotlight is a summary of a campaign's graph.
type Spotlight struct {
	CampaignID        string            `json:"campaign_id"`
	EntityCount       int               `json:"entity_count"`
	RelationshipCount int               `json:"relationship_count"`
	CountsByType      map[string]int    `json:"counts_by_type"`
	TopConnected      []ConnectedEntity `json:"top_connected"`
	GeneratedAt       time.Time         `json:"generated_at"`
}

// IsFresh reports whether a cached entry may be served: it must carry the
// current fingerprint and be younger than ttl.
func IsFresh(entry *ports.CacheEntry, fingerprint string, now time.Time, ttl time.Duration) bool {
	if entry == nil || entry.Fingerprint != fingerprint {
		return false
	}
	return now.Sub(entry.InsertedAt) < ttl
}

// SpotlightService builds and caches campaign spotlights.
type SpotlightService struct {
	relationalDB ports.RelationalDB
	cache        ports.Cache
	ttl          time.Duration
	now          func() time.Time
	logger       *zap.Logger
}

// NewSpotlightService creates a new SpotlightService. A non-positive ttl
// uses DefaultSpotlightTTL.
func NewSpotlightService(relationalDB ports.RelationalDB, cache ports.Cache, ttl time.Duration, logger *zap.Logger) *SpotlightService {
	if ttl <= 0 {
		ttl = DefaultSpotlightTTL
	}
	return &SpotlightService{
		relationalDB: relationalDB,
		cache:        cache,
		ttl:          ttl,
		now:          time.Now,
		logger:       logger.Named("spotlight"),
	}
}

func spotlightKey(campaignID string, privileged bool) string {
	view := "public"
	if privileged {
		view = "full"
	}
	return "spotlight:" + campaignID + ":" + view
}

// Get returns the campaign spotlight, from cache when fresh. The entity count
// is the fingerprint, so creating or deleting an entity invalidates it.
func (s *SpotlightService) Get(ctx context.Context, campaignID string, privileged bool) (*Spotlight, error) {
	count, err := s.relationalDB.CountEntities(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("counting entities: %w", err)
	}
	fingerprint := strconv.Itoa(count)
	key := spotlightKey(campaignID, privileged)

	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("reading spotlight cache", zap.String("key", key), zap.Error(err))
	}
	if IsFresh(entry, fingerprint, s.now(), s.ttl) {
		var cached Spotlight
		if err := json.Unmarshal(entry.Value, &cached); err == nil {
			return &cached, nil
		}
	}

	spot, err := s.build(ctx, campaignID, privileged)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(spot)
	if err != nil {
		return nil, fmt.Errorf("encoding spotlight: %w", err)
	}
	if err := s.cache.Set(ctx, key, ports.CacheEntry{
		Value:       raw,
		InsertedAt:  s.now(),
		Fingerprint: fingerprint,
	}, s.ttl); err != nil {
		s.logger.Warn("writing spotlight cache", zap.String("key", key), zap.Error(err))
	}
	return spot, nil
}

// Invalidate drops both cached views of a campaign.
func (s *SpotlightService) Invalidate(ctx context.Context, campaignID string) error {
	for _, privileged := range []bool{false, true} {
		if err := s.cache.Delete(ctx, spotlightKey(campaignID, privileged)); err != nil {
			return fmt.Errorf("invalidating spotlight: %w", err)
		}
	}
	return nil
}

func (s *SpotlightService) build(ctx context.Context, campaignID string, privileged bool) (*Spotlight, error) {
	all, err := s.relationalDB.ListAllEntities(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	rels, err := s.relationalDB.ListRelationships(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("listing relationships: %w", err)
	}

	shown := make(map[string]*entities.Entity)
	counts := make(map[string]int)
	for _, e := range visible(all, privileged) {
		shown[e.ID] = e
		counts[e.Type]++
	}

	degree := make(map[string]int)
	relCount := 0
	for _, r := range rels {
		_, src := shown[r.SourceEntityID]
		_, tgt := shown[r.TargetEntityID]
		if !src || !tgt {
			continue
		}
		relCount++
		degree[r.SourceEntityID]++
		if r.TargetEntityID != r.SourceEntityID {
			degree[r.TargetEntityID]++
		}
	}

	top := make([]ConnectedEntity, 0, len(degree))
	for id, d := range degree {
		e := shown[id]
		top = append(top, ConnectedEntity{EntityID: id, Name: e.Name, Type: e.Type, Degree: d})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Degree != top[j].Degree {
			return top[i].Degree > top[j].Degree
		}
		return top[i].Name < top[j].Name
	})
	if len(top) > spotlightTopN {
		top = top[:spotlightTopN]
	}

	return &Spotlight{
		CampaignID:        campaignID,
		EntityCount:       len(shown),
		RelationshipCount: relCount,
		CountsByType:      counts,
		TopConnected:      top,
		GeneratedAt:       s.now(),
	}, nil
}
