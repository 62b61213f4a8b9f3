// Package services contains domain business logic.
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ersonp/lore-graph/internal/domain/apperrors"
	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/ports"
)

const (
	// DefaultExtractionChunkSize is the chunk size sent to the extractor.
	DefaultExtractionChunkSize = 4000
	// DefaultMaxChunks caps how many chunks one run sends to the extractor.
	DefaultMaxChunks = 20
	// DefaultParallelBatchSize is how many chunks are extracted at once.
	DefaultParallelBatchSize = 3
	// DefaultStagedConfidence is assigned to every extracted entity.
	DefaultStagedConfidence = 0.8

	excerptLength  = 300
	eventBatchSize = 20
	tempIDPrefix   = "temp-"
)

// ExtractionSettings tune one extraction run.
type ExtractionSettings struct {
	ChunkSize            int
	MaxChunks            int
	ParallelBatchSize    int
	Aggressiveness       Aggressiveness
	ConfidenceThreshold  float64
	ExtractRelationships bool
	Language             string
}

// DefaultExtractionSettings returns the balanced defaults.
func DefaultExtractionSettings() ExtractionSettings {
	return ExtractionSettings{
		ChunkSize:            DefaultExtractionChunkSize,
		MaxChunks:            DefaultMaxChunks,
		ParallelBatchSize:    DefaultParallelBatchSize,
		Aggressiveness:       Balanced,
		ConfidenceThreshold:  0.5,
		ExtractRelationships: true,
		Language:             "English",
	}
}

// ExtractionInput is the text of one extraction run.
type ExtractionInput struct {
	CampaignID string
	SourceName string
	Text       string
	// KnownNames are added to the campaign's existing names in the prompt.
	KnownNames []string
	Settings   ExtractionSettings
}

// ExtractionService turns raw narrative text into a staged extraction.
type ExtractionService struct {
	extractor    ports.Extractor
	relationalDB ports.RelationalDB
	timeout      time.Duration
	logger       *zap.Logger
}

// NewExtractionService creates a new extraction service. A non-positive
// timeout disables the run deadline.
func NewExtractionService(extractor ports.Extractor, relationalDB ports.RelationalDB, timeout time.Duration, logger *zap.Logger) *ExtractionService {
	return &ExtractionService{
		extractor:    extractor,
		relationalDB: relationalDB,
		timeout:      timeout,
		logger:       logger.Named("extraction"),
	}
}

// Stream runs an extraction in the background and returns its events. The
// channel always ends with exactly one complete or error event and is then
// closed.
func (s *ExtractionService) Stream(ctx context.Context, in ExtractionInput) <-chan entities.ProgressEvent {
	events := make(chan entities.ProgressEvent, eventBatchSize)
	go func() {
		_, _ = s.Run(ctx, in, events)
	}()
	return events
}

// Run performs one extraction, racing it against the service deadline. When
// events is non-nil, progress is written to it, followed by exactly one
// terminal event, and the channel is closed. On error no staged result is
// returned.
func (s *ExtractionService) Run(ctx context.Context, in ExtractionInput, events chan<- entities.ProgressEvent) (*entities.StagedExtraction, error) {
	em := newEmitter(ctx, events)
	defer em.close()

	staged, err := WithTimeout(ctx, s.timeout, func(ctx context.Context) (*entities.StagedExtraction, error) {
		return s.run(ctx, in, em)
	})
	if err != nil {
		s.logger.Warn("extraction failed",
			zap.String("campaign_id", in.CampaignID),
			zap.String("source", in.SourceName),
			zap.Error(err))
		em.finish(entities.StageError, map[string]any{"message": err.Error()})
		return nil, err
	}

	em.finish(entities.StageComplete, staged)
	return staged, nil
}

func (s *ExtractionService) run(ctx context.Context, in ExtractionInput, em *emitter) (*entities.StagedExtraction, error) {
	settings := normalizeSettings(in.Settings)
	em.emit(entities.StageStarting, map[string]any{"source_name": in.SourceName})

	if in.CampaignID == "" {
		return nil, fmt.Errorf("%w: campaign id is required", apperrors.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("%w: text is empty", apperrors.ErrInvalidInput)
	}

	chunker := &Chunker{TargetSize: settings.ChunkSize, Overlap: settings.ChunkSize / 10}
	chunks := chunker.Chunk(in.Text, in.SourceName)
	total := len(chunks)
	if total > settings.MaxChunks {
		chunks = chunks[:settings.MaxChunks]
	}
	em.emit(entities.StageParsed, map[string]any{
		"chunks":       len(chunks),
		"total_chunks": total,
		"truncated":    total > len(chunks),
	})

	em.emit(entities.StageLoading, map[string]any{"campaign_id": in.CampaignID})
	existing, err := s.relationalDB.ListAllEntities(ctx, in.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("loading existing entities: %w", err)
	}
	knownNames := mergeKnownNames(existing, in.KnownNames)
	em.emit(entities.StageLoaded, map[string]any{
		"existing_entities": len(existing),
		"known_names":       len(knownNames),
	})

	em.emit(entities.StageStarting, map[string]any{"phase": "extraction", "chunks": len(chunks)})
	responses, err := s.extractChunks(ctx, chunks, knownNames, settings, em)
	if err != nil {
		return nil, err
	}

	em.emit(entities.StageProcessing, map[string]any{"responses": len(responses)})
	extracted, rawRels := aggregate(responses, settings.ExtractRelationships)

	staged := stageEntities(extracted, settings.ConfidenceThreshold)
	emitBatches(em, entities.StageEntities, staged)

	rels := stageRelationships(rawRels, staged, existing)
	emitBatches(em, entities.StageRelationships, rels)

	matches := matchExisting(staged, existing)
	em.emit(entities.StageDuplicates, map[string]any{"matches": matches})

	return &entities.StagedExtraction{
		SessionID:       uuid.New().String(),
		CampaignID:      in.CampaignID,
		SourceName:      in.SourceName,
		SourceText:      in.Text,
		Entities:        staged,
		Relationships:   rels,
		Matches:         matches,
		ChunksProcessed: len(chunks),
		ChunksTotal:     total,
	}, nil
}

// extractChunks calls the extractor in batches. A batch is awaited as a whole
// before the next starts; results keep chunk order.
func (s *ExtractionService) extractChunks(ctx context.Context, chunks []TextChunk, knownNames []string, settings ExtractionSettings, em *emitter) ([]*ports.ExtractionResponse, error) {
	prompt := SystemPrompt(settings.Aggressiveness, settings.ExtractRelationships)
	responses := make([]*ports.ExtractionResponse, len(chunks))

	for start := 0; start < len(chunks); start += settings.ParallelBatchSize {
		end := min(start+settings.ParallelBatchSize, len(chunks))

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				resp, err := s.extractor.Extract(gctx, ports.ExtractionRequest{
					Text:         chunks[i].Text,
					KnownNames:   knownNames,
					Language:     settings.Language,
					SystemPrompt: prompt,
				})
				if err != nil {
					return fmt.Errorf("extracting chunk %d: %w", i, err)
				}
				responses[i] = resp
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for i := start; i < end; i++ {
			em.emit(entities.StageProgress, map[string]any{"chunk": i + 1, "total": len(chunks)})
		}
	}
	return responses, nil
}

func normalizeSettings(in ExtractionSettings) ExtractionSettings {
	def := DefaultExtractionSettings()
	if in.ChunkSize <= 0 {
		in.ChunkSize = def.ChunkSize
	}
	if in.MaxChunks <= 0 {
		in.MaxChunks = def.MaxChunks
	}
	if in.ParallelBatchSize <= 0 {
		in.ParallelBatchSize = 1
	}
	if in.Aggressiveness == "" {
		in.Aggressiveness = def.Aggressiveness
	}
	return in
}

func mergeKnownNames(existing []*entities.Entity, extra []string) []string {
	names := make([]string, 0, len(existing)+len(extra))
	seen := make(map[string]bool)
	add := func(n string) {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" || seen[key] {
			return
		}
		seen[key] = true
		names = append(names, n)
	}
	for _, e := range existing {
		add(e.Name)
	}
	for _, n := range extra {
		add(n)
	}
	return names
}

// aggregate flattens responses in chunk order and consolidates entities that
// share a canonical name, since overlapping chunks report them twice.
func aggregate(responses []*ports.ExtractionResponse, withRelationships bool) ([]ports.ExtractedEntity, []ports.ExtractedRelationship) {
	var (
		merged []ports.ExtractedEntity
		rels   []ports.ExtractedRelationship
	)
	index := make(map[string]int)

	for _, resp := range responses {
		if resp == nil {
			continue
		}
		for _, e := range resp.Entities {
			e.Name = strings.TrimSpace(e.Name)
			if e.Name == "" {
				continue
			}
			key := entities.Canonicalize(e.Name)
			if key == "" {
				continue
			}
			if i, ok := index[key]; ok {
				merged[i] = consolidate(merged[i], e)
				continue
			}
			index[key] = len(merged)
			merged = append(merged, e)
		}
		if withRelationships {
			rels = append(rels, resp.Relationships...)
		}
	}
	return merged, rels
}

func consolidate(into, from ports.ExtractedEntity) ports.ExtractedEntity {
	content := strings.TrimSpace(from.Content)
	if content != "" && !strings.Contains(into.Content, content) {
		if strings.TrimSpace(into.Content) == "" {
			into.Content = content
		} else {
			into.Content += "\n\n" + content
		}
	}
	if into.Type == "" {
		into.Type = from.Type
	}
	into.Aliases = unionFold(into.Aliases, from.Aliases)
	into.Tags = unionFold(into.Tags, from.Tags)
	return into
}

// unionFold appends the values of b missing from a, ignoring case.
func unionFold(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]bool)
	for _, v := range append(append([]string{}, a...), b...) {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

func stageEntities(extracted []ports.ExtractedEntity, threshold float64) []entities.StagedEntity {
	staged := make([]entities.StagedEntity, 0, len(extracted))
	for _, e := range extracted {
		if DefaultStagedConfidence < threshold {
			continue
		}
		typ := strings.ToLower(strings.TrimSpace(e.Type))
		if typ == "" {
			typ = "lore"
		}
		aliases := make([]string, 0, len(e.Aliases))
		for _, a := range unionFold(nil, e.Aliases) {
			if !strings.EqualFold(a, e.Name) {
				aliases = append(aliases, a)
			}
		}
		staged = append(staged, entities.StagedEntity{
			TempID:        tempIDPrefix + uuid.New().String(),
			Name:          e.Name,
			CanonicalName: entities.Canonicalize(e.Name),
			Type:          typ,
			Content:       strings.TrimSpace(e.Content),
			Aliases:       aliases,
			Tags:          unionFold(nil, e.Tags),
			Confidence:    DefaultStagedConfidence,
			Excerpt:       excerpt(e.Content),
			Decision:      entities.Pending{},
		})
	}
	return staged
}

func excerpt(content string) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= excerptLength {
		return content
	}
	return string(runes[:excerptLength])
}

// stageRelationships resolves endpoints by name. Staged entities are tried
// first (name, alias and canonical form, case-insensitive), then the
// existing entities through Resolve. Relationships with an unresolved
// endpoint are dropped.
func stageRelationships(raw []ports.ExtractedRelationship, staged []entities.StagedEntity, existing []*entities.Entity) []entities.StagedRelationship {
	names := make(map[string]string)
	for _, e := range staged {
		for _, n := range append([]string{e.Name, e.CanonicalName}, e.Aliases...) {
			if key := strings.ToLower(strings.TrimSpace(n)); key != "" {
				if _, taken := names[key]; !taken {
					names[key] = e.TempID
				}
			}
		}
	}

	type endpoint struct{ tempID, entityID string }
	resolve := func(name string) (endpoint, bool) {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			return endpoint{}, false
		}
		if id, ok := names[key]; ok {
			return endpoint{tempID: id}, true
		}
		if id, ok := names[entities.Canonicalize(name)]; ok {
			return endpoint{tempID: id}, true
		}
		if r := Resolve(existing, name, nil); r != nil {
			return endpoint{entityID: r.Entity.ID}, true
		}
		return endpoint{}, false
	}

	rels := []entities.StagedRelationship{}
	seen := make(map[string]bool)
	for _, r := range raw {
		src, ok := resolve(r.SourceEntity)
		if !ok {
			continue
		}
		tgt, ok := resolve(r.TargetEntity)
		if !ok {
			continue
		}
		relType := normalizeRelationType(r.RelationshipType)
		if relType == "" {
			continue
		}
		key := src.tempID + src.entityID + "|" + tgt.tempID + tgt.entityID + "|" + relType
		if seen[key] {
			continue
		}
		seen[key] = true

		rels = append(rels, entities.StagedRelationship{
			TempID:         tempIDPrefix + uuid.New().String(),
			SourceTempID:   src.tempID,
			TargetTempID:   tgt.tempID,
			SourceEntityID: src.entityID,
			TargetEntityID: tgt.entityID,
			SourceName:     strings.TrimSpace(r.SourceEntity),
			TargetName:     strings.TrimSpace(r.TargetEntity),
			Type:           relType,
			ReverseLabel:   strings.TrimSpace(r.ReverseLabel),
			Excerpt:        excerpt(r.Excerpt),
			Decision:       entities.Pending{},
		})
	}
	return rels
}

func normalizeRelationType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	return strings.Join(strings.FieldsFunc(t, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "_")
}

// matchExisting runs the resolver once per staged entity against a single
// snapshot of the campaign.
func matchExisting(staged []entities.StagedEntity, existing []*entities.Entity) []entities.EntityMatch {
	matches := []entities.EntityMatch{}
	for _, e := range staged {
		r := Resolve(existing, e.Name, e.Aliases)
		if r == nil {
			continue
		}
		matches = append(matches, entities.EntityMatch{
			TempID:           e.TempID,
			ExistingEntityID: r.Entity.ID,
			ExistingName:     r.Entity.Name,
			Kind:             r.Kind,
			Confidence:       r.Confidence,
		})
	}
	return matches
}

func emitBatches[T any](em *emitter, stage string, items []T) {
	if len(items) == 0 {
		em.emit(stage, map[string]any{"items": items, "offset": 0, "total": 0})
		return
	}
	for start := 0; start < len(items); start += eventBatchSize {
		end := min(start+eventBatchSize, len(items))
		em.emit(stage, map[string]any{"items": items[start:end], "offset": start, "total": len(items)})
	}
}

// emitter writes events to an optional channel. Once closed, further events
// are dropped, so a run abandoned at its deadline cannot write after the
// terminal event.
type emitter struct {
	ctx    context.Context
	mu     sync.Mutex
	ch     chan<- entities.ProgressEvent
	closed bool
}

func newEmitter(ctx context.Context, ch chan<- entities.ProgressEvent) *emitter {
	return &emitter{ctx: ctx, ch: ch, closed: ch == nil}
}

func (e *emitter) emit(stage string, data any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.ch <- entities.ProgressEvent{Stage: stage, Data: data}:
	case <-e.ctx.Done():
	}
}

// finish sends the terminal event and closes the channel under one lock, so
// an abandoned run can never emit after it.
func (e *emitter) finish(stage string, data any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.ch <- entities.ProgressEvent{Stage: stage, Data: data}:
	case <-e.ctx.Done():
	}
	e.closed = true
	close(e.ch)
}

func (e *emitter) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.ch)
}
