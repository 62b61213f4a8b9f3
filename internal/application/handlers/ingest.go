package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/services"
	"github.com/ersonp/lore-graph/internal/infrastructure/config"
	"github.com/ersonp/lore-graph/internal/infrastructure/parsers"
)

// IngestHandler reads session notes and stages what the extractor finds in
// them for review.
type IngestHandler struct {
	extractionService *services.ExtractionService
	settings          services.ExtractionSettings
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(extractionService *services.ExtractionService, settings services.ExtractionSettings) *IngestHandler {
	return &IngestHandler{
		extractionService: extractionService,
		settings:          settings,
	}
}

// SettingsFromConfig turns the extraction section of the config into run
// settings. Zero values keep the defaults.
func SettingsFromConfig(cfg config.ExtractionConfig) services.ExtractionSettings {
	s := services.DefaultExtractionSettings()
	if cfg.ChunkSize > 0 {
		s.ChunkSize = cfg.ChunkSize
	}
	if cfg.MaxChunks > 0 {
		s.MaxChunks = cfg.MaxChunks
	}
	if cfg.ParallelBatchSize > 0 {
		s.ParallelBatchSize = cfg.ParallelBatchSize
	}
	if cfg.Aggressiveness != "" {
		s.Aggressiveness = services.ParseAggressiveness(cfg.Aggressiveness)
	}
	if cfg.ConfidenceThreshold > 0 {
		s.ConfidenceThreshold = cfg.ConfidenceThreshold
	}
	if cfg.Language != "" {
		s.Language = cfg.Language
	}
	s.ExtractRelationships = cfg.RelationshipsEnabled()
	return s
}

// IngestOptions controls ingestion behavior.
type IngestOptions struct {
	// Format overrides detection by file extension.
	Format string
	// KnownNames are offered to the extractor next to the campaign's entities.
	KnownNames []string
	// Progress receives every extraction event when set.
	Progress func(source string, ev entities.ProgressEvent)
}

// IngestResult contains the staged extractions of one file, one per
// document it holds.
type IngestResult struct {
	FilePath    string
	Extractions []*entities.StagedExtraction
	Errors      []error
}

// EntityCount is the number of staged entities across all documents.
func (r *IngestResult) EntityCount() int {
	n := 0
	for _, x := range r.Extractions {
		n += len(x.Entities)
	}
	return n
}

// IngestBatchResult contains the result of batch ingestion.
type IngestBatchResult struct {
	TotalFiles    int
	TotalEntities int
	FileResults   []*IngestResult
	Errors        []error
}

// Handle ingests one file into the campaign's review queue.
func (h *IngestHandler) Handle(ctx context.Context, campaignID, filePath string, opts IngestOptions) (*IngestResult, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("accessing file: %w", err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", absPath)
	}

	parser := parsers.ForFile(absPath)
	if opts.Format != "" {
		parser = parsers.ForFormat(opts.Format)
	}
	if parser == nil {
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(absPath))
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	docs, err := parser.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(absPath), err)
	}

	result := &IngestResult{FilePath: absPath}
	for i, doc := range docs {
		name := sourceName(doc, absPath, i, len(docs))
		staged, err := h.extract(ctx, campaignID, name, doc, opts)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", name, err))
			continue
		}
		result.Extractions = append(result.Extractions, staged)
	}

	if len(result.Extractions) == 0 && len(result.Errors) > 0 {
		return nil, result.Errors[0]
	}
	return result, nil
}

// HandleText stages raw text that did not come from a file.
func (h *IngestHandler) HandleText(ctx context.Context, campaignID, name, text string, opts IngestOptions) (*entities.StagedExtraction, error) {
	return h.extract(ctx, campaignID, name, parsers.RawDocument{Name: name, Content: text}, opts)
}

// Stream stages raw text in the background. The returned channel ends with
// exactly one complete or error event.
func (h *IngestHandler) Stream(ctx context.Context, campaignID, name, text string, knownNames []string) <-chan entities.ProgressEvent {
	return h.extractionService.Stream(ctx, services.ExtractionInput{
		CampaignID: campaignID,
		SourceName: name,
		Text:       text,
		KnownNames: knownNames,
		Settings:   h.settings,
	})
}

func (h *IngestHandler) extract(ctx context.Context, campaignID, name string, doc parsers.RawDocument, opts IngestOptions) (*entities.StagedExtraction, error) {
	in := services.ExtractionInput{
		CampaignID: campaignID,
		SourceName: name,
		Text:       doc.Content,
		KnownNames: opts.KnownNames,
		Settings:   h.settings,
	}

	var events chan entities.ProgressEvent
	done := make(chan struct{})
	if opts.Progress != nil {
		events = make(chan entities.ProgressEvent, 16)
		go func() {
			defer close(done)
			for ev := range events {
				opts.Progress(name, ev)
			}
		}()
	} else {
		close(done)
	}

	staged, err := h.extractionService.Run(ctx, in, events)
	<-done
	if err != nil {
		return nil, fmt.Errorf("extracting entities: %w", err)
	}

	if len(doc.Tags) > 0 {
		for i := range staged.Entities {
			staged.Entities[i].Tags = appendMissing(staged.Entities[i].Tags, doc.Tags...)
		}
	}
	return staged, nil
}

// sourceName picks the document name: front matter title, then session
// number, then the file name.
func sourceName(doc parsers.RawDocument, path string, index, total int) string {
	if doc.Name != "" {
		return doc.Name
	}
	if doc.Session != nil {
		return fmt.Sprintf("Session %d", *doc.Session)
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if total > 1 {
		return fmt.Sprintf("%s #%d", base, index+1)
	}
	return base
}

func appendMissing(values []string, extra ...string) []string {
	for _, v := range extra {
		found := false
		for _, have := range values {
			if strings.EqualFold(have, v) {
				found = true
				break
			}
		}
		if !found {
			values = append(values, v)
		}
	}
	return values
}

// HandleDirectory ingests all matching files in a directory.
func (h *IngestHandler) HandleDirectory(ctx context.Context, campaignID, dirPath, pattern string, recursive bool, progressFn func(file string), opts IngestOptions) (*IngestBatchResult, error) {
	absPath, err := filepath.Abs(dirPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("accessing path: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", absPath)
	}

	files, err := h.findFiles(absPath, pattern, recursive)
	if err != nil {
		return nil, fmt.Errorf("finding files: %w", err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no files matching pattern %q found in %s", pattern, absPath)
	}

	result := &IngestBatchResult{
		FileResults: make([]*IngestResult, 0, len(files)),
	}

	for _, file := range files {
		if progressFn != nil {
			progressFn(file)
		}

		fileResult, err := h.Handle(ctx, campaignID, file, opts)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", file, err))
			continue
		}

		result.FileResults = append(result.FileResults, fileResult)
		result.TotalFiles++
		result.TotalEntities += fileResult.EntityCount()
		result.Errors = append(result.Errors, fileResult.Errors...)
	}

	return result, nil
}

// findFiles finds all files matching the pattern in the directory.
func (h *IngestHandler) findFiles(dirPath string, pattern string, recursive bool) ([]string, error) {
	var files []string

	walkFn := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if !recursive && path != dirPath {
				return filepath.SkipDir
			}
			return nil
		}

		matched, err := filepath.Match(pattern, info.Name())
		if err != nil {
			return err
		}

		if matched {
			files = append(files, path)
		}

		return nil
	}

	if err := filepath.Walk(dirPath, walkFn); err != nil {
		return nil, err
	}

	return files, nil
}

// IsDirectory checks if the given path is a directory.
func IsDirectory(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// IsGlobPattern checks if the path contains glob characters.
func IsGlobPattern(path string) bool {
	return strings.ContainsAny(path, "*?[")
}
