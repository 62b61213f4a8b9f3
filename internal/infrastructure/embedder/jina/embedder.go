// Package jina provides a task-aware Embedder backed by the Jina embeddings API.
package jina

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ersonp/lore-graph/internal/domain/apperrors"
	"github.com/ersonp/lore-graph/internal/domain/ports"
	"github.com/ersonp/lore-graph/internal/infrastructure/config"
)

const (
	// DefaultBaseURL is the public Jina API endpoint.
	DefaultBaseURL = "https://api.jina.ai/v1"
	// DefaultModel is the model used when none is configured.
	DefaultModel = "jina-embeddings-v3"
	// VectorSize is the default output dimensionality.
	VectorSize = 1024
	// DefaultTimeout bounds a single embedding request.
	DefaultTimeout = 30 * time.Second
)

// Embedder implements the Embedder interface using Jina.
type Embedder struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	logger     *zap.Logger
}

// NewEmbedder creates a new Jina embedder.
func NewEmbedder(cfg config.EmbedderConfig, logger *zap.Logger) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Jina API key is required")
	}

	e := &Embedder{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    DefaultBaseURL,
		apiKey:     cfg.APIKey,
		model:      DefaultModel,
		dimensions: VectorSize,
		logger:     logger.Named("jina"),
	}
	if cfg.BaseURL != "" {
		e.baseURL = cfg.BaseURL
	}
	if cfg.Model != "" {
		e.model = cfg.Model
	}
	if cfg.Dimensions > 0 {
		e.dimensions = cfg.Dimensions
	}
	return e, nil
}

// Dimensions returns the configured vector length.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Task       string   `json:"task"`
	Dimensions int      `json:"dimensions"`
	Input      []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed requests one vector for text. A 429 answer wraps ErrRateLimited so
// callers can back off; any other non-200 status is returned as-is.
func (e *Embedder) Embed(ctx context.Context, text string, task ports.EmbeddingTask) ([]float32, error) {
	payload, err := json.Marshal(embeddingRequest{
		Model:      e.model,
		Task:       string(task),
		Dimensions: e.dimensions,
		Input:      []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call jina: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: jina returned status %d", apperrors.ErrRateLimited, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		e.logger.Error("jina returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return nil, fmt.Errorf("jina returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, errors.New("no embeddings returned")
	}

	vector := parsed.Data[0].Embedding
	if len(vector) != e.dimensions {
		return nil, fmt.Errorf("jina returned %d dimensions, expected %d", len(vector), e.dimensions)
	}
	return vector, nil
}
