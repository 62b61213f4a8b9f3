package openai

import (
	"errors"
	"net/http"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/lore-graph/internal/domain/apperrors"
	"github.com/ersonp/lore-graph/internal/infrastructure/config"
)

func TestNewEmbedder(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.EmbedderConfig
		wantErr  bool
		errMsg   string
		wantDims int
	}{
		{
			name:     "valid config",
			cfg:      config.EmbedderConfig{APIKey: "test-key"},
			wantDims: VectorSize,
		},
		{
			name: "custom model and dimensions",
			cfg: config.EmbedderConfig{
				APIKey:     "test-key",
				Model:      "text-embedding-3-large",
				Dimensions: 256,
				BaseURL:    "http://localhost:9999/v1",
			},
			wantDims: 256,
		},
		{
			name:    "missing API key",
			cfg:     config.EmbedderConfig{},
			wantErr: true,
			errMsg:  "API key is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder, err := NewEmbedder(tt.cfg)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Nil(t, embedder)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDims, embedder.Dimensions())
		})
	}
}

func TestClassifyError(t *testing.T) {
	throttled := &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"}
	assert.ErrorIs(t, classifyError(throttled), apperrors.ErrRateLimited)

	serverErr := &openai.APIError{HTTPStatusCode: http.StatusInternalServerError, Message: "boom"}
	assert.NotErrorIs(t, classifyError(serverErr), apperrors.ErrRateLimited)

	plain := errors.New("dial tcp: refused")
	assert.Equal(t, plain, classifyError(plain))
}

func TestVectorSize(t *testing.T) {
	// Verify the constant matches OpenAI's text-embedding-3-small dimension
	assert.Equal(t, 1536, VectorSize)
}
