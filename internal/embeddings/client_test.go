package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fyrsmithlabs/researchd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(config.EmbeddingConfig{
		BaseURL:   baseURL,
		Model:     "test-model",
		Dimension: 8,
	}, nil)
	require.NoError(t, err)
	return c
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(config.EmbeddingConfig{Dimension: 8}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewClient(config.EmbeddingConfig{BaseURL: "http://x", Dimension: 0}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestEmbedDocuments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := embedResponse{}
		for range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
			}{Embedding: []float32{1, 0, 0, 0, 0, 0, 0, 0}})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	vectors, err := c.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vectors, 2)
	assert.Equal(t, float32(1), vectors[0][0])
}

func TestEmbedDocumentsEmptyInput(t *testing.T) {
	c := newTestClient(t, "http://localhost:1")
	_, err := c.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestEmbedFallbackOnProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	vectors, err := c.EmbedDocuments(context.Background(), []string{"hello"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Len(t, vectors[0], 8)

	// Fallback is deterministic per text.
	again, err := c.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, vectors[0], again)

	other, err := c.EmbedQuery(context.Background(), "different")
	require.NoError(t, err)
	assert.NotEqual(t, vectors[0], other)
}

func TestFallbackVectorNormalized(t *testing.T) {
	vec := fallbackVector("text", 16)
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-3)
}
