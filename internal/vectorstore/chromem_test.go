package vectorstore

import (
	"context"
	"hash/fnv"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubEmbedder produces deterministic unit vectors from text hashes so
// tests run without an embedding service.
type stubEmbedder struct{ dim int }

func (e *stubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func (e *stubEmbedder) vector(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, e.dim)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed>>16)%1000) / 1000.0
		norm += float64(vec[i]) * float64(vec[i])
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

func newTestStore(t *testing.T, path string) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore(Config{Path: path, VectorSize: 8}, &stubEmbedder{dim: 8}, zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestNewChromemStoreRequiresEmbedder(t *testing.T) {
	_, err := NewChromemStore(Config{}, nil, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestAddAndSearch(t *testing.T) {
	store := newTestStore(t, "")
	ctx := context.Background()

	ids, err := store.AddDocuments(ctx, []Document{
		{ID: "d1", Title: "Go concurrency", Content: "goroutines and channels", Source: "kb://go"},
		{ID: "d2", Title: "Rust ownership", Content: "borrow checker rules", Source: "kb://rust"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d2"}, ids)

	results, err := store.Search(ctx, "goroutines and channels", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// The stub embedder is deterministic, so the exact document text
	// must come back first with the highest similarity.
	assert.Equal(t, "d1", results[0].ID)
	assert.Equal(t, "Go concurrency", results[0].Title)
	assert.Equal(t, "kb://go", results[0].Source)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestAddDocumentsEmptyBatch(t *testing.T) {
	store := newTestStore(t, "")
	_, err := store.AddDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyDocuments)
}

func TestSearchEmptyCollection(t *testing.T) {
	store := newTestStore(t, "")
	results, err := store.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchCapsKAtCollectionSize(t *testing.T) {
	store := newTestStore(t, "")
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, []Document{
		{ID: "only", Title: "t", Content: "single document"},
	})
	require.NoError(t, err)

	results, err := store.Search(ctx, "single document", 50)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestGetAndList(t *testing.T) {
	store := newTestStore(t, "")
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, []Document{
		{ID: "b", Title: "second", Content: "bbb"},
		{ID: "a", Title: "first", Content: "aaa"},
	})
	require.NoError(t, err)

	doc, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "first", doc.Title)
	assert.False(t, doc.CreatedAt.IsZero())

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	docs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "b", docs[1].ID)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestDeleteDocuments(t *testing.T) {
	store := newTestStore(t, "")
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, []Document{
		{ID: "keep", Content: "keep me"},
		{ID: "drop", Content: "drop me"},
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteDocuments(ctx, []string{"drop"}))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = store.Get(ctx, "drop")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalogPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store := newTestStore(t, dir)
	_, err := store.AddDocuments(ctx, []Document{
		{ID: "p1", Title: "persistent", Content: "survives restart", Source: "kb://p"},
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened := newTestStore(t, dir)
	doc, err := reopened.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "persistent", doc.Title)
	assert.Equal(t, "kb://p", doc.Source)

	results, err := reopened.Search(ctx, "survives restart", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p1", results[0].ID)
}

func TestGeneratedIDsWhenMissing(t *testing.T) {
	store := newTestStore(t, "")
	ids, err := store.AddDocuments(context.Background(), []Document{
		{Content: "no id given"},
	})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.NotEmpty(t, ids[0])
}

func TestDeleteDocumentsUnknownID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "")
	_, err := store.AddDocuments(ctx, []Document{
		{ID: "d1", Content: "kept"},
	})
	require.NoError(t, err)

	err = store.DeleteDocuments(ctx, []string{"d1", "nope"})
	assert.ErrorIs(t, err, ErrNotFound)

	// Nothing was deleted.
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
