package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/researchd/internal/config"
	"github.com/fyrsmithlabs/researchd/internal/vectorstore"
)

// fakeStore returns canned results so blend math can be asserted
// exactly without an embedding backend.
type fakeStore struct {
	docs    []vectorstore.Document
	results []vectorstore.SearchResult
	fail    bool
}

func (f *fakeStore) AddDocuments(_ context.Context, docs []vectorstore.Document) ([]string, error) {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	f.docs = append(f.docs, docs...)
	return ids, nil
}

func (f *fakeStore) Search(_ context.Context, _ string, k int) ([]vectorstore.SearchResult, error) {
	if f.fail {
		return nil, errors.New("backend unavailable")
	}
	if k > len(f.results) {
		k = len(f.results)
	}
	return f.results[:k], nil
}

func (f *fakeStore) Get(_ context.Context, id string) (vectorstore.Document, error) {
	for _, d := range f.docs {
		if d.ID == id {
			return d, nil
		}
	}
	return vectorstore.Document{}, vectorstore.ErrNotFound
}

func (f *fakeStore) List(_ context.Context) ([]vectorstore.Document, error) {
	if f.fail {
		return nil, errors.New("backend unavailable")
	}
	return f.docs, nil
}

func (f *fakeStore) Count(_ context.Context) (int, error) {
	if f.fail {
		return 0, errors.New("backend unavailable")
	}
	return len(f.docs), nil
}

func (f *fakeStore) DeleteDocuments(_ context.Context, _ []string) error { return nil }
func (f *fakeStore) Close() error                                        { return nil }

func testConfig() config.RetrievalConfig {
	return config.RetrievalConfig{
		TopK:             20,
		RerankTopK:       5,
		KeywordWeight:    0.3,
		RoutingThreshold: 0.7,
	}
}

func TestNewEngineValidation(t *testing.T) {
	_, err := NewEngine(nil, testConfig(), nil)
	require.Error(t, err)

	cfg := testConfig()
	cfg.KeywordWeight = 1.5
	_, err = NewEngine(&fakeStore{}, cfg, nil)
	require.Error(t, err)
}

func TestSemanticSearchConvertsScores(t *testing.T) {
	store := &fakeStore{
		results: []vectorstore.SearchResult{
			{Document: vectorstore.Document{ID: "a", Content: "x"}, Score: 1.0},
			{Document: vectorstore.Document{ID: "b", Content: "y"}, Score: 0.5},
		},
	}
	engine, err := NewEngine(store, testConfig(), nil)
	require.NoError(t, err)

	candidates, err := engine.SemanticSearch(context.Background(), "query", 2)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	// Cosine similarity 1.0 is a zero-distance match.
	assert.InDelta(t, 1.0, candidates[0].Score, 1e-9)
	// Cosine 0.5 maps to 1/(1+1) = 0.5 for unit vectors.
	assert.InDelta(t, 0.5, candidates[1].Score, 1e-9)
}

func TestSemanticSearchDegradesOnBackendFailure(t *testing.T) {
	engine, err := NewEngine(&fakeStore{fail: true}, testConfig(), nil)
	require.NoError(t, err)

	candidates, err := engine.SemanticSearch(context.Background(), "query", 5)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestKeywordSearchWeightsTitleDouble(t *testing.T) {
	store := &fakeStore{docs: []vectorstore.Document{
		{ID: "title-hit", Title: "kubernetes operators", Content: "nothing relevant here"},
		{ID: "body-hit", Title: "unrelated", Content: "kubernetes mentioned once"},
	}}
	engine, err := NewEngine(store, testConfig(), nil)
	require.NoError(t, err)

	candidates, err := engine.KeywordSearch(context.Background(), "kubernetes", 10)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	// Title occurrence counts double, so the title hit normalizes to
	// 1.0 and the body hit to 0.5.
	assert.Equal(t, "title-hit", candidates[0].ID)
	assert.InDelta(t, 1.0, candidates[0].Score, 1e-9)
	assert.Equal(t, "body-hit", candidates[1].ID)
	assert.InDelta(t, 0.5, candidates[1].Score, 1e-9)
}

func TestKeywordSearchNoMatches(t *testing.T) {
	store := &fakeStore{docs: []vectorstore.Document{
		{ID: "d", Title: "alpha", Content: "beta"},
	}}
	engine, err := NewEngine(store, testConfig(), nil)
	require.NoError(t, err)

	candidates, err := engine.KeywordSearch(context.Background(), "gamma", 10)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestHybridSearchBlendsUnion(t *testing.T) {
	store := &fakeStore{
		docs: []vectorstore.Document{
			{ID: "both", Title: "rust", Content: "rust rust"},
			{ID: "lexical-only", Title: "", Content: "rust"},
		},
		results: []vectorstore.SearchResult{
			{Document: vectorstore.Document{ID: "both", Content: "rust rust"}, Score: 1.0},
			{Document: vectorstore.Document{ID: "semantic-only", Content: "crab language"}, Score: 0.5},
		},
	}
	engine, err := NewEngine(store, testConfig(), nil)
	require.NoError(t, err)

	candidates, err := engine.HybridSearch(context.Background(), "rust", 10)
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	byID := map[string]float64{}
	for _, c := range candidates {
		byID[c.ID] = c.Score
	}

	// both: semantic 1.0, lexical raw 4 (2 body + 2*1 title) = max.
	assert.InDelta(t, 0.7*1.0+0.3*1.0, byID["both"], 1e-9)
	// semantic-only: lexical branch contributes zero.
	assert.InDelta(t, 0.7*0.5, byID["semantic-only"], 1e-9)
	// lexical-only: raw 1 of max 4, semantic branch contributes zero.
	assert.InDelta(t, 0.3*0.25, byID["lexical-only"], 1e-9)

	assert.Equal(t, "both", candidates[0].ID)
}

func TestHybridSearchEmptyKnowledgeBase(t *testing.T) {
	engine, err := NewEngine(&fakeStore{}, testConfig(), nil)
	require.NoError(t, err)

	candidates, err := engine.HybridSearch(context.Background(), "anything", 5)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.True(t, candidates[0].IsSentinel())
	assert.Zero(t, candidates[0].Score)
}

func TestSearchSimilarExcludesSelf(t *testing.T) {
	store := &fakeStore{
		docs: []vectorstore.Document{
			{ID: "self", Title: "go", Content: "go modules"},
			{ID: "other", Title: "go", Content: "go workspaces"},
		},
		results: []vectorstore.SearchResult{
			{Document: vectorstore.Document{ID: "self", Content: "go modules"}, Score: 1.0},
			{Document: vectorstore.Document{ID: "other", Content: "go workspaces"}, Score: 0.9},
		},
	}
	engine, err := NewEngine(store, testConfig(), nil)
	require.NoError(t, err)

	candidates, err := engine.SearchSimilar(context.Background(), "self", 5)
	require.NoError(t, err)
	for _, c := range candidates {
		assert.NotEqual(t, "self", c.ID)
	}
	require.NotEmpty(t, candidates)
	assert.Equal(t, "other", candidates[0].ID)
}

func TestShouldUseKnowledgeBaseInclusiveBoundary(t *testing.T) {
	engine, err := NewEngine(&fakeStore{}, testConfig(), nil)
	require.NoError(t, err)

	tests := []struct {
		name       string
		candidates []Candidate
		want       bool
	}{
		{"above threshold", []Candidate{{ID: "a", Score: 0.9}}, true},
		{"exactly at threshold", []Candidate{{ID: "a", Score: 0.7}}, true},
		{"below threshold", []Candidate{{ID: "a", Score: 0.69}}, false},
		{"empty set", nil, false},
		{"sentinel only", []Candidate{{ID: SentinelEmptyID, Score: 0}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.ShouldUseKnowledgeBase(tt.candidates))
		})
	}
}

func TestEmptyQueryRejected(t *testing.T) {
	engine, err := NewEngine(&fakeStore{}, testConfig(), nil)
	require.NoError(t, err)

	_, err = engine.SemanticSearch(context.Background(), "", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)
	_, err = engine.KeywordSearch(context.Background(), "", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)
	_, err = engine.HybridSearch(context.Background(), "", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}
