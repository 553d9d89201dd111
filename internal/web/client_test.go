package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/researchd/internal/config"
)

func enabledConfig(searchURL, readerURL string) config.WebConfig {
	return config.WebConfig{
		Enabled:     true,
		SearchURL:   searchURL,
		ReaderURL:   readerURL,
		ResultCount: 5,
	}
}

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "raft consensus", r.URL.Query().Get("q"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`{"data":[
			{"title":"Raft site","url":"https://raft.github.io","description":"consensus algorithm"},
			{"title":"No URL","description":"dropped"},
			{"title":"Paper","url":"https://example.com/paper","content":"in search of an understandable algorithm"}
		]}`))
	}))
	defer server.Close()

	c, err := NewClient(enabledConfig(server.URL, server.URL), nil)
	require.NoError(t, err)

	results, err := c.Search(context.Background(), "raft consensus", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "https://raft.github.io", results[0].URL)
	assert.Equal(t, "consensus algorithm", results[0].Snippet)
	// Content backfills a missing description.
	assert.Equal(t, "in search of an understandable algorithm", results[1].Snippet)
}

func TestSearchCountLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":[
			{"title":"a","url":"https://a"},
			{"title":"b","url":"https://b"},
			{"title":"c","url":"https://c"}
		]}`))
	}))
	defer server.Close()

	c, err := NewClient(enabledConfig(server.URL, server.URL), nil)
	require.NoError(t, err)

	results, err := c.Search(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	c, err := NewClient(enabledConfig(server.URL, server.URL), nil)
	require.NoError(t, err)

	_, err = c.Search(context.Background(), "q", 5)
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestSearchDisabled(t *testing.T) {
	c, err := NewClient(config.WebConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.False(t, c.Enabled())

	_, err = c.Search(context.Background(), "q", 5)
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = c.Fetch(context.Background(), "https://example.com")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/https://example.com/page", r.URL.Path)
		w.Write([]byte(`{"data":{"title":"Example Page","content":"readable text body"}}`))
	}))
	defer server.Close()

	c, err := NewClient(enabledConfig(server.URL, server.URL), nil)
	require.NoError(t, err)

	page, err := c.Fetch(context.Background(), "https://example.com/page")
	require.NoError(t, err)
	assert.Equal(t, "Example Page", page.Title)
	assert.Equal(t, "readable text body", page.Content)
	assert.Equal(t, "https://example.com/page", page.URL)
}

func TestFetchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer server.Close()

	c, err := NewClient(enabledConfig(server.URL, server.URL), nil)
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), "https://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(config.WebConfig{Enabled: true}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
