// Package web provides web search and page fetching for subqueries the
// knowledge base cannot answer.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/researchd/internal/config"
)

var tracer = otel.Tracer("researchd.web")

// Sentinel errors for web operations.
var (
	// ErrInvalidConfig indicates invalid web client configuration.
	ErrInvalidConfig = errors.New("invalid web configuration")

	// ErrDisabled indicates web access is turned off in configuration.
	ErrDisabled = errors.New("web access is disabled")

	// ErrEmptyQuery indicates an empty search query.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrNoResults indicates the search returned nothing usable.
	ErrNoResults = errors.New("no search results")
)

// Result is one web search hit.
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Page is fetched page content in readable form.
type Page struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Client talks to reader-style search and fetch services (the API
// shape of s.jina.ai and r.jina.ai).
type Client struct {
	cfg    config.WebConfig
	client *http.Client
	logger *zap.Logger
}

// NewClient creates a web client.
func NewClient(cfg config.WebConfig, logger *zap.Logger) (*Client, error) {
	if cfg.Enabled {
		if cfg.SearchURL == "" {
			return nil, fmt.Errorf("%w: search URL is required", ErrInvalidConfig)
		}
		if cfg.ReaderURL == "" {
			return nil, fmt.Errorf("%w: reader URL is required", ErrInvalidConfig)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := time.Duration(cfg.Timeout)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

// Enabled reports whether web access is configured.
func (c *Client) Enabled() bool { return c.cfg.Enabled }

type searchResponse struct {
	Data []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		Content     string `json:"content"`
		Description string `json:"description"`
	} `json:"data"`
}

type readerResponse struct {
	Data struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	} `json:"data"`
}

// Search runs a web search and returns up to count results.
func (c *Client) Search(ctx context.Context, query string, count int) ([]Result, error) {
	if !c.cfg.Enabled {
		return nil, ErrDisabled
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if count <= 0 {
		count = c.cfg.ResultCount
	}
	if count <= 0 {
		count = 5
	}

	ctx, span := tracer.Start(ctx, "Client.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("count", count))

	endpoint := strings.TrimRight(c.cfg.SearchURL, "/") + "/?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("calling search service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("search service returned %d: %s", resp.StatusCode, payload)
		span.RecordError(err)
		return nil, err
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	results := make([]Result, 0, count)
	for _, item := range parsed.Data {
		if item.URL == "" {
			continue
		}
		snippet := item.Description
		if snippet == "" {
			snippet = item.Content
		}
		results = append(results, Result{URL: item.URL, Title: item.Title, Snippet: snippet})
		if len(results) == count {
			break
		}
	}
	if len(results) == 0 {
		return nil, ErrNoResults
	}

	span.SetAttributes(attribute.Int("results", len(results)))
	c.logger.Debug("web search complete",
		zap.String("query", query),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// Fetch retrieves a page through the reader service and returns it as
// readable text.
func (c *Client) Fetch(ctx context.Context, pageURL string) (Page, error) {
	if !c.cfg.Enabled {
		return Page{}, ErrDisabled
	}
	if strings.TrimSpace(pageURL) == "" {
		return Page{}, fmt.Errorf("%w: page URL", ErrEmptyQuery)
	}

	ctx, span := tracer.Start(ctx, "Client.Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("url", pageURL))

	endpoint := strings.TrimRight(c.cfg.ReaderURL, "/") + "/" + pageURL
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Page{}, fmt.Errorf("creating fetch request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return Page{}, fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("reader service returned %d: %s", resp.StatusCode, payload)
		span.RecordError(err)
		return Page{}, err
	}

	var parsed readerResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		span.RecordError(err)
		return Page{}, fmt.Errorf("decoding reader response: %w", err)
	}

	page := Page{URL: pageURL, Title: parsed.Data.Title, Content: parsed.Data.Content}
	c.logger.Debug("page fetched",
		zap.String("url", pageURL),
		zap.Int("content_chars", len(page.Content)),
	)
	return page, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey.IsSet() {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey.Value())
	}
}
