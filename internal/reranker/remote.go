package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/researchd/internal/config"
	"github.com/fyrsmithlabs/researchd/internal/retrieval"
)

var remoteTracer = otel.Tracer("researchd.reranker.remote")

// ErrInvalidConfig indicates invalid remote reranker configuration.
var ErrInvalidConfig = errors.New("invalid reranker configuration")

// RemoteReranker calls an HTTP reranking service with the
// cross-encoder API shape used by Jina and TEI deployments:
// POST /v1/rerank with query and documents, indexed relevance scores
// in response.
type RemoteReranker struct {
	cfg    config.RerankConfig
	client *http.Client
	logger *zap.Logger
}

// NewRemoteReranker creates a reranker backed by an HTTP service.
func NewRemoteReranker(cfg config.RerankConfig, logger *zap.Logger) (*RemoteReranker, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := time.Duration(cfg.Timeout)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteReranker{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank implements Reranker.
func (r *RemoteReranker) Rerank(ctx context.Context, query string, candidates []retrieval.Candidate, topK int) ([]retrieval.Candidate, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if len(candidates) == 0 {
		return []retrieval.Candidate{}, nil
	}

	ctx, span := remoteTracer.Start(ctx, "RemoteReranker.Rerank")
	defer span.End()
	span.SetAttributes(
		attribute.Int("candidates", len(candidates)),
		attribute.Int("top_k", topK),
	)

	documents := make([]string, len(candidates))
	for i, c := range candidates {
		documents[i] = c.Content
	}

	body, err := json.Marshal(rerankRequest{
		Model:     r.cfg.Model,
		Query:     query,
		Documents: documents,
		TopN:      topK,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.APIKey.IsSet() {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey.Value())
	}

	resp, err := r.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("calling rerank service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("rerank service returned %d: %s", resp.StatusCode, payload)
		span.RecordError(err)
		return nil, err
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("decoding rerank response: %w", err)
	}

	out := make([]retrieval.Candidate, 0, len(parsed.Results))
	for _, result := range parsed.Results {
		if result.Index < 0 || result.Index >= len(candidates) {
			r.logger.Warn("rerank service returned out-of-range index",
				zap.Int("index", result.Index),
				zap.Int("candidates", len(candidates)),
			)
			continue
		}
		c := candidates[result.Index]
		c.OriginalScore = c.Score
		c.RerankScore = result.RelevanceScore
		out = append(out, c)
	}

	sortByRerankScore(out)
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}

	span.SetAttributes(attribute.Int("results", len(out)))
	return out, nil
}

// Close implements Reranker.
func (r *RemoteReranker) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
