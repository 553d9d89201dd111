// Package reranker re-scores retrieval candidates against the query to
// improve precision before evidence is handed to the planner.
package reranker

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/researchd/internal/retrieval"
)

// Sentinel errors for reranking operations.
var (
	// ErrNilContext is returned when a nil context is passed to Rerank.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrEmptyQuery is returned for an empty query.
	ErrEmptyQuery = errors.New("query cannot be empty")
)

// Reranker re-orders candidates by relevance to the query.
type Reranker interface {
	// Rerank re-scores candidates and returns them sorted by
	// descending RerankScore, limited to topK. Input candidates are
	// never mutated. topK <= 0 keeps all candidates.
	Rerank(ctx context.Context, query string, candidates []retrieval.Candidate, topK int) ([]retrieval.Candidate, error)

	// Close releases any resources held by the reranker.
	Close() error
}
