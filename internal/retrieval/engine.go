// Package retrieval implements hybrid semantic and keyword search over
// the knowledge base, plus the routing signal that decides between
// internal evidence and web search.
package retrieval

import (
	"context"
	"errors"
	"math"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/researchd/internal/config"
	"github.com/fyrsmithlabs/researchd/internal/vectorstore"
)

var tracer = otel.Tracer("researchd.retrieval")

// Sentinel errors for retrieval operations.
var (
	// ErrEmptyQuery indicates an empty search query.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrInvalidEngine indicates missing engine dependencies.
	ErrInvalidEngine = errors.New("invalid retrieval engine configuration")
)

// Engine performs hybrid retrieval over a vector store.
//
// Backend failures degrade rather than fail: a store or embedding
// error yields an empty result set with a logged warning, so a flaky
// knowledge base routes the subquery to web search instead of aborting
// the research session.
type Engine struct {
	store  vectorstore.Store
	cfg    config.RetrievalConfig
	logger *zap.Logger
}

// NewEngine creates a retrieval engine over the given store.
func NewEngine(store vectorstore.Store, cfg config.RetrievalConfig, logger *zap.Logger) (*Engine, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 20
	}
	if cfg.KeywordWeight < 0 || cfg.KeywordWeight > 1 {
		return nil, errors.New("keyword weight must be in [0, 1]")
	}
	return &Engine{store: store, cfg: cfg, logger: logger}, nil
}

// similarityFromCosine converts a cosine similarity into a bounded
// score via the Euclidean distance between unit vectors:
//
//	d = sqrt(2 - 2s), score = 1 / (1 + d)
//
// An exact match scores 1.0 and the score decays smoothly toward 0.
func similarityFromCosine(s float32) float64 {
	d := math.Sqrt(math.Max(0, 2-2*float64(s)))
	return 1 / (1 + d)
}

// SemanticSearch performs vector similarity search and returns up to k
// candidates with distance-derived scores.
func (e *Engine) SemanticSearch(ctx context.Context, query string, k int) ([]Candidate, error) {
	ctx, span := tracer.Start(ctx, "Engine.SemanticSearch")
	defer span.End()

	if query == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = e.cfg.TopK
	}
	span.SetAttributes(attribute.Int("k", k))

	results, err := e.store.Search(ctx, query, k)
	if err != nil {
		e.logger.Warn("semantic search degraded to empty results", zap.Error(err))
		span.RecordError(err)
		return []Candidate{}, nil
	}

	candidates := make([]Candidate, len(results))
	for i, r := range results {
		candidates[i] = Candidate{
			ID:       r.ID,
			Title:    r.Title,
			Content:  r.Content,
			Source:   r.Source,
			Score:    similarityFromCosine(r.Score),
			Metadata: r.Metadata,
		}
	}

	span.SetAttributes(attribute.Int("results", len(candidates)))
	return candidates, nil
}

// KeywordSearch scores every indexed document lexically against the
// query. Title matches count double. Scores are normalized by the
// best match so the top candidate always scores 1.0.
func (e *Engine) KeywordSearch(ctx context.Context, query string, k int) ([]Candidate, error) {
	ctx, span := tracer.Start(ctx, "Engine.KeywordSearch")
	defer span.End()

	if query == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = e.cfg.TopK
	}

	docs, err := e.store.List(ctx)
	if err != nil {
		e.logger.Warn("keyword search degraded to empty results", zap.Error(err))
		span.RecordError(err)
		return []Candidate{}, nil
	}

	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return []Candidate{}, nil
	}

	type scored struct {
		doc vectorstore.Document
		raw float64
	}
	var hits []scored
	var best float64
	for _, doc := range docs {
		raw := float64(CountOccurrences(queryTokens, doc.Content)) +
			2*float64(CountOccurrences(queryTokens, doc.Title))
		if raw <= 0 {
			continue
		}
		if raw > best {
			best = raw
		}
		hits = append(hits, scored{doc: doc, raw: raw})
	}

	candidates := make([]Candidate, len(hits))
	for i, h := range hits {
		candidates[i] = Candidate{
			ID:       h.doc.ID,
			Title:    h.doc.Title,
			Content:  h.doc.Content,
			Source:   h.doc.Source,
			Score:    h.raw / best,
			Metadata: h.doc.Metadata,
		}
	}
	sortByScore(candidates)
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	span.SetAttributes(attribute.Int("results", len(candidates)))
	return candidates, nil
}

// HybridSearch blends semantic and keyword scores over the union of
// both result sets:
//
//	score = (1 - w) * semantic + w * keyword
//
// where w is the configured keyword weight. A candidate absent from
// one branch contributes zero for that branch. An empty knowledge
// base yields a single sentinel candidate with score zero, which the
// router treats as below any threshold.
func (e *Engine) HybridSearch(ctx context.Context, query string, k int) ([]Candidate, error) {
	ctx, span := tracer.Start(ctx, "Engine.HybridSearch")
	defer span.End()

	if query == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = e.cfg.TopK
	}

	count, err := e.store.Count(ctx)
	if err != nil {
		e.logger.Warn("hybrid search degraded to empty knowledge base", zap.Error(err))
		span.RecordError(err)
		count = 0
	}
	if count == 0 {
		span.SetAttributes(attribute.Bool("empty_kb", true))
		return []Candidate{{
			ID:      SentinelEmptyID,
			Content: "The knowledge base contains no documents.",
			Source:  "system",
			Score:   0,
		}}, nil
	}

	semantic, err := e.SemanticSearch(ctx, query, k)
	if err != nil {
		return nil, err
	}
	lexical, err := e.KeywordSearch(ctx, query, k)
	if err != nil {
		return nil, err
	}

	w := e.cfg.KeywordWeight
	merged := make(map[string]Candidate)
	for _, c := range semantic {
		c.Score = (1 - w) * c.Score
		merged[c.ID] = c
	}
	for _, c := range lexical {
		if existing, ok := merged[c.ID]; ok {
			existing.Score += w * c.Score
			merged[c.ID] = existing
		} else {
			c.Score = w * c.Score
			merged[c.ID] = c
		}
	}

	candidates := make([]Candidate, 0, len(merged))
	for _, c := range merged {
		candidates = append(candidates, c)
	}
	sortByScore(candidates)
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	span.SetAttributes(attribute.Int("results", len(candidates)))
	e.logger.Debug("hybrid search complete",
		zap.String("query", query),
		zap.Int("semantic", len(semantic)),
		zap.Int("lexical", len(lexical)),
		zap.Int("merged", len(candidates)),
	)
	return candidates, nil
}

// SearchSimilar finds documents similar to an already indexed one,
// excluding the document itself.
func (e *Engine) SearchSimilar(ctx context.Context, id string, k int) ([]Candidate, error) {
	ctx, span := tracer.Start(ctx, "Engine.SearchSimilar")
	defer span.End()

	if k <= 0 {
		k = e.cfg.TopK
	}

	doc, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// Fetch one extra so the source document can be dropped.
	candidates, err := e.HybridSearch(ctx, doc.Content, k+1)
	if err != nil {
		return nil, err
	}

	filtered := candidates[:0]
	for _, c := range candidates {
		if c.ID == id {
			continue
		}
		filtered = append(filtered, c)
	}
	if len(filtered) > k {
		filtered = filtered[:k]
	}
	return filtered, nil
}

// ShouldUseKnowledgeBase applies the routing policy: the knowledge
// base wins when the best candidate scores at or above the configured
// threshold. The boundary is inclusive.
func (e *Engine) ShouldUseKnowledgeBase(candidates []Candidate) bool {
	best := MaxScore(candidates)
	return best >= e.cfg.RoutingThreshold && best > 0
}

// MaxScore returns the highest candidate score, or 0 for an empty set.
func MaxScore(candidates []Candidate) float64 {
	var best float64
	for _, c := range candidates {
		if c.IsSentinel() {
			continue
		}
		if c.Score > best {
			best = c.Score
		}
	}
	return best
}

// sortByScore sorts candidates by descending score with ID as a
// deterministic tiebreaker.
func sortByScore(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ID < candidates[j].ID
	})
}
