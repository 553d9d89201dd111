package reranker

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/researchd/internal/retrieval"
)

// HybridReranker prefers a primary reranker and falls back to the
// lexical one when the primary fails. It can also blend both scores.
type HybridReranker struct {
	primary  Reranker
	fallback *LexicalReranker
	// blendRatio is the primary reranker's share in DualRerank.
	blendRatio float64
	logger     *zap.Logger
}

// NewHybridReranker creates a hybrid reranker. primary may be nil, in
// which case only lexical reranking is used. blendRatio outside (0, 1]
// defaults to 0.7.
func NewHybridReranker(primary Reranker, blendRatio float64, logger *zap.Logger) *HybridReranker {
	if blendRatio <= 0 || blendRatio > 1 {
		blendRatio = 0.7
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HybridReranker{
		primary:    primary,
		fallback:   NewLexicalReranker(),
		blendRatio: blendRatio,
		logger:     logger,
	}
}

// Rerank tries the primary reranker and transparently falls back to
// lexical scoring on failure. Callers cannot tell which path ran
// except through logs.
func (r *HybridReranker) Rerank(ctx context.Context, query string, candidates []retrieval.Candidate, topK int) ([]retrieval.Candidate, error) {
	if r.primary != nil {
		out, err := r.primary.Rerank(ctx, query, candidates, topK)
		if err == nil {
			return out, nil
		}
		r.logger.Warn("primary reranker failed, falling back to lexical", zap.Error(err))
	}
	return r.fallback.Rerank(ctx, query, candidates, topK)
}

// DualRerank runs both rerankers and blends their scores over the
// union of returned candidates:
//
//	score = ratio * primary + (1 - ratio) * lexical
//
// A candidate missing from one side contributes zero for that side.
// If the primary reranker fails or is absent, DualRerank degrades to
// plain lexical reranking.
func (r *HybridReranker) DualRerank(ctx context.Context, query string, candidates []retrieval.Candidate, topK int) ([]retrieval.Candidate, error) {
	lexical, err := r.fallback.Rerank(ctx, query, candidates, 0)
	if err != nil {
		return nil, err
	}

	if r.primary == nil {
		if topK > 0 && len(lexical) > topK {
			lexical = lexical[:topK]
		}
		return lexical, nil
	}

	primary, err := r.primary.Rerank(ctx, query, candidates, 0)
	if err != nil {
		r.logger.Warn("primary reranker failed, dual rerank degraded to lexical", zap.Error(err))
		if topK > 0 && len(lexical) > topK {
			lexical = lexical[:topK]
		}
		return lexical, nil
	}

	merged := make(map[string]retrieval.Candidate)
	for _, c := range primary {
		c.RerankScore = r.blendRatio * c.RerankScore
		merged[c.ID] = c
	}
	for _, c := range lexical {
		if existing, ok := merged[c.ID]; ok {
			existing.RerankScore += (1 - r.blendRatio) * c.RerankScore
			merged[c.ID] = existing
		} else {
			c.RerankScore = (1 - r.blendRatio) * c.RerankScore
			merged[c.ID] = c
		}
	}

	out := make([]retrieval.Candidate, 0, len(merged))
	for _, c := range merged {
		out = append(out, c)
	}
	sortByRerankScore(out)
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// Close closes the primary reranker if present.
func (r *HybridReranker) Close() error {
	if r.primary != nil {
		return r.primary.Close()
	}
	return nil
}

var (
	_ Reranker = (*LexicalReranker)(nil)
	_ Reranker = (*RemoteReranker)(nil)
	_ Reranker = (*HybridReranker)(nil)
)
