package reranker

import (
	"context"
	"sort"

	"github.com/fyrsmithlabs/researchd/internal/retrieval"
)

// Length penalty boundaries. Very short passages rarely carry enough
// context to answer anything, and very long ones dilute relevance.
const (
	shortContentChars = 50
	longContentChars  = 2000
)

// LexicalReranker scores candidates with a term-based relevance model.
// It needs no external service, so it doubles as the fallback when the
// remote reranker is unreachable.
//
// The score combines four signals; title hits count double throughout:
//
//	0.4 * coverage          (title + body hits) / query terms
//	0.3 * match             (2*title + body hits) / (query terms + 1)
//	0.2 * density           body-hit share of the body tokens, capped
//	0.1 * length penalty    0.5 short, 0.8 long, 1.0 otherwise
//
// and is capped at 1.0.
type LexicalReranker struct{}

// NewLexicalReranker creates a LexicalReranker.
func NewLexicalReranker() *LexicalReranker {
	return &LexicalReranker{}
}

// Rerank implements Reranker.
func (r *LexicalReranker) Rerank(ctx context.Context, query string, candidates []retrieval.Candidate, topK int) ([]retrieval.Candidate, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if len(candidates) == 0 {
		return []retrieval.Candidate{}, nil
	}

	queryTokens := retrieval.Tokenize(query)

	out := make([]retrieval.Candidate, len(candidates))
	for i, c := range candidates {
		out[i] = c
		out[i].OriginalScore = c.Score
		out[i].RerankScore = Score(queryTokens, c)
	}

	sortByRerankScore(out)
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// Close implements Reranker. LexicalReranker holds no resources.
func (r *LexicalReranker) Close() error { return nil }

// Score computes the lexical relevance of a candidate for the given
// query tokens. The result is in [0, 1].
func Score(queryTokens []string, c retrieval.Candidate) float64 {
	if len(queryTokens) == 0 {
		return 0
	}

	titleSet := retrieval.TokenSet(c.Title)
	contentTokens := retrieval.Tokenize(c.Content)
	contentSet := make(map[string]struct{}, len(contentTokens))
	for _, tok := range contentTokens {
		contentSet[tok] = struct{}{}
	}

	var titleHits, contentHits int
	seen := make(map[string]struct{}, len(queryTokens))
	for _, tok := range queryTokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}

		if _, ok := titleSet[tok]; ok {
			titleHits++
		}
		if _, ok := contentSet[tok]; ok {
			contentHits++
		}
	}

	q := float64(len(seen))
	coverage := float64(titleHits+contentHits) / q
	match := float64(2*titleHits+contentHits) / (q + 1)

	var density float64
	if len(contentTokens) > 0 {
		density = float64(contentHits) / float64(len(contentTokens))
	}
	if density > 0.1 {
		density = 0.1
	}

	lengthPenalty := 1.0
	switch {
	case len(c.Content) < shortContentChars:
		lengthPenalty = 0.5
	case len(c.Content) > longContentChars:
		lengthPenalty = 0.8
	}

	score := 0.4*coverage + 0.3*match + 0.2*density*10 + 0.1*lengthPenalty
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// sortByRerankScore sorts by descending RerankScore with ID as a
// deterministic tiebreaker.
func sortByRerankScore(candidates []retrieval.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].RerankScore != candidates[j].RerankScore {
			return candidates[i].RerankScore > candidates[j].RerankScore
		}
		return candidates[i].ID < candidates[j].ID
	})
}
