// Package summarize condenses fetched content before it enters the
// evidence context, preferring the model and falling back to
// extractive selection when the model is unavailable.
package summarize

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/researchd/internal/citation"
	"github.com/fyrsmithlabs/researchd/internal/planner"
	"github.com/fyrsmithlabs/researchd/internal/retrieval"
)

// ErrEmptyContent indicates there is nothing to summarize.
var ErrEmptyContent = errors.New("content cannot be empty")

// defaultMaxChars bounds extractive summaries when no cap is given.
const defaultMaxChars = 1000

// Summarizer produces query-focused summaries.
type Summarizer struct {
	planner planner.Planner
	logger  *zap.Logger
}

// New creates a summarizer. p may be nil, in which case only the
// extractive path is used.
func New(p planner.Planner, logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{planner: p, logger: logger}
}

// Summarize condenses content with respect to the query. Model
// failures degrade to the extractive path rather than erroring, so
// summarization never blocks the research loop.
func (s *Summarizer) Summarize(ctx context.Context, query, content string, maxChars int) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyContent
	}
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	if len(content) <= maxChars {
		return content, nil
	}

	if s.planner != nil {
		summary, err := s.planner.Summarize(ctx, query, content)
		if err == nil && strings.TrimSpace(summary) != "" {
			return summary, nil
		}
		if err != nil {
			s.logger.Warn("model summarization failed, using extractive fallback", zap.Error(err))
		}
	}
	return Extract(query, content, maxChars), nil
}

// Extract picks the sentences most relevant to the query, in their
// original order, until the character budget is spent. Sentences with
// no query overlap are scored by position so a query-free extraction
// still prefers the opening of the document.
func Extract(query, content string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}

	sentences := citation.SplitSentences(content)
	if len(sentences) == 0 {
		return ""
	}

	queryTokens := retrieval.Tokenize(query)

	type scored struct {
		index int
		text  string
		score float64
	}
	items := make([]scored, 0, len(sentences))
	for i, sentence := range sentences {
		overlap := float64(retrieval.CountOccurrences(queryTokens, sentence))
		// Earlier sentences break ties.
		position := 1.0 / float64(i+1)
		items = append(items, scored{index: i, text: sentence, score: overlap + 0.01*position})
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].score > items[j].score })

	budget := maxChars
	chosen := make([]scored, 0, len(items))
	for _, item := range items {
		text := strings.TrimSpace(item.text)
		if text == "" {
			continue
		}
		if len(text)+1 > budget {
			continue
		}
		budget -= len(text) + 1
		chosen = append(chosen, scored{index: item.index, text: text})
	}
	if len(chosen) == 0 {
		// Nothing fits whole; hard-truncate the best sentence.
		best := strings.TrimSpace(items[0].text)
		if len(best) > maxChars {
			best = best[:maxChars]
		}
		return best
	}

	sort.Slice(chosen, func(i, j int) bool { return chosen[i].index < chosen[j].index })

	parts := make([]string, len(chosen))
	for i, item := range chosen {
		parts[i] = item.text
	}
	return strings.Join(parts, " ")
}
