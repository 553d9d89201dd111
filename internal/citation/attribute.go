package citation

import (
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/researchd/internal/retrieval"
)

// attributionThreshold is the minimum weighted token overlap between a
// sentence and a citation for the sentence to earn a marker.
const attributionThreshold = 2

// Attribute inserts [N] markers into the answer, attaching each
// sentence to the best-matching citation. A sentence gets at most one
// marker, and only when its weighted overlap with the citation reaches
// the threshold (body tokens count once, title tokens twice). Matching
// runs against the full cited body, not the capped display excerpt.
// The manager's citations are read but never modified.
func (m *Manager) Attribute(answer string) string {
	citations := m.List()
	if answer == "" || len(citations) == 0 {
		return answer
	}

	type indexed struct {
		number int
		title  map[string]struct{}
		body   map[string]struct{}
	}
	index := make([]indexed, len(citations))
	for i, c := range citations {
		body := c.content
		if body == "" {
			body = c.Excerpt
		}
		index[i] = indexed{
			number: c.Number,
			title:  retrieval.TokenSet(c.Title),
			body:   retrieval.TokenSet(body),
		}
	}

	var b strings.Builder
	for _, sentence := range SplitSentences(answer) {
		tokens := retrieval.Tokenize(sentence)
		bestNumber := 0
		bestScore := 0
		for _, c := range index {
			score := 0
			for _, tok := range tokens {
				if _, ok := c.body[tok]; ok {
					score++
				}
				if _, ok := c.title[tok]; ok {
					score += 2
				}
			}
			if score > bestScore {
				bestScore = score
				bestNumber = c.number
			}
		}

		b.WriteString(sentence)
		if bestScore >= attributionThreshold {
			b.WriteString(" [")
			b.WriteString(strconv.Itoa(bestNumber))
			b.WriteString("]")
		}
	}
	return b.String()
}

// SplitSentences splits text after terminal punctuation (., !, ?, and
// their CJK equivalents). Concatenating the returned sentences
// reproduces the input exactly.
func SplitSentences(text string) []string {
	var sentences []string
	start := 0
	for pos, r := range text {
		if isTerminal(r) {
			end := pos + len(string(r))
			sentences = append(sentences, text[start:end])
			start = end
		}
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}

// isTerminal reports whether the rune ends a sentence.
func isTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}
