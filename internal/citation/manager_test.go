package citation

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/researchd/internal/retrieval"
)

func TestAddAllocatesMonotonicIDs(t *testing.T) {
	m := NewManager(nil)

	first, err := m.Add(retrieval.Candidate{Source: "https://a.example", Title: "A", Content: "alpha"})
	require.NoError(t, err)
	second, err := m.Add(retrieval.Candidate{Source: "https://b.example", Title: "B", Content: "beta"})
	require.NoError(t, err)

	assert.Equal(t, "cite_1", first.ID)
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, "cite_2", second.ID)
	assert.Equal(t, 2, second.Number)
}

func TestAddRejectsEmptySource(t *testing.T) {
	m := NewManager(nil)
	_, err := m.Add(retrieval.Candidate{Title: "no source"})
	assert.ErrorIs(t, err, ErrEmptySource)
}

func TestIDsNeverReusedAfterReset(t *testing.T) {
	m := NewManager(nil)
	_, err := m.Add(retrieval.Candidate{Source: "s1"})
	require.NoError(t, err)

	m.Reset()
	assert.Zero(t, m.Len())

	next, err := m.Add(retrieval.Candidate{Source: "s2"})
	require.NoError(t, err)
	assert.Equal(t, "cite_2", next.ID)
}

func TestDedupKeepsFirstAndIsIdempotent(t *testing.T) {
	m := NewManager(nil)
	_, _ = m.Add(retrieval.Candidate{Source: "https://dup.example", Title: "first copy"})
	_, _ = m.Add(retrieval.Candidate{Source: "https://other.example", Title: "other"})
	_, _ = m.Add(retrieval.Candidate{Source: "https://dup.example", Title: "second copy"})

	m.Dedup()
	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, "first copy", list[0].Title)
	assert.Equal(t, 1, list[0].Number)
	assert.Equal(t, "other", list[1].Title)
	assert.Equal(t, 2, list[1].Number)

	m.Dedup()
	assert.Equal(t, list, m.List())
}

func TestAddAllSkipsSentinelsAndEmptySources(t *testing.T) {
	m := NewManager(nil)
	created := m.AddAll([]retrieval.Candidate{
		{ID: retrieval.SentinelEmptyID, Content: "empty kb"},
		{ID: "real", Source: "https://real.example", Content: "evidence"},
		{ID: "no-source", Content: "orphan"},
	})
	assert.Len(t, created, 1)
	assert.Equal(t, 1, m.Len())
}

func TestExcerptTruncation(t *testing.T) {
	m := NewManager(nil)
	c, err := m.Add(retrieval.Candidate{Source: "s", Content: strings.Repeat("x", 500)})
	require.NoError(t, err)
	assert.Len(t, c.Excerpt, 200)
}

func TestExcerptTruncationKeepsUTF8Intact(t *testing.T) {
	m := NewManager(nil)

	// A three-byte rune straddles the excerpt boundary.
	content := strings.Repeat("x", 199) + "日本語"
	c, err := m.Add(retrieval.Candidate{Source: "s", Content: content})
	require.NoError(t, err)

	assert.True(t, utf8.ValidString(c.Excerpt))
	assert.Equal(t, strings.Repeat("x", 199), c.Excerpt)
}

func TestSplitSentencesPreservesInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		count int
	}{
		{"plain", "One. Two! Three?", 3},
		{"no terminal", "trailing fragment", 1},
		{"cjk", "第一句。第二句！", 2},
		{"empty", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := SplitSentences(tt.input)
			assert.Len(t, parts, tt.count)
			assert.Equal(t, tt.input, strings.Join(parts, ""))
		})
	}
}

func TestAttributeMarksMatchingSentences(t *testing.T) {
	m := NewManager(nil)
	_, _ = m.Add(retrieval.Candidate{
		Source:  "https://raft.example",
		Title:   "raft consensus",
		Content: "raft elects a single leader per term and replicates the log",
	})
	_, _ = m.Add(retrieval.Candidate{
		Source:  "https://gossip.example",
		Title:   "gossip protocol",
		Content: "gossip spreads membership state in probabilistic rounds",
	})

	answer := "Raft elects a leader for each term. The weather is nice today. Gossip spreads membership state."
	attributed := m.Attribute(answer)

	assert.Contains(t, attributed, "Raft elects a leader for each term. [1]")
	assert.Contains(t, attributed, "Gossip spreads membership state. [2]")
	// Unrelated sentence stays unmarked.
	assert.Contains(t, attributed, "The weather is nice today.")
	assert.NotContains(t, attributed, "today. [")
}

func TestAttributeMatchesBeyondExcerpt(t *testing.T) {
	m := NewManager(nil)

	// The overlapping words sit past the excerpt cap, so matching on
	// the excerpt alone would miss this citation entirely.
	filler := strings.Repeat("background narrative without relevance here ", 6)
	require.Greater(t, len(filler), excerptChars)
	_, err := m.Add(retrieval.Candidate{
		Source:  "https://deep.example",
		Content: filler + "quorum intersection guarantees linearizability",
	})
	require.NoError(t, err)

	attributed := m.Attribute("Quorum intersection guarantees linearizability.")
	assert.Contains(t, attributed, "linearizability. [1]")
}

func TestAttributeAtMostOneMarkerPerSentence(t *testing.T) {
	m := NewManager(nil)
	_, _ = m.Add(retrieval.Candidate{Source: "s1", Title: "kafka streams", Content: "kafka streams joins and windows"})
	_, _ = m.Add(retrieval.Candidate{Source: "s2", Title: "kafka brokers", Content: "kafka brokers store partitions"})

	attributed := m.Attribute("Kafka streams run on kafka brokers.")
	assert.Equal(t, 1, strings.Count(attributed, "["))
}

func TestAttributeNoCitationsPassthrough(t *testing.T) {
	m := NewManager(nil)
	assert.Equal(t, "Unchanged text.", m.Attribute("Unchanged text."))
}

func TestAttributeDoesNotMutateCitations(t *testing.T) {
	m := NewManager(nil)
	_, _ = m.Add(retrieval.Candidate{Source: "s", Title: "etcd", Content: "etcd stores cluster state"})
	before := m.List()
	_ = m.Attribute("etcd stores cluster state reliably.")
	assert.Equal(t, before, m.List())
}

func TestFormatNumbered(t *testing.T) {
	m := NewManager(nil)
	_, _ = m.Add(retrieval.Candidate{Source: "https://a.example", Title: "Alpha"})
	_, _ = m.Add(retrieval.Candidate{Source: "https://b.example"})

	out := m.Format(StyleNumbered)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "[1] Alpha - https://a.example", lines[0])
	// Missing titles fall back to the source.
	assert.Equal(t, "[2] https://b.example - https://b.example", lines[1])
}

func TestFormatAPA(t *testing.T) {
	restore := timeNow
	timeNow = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	defer func() { timeNow = restore }()

	m := NewManager(nil)
	_, _ = m.Add(retrieval.Candidate{Source: "https://a.example", Title: "Alpha"})

	assert.Equal(t, "Alpha. (2026). Retrieved from https://a.example", m.Format(StyleAPA))
}

func TestExportBibTeX(t *testing.T) {
	restore := timeNow
	timeNow = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	defer func() { timeNow = restore }()

	m := NewManager(nil)
	_, _ = m.Add(retrieval.Candidate{Source: "https://a.example", Title: "100% Pure {Go}"})

	out := m.ExportBibTeX()
	assert.Contains(t, out, "@misc{cite_1,")
	assert.Contains(t, out, `title = {100\% Pure \{Go\}}`)
	assert.Contains(t, out, `howpublished = {\url{https://a.example}}`)
	assert.Contains(t, out, "year = {2026}")
}

func TestExportRIS(t *testing.T) {
	m := NewManager(nil)
	_, _ = m.Add(retrieval.Candidate{Source: "https://a.example", Title: "Alpha"})

	out := m.ExportRIS()
	assert.True(t, strings.HasPrefix(out, "TY  - ELEC\n"))
	assert.Contains(t, out, "TI  - Alpha\n")
	assert.Contains(t, out, "UR  - https://a.example\n")
	assert.Contains(t, out, "ER  - \n")
}
