// Package citation tracks evidence sources and attributes answer
// sentences to them with inline reference markers.
package citation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/researchd/internal/retrieval"
)

// Sentinel errors for citation operations.
var (
	// ErrEmptySource indicates a citation without a source.
	ErrEmptySource = errors.New("citation source cannot be empty")

	// ErrNotFound indicates an unknown citation ID.
	ErrNotFound = errors.New("citation not found")
)

// Citation is a single tracked evidence source.
type Citation struct {
	// ID is the stable citation identifier, "cite_1", "cite_2", ...
	// IDs are allocated monotonically and never reused, even after
	// deduplication removes entries.
	ID string `json:"id"`

	// Number is the 1-based display number used in [N] markers.
	Number int `json:"number"`

	// Title of the cited document.
	Title string `json:"title"`

	// Source is the document origin. Deduplication keys on it.
	Source string `json:"source"`

	// Excerpt is a short snippet of the cited content.
	Excerpt string `json:"excerpt"`

	// AddedAt records when the citation was registered.
	AddedAt time.Time `json:"added_at"`

	// content holds the full cited body for attribution matching. Only
	// the capped Excerpt is exposed; matching against the excerpt alone
	// would blind attribution to evidence past the cap.
	content string
}

// excerptChars caps stored excerpts.
const excerptChars = 200

// timeNow is a variable for testing purposes.
var timeNow = time.Now

// Manager tracks citations for one research session. It is safe for
// concurrent use.
type Manager struct {
	logger *zap.Logger

	mu        sync.Mutex
	citations []Citation
	nextID    int
}

// NewManager creates an empty citation manager.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger, nextID: 1}
}

// Add registers a candidate as a citation and returns it. The same
// source may be added repeatedly; Dedup collapses duplicates later.
func (m *Manager) Add(candidate retrieval.Candidate) (Citation, error) {
	if candidate.Source == "" {
		return Citation{}, ErrEmptySource
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := Citation{
		ID:      fmt.Sprintf("cite_%d", m.nextID),
		Number:  len(m.citations) + 1,
		Title:   candidate.Title,
		Source:  candidate.Source,
		Excerpt: truncate(candidate.Content, excerptChars),
		AddedAt: timeNow(),
		content: candidate.Content,
	}
	m.nextID++
	m.citations = append(m.citations, c)

	m.logger.Debug("citation added",
		zap.String("id", c.ID),
		zap.String("source", c.Source),
	)
	return c, nil
}

// AddAll registers every candidate with a non-empty source, skipping
// sentinels, and returns the created citations.
func (m *Manager) AddAll(candidates []retrieval.Candidate) []Citation {
	out := make([]Citation, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.IsSentinel() || candidate.Source == "" {
			continue
		}
		c, err := m.Add(candidate)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Dedup collapses citations sharing a source, keeping the first
// occurrence, and renumbers the survivors. Calling it twice is a
// no-op the second time.
func (m *Manager) Dedup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]struct{}, len(m.citations))
	kept := m.citations[:0]
	for _, c := range m.citations {
		if _, dup := seen[c.Source]; dup {
			continue
		}
		seen[c.Source] = struct{}{}
		c.Number = len(kept) + 1
		kept = append(kept, c)
	}

	if removed := len(m.citations) - len(kept); removed > 0 {
		m.logger.Debug("citations deduplicated", zap.Int("removed", removed))
	}
	m.citations = kept
}

// Get returns a citation by ID.
func (m *Manager) Get(id string) (Citation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.citations {
		if c.ID == id {
			return c, nil
		}
	}
	return Citation{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// List returns a copy of all citations in registration order.
func (m *Manager) List() []Citation {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Citation, len(m.citations))
	copy(out, m.citations)
	return out
}

// Len returns the number of tracked citations.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.citations)
}

// Reset drops all citations but keeps allocating fresh IDs, so IDs
// from before the reset never come back.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.citations = nil
}

// Format renders the bibliography in the given style.
func (m *Manager) Format(style Style) string {
	m.mu.Lock()
	citations := make([]Citation, len(m.citations))
	copy(citations, m.citations)
	m.mu.Unlock()

	if len(citations) == 0 {
		return ""
	}

	var b strings.Builder
	for i, c := range citations {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch style {
		case StyleAPA:
			title := c.Title
			if title == "" {
				title = "Untitled"
			}
			fmt.Fprintf(&b, "%s. (%d). Retrieved from %s", title, c.AddedAt.Year(), c.Source)
		default:
			title := c.Title
			if title == "" {
				title = c.Source
			}
			fmt.Fprintf(&b, "[%d] %s - %s", c.Number, title, c.Source)
		}
	}
	return b.String()
}

// Style selects a bibliography rendering format.
type Style string

// Supported bibliography styles.
const (
	StyleNumbered Style = "numbered"
	StyleAPA      Style = "apa"
)

// truncate returns at most n leading bytes of s without splitting a
// UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && (s[cut]&0xC0) == 0x80 {
		cut--
	}
	return s[:cut]
}

// sortedCopy returns citations ordered by number, for exports.
func (m *Manager) sortedCopy() []Citation {
	m.mu.Lock()
	out := make([]Citation, len(m.citations))
	copy(out, m.citations)
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}
