// Package memory persists past research sessions and recalls the ones
// relevant to a new query, with recency-weighted scoring.
package memory

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/researchd/internal/retrieval"
)

// Sentinel errors for memory operations.
var (
	// ErrInvalidConfig indicates invalid memory store configuration.
	ErrInvalidConfig = errors.New("invalid memory configuration")

	// ErrEmptyQuery indicates an empty recall query.
	ErrEmptyQuery = errors.New("query cannot be empty")
)

// Recall scoring weights and decay parameters.
const (
	queryOverlapWeight  = 0.4
	answerOverlapWeight = 0.3
	decayWindowDays     = 30.0
	decayFloor          = 0.1
	// Entries with answers longer than this earn the substance bonus.
	substantialAnswerChars = 20
	substantialBonus       = 1.2
)

// timeNow is a variable for testing purposes.
var timeNow = time.Now

// Entry is one remembered research session.
type Entry struct {
	ID string `json:"id"`

	// Query is the session's original question.
	Query string `json:"query"`

	// Context is the rendered evidence the answer was built from.
	Context string `json:"context"`

	// Answer is the session's final answer.
	Answer string `json:"answer"`

	CreatedAt time.Time `json:"created_at"`
}

// ScoredEntry is an entry with its recall relevance score.
type ScoredEntry struct {
	Entry
	Score float64 `json:"score"`
}

// Store is a JSON-file-backed memory store. The whole file is
// rewritten on every mutation; session memory stays small enough that
// this is simpler and safer than incremental updates.
type Store struct {
	path   string
	logger *zap.Logger

	mu      sync.RWMutex
	entries []Entry
}

// NewStore opens (or creates) the memory file at path.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: path is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{path: path, logger: logger}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("loading memory file: %w", err)
	}

	logger.Info("memory store opened",
		zap.String("path", path),
		zap.Int("entries", len(s.entries)),
	)
	return s, nil
}

// Add remembers a completed session, with the evidence context the
// answer was derived from, and returns the stored entry.
func (s *Store) Add(_ context.Context, query, context, answer string) (Entry, error) {
	if strings.TrimSpace(query) == "" {
		return Entry{}, ErrEmptyQuery
	}

	entry := Entry{
		ID:        uuid.NewString(),
		Query:     query,
		Context:   context,
		Answer:    answer,
		CreatedAt: timeNow(),
	}

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	err := s.saveLocked()
	s.mu.Unlock()
	if err != nil {
		return Entry{}, fmt.Errorf("saving memory file: %w", err)
	}

	s.logger.Debug("memory entry added", zap.String("id", entry.ID))
	return entry, nil
}

// Recall returns up to limit entries relevant to the query, sorted by
// descending score. Scoring blends token overlap with the remembered
// query and answer, decays linearly with age down to a floor, and
// boosts entries whose answers carry real substance. Zero-score
// entries are excluded entirely.
func (s *Store) Recall(_ context.Context, query string, limit int) ([]ScoredEntry, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = 5
	}

	queryTokens := retrieval.Tokenize(query)
	if len(queryTokens) == 0 {
		return []ScoredEntry{}, nil
	}

	now := timeNow()

	s.mu.RLock()
	scored := make([]ScoredEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		score := scoreEntry(queryTokens, entry, now)
		if score <= 0 {
			continue
		}
		scored = append(scored, ScoredEntry{Entry: entry, Score: score})
	}
	s.mu.RUnlock()

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].CreatedAt.After(scored[j].CreatedAt)
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// scoreEntry computes the recall relevance of one entry.
func scoreEntry(queryTokens []string, entry Entry, now time.Time) float64 {
	queryOverlap := overlapFraction(queryTokens, entry.Query)
	answerOverlap := overlapFraction(queryTokens, entry.Answer)
	overlap := queryOverlapWeight*queryOverlap + answerOverlapWeight*answerOverlap
	if overlap == 0 {
		return 0
	}

	days := now.Sub(entry.CreatedAt).Hours() / 24
	decay := 1 - days/decayWindowDays
	if decay < decayFloor {
		decay = decayFloor
	}

	score := overlap * decay
	if len(entry.Answer) > substantialAnswerChars {
		score *= substantialBonus
	}
	return score
}

// overlapFraction returns the fraction of query tokens present in text.
func overlapFraction(queryTokens []string, text string) float64 {
	set := retrieval.TokenSet(text)
	hits := 0
	seen := make(map[string]struct{}, len(queryTokens))
	for _, tok := range queryTokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		if _, ok := set[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(seen))
}

// Recent returns the n most recently added entries, newest first.
func (s *Store) Recent(_ context.Context, n int) []Entry {
	if n <= 0 {
		n = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// RecentContext renders the n most recent sessions as a compact
// "Q: ...\nA: ..." block for prompt context. Answers are clipped to
// 200 characters.
func (s *Store) RecentContext(ctx context.Context, n int) string {
	entries := s.Recent(ctx, n)
	if len(entries) == 0 {
		return ""
	}

	parts := make([]string, len(entries))
	for i, e := range entries {
		answer := e.Answer
		if len(answer) > 200 {
			cut := 200
			for cut > 0 && (answer[cut]&0xC0) == 0x80 {
				cut--
			}
			answer = answer[:cut] + "..."
		}
		parts[i] = "Q: " + e.Query + "\nA: " + answer
	}
	return strings.Join(parts, "\n\n")
}

// Len returns the number of remembered sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear removes all entries and rewrites the file.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return s.saveLocked()
}

// Export returns the raw entries as indented JSON.
func (s *Store) Export(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.MarshalIndent(s.entries, "", "  ")
}

// ExportCSV returns the entries as CSV with a header row.
func (s *Store) ExportCSV(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"id", "query", "context", "answer", "created_at"}); err != nil {
		return nil, err
	}
	for _, e := range s.entries {
		if err := w.Write([]string{e.ID, e.Query, e.Context, e.Answer, e.CreatedAt.Format(time.RFC3339)}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Stats summarizes the remembered sessions.
type Stats struct {
	Entries int       `json:"entries"`
	Oldest  time.Time `json:"oldest,omitzero"`
	Newest  time.Time `json:"newest,omitzero"`
}

// Stats reports entry count and creation-time bounds.
func (s *Store) Stats(_ context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Entries: len(s.entries)}
	for _, e := range s.entries {
		if st.Oldest.IsZero() || e.CreatedAt.Before(st.Oldest) {
			st.Oldest = e.CreatedAt
		}
		if e.CreatedAt.After(st.Newest) {
			st.Newest = e.CreatedAt
		}
	}
	return st
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &s.entries)
}

// saveLocked rewrites the memory file atomically. Caller holds s.mu.
func (s *Store) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
