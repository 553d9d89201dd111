package orchestrator

import (
	"fmt"
	"strings"
)

// maxEvidenceRecords bounds the record log regardless of character
// budget, so a runaway loop cannot grow memory without limit.
const maxEvidenceRecords = 200

// EvidenceRecord is one unit of gathered evidence.
type EvidenceRecord struct {
	Subquery  string `json:"subquery"`
	Source    string `json:"source"`
	Summary   string `json:"summary"`
	Tool      Tool   `json:"tool"`
	Iteration int    `json:"iteration"`
}

// canonical is the dedup key: the same finding for the same subquery
// from the same source is recorded once.
func (r EvidenceRecord) canonical() string {
	return fmt.Sprintf("<%s>: <%s> (source: <%s>)", r.Subquery, r.Summary, r.Source)
}

// render formats the record as one context line.
func (r EvidenceRecord) render() string {
	var b strings.Builder
	b.WriteString("- [")
	b.WriteString(string(r.Tool))
	b.WriteString("] ")
	if r.Subquery != "" {
		b.WriteString(r.Subquery)
		b.WriteString(": ")
	}
	b.WriteString(r.Summary)
	if r.Source != "" {
		b.WriteString(" (source: ")
		b.WriteString(r.Source)
		b.WriteString(")")
	}
	return b.String()
}

// evidenceLog accumulates records across iterations. It is a bounded
// structured log; the rendered context is derived from it on demand
// instead of being a mutated string, so capping the context never
// loses the underlying records.
type evidenceLog struct {
	records []EvidenceRecord
	seen    map[string]struct{}
}

func newEvidenceLog() *evidenceLog {
	return &evidenceLog{seen: make(map[string]struct{})}
}

// add appends a record unless it is a duplicate or the log is full.
// It reports whether the record was kept.
func (l *evidenceLog) add(r EvidenceRecord) bool {
	if len(l.records) >= maxEvidenceRecords {
		return false
	}
	key := r.canonical()
	if _, dup := l.seen[key]; dup {
		return false
	}
	l.seen[key] = struct{}{}
	l.records = append(l.records, r)
	return true
}

func (l *evidenceLog) len() int { return len(l.records) }

// render produces the evidence context for the planner, capped near
// maxChars. When the full render exceeds the budget the head and
// tail records are kept and the middle is elided, preserving both the
// earliest grounding evidence and the freshest findings.
func (l *evidenceLog) render(maxChars int) string {
	if len(l.records) == 0 {
		return ""
	}

	lines := make([]string, len(l.records))
	total := 0
	for i, r := range l.records {
		lines[i] = r.render()
		total += len(lines[i]) + 1
	}
	if maxChars <= 0 || total <= maxChars {
		return strings.Join(lines, "\n")
	}

	// Half the budget for the head, the rest for the tail.
	headBudget := maxChars / 2
	var head []string
	used := 0
	for _, line := range lines {
		if used+len(line)+1 > headBudget {
			break
		}
		used += len(line) + 1
		head = append(head, line)
	}

	tailBudget := maxChars - used
	var tail []string
	tailUsed := 0
	for i := len(lines) - 1; i >= len(head); i-- {
		if tailUsed+len(lines[i])+1 > tailBudget {
			break
		}
		tailUsed += len(lines[i]) + 1
		tail = append([]string{lines[i]}, tail...)
	}

	elided := len(lines) - len(head) - len(tail)
	if elided <= 0 {
		return strings.Join(append(head, tail...), "\n")
	}

	parts := make([]string, 0, len(head)+len(tail)+1)
	parts = append(parts, head...)
	parts = append(parts, fmt.Sprintf("... [%d records elided] ...", elided))
	parts = append(parts, tail...)
	return strings.Join(parts, "\n")
}
