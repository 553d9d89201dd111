// Package orchestrator runs the iterative research loop: decompose the
// query, retrieve evidence per subquery, reflect on sufficiency, and
// either loop with follow-ups or finalize the answer.
package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/researchd/internal/citation"
)

// Phase identifies a stage of the research loop.
type Phase string

const (
	PhaseDecompose Phase = "decompose"
	PhaseRetrieve  Phase = "retrieve"
	PhaseAggregate Phase = "aggregate"
	PhaseReflect   Phase = "reflect"
	PhaseFinalize  Phase = "finalize"
)

// Tool identifies an evidence-gathering action. The set is closed:
// dispatch validates the tool before running anything, so a corrupted
// plan can never execute an unknown action.
type Tool string

const (
	// ToolRetrieveKB searches the knowledge base.
	ToolRetrieveKB Tool = "retrieve-kb"

	// ToolRetrieveWeb searches the web and fetches pages.
	ToolRetrieveWeb Tool = "retrieve-web"

	// ToolSummarize condenses fetched content.
	ToolSummarize Tool = "summarize"
)

// ErrUnknownTool indicates a tool outside the closed set.
var ErrUnknownTool = errors.New("unknown tool")

// Validate reports whether the tool belongs to the closed set.
func (t Tool) Validate() error {
	switch t {
	case ToolRetrieveKB, ToolRetrieveWeb, ToolSummarize:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownTool, string(t))
}

// ReasoningStep is one entry of the append-only reasoning trace.
type ReasoningStep struct {
	Iteration int       `json:"iteration"`
	Phase     Phase     `json:"phase"`
	Detail    string    `json:"detail"`
	At        time.Time `json:"at"`
}

// Result is the outcome of one research session.
type Result struct {
	// SessionID uniquely identifies the session.
	SessionID string `json:"session_id"`

	// Query is the original research question.
	Query string `json:"query"`

	// Answer is the final answer with inline citation markers.
	Answer string `json:"answer"`

	// Iterations is the number of reflect cycles that ran.
	Iterations int `json:"iterations"`

	// Forced is true when finalization happened because the iteration
	// budget ran out or reflection had no follow-ups, rather than
	// because the evidence was judged sufficient.
	Forced bool `json:"forced"`

	// Degraded is true when a failure prevented normal synthesis and
	// the answer was assembled from raw evidence instead.
	Degraded bool `json:"degraded"`

	// Citations lists the deduplicated evidence sources.
	Citations []citation.Citation `json:"citations"`

	// Bibliography is the rendered reference list.
	Bibliography string `json:"bibliography"`

	// Trace is the append-only reasoning trace.
	Trace []ReasoningStep `json:"trace"`

	// Elapsed is total wall-clock session time.
	Elapsed time.Duration `json:"elapsed"`
}
