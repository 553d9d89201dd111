package retrieval

// Candidate is a scored retrieval result. Candidates flow from search
// through reranking into citation attribution, so the fields cover all
// three stages.
type Candidate struct {
	// ID identifies the underlying document. The sentinel candidate
	// returned for an empty knowledge base uses SentinelEmptyID.
	ID string

	// Title is the document title, weighted double in lexical scoring.
	Title string

	// Content is the document body.
	Content string

	// Source is the document origin (URL or logical name).
	Source string

	// Score is the blended retrieval score in [0, 1].
	Score float64

	// RerankScore is set once a reranker has re-scored the candidate.
	RerankScore float64

	// OriginalScore preserves the pre-rerank Score for inspection.
	OriginalScore float64

	// Metadata carries additional document attributes.
	Metadata map[string]string
}

// SentinelEmptyID marks the placeholder candidate returned when the
// knowledge base holds no documents. Callers use it to route the
// subquery to web search instead of treating it as evidence.
const SentinelEmptyID = "kb_empty"

// IsSentinel reports whether the candidate is the empty-knowledge-base
// placeholder rather than real evidence.
func (c Candidate) IsSentinel() bool {
	return c.ID == SentinelEmptyID
}
