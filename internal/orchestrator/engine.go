package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/researchd/internal/citation"
	"github.com/fyrsmithlabs/researchd/internal/config"
	"github.com/fyrsmithlabs/researchd/internal/logging"
	"github.com/fyrsmithlabs/researchd/internal/memory"
	"github.com/fyrsmithlabs/researchd/internal/planner"
	"github.com/fyrsmithlabs/researchd/internal/retrieval"
	"github.com/fyrsmithlabs/researchd/internal/vectorstore"
	"github.com/fyrsmithlabs/researchd/internal/web"
)

var tracer = otel.Tracer("researchd.orchestrator")

// timeNow is a variable for testing purposes.
var timeNow = time.Now

// Sentinel errors for orchestration.
var (
	// ErrEmptyQuery indicates an empty research query.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrInvalidEngine indicates missing engine dependencies.
	ErrInvalidEngine = errors.New("invalid orchestrator configuration")
)

// Retriever is the knowledge base search surface the engine needs.
type Retriever interface {
	HybridSearch(ctx context.Context, query string, k int) ([]retrieval.Candidate, error)
	ShouldUseKnowledgeBase(candidates []retrieval.Candidate) bool
}

// Reranker re-scores knowledge base candidates per subquery.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []retrieval.Candidate, topK int) ([]retrieval.Candidate, error)
}

// WebClient is the web search and fetch surface.
type WebClient interface {
	Enabled() bool
	Search(ctx context.Context, query string, count int) ([]web.Result, error)
	Fetch(ctx context.Context, pageURL string) (web.Page, error)
}

// Summarizer condenses fetched content.
type Summarizer interface {
	Summarize(ctx context.Context, query, content string, maxChars int) (string, error)
}

// MemoryStore recalls and records sessions. Add receives the rendered
// evidence context alongside the answer, so a remembered session keeps
// its evidence trail.
type MemoryStore interface {
	Add(ctx context.Context, query, context, answer string) (memory.Entry, error)
	Recall(ctx context.Context, query string, limit int) ([]memory.ScoredEntry, error)
}

// Indexer adds fetched web pages to the knowledge base so later
// sessions can answer from them directly.
type Indexer interface {
	AddDocuments(ctx context.Context, docs []vectorstore.Document) ([]string, error)
}

// Config holds the engine's loop parameters.
type Config struct {
	MaxIterations   int
	MaxContextChars int
	TopK            int
	RerankTopK      int
	WebResultCount  int
	RecallLimit     int
	SummaryMaxChars int
}

// applyDefaults fills unset loop parameters.
func (c *Config) applyDefaults() {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 10
	}
	if c.MaxContextChars <= 0 {
		c.MaxContextChars = 4000
	}
	if c.TopK <= 0 {
		c.TopK = 20
	}
	if c.RerankTopK <= 0 {
		c.RerankTopK = 5
	}
	if c.WebResultCount <= 0 {
		c.WebResultCount = 3
	}
	if c.RecallLimit <= 0 {
		c.RecallLimit = 3
	}
	if c.SummaryMaxChars <= 0 {
		c.SummaryMaxChars = 1000
	}
}

// ConfigFromApp derives engine parameters from application config.
func ConfigFromApp(cfg *config.Config) Config {
	return Config{
		MaxIterations:   cfg.Agent.MaxIterations,
		MaxContextChars: cfg.Agent.MaxContextChars,
		TopK:            cfg.Retrieval.TopK,
		RerankTopK:      cfg.Retrieval.RerankTopK,
		WebResultCount:  cfg.Web.ResultCount,
		RecallLimit:     cfg.Memory.RecallLimit,
	}
}

// Deps bundles the engine's collaborators. Planner and Retriever are
// required; the rest degrade gracefully when nil.
type Deps struct {
	Planner    planner.Planner
	Retriever  Retriever
	Reranker   Reranker
	Web        WebClient
	Summarizer Summarizer
	Memory     MemoryStore
	Indexer    Indexer
	Logger     *logging.Logger
}

// Engine runs research sessions.
type Engine struct {
	planner    planner.Planner
	retriever  Retriever
	reranker   Reranker
	web        WebClient
	summarizer Summarizer
	memory     MemoryStore
	indexer    Indexer
	cfg        Config
	logger     *logging.Logger
}

// NewEngine creates a research engine.
func NewEngine(deps Deps, cfg Config) (*Engine, error) {
	if deps.Planner == nil {
		return nil, fmt.Errorf("%w: planner is required", ErrInvalidEngine)
	}
	if deps.Retriever == nil {
		return nil, fmt.Errorf("%w: retriever is required", ErrInvalidEngine)
	}
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	cfg.applyDefaults()

	return &Engine{
		planner:    deps.Planner,
		retriever:  deps.Retriever,
		reranker:   deps.Reranker,
		web:        deps.Web,
		summarizer: deps.Summarizer,
		memory:     deps.Memory,
		indexer:    deps.Indexer,
		cfg:        cfg,
		logger:     deps.Logger,
	}, nil
}

// session is the mutable state of one research run.
type session struct {
	id        string
	query     string
	evidence  *evidenceLog
	citations *citation.Manager
	processed map[string]struct{}
	pending   []string
	trace     []ReasoningStep
	iteration int
}

func (s *session) addStep(phase Phase, detail string) {
	s.trace = append(s.trace, ReasoningStep{
		Iteration: s.iteration,
		Phase:     phase,
		Detail:    detail,
		At:        timeNow(),
	})
}

// enqueue adds a subquery unless it was already researched or queued.
func (s *session) enqueue(subquery string) bool {
	subquery = strings.TrimSpace(subquery)
	if subquery == "" {
		return false
	}
	if _, done := s.processed[subquery]; done {
		return false
	}
	for _, q := range s.pending {
		if q == subquery {
			return false
		}
	}
	s.pending = append(s.pending, subquery)
	return true
}

// Research runs one full research session for the query.
func (e *Engine) Research(ctx context.Context, query string) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	start := timeNow()
	sessionID := uuid.NewString()
	ctx = logging.WithSessionID(ctx, sessionID)

	ctx, span := tracer.Start(ctx, "Engine.Research")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	sess := &session{
		id:        sessionID,
		query:     query,
		evidence:  newEvidenceLog(),
		citations: citation.NewManager(e.logger.Underlying()),
		processed: make(map[string]struct{}),
	}

	e.logger.Info(ctx, "research session started", zap.String("query", query))

	e.recallMemory(ctx, sess)
	e.decompose(ctx, sess)

	var (
		answer    string
		converged bool
	)
	for sess.iteration = 1; sess.iteration <= e.cfg.MaxIterations; sess.iteration++ {
		e.retrievePending(ctx, sess)

		reflection, err := e.planner.Reflect(ctx, query, sess.evidence.render(e.cfg.MaxContextChars))
		if err != nil {
			// Fatal to this iteration only. The next iteration gets a
			// fresh attempt until the budget runs out.
			e.logger.Warn(ctx, "reflection failed", zap.Error(err))
			sess.addStep(PhaseReflect, "reflection failed: "+err.Error())
			continue
		}
		sess.addStep(PhaseReflect, fmt.Sprintf("converged=%t suggestions=%d", reflection.Converged, len(reflection.Suggestions)))

		if reflection.Converged {
			answer = reflection.Answer
			converged = true
			break
		}

		queued := 0
		for _, suggestion := range reflection.Suggestions {
			if sess.enqueue(suggestion) {
				queued++
			}
		}
		if queued == 0 {
			// Nothing new to research; looping again would only
			// repeat the same evidence.
			sess.addStep(PhaseReflect, "no new suggestions, forcing finalization")
			break
		}
	}
	if sess.iteration > e.cfg.MaxIterations {
		sess.iteration = e.cfg.MaxIterations
	}

	result := e.finalize(ctx, sess, answer, converged)
	result.Elapsed = timeNow().Sub(start)

	SessionDuration.Observe(result.Elapsed.Seconds())
	SessionIterations.Observe(float64(result.Iterations))
	switch {
	case result.Degraded:
		SessionsTotal.WithLabelValues("degraded").Inc()
	case result.Forced:
		SessionsTotal.WithLabelValues("forced").Inc()
	default:
		SessionsTotal.WithLabelValues("converged").Inc()
	}

	span.SetAttributes(
		attribute.Int("iterations", result.Iterations),
		attribute.Bool("forced", result.Forced),
		attribute.Bool("degraded", result.Degraded),
	)
	span.SetStatus(codes.Ok, "session complete")

	e.logger.Info(ctx, "research session finished",
		zap.Int("iterations", result.Iterations),
		zap.Bool("forced", result.Forced),
		zap.Bool("degraded", result.Degraded),
		zap.Int("citations", len(result.Citations)),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// recallMemory seeds the evidence log with relevant past sessions.
func (e *Engine) recallMemory(ctx context.Context, sess *session) {
	if e.memory == nil {
		return
	}
	entries, err := e.memory.Recall(ctx, sess.query, e.cfg.RecallLimit)
	if err != nil {
		e.logger.Warn(ctx, "memory recall failed", zap.Error(err))
		return
	}
	for _, entry := range entries {
		sess.evidence.add(EvidenceRecord{
			Subquery:  entry.Query,
			Source:    "memory",
			Summary:   firstChars(entry.Answer, e.cfg.SummaryMaxChars),
			Tool:      ToolRetrieveKB,
			Iteration: 0,
		})
	}
	if len(entries) > 0 {
		sess.addStep(PhaseDecompose, fmt.Sprintf("recalled %d past sessions", len(entries)))
	}
}

// decompose asks the planner to break the query down and queues the
// resulting subqueries. A failed or empty decomposition falls back to
// researching the original query directly.
func (e *Engine) decompose(ctx context.Context, sess *session) {
	decomposition, err := e.planner.Decompose(ctx, sess.query)
	if err != nil {
		e.logger.Warn(ctx, "decomposition failed, using original query", zap.Error(err))
	}

	for _, link := range decomposition.Links {
		if err := e.dispatch(ctx, sess, toolRequest{Tool: ToolSummarize, Subquery: sess.query, PageURL: link}); err != nil {
			e.logger.Warn(ctx, "link fetch failed", zap.String("url", link), zap.Error(err))
		}
	}

	queued := 0
	for _, subquery := range decomposition.Subqueries {
		if sess.enqueue(subquery) {
			queued++
		}
	}
	if queued == 0 {
		sess.enqueue(sess.query)
	}
	sess.addStep(PhaseDecompose, fmt.Sprintf("queued %d subqueries, %d links", len(sess.pending), len(decomposition.Links)))
}

// retrievePending researches every queued subquery once.
func (e *Engine) retrievePending(ctx context.Context, sess *session) {
	pending := sess.pending
	sess.pending = nil
	for _, subquery := range pending {
		if _, done := sess.processed[subquery]; done {
			continue
		}
		sess.processed[subquery] = struct{}{}
		e.research(ctx, sess, subquery)
	}
}

// research routes one subquery to the knowledge base or the web.
func (e *Engine) research(ctx context.Context, sess *session, subquery string) {
	candidates, err := e.retriever.HybridSearch(ctx, subquery, e.cfg.TopK)
	if err != nil {
		e.logger.Warn(ctx, "retrieval failed", zap.String("subquery", subquery), zap.Error(err))
		sess.addStep(PhaseRetrieve, "retrieval failed for: "+subquery)
		return
	}

	switch {
	case e.retriever.ShouldUseKnowledgeBase(candidates):
		RoutingTotal.WithLabelValues("knowledge_base").Inc()
		err = e.dispatch(ctx, sess, toolRequest{Tool: ToolRetrieveKB, Subquery: subquery, Candidates: candidates})
	case e.web != nil && e.web.Enabled():
		RoutingTotal.WithLabelValues("web").Inc()
		err = e.dispatch(ctx, sess, toolRequest{Tool: ToolRetrieveWeb, Subquery: subquery})
	default:
		// No web access: weak knowledge base evidence is still
		// better than none.
		RoutingTotal.WithLabelValues("none").Inc()
		err = e.dispatch(ctx, sess, toolRequest{Tool: ToolRetrieveKB, Subquery: subquery, Candidates: candidates})
	}
	if err != nil {
		e.logger.Warn(ctx, "subquery research failed", zap.String("subquery", subquery), zap.Error(err))
	}
}

// toolRequest is one dispatchable evidence-gathering action.
type toolRequest struct {
	Tool       Tool
	Subquery   string
	Candidates []retrieval.Candidate
	PageURL    string
}

// dispatch validates the tool against the closed set and runs it.
// Validation happens before any side effect.
func (e *Engine) dispatch(ctx context.Context, sess *session, req toolRequest) error {
	if err := req.Tool.Validate(); err != nil {
		return err
	}
	switch req.Tool {
	case ToolRetrieveKB:
		return e.retrieveKB(ctx, sess, req.Subquery, req.Candidates)
	case ToolRetrieveWeb:
		return e.retrieveWeb(ctx, sess, req.Subquery)
	case ToolSummarize:
		return e.fetchAndSummarize(ctx, sess, req.Subquery, req.PageURL)
	}
	return fmt.Errorf("%w: %q", ErrUnknownTool, string(req.Tool))
}

// retrieveKB turns knowledge base candidates into evidence records.
func (e *Engine) retrieveKB(ctx context.Context, sess *session, subquery string, candidates []retrieval.Candidate) error {
	if e.reranker != nil && len(candidates) > 1 {
		reranked, err := e.reranker.Rerank(ctx, subquery, candidates, e.cfg.RerankTopK)
		if err != nil {
			e.logger.Warn(ctx, "rerank failed, keeping retrieval order", zap.Error(err))
		} else {
			candidates = reranked
		}
	}
	if len(candidates) > e.cfg.RerankTopK {
		candidates = candidates[:e.cfg.RerankTopK]
	}

	kept := 0
	for _, c := range candidates {
		if c.IsSentinel() {
			continue
		}
		if sess.evidence.add(EvidenceRecord{
			Subquery:  subquery,
			Source:    c.Source,
			Summary:   firstChars(c.Content, e.cfg.SummaryMaxChars),
			Tool:      ToolRetrieveKB,
			Iteration: sess.iteration,
		}) {
			kept++
		}
	}
	sess.citations.AddAll(candidates)
	sess.addStep(PhaseRetrieve, fmt.Sprintf("knowledge base: %d records for %q", kept, subquery))
	return nil
}

// retrieveWeb searches the web for the subquery and summarizes the
// top hits.
func (e *Engine) retrieveWeb(ctx context.Context, sess *session, subquery string) error {
	if e.web == nil || !e.web.Enabled() {
		return errors.New("web access is not configured")
	}

	results, err := e.web.Search(ctx, subquery, e.cfg.WebResultCount)
	if err != nil {
		sess.addStep(PhaseRetrieve, "web search failed for: "+subquery)
		return fmt.Errorf("web search: %w", err)
	}

	fetched := 0
	for _, result := range results {
		if err := e.dispatch(ctx, sess, toolRequest{Tool: ToolSummarize, Subquery: subquery, PageURL: result.URL}); err != nil {
			e.logger.Warn(ctx, "page processing failed", zap.String("url", result.URL), zap.Error(err))
			continue
		}
		fetched++
	}
	sess.addStep(PhaseRetrieve, fmt.Sprintf("web: %d of %d pages for %q", fetched, len(results), subquery))
	if fetched == 0 {
		return errors.New("no web pages could be processed")
	}
	return nil
}

// fetchAndSummarize fetches one page, summarizes it for the subquery,
// records the evidence, and indexes the page into the knowledge base.
func (e *Engine) fetchAndSummarize(ctx context.Context, sess *session, subquery, pageURL string) error {
	if e.web == nil || !e.web.Enabled() {
		return errors.New("web access is not configured")
	}

	page, err := e.web.Fetch(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	if strings.TrimSpace(page.Content) == "" {
		return fmt.Errorf("page %s has no readable content", pageURL)
	}

	summary := firstChars(page.Content, e.cfg.SummaryMaxChars)
	if e.summarizer != nil {
		if s, err := e.summarizer.Summarize(ctx, subquery, page.Content, e.cfg.SummaryMaxChars); err == nil {
			summary = s
		} else {
			e.logger.Warn(ctx, "summarization failed, using excerpt", zap.Error(err))
		}
	}

	sess.evidence.add(EvidenceRecord{
		Subquery:  subquery,
		Source:    page.URL,
		Summary:   summary,
		Tool:      ToolSummarize,
		Iteration: sess.iteration,
	})
	sess.citations.AddAll([]retrieval.Candidate{{
		ID:      page.URL,
		Title:   page.Title,
		Content: summary,
		Source:  page.URL,
	}})

	if e.indexer != nil {
		if _, err := e.indexer.AddDocuments(ctx, []vectorstore.Document{{
			Title:   page.Title,
			Content: page.Content,
			Source:  page.URL,
		}}); err != nil {
			e.logger.Warn(ctx, "indexing fetched page failed", zap.String("url", page.URL), zap.Error(err))
		}
	}
	return nil
}

// finalize produces the result, synthesizing an answer if reflection
// did not already supply one.
func (e *Engine) finalize(ctx context.Context, sess *session, answer string, converged bool) *Result {
	degraded := false
	evidence := sess.evidence.render(e.cfg.MaxContextChars)

	if answer == "" {
		synthesized, err := e.planner.FinalAnswer(ctx, sess.query, evidence)
		if err != nil {
			e.logger.Error(ctx, "final synthesis failed, degrading to raw evidence", zap.Error(err))
			degraded = true
			answer = degradedAnswer(evidence)
		} else {
			answer = synthesized
		}
	}
	sess.addStep(PhaseFinalize, fmt.Sprintf("converged=%t degraded=%t", converged, degraded))

	sess.citations.Dedup()
	answer = sess.citations.Attribute(answer)

	if e.memory != nil && !degraded {
		if _, err := e.memory.Add(ctx, sess.query, evidence, answer); err != nil {
			e.logger.Warn(ctx, "memory write failed", zap.Error(err))
		}
	}

	return &Result{
		SessionID:    sess.id,
		Query:        sess.query,
		Answer:       answer,
		Iterations:   sess.iteration,
		Forced:       !converged,
		Degraded:     degraded,
		Citations:    sess.citations.List(),
		Bibliography: sess.citations.Format(citation.StyleNumbered),
		Trace:        sess.trace,
	}
}

// degradedAnswer assembles a best-effort answer from raw evidence when
// synthesis is impossible.
func degradedAnswer(evidence string) string {
	if evidence == "" {
		return "The research could not be completed and no evidence was gathered."
	}
	return "The research could not be completed normally. Evidence gathered so far:\n" + evidence
}

// firstChars returns at most n leading bytes of s without splitting a
// UTF-8 sequence.
func firstChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && (s[cut]&0xC0) == 0x80 {
		cut--
	}
	return s[:cut]
}
