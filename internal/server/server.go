// Package server provides the HTTP API for researchd.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/researchd/internal/citation"
	"github.com/fyrsmithlabs/researchd/internal/config"
	"github.com/fyrsmithlabs/researchd/internal/logging"
	"github.com/fyrsmithlabs/researchd/internal/memory"
	"github.com/fyrsmithlabs/researchd/internal/orchestrator"
	"github.com/fyrsmithlabs/researchd/internal/vectorstore"
)

// Researcher runs research sessions. Implemented by the orchestrator
// engine; a narrow interface keeps handlers testable.
type Researcher interface {
	Research(ctx context.Context, query string) (*orchestrator.Result, error)
}

// MemoryReader serves memory inspection endpoints.
type MemoryReader interface {
	Recent(ctx context.Context, n int) []memory.Entry
	Recall(ctx context.Context, query string, limit int) ([]memory.ScoredEntry, error)
	Len() int
}

// Server provides HTTP endpoints for researchd.
type Server struct {
	echo   *echo.Echo
	engine Researcher
	store  vectorstore.Store
	memory MemoryReader
	logger *logging.Logger
	cfg    config.ServerConfig
}

// NewServer creates the HTTP server.
func NewServer(engine Researcher, store vectorstore.Store, mem MemoryReader, logger *logging.Logger, cfg config.ServerConfig) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = logging.Nop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logging.WithRequestID(c.Request().Context(), requestID)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)

			logger.Info(ctx, "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return err
		}
	})

	s := &Server{
		echo:   e,
		engine: engine,
		store:  store,
		memory: mem,
		logger: logger,
		cfg:    cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/research", s.handleResearch)
	v1.POST("/documents", s.handleAddDocuments)
	v1.DELETE("/documents/:id", s.handleDeleteDocument)
	v1.GET("/memory/recent", s.handleMemoryRecent)
	v1.GET("/memory/recall", s.handleMemoryRecall)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Documents int    `json:"documents"`
	Memories  int    `json:"memories"`
}

func (s *Server) handleHealth(c echo.Context) error {
	count, err := s.store.Count(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "degraded"})
	}
	memories := 0
	if s.memory != nil {
		memories = s.memory.Len()
	}
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Documents: count,
		Memories:  memories,
	})
}

// ResearchRequest is the request body for POST /api/v1/research.
type ResearchRequest struct {
	Query string `json:"query"`
	// Export selects an optional bibliography export: "bibtex" or "ris".
	Export string `json:"export,omitempty"`
}

// ResearchResponse is the response body for POST /api/v1/research.
type ResearchResponse struct {
	*orchestrator.Result
	Export string `json:"export,omitempty"`
}

func (s *Server) handleResearch(c echo.Context) error {
	var req ResearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}

	result, err := s.engine.Research(c.Request().Context(), req.Query)
	if err != nil {
		s.logger.Error(c.Request().Context(), "research failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "research failed")
	}

	resp := ResearchResponse{Result: result}
	switch req.Export {
	case "":
	case "bibtex":
		resp.Export = citation.BibTeX(result.Citations)
	case "ris":
		resp.Export = citation.RIS(result.Citations)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "export must be bibtex or ris")
	}
	return c.JSON(http.StatusOK, resp)
}

// DocumentInput is one document in POST /api/v1/documents.
type DocumentInput struct {
	ID      string `json:"id,omitempty"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Source  string `json:"source"`
}

// AddDocumentsRequest is the request body for POST /api/v1/documents.
type AddDocumentsRequest struct {
	Documents []DocumentInput `json:"documents"`
}

// AddDocumentsResponse is the response body for POST /api/v1/documents.
type AddDocumentsResponse struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleAddDocuments(c echo.Context) error {
	var req AddDocumentsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Documents) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "documents field is required")
	}

	docs := make([]vectorstore.Document, len(req.Documents))
	for i, d := range req.Documents {
		if d.Content == "" {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("document %d has no content", i))
		}
		docs[i] = vectorstore.Document{
			ID:      d.ID,
			Title:   d.Title,
			Content: d.Content,
			Source:  d.Source,
		}
	}

	ids, err := s.store.AddDocuments(c.Request().Context(), docs)
	if err != nil {
		s.logger.Error(c.Request().Context(), "indexing failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "indexing failed")
	}
	return c.JSON(http.StatusOK, AddDocumentsResponse{IDs: ids})
}

func (s *Server) handleDeleteDocument(c echo.Context) error {
	id := c.Param("id")
	if err := s.store.DeleteDocuments(c.Request().Context(), []string{id}); err != nil {
		if errors.Is(err, vectorstore.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "document not found")
		}
		s.logger.Error(c.Request().Context(), "delete failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "delete failed")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleMemoryRecent(c echo.Context) error {
	if s.memory == nil {
		return echo.NewHTTPError(http.StatusNotFound, "memory is not configured")
	}
	n, _ := strconv.Atoi(c.QueryParam("limit"))
	return c.JSON(http.StatusOK, s.memory.Recent(c.Request().Context(), n))
}

func (s *Server) handleMemoryRecall(c echo.Context) error {
	if s.memory == nil {
		return echo.NewHTTPError(http.StatusNotFound, "memory is not configured")
	}
	query := c.QueryParam("query")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter is required")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	entries, err := s.memory.Recall(c.Request().Context(), query, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, entries)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
