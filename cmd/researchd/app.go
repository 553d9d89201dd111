package main

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/researchd/internal/config"
	"github.com/fyrsmithlabs/researchd/internal/embeddings"
	"github.com/fyrsmithlabs/researchd/internal/logging"
	"github.com/fyrsmithlabs/researchd/internal/memory"
	"github.com/fyrsmithlabs/researchd/internal/orchestrator"
	"github.com/fyrsmithlabs/researchd/internal/planner"
	"github.com/fyrsmithlabs/researchd/internal/reranker"
	"github.com/fyrsmithlabs/researchd/internal/retrieval"
	"github.com/fyrsmithlabs/researchd/internal/summarize"
	"github.com/fyrsmithlabs/researchd/internal/telemetry"
	"github.com/fyrsmithlabs/researchd/internal/vectorstore"
	"github.com/fyrsmithlabs/researchd/internal/web"
)

// app holds the wired components shared by the CLI commands.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	store     vectorstore.Store
	memory    *memory.Store
	engine    *orchestrator.Engine
	telemetry *telemetry.Provider
}

// buildApp loads configuration and wires every component. Commands that
// only touch the vector store or memory still get the full app; the
// planner and web clients make no network calls until used.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(&logging.Config{
		Level:   cfg.Observability.LogLevel,
		Format:  cfg.Observability.LogFormat,
		Service: cfg.Observability.ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	provider, err := telemetry.Setup(ctx, &telemetry.Config{
		Enabled:        cfg.Observability.EnableTelemetry,
		Endpoint:       cfg.Observability.Endpoint,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: version,
		Insecure:       cfg.Observability.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	embedder, err := embeddings.NewClient(cfg.Embedding, logger.Underlying())
	if err != nil {
		return nil, fmt.Errorf("initializing embeddings: %w", err)
	}

	storePath, err := config.ExpandPath(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("resolving store path: %w", err)
	}
	store, err := vectorstore.NewChromemStore(vectorstore.Config{
		Path:       storePath,
		Compress:   cfg.Store.Compress,
		Collection: cfg.Store.Collection,
		VectorSize: cfg.Store.VectorSize,
	}, embedder, logger.Underlying())
	if err != nil {
		return nil, fmt.Errorf("initializing vector store: %w", err)
	}

	memoryPath, err := config.ExpandPath(cfg.Memory.Path)
	if err != nil {
		return nil, fmt.Errorf("resolving memory path: %w", err)
	}
	memStore, err := memory.NewStore(memoryPath, logger.Underlying())
	if err != nil {
		return nil, fmt.Errorf("initializing memory: %w", err)
	}

	engine, err := buildEngine(cfg, logger, store, memStore)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		memory:    memStore,
		engine:    engine,
		telemetry: provider,
	}, nil
}

// buildEngine wires the research engine from loaded components.
func buildEngine(cfg *config.Config, logger *logging.Logger, store vectorstore.Store, memStore *memory.Store) (*orchestrator.Engine, error) {
	plan, err := planner.NewClient(cfg.Planner, logger.Underlying())
	if err != nil {
		return nil, fmt.Errorf("initializing planner: %w", err)
	}

	retriever, err := retrieval.NewEngine(store, cfg.Retrieval, logger.Underlying())
	if err != nil {
		return nil, fmt.Errorf("initializing retrieval: %w", err)
	}

	var primary reranker.Reranker
	if cfg.Rerank.APIKey.IsSet() {
		primary, err = reranker.NewRemoteReranker(cfg.Rerank, logger.Underlying())
		if err != nil {
			return nil, fmt.Errorf("initializing reranker: %w", err)
		}
	}
	rerank := reranker.NewHybridReranker(primary, cfg.Rerank.BlendRatio, logger.Underlying())

	webClient, err := web.NewClient(cfg.Web, logger.Underlying())
	if err != nil {
		return nil, fmt.Errorf("initializing web client: %w", err)
	}

	return orchestrator.NewEngine(orchestrator.Deps{
		Planner:    plan,
		Retriever:  retriever,
		Reranker:   rerank,
		Web:        webClient,
		Summarizer: summarize.New(plan, logger.Underlying()),
		Memory:     memStore,
		Indexer:    store,
		Logger:     logger,
	}, orchestrator.ConfigFromApp(cfg))
}

// close releases app resources.
func (a *app) close(ctx context.Context) {
	if err := a.store.Close(); err != nil {
		a.logger.Warn(ctx, "closing vector store failed")
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn(ctx, "telemetry shutdown failed")
	}
	_ = a.logger.Sync()
}
