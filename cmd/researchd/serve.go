package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/researchd/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the researchd HTTP server",
	Long: `Start the HTTP server exposing the research API.

Endpoints:
  GET  /health                 liveness and store counts
  GET  /metrics                Prometheus metrics
  POST /api/v1/research        run a research session
  POST /api/v1/documents       add documents to the knowledge base
  GET  /api/v1/memory/recent   recent session memories
  GET  /api/v1/memory/recall   memories relevant to a query`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	srv, err := server.NewServer(a.engine, a.store, a.memory, a.logger, a.cfg.Server)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	a.logger.Info(ctx, "server started",
		zap.String("host", a.cfg.Server.Host),
		zap.Int("port", a.cfg.Server.Port),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		a.logger.Info(ctx, "shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
