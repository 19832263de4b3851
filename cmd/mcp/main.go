package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/extraction-workbench/internal/adapters/mcp"
	"github.com/kirillkom/extraction-workbench/internal/bootstrap"
	"github.com/kirillkom/extraction-workbench/internal/config"
	"github.com/kirillkom/extraction-workbench/internal/observability/logging"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "mcp", nil)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if cfg.EmbeddedWorker() {
		go func() {
			if err := app.Queue.SubscribeDocumentRegistered(ctx, app.ClassificationHandler("mcp", nil)); err != nil {
				logger.Error("embedded_worker_failed", "error", err)
			}
		}()
	}

	mcpServer := mcpadapter.NewServer(mcpadapter.Services{
		Documents:  app.ReaderUC,
		Extraction: app.ExtractionUC,
		Feedback:   app.FeedbackUC,
		Rules:      app.RulesUC,
		Evolver:    app.EvolutionUC,
	}, version)

	logger.Info("mcp_server_starting", "version", version)
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
