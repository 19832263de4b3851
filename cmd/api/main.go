package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/extraction-workbench/internal/adapters/http"
	"github.com/kirillkom/extraction-workbench/internal/bootstrap"
	"github.com/kirillkom/extraction-workbench/internal/config"
	"github.com/kirillkom/extraction-workbench/internal/observability/logging"
	"github.com/kirillkom/extraction-workbench/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	app, err := bootstrap.New(ctx, cfg, "api", httpMetrics.Registerer())
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if cfg.EmbeddedWorker() {
		go func() {
			logger.Info("embedded_worker_started", "workers", cfg.InprocQueueWorkers)
			if err := app.Queue.SubscribeDocumentRegistered(ctx, app.ClassificationHandler("api", nil)); err != nil {
				logger.Error("embedded_worker_failed", "error", err)
			}
		}()
	}

	router := httpadapter.NewRouter(cfg, httpadapter.Services{
		Ingest:     app.IngestUC,
		Documents:  app.ReaderUC,
		Extraction: app.ExtractionUC,
		Feedback:   app.FeedbackUC,
		Rules:      app.RulesUC,
		Evolver:    app.EvolutionUC,
	}, httpMetrics).Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.OperationTimeout() + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort, "store", cfg.StoreBackend, "llm_provider", cfg.LLMProvider)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
