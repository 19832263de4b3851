package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
	"github.com/kirillkom/extraction-workbench/internal/infrastructure/resilience"
	"github.com/kirillkom/extraction-workbench/internal/observability/metrics"
)

const (
	classifyTimeout = 5 * time.Minute

	busyRetryAttempts   = 12
	busyRetryBackoff    = 500 * time.Millisecond
	busyRetryMaxBackoff = 15 * time.Second
)

// newBusyRetry waits out other operations holding a document. Busy documents never trip a breaker.
func newBusyRetry(observer resilience.Observer) *resilience.Executor {
	cfg := resilience.Config{
		RetryMaxAttempts:    busyRetryAttempts,
		RetryInitialBackoff: busyRetryBackoff,
		RetryMaxBackoff:     busyRetryMaxBackoff,
		RetryJitter:         0.2,
	}
	if observer == nil {
		return resilience.NewExecutor(cfg)
	}
	return resilience.NewExecutor(cfg, resilience.WithObserver(observer))
}

func classifyBusy(err error) resilience.Verdict {
	return resilience.Verdict{Retryable: domain.IsKind(err, domain.ErrDocumentBusy)}
}

// ClassificationHandler consumes DocumentRegistered events. workerMetrics may be nil.
func (a *App) ClassificationHandler(service string, workerMetrics *metrics.WorkerMetrics) func(context.Context, string) error {
	return func(ctx context.Context, documentID string) error {
		if workerMetrics != nil {
			if doc, err := a.Docs.GetByID(ctx, documentID); err == nil {
				workerMetrics.ObserveQueueLag(service, time.Since(doc.CreatedAt))
			}
			workerMetrics.StartClassification()
		}
		started := time.Now()

		processCtx, cancel := context.WithTimeout(ctx, classifyTimeout)
		defer cancel()
		doc, err := resilience.Call(processCtx, a.classifyRetry, "classify_document", func(ctx context.Context) (*domain.Document, error) {
			return a.ProcessUC.ClassifyByID(ctx, documentID)
		}, classifyBusy)

		if workerMetrics != nil {
			var docType domain.DocType
			if doc != nil {
				docType = doc.Type
			}
			workerMetrics.FinishClassification(service, docType, time.Since(started), err)
		}
		if err != nil {
			return err
		}
		slog.Info("document_classified",
			"document_id", documentID,
			"type", doc.Type,
			"status", doc.Status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
		return nil
	}
}
