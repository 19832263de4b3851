package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
	"github.com/kirillkom/extraction-workbench/internal/core/ports"
)

const defaultOperationTimeout = 2 * time.Minute

// DocumentGuard admits one in-flight operation per document id.
type DocumentGuard struct {
	mu   sync.Mutex
	busy map[string]string
}

func NewDocumentGuard() *DocumentGuard {
	return &DocumentGuard{busy: make(map[string]string)}
}

// Acquire fails fast with ErrDocumentBusy instead of queueing behind the running operation.
func (g *DocumentGuard) Acquire(documentID, operation string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if running, ok := g.busy[documentID]; ok {
		return nil, domain.WrapError(
			domain.ErrDocumentBusy,
			operation,
			fmt.Errorf("document_id=%s running=%s", documentID, running),
		)
	}
	g.busy[documentID] = operation

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.busy, documentID)
			g.mu.Unlock()
		})
	}, nil
}

// InFlight reports the operation currently holding documentID, if any.
func (g *DocumentGuard) InFlight(documentID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	op, ok := g.busy[documentID]
	return op, ok
}

func withOperationTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultOperationTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// persistCtx survives caller cancellation so rollbacks are always written.
func persistCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
}

type noopMetrics struct{}

func (noopMetrics) RecordClassification(domain.DocType, bool) {}
func (noopMetrics) RecordExtraction(string, int)              {}
func (noopMetrics) RecordRefinement(string, int)              {}
func (noopMetrics) RecordRegionAnalysis(int)                  {}
func (noopMetrics) RecordRuleEvolution(string)                {}

func metricsOrNoop(m ports.WorkbenchMetrics) ports.WorkbenchMetrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	count := 0
	for idx := range s {
		if count == limit {
			return s[:idx]
		}
		count++
	}
	return s
}
