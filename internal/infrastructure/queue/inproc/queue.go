package inproc

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
)

var errQueueFull = errors.New("in-process queue is full")

// Queue delivers DocumentRegistered events to subscribers of the same process.
// It is used when no broker is configured.
type Queue struct {
	events  chan string
	workers int
}

func New(buffer, workers int) *Queue {
	if buffer <= 0 {
		buffer = 64
	}
	if workers <= 0 {
		workers = 1
	}
	return &Queue{events: make(chan string, buffer), workers: workers}
}

func (q *Queue) PublishDocumentRegistered(ctx context.Context, documentID string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.events <- documentID:
		return nil
	default:
		return domain.WrapError(domain.ErrTemporary, "inproc publish", errQueueFull)
	}
}

// SubscribeDocumentRegistered runs handler on a fixed number of goroutines until ctx is done.
func (q *Queue) SubscribeDocumentRegistered(ctx context.Context, handler func(context.Context, string) error) error {
	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case id := <-q.events:
					if err := handler(ctx, id); err != nil {
						slog.Error("document_registered_handler_failed", "document_id", id, "error", err)
					}
				}
			}
		}()
	}
	wg.Wait()
	return nil
}
