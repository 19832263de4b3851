package memory

import (
	"context"
	"sync"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
)

// FeedbackLedger holds bad cases per document until the session is cleared.
type FeedbackLedger struct {
	mu      sync.Mutex
	entries map[string][]domain.BadCase
}

func NewFeedbackLedger() *FeedbackLedger {
	return &FeedbackLedger{entries: make(map[string][]domain.BadCase)}
}

func (l *FeedbackLedger) Append(_ context.Context, documentID string, badCase domain.BadCase) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[documentID] = append(l.entries[documentID], badCase)
	return nil
}

func (l *FeedbackLedger) List(_ context.Context, documentID string) ([]domain.BadCase, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.BadCase(nil), l.entries[documentID]...), nil
}

func (l *FeedbackLedger) Clear(_ context.Context, documentID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, documentID)
	return nil
}
