package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
)

// DocumentRepository keeps documents in process memory. Callers always receive copies.
type DocumentRepository struct {
	mu   sync.RWMutex
	docs map[string]*domain.Document
}

func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{docs: make(map[string]*domain.Document)}
}

func (r *DocumentRepository) Create(_ context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "create document", fmt.Errorf("document id is required"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.docs[doc.ID]; exists {
		return domain.WrapError(domain.ErrInvalidInput, "create document", fmt.Errorf("document %s already exists", doc.ID))
	}
	r.docs[doc.ID] = doc.Clone()
	return nil
}

func (r *DocumentRepository) GetByID(_ context.Context, id string) (*domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
	}
	return doc.Clone(), nil
}

func (r *DocumentRepository) Save(_ context.Context, doc *domain.Document) error {
	if doc == nil {
		return domain.WrapError(domain.ErrInvalidInput, "save document", fmt.Errorf("document is nil"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID]; !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "save document", fmt.Errorf("id=%s", doc.ID))
	}
	r.docs[doc.ID] = doc.Clone()
	return nil
}

func (r *DocumentRepository) SaveIfStatus(_ context.Context, doc *domain.Document, expected domain.DocumentStatus) error {
	if doc == nil {
		return domain.WrapError(domain.ErrInvalidInput, "save document", fmt.Errorf("document is nil"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.docs[doc.ID]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "save document", fmt.Errorf("id=%s", doc.ID))
	}
	if stored.Status != expected {
		return domain.WrapError(domain.ErrStatusChanged, "save document", fmt.Errorf("id=%s expected=%s stored=%s", doc.ID, expected, stored.Status))
	}
	r.docs[doc.ID] = doc.Clone()
	return nil
}

// ListByProject returns the project's documents, newest first.
func (r *DocumentRepository) ListByProject(_ context.Context, projectID string) ([]*domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Document, 0)
	for _, doc := range r.docs {
		if doc.ProjectID == projectID {
			out = append(out, doc.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
