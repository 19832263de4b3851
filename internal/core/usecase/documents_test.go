package usecase

import (
	"context"
	"testing"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
)

func TestDocumentQueryListDefaultsProject(t *testing.T) {
	repo := newDocRepoFake(
		&domain.Document{ID: "doc-1", ProjectID: DefaultProjectID},
		&domain.Document{ID: "doc-2", ProjectID: "other"},
	)
	uc := NewDocumentQueryUseCase(repo)

	docs, err := uc.ListByProject(context.Background(), "  ")
	if err != nil {
		t.Fatalf("ListByProject() error = %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "doc-1" {
		t.Fatalf("unexpected documents: %+v", docs)
	}
}

func TestDocumentQueryListEmptyProjectIsNotNil(t *testing.T) {
	uc := NewDocumentQueryUseCase(newDocRepoFake())

	docs, err := uc.ListByProject(context.Background(), "missing")
	if err != nil {
		t.Fatalf("ListByProject() error = %v", err)
	}
	if docs == nil || len(docs) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", docs)
	}
}

func TestDocumentQueryGetValidatesID(t *testing.T) {
	uc := NewDocumentQueryUseCase(newDocRepoFake())

	if _, err := uc.GetByID(context.Background(), ""); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := uc.GetByID(context.Background(), "missing"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
