package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
	"github.com/kirillkom/extraction-workbench/internal/core/ports"
)

// DocumentQueryUseCase serves document reads for transports.
type DocumentQueryUseCase struct {
	repo ports.DocumentRepository
}

func NewDocumentQueryUseCase(repo ports.DocumentRepository) *DocumentQueryUseCase {
	return &DocumentQueryUseCase{repo: repo}
}

func (uc *DocumentQueryUseCase) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get document", errors.New("document id is required"))
	}
	return uc.repo.GetByID(ctx, id)
}

// ListByProject returns the documents of projectID, or of the default project when empty.
func (uc *DocumentQueryUseCase) ListByProject(ctx context.Context, projectID string) ([]*domain.Document, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		projectID = DefaultProjectID
	}
	docs, err := uc.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []*domain.Document{}
	}
	return docs, nil
}
