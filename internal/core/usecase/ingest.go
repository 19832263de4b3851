package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
	"github.com/kirillkom/extraction-workbench/internal/core/ports"
)

const DefaultProjectID = "default"

type IngestDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	pages   ports.PageExtractor
	queue   ports.MessageQueue
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	pages ports.PageExtractor,
	queue ports.MessageQueue,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:    repo,
		storage: storage,
		pages:   pages,
		queue:   queue,
	}
}

func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	projectID, filename, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := newDocument(id, projectID, filename, mimeType)
	doc.StoragePath = storageKey

	pages, err := uc.pages.ExtractPages(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("extract pages: %w", err)
	}
	if err := setContent(doc, pages); err != nil {
		return nil, err
	}

	return doc, uc.register(ctx, doc)
}

// RegisterText registers a document whose pages are already plain text.
func (uc *IngestDocumentUseCase) RegisterText(ctx context.Context, projectID, name string, pages []string) (*domain.Document, error) {
	if strings.TrimSpace(name) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "register text", errors.New("name is required"))
	}
	doc := newDocument(uuid.NewString(), projectID, name, "text/plain")
	if err := setContent(doc, pages); err != nil {
		return nil, err
	}
	return doc, uc.register(ctx, doc)
}

func (uc *IngestDocumentUseCase) register(ctx context.Context, doc *domain.Document) error {
	if err := uc.repo.Create(ctx, doc); err != nil {
		return fmt.Errorf("create document metadata: %w", err)
	}
	if err := uc.queue.PublishDocumentRegistered(ctx, doc.ID); err != nil {
		return fmt.Errorf("publish registration event: %w", err)
	}
	return nil
}

func newDocument(id, projectID, name, mimeType string) *domain.Document {
	if strings.TrimSpace(projectID) == "" {
		projectID = DefaultProjectID
	}
	now := time.Now().UTC()
	return &domain.Document{
		ID:        id,
		ProjectID: projectID,
		Name:      name,
		MimeType:  mimeType,
		Type:      domain.DocTypeUnknown,
		Status:    domain.StatusUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func setContent(doc *domain.Document, pages []string) error {
	hasText := false
	for _, page := range pages {
		if strings.TrimSpace(page) != "" {
			hasText = true
			break
		}
	}
	if !hasText {
		return domain.WrapError(domain.ErrInvalidInput, "register document", errors.New("document has no text"))
	}
	doc.Content = append([]string(nil), pages...)
	return nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == "/" {
		return "document.bin"
	}
	return base
}
