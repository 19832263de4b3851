package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
	"github.com/kirillkom/extraction-workbench/internal/core/ports"
)

// MinClassifySnippetChars is the least amount of text a classifier ever receives.
const MinClassifySnippetChars = 1000

// ClassifyDocumentUseCase moves registered documents through classification. It never
// fails because of the classifier: any classifier problem resolves to Unknown.
type ClassifyDocumentUseCase struct {
	repo         ports.DocumentRepository
	classifier   ports.Classifier
	guard        *DocumentGuard
	metrics      ports.WorkbenchMetrics
	snippetChars int
	timeout      time.Duration
}

func NewClassifyDocumentUseCase(
	repo ports.DocumentRepository,
	classifier ports.Classifier,
	guard *DocumentGuard,
	metrics ports.WorkbenchMetrics,
	snippetChars int,
	timeout time.Duration,
) *ClassifyDocumentUseCase {
	if guard == nil {
		guard = NewDocumentGuard()
	}
	if snippetChars < MinClassifySnippetChars {
		snippetChars = MinClassifySnippetChars
	}
	return &ClassifyDocumentUseCase{
		repo:         repo,
		classifier:   classifier,
		guard:        guard,
		metrics:      metricsOrNoop(metrics),
		snippetChars: snippetChars,
		timeout:      timeout,
	}
}

func (uc *ClassifyDocumentUseCase) ClassifyByID(ctx context.Context, documentID string) (*domain.Document, error) {
	release, err := uc.guard.Acquire(documentID, "classify")
	if err != nil {
		return nil, err
	}
	defer release()

	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}

	// Redelivered events or a manual type assignment already moved the document on.
	if doc.Status != domain.StatusUploaded {
		slog.Info("classification_skipped", "document_id", doc.ID, "status", doc.Status)
		return doc, nil
	}

	if err := uc.markStatus(ctx, doc, domain.EventClassificationStarted); err != nil {
		if domain.IsKind(err, domain.ErrStatusChanged) {
			return uc.skipMoved(ctx, doc.ID)
		}
		return nil, fmt.Errorf("set status=classifying: %w", err)
	}

	docType, fallback := uc.classify(ctx, doc)
	doc.Type = docType

	saveCtx, cancel := persistCtx(ctx)
	defer cancel()
	if err := uc.markStatus(saveCtx, doc, domain.EventClassificationFinished); err != nil {
		// Another process assigned a type or started extraction while the classifier ran.
		if domain.IsKind(err, domain.ErrStatusChanged) {
			return uc.skipMoved(saveCtx, doc.ID)
		}
		return nil, fmt.Errorf("set status=ready: %w", err)
	}
	uc.metrics.RecordClassification(docType, fallback)
	return doc, nil
}

func (uc *ClassifyDocumentUseCase) skipMoved(ctx context.Context, documentID string) (*domain.Document, error) {
	current, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	slog.Info("classification_skipped", "document_id", documentID, "status", current.Status, "reason", "status_changed")
	return current, nil
}

func (uc *ClassifyDocumentUseCase) classify(ctx context.Context, doc *domain.Document) (domain.DocType, bool) {
	snippet := truncateRunes(doc.FirstPage(), uc.snippetChars)

	callCtx, cancel := withOperationTimeout(ctx, uc.timeout)
	defer cancel()

	docType, err := uc.classifier.Classify(callCtx, snippet)
	if err != nil {
		slog.Warn("classification_failed", "document_id", doc.ID, "error", err)
		return domain.DocTypeUnknown, true
	}
	if !docType.Valid() {
		return domain.DocTypeUnknown, true
	}
	return docType, docType == domain.DocTypeUnknown
}

// markStatus persists the transition only if the stored document is still in the status it was read in.
func (uc *ClassifyDocumentUseCase) markStatus(ctx context.Context, doc *domain.Document, event domain.Event) error {
	from := doc.Status
	if err := doc.Apply(event); err != nil {
		return err
	}
	doc.UpdatedAt = time.Now().UTC()
	return uc.repo.SaveIfStatus(ctx, doc, from)
}
