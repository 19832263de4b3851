package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
	"github.com/kirillkom/extraction-workbench/internal/core/ports"
)

type FeedbackUseCase struct {
	docs   ports.DocumentRepository
	ledger ports.FeedbackLedger
}

func NewFeedbackUseCase(docs ports.DocumentRepository, ledger ports.FeedbackLedger) *FeedbackUseCase {
	return &FeedbackUseCase{docs: docs, ledger: ledger}
}

// Mark appends a bad case. Marking the same span twice records two entries.
func (uc *FeedbackUseCase) Mark(
	ctx context.Context,
	documentID, text string,
	kind domain.BadCaseType,
	note string,
) (domain.BadCase, error) {
	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return domain.BadCase{}, fmt.Errorf("fetch document by id: %w", err)
	}
	if _, err := domain.Transition(doc.Status, domain.EventReviewUpdated); err != nil {
		return domain.BadCase{}, fmt.Errorf("mark bad case: %w", err)
	}

	badCase, err := domain.NewBadCase(text, kind, note)
	if err != nil {
		return domain.BadCase{}, err
	}
	if err := uc.ledger.Append(ctx, doc.ID, badCase); err != nil {
		return domain.BadCase{}, fmt.Errorf("append bad case: %w", err)
	}
	return badCase, nil
}

func (uc *FeedbackUseCase) List(ctx context.Context, documentID string) ([]domain.BadCase, error) {
	if _, err := uc.docs.GetByID(ctx, documentID); err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return uc.ledger.List(ctx, documentID)
}

func (uc *FeedbackUseCase) Clear(ctx context.Context, documentID string) error {
	if _, err := uc.docs.GetByID(ctx, documentID); err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}
	return uc.ledger.Clear(ctx, documentID)
}
