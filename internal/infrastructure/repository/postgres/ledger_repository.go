package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
)

// FeedbackLedger persists review-session bad cases so they survive a restart.
type FeedbackLedger struct {
	db *sql.DB
}

func NewFeedbackLedger(db *sql.DB) *FeedbackLedger {
	return &FeedbackLedger{db: db}
}

func (l *FeedbackLedger) Append(ctx context.Context, documentID string, badCase domain.BadCase) error {
	_, err := l.db.ExecContext(ctx, `
INSERT INTO bad_cases (id, document_id, text, kind, note, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, badCase.ID, documentID, badCase.Text, string(badCase.Type), badCase.Note, badCase.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert bad case: %w", err)
	}
	return nil
}

func (l *FeedbackLedger) List(ctx context.Context, documentID string) ([]domain.BadCase, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT id, text, kind, note, created_at
FROM bad_cases
WHERE document_id = $1
ORDER BY seq
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list bad cases: %w", err)
	}
	defer rows.Close()

	out := make([]domain.BadCase, 0)
	for rows.Next() {
		var bc domain.BadCase
		var kind string
		if err := rows.Scan(&bc.ID, &bc.Text, &kind, &bc.Note, &bc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bad case: %w", err)
		}
		bc.Type = domain.BadCaseType(kind)
		out = append(out, bc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bad cases: %w", err)
	}
	return out, nil
}

func (l *FeedbackLedger) Clear(ctx context.Context, documentID string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM bad_cases WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("clear bad cases: %w", err)
	}
	return nil
}
