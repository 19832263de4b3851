package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
)

// RuleRepository stores the current rule row plus one immutable row per version.
type RuleRepository struct {
	db *sql.DB
}

func NewRuleRepository(db *sql.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

func (r *RuleRepository) List(ctx context.Context) ([]domain.ExtractionRule, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT payload, updated_at
FROM rules
ORDER BY doc_type, name, id
`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ExtractionRule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return out, nil
}

func (r *RuleRepository) GetByID(ctx context.Context, id string) (domain.ExtractionRule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT payload, updated_at FROM rules WHERE id = $1`, id)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ExtractionRule{}, domain.WrapError(domain.ErrRuleNotFound, "get rule", fmt.Errorf("id=%s", id))
	}
	return rule, err
}

func (r *RuleRepository) GetVersion(ctx context.Context, id string, version int) (domain.ExtractionRule, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT payload, created_at
FROM rule_versions
WHERE rule_id = $1 AND version = $2
`, id, version)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ExtractionRule{}, domain.WrapError(domain.ErrRuleNotFound, "get rule version", fmt.Errorf("id=%s version=%d", id, version))
	}
	return rule, err
}

// Save upserts the rule only when its version is not older than the stored one,
// and records the version row in the same transaction.
func (r *RuleRepository) Save(ctx context.Context, rule domain.ExtractionRule) error {
	if rule.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "save rule", errors.New("rule id is required"))
	}
	if rule.UpdatedAt.IsZero() {
		rule.UpdatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("marshal rule: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rule tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
INSERT INTO rules (id, doc_type, name, version, revision, payload, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE
SET doc_type = EXCLUDED.doc_type, name = EXCLUDED.name, version = EXCLUDED.version,
	revision = EXCLUDED.revision, payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
WHERE rules.version <= EXCLUDED.version
`, rule.ID, string(rule.DocType), rule.Name, rule.Version, rule.Revision, payload, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert rule: %w", err)
	}
	if err := ensureRowsAffected(result, "save rule", domain.ErrStaleRule, rule.ID); err != nil {
		return err
	}
	if err := recordVersion(ctx, tx, rule, payload); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rule tx: %w", err)
	}
	return nil
}

// Replace updates the rule row only while its revision still matches the one the caller read.
func (r *RuleRepository) Replace(ctx context.Context, rule domain.ExtractionRule) (domain.ExtractionRule, error) {
	if rule.ID == "" {
		return domain.ExtractionRule{}, domain.WrapError(domain.ErrInvalidInput, "replace rule", errors.New("rule id is required"))
	}
	expected := rule.Revision
	next := rule.Clone()
	next.Revision = expected + 1
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(next)
	if err != nil {
		return domain.ExtractionRule{}, fmt.Errorf("marshal rule: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ExtractionRule{}, fmt.Errorf("begin rule tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
UPDATE rules
SET doc_type = $2, name = $3, version = $4, revision = $5, payload = $6, updated_at = $7
WHERE id = $1 AND revision = $8 AND version <= $4
`, next.ID, string(next.DocType), next.Name, next.Version, next.Revision, payload, next.UpdatedAt, expected)
	if err != nil {
		return domain.ExtractionRule{}, fmt.Errorf("replace rule: %w", err)
	}
	if err := ensureRowsAffected(result, "replace rule", domain.ErrStaleRule, next.ID); err != nil {
		return domain.ExtractionRule{}, err
	}
	if err := recordVersion(ctx, tx, next, payload); err != nil {
		return domain.ExtractionRule{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.ExtractionRule{}, fmt.Errorf("commit rule tx: %w", err)
	}
	return next, nil
}

// recordVersion keeps the latest state of each version. Edits that do not bump the
// version rewrite its row.
func recordVersion(ctx context.Context, tx *sql.Tx, rule domain.ExtractionRule, payload []byte) error {
	if _, err := tx.ExecContext(ctx, `
INSERT INTO rule_versions (rule_id, version, payload, created_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (rule_id, version) DO UPDATE SET payload = EXCLUDED.payload
`, rule.ID, rule.Version, payload, rule.UpdatedAt); err != nil {
		return fmt.Errorf("record rule version: %w", err)
	}
	return nil
}

func (r *RuleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return ensureRowsAffected(result, "delete rule", domain.ErrRuleNotFound, id)
}

func scanRule(row rowScanner) (domain.ExtractionRule, error) {
	var payload []byte
	var updatedAt time.Time
	if err := row.Scan(&payload, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ExtractionRule{}, err
		}
		return domain.ExtractionRule{}, fmt.Errorf("scan rule: %w", err)
	}
	var rule domain.ExtractionRule
	if err := json.Unmarshal(payload, &rule); err != nil {
		return domain.ExtractionRule{}, fmt.Errorf("unmarshal rule: %w", err)
	}
	rule.UpdatedAt = updatedAt
	return rule, nil
}
