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

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, project_id, uploader_id, name, mime_type, storage_path, doc_type, status, content, extracted_data, applied_rule_id, error_message, created_at, updated_at`

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	contentJSON, fieldsJSON, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO documents (`+documentColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`,
		doc.ID, doc.ProjectID, doc.UploaderID, doc.Name, doc.MimeType, doc.StoragePath,
		string(doc.Type), string(doc.Status), contentJSON, fieldsJSON, doc.AppliedRuleID, doc.Error,
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, err
	}
	return doc, nil
}

// Save replaces every mutable column of the document in one statement.
func (r *DocumentRepository) Save(ctx context.Context, doc *domain.Document) error {
	return r.update(ctx, doc, "", domain.ErrDocumentNotFound)
}

// SaveIfStatus is Save guarded by the stored status, so writers in other processes are not overwritten.
func (r *DocumentRepository) SaveIfStatus(ctx context.Context, doc *domain.Document, expected domain.DocumentStatus) error {
	return r.update(ctx, doc, expected, domain.ErrStatusChanged)
}

// update applies the document row. An empty expected status matches any stored status.
func (r *DocumentRepository) update(ctx context.Context, doc *domain.Document, expected domain.DocumentStatus, missing error) error {
	contentJSON, fieldsJSON, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET name = $2, doc_type = $3, status = $4, content = $5, extracted_data = $6,
	applied_rule_id = $7, error_message = $8, updated_at = $9
WHERE id = $1 AND ($10 = '' OR status = $10)
`, doc.ID, doc.Name, string(doc.Type), string(doc.Status), contentJSON, fieldsJSON,
		doc.AppliedRuleID, doc.Error, doc.UpdatedAt, string(expected))
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return ensureRowsAffected(result, "save document", missing, doc.ID)
}

func (r *DocumentRepository) ListByProject(ctx context.Context, projectID string) ([]*domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE project_id = $1
ORDER BY created_at DESC, id
`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var docType, status string
	var contentRaw, fieldsRaw []byte

	err := row.Scan(
		&doc.ID, &doc.ProjectID, &doc.UploaderID, &doc.Name, &doc.MimeType, &doc.StoragePath,
		&docType, &status, &contentRaw, &fieldsRaw, &doc.AppliedRuleID, &doc.Error,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	doc.Type = domain.DocType(docType)
	doc.Status = domain.DocumentStatus(status)
	if len(contentRaw) > 0 {
		if err := json.Unmarshal(contentRaw, &doc.Content); err != nil {
			return nil, fmt.Errorf("unmarshal content: %w", err)
		}
	}
	if len(fieldsRaw) > 0 && string(fieldsRaw) != "null" {
		if err := json.Unmarshal(fieldsRaw, &doc.ExtractedData); err != nil {
			return nil, fmt.Errorf("unmarshal extracted data: %w", err)
		}
	}
	return &doc, nil
}

func encodeDocument(doc *domain.Document) ([]byte, []byte, error) {
	if doc == nil {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "encode document", errors.New("document is nil"))
	}
	content := doc.Content
	if content == nil {
		content = []string{}
	}
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal content: %w", err)
	}
	var fieldsJSON []byte
	if doc.ExtractedData != nil {
		fieldsJSON, err = json.Marshal(doc.ExtractedData)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal extracted data: %w", err)
		}
	}
	return contentJSON, fieldsJSON, nil
}

func ensureRowsAffected(result sql.Result, operation string, kind error, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(kind, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}
