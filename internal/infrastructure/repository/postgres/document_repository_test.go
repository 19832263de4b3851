package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DocumentRepository{db: db}, mock, func() { _ = db.Close() }
}

var documentRowColumns = []string{
	"id", "project_id", "uploader_id", "name", "mime_type", "storage_path", "doc_type", "status",
	"content", "extracted_data", "applied_rule_id", "error_message", "created_at", "updated_at",
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, project_id, uploader_id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDDecodesContentAndFields(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(documentRowColumns).AddRow(
		"doc-1", "default", "", "合同.pdf", "application/pdf", "doc-1_合同.pdf",
		string(domain.DocTypeLoanAgreement), string(domain.StatusReview),
		[]byte(`["第一页","第二页"]`),
		[]byte(`{"借款人":{"key":"借款人","label":"借款人","value":"张三","confidence":0.8,"is_edited":false,"position":0}}`),
		"rule-loan-001", "", now, now,
	)
	mock.ExpectQuery("FROM documents").WithArgs("doc-1").WillReturnRows(rows)

	doc, err := repo.GetByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if len(doc.Content) != 2 || doc.Content[1] != "第二页" {
		t.Fatalf("content = %v", doc.Content)
	}
	if doc.ExtractedData["借款人"].Value != "张三" || doc.Status != domain.StatusReview {
		t.Fatalf("doc = %+v", doc)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("missing", "a.txt", string(domain.DocTypeUnknown), string(domain.StatusClassifying),
			sqlmock.AnyArg(), sqlmock.AnyArg(), "", "", sqlmock.AnyArg(), "").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Save(context.Background(), &domain.Document{
		ID:     "missing",
		Name:   "a.txt",
		Type:   domain.DocTypeUnknown,
		Status: domain.StatusClassifying,
	})
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveIfStatusReportsChangedStatus(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", "a.txt", string(domain.DocTypeLoanAgreement), string(domain.StatusReadyToExtract),
			sqlmock.AnyArg(), sqlmock.AnyArg(), "", "", sqlmock.AnyArg(), string(domain.StatusClassifying)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SaveIfStatus(context.Background(), &domain.Document{
		ID:     "doc-1",
		Name:   "a.txt",
		Type:   domain.DocTypeLoanAgreement,
		Status: domain.StatusReadyToExtract,
	}, domain.StatusClassifying)
	if !domain.IsKind(err, domain.ErrStatusChanged) {
		t.Fatalf("expected ErrStatusChanged, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListByProjectScansRows(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(documentRowColumns).
		AddRow("b", "p", "", "b.txt", "text/plain", "", "Unknown", "Uploaded", []byte(`["b"]`), nil, "", "", now, now).
		AddRow("a", "p", "", "a.txt", "text/plain", "", "Unknown", "Ready", []byte(`["a"]`), nil, "", "", now, now)
	mock.ExpectQuery("WHERE project_id").WithArgs("p").WillReturnRows(rows)

	docs, err := repo.ListByProject(context.Background(), "p")
	if err != nil {
		t.Fatalf("ListByProject() error = %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "b" || docs[1].ExtractedData != nil {
		t.Fatalf("docs = %+v", docs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
