package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
)

func TestRuleSaveRefusesStaleVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewRuleRepository(db)
	rule := domain.NewRule(domain.DocTypeLoanAgreement, "借款合同标准提取", "提取借款要素。", "", nil)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO rules").
		WithArgs(rule.ID, string(rule.DocType), rule.Name, 1, 0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = repo.Save(context.Background(), rule)
	if !domain.IsKind(err, domain.ErrStaleRule) {
		t.Fatalf("expected ErrStaleRule, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRuleSaveRecordsVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewRuleRepository(db)
	rule := domain.NewRule(domain.DocTypeCourtRuling, "判决书", "提取判决结果。", "", nil).Evolved("更好的指令")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO rules").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO rule_versions").
		WithArgs(rule.ID, 2, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Save(context.Background(), rule); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRuleReplaceRefusesChangedRevision(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	rule := domain.NewRule(domain.DocTypeLoanAgreement, "借款合同标准提取", "提取借款要素。", "", nil)
	rule.Revision = 3

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE rules").
		WithArgs(rule.ID, string(rule.DocType), rule.Name, 1, 4, sqlmock.AnyArg(), sqlmock.AnyArg(), 3).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err = NewRuleRepository(db).Replace(context.Background(), rule)
	if !domain.IsKind(err, domain.ErrStaleRule) {
		t.Fatalf("expected ErrStaleRule, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRuleReplaceBumpsRevision(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	rule := domain.NewRule(domain.DocTypeCourtRuling, "判决书", "提取判决结果。", "", nil).Evolved("更好的指令")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE rules").
		WithArgs(rule.ID, string(rule.DocType), rule.Name, 2, 1, sqlmock.AnyArg(), sqlmock.AnyArg(), 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO rule_versions").
		WithArgs(rule.ID, 2, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	stored, err := NewRuleRepository(db).Replace(context.Background(), rule)
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if stored.Revision != 1 || stored.Version != 2 {
		t.Fatalf("stored = v%d r%d", stored.Version, stored.Revision)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRuleGetVersionDecodesPayload(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	created := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"payload", "created_at"}).
		AddRow([]byte(`{"id":"r1","doc_type":"Loan Agreement","name":"借款","version":1,"skills":[],"schema":"{}","system_instruction":"旧指令"}`), created)
	mock.ExpectQuery("FROM rule_versions").WithArgs("r1", 1).WillReturnRows(rows)

	rule, err := NewRuleRepository(db).GetVersion(context.Background(), "r1", 1)
	if err != nil {
		t.Fatalf("GetVersion() error = %v", err)
	}
	if rule.SystemInstruction != "旧指令" || !rule.UpdatedAt.Equal(created) {
		t.Fatalf("rule = %+v", rule)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLedgerListKeepsInsertOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "text", "kind", "note", "created_at"}).
		AddRow("bc-1", "被告：乙公司", "missed", "", now).
		AddRow("bc-2", "原告：丙公司", "incorrect", "名称错误", now)
	mock.ExpectQuery("FROM bad_cases").WithArgs("doc-1").WillReturnRows(rows)

	got, err := NewFeedbackLedger(db).List(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 || got[1].Type != domain.BadCaseIncorrect || got[1].Note != "名称错误" {
		t.Fatalf("bad cases = %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
