package memory

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
)

func TestDocumentRepositoryReturnsCopies(t *testing.T) {
	repo := NewDocumentRepository()
	ctx := context.Background()
	doc := &domain.Document{
		ID:        "doc-1",
		ProjectID: "p",
		Status:    domain.StatusUploaded,
		Content:   []string{"page one"},
	}
	if err := repo.Create(ctx, doc); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	doc.Content[0] = "mutated"

	got, err := repo.GetByID(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Content[0] != "page one" {
		t.Fatalf("stored document shares memory with caller: %q", got.Content[0])
	}

	got.Status = domain.StatusClassifying
	again, _ := repo.GetByID(ctx, "doc-1")
	if again.Status != domain.StatusUploaded {
		t.Fatalf("unsaved change leaked: %s", again.Status)
	}
}

func TestDocumentRepositoryErrors(t *testing.T) {
	repo := NewDocumentRepository()
	ctx := context.Background()
	if _, err := repo.GetByID(ctx, "missing"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := repo.Save(ctx, &domain.Document{ID: "missing"}); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound on save, got %v", err)
	}
	_ = repo.Create(ctx, &domain.Document{ID: "a"})
	if err := repo.Create(ctx, &domain.Document{ID: "a"}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected duplicate create to fail, got %v", err)
	}
}

func TestListByProjectNewestFirst(t *testing.T) {
	repo := NewDocumentRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	_ = repo.Create(ctx, &domain.Document{ID: "old", ProjectID: "p", CreatedAt: base})
	_ = repo.Create(ctx, &domain.Document{ID: "new", ProjectID: "p", CreatedAt: base.Add(time.Hour)})
	_ = repo.Create(ctx, &domain.Document{ID: "other", ProjectID: "q", CreatedAt: base})

	docs, err := repo.ListByProject(ctx, "p")
	if err != nil {
		t.Fatalf("ListByProject() error = %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "new" || docs[1].ID != "old" {
		t.Fatalf("docs = %v", docs)
	}
}

func TestDocumentRepositorySaveIfStatus(t *testing.T) {
	repo := NewDocumentRepository()
	ctx := context.Background()
	_ = repo.Create(ctx, &domain.Document{ID: "doc-1", ProjectID: "p", Status: domain.StatusClassifying})

	moved := &domain.Document{ID: "doc-1", ProjectID: "p", Status: domain.StatusReview, AppliedRuleID: "rule-1"}
	if err := repo.Save(ctx, moved); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	stale := &domain.Document{ID: "doc-1", ProjectID: "p", Status: domain.StatusReadyToExtract}
	if err := repo.SaveIfStatus(ctx, stale, domain.StatusClassifying); !domain.IsKind(err, domain.ErrStatusChanged) {
		t.Fatalf("expected ErrStatusChanged, got %v", err)
	}
	got, _ := repo.GetByID(ctx, "doc-1")
	if got.Status != domain.StatusReview || got.AppliedRuleID != "rule-1" {
		t.Fatalf("stale write applied: %+v", got)
	}
	if err := repo.SaveIfStatus(ctx, &domain.Document{ID: "doc-1", Status: domain.StatusReview}, domain.StatusReview); err != nil {
		t.Fatalf("SaveIfStatus(matching) error = %v", err)
	}
}

func TestRuleRepositoryKeepsVersions(t *testing.T) {
	repo := NewRuleRepository()
	ctx := context.Background()
	rule := domain.NewRule(domain.DocTypeLoanAgreement, "借款合同标准提取", "提取借款要素。", `{"借款人":"string"}`, nil)
	if err := repo.Save(ctx, rule); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	evolved := rule.Evolved("更稳健的指令")
	if err := repo.Save(ctx, evolved); err != nil {
		t.Fatalf("Save(evolved) error = %v", err)
	}

	current, err := repo.GetByID(ctx, rule.ID)
	if err != nil || current.Version != 2 {
		t.Fatalf("current = %+v err=%v", current, err)
	}
	old, err := repo.GetVersion(ctx, rule.ID, 1)
	if err != nil || old.SystemInstruction != "提取借款要素。" {
		t.Fatalf("version 1 = %+v err=%v", old, err)
	}

	if err := repo.Save(ctx, rule); !domain.IsKind(err, domain.ErrStaleRule) {
		t.Fatalf("expected ErrStaleRule, got %v", err)
	}
	if err := repo.Delete(ctx, rule.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetVersion(ctx, rule.ID, 1); !domain.IsKind(err, domain.ErrRuleNotFound) {
		t.Fatalf("expected versions to go with the rule, got %v", err)
	}
}

func TestRuleRepositoryReplaceDetectsConcurrentWrite(t *testing.T) {
	repo := NewRuleRepository()
	ctx := context.Background()
	rule := domain.NewRule(domain.DocTypeLoanAgreement, "借款合同标准提取", "提取借款要素。", `{"借款人":"string"}`, nil)
	if err := repo.Save(ctx, rule); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	first, _ := repo.GetByID(ctx, rule.ID)
	second, _ := repo.GetByID(ctx, rule.ID)

	edited, err := repo.Replace(ctx, first.AddSkill(domain.ExtractionSkill{Name: "担保人"}))
	if err != nil {
		t.Fatalf("Replace(edit) error = %v", err)
	}
	if edited.Revision != first.Revision+1 || edited.Version != 1 {
		t.Fatalf("edited = v%d r%d", edited.Version, edited.Revision)
	}

	if _, err := repo.Replace(ctx, second.Evolved("新指令")); !domain.IsKind(err, domain.ErrStaleRule) {
		t.Fatalf("expected ErrStaleRule for a rule read before the edit, got %v", err)
	}
	current, _ := repo.GetByID(ctx, rule.ID)
	if current.Version != 1 || len(current.Skills) != 1 {
		t.Fatalf("current = v%d skills=%d", current.Version, len(current.Skills))
	}
	if _, err := repo.GetVersion(ctx, rule.ID, 2); !domain.IsKind(err, domain.ErrRuleNotFound) {
		t.Fatalf("refused evolution must not leave a version row, got %v", err)
	}

	if _, err := repo.Replace(ctx, domain.ExtractionRule{ID: "missing"}); !domain.IsKind(err, domain.ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
}

func TestFeedbackLedgerClear(t *testing.T) {
	ledger := NewFeedbackLedger()
	ctx := context.Background()
	_ = ledger.Append(ctx, "doc-1", domain.BadCase{Text: "a", Type: domain.BadCaseMissed})
	_ = ledger.Append(ctx, "doc-1", domain.BadCase{Text: "b", Type: domain.BadCaseIncorrect})
	_ = ledger.Append(ctx, "doc-2", domain.BadCase{Text: "c", Type: domain.BadCaseMissed})

	got, _ := ledger.List(ctx, "doc-1")
	if len(got) != 2 || got[0].Text != "a" {
		t.Fatalf("list = %+v", got)
	}
	_ = ledger.Clear(ctx, "doc-1")
	got, _ = ledger.List(ctx, "doc-1")
	other, _ := ledger.List(ctx, "doc-2")
	if len(got) != 0 || len(other) != 1 {
		t.Fatalf("after clear: doc-1=%d doc-2=%d", len(got), len(other))
	}
}
