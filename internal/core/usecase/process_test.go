package usecase

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
)

func uploadedDoc(id string, pages ...string) *domain.Document {
	return &domain.Document{
		ID:      id,
		Type:    domain.DocTypeUnknown,
		Status:  domain.StatusUploaded,
		Content: pages,
	}
}

func TestClassifyByIDSuccess(t *testing.T) {
	repo := newDocRepoFake(uploadedDoc("doc-1", "民事判决书", "第二页"))
	classifier := &classifierFake{docType: domain.DocTypeCourtRuling}
	metrics := &metricsFake{}
	uc := NewClassifyDocumentUseCase(repo, classifier, nil, metrics, 0, time.Second)

	doc, err := uc.ClassifyByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("ClassifyByID() error = %v", err)
	}
	if doc.Type != domain.DocTypeCourtRuling || doc.Status != domain.StatusReadyToExtract {
		t.Fatalf("unexpected document: type=%s status=%s", doc.Type, doc.Status)
	}
	if !reflect.DeepEqual(repo.saves, []domain.DocumentStatus{domain.StatusClassifying, domain.StatusReadyToExtract}) {
		t.Fatalf("saves = %v", repo.saves)
	}
	if !reflect.DeepEqual(metrics.classified, []domain.DocType{domain.DocTypeCourtRuling}) {
		t.Fatalf("metrics = %v", metrics.classified)
	}
}

func TestClassifyByIDFailureFallsBackToUnknown(t *testing.T) {
	repo := newDocRepoFake(uploadedDoc("doc-1", "内容"))
	uc := NewClassifyDocumentUseCase(repo, &classifierFake{err: errors.New("network down")}, nil, nil, 0, time.Second)

	doc, err := uc.ClassifyByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("classification failure must not surface, got %v", err)
	}
	if doc.Type != domain.DocTypeUnknown || doc.Status != domain.StatusReadyToExtract {
		t.Fatalf("unexpected document: type=%s status=%s", doc.Type, doc.Status)
	}
}

func TestClassifyByIDSendsAtLeastMinimumSnippet(t *testing.T) {
	long := strings.Repeat("借", 3000)
	repo := newDocRepoFake(uploadedDoc("doc-1", long))
	classifier := &classifierFake{docType: domain.DocTypeLoanAgreement}
	uc := NewClassifyDocumentUseCase(repo, classifier, nil, nil, 200, time.Second)

	if _, err := uc.ClassifyByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("ClassifyByID() error = %v", err)
	}
	if got := utf8.RuneCountInString(classifier.snippet); got != MinClassifySnippetChars {
		t.Fatalf("snippet length = %d, want %d", got, MinClassifySnippetChars)
	}
}

func TestClassifyByIDSkipsAlreadyClassified(t *testing.T) {
	doc := uploadedDoc("doc-1", "内容")
	doc.Status = domain.StatusReadyToExtract
	doc.Type = domain.DocTypeMortgageContract
	repo := newDocRepoFake(doc)
	classifier := &classifierFake{docType: domain.DocTypeCourtRuling}
	uc := NewClassifyDocumentUseCase(repo, classifier, nil, nil, 0, time.Second)

	got, err := uc.ClassifyByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("ClassifyByID() error = %v", err)
	}
	if got.Type != domain.DocTypeMortgageContract || len(repo.saves) != 0 {
		t.Fatalf("manual type must win over late classification")
	}
}

func TestClassifyByIDNotFound(t *testing.T) {
	uc := NewClassifyDocumentUseCase(newDocRepoFake(), &classifierFake{}, nil, nil, 0, time.Second)
	if _, err := uc.ClassifyByID(context.Background(), "missing"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestClassifyByIDSendsOnlyFirstPage(t *testing.T) {
	repo := newDocRepoFake(uploadedDoc("doc-1", "封面", "第二页正文内容"))
	classifier := &classifierFake{docType: domain.DocTypeLoanAgreement}
	uc := NewClassifyDocumentUseCase(repo, classifier, nil, nil, 0, time.Second)

	if _, err := uc.ClassifyByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("ClassifyByID() error = %v", err)
	}
	if classifier.snippet != "封面" {
		t.Fatalf("snippet = %q, want first page only", classifier.snippet)
	}
}

func TestClassifyByIDKeepsWorkDoneWhileClassifierRan(t *testing.T) {
	repo := newDocRepoFake(uploadedDoc("doc-1", "借款人：张三"))
	metrics := &metricsFake{}
	classifier := &classifierFake{docType: domain.DocTypeCourtRuling}
	// The API process assigns a type and runs extraction under its own guard.
	classifier.during = func() {
		reviewed := reviewDoc("doc-1")
		reviewed.Content = []string{"借款人：张三"}
		if err := repo.Save(context.Background(), reviewed); err != nil {
			t.Errorf("Save() error = %v", err)
		}
	}
	uc := NewClassifyDocumentUseCase(repo, classifier, nil, metrics, 0, time.Second)

	got, err := uc.ClassifyByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("ClassifyByID() error = %v", err)
	}
	if got.Status != domain.StatusReview || got.Type != domain.DocTypeLoanAgreement {
		t.Fatalf("returned document = status %s type %s", got.Status, got.Type)
	}
	stored := repo.stored("doc-1")
	if stored.Status != domain.StatusReview || stored.AppliedRuleID != "rule-loan-001" || len(stored.ExtractedData) != 3 {
		t.Fatalf("extraction overwritten: status=%s rule=%q fields=%d", stored.Status, stored.AppliedRuleID, len(stored.ExtractedData))
	}
	if len(metrics.classified) != 0 {
		t.Fatalf("skipped classification recorded: %v", metrics.classified)
	}
}
