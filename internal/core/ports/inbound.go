package ports

import (
	"context"
	"io"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document registration.
type DocumentIngestor interface {
	Upload(ctx context.Context, projectID, filename, mimeType string, body io.Reader) (*domain.Document, error)
	RegisterText(ctx context.Context, projectID, name string, pages []string) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByProject(ctx context.Context, projectID string) ([]*domain.Document, error)
}

// DocumentProcessor runs the asynchronous classification step.
type DocumentProcessor interface {
	ClassifyByID(ctx context.Context, documentID string) (*domain.Document, error)
}

type RunOptions struct {
	RuleID  string
	ModelID string
}

type RegionOutcome struct {
	Document *domain.Document
	Filled   []string
}

type RefineOutcome struct {
	Document *domain.Document
	Changed  []string
}

// ExtractionService is the orchestrator surface used by transports.
type ExtractionService interface {
	SelectRule(ctx context.Context, documentID, ruleID string) (*domain.Document, error)
	AssignType(ctx context.Context, documentID string, docType domain.DocType) (*domain.Document, error)
	RunExtraction(ctx context.Context, documentID string, opts RunOptions) (*domain.Document, error)
	EditField(ctx context.Context, documentID, key string, value any) (*domain.Document, error)
	ImportFields(ctx context.Context, documentID string, labels []string) (*domain.Document, int, error)
	AnalyzeRegion(ctx context.Context, documentID, text string) (RegionOutcome, error)
	Refine(ctx context.Context, documentID string) (RefineOutcome, error)
	CompleteReview(ctx context.Context, documentID string) (*domain.Document, error)
	Export(ctx context.Context, documentID string, w io.Writer) error
	ExportFormat() (contentType, extension string)
}

// FeedbackService manages the bad-case ledger of a review session.
type FeedbackService interface {
	Mark(ctx context.Context, documentID, text string, kind domain.BadCaseType, note string) (domain.BadCase, error)
	List(ctx context.Context, documentID string) ([]domain.BadCase, error)
	Clear(ctx context.Context, documentID string) error
}

type RuleInput struct {
	DocType           domain.DocType
	Name              string
	SystemInstruction string
	Schema            string
	Skills            []domain.ExtractionSkill
}

// RuleLibrary manages extraction rules.
type RuleLibrary interface {
	List(ctx context.Context) ([]domain.ExtractionRule, error)
	Get(ctx context.Context, id string) (domain.ExtractionRule, error)
	GetVersion(ctx context.Context, id string, version int) (domain.ExtractionRule, error)
	Create(ctx context.Context, in RuleInput) (domain.ExtractionRule, error)
	Update(ctx context.Context, id string, in RuleInput) (domain.ExtractionRule, error)
	Delete(ctx context.Context, id string) error
	AddSkill(ctx context.Context, ruleID string, skill domain.ExtractionSkill) (domain.ExtractionRule, error)
	UpdateSkill(ctx context.Context, ruleID string, skill domain.ExtractionSkill) (domain.ExtractionRule, error)
	RemoveSkill(ctx context.Context, ruleID, skillID string) (domain.ExtractionRule, error)
	OptimizeSkill(ctx context.Context, ruleID, skillID string) (domain.ExtractionRule, bool, error)
	Generate(ctx context.Context, description string, docType domain.DocType, name string) (domain.ExtractionRule, error)
}

// RuleEvolver derives a new rule version from a reviewed document.
type RuleEvolver interface {
	EvolveFromDocument(ctx context.Context, documentID string) (domain.ExtractionRule, error)
}
