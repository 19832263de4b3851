package ports

import (
	"context"
	"io"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
)

// DocumentRepository persists and reads document state.
// Save replaces the stored document as a whole. SaveIfStatus does the same only while the
// stored status still equals expected and fails with ErrStatusChanged otherwise.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	Save(ctx context.Context, doc *domain.Document) error
	SaveIfStatus(ctx context.Context, doc *domain.Document, expected domain.DocumentStatus) error
	ListByProject(ctx context.Context, projectID string) ([]*domain.Document, error)
}

// RuleRepository is the rule library. Every write is a single atomic replace-by-id that
// keeps the replaced version readable through GetVersion.
//
// Save stores a new rule or overwrites one with an equal or newer version. Replace is the
// read-modify-write path: it succeeds only while the stored revision still equals
// rule.Revision and returns the stored copy with the next revision. Any write in between
// fails it with ErrStaleRule.
type RuleRepository interface {
	List(ctx context.Context) ([]domain.ExtractionRule, error)
	GetByID(ctx context.Context, id string) (domain.ExtractionRule, error)
	GetVersion(ctx context.Context, id string, version int) (domain.ExtractionRule, error)
	Save(ctx context.Context, rule domain.ExtractionRule) error
	Replace(ctx context.Context, rule domain.ExtractionRule) (domain.ExtractionRule, error)
	Delete(ctx context.Context, id string) error
}

// FeedbackLedger holds the bad cases of the current review session per document.
type FeedbackLedger interface {
	Append(ctx context.Context, documentID string, badCase domain.BadCase) error
	List(ctx context.Context, documentID string) ([]domain.BadCase, error)
	Clear(ctx context.Context, documentID string) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes document registration events.
type MessageQueue interface {
	PublishDocumentRegistered(ctx context.Context, documentID string) error
	SubscribeDocumentRegistered(ctx context.Context, handler func(context.Context, string) error) error
}

// PageExtractor splits a stored document into page texts.
type PageExtractor interface {
	ExtractPages(ctx context.Context, doc *domain.Document) ([]string, error)
}

// FieldExporter renders a document's field map in a tabular format.
type FieldExporter interface {
	Export(w io.Writer, doc *domain.Document) error
	ContentType() string
	FileExtension() string
}

// RuleLineage records which rule version an evolution was derived from.
type RuleLineage interface {
	RecordEvolution(ctx context.Context, from, to domain.ExtractionRule, documentID string) error
}

// WorkbenchMetrics receives domain outcome counters.
type WorkbenchMetrics interface {
	RecordClassification(docType domain.DocType, fallback bool)
	RecordExtraction(status string, fields int)
	RecordRefinement(status string, changed int)
	RecordRegionAnalysis(filled int)
	RecordRuleEvolution(status string)
}
