package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
	"github.com/kirillkom/extraction-workbench/internal/core/ports"
)

// ExtractionUseCase owns every operation that changes a document's field map.
type ExtractionUseCase struct {
	docs      ports.DocumentRepository
	rules     ports.RuleRepository
	ledger    ports.FeedbackLedger
	extractor ports.Extractor
	region    ports.RegionAnalyzer
	refiner   ports.Refiner
	exporter  ports.FieldExporter
	guard     *DocumentGuard
	metrics   ports.WorkbenchMetrics
	matcher   domain.KeyMatcher
	timeout   time.Duration
}

type ExtractionOptions struct {
	Guard            *DocumentGuard
	Metrics          ports.WorkbenchMetrics
	Matcher          domain.KeyMatcher
	OperationTimeout time.Duration
}

func NewExtractionUseCase(
	docs ports.DocumentRepository,
	rules ports.RuleRepository,
	ledger ports.FeedbackLedger,
	extractor ports.Extractor,
	region ports.RegionAnalyzer,
	refiner ports.Refiner,
	exporter ports.FieldExporter,
	opts ExtractionOptions,
) *ExtractionUseCase {
	if opts.Guard == nil {
		opts.Guard = NewDocumentGuard()
	}
	if opts.Matcher == nil {
		opts.Matcher = domain.ContainmentMatcher{}
	}
	return &ExtractionUseCase{
		docs:      docs,
		rules:     rules,
		ledger:    ledger,
		extractor: extractor,
		region:    region,
		refiner:   refiner,
		exporter:  exporter,
		guard:     opts.Guard,
		metrics:   metricsOrNoop(opts.Metrics),
		matcher:   opts.Matcher,
		timeout:   opts.OperationTimeout,
	}
}

// SelectRule binds a rule and coerces the document type to the rule's type.
func (uc *ExtractionUseCase) SelectRule(ctx context.Context, documentID, ruleID string) (*domain.Document, error) {
	release, err := uc.guard.Acquire(documentID, "select rule")
	if err != nil {
		return nil, err
	}
	defer release()

	doc, err := uc.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if _, err := uc.bindRule(ctx, doc, ruleID); err != nil {
		return nil, err
	}
	if err := uc.save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (uc *ExtractionUseCase) AssignType(ctx context.Context, documentID string, docType domain.DocType) (*domain.Document, error) {
	if !docType.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "assign type", fmt.Errorf("unknown document type %q", docType))
	}
	release, err := uc.guard.Acquire(documentID, "assign type")
	if err != nil {
		return nil, err
	}
	defer release()

	doc, err := uc.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if err := doc.Apply(domain.EventTypeAssigned); err != nil {
		return nil, fmt.Errorf("assign type: %w", err)
	}
	doc.Type = docType
	if err := uc.save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// RunExtraction replaces the field map wholesale. On failure the document returns to
// Ready and keeps whatever map it had before the run.
func (uc *ExtractionUseCase) RunExtraction(ctx context.Context, documentID string, opts ports.RunOptions) (*domain.Document, error) {
	release, err := uc.guard.Acquire(documentID, "extract")
	if err != nil {
		return nil, err
	}
	defer release()

	doc, err := uc.load(ctx, documentID)
	if err != nil {
		return nil, err
	}

	var rule domain.ExtractionRule
	if opts.RuleID != "" {
		rule, err = uc.bindRule(ctx, doc, opts.RuleID)
		if err != nil {
			return nil, err
		}
	} else {
		if doc.AppliedRuleID == "" {
			return nil, domain.WrapError(domain.ErrRuleNotBound, "extract", fmt.Errorf("document_id=%s", doc.ID))
		}
		rule, err = uc.rules.GetByID(ctx, doc.AppliedRuleID)
		if err != nil {
			return nil, fmt.Errorf("fetch applied rule: %w", err)
		}
	}

	if err := doc.Apply(domain.EventExtractionStarted); err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	doc.Error = ""
	if err := uc.save(ctx, doc); err != nil {
		return nil, fmt.Errorf("set status=extracting: %w", err)
	}

	callCtx, cancel := withOperationTimeout(ctx, uc.timeout)
	answer, extractErr := uc.extractor.Extract(callCtx, ports.ExtractionRequest{
		Text:    doc.FullText(),
		DocType: doc.Type,
		Rule:    rule,
		ModelID: opts.ModelID,
	})
	cancel()

	saveCtx, saveCancel := persistCtx(ctx)
	defer saveCancel()

	if extractErr != nil {
		uc.metrics.RecordExtraction("failed", 0)
		if rollbackErr := uc.rollbackExtraction(saveCtx, doc, extractErr); rollbackErr != nil {
			return nil, fmt.Errorf("extract document: %w; rollback: %v", extractErr, rollbackErr)
		}
		return nil, fmt.Errorf("extract document: %w", extractErr)
	}

	doc.ExtractedData = domain.FromExtraction(answer, rule.SchemaKeys())
	if err := doc.Apply(domain.EventExtractionSucceeded); err != nil {
		return nil, err
	}
	if err := uc.save(saveCtx, doc); err != nil {
		return nil, fmt.Errorf("save extraction result: %w", err)
	}
	uc.metrics.RecordExtraction("succeeded", len(doc.ExtractedData))

	// A fresh field map starts a new review session.
	if err := uc.ledger.Clear(saveCtx, doc.ID); err != nil {
		slog.Warn("feedback_reset_failed", "document_id", doc.ID, "error", err)
	}
	return doc, nil
}

func (uc *ExtractionUseCase) rollbackExtraction(ctx context.Context, doc *domain.Document, cause error) error {
	if err := doc.Apply(domain.EventExtractionFailed); err != nil {
		return err
	}
	doc.Error = userMessage(cause)
	return uc.save(ctx, doc)
}

func (uc *ExtractionUseCase) EditField(ctx context.Context, documentID, key string, value any) (*domain.Document, error) {
	return uc.updateReview(ctx, documentID, "edit field", func(doc *domain.Document) error {
		return doc.ExtractedData.ApplyManualEdit(key, value)
	})
}

func (uc *ExtractionUseCase) ImportFields(ctx context.Context, documentID string, labels []string) (*domain.Document, int, error) {
	added := 0
	doc, err := uc.updateReview(ctx, documentID, "import fields", func(doc *domain.Document) error {
		added = doc.ExtractedData.ImportLabels(labels)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return doc, added, nil
}

// AnalyzeRegion fills missing fields from a reviewer-selected span. Collaborator failures
// resolve to zero filled fields.
func (uc *ExtractionUseCase) AnalyzeRegion(ctx context.Context, documentID, text string) (ports.RegionOutcome, error) {
	if text == "" {
		return ports.RegionOutcome{}, domain.WrapError(domain.ErrInvalidInput, "analyze region", errors.New("text is empty"))
	}
	release, err := uc.guard.Acquire(documentID, "analyze region")
	if err != nil {
		return ports.RegionOutcome{}, err
	}
	defer release()

	doc, err := uc.loadForReview(ctx, documentID, "analyze region")
	if err != nil {
		return ports.RegionOutcome{}, err
	}

	candidates := doc.ExtractedData.MissingKeys()
	if len(candidates) == 0 {
		uc.metrics.RecordRegionAnalysis(0)
		return ports.RegionOutcome{Document: doc, Filled: []string{}}, nil
	}

	callCtx, cancel := withOperationTimeout(ctx, uc.timeout)
	result, err := uc.region.AnalyzeRegion(callCtx, ports.RegionRequest{
		Text:    text,
		Targets: candidates,
		DocType: doc.Type,
	})
	cancel()
	if err != nil {
		slog.Warn("region_analysis_failed", "document_id", doc.ID, "error", err)
		uc.metrics.RecordRegionAnalysis(0)
		return ports.RegionOutcome{Document: doc, Filled: []string{}}, nil
	}
	if !result.Found {
		uc.metrics.RecordRegionAnalysis(0)
		return ports.RegionOutcome{Document: doc, Filled: []string{}}, nil
	}

	filled := doc.ExtractedData.ApplyRegionResult(result.Data, candidates, uc.matcher)
	uc.metrics.RecordRegionAnalysis(len(filled))
	if len(filled) == 0 {
		return ports.RegionOutcome{Document: doc, Filled: filled}, nil
	}

	saveCtx, saveCancel := persistCtx(ctx)
	defer saveCancel()
	if err := doc.Apply(domain.EventReviewUpdated); err != nil {
		return ports.RegionOutcome{}, err
	}
	if err := uc.save(saveCtx, doc); err != nil {
		return ports.RegionOutcome{}, err
	}
	return ports.RegionOutcome{Document: doc, Filled: filled}, nil
}

// Refine runs a feedback-driven pass. The ledger is cleared once the call settles,
// whether or not the refiner succeeded.
func (uc *ExtractionUseCase) Refine(ctx context.Context, documentID string) (ports.RefineOutcome, error) {
	release, err := uc.guard.Acquire(documentID, "refine")
	if err != nil {
		return ports.RefineOutcome{}, err
	}
	defer release()

	doc, err := uc.loadForReview(ctx, documentID, "refine")
	if err != nil {
		return ports.RefineOutcome{}, err
	}

	badCases, err := uc.ledger.List(ctx, doc.ID)
	if err != nil {
		return ports.RefineOutcome{}, fmt.Errorf("list bad cases: %w", err)
	}
	if len(badCases) == 0 {
		return ports.RefineOutcome{}, domain.WrapError(domain.ErrNoFeedback, "refine", fmt.Errorf("document_id=%s", doc.ID))
	}

	saveCtx, saveCancel := persistCtx(ctx)
	defer saveCancel()
	defer func() {
		if err := uc.ledger.Clear(saveCtx, doc.ID); err != nil {
			slog.Warn("feedback_clear_failed", "document_id", doc.ID, "error", err)
		}
	}()

	callCtx, cancel := withOperationTimeout(ctx, uc.timeout)
	answer, err := uc.refiner.Refine(callCtx, ports.RefineRequest{
		Text:     doc.FullText(),
		DocType:  doc.Type,
		Keys:     doc.ExtractedData.Keys(),
		Snapshot: doc.ExtractedData.ValueSnapshot(),
		BadCases: badCases,
	})
	cancel()
	if err != nil {
		uc.metrics.RecordRefinement("failed", 0)
		return ports.RefineOutcome{}, fmt.Errorf("refine document: %w", err)
	}

	changed := doc.ExtractedData.MergeRefinement(answer)
	if err := doc.Apply(domain.EventReviewUpdated); err != nil {
		return ports.RefineOutcome{}, err
	}
	if err := uc.save(saveCtx, doc); err != nil {
		return ports.RefineOutcome{}, err
	}
	uc.metrics.RecordRefinement("succeeded", len(changed))
	return ports.RefineOutcome{Document: doc, Changed: changed}, nil
}

func (uc *ExtractionUseCase) CompleteReview(ctx context.Context, documentID string) (*domain.Document, error) {
	release, err := uc.guard.Acquire(documentID, "complete review")
	if err != nil {
		return nil, err
	}
	defer release()

	doc, err := uc.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if err := doc.Apply(domain.EventReviewCompleted); err != nil {
		return nil, fmt.Errorf("complete review: %w", err)
	}
	if err := uc.save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (uc *ExtractionUseCase) Export(ctx context.Context, documentID string, w io.Writer) error {
	doc, err := uc.load(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.ExtractedData == nil {
		return domain.WrapError(domain.ErrInvalidInput, "export", fmt.Errorf("document %s has no extracted fields", doc.ID))
	}
	if err := uc.exporter.Export(w, doc); err != nil {
		return fmt.Errorf("export fields: %w", err)
	}
	return nil
}

func (uc *ExtractionUseCase) ExportFormat() (string, string) {
	return uc.exporter.ContentType(), uc.exporter.FileExtension()
}

func (uc *ExtractionUseCase) updateReview(
	ctx context.Context,
	documentID, operation string,
	mutate func(doc *domain.Document) error,
) (*domain.Document, error) {
	release, err := uc.guard.Acquire(documentID, operation)
	if err != nil {
		return nil, err
	}
	defer release()

	doc, err := uc.loadForReview(ctx, documentID, operation)
	if err != nil {
		return nil, err
	}
	if err := mutate(doc); err != nil {
		return nil, err
	}
	if err := doc.Apply(domain.EventReviewUpdated); err != nil {
		return nil, err
	}
	if err := uc.save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// bindRule sets the applied rule. Manual rule choice is authoritative over classification.
func (uc *ExtractionUseCase) bindRule(ctx context.Context, doc *domain.Document, ruleID string) (domain.ExtractionRule, error) {
	rule, err := uc.rules.GetByID(ctx, ruleID)
	if err != nil {
		return domain.ExtractionRule{}, fmt.Errorf("fetch rule: %w", err)
	}
	if err := doc.Apply(domain.EventTypeAssigned); err != nil {
		return domain.ExtractionRule{}, fmt.Errorf("select rule: %w", err)
	}
	doc.AppliedRuleID = rule.ID
	doc.Type = rule.DocType
	return rule, nil
}

func (uc *ExtractionUseCase) load(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

func (uc *ExtractionUseCase) loadForReview(ctx context.Context, documentID, operation string) (*domain.Document, error) {
	doc, err := uc.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if _, err := domain.Transition(doc.Status, domain.EventReviewUpdated); err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	if doc.ExtractedData == nil {
		doc.ExtractedData = domain.FieldMap{}
	}
	return doc, nil
}

func (uc *ExtractionUseCase) save(ctx context.Context, doc *domain.Document) error {
	doc.UpdatedAt = time.Now().UTC()
	if err := uc.docs.Save(ctx, doc); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// userMessage keeps stored failure text short.
func userMessage(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "extraction timed out"
	case errors.Is(err, domain.ErrTemporary):
		return "extraction service temporarily unavailable"
	default:
		return truncateRunes(err.Error(), 300)
	}
}
