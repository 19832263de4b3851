package httpadapter

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/kirillkom/extraction-workbench/internal/config"
	"github.com/kirillkom/extraction-workbench/internal/core/domain"
	"github.com/kirillkom/extraction-workbench/internal/core/ports"
)

type ingestFake struct {
	projectID string
}

func (f *ingestFake) Upload(_ context.Context, projectID, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", io.EOF)
	}
	f.projectID = projectID
	return testDocument("doc-1", filename, mimeType), nil
}

func (f *ingestFake) RegisterText(_ context.Context, projectID, name string, pages []string) (*domain.Document, error) {
	f.projectID = projectID
	doc := testDocument("doc-2", name, "text/plain")
	doc.Content = pages
	return doc, nil
}

type documentsFake struct {
	err  error
	docs []*domain.Document
}

func (f *documentsFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, doc := range f.docs {
		if doc.ID == id {
			return doc, nil
		}
	}
	return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", io.EOF)
}

func (f *documentsFake) ListByProject(_ context.Context, projectID string) ([]*domain.Document, error) {
	var out []*domain.Document
	for _, doc := range f.docs {
		if doc.ProjectID == projectID {
			out = append(out, doc)
		}
	}
	return out, f.err
}

type extractionFake struct {
	err     error
	doc     *domain.Document
	region  ports.RegionOutcome
	refined ports.RefineOutcome

	lastKey   string
	lastValue any
	lastType  domain.DocType
	lastOpts  ports.RunOptions
	exported  []byte
}

func (f *extractionFake) result() (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

func (f *extractionFake) SelectRule(context.Context, string, string) (*domain.Document, error) {
	return f.result()
}

func (f *extractionFake) AssignType(_ context.Context, _ string, docType domain.DocType) (*domain.Document, error) {
	f.lastType = docType
	return f.result()
}

func (f *extractionFake) RunExtraction(_ context.Context, _ string, opts ports.RunOptions) (*domain.Document, error) {
	f.lastOpts = opts
	return f.result()
}

func (f *extractionFake) EditField(_ context.Context, _ string, key string, value any) (*domain.Document, error) {
	f.lastKey, f.lastValue = key, value
	return f.result()
}

func (f *extractionFake) ImportFields(_ context.Context, _ string, labels []string) (*domain.Document, int, error) {
	doc, err := f.result()
	return doc, len(labels), err
}

func (f *extractionFake) AnalyzeRegion(context.Context, string, string) (ports.RegionOutcome, error) {
	return f.region, f.err
}

func (f *extractionFake) Refine(context.Context, string) (ports.RefineOutcome, error) {
	return f.refined, f.err
}

func (f *extractionFake) CompleteReview(context.Context, string) (*domain.Document, error) {
	return f.result()
}

func (f *extractionFake) Export(_ context.Context, _ string, w io.Writer) error {
	if f.err != nil {
		return f.err
	}
	_, err := w.Write(f.exported)
	return err
}

func (f *extractionFake) ExportFormat() (string, string) {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ".xlsx"
}

type feedbackFake struct {
	err   error
	cases []domain.BadCase
}

func (f *feedbackFake) Mark(_ context.Context, _ string, text string, kind domain.BadCaseType, note string) (domain.BadCase, error) {
	if f.err != nil {
		return domain.BadCase{}, f.err
	}
	bc, err := domain.NewBadCase(text, kind, note)
	if err != nil {
		return domain.BadCase{}, err
	}
	f.cases = append(f.cases, bc)
	return bc, nil
}

func (f *feedbackFake) List(context.Context, string) ([]domain.BadCase, error) {
	return f.cases, f.err
}

func (f *feedbackFake) Clear(context.Context, string) error {
	f.cases = nil
	return f.err
}

type rulesFake struct {
	err         error
	rule        domain.ExtractionRule
	optimized   bool
	lastInput   ports.RuleInput
	lastVersion int
	lastSkill   domain.ExtractionSkill
}

func (f *rulesFake) result() (domain.ExtractionRule, error) {
	if f.err != nil {
		return domain.ExtractionRule{}, f.err
	}
	return f.rule, nil
}

func (f *rulesFake) List(context.Context) ([]domain.ExtractionRule, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.ExtractionRule{f.rule}, nil
}

func (f *rulesFake) Get(context.Context, string) (domain.ExtractionRule, error) { return f.result() }

func (f *rulesFake) GetVersion(_ context.Context, _ string, version int) (domain.ExtractionRule, error) {
	f.lastVersion = version
	return f.result()
}

func (f *rulesFake) Create(_ context.Context, in ports.RuleInput) (domain.ExtractionRule, error) {
	f.lastInput = in
	return f.result()
}

func (f *rulesFake) Update(_ context.Context, _ string, in ports.RuleInput) (domain.ExtractionRule, error) {
	f.lastInput = in
	return f.result()
}

func (f *rulesFake) Delete(context.Context, string) error { return f.err }

func (f *rulesFake) AddSkill(_ context.Context, _ string, skill domain.ExtractionSkill) (domain.ExtractionRule, error) {
	f.lastSkill = skill
	return f.result()
}

func (f *rulesFake) UpdateSkill(_ context.Context, _ string, skill domain.ExtractionSkill) (domain.ExtractionRule, error) {
	f.lastSkill = skill
	return f.result()
}

func (f *rulesFake) RemoveSkill(context.Context, string, string) (domain.ExtractionRule, error) {
	return f.result()
}

func (f *rulesFake) OptimizeSkill(context.Context, string, string) (domain.ExtractionRule, bool, error) {
	rule, err := f.result()
	return rule, f.optimized, err
}

func (f *rulesFake) Generate(_ context.Context, description string, docType domain.DocType, name string) (domain.ExtractionRule, error) {
	f.lastInput = ports.RuleInput{DocType: docType, Name: name, SystemInstruction: description}
	return f.result()
}

type evolverFake struct {
	err  error
	rule domain.ExtractionRule
}

func (f *evolverFake) EvolveFromDocument(context.Context, string) (domain.ExtractionRule, error) {
	return f.rule, f.err
}

type fakeSet struct {
	ingest     *ingestFake
	documents  *documentsFake
	extraction *extractionFake
	feedback   *feedbackFake
	rules      *rulesFake
	evolver    *evolverFake
}

func newFakeSet() *fakeSet {
	doc := testDocument("doc-1", "借款合同.pdf", "application/pdf")
	return &fakeSet{
		ingest:     &ingestFake{},
		documents:  &documentsFake{docs: []*domain.Document{doc}},
		extraction: &extractionFake{doc: doc},
		feedback:   &feedbackFake{},
		rules:      &rulesFake{rule: domain.NewRule(domain.DocTypeLoanAgreement, "借款合同标准提取", "", "", nil)},
		evolver:    &evolverFake{},
	}
}

func (f *fakeSet) services() Services {
	return Services{
		Ingest:     f.ingest,
		Documents:  f.documents,
		Extraction: f.extraction,
		Feedback:   f.feedback,
		Rules:      f.rules,
		Evolver:    f.evolver,
	}
}

func newTestHandler(cfg config.Config, fakes *fakeSet) http.Handler {
	return NewRouter(cfg, fakes.services(), nil).Handler()
}

func validatingConfig() config.Config {
	return config.Config{APIValidateRequests: true}
}

func testDocument(id, name, mimeType string) *domain.Document {
	now := time.Now().UTC()
	return &domain.Document{
		ID:        id,
		ProjectID: "default",
		Name:      name,
		MimeType:  mimeType,
		Type:      domain.DocTypeUnknown,
		Status:    domain.StatusUploaded,
		Content:   []string{"第一页"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
