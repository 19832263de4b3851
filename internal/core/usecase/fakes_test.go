package usecase

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
	"github.com/kirillkom/extraction-workbench/internal/core/ports"
)

type docRepoFake struct {
	mu      sync.Mutex
	docs    map[string]*domain.Document
	saves   []domain.DocumentStatus
	saveErr error
}

func newDocRepoFake(docs ...*domain.Document) *docRepoFake {
	f := &docRepoFake{docs: make(map[string]*domain.Document)}
	for _, doc := range docs {
		f.docs[doc.ID] = doc.Clone()
	}
	return f
}

func (f *docRepoFake) Create(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID] = doc.Clone()
	return nil
}

func (f *docRepoFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return doc.Clone(), nil
}

func (f *docRepoFake) Save(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves = append(f.saves, doc.Status)
	f.docs[doc.ID] = doc.Clone()
	return nil
}

func (f *docRepoFake) SaveIfStatus(_ context.Context, doc *domain.Document, expected domain.DocumentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	stored, ok := f.docs[doc.ID]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	if stored.Status != expected {
		return domain.ErrStatusChanged
	}
	f.saves = append(f.saves, doc.Status)
	f.docs[doc.ID] = doc.Clone()
	return nil
}

func (f *docRepoFake) ListByProject(_ context.Context, projectID string) ([]*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Document
	for _, doc := range f.docs {
		if doc.ProjectID == projectID {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}

func (f *docRepoFake) stored(id string) *domain.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[id].Clone()
}

type ruleRepoFake struct {
	mu       sync.Mutex
	rules    map[string]domain.ExtractionRule
	versions map[string]map[int]domain.ExtractionRule
	saveErr  error
}

func newRuleRepoFake(rules ...domain.ExtractionRule) *ruleRepoFake {
	f := &ruleRepoFake{
		rules:    make(map[string]domain.ExtractionRule),
		versions: make(map[string]map[int]domain.ExtractionRule),
	}
	for _, rule := range rules {
		_ = f.Save(context.Background(), rule)
	}
	return f
}

func (f *ruleRepoFake) List(context.Context) ([]domain.ExtractionRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ExtractionRule, 0, len(f.rules))
	for _, rule := range f.rules {
		out = append(out, rule.Clone())
	}
	return out, nil
}

func (f *ruleRepoFake) GetByID(_ context.Context, id string) (domain.ExtractionRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rule, ok := f.rules[id]
	if !ok {
		return domain.ExtractionRule{}, domain.ErrRuleNotFound
	}
	return rule.Clone(), nil
}

func (f *ruleRepoFake) GetVersion(_ context.Context, id string, version int) (domain.ExtractionRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rule, ok := f.versions[id][version]
	if !ok {
		return domain.ExtractionRule{}, domain.ErrRuleNotFound
	}
	return rule.Clone(), nil
}

func (f *ruleRepoFake) Save(_ context.Context, rule domain.ExtractionRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	if current, ok := f.rules[rule.ID]; ok && current.Version > rule.Version {
		return domain.ErrStaleRule
	}
	f.rules[rule.ID] = rule.Clone()
	if f.versions[rule.ID] == nil {
		f.versions[rule.ID] = make(map[int]domain.ExtractionRule)
	}
	f.versions[rule.ID][rule.Version] = rule.Clone()
	return nil
}

func (f *ruleRepoFake) Replace(_ context.Context, rule domain.ExtractionRule) (domain.ExtractionRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return domain.ExtractionRule{}, f.saveErr
	}
	current, ok := f.rules[rule.ID]
	if !ok {
		return domain.ExtractionRule{}, domain.ErrRuleNotFound
	}
	if current.Revision != rule.Revision || current.Version > rule.Version {
		return domain.ExtractionRule{}, domain.ErrStaleRule
	}
	next := rule.Clone()
	next.Revision++
	f.rules[rule.ID] = next.Clone()
	if f.versions[rule.ID] == nil {
		f.versions[rule.ID] = make(map[int]domain.ExtractionRule)
	}
	f.versions[rule.ID][rule.Version] = next.Clone()
	return next, nil
}

func (f *ruleRepoFake) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rules[id]; !ok {
		return domain.ErrRuleNotFound
	}
	delete(f.rules, id)
	delete(f.versions, id)
	return nil
}

type ledgerFake struct {
	mu      sync.Mutex
	entries map[string][]domain.BadCase
	clears  int
}

func newLedgerFake() *ledgerFake {
	return &ledgerFake{entries: make(map[string][]domain.BadCase)}
}

func (f *ledgerFake) Append(_ context.Context, documentID string, badCase domain.BadCase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[documentID] = append(f.entries[documentID], badCase)
	return nil
}

func (f *ledgerFake) List(_ context.Context, documentID string) ([]domain.BadCase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.BadCase(nil), f.entries[documentID]...), nil
}

func (f *ledgerFake) Clear(_ context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	delete(f.entries, documentID)
	return nil
}

type extractorFake struct {
	answer []domain.KeyedValue
	err    error
	calls  int
	got    ports.ExtractionRequest
	block  chan struct{}
}

func (f *extractorFake) Extract(ctx context.Context, req ports.ExtractionRequest) ([]domain.KeyedValue, error) {
	f.calls++
	f.got = req
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

type regionFake struct {
	result ports.RegionResult
	err    error
	calls  int
	got    ports.RegionRequest
}

func (f *regionFake) AnalyzeRegion(_ context.Context, req ports.RegionRequest) (ports.RegionResult, error) {
	f.calls++
	f.got = req
	return f.result, f.err
}

type refinerFake struct {
	answer []domain.KeyedValue
	err    error
	calls  int
	got    ports.RefineRequest
}

func (f *refinerFake) Refine(_ context.Context, req ports.RefineRequest) ([]domain.KeyedValue, error) {
	f.calls++
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

type classifierFake struct {
	docType domain.DocType
	err     error
	snippet string
	// during runs while the classification is outstanding.
	during func()
}

func (f *classifierFake) Classify(_ context.Context, snippet string) (domain.DocType, error) {
	f.snippet = snippet
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return domain.DocTypeUnknown, f.err
	}
	return f.docType, nil
}

type rewriterFake struct {
	instruction string
	err         error
	got         ports.RewriteRequest
	// during runs once while the rewrite is outstanding.
	during func()
}

func (f *rewriterFake) RewriteInstruction(_ context.Context, req ports.RewriteRequest) (string, error) {
	f.got = req
	if hook := f.during; hook != nil {
		f.during = nil
		hook()
	}
	return f.instruction, f.err
}

type optimizerFake struct {
	description string
	err         error
}

func (f *optimizerFake) OptimizeSkill(context.Context, domain.ExtractionSkill) (string, error) {
	return f.description, f.err
}

type synthFake struct {
	draft ports.RuleDraft
	err   error
}

func (f *synthFake) Synthesize(context.Context, string) (ports.RuleDraft, error) {
	return f.draft, f.err
}

type lineageFake struct {
	from, to domain.ExtractionRule
	err      error
}

func (f *lineageFake) RecordEvolution(_ context.Context, from, to domain.ExtractionRule, _ string) error {
	f.from, f.to = from, to
	return f.err
}

type exporterFake struct{}

func (exporterFake) Export(w io.Writer, doc *domain.Document) error {
	_, err := io.WriteString(w, strings.Join(doc.ExtractedData.Keys(), ","))
	return err
}
func (exporterFake) ContentType() string   { return "text/csv" }
func (exporterFake) FileExtension() string { return "csv" }

type metricsFake struct {
	mu          sync.Mutex
	extractions []string
	refinements []string
	evolutions  []string
	fills       []int
	classified  []domain.DocType
}

func (m *metricsFake) RecordClassification(docType domain.DocType, _ bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classified = append(m.classified, docType)
}

func (m *metricsFake) RecordExtraction(status string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extractions = append(m.extractions, status)
}

func (m *metricsFake) RecordRefinement(status string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refinements = append(m.refinements, status)
}

func (m *metricsFake) RecordRegionAnalysis(filled int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fills = append(m.fills, filled)
}

func (m *metricsFake) RecordRuleEvolution(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evolutions = append(m.evolutions, status)
}

func loanRule() domain.ExtractionRule {
	rule := domain.NewRule(domain.DocTypeLoanAgreement, "借款合同标准提取", "提取借款要素。", `{"借款人": "string", "借款金额": "number", "担保人": "string"}`, nil)
	rule.ID = "rule-loan-001"
	return rule.AddSkill(domain.ExtractionSkill{Name: "借款人", Category: domain.SkillEntity, Description: "甲方全称"})
}

func reviewDoc(id string) *domain.Document {
	page := 1
	return &domain.Document{
		ID:            id,
		ProjectID:     "p1",
		Name:          "loan.txt",
		Type:          domain.DocTypeLoanAgreement,
		Status:        domain.StatusReview,
		Content:       []string{"借款人：张三\n借款金额：500000元"},
		AppliedRuleID: "rule-loan-001",
		ExtractedData: domain.FieldMap{
			"借款人":  {Key: "借款人", Label: "借款人", Value: "张三", Confidence: 0.8, SourcePage: &page, Position: 0},
			"借款金额": {Key: "借款金额", Label: "借款金额", Value: 500000.0, Confidence: 0.8, SourcePage: &page, Position: 1},
			"担保人":  {Key: "担保人", Label: "担保人", Value: nil, Confidence: 0, SourcePage: &page, Position: 2},
		},
	}
}
