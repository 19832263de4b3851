package ports

import (
	"context"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
)

// AI collaborators. Each is an opaque service; adapters own prompts and wire formats.

type Classifier interface {
	Classify(ctx context.Context, snippet string) (domain.DocType, error)
}

type ExtractionRequest struct {
	Text    string
	DocType domain.DocType
	Rule    domain.ExtractionRule
	ModelID string
}

// Extractor returns top-level answer entries in answer order.
type Extractor interface {
	Extract(ctx context.Context, req ExtractionRequest) ([]domain.KeyedValue, error)
}

type RegionRequest struct {
	Text    string
	Targets []string
	DocType domain.DocType
}

type RegionResult struct {
	Found bool
	Data  []domain.KeyedValue
}

type RegionAnalyzer interface {
	AnalyzeRegion(ctx context.Context, req RegionRequest) (RegionResult, error)
}

type RefineRequest struct {
	Text     string
	DocType  domain.DocType
	Keys     []string
	Snapshot map[string]any
	BadCases []domain.BadCase
}

type Refiner interface {
	Refine(ctx context.Context, req RefineRequest) ([]domain.KeyedValue, error)
}

// RuleDraft is a rule body proposed from a free-text description.
type RuleDraft struct {
	SystemInstruction string
	Skills            []domain.ExtractionSkill
	Schema            string
}

type RuleSynthesizer interface {
	Synthesize(ctx context.Context, description string) (RuleDraft, error)
}

type RewriteRequest struct {
	SampleText     string
	OldInstruction string
	Incorrect      map[string]any
	Corrected      map[string]any
}

type InstructionRewriter interface {
	RewriteInstruction(ctx context.Context, req RewriteRequest) (string, error)
}

type SkillOptimizer interface {
	OptimizeSkill(ctx context.Context, skill domain.ExtractionSkill) (string, error)
}
