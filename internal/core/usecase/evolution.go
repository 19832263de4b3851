package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
	"github.com/kirillkom/extraction-workbench/internal/core/ports"
)

const correctionNoteKey = "_note"

type RuleEvolutionUseCase struct {
	docs     ports.DocumentRepository
	rules    ports.RuleRepository
	rewriter ports.InstructionRewriter
	lineage  ports.RuleLineage
	guard    *DocumentGuard
	metrics  ports.WorkbenchMetrics
	timeout  time.Duration
}

func NewRuleEvolutionUseCase(
	docs ports.DocumentRepository,
	rules ports.RuleRepository,
	rewriter ports.InstructionRewriter,
	lineage ports.RuleLineage,
	guard *DocumentGuard,
	metrics ports.WorkbenchMetrics,
	timeout time.Duration,
) *RuleEvolutionUseCase {
	if guard == nil {
		guard = NewDocumentGuard()
	}
	return &RuleEvolutionUseCase{
		docs:     docs,
		rules:    rules,
		rewriter: rewriter,
		lineage:  lineage,
		guard:    guard,
		metrics:  metricsOrNoop(metrics),
		timeout:  timeout,
	}
}

// EvolveFromDocument rewrites the instruction of the document's rule from its human corrections
// and stores the result as the next version of the same rule.
func (uc *RuleEvolutionUseCase) EvolveFromDocument(ctx context.Context, documentID string) (domain.ExtractionRule, error) {
	release, err := uc.guard.Acquire(documentID, "evolve rule")
	if err != nil {
		return domain.ExtractionRule{}, err
	}
	defer release()

	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return domain.ExtractionRule{}, fmt.Errorf("fetch document by id: %w", err)
	}
	if doc.AppliedRuleID == "" {
		return domain.ExtractionRule{}, domain.WrapError(domain.ErrRuleNotBound, "evolve rule", fmt.Errorf("document_id=%s", doc.ID))
	}
	edited := doc.ExtractedData.EditedKeys()
	if len(edited) == 0 {
		uc.metrics.RecordRuleEvolution("refused")
		return domain.ExtractionRule{}, domain.WrapError(domain.ErrNoCorrections, "evolve rule", fmt.Errorf("document_id=%s", doc.ID))
	}

	rule, err := uc.rules.GetByID(ctx, doc.AppliedRuleID)
	if err != nil {
		return domain.ExtractionRule{}, fmt.Errorf("fetch applied rule: %w", err)
	}

	callCtx, cancel := withOperationTimeout(ctx, uc.timeout)
	instruction, err := uc.rewriter.RewriteInstruction(callCtx, ports.RewriteRequest{
		SampleText:     doc.FirstPage(),
		OldInstruction: rule.SystemInstruction,
		Incorrect:      incorrectSnapshot(doc.ExtractedData, edited),
		Corrected:      doc.ExtractedData.ValueSnapshot(),
	})
	cancel()
	if err != nil {
		uc.metrics.RecordRuleEvolution("failed")
		return domain.ExtractionRule{}, fmt.Errorf("rewrite instruction: %w", err)
	}
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		uc.metrics.RecordRuleEvolution("failed")
		return domain.ExtractionRule{}, domain.WrapError(domain.ErrTemporary, "rewrite instruction", errors.New("empty instruction returned"))
	}

	// Replace refuses the write when the rule was edited or evolved during the rewrite.
	saveCtx, saveCancel := persistCtx(ctx)
	defer saveCancel()
	evolved, err := uc.rules.Replace(saveCtx, rule.Evolved(instruction))
	if err != nil {
		uc.metrics.RecordRuleEvolution("failed")
		return domain.ExtractionRule{}, fmt.Errorf("save evolved rule: %w", err)
	}
	uc.metrics.RecordRuleEvolution("succeeded")

	if uc.lineage != nil {
		if err := uc.lineage.RecordEvolution(saveCtx, rule, evolved, doc.ID); err != nil {
			slog.Warn("rule_lineage_failed", "rule_id", rule.ID, "version", evolved.Version, "error", err)
		}
	}
	return evolved, nil
}

// incorrectSnapshot reconstructs what the machine produced for the fields a human corrected.
func incorrectSnapshot(fields domain.FieldMap, edited []string) map[string]any {
	out := make(map[string]any, len(edited)+1)
	for _, key := range edited {
		out[key] = fields[key].PreviousValue
	}
	out[correctionNoteKey] = "以下字段的原始提取结果被人工修正: " + strings.Join(edited, ", ")
	return out
}
