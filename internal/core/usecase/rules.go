package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
	"github.com/kirillkom/extraction-workbench/internal/core/ports"
)

const defaultGeneratedRuleName = "AI 生成规则"

// RuleLibraryUseCase serialises read-modify-write cycles on rules within the process.
// Writers outside it, such as rule evolution or another process, are caught by the
// repository's revision check and surface as ErrStaleRule.
type RuleLibraryUseCase struct {
	mu        sync.Mutex
	rules     ports.RuleRepository
	optimizer ports.SkillOptimizer
	synth     ports.RuleSynthesizer
	timeout   time.Duration
}

func NewRuleLibraryUseCase(
	rules ports.RuleRepository,
	optimizer ports.SkillOptimizer,
	synth ports.RuleSynthesizer,
	timeout time.Duration,
) *RuleLibraryUseCase {
	return &RuleLibraryUseCase{
		rules:     rules,
		optimizer: optimizer,
		synth:     synth,
		timeout:   timeout,
	}
}

func (uc *RuleLibraryUseCase) List(ctx context.Context) ([]domain.ExtractionRule, error) {
	return uc.rules.List(ctx)
}

func (uc *RuleLibraryUseCase) Get(ctx context.Context, id string) (domain.ExtractionRule, error) {
	return uc.rules.GetByID(ctx, id)
}

func (uc *RuleLibraryUseCase) GetVersion(ctx context.Context, id string, version int) (domain.ExtractionRule, error) {
	if version < 1 {
		return domain.ExtractionRule{}, domain.WrapError(domain.ErrInvalidInput, "get rule version", fmt.Errorf("version=%d", version))
	}
	return uc.rules.GetVersion(ctx, id, version)
}

func (uc *RuleLibraryUseCase) Create(ctx context.Context, in ports.RuleInput) (domain.ExtractionRule, error) {
	if err := validateSchema(in.Schema); err != nil {
		return domain.ExtractionRule{}, domain.WrapError(domain.ErrInvalidInput, "create rule", err)
	}
	rule := domain.NewRule(in.DocType, in.Name, in.SystemInstruction, in.Schema, in.Skills)
	if err := uc.rules.Save(ctx, rule); err != nil {
		return domain.ExtractionRule{}, fmt.Errorf("save rule: %w", err)
	}
	return rule, nil
}

// Update replaces the editable parts of a rule. The version is never changed here.
func (uc *RuleLibraryUseCase) Update(ctx context.Context, id string, in ports.RuleInput) (domain.ExtractionRule, error) {
	if err := validateSchema(in.Schema); err != nil {
		return domain.ExtractionRule{}, domain.WrapError(domain.ErrInvalidInput, "update rule", err)
	}
	return uc.mutate(ctx, id, func(rule domain.ExtractionRule) (domain.ExtractionRule, error) {
		if in.DocType.Valid() {
			rule.DocType = in.DocType
		}
		if strings.TrimSpace(in.Name) != "" {
			rule.Name = in.Name
		}
		if strings.TrimSpace(in.SystemInstruction) != "" {
			rule.SystemInstruction = in.SystemInstruction
		}
		if strings.TrimSpace(in.Schema) != "" {
			rule.Schema = in.Schema
		}
		if in.Skills != nil {
			rebuilt := rule
			rebuilt.Skills = nil
			for _, skill := range in.Skills {
				rebuilt = rebuilt.AddSkill(skill)
			}
			rule = rebuilt
		}
		return rule, nil
	})
}

func (uc *RuleLibraryUseCase) Delete(ctx context.Context, id string) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.rules.Delete(ctx, id)
}

func (uc *RuleLibraryUseCase) AddSkill(ctx context.Context, ruleID string, skill domain.ExtractionSkill) (domain.ExtractionRule, error) {
	return uc.mutate(ctx, ruleID, func(rule domain.ExtractionRule) (domain.ExtractionRule, error) {
		skill.ID = ""
		return rule.AddSkill(skill), nil
	})
}

func (uc *RuleLibraryUseCase) UpdateSkill(ctx context.Context, ruleID string, skill domain.ExtractionSkill) (domain.ExtractionRule, error) {
	return uc.mutate(ctx, ruleID, func(rule domain.ExtractionRule) (domain.ExtractionRule, error) {
		return rule.UpdateSkill(skill)
	})
}

func (uc *RuleLibraryUseCase) RemoveSkill(ctx context.Context, ruleID, skillID string) (domain.ExtractionRule, error) {
	return uc.mutate(ctx, ruleID, func(rule domain.ExtractionRule) (domain.ExtractionRule, error) {
		return rule.RemoveSkill(skillID)
	})
}

// OptimizeSkill asks the optimizer for a better description. When the optimizer fails the
// stored rule is returned unchanged with optimized=false.
func (uc *RuleLibraryUseCase) OptimizeSkill(ctx context.Context, ruleID, skillID string) (domain.ExtractionRule, bool, error) {
	rule, err := uc.rules.GetByID(ctx, ruleID)
	if err != nil {
		return domain.ExtractionRule{}, false, err
	}
	skill, ok := rule.Skill(skillID)
	if !ok {
		return domain.ExtractionRule{}, false, domain.WrapError(domain.ErrInvalidInput, "optimize skill", fmt.Errorf("skill %s not in rule %s", skillID, ruleID))
	}

	callCtx, cancel := withOperationTimeout(ctx, uc.timeout)
	description, err := uc.optimizer.OptimizeSkill(callCtx, skill)
	cancel()
	description = strings.TrimSpace(description)
	if err != nil || description == "" {
		slog.Warn("skill_optimization_failed", "rule_id", ruleID, "skill_id", skillID, "error", err)
		return rule, false, nil
	}

	updated, err := uc.mutate(ctx, ruleID, func(current domain.ExtractionRule) (domain.ExtractionRule, error) {
		target, ok := current.Skill(skillID)
		if !ok {
			return current, domain.WrapError(domain.ErrInvalidInput, "optimize skill", errors.New("skill removed concurrently"))
		}
		target.Description = description
		return current.UpdateSkill(target)
	})
	if err != nil {
		return domain.ExtractionRule{}, false, err
	}
	return updated, true, nil
}

// Generate builds a version-1 rule from a free-text description.
func (uc *RuleLibraryUseCase) Generate(ctx context.Context, description string, docType domain.DocType, name string) (domain.ExtractionRule, error) {
	if strings.TrimSpace(description) == "" {
		return domain.ExtractionRule{}, domain.WrapError(domain.ErrInvalidInput, "generate rule", errors.New("description is empty"))
	}

	callCtx, cancel := withOperationTimeout(ctx, uc.timeout)
	draft, err := uc.synth.Synthesize(callCtx, description)
	cancel()
	if err != nil {
		return domain.ExtractionRule{}, fmt.Errorf("synthesize rule: %w", err)
	}
	if err := validateSchema(draft.Schema); err != nil {
		return domain.ExtractionRule{}, fmt.Errorf("synthesize rule: %w", err)
	}

	if strings.TrimSpace(name) == "" {
		name = defaultGeneratedRuleName
	}
	rule := domain.NewRule(docType, name, draft.SystemInstruction, draft.Schema, draft.Skills)
	if err := uc.rules.Save(ctx, rule); err != nil {
		return domain.ExtractionRule{}, fmt.Errorf("save rule: %w", err)
	}
	return rule, nil
}

func (uc *RuleLibraryUseCase) mutate(
	ctx context.Context,
	id string,
	change func(domain.ExtractionRule) (domain.ExtractionRule, error),
) (domain.ExtractionRule, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	current, err := uc.rules.GetByID(ctx, id)
	if err != nil {
		return domain.ExtractionRule{}, err
	}
	updated, err := change(current.Clone())
	if err != nil {
		return domain.ExtractionRule{}, err
	}
	updated.ID = current.ID
	updated.Version = current.Version
	updated.Revision = current.Revision
	updated.UpdatedAt = time.Now().UTC()
	stored, err := uc.rules.Replace(ctx, updated)
	if err != nil {
		return domain.ExtractionRule{}, fmt.Errorf("save rule: %w", err)
	}
	return stored, nil
}

// validateSchema accepts an empty schema (defaults apply) or a JSON object.
func validateSchema(schema string) error {
	if strings.TrimSpace(schema) == "" {
		return nil
	}
	if _, err := domain.DecodeOrderedObject([]byte(schema)); err != nil {
		return fmt.Errorf("schema must be a JSON object: %w", err)
	}
	return nil
}
