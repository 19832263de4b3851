package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
	"github.com/kirillkom/extraction-workbench/internal/core/ports"
)

func TestRuleLibrarySkillEditsKeepVersion(t *testing.T) {
	repo := newRuleRepoFake(loanRule())
	uc := NewRuleLibraryUseCase(repo, &optimizerFake{}, &synthFake{}, time.Second)
	ctx := context.Background()

	rule, err := uc.AddSkill(ctx, "rule-loan-001", domain.ExtractionSkill{Name: "利率", Category: domain.SkillText})
	if err != nil {
		t.Fatalf("AddSkill() error = %v", err)
	}
	if len(rule.Skills) != 2 || rule.Version != 1 {
		t.Fatalf("unexpected rule: skills=%d version=%d", len(rule.Skills), rule.Version)
	}

	rule, err = uc.RemoveSkill(ctx, "rule-loan-001", rule.Skills[0].ID)
	if err != nil {
		t.Fatalf("RemoveSkill() error = %v", err)
	}
	if len(rule.Skills) != 1 || rule.Skills[0].Name != "利率" || rule.Version != 1 {
		t.Fatalf("unexpected rule after remove: %+v", rule)
	}

	stored, _ := repo.GetByID(ctx, "rule-loan-001")
	if len(stored.Skills) != 1 {
		t.Fatalf("rule not persisted")
	}
}

func TestRuleLibraryCreateAndUpdate(t *testing.T) {
	repo := newRuleRepoFake()
	uc := NewRuleLibraryUseCase(repo, &optimizerFake{}, &synthFake{}, time.Second)
	ctx := context.Background()

	rule, err := uc.Create(ctx, ports.RuleInput{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rule.Version != 1 || rule.Name != domain.DefaultRuleName || rule.DocType != domain.DocTypeUnknown {
		t.Fatalf("unexpected defaults: %+v", rule)
	}

	updated, err := uc.Update(ctx, rule.ID, ports.RuleInput{Name: "抵押合同", DocType: domain.DocTypeMortgageContract})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Name != "抵押合同" || updated.Version != 1 || updated.Schema != rule.Schema {
		t.Fatalf("unexpected update: %+v", updated)
	}

	if _, err := uc.Create(ctx, ports.RuleInput{Schema: "[1,2]"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestRuleLibraryOptimizeSkillFallsBack(t *testing.T) {
	repo := newRuleRepoFake(loanRule())
	optimizer := &optimizerFake{err: errors.New("quota")}
	uc := NewRuleLibraryUseCase(repo, optimizer, &synthFake{}, time.Second)
	ctx := context.Background()
	skillID := loanRuleSkillID(t, repo)

	rule, optimized, err := uc.OptimizeSkill(ctx, "rule-loan-001", skillID)
	if err != nil {
		t.Fatalf("OptimizeSkill() error = %v", err)
	}
	if optimized || rule.Skills[0].Description != "甲方全称" {
		t.Fatalf("failed optimization must keep old text")
	}

	optimizer.err = nil
	optimizer.description = "提取合同甲方（借款方）的完整法定名称。"
	rule, optimized, err = uc.OptimizeSkill(ctx, "rule-loan-001", skillID)
	if err != nil {
		t.Fatalf("OptimizeSkill() error = %v", err)
	}
	if !optimized || rule.Skills[0].Description != optimizer.description || rule.Version != 1 {
		t.Fatalf("unexpected optimized rule: %+v", rule)
	}
}

func TestRuleLibraryGenerate(t *testing.T) {
	repo := newRuleRepoFake()
	synth := &synthFake{draft: ports.RuleDraft{
		SystemInstruction: "提取判决要素",
		Schema:            `{"案号": "string", "判决结果": "string"}`,
		Skills:            []domain.ExtractionSkill{{Name: "案号", Category: domain.SkillText}},
	}}
	uc := NewRuleLibraryUseCase(repo, &optimizerFake{}, synth, time.Second)

	rule, err := uc.Generate(context.Background(), "从判决书提取案号和结果", domain.DocTypeCourtRuling, "")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if rule.Version != 1 || rule.DocType != domain.DocTypeCourtRuling || len(rule.Skills) != 1 || rule.Skills[0].ID == "" {
		t.Fatalf("unexpected rule: %+v", rule)
	}

	synth.draft.Schema = "not json"
	if _, err := uc.Generate(context.Background(), "x", domain.DocTypeCourtRuling, ""); err == nil {
		t.Fatalf("expected schema error")
	}
}

func loanRuleSkillID(t *testing.T, repo *ruleRepoFake) string {
	t.Helper()
	rule, err := repo.GetByID(context.Background(), "rule-loan-001")
	if err != nil || len(rule.Skills) == 0 {
		t.Fatalf("seed rule missing: %v", err)
	}
	return rule.Skills[0].ID
}
