package ruleseed

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
	"github.com/kirillkom/extraction-workbench/internal/core/ports"
)

//go:embed rules.yaml
var builtinRules []byte

type seedFile struct {
	Rules []domain.ExtractionRule `yaml:"rules"`
}

// Builtin returns the rules shipped with the service.
func Builtin() ([]domain.ExtractionRule, error) {
	return parse(builtinRules)
}

// Load reads rules from a YAML file, or the built-in set when path is empty.
func Load(path string) ([]domain.ExtractionRule, error) {
	if strings.TrimSpace(path) == "" {
		return Builtin()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule seed %s: %w", path, err)
	}
	return parse(raw)
}

func parse(raw []byte) ([]domain.ExtractionRule, error) {
	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse rule seed: %w", err)
	}
	out := make([]domain.ExtractionRule, 0, len(file.Rules))
	seen := make(map[string]struct{}, len(file.Rules))
	for idx, rule := range file.Rules {
		if rule.ID == "" {
			return nil, fmt.Errorf("rule seed #%d: id is required", idx+1)
		}
		if _, dup := seen[rule.ID]; dup {
			return nil, fmt.Errorf("rule seed: duplicate id %s", rule.ID)
		}
		seen[rule.ID] = struct{}{}
		if !rule.DocType.Valid() {
			rule.DocType = domain.ParseDocType(string(rule.DocType))
		}
		if rule.Version < 1 {
			rule.Version = 1
		}
		for i := range rule.Skills {
			rule.Skills[i].Category = domain.ParseSkillCategory(string(rule.Skills[i].Category))
		}
		if rule.Skills == nil {
			rule.Skills = []domain.ExtractionSkill{}
		}
		out = append(out, rule)
	}
	return out, nil
}

// Seed stores each rule that the repository does not have yet. Existing rules,
// including evolved versions, are left alone.
func Seed(ctx context.Context, repo ports.RuleRepository, rules []domain.ExtractionRule) (int, error) {
	added := 0
	for _, rule := range rules {
		_, err := repo.GetByID(ctx, rule.ID)
		if err == nil {
			continue
		}
		if !domain.IsKind(err, domain.ErrRuleNotFound) {
			return added, fmt.Errorf("check seed rule %s: %w", rule.ID, err)
		}
		rule.UpdatedAt = time.Now().UTC()
		if err := repo.Save(ctx, rule); err != nil {
			return added, fmt.Errorf("seed rule %s: %w", rule.ID, err)
		}
		added++
	}
	if added > 0 {
		slog.Info("rules_seeded", "count", added)
	}
	return added, nil
}
