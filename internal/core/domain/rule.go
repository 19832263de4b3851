package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SkillCategory string

const (
	SkillDate    SkillCategory = "Date"
	SkillAmount  SkillCategory = "Amount"
	SkillEntity  SkillCategory = "Entity"
	SkillText    SkillCategory = "Text"
	SkillBoolean SkillCategory = "Boolean"
	SkillOther   SkillCategory = "Other"
)

var skillCategoryLabels = map[SkillCategory]string{
	SkillDate:    "日期",
	SkillAmount:  "金额",
	SkillEntity:  "主体/公司",
	SkillText:    "文本",
	SkillBoolean: "是非判断",
	SkillOther:   "其他",
}

func (c SkillCategory) Label() string {
	if label, ok := skillCategoryLabels[c]; ok {
		return label
	}
	return "通用"
}

func (c SkillCategory) Valid() bool {
	_, ok := skillCategoryLabels[c]
	return ok
}

// ParseSkillCategory falls back to Other for unrecognised input.
func ParseSkillCategory(raw string) SkillCategory {
	value := strings.TrimSpace(raw)
	for category := range skillCategoryLabels {
		if strings.EqualFold(value, string(category)) {
			return category
		}
	}
	return SkillOther
}

type ExtractionSkill struct {
	ID            string        `json:"id" yaml:"id"`
	Name          string        `json:"name" yaml:"name"`
	Category      SkillCategory `json:"category" yaml:"category"`
	Description   string        `json:"description" yaml:"description"`
	Example       string        `json:"example,omitempty" yaml:"example,omitempty"`
	OutputExample string        `json:"output_example,omitempty" yaml:"output_example,omitempty"`
}

const (
	evolvedNameSuffix        = " (AI优化版)"
	DefaultRuleName          = "新提取规则"
	DefaultSystemInstruction = "基于以下定义的技能提取字段。"
	DefaultRuleSchema        = "{\n  \"示例字段\": \"string\"\n}"
	DefaultSkillName         = "新字段"
	DefaultSkillDescription  = "在此描述如何提取该字段..."
)

type ExtractionRule struct {
	ID                string            `json:"id" yaml:"id"`
	DocType           DocType           `json:"doc_type" yaml:"doc_type"`
	Name              string            `json:"name" yaml:"name"`
	Version           int               `json:"version" yaml:"version"`
	Skills            []ExtractionSkill `json:"skills" yaml:"skills"`
	Schema            string            `json:"schema" yaml:"schema"`
	SystemInstruction string            `json:"system_instruction" yaml:"system_instruction"`
	// Revision counts stored writes of the rule, edits included. Replace uses it to
	// detect a rule that changed after it was read.
	Revision          int               `json:"revision" yaml:"-"`
	UpdatedAt         time.Time         `json:"updated_at" yaml:"-"`
}

// NewRule returns a version-1 rule with defaults for empty parts.
func NewRule(docType DocType, name, instruction, schema string, skills []ExtractionSkill) ExtractionRule {
	if !docType.Valid() {
		docType = DocTypeUnknown
	}
	if strings.TrimSpace(name) == "" {
		name = DefaultRuleName
	}
	if strings.TrimSpace(instruction) == "" {
		instruction = DefaultSystemInstruction
	}
	if strings.TrimSpace(schema) == "" {
		schema = DefaultRuleSchema
	}
	rule := ExtractionRule{
		ID:                uuid.NewString(),
		DocType:           docType,
		Name:              name,
		Version:           1,
		Schema:            schema,
		SystemInstruction: instruction,
		Skills:            make([]ExtractionSkill, 0, len(skills)),
		UpdatedAt:         time.Now().UTC(),
	}
	for _, skill := range skills {
		rule = rule.AddSkill(skill)
	}
	return rule
}

// SchemaKeys lists the top-level keys of the schema JSON in declaration order.
// An unparseable schema yields no keys.
func (r ExtractionRule) SchemaKeys() []string {
	entries, err := DecodeOrderedObject([]byte(r.Schema))
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		key := strings.TrimSpace(entry.Key)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}

// AddSkill appends a copy of skill, generating an id and defaults where missing.
func (r ExtractionRule) AddSkill(skill ExtractionSkill) ExtractionRule {
	out := r.Clone()
	if skill.ID == "" {
		skill.ID = uuid.NewString()
	}
	if strings.TrimSpace(skill.Name) == "" {
		skill.Name = DefaultSkillName
	}
	if !skill.Category.Valid() {
		skill.Category = SkillText
	}
	out.Skills = append(out.Skills, skill)
	return out
}

// RemoveSkill drops one skill; the others keep their relative order.
func (r ExtractionRule) RemoveSkill(skillID string) (ExtractionRule, error) {
	out := r.Clone()
	kept := make([]ExtractionSkill, 0, len(out.Skills))
	found := false
	for _, skill := range out.Skills {
		if skill.ID == skillID {
			found = true
			continue
		}
		kept = append(kept, skill)
	}
	if !found {
		return r, WrapError(ErrInvalidInput, "remove skill", fmt.Errorf("skill %s not in rule %s", skillID, r.ID))
	}
	out.Skills = kept
	return out, nil
}

// UpdateSkill replaces the skill with the same id in place.
func (r ExtractionRule) UpdateSkill(skill ExtractionSkill) (ExtractionRule, error) {
	out := r.Clone()
	for idx := range out.Skills {
		if out.Skills[idx].ID != skill.ID {
			continue
		}
		if !skill.Category.Valid() {
			skill.Category = out.Skills[idx].Category
		}
		out.Skills[idx] = skill
		return out, nil
	}
	return r, WrapError(ErrInvalidInput, "update skill", fmt.Errorf("skill %s not in rule %s", skill.ID, r.ID))
}

func (r ExtractionRule) Skill(skillID string) (ExtractionSkill, bool) {
	for _, skill := range r.Skills {
		if skill.ID == skillID {
			return skill, true
		}
	}
	return ExtractionSkill{}, false
}

// Evolved is the next version of the same rule carrying a rewritten instruction.
// Skills and schema are carried over untouched.
func (r ExtractionRule) Evolved(instruction string) ExtractionRule {
	out := r.Clone()
	out.SystemInstruction = instruction
	out.Version = r.Version + 1
	if !strings.HasSuffix(out.Name, evolvedNameSuffix) {
		out.Name += evolvedNameSuffix
	}
	out.UpdatedAt = time.Now().UTC()
	return out
}

func (r ExtractionRule) Clone() ExtractionRule {
	out := r
	if r.Skills != nil {
		out.Skills = append([]ExtractionSkill(nil), r.Skills...)
	}
	return out
}
