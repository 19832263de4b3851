package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
	"github.com/kirillkom/extraction-workbench/internal/core/ports"
)

// Models picks a provider model per task. Empty entries use the provider default.
type Models struct {
	Fast    string
	Precise string
	Aliases ModelAliases
}

// Client implements every AI collaborator port over one Completer.
type Client struct {
	completer Completer
	models    Models
}

func NewClient(completer Completer, models Models) *Client {
	if models.Aliases == nil {
		models.Aliases = ModelAliases{}
	}
	return &Client{completer: completer, models: models}
}

func (c *Client) Classify(ctx context.Context, snippet string) (domain.DocType, error) {
	answer, err := c.completer.Complete(ctx, Request{
		Model:  c.models.Fast,
		Prompt: buildClassificationPrompt(snippet),
	})
	if err != nil {
		return domain.DocTypeUnknown, fmt.Errorf("classify: %w", err)
	}
	return parseDocType(answer), nil
}

func (c *Client) Extract(ctx context.Context, req ports.ExtractionRequest) ([]domain.KeyedValue, error) {
	model := c.models.Precise
	if req.ModelID != "" {
		model = c.models.Aliases.Resolve(req.ModelID)
	}
	rule := req.Rule
	if req.DocType.Valid() && req.DocType != domain.DocTypeUnknown {
		rule.DocType = req.DocType
	}

	answer, err := c.completer.Complete(ctx, Request{
		Model:  model,
		System: compileInstruction(rule),
		Prompt: buildExtractionPrompt(req.Text, rule.Schema),
		JSON:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	entries, err := decodeOrdered(answer)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	return entries, nil
}

func (c *Client) AnalyzeRegion(ctx context.Context, req ports.RegionRequest) (ports.RegionResult, error) {
	if len(req.Targets) == 0 {
		return ports.RegionResult{}, nil
	}
	answer, err := c.completer.Complete(ctx, Request{
		Model:  c.models.Fast,
		Prompt: buildRegionPrompt(req.DocType, req.Text, req.Targets),
		JSON:   true,
	})
	if err != nil {
		return ports.RegionResult{}, fmt.Errorf("analyze region: %w", err)
	}
	found, data, err := parseRegionAnswer(answer)
	if err != nil {
		return ports.RegionResult{}, fmt.Errorf("analyze region: %w", err)
	}
	return ports.RegionResult{Found: found, Data: data}, nil
}

func (c *Client) Refine(ctx context.Context, req ports.RefineRequest) ([]domain.KeyedValue, error) {
	answer, err := c.completer.Complete(ctx, Request{
		Model:  c.models.Precise,
		Prompt: buildRefinePrompt(req.DocType, req.Text, req.Keys, req.Snapshot, req.BadCases),
		JSON:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("refine: %w", err)
	}
	entries, err := decodeOrdered(answer)
	if err != nil {
		return nil, fmt.Errorf("refine: %w", err)
	}
	return entries, nil
}

func (c *Client) Synthesize(ctx context.Context, description string) (ports.RuleDraft, error) {
	answer, err := c.completer.Complete(ctx, Request{
		Model:  c.models.Precise,
		Prompt: buildSynthesisPrompt(description),
		JSON:   true,
	})
	if err != nil {
		return ports.RuleDraft{}, fmt.Errorf("synthesize rule: %w", err)
	}
	instruction, skills, schema, err := parseRuleDraft(answer)
	if err != nil {
		return ports.RuleDraft{}, fmt.Errorf("synthesize rule: %w", err)
	}
	return ports.RuleDraft{SystemInstruction: instruction, Skills: skills, Schema: schema}, nil
}

func (c *Client) RewriteInstruction(ctx context.Context, req ports.RewriteRequest) (string, error) {
	answer, err := c.completer.Complete(ctx, Request{
		Model:  c.models.Precise,
		Prompt: buildRewritePrompt(req.SampleText, req.OldInstruction, req.Incorrect, req.Corrected),
	})
	if err != nil {
		return "", fmt.Errorf("rewrite instruction: %w", err)
	}
	text := cleanText(answer)
	if text == "" {
		return "", errors.New("rewrite instruction: empty answer")
	}
	return text, nil
}

func (c *Client) OptimizeSkill(ctx context.Context, skill domain.ExtractionSkill) (string, error) {
	if strings.TrimSpace(skill.Description) == "" {
		return "", errors.New("optimize skill: description is empty")
	}
	answer, err := c.completer.Complete(ctx, Request{
		Model:  c.models.Precise,
		Prompt: buildSkillPrompt(skill),
	})
	if err != nil {
		return "", fmt.Errorf("optimize skill: %w", err)
	}
	return cleanText(answer), nil
}
