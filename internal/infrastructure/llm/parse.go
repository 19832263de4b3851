package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
)

var errNoJSONObject = errors.New("response contains no JSON object")

// extractJSONObject cuts raw to its outermost {...}, dropping code fences and chatter.
func extractJSONObject(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", errNoJSONObject
	}
	return raw[start : end+1], nil
}

func decodeOrdered(raw string) ([]domain.KeyedValue, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return nil, err
	}
	entries, err := domain.DecodeOrderedObject([]byte(obj))
	if err != nil {
		return nil, fmt.Errorf("parse json object: %w", err)
	}
	return entries, nil
}

func parseRegionAnswer(raw string) (bool, []domain.KeyedValue, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return false, nil, err
	}
	var envelope struct {
		Found bool            `json:"found"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(obj), &envelope); err != nil {
		return false, nil, fmt.Errorf("parse region json: %w", err)
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return envelope.Found, nil, nil
	}
	entries, err := domain.DecodeOrderedObject(data)
	if err != nil {
		return false, nil, fmt.Errorf("parse region data: %w", err)
	}
	return envelope.Found, entries, nil
}

type synthesizedSkill struct {
	Name          string `json:"name"`
	Category      string `json:"category"`
	Description   string `json:"description"`
	Example       string `json:"example"`
	OutputExample string `json:"outputExample"`
}

func parseRuleDraft(raw string) (string, []domain.ExtractionSkill, string, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return "", nil, "", err
	}
	var draft struct {
		SystemInstruction string             `json:"systemInstruction"`
		Skills            []synthesizedSkill `json:"skills"`
		Schema            json.RawMessage    `json:"schema"`
	}
	if err := json.Unmarshal([]byte(obj), &draft); err != nil {
		return "", nil, "", fmt.Errorf("parse rule json: %w", err)
	}

	skills := make([]domain.ExtractionSkill, 0, len(draft.Skills))
	for _, s := range draft.Skills {
		skills = append(skills, domain.ExtractionSkill{
			Name:          s.Name,
			Category:      domain.ParseSkillCategory(s.Category),
			Description:   s.Description,
			Example:       s.Example,
			OutputExample: s.OutputExample,
		})
	}

	schema, err := normalizeSchema(draft.Schema)
	if err != nil {
		return "", nil, "", err
	}
	return strings.TrimSpace(draft.SystemInstruction), skills, schema, nil
}

// normalizeSchema accepts the schema as an object or as a JSON string holding one and
// returns indented JSON with the original key order.
func normalizeSchema(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "{}", nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return "", fmt.Errorf("parse schema string: %w", err)
		}
		raw = []byte(inner)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return "", fmt.Errorf("indent schema: %w", err)
	}
	return out.String(), nil
}

// cleanText strips code fences and wrapping quotes from free-text answers.
func cleanText(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	text = strings.TrimSpace(text)
	for _, pair := range [][2]string{{`"`, `"`}, {"“", "”"}, {"'", "'"}} {
		if len(text) >= len(pair[0])+len(pair[1]) && strings.HasPrefix(text, pair[0]) && strings.HasSuffix(text, pair[1]) {
			text = strings.TrimSpace(text[len(pair[0]) : len(text)-len(pair[1])])
			break
		}
	}
	return text
}

// parseDocType maps a free-text classifier answer onto a category by keyword.
func parseDocType(answer string) domain.DocType {
	text := strings.TrimSpace(answer)
	switch {
	case strings.Contains(text, "Loan"):
		return domain.DocTypeLoanAgreement
	case strings.Contains(text, "Mortgage"):
		return domain.DocTypeMortgageContract
	case strings.Contains(text, "Court"), strings.Contains(text, "Ruling"), strings.Contains(text, "Judgment"):
		return domain.DocTypeCourtRuling
	case strings.Contains(text, "Evaluation"), strings.Contains(text, "Asset"):
		return domain.DocTypeAssetEvaluation
	case strings.Contains(text, "Transfer"):
		return domain.DocTypeTransferAgreement
	default:
		return domain.ParseDocType(text)
	}
}
