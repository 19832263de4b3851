package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

const (
	DefaultExtractionConfidence = 0.8
	RegionConfidence            = 0.95
	RefinementConfidence        = 0.99
	ManualConfidence            = 1.0
)

type ExtractionField struct {
	Key        string  `json:"key"`
	Label      string  `json:"label"`
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
	IsEdited   bool    `json:"is_edited"`
	SourcePage *int    `json:"source_page,omitempty"`
	Position   int     `json:"position"`
	// PreviousValue is the machine value a human replaced on the first edit.
	PreviousValue any `json:"previous_value,omitempty"`
}

// IsEmpty reports whether the field still waits for a value.
func (f ExtractionField) IsEmpty() bool {
	if f.Value == nil {
		return true
	}
	s, ok := f.Value.(string)
	return ok && s == ""
}

// KeyedValue is one entry of a collaborator answer, kept in answer order.
type KeyedValue struct {
	Key   string
	Value any
}

// FieldMap is the single owned field mapping of a document. Every writer goes through
// one of its methods so confidence and edit-flag rules live in one place.
type FieldMap map[string]ExtractionField

// FromExtraction builds a fresh map from an Extractor answer. When schemaKeys is non-empty
// it decides which keys exist and in which order; otherwise the answer order is used.
// Schema keys missing from the answer get a nil value at the default confidence.
func FromExtraction(answer []KeyedValue, schemaKeys []string) FieldMap {
	out := make(FieldMap, len(answer))
	page := 1

	if len(schemaKeys) == 0 {
		for idx, kv := range answer {
			if _, dup := out[kv.Key]; dup || kv.Key == "" {
				continue
			}
			out[kv.Key] = coerceExtracted(kv.Key, kv.Value, idx)
		}
		return out
	}

	byKey := make(map[string]any, len(answer))
	for _, kv := range answer {
		if _, dup := byKey[kv.Key]; !dup {
			byKey[kv.Key] = kv.Value
		}
	}
	for idx, key := range schemaKeys {
		raw, ok := byKey[key]
		if !ok {
			p := page
			out[key] = ExtractionField{
				Key:        key,
				Label:      HumanizeKey(key),
				Value:      nil,
				Confidence: DefaultExtractionConfidence,
				SourcePage: &p,
				Position:   idx,
			}
			continue
		}
		out[key] = coerceExtracted(key, raw, idx)
	}
	return out
}

func coerceExtracted(key string, raw any, position int) ExtractionField {
	field := ExtractionField{
		Key:        key,
		Label:      HumanizeKey(key),
		Confidence: DefaultExtractionConfidence,
		Position:   position,
	}
	page := 1

	if obj, ok := raw.(map[string]any); ok {
		if value, hasValue := obj["value"]; hasValue {
			field.Value = NormalizeValue(value)
			if c, ok := asFloat(obj["confidence"]); ok {
				field.Confidence = clampConfidence(c)
			}
			for _, name := range []string{"source_page", "sourcePage", "page"} {
				if p, ok := asFloat(obj[name]); ok && p >= 1 {
					page = int(p)
					break
				}
			}
		} else {
			field.Value = NormalizeValue(obj)
		}
	} else {
		field.Value = NormalizeValue(raw)
	}
	field.SourcePage = &page
	return field
}

// ApplyManualEdit records a human override.
func (m FieldMap) ApplyManualEdit(key string, value any) error {
	field, ok := m[key]
	if !ok {
		return WrapError(ErrFieldNotFound, "edit field", fmt.Errorf("key=%s", key))
	}
	if !field.IsEdited {
		field.PreviousValue = field.Value
	}
	field.Value = NormalizeValue(value)
	field.Confidence = ManualConfidence
	field.IsEdited = true
	m[key] = field
	return nil
}

// ImportLabels adds empty fields for labels not yet present; the label doubles as key.
func (m FieldMap) ImportLabels(labels []string) int {
	next := m.nextPosition()
	added := 0
	for _, raw := range labels {
		label := strings.TrimSpace(raw)
		if label == "" {
			continue
		}
		if _, exists := m[label]; exists {
			continue
		}
		page := 1
		m[label] = ExtractionField{
			Key:        label,
			Label:      label,
			Value:      nil,
			Confidence: 0,
			SourcePage: &page,
			Position:   next,
		}
		next++
		added++
	}
	return added
}

// ApplyRegionResult fills targets from a region analysis answer. Each answer key is resolved
// through matcher against the targets still unfilled in this call; unmatched keys are dropped.
func (m FieldMap) ApplyRegionResult(answer []KeyedValue, targets []string, matcher KeyMatcher) []string {
	if matcher == nil {
		matcher = ContainmentMatcher{}
	}
	remaining := make([]string, 0, len(targets))
	for _, key := range targets {
		if _, ok := m[key]; ok {
			remaining = append(remaining, key)
		}
	}

	filled := make([]string, 0, len(answer))
	for _, kv := range answer {
		value := NormalizeValue(kv.Value)
		if value == nil || value == "" {
			continue
		}
		target, ok := matcher.Match(kv.Key, remaining)
		if !ok {
			continue
		}
		field := m[target]
		if !field.IsEdited {
			field.PreviousValue = field.Value
		}
		field.Value = value
		field.Confidence = RegionConfidence
		field.IsEdited = true
		m[target] = field

		filled = append(filled, target)
		remaining = removeKey(remaining, target)
	}
	return filled
}

// MergeRefinement overwrites every changed value with a system-refined one. A refined value is
// not a manual edit, so the edit flag is cleared even when a human had set it before.
func (m FieldMap) MergeRefinement(answer []KeyedValue) []string {
	changed := make([]string, 0)
	for _, kv := range answer {
		field, ok := m[kv.Key]
		if !ok {
			continue
		}
		raw := kv.Value
		if obj, isObj := raw.(map[string]any); isObj {
			if inner, hasValue := obj["value"]; hasValue {
				raw = inner
			}
		}
		value := NormalizeValue(raw)
		if ValuesEqual(field.Value, value) {
			continue
		}
		field.Value = value
		field.Confidence = RefinementConfidence
		field.IsEdited = false
		field.PreviousValue = nil
		m[kv.Key] = field
		changed = append(changed, kv.Key)
	}
	return changed
}

// Keys returns keys in display order.
func (m FieldMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		pi, pj := m[keys[i]].Position, m[keys[j]].Position
		if pi != pj {
			return pi < pj
		}
		return keys[i] < keys[j]
	})
	return keys
}

func (m FieldMap) MissingKeys() []string {
	out := make([]string, 0)
	for _, key := range m.Keys() {
		if m[key].IsEmpty() {
			out = append(out, key)
		}
	}
	return out
}

func (m FieldMap) EditedKeys() []string {
	out := make([]string, 0)
	for _, key := range m.Keys() {
		if m[key].IsEdited {
			out = append(out, key)
		}
	}
	return out
}

// ValueSnapshot is the key→value view handed to collaborators.
func (m FieldMap) ValueSnapshot() map[string]any {
	out := make(map[string]any, len(m))
	for key, field := range m {
		out[key] = field.Value
	}
	return out
}

func (m FieldMap) Clone() FieldMap {
	if m == nil {
		return nil
	}
	out := make(FieldMap, len(m))
	for key, field := range m {
		if field.SourcePage != nil {
			page := *field.SourcePage
			field.SourcePage = &page
		}
		out[key] = field
	}
	return out
}

func (m FieldMap) nextPosition() int {
	next := 0
	for _, field := range m {
		if field.Position >= next {
			next = field.Position + 1
		}
	}
	return next
}

// HumanizeKey keeps non-ASCII keys verbatim and splits ASCII keys at upper-case letters.
func HumanizeKey(key string) string {
	for _, r := range key {
		if r > unicode.MaxASCII {
			return key
		}
	}
	var b strings.Builder
	for _, r := range key {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// NormalizeValue folds collaborator output into string, float64 or nil.
func NormalizeValue(v any) any {
	switch value := v.(type) {
	case nil:
		return nil
	case string:
		return value
	case float64:
		return value
	case float32:
		return float64(value)
	case int:
		return float64(value)
	case int64:
		return float64(value)
	case json.Number:
		if f, err := value.Float64(); err == nil {
			return f
		}
		return value.String()
	case bool:
		return strconv.FormatBool(value)
	default:
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value)
		}
		return string(raw)
	}
}

func ValuesEqual(a, b any) bool {
	return NormalizeValue(a) == NormalizeValue(b)
}

func asFloat(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case int:
		return float64(value), true
	case json.Number:
		f, err := value.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func clampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}

func removeKey(keys []string, key string) []string {
	out := keys[:0]
	for _, k := range keys {
		if k != key {
			out = append(out, k)
		}
	}
	return out
}
