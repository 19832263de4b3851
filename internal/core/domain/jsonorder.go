package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// DecodeOrderedObject decodes a JSON object and keeps its top-level key order.
// Nested values are decoded into plain Go values.
func DecodeOrderedObject(raw []byte) ([]KeyedValue, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read object start: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("expected JSON object")
	}

	out := make([]KeyedValue, 0)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read object key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, errors.New("object key is not a string")
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("decode value for %q: %w", key, err)
		}
		out = append(out, KeyedValue{Key: key, Value: numbersToFloat(value)})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("read object end: %w", err)
	}
	return out, nil
}

func numbersToFloat(v any) any {
	switch value := v.(type) {
	case json.Number:
		if f, err := value.Float64(); err == nil {
			return f
		}
		return value.String()
	case map[string]any:
		for k, inner := range value {
			value[k] = numbersToFloat(inner)
		}
		return value
	case []any:
		for i, inner := range value {
			value[i] = numbersToFloat(inner)
		}
		return value
	default:
		return v
	}
}
