// Package llm defines the text-completion collaborator used by the intent
// classifier and the helpers that read its loosely shaped JSON answers.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
)

// MalformedJSON is the error marker value returned when a completion holds no
// JSON object at all.
const MalformedJSON = "Malformed JSON"

// Completer asks a model for a JSON object answer to prompt.
//
// Implementations return either the decoded object, a salvaged object or an
// error marker object (see ParseObject); callers must tolerate all three.
type Completer interface {
	CompleteJSON(ctx context.Context, prompt, model string) (map[string]any, error)
}

// ParseObject decodes raw completion text. When the text as a whole is not a
// JSON object the first well-formed brace-delimited object inside it is used.
// If none exists the result is {"error": MalformedJSON, "raw": raw}.
func ParseObject(raw string) map[string]any {
	text := strings.TrimSpace(raw)
	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err == nil && out != nil {
		return out
	}
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader([]byte(text[i:])))
		var candidate map[string]any
		if err := dec.Decode(&candidate); err == nil && candidate != nil {
			return candidate
		}
	}
	return map[string]any{"error": MalformedJSON, "raw": raw}
}

// IsErrorMarker reports whether obj is the marker produced by ParseObject.
func IsErrorMarker(obj map[string]any) bool {
	if obj == nil {
		return true
	}
	s, ok := obj["error"].(string)
	return ok && s == MalformedJSON
}

// Shape names where a field was found in a collaborator response.
type Shape int

const (
	ShapeNone Shape = iota
	// ShapeDirect is {"field": v}.
	ShapeDirect
	// ShapeNested is {"anything": {"field": v}} for a key other than "data".
	ShapeNested
	// ShapeData is {"data": {"field": v}}.
	ShapeData
)

func (s Shape) String() string {
	switch s {
	case ShapeDirect:
		return "direct"
	case ShapeNested:
		return "nested"
	case ShapeData:
		return "data"
	default:
		return "none"
	}
}

var extractionOrder = []Shape{ShapeDirect, ShapeNested, ShapeData}

// Lookup finds field in obj trying each shape in extraction order.
func Lookup(obj map[string]any, field string) (any, Shape) {
	for _, shape := range extractionOrder {
		if v, ok := lookupShape(obj, field, shape); ok {
			return v, shape
		}
	}
	return nil, ShapeNone
}

func lookupShape(obj map[string]any, field string, shape Shape) (any, bool) {
	switch shape {
	case ShapeDirect:
		v, ok := obj[field]
		return v, ok && v != nil
	case ShapeNested:
		keys := make([]string, 0, len(obj))
		for k := range obj {
			if k != "data" {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			nested, ok := obj[k].(map[string]any)
			if !ok {
				continue
			}
			if v, ok := nested[field]; ok && v != nil {
				return v, true
			}
		}
	case ShapeData:
		if data, ok := obj["data"].(map[string]any); ok {
			v, ok := data[field]
			return v, ok && v != nil
		}
	}
	return nil, false
}

// String returns the first non-empty string found for any of fields. Shapes
// are tried outermost, fields in the order given.
func String(obj map[string]any, fields ...string) (string, bool) {
	for _, shape := range extractionOrder {
		for _, field := range fields {
			v, ok := lookupShape(obj, field, shape)
			if !ok {
				continue
			}
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s), true
			}
		}
	}
	return "", false
}

// Bool reads a boolean field directly from obj. Strings "true"/"false" are
// accepted because some models quote them.
func Bool(obj map[string]any, field string) bool {
	switch v := obj[field].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	default:
		return false
	}
}
