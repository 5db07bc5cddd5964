// Package schema validates request bodies against a small JSON Schema subset.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
)

// Schema is a decoded JSON Schema document.
type Schema map[string]any

// MaxSafeInteger is the largest integer a float64 holds exactly. Stored
// records carry numbers as float64, so integer fields are capped here.
const MaxSafeInteger = 1<<53 - 1

// Shows describes the fields a client may send for a show. The id is
// accepted so a client can send back a record it fetched, but it is ignored.
var Shows = Schema{
	"type": "object",
	"properties": map[string]any{
		"id": map[string]any{
			"type":    "integer",
			"minimum": float64(-MaxSafeInteger),
			"maximum": float64(MaxSafeInteger),
		},
		"name": map[string]any{"type": "string", "minLength": float64(1)},
		"episodes_seen": map[string]any{
			"type":    "integer",
			"minimum": float64(0),
			"maximum": float64(MaxSafeInteger),
		},
	},
	"additionalProperties": false,
}

// ValidationError reports the first rule a document broke.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Path + ": " + e.Reason
}

func fail(path, format string, args ...any) error {
	return &ValidationError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks a document against a schema. A nil schema accepts anything.
//
// Supported keywords:
//   - type (string, number, integer, boolean, object, array, null)
//   - properties, required, additionalProperties
//   - minimum, maximum
//   - minLength, maxLength
//   - enum
func Validate(s Schema, doc map[string]any) error {
	if s == nil {
		return nil
	}
	return validateValue(s, doc, "$")
}

func validateValue(s Schema, value any, path string) error {
	if t, ok := s["type"].(string); ok {
		if err := checkType(t, value, path); err != nil {
			return err
		}
	}
	if enum, ok := s["enum"].([]any); ok {
		if err := checkEnum(enum, value, path); err != nil {
			return err
		}
	}

	switch v := value.(type) {
	case map[string]any:
		return validateObject(s, v, path)
	case string:
		return validateString(s, v, path)
	case json.Number:
		f, _ := v.Float64()
		return validateNumber(s, f, path)
	default:
		if f, ok := toFloat(v); ok {
			return validateNumber(s, f, path)
		}
	}
	return nil
}

func checkType(expected string, value any, path string) error {
	actual := jsonType(value)
	switch {
	case actual == expected:
		return nil
	case expected == "number" && actual == "integer":
		return nil
	case expected == "integer" && actual == "number":
		if f, ok := toFloat(value); ok && f == math.Trunc(f) {
			return nil
		}
	}
	return fail(path, "expected %s, got %s", expected, actual)
}

func jsonType(v any) string {
	switch n := v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int64:
		return "integer"
	case float64:
		return "number"
	case json.Number:
		if _, err := n.Int64(); err == nil {
			return "integer"
		}
		return "number"
	default:
		return reflect.TypeOf(v).String()
	}
}

func checkEnum(allowed []any, value any, path string) error {
	for _, a := range allowed {
		if reflect.DeepEqual(a, value) {
			return nil
		}
	}
	return fail(path, "value not in %v", allowed)
}

func validateObject(s Schema, obj map[string]any, path string) error {
	if req, ok := s["required"].([]any); ok {
		for _, r := range req {
			field, ok := r.(string)
			if !ok {
				continue
			}
			if _, exists := obj[field]; !exists {
				return fail(path, "missing required field %q", field)
			}
		}
	}

	props, _ := s["properties"].(map[string]any)

	// Check unknown keys before property rules so the result does not
	// depend on map iteration order.
	if ap, ok := s["additionalProperties"].(bool); ok && !ap {
		var extra []string
		for field := range obj {
			if _, defined := props[field]; !defined {
				extra = append(extra, field)
			}
		}
		if len(extra) > 0 {
			sort.Strings(extra)
			return fail(path, "unknown fields: %s", strings.Join(extra, ", "))
		}
	}

	fields := make([]string, 0, len(props))
	for field := range props {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		val, exists := obj[field]
		if !exists {
			continue
		}
		ps, ok := props[field].(map[string]any)
		if !ok {
			continue
		}
		if err := validateValue(ps, val, path+"."+field); err != nil {
			return err
		}
	}
	return nil
}

func validateString(s Schema, str string, path string) error {
	n := float64(len([]rune(str)))
	if v, ok := toFloat(s["minLength"]); ok && n < v {
		return fail(path, "length %v is less than minLength %v", n, v)
	}
	if v, ok := toFloat(s["maxLength"]); ok && n > v {
		return fail(path, "length %v is greater than maxLength %v", n, v)
	}
	return nil
}

func validateNumber(s Schema, n float64, path string) error {
	if v, ok := toFloat(s["minimum"]); ok && n < v {
		return fail(path, "%v is less than minimum %v", n, v)
	}
	if v, ok := toFloat(s["maximum"]); ok && n > v {
		return fail(path, "%v is greater than maximum %v", n, v)
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
