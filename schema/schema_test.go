package schema_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stevemurr/show-tracker/schema"
)

func TestValidateNilSchema(t *testing.T) {
	err := schema.Validate(nil, map[string]any{"anything": "goes"})
	if err != nil {
		t.Fatalf("nil schema should pass: %v", err)
	}
}

func TestValidateRequired(t *testing.T) {
	s := schema.Schema{
		"type":     "object",
		"required": []any{"name", "age"},
	}

	err := schema.Validate(s, map[string]any{"name": "Alice"})
	if err == nil {
		t.Fatal("expected error for missing 'age'")
	}

	err = schema.Validate(s, map[string]any{"name": "Alice", "age": float64(30)})
	if err != nil {
		t.Fatalf("expected pass: %v", err)
	}
}

func TestValidateEnum(t *testing.T) {
	s := schema.Schema{
		"type": "object",
		"properties": map[string]any{
			"status": map[string]any{"type": "string", "enum": []any{"watching", "dropped"}},
		},
	}
	if err := schema.Validate(s, map[string]any{"status": "watching"}); err != nil {
		t.Fatalf("expected pass: %v", err)
	}
	if err := schema.Validate(s, map[string]any{"status": "finished"}); err == nil {
		t.Fatal("expected error for value outside enum")
	}
}

func TestShowsAcceptsValidShow(t *testing.T) {
	docs := []map[string]any{
		{"name": "The Office", "episodes_seen": float64(5)},
		{"name": "The Office", "episodes_seen": 0},
		{"id": float64(3), "name": "Naruto", "episodes_seen": float64(220)},
		{"name": "Only a name"},
	}
	for _, doc := range docs {
		if err := schema.Validate(schema.Shows, doc); err != nil {
			t.Fatalf("expected %v to pass: %v", doc, err)
		}
	}
}

func TestShowsRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  map[string]any
		path string
	}{
		{"name not string", map[string]any{"name": float64(1), "episodes_seen": float64(1)}, "$.name"},
		{"empty name", map[string]any{"name": "", "episodes_seen": float64(1)}, "$.name"},
		{"fractional episodes", map[string]any{"name": "x", "episodes_seen": 2.5}, "$.episodes_seen"},
		{"negative episodes", map[string]any{"name": "x", "episodes_seen": float64(-1)}, "$.episodes_seen"},
		{"episodes as string", map[string]any{"name": "x", "episodes_seen": "3"}, "$.episodes_seen"},
		{"unknown key", map[string]any{"name": "x", "episodes_seen": float64(1), "rating": float64(9)}, "$"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := schema.Validate(schema.Shows, tc.doc)
			if err == nil {
				t.Fatal("expected error")
			}
			var verr *schema.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if verr.Path != tc.path {
				t.Fatalf("expected path %s, got %s", tc.path, verr.Path)
			}
		})
	}
}

func TestUnknownFieldsListedInOrder(t *testing.T) {
	err := schema.Validate(schema.Shows, map[string]any{"name": "x", "zeta": 1, "alpha": 2})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "alpha, zeta") {
		t.Fatalf("expected sorted unknown fields, got %q", err.Error())
	}
}

func TestValidateNumberBounds(t *testing.T) {
	s := schema.Schema{
		"type": "object",
		"properties": map[string]any{
			"score": map[string]any{
				"type":    "number",
				"minimum": float64(0),
				"maximum": float64(100),
			},
		},
	}

	if err := schema.Validate(s, map[string]any{"score": float64(-1)}); err == nil {
		t.Fatal("expected error for below minimum")
	}
	if err := schema.Validate(s, map[string]any{"score": float64(101)}); err == nil {
		t.Fatal("expected error for above maximum")
	}
	if err := schema.Validate(s, map[string]any{"score": 50}); err != nil {
		t.Fatalf("expected pass: %v", err)
	}
}

func TestValidateMaxLength(t *testing.T) {
	s := schema.Schema{
		"type": "object",
		"properties": map[string]any{
			"code": map[string]any{"type": "string", "maxLength": float64(3)},
		},
	}
	if err := schema.Validate(s, map[string]any{"code": "ABCD"}); err == nil {
		t.Fatal("expected error for too-long string")
	}
	// Length counts runes, not bytes.
	if err := schema.Validate(s, map[string]any{"code": "äöü"}); err != nil {
		t.Fatalf("expected pass: %v", err)
	}
}

func TestShowsEpisodesUpperBound(t *testing.T) {
	ok := map[string]any{"name": "x", "episodes_seen": float64(schema.MaxSafeInteger)}
	if err := schema.Validate(schema.Shows, ok); err != nil {
		t.Fatalf("largest safe integer should pass: %v", err)
	}

	for _, n := range []float64{float64(schema.MaxSafeInteger + 1), 1e30} {
		err := schema.Validate(schema.Shows, map[string]any{"name": "x", "episodes_seen": n})
		var verr *schema.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%g: expected *ValidationError, got %v", n, err)
		}
		if verr.Path != "$.episodes_seen" {
			t.Fatalf("%g: expected path $.episodes_seen, got %s", n, verr.Path)
		}
	}
}
