package validator

import (
	"strings"
	"testing"

	"github.com/rpattn/contentcore/internal/domain"
)

func articleFields() []domain.FieldDefinition {
	return []domain.FieldDefinition{
		{Name: "title", Type: domain.FieldTypeString, Required: true},
		{Name: "views", Type: domain.FieldTypeInteger},
		{Name: "rating", Type: domain.FieldTypeFloat},
		{Name: "published", Type: domain.FieldTypeBoolean},
		{Name: "published_at", Type: domain.FieldTypeTimestamp},
		{Name: "metadata", Type: domain.FieldTypeJSON},
	}
}

func TestValidateDataAccepts(t *testing.T) {
	dv := NewDataValidator()

	result := dv.ValidateData(map[string]any{
		"title":        "Hello",
		"views":        42,
		"rating":       4.5,
		"published":    true,
		"published_at": "2024-03-01T12:00:00Z",
		"metadata":     map[string]any{"tags": []any{"go"}},
	}, articleFields())

	if !result.IsValid {
		t.Fatalf("expected valid, got errors: %v", result.Messages())
	}
}

func TestValidateDataMissingRequired(t *testing.T) {
	dv := NewDataValidator()

	result := dv.ValidateData(map[string]any{"views": 1}, articleFields())
	if result.IsValid {
		t.Fatal("expected invalid")
	}
	if len(result.Errors) != 1 || result.Errors[0].Field != "title" {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
}

func TestValidateDataTypeMismatches(t *testing.T) {
	dv := NewDataValidator()

	cases := []struct {
		name string
		data map[string]any
	}{
		{"string", map[string]any{"title": 7}},
		{"integer", map[string]any{"title": "t", "views": "lots"}},
		{"float", map[string]any{"title": "t", "rating": "high"}},
		{"boolean", map[string]any{"title": "t", "published": "yes"}},
		{"timestamp", map[string]any{"title": "t", "published_at": "last tuesday"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := dv.ValidateData(tc.data, articleFields())
			if result.IsValid {
				t.Fatalf("expected %s mismatch to fail", tc.name)
			}
		})
	}
}

func TestValidateDataNumericLeniency(t *testing.T) {
	dv := NewDataValidator()

	// JSON decoding yields float64 for integers; whole floats must pass.
	result := dv.ValidateData(map[string]any{"title": "t", "views": float64(10)}, articleFields())
	if !result.IsValid {
		t.Fatalf("whole float64 must satisfy integer fields: %v", result.Messages())
	}

	result = dv.ValidateData(map[string]any{"title": "t", "views": 10.5}, articleFields())
	if result.IsValid {
		t.Fatal("fractional value must not satisfy integer fields")
	}

	result = dv.ValidateData(map[string]any{"title": "t", "rating": 3}, articleFields())
	if !result.IsValid {
		t.Fatalf("integers must satisfy float fields: %v", result.Messages())
	}
}

func TestValidateDataUnknownField(t *testing.T) {
	dv := NewDataValidator()

	result := dv.ValidateData(map[string]any{"title": "t", "surprise": 1}, articleFields())
	if result.IsValid {
		t.Fatal("expected unknown field to fail")
	}
	if !strings.Contains(strings.Join(result.Messages(), ";"), "surprise") {
		t.Fatalf("error should name the unknown field: %v", result.Messages())
	}
}

func TestValidateDataNilOptionalSkipped(t *testing.T) {
	dv := NewDataValidator()

	result := dv.ValidateData(map[string]any{"title": "t", "views": nil}, articleFields())
	if !result.IsValid {
		t.Fatalf("nil optional values are skipped: %v", result.Messages())
	}
}
