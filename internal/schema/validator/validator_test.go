package validator

import (
	"errors"
	"testing"

	"github.com/rpattn/contentcore/internal/domain"
)

func TestValidateFields(t *testing.T) {
	valid := []domain.FieldDefinition{
		{Name: "title", Type: domain.FieldTypeString},
		{Name: "views", Type: domain.FieldTypeInteger},
	}
	if err := ValidateFields(valid); err != nil {
		t.Fatalf("valid fields rejected: %v", err)
	}

	cases := []struct {
		name   string
		fields []domain.FieldDefinition
	}{
		{"empty name", []domain.FieldDefinition{{Name: "  ", Type: domain.FieldTypeString}}},
		{"duplicate name", []domain.FieldDefinition{
			{Name: "Title", Type: domain.FieldTypeString},
			{Name: "title", Type: domain.FieldTypeString},
		}},
		{"unknown type", []domain.FieldDefinition{{Name: "title", Type: "text"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFields(tc.fields)
			if !errors.Is(err, domain.ErrValidationFailed) {
				t.Fatalf("expected ErrValidationFailed, got %v", err)
			}
		})
	}
}

func TestValidateSlug(t *testing.T) {
	slug, err := ValidateSlug("Blog Post")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slug != "blog-post" {
		t.Errorf("slug = %q, want blog-post", slug)
	}

	if _, err := ValidateSlug("!!!"); !errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed, got %v", err)
	}
}

func TestValidatePolicies(t *testing.T) {
	fields := []domain.FieldDefinition{{Name: "salary", Type: domain.FieldTypeInteger}}

	ok := []domain.FieldPolicy{{Field: "salary", Action: domain.PolicyMask}}
	if err := ValidatePolicies(ok, fields); err != nil {
		t.Fatalf("valid policy rejected: %v", err)
	}

	undefined := []domain.FieldPolicy{{Field: "ssn", Action: domain.PolicyRemove}}
	if err := ValidatePolicies(undefined, fields); !errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed for undefined field, got %v", err)
	}

	badAction := []domain.FieldPolicy{{Field: "salary", Action: "encrypt"}}
	if err := ValidatePolicies(badAction, fields); !errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed for unknown action, got %v", err)
	}
}
