package validator

import (
	"fmt"
	"strings"

	"github.com/rpattn/contentcore/internal/domain"
)

// ValidateFields ensures a content type's field definitions are well formed:
// non-empty unique names and known field types.
func ValidateFields(fields []domain.FieldDefinition) error {
	seen := make(map[string]struct{}, len(fields))

	for _, field := range fields {
		name := strings.TrimSpace(field.Name)
		if name == "" {
			return fmt.Errorf("field definitions must have a name: %w", domain.ErrValidationFailed)
		}

		key := strings.ToLower(name)
		if _, duplicate := seen[key]; duplicate {
			return fmt.Errorf("duplicate field name %q: %w", name, domain.ErrValidationFailed)
		}
		seen[key] = struct{}{}

		if !field.Type.Valid() {
			return fmt.Errorf("field %q has unknown type %q: %w", name, field.Type, domain.ErrValidationFailed)
		}
	}

	return nil
}

// ValidateSlug ensures a proposed content type slug normalizes to something
// non-empty.
func ValidateSlug(slug string) (string, error) {
	normalized := domain.NormalizeSlug(slug)
	if normalized == "" {
		return "", fmt.Errorf("content type slug %q is empty after normalization: %w", slug, domain.ErrValidationFailed)
	}
	return normalized, nil
}

// ValidatePolicies ensures field policies reference defined fields and carry
// a known action.
func ValidatePolicies(policies []domain.FieldPolicy, fields []domain.FieldDefinition) error {
	defined := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		defined[strings.ToLower(field.Name)] = struct{}{}
	}

	for _, policy := range policies {
		if _, ok := defined[strings.ToLower(policy.Field)]; !ok {
			return fmt.Errorf("field policy references undefined field %q: %w", policy.Field, domain.ErrValidationFailed)
		}
		if policy.Action != domain.PolicyRemove && policy.Action != domain.PolicyMask {
			return fmt.Errorf("field policy for %q has unknown action %q: %w", policy.Field, policy.Action, domain.ErrValidationFailed)
		}
	}

	return nil
}
