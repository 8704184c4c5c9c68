// Package sensitivity applies post-authorization field and document level
// redaction. The permission resolver answers whether a caller may see a
// document at all; this filter answers which fields within a permitted
// document must still be hidden.
package sensitivity

import (
	"github.com/rpattn/contentcore/internal/domain"
)

// DefaultMaskValue replaces masked field values when a policy doesn't supply
// its own placeholder.
const DefaultMaskValue = "***"

// Filter masks or removes document fields according to the content type's
// field policies and the caller's roles. It is pure: callers get a redacted
// copy, the input document is never touched.
type Filter struct{}

// New creates a sensitivity filter.
func New() *Filter {
	return &Filter{}
}

// Apply redacts the document for the given caller roles. Document-level
// hidden handling short-circuits before any field-level policy runs; a
// SuperAdmin capability on any role bypasses both tiers.
func (f *Filter) Apply(doc domain.ContentDocument, policies []domain.FieldPolicy, callerRoles []domain.Role) domain.ContentDocument {
	if isSuperAdmin(callerRoles) {
		return doc
	}

	if doc.Sensitivity == domain.SensitivityHidden {
		redacted := doc
		redacted.ContentType = domain.HiddenContentType
		redacted.Data = map[string]any{}
		return redacted
	}

	if len(policies) == 0 {
		return doc
	}

	roleNames := make(map[string]struct{}, len(callerRoles))
	for _, role := range callerRoles {
		roleNames[role.Name] = struct{}{}
	}

	redacted := doc
	redacted.Data = make(map[string]any, len(doc.Data))
	for k, v := range doc.Data {
		redacted.Data[k] = v
	}

	for _, policy := range policies {
		if _, present := redacted.Data[policy.Field]; !present {
			continue
		}
		if holdsAny(roleNames, policy.AllowedRoles) {
			continue
		}
		switch policy.Action {
		case domain.PolicyRemove:
			delete(redacted.Data, policy.Field)
		case domain.PolicyMask:
			mask := policy.MaskValue
			if mask == "" {
				mask = DefaultMaskValue
			}
			redacted.Data[policy.Field] = mask
		}
	}

	return redacted
}

func isSuperAdmin(roles []domain.Role) bool {
	for _, role := range roles {
		if role.HasCapability(domain.CapabilitySuperAdmin) {
			return true
		}
	}
	return false
}

func holdsAny(held map[string]struct{}, allowed []string) bool {
	for _, name := range allowed {
		if _, ok := held[name]; ok {
			return true
		}
	}
	return false
}
