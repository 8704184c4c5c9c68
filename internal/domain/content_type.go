package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FieldType represents the type of a field in a content type definition.
type FieldType string

const (
	FieldTypeString    FieldType = "string"
	FieldTypeInteger   FieldType = "integer"
	FieldTypeFloat     FieldType = "float"
	FieldTypeBoolean   FieldType = "boolean"
	FieldTypeTimestamp FieldType = "timestamp"
	FieldTypeJSON      FieldType = "json"
)

func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeString, FieldTypeInteger, FieldTypeFloat, FieldTypeBoolean, FieldTypeTimestamp, FieldTypeJSON:
		return true
	default:
		return false
	}
}

// FieldDefinition represents a field definition in a content type.
type FieldDefinition struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required"`
	Description string    `json:"description,omitempty"`
	Validation  string    `json:"validation,omitempty"`
}

// PolicyAction says what the sensitivity filter does to a guarded field.
type PolicyAction string

const (
	PolicyRemove PolicyAction = "remove"
	PolicyMask   PolicyAction = "mask"
)

// FieldPolicy guards a single field of a content type. Callers holding none
// of AllowedRoles see the field removed or masked.
type FieldPolicy struct {
	Field        string       `json:"field"`
	Action       PolicyAction `json:"action"`
	AllowedRoles []string     `json:"allowed_roles,omitempty"`
	MaskValue    string       `json:"mask_value,omitempty"`
}

// ContentTypeDefinition describes the shape of documents of one content type.
// Field policies ride along with the definition and feed the sensitivity
// filter.
type ContentTypeDefinition struct {
	ID            uuid.UUID         `json:"id"`
	Slug          string            `json:"slug"`
	DisplayName   string            `json:"display_name"`
	Fields        []FieldDefinition `json:"fields"`
	FieldPolicies []FieldPolicy     `json:"field_policies,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// NewContentType creates a new content type definition with a normalized slug.
func NewContentType(slug, displayName string, fields []FieldDefinition) ContentTypeDefinition {
	now := time.Now()
	return ContentTypeDefinition{
		ID:          uuid.New(),
		Slug:        NormalizeSlug(slug),
		DisplayName: displayName,
		Fields:      copyFields(fields),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// WithField returns a new definition with an added/updated field.
func (ct ContentTypeDefinition) WithField(field FieldDefinition) ContentTypeDefinition {
	newFields := copyFields(ct.Fields)

	found := false
	for i, existing := range newFields {
		if existing.Name == field.Name {
			newFields[i] = field
			found = true
			break
		}
	}
	if !found {
		newFields = append(newFields, field)
	}

	next := ct
	next.Fields = newFields
	next.UpdatedAt = time.Now()
	return next
}

// WithFieldPolicies returns a new definition with replaced field policies.
func (ct ContentTypeDefinition) WithFieldPolicies(policies []FieldPolicy) ContentTypeDefinition {
	next := ct
	next.Fields = copyFields(ct.Fields)
	next.FieldPolicies = copyPolicies(policies)
	next.UpdatedAt = time.Now()
	return next
}

// Field returns the definition for the named field, if present.
func (ct ContentTypeDefinition) Field(name string) (FieldDefinition, bool) {
	for _, field := range ct.Fields {
		if strings.EqualFold(field.Name, name) {
			return field, true
		}
	}
	return FieldDefinition{}, false
}

func (ct ContentTypeDefinition) GetFieldsAsJSONB() (json.RawMessage, error) {
	return json.Marshal(ct.Fields)
}

// FromJSONBFields decodes field definitions from JSONB storage.
func FromJSONBFields(fieldsJSON json.RawMessage) ([]FieldDefinition, error) {
	var fields []FieldDefinition
	err := json.Unmarshal(fieldsJSON, &fields)
	return fields, err
}

func (ct ContentTypeDefinition) GetFieldPoliciesAsJSONB() (json.RawMessage, error) {
	if ct.FieldPolicies == nil {
		return json.Marshal([]FieldPolicy{})
	}
	return json.Marshal(ct.FieldPolicies)
}

// FromJSONBFieldPolicies decodes field policies from JSONB storage.
func FromJSONBFieldPolicies(policiesJSON json.RawMessage) ([]FieldPolicy, error) {
	var policies []FieldPolicy
	err := json.Unmarshal(policiesJSON, &policies)
	return policies, err
}

// NormalizeSlug lowercases a slug and collapses separators and punctuation
// into single hyphens.
func NormalizeSlug(raw string) string {
	var b strings.Builder
	lastHyphen := true // trims leading separators
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func copyFields(fields []FieldDefinition) []FieldDefinition {
	if fields == nil {
		return nil
	}
	newFields := make([]FieldDefinition, len(fields))
	copy(newFields, fields)
	return newFields
}

func copyPolicies(policies []FieldPolicy) []FieldPolicy {
	if policies == nil {
		return nil
	}
	newPolicies := make([]FieldPolicy, len(policies))
	copy(newPolicies, policies)
	return newPolicies
}
