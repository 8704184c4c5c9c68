// Package validator checks proposed content data maps against content type
// field definitions before events are accepted.
package validator

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rpattn/contentcore/internal/domain"
)

// DataValidator handles validation of document data against field definitions.
type DataValidator struct{}

// NewDataValidator creates a new data validator.
func NewDataValidator() *DataValidator {
	return &DataValidator{}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// ValidationResult represents the result of validation.
type ValidationResult struct {
	IsValid bool              `json:"is_valid"`
	Errors  []ValidationError `json:"errors"`
}

// Messages joins the individual error messages for error wrapping.
func (r ValidationResult) Messages() []string {
	messages := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		messages = append(messages, e.Message)
	}
	return messages
}

// ValidateData validates a document data map against field definitions.
func (dv *DataValidator) ValidateData(data map[string]any, fields []domain.FieldDefinition) ValidationResult {
	result := ValidationResult{
		IsValid: true,
		Errors:  []ValidationError{},
	}

	defined := make(map[string]domain.FieldDefinition, len(fields))
	for _, field := range fields {
		defined[field.Name] = field
	}

	for _, field := range fields {
		value, exists := data[field.Name]

		if field.Required && (!exists || value == nil) {
			result.IsValid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   field.Name,
				Message: fmt.Sprintf("required field '%s' is missing", field.Name),
			})
			continue
		}

		if !exists || value == nil {
			continue
		}

		if err := dv.validateFieldType(field.Name, value, field.Type); err != nil {
			result.IsValid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   field.Name,
				Message: err.Error(),
				Value:   value,
			})
		}
	}

	for name := range data {
		if _, exists := defined[name]; !exists {
			result.IsValid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("field '%s' is not defined for this content type", name),
				Value:   data[name],
			})
		}
	}

	return result
}

// validateFieldType validates the type of a field value.
func (dv *DataValidator) validateFieldType(fieldName string, value any, expectedType domain.FieldType) error {
	switch expectedType {
	case domain.FieldTypeString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("field '%s' must be a string, got %T", fieldName, value)
		}
	case domain.FieldTypeInteger:
		if !dv.isInteger(value) {
			return fmt.Errorf("field '%s' must be an integer, got %T", fieldName, value)
		}
	case domain.FieldTypeFloat:
		if !dv.isFloat(value) {
			return fmt.Errorf("field '%s' must be a float, got %T", fieldName, value)
		}
	case domain.FieldTypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("field '%s' must be a boolean, got %T", fieldName, value)
		}
	case domain.FieldTypeTimestamp:
		switch v := value.(type) {
		case string:
			if _, err := time.Parse(time.RFC3339, v); err != nil {
				return fmt.Errorf("field '%s' must be a valid timestamp (RFC3339): %v", fieldName, err)
			}
		case time.Time:
			// already parsed; accept value
		default:
			return fmt.Errorf("field '%s' must be a timestamp string, got %T", fieldName, value)
		}
	case domain.FieldTypeJSON:
		if _, err := json.Marshal(value); err != nil {
			return fmt.Errorf("field '%s' contains invalid JSON: %v", fieldName, err)
		}
	default:
		return fmt.Errorf("unknown field type: %s", expectedType)
	}

	return nil
}

func (dv *DataValidator) isInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64:
		return true
	case uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return v == float64(int64(v))
	case string:
		_, err := strconv.Atoi(v)
		return err == nil
	default:
		return false
	}
}

func (dv *DataValidator) isFloat(value any) bool {
	switch v := value.(type) {
	case float32, float64:
		return true
	case int, int8, int16, int32, int64:
		return true
	case string:
		_, err := strconv.ParseFloat(v, 64)
		return err == nil
	default:
		return false
	}
}
