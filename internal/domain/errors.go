package domain

import "errors"

// Sentinel errors for the core taxonomy. Call sites wrap these with
// fmt.Errorf("...: %w", err) so callers can classify with errors.Is.
var (
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrValidationFailed     = errors.New("validation failed")
	ErrConcurrencyConflict  = errors.New("concurrency conflict")
	ErrDuplicateRequest     = errors.New("duplicate request")
	ErrUnsupportedOperation = errors.New("unsupported operation")
)
