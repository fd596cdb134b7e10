package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is the stable machine-readable classification of an expected
// failure. None of these are fatal; all are returned synchronously to the
// caller.
type ErrorCode string

const (
	CodeValidation  ErrorCode = "VALIDATION_ERROR"     // Malformed/out-of-range input, caller-fixable
	CodeNotFound    ErrorCode = "NOT_FOUND"            // Missing, inactive or cross-owner entity
	CodeConflict    ErrorCode = "CONFLICT"             // Operation would violate an invariant
	CodeConcurrency ErrorCode = "CONCURRENCY_CONFLICT" // Lost a per-patient write race; caller may retry
)

// FieldViolation names one violated input constraint.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the typed failure surface of the core services. Validation
// errors enumerate every violated field, not just the first one found.
type Error struct {
	Code    ErrorCode        `json:"code"`
	Message string           `json:"message"`
	Fields  []FieldViolation `json:"fields,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, "; "))
}

func NewValidationError(violations ...FieldViolation) *Error {
	return &Error{Code: CodeValidation, Message: "validation failed", Fields: violations}
}

func NewNotFoundError(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewConflictError(format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

func NewConcurrencyError(format string, args ...any) *Error {
	return &Error{Code: CodeConcurrency, Message: fmt.Sprintf(format, args...)}
}

// IsCode reports whether err is (or wraps) a domain error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var de *Error
	return errors.As(err, &de) && de.Code == code
}
