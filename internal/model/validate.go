package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultMaxValueBytes mirrors the 1.8 MB single-value limit of the hosted
// KV store the comment list lives in.
const DefaultMaxValueBytes = 1843200

// ListOverheadBytes bounds what a one-comment list adds around the encoded
// content: brackets, field names, the id and the time.
const ListOverheadBytes = 256

// DefaultMaxContentBytes is the largest comment body accepted by default. A
// body at this size still fits in an empty list of DefaultMaxValueBytes.
const DefaultMaxContentBytes = DefaultMaxValueBytes - ListOverheadBytes

// ContentLimit returns the content cap that keeps a single comment storable
// in a value of maxValueBytes. It returns 0 (no cap) when maxValueBytes is 0.
func ContentLimit(maxValueBytes int) int {
	if maxValueBytes <= 0 {
		return 0
	}
	return max(maxValueBytes-ListOverheadBytes, 1)
}

// EncodedLen returns the size of s inside a stored JSON string, without the
// quotes. Quotes, backslashes and control characters grow when escaped.
func EncodedLen(s string) int {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return buf.Len() - len("\"\"\n")
}

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// NewValidationError returns a *ValidationError with a single field error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: message}}}
}

// ValidateContent checks a comment body after trimming surrounding whitespace.
// The size is measured as stored, so escaped characters count in full.
// maxBytes <= 0 disables the size check.
func ValidateContent(content string, maxBytes int) error {
	var ve ValidationError

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "content", Message: "is required"})
	} else if maxBytes > 0 {
		if n := EncodedLen(trimmed); n > maxBytes {
			ve.Errors = append(ve.Errors, FieldError{
				Field:   "content",
				Message: fmt.Sprintf("must be %d bytes or fewer as stored, got %d", maxBytes, n),
			})
		}
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
