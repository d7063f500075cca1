package entity

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is a machine-readable classification of an engine error.
type ErrorCode string

const (
	CodeInvalidInput ErrorCode = "InvalidInput"
	CodeConflict     ErrorCode = "Conflict"
	CodeNotFound     ErrorCode = "NotFound"
	CodeInternal     ErrorCode = "Internal"
)

// String returns the code as a string.
func (c ErrorCode) String() string {
	return string(c)
}

// NotFoundError is returned when an entity set or a key does not resolve.
type NotFoundError struct {
	Set string
	// Key is zero when the set itself is unknown.
	Key int64
}

func (e *NotFoundError) Error() string {
	if e.Key != 0 {
		return fmt.Sprintf("%s(%d) not found", e.Set, e.Key)
	}
	return fmt.Sprintf("entity set %q not found", e.Set)
}

// StatusCode returns the HTTP status code for this error.
func (e *NotFoundError) StatusCode() int {
	return http.StatusNotFound
}

// Hint returns a user-friendly suggestion for resolving this error.
func (e *NotFoundError) Hint() string {
	if e.Key != 0 {
		return fmt.Sprintf("Check that key %d exists. Use GET /%s to list available entities.", e.Key, e.Set)
	}
	return "Available entity sets are listed in GET /$metadata."
}

// ConflictError is returned when an entity with the same key already exists.
type ConflictError struct {
	Set string
	Key int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s(%d) already exists", e.Set, e.Key)
}

// StatusCode returns the HTTP status code for this error.
func (e *ConflictError) StatusCode() int {
	return http.StatusConflict
}

// Hint returns a user-friendly suggestion for resolving this error.
func (e *ConflictError) Hint() string {
	return fmt.Sprintf("An entity with Id %d already exists. Use PUT or PATCH to update it, or choose another Id.", e.Key)
}

// ValidationError is returned for malformed or missing input: a bad payload,
// an unset key, an unresolvable reference or an invalid query.
type ValidationError struct {
	Message string
	Field   string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid value for %q: %s", e.Field, e.Message)
	}
	return e.Message
}

// StatusCode returns the HTTP status code for this error.
func (e *ValidationError) StatusCode() int {
	return http.StatusBadRequest
}

// Hint returns a user-friendly suggestion for resolving this error.
func (e *ValidationError) Hint() string {
	if e.Field != "" {
		return fmt.Sprintf("Check the value of %q.", e.Field)
	}
	return "Check the request body and query options."
}

// Invalidf builds a ValidationError for a field with a formatted message.
func Invalidf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// StatusCodeError is an error that carries an HTTP status code.
type StatusCodeError interface {
	error
	StatusCode() int
}

// HintError is an error that carries a resolution hint.
type HintError interface {
	error
	Hint() string
}

// CodeOf classifies err, unwrapping as needed.
func CodeOf(err error) ErrorCode {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return CodeNotFound
	}
	var cf *ConflictError
	if errors.As(err, &cf) {
		return CodeConflict
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return CodeInvalidInput
	}
	return CodeInternal
}
