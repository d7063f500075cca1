package validation

import (
	"fmt"

	"github.com/getmockd/odatad/pkg/entity"
)

// Violation codes, one per JSON Schema keyword family.
const (
	CodeRequired     = "required"
	CodeType         = "type"
	CodeFormat       = "format"
	CodeMin          = "min"
	CodeUnknownField = "unknown_field"
	CodeSchema       = "schema"
	CodeNotObject    = "not_object"
)

// Violation is one way a payload breaks its schema.
type Violation struct {
	// Field is the dotted path of the offending property, empty when the
	// payload as a whole is at fault.
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (v Violation) Error() string {
	if v.Field == "" {
		return v.Message
	}
	return v.Field + ": " + v.Message
}

// Result lists the violations found in one payload. The zero value passes.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
}

// OK reports whether the payload passed.
func (r *Result) OK() bool {
	return r == nil || len(r.Violations) == 0
}

func (r *Result) add(field, code, message string) {
	r.Violations = append(r.Violations, Violation{Field: field, Code: code, Message: message})
}

// Err folds the violations into one *entity.ValidationError naming the
// first offending field, or returns nil when the payload passed.
func (r *Result) Err() error {
	if r.OK() {
		return nil
	}
	first := r.Violations[0]
	msg := first.Message
	if n := len(r.Violations); n > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, n-1)
	}
	return &entity.ValidationError{Field: first.Field, Message: msg}
}
