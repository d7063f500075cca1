// Package httputil provides shared HTTP utilities for consistent request and
// response handling.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/getmockd/odatad/pkg/entity"
)

// ContentTypeJSON is the media type of every JSON response.
const ContentTypeJSON = "application/json; odata.metadata=minimal"

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// ErrorDetail is the body of an error response, wrapped as {"error": ...}.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Target  string `json:"target,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

// ErrorResponse is the envelope of every error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// WriteError writes an error response with the given status code.
func WriteError(w http.ResponseWriter, status int, detail ErrorDetail) {
	WriteJSON(w, status, ErrorResponse{Error: detail})
}

// WriteDomainError writes err with the status code it carries, or 500 when
// it carries none.
func WriteDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var sc entity.StatusCodeError
	if errors.As(err, &sc) {
		status = sc.StatusCode()
	}
	WriteError(w, status, ErrorDetailFrom(status, err))
}

// ErrorDetailFrom builds the error body for err. A 5xx status replaces the
// message with a generic one so internal details do not leak.
func ErrorDetailFrom(status int, err error) ErrorDetail {
	detail := ErrorDetail{Code: entity.CodeOf(err).String(), Message: err.Error()}
	if status >= http.StatusInternalServerError {
		detail.Message = "internal server error"
		return detail
	}
	var ve *entity.ValidationError
	if errors.As(err, &ve) {
		detail.Target = ve.Field
	}
	var he entity.HintError
	if errors.As(err, &he) {
		detail.Hint = he.Hint()
	}
	return detail
}

// WriteNoContent writes a 204 No Content response.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteMethodNotAllowed writes a 405 response listing the allowed methods.
func WriteMethodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	WriteError(w, http.StatusMethodNotAllowed, ErrorDetail{
		Code:    "MethodNotAllowed",
		Message: "method not allowed",
		Hint:    "Allowed methods: " + allow,
	})
}
