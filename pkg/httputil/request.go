package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/getmockd/odatad/pkg/entity"
)

// ErrBodyTooLarge is returned by ReadJSONObject when the body exceeds the
// configured limit.
var ErrBodyTooLarge = errors.New("request body too large")

// ReadJSONObject decodes the request body as a single JSON object, keeping
// numbers as json.Number. A body larger than maxBytes yields ErrBodyTooLarge;
// any other malformed body yields an *entity.ValidationError.
func ReadJSONObject(w http.ResponseWriter, r *http.Request, maxBytes int64) (map[string]any, error) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, classifyDecodeError(err)
	}
	if body == nil {
		return nil, &entity.ValidationError{Message: "request body must be a JSON object"}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, &entity.ValidationError{Message: "request body must contain a single JSON object"}
		}
		return nil, classifyDecodeError(err)
	}
	return body, nil
}

func classifyDecodeError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, tooLarge.Limit)
	}
	if errors.Is(err, io.EOF) {
		return &entity.ValidationError{Message: "request body is empty"}
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &entity.ValidationError{Message: "request body must be a JSON object"}
	}
	return &entity.ValidationError{Message: fmt.Sprintf("invalid JSON: %v", err)}
}
