package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/odatad/pkg/entity"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	t.Run("writes JSON with correct content type", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()

		WriteJSON(rec, http.StatusOK, map[string]string{"foo": "bar"})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, ContentTypeJSON, rec.Header().Get("Content-Type"))

		var result map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, "bar", result["foo"])
	})

	t.Run("handles nil data", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()

		WriteJSON(rec, http.StatusOK, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.String())
	})
}

func TestWriteDomainError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantTarget string
	}{
		{"validation", entity.Invalidf("Amount", "must be a decimal"), http.StatusBadRequest, "InvalidInput", "Amount"},
		{"wrapped not found", fmt.Errorf("reading: %w", &entity.NotFoundError{Set: "Orders", Key: 9}), http.StatusNotFound, "NotFound", ""},
		{"conflict", &entity.ConflictError{Set: "Customers", Key: 1}, http.StatusConflict, "Conflict", ""},
		{"internal", errors.New("lock poisoned"), http.StatusInternalServerError, "Internal", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()

			WriteDomainError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			detail := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, detail.Code)
			assert.Equal(t, tt.wantTarget, detail.Target)
			if tt.wantStatus == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", detail.Message)
				assert.Empty(t, detail.Hint)
			} else {
				assert.NotEmpty(t, detail.Hint)
			}
		})
	}
}

func TestWriteMethodNotAllowed(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()

	WriteMethodNotAllowed(rec, "GET, POST")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, POST", rec.Header().Get("Allow"))
	assert.Equal(t, "MethodNotAllowed", decodeError(t, rec).Code)
}

func TestWriteNoContent(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()

	WriteNoContent(rec)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestReadJSONObject(t *testing.T) {
	t.Parallel()

	t.Run("keeps numbers exact", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/Orders", strings.NewReader(`{"Id":6,"Amount":0.10}`))

		body, err := ReadJSONObject(httptest.NewRecorder(), req, 1024)

		require.NoError(t, err)
		assert.Equal(t, json.Number("6"), body["Id"])
		assert.Equal(t, json.Number("0.10"), body["Amount"])
	})

	invalid := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"null", "null"},
		{"array", "[1,2]"},
		{"syntax", `{"Id":`},
		{"trailing object", `{} {}`},
		{"trailing garbage", `{} x`},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodPost, "/Orders", strings.NewReader(tt.body))

			_, err := ReadJSONObject(httptest.NewRecorder(), req, 1024)

			var ve *entity.ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}

	t.Run("too large", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/Orders", strings.NewReader(`{"Name":"`+strings.Repeat("x", 100)+`"}`))

		_, err := ReadJSONObject(httptest.NewRecorder(), req, 16)

		assert.ErrorIs(t, err, ErrBodyTooLarge)
	})
}
