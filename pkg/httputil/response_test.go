package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteErrorEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	err := NewAPIError(http.StatusBadRequest, "invalid_filter", "unknown operator").
		WithHint("see the list of supported operators")
	WriteError(w, err)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"code":"invalid_filter","message":"unknown operator","hint":"see the list of supported operators"}`, w.Body.String())
}

func TestWriteErrorOpaqueInternal(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, errors.New("pq: connection reset"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"code":"internal_error","message":"internal server error"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestAPIErrorWithDetailsDoesNotMutate(t *testing.T) {
	base := NewAPIError(http.StatusConflict, "constraint_violation", "duplicate key")
	derived := base.WithDetails("products_name_key")

	assert.Empty(t, base.Details)
	assert.Equal(t, "products_name_key", derived.Details)
	assert.Equal(t, base.Status, derived.Status)
}

func TestFirstHeader(t *testing.T) {
	h := http.Header{}
	h.Set("apikey", "anon")

	assert.Equal(t, "anon", FirstHeader(h, "Authorization", "apikey"))
	assert.Equal(t, "", FirstHeader(h, "Authorization"))
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"standard scheme", "Bearer abc.def.ghi", "abc.def.ghi"},
		{"lowercase scheme", "bearer abc.def.ghi", "abc.def.ghi"},
		{"basic scheme ignored", "Basic dXNlcjpwYXNz", ""},
		{"absent", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.value != "" {
				h.Set("Authorization", tt.value)
			}
			assert.Equal(t, tt.want, BearerToken(h))
		})
	}
}
