package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/edgeflare/pgbase/pkg/httputil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	t.Run("should generate a new request ID if none exists", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID, ok := httputil.RequestID(r)
			assert.True(t, ok)
			_, err := uuid.Parse(reqID)
			assert.NoError(t, err, "Request ID should be a valid UUID")
		})

		reqIDMiddleware := RequestID(handler)

		req := httptest.NewRequest("GET", "http://example.com/products", nil)
		w := httptest.NewRecorder()

		reqIDMiddleware.ServeHTTP(w, req)

		resp := w.Result()
		reqID := resp.Header.Get(RequestIDHeader)
		_, err := uuid.Parse(reqID)
		assert.NoError(t, err, "Response header X-Request-Id should be a valid UUID")
	})

	t.Run("should preserve existing request ID", func(t *testing.T) {
		existingReqID := uuid.New().String()

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID, _ := httputil.RequestID(r)
			assert.Equal(t, existingReqID, reqID, "Request ID should match the existing ID")
		})

		reqIDMiddleware := RequestID(handler)

		ctx := context.WithValue(context.Background(), httputil.RequestIDCtxKey, existingReqID)
		req := httptest.NewRequest("GET", "http://example.com/products", nil).WithContext(ctx)
		w := httptest.NewRecorder()

		reqIDMiddleware.ServeHTTP(w, req)

		resp := w.Result()
		assert.Equal(t, existingReqID, resp.Header.Get(RequestIDHeader))
	})

	t.Run("should handle multiple requests independently", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID, _ := httputil.RequestID(r)
			w.Write([]byte(reqID))
		})

		reqIDMiddleware := RequestID(handler)

		seen := make(map[string]bool)
		for range 3 {
			req := httptest.NewRequest("GET", "http://example.com/products", nil)
			w := httptest.NewRecorder()
			reqIDMiddleware.ServeHTTP(w, req)
			seen[w.Body.String()] = true
		}
		assert.Len(t, seen, 3, "each request should get a distinct ID")
	})
}
