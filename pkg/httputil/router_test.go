package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewRouter(t *testing.T) {
	r := NewRouter()
	if r == nil {
		t.Fatal("expected router to be non-nil")
	}
}

func TestRouterHandle(t *testing.T) {
	r := NewRouter()
	r.Handle("GET /test", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("expected status OK, got %v", w.Result().StatusCode)
	}
}

func TestRouterMethodMismatch(t *testing.T) {
	r := NewRouter()
	r.Handle("GET /test", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("DELETE", "/test", nil)
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %v", w.Result().StatusCode)
	}
}

func TestRouterMiddleware(t *testing.T) {
	r := NewRouter()

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("X-Test", "true")
			next.ServeHTTP(w, req)
		})
	})

	r.Handle("GET /test", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)

	if w.Header().Get("X-Test") != "true" {
		t.Errorf("expected X-Test header to be set")
	}
}

func TestRouterGroup(t *testing.T) {
	r := NewRouter()
	api := r.Group("/auth")
	api.Handle("POST /v1/token", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/auth/v1/token", nil)
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("expected status OK, got %v", w.Result().StatusCode)
	}
}

func TestRouterWildcardPrecedence(t *testing.T) {
	r := NewRouter()
	r.Handle("GET /rpc/{function}", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("rpc:" + req.PathValue("function")))
	}))
	r.Handle("GET /{table}", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("table:" + req.PathValue("table")))
	}))

	// The literal /rpc segment must win over the single-segment wildcard.
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/rpc/search", nil))
	if got := w.Body.String(); got != "rpc:search" {
		t.Errorf("expected rpc route, got %q", got)
	}

	w = httptest.NewRecorder()
	r.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/products", nil))
	if got := w.Body.String(); got != "table:products" {
		t.Errorf("expected table route, got %q", got)
	}
}
