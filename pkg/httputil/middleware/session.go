package middleware

import (
	"net/http"

	"github.com/edgeflare/pgbase/pkg/httputil"
)

// SessionResolver derives a per-request session value from request headers.
// It must not fail: absent or malformed credentials resolve to an anonymous
// session rather than an error.
type SessionResolver interface {
	Resolve(h http.Header) any
}

// Session resolves the request's security context once, at the pipeline
// boundary, and stores it in the request context for every downstream handler.
func Session(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := httputil.WithSession(r.Context(), resolver.Resolve(r.Header))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
