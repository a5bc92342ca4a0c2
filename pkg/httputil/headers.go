package httputil

import (
	"net/http"
	"strings"
)

// FirstHeader returns the first non-empty value among the named headers.
// Lookups go through http.Header's canonical form, so callers never need to
// branch on header casing ("apikey" vs "Apikey", "authorization" vs
// "Authorization").
func FirstHeader(h http.Header, names ...string) string {
	for _, name := range names {
		if v := h.Get(name); v != "" {
			return v
		}
	}
	return ""
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header, tolerating any casing of the scheme. It returns "" when the header
// is absent or carries a different scheme.
func BearerToken(h http.Header) string {
	auth := FirstHeader(h, "Authorization")
	if auth == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[len("bearer "):])
}
