package httputil

import (
	"context"
	"net/http"
)

type ContextKey string

const (
	RequestIDCtxKey ContextKey = "RequestID"
	LogEntryCtxKey  ContextKey = "LogEntry"
	SessionCtxKey   ContextKey = "Session"
)

// WithSession stores the resolved per-request session value in ctx.
func WithSession(ctx context.Context, session any) context.Context {
	return context.WithValue(ctx, SessionCtxKey, session)
}

// Session retrieves the session value stored by the session middleware.
// The caller asserts the concrete type.
func Session(r *http.Request) (any, bool) {
	v := r.Context().Value(SessionCtxKey)
	if v == nil {
		return nil, false
	}
	return v, true
}

// RequestID returns the request ID set by the request-id middleware, if any.
func RequestID(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(RequestIDCtxKey).(string)
	return id, ok
}
