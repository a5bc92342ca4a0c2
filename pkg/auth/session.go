package auth

import (
	"net/http"
	"strings"

	"github.com/edgeflare/pgbase/pkg/httputil"
	"go.uber.org/zap"
)

// Role is the access level a request operates under. service_role bypasses
// row-level enforcement entirely; anon and authenticated are always subject
// to it.
type Role string

const (
	RoleAnon          Role = "anon"
	RoleAuthenticated Role = "authenticated"
	RoleServiceRole   Role = "service_role"
)

// SessionContext is the resolved per-request security context. It is built
// fresh from headers on every request and never persisted.
type SessionContext struct {
	Role   Role
	UserID string
	Claims map[string]any
}

// BypassesRLS reports whether row-level enforcement is skipped for this context.
func (sc SessionContext) BypassesRLS() bool {
	return sc.Role == RoleServiceRole
}

// Resolver derives a SessionContext from request headers. Resolution is total:
// missing or malformed credentials degrade to the anonymous role, decode
// failures are logged and never surface to the caller.
type Resolver struct {
	tokens *TokenManager
	logger *zap.Logger
}

func NewResolver(tokens *TokenManager, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{tokens: tokens, logger: logger}
}

// ResolveContext derives the session context for a request. The API key's
// role claim sets the default role; a valid bearer token with a non-empty
// subject upgrades it to authenticated.
func (r *Resolver) ResolveContext(h http.Header) SessionContext {
	sc := SessionContext{Role: RoleAnon}

	if apikey := httputil.FirstHeader(h, "apikey", "x-api-key"); apikey != "" {
		if claims, err := r.tokens.Decode(apikey); err != nil {
			r.logger.Debug("api key rejected", zap.Error(err))
		} else if role := Role(claims.Role); role == RoleAnon || role == RoleServiceRole {
			sc.Role = role
		}
	}

	bearer := httputil.BearerToken(h)
	if bearer == "" {
		return sc
	}

	// A bearer token only upgrades the role when it is a well-formed JWT with
	// a subject; anything else leaves the API-key-derived role in place.
	if strings.Count(bearer, ".") != 2 {
		r.logger.Debug("bearer token is not a three-part JWT")
		return sc
	}

	claims, err := r.tokens.Decode(bearer)
	if err != nil {
		r.logger.Debug("bearer token rejected", zap.Error(err))
		return sc
	}
	if claims.Subject == "" {
		r.logger.Debug("bearer token missing sub claim")
		return sc
	}

	sc.Role = RoleAuthenticated
	sc.UserID = claims.Subject
	sc.Claims = map[string]any{
		"sub":   claims.Subject,
		"role":  claims.Role,
		"email": claims.Email,
	}
	return sc
}

// Resolve implements the session middleware's resolver interface.
func (r *Resolver) Resolve(h http.Header) any {
	return r.ResolveContext(h)
}

// FromRequest returns the SessionContext stored by the session middleware,
// or an anonymous context when none was resolved.
func FromRequest(req *http.Request) SessionContext {
	if v, ok := httputil.Session(req); ok {
		if sc, ok := v.(SessionContext); ok {
			return sc
		}
	}
	return SessionContext{Role: RoleAnon}
}
