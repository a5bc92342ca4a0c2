package auth

import (
	"errors"
	"net/http"

	"github.com/edgeflare/pgbase/pkg/httputil"
	"github.com/edgeflare/pgbase/pkg/metrics"
	"go.uber.org/zap"
)

// Handler exposes the auth wire surface:
//
//	POST /auth/signup
//	POST /auth/signin
//	POST /auth/token?grant_type=refresh_token
//	POST /auth/logout
//	GET  /auth/user
//	PUT  /auth/user
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes mounts the auth endpoints on r under /auth.
func (h *Handler) RegisterRoutes(r *httputil.Router) {
	grp := r.Group("/auth")
	grp.HandleFunc("POST /signup", h.signUp)
	grp.HandleFunc("POST /signin", h.signIn)
	grp.HandleFunc("POST /token", h.token)
	grp.HandleFunc("POST /logout", h.logout)
	grp.HandleFunc("GET /user", h.getUser)
	grp.HandleFunc("PUT /user", h.updateUser)
}

type credentialsRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data"`
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httputil.BindOrError(r, w, &req); err != nil {
		return
	}

	resp, err := h.svc.SignUp(r.Context(), req.Email, req.Password, req.Data)
	metrics.AuthEvents.WithLabelValues("signup", outcome(err)).Inc()
	if err != nil {
		httputil.WriteError(w, mapAuthError(err))
		return
	}
	httputil.JSON(w, http.StatusOK, resp)
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httputil.BindOrError(r, w, &req); err != nil {
		return
	}

	resp, err := h.svc.SignIn(r.Context(), req.Email, req.Password)
	metrics.AuthEvents.WithLabelValues("signin", outcome(err)).Inc()
	if err != nil {
		httputil.WriteError(w, mapAuthError(err))
		return
	}
	httputil.JSON(w, http.StatusOK, resp)
}

func (h *Handler) token(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("grant_type") != "refresh_token" {
		httputil.WriteError(w, httputil.NewAPIError(http.StatusBadRequest,
			"unsupported_grant_type", "grant_type must be refresh_token"))
		return
	}

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := httputil.BindOrError(r, w, &req); err != nil {
		return
	}

	resp, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	metrics.AuthEvents.WithLabelValues("refresh", outcome(err)).Inc()
	if err != nil {
		httputil.WriteError(w, mapAuthError(err))
		return
	}
	httputil.JSON(w, http.StatusOK, resp)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token := httputil.BearerToken(r.Header)
	if token == "" {
		httputil.WriteError(w, mapAuthError(ErrUnauthenticated))
		return
	}
	err := h.svc.SignOut(r.Context(), token)
	metrics.AuthEvents.WithLabelValues("signout", outcome(err)).Inc()
	if err != nil {
		h.logger.Warn("signout failed", zap.Error(err))
		httputil.WriteError(w, httputil.NewAPIError(http.StatusInternalServerError,
			"internal_error", "failed to sign out"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	token := httputil.BearerToken(r.Header)
	user, err := h.svc.UserFromAccessToken(r.Context(), token)
	if err != nil {
		httputil.WriteError(w, mapAuthError(err))
		return
	}
	httputil.JSON(w, http.StatusOK, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	token := httputil.BearerToken(r.Header)

	var upd UserUpdate
	if err := httputil.BindOrError(r, w, &upd); err != nil {
		return
	}

	user, err := h.svc.UpdateUser(r.Context(), token, upd)
	if err != nil {
		httputil.WriteError(w, mapAuthError(err))
		return
	}
	httputil.JSON(w, http.StatusOK, user)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// mapAuthError translates service errors to the JSON error envelope. Credential
// failures share one message, so responses never reveal whether an email exists.
func mapAuthError(err error) *httputil.APIError {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return httputil.NewAPIError(http.StatusUnauthorized, "auth_invalid_credentials", ErrInvalidCredentials.Error())
	case errors.Is(err, ErrInvalidRefreshToken):
		return httputil.NewAPIError(http.StatusUnauthorized, "auth_invalid_refresh_token", "invalid refresh token")
	case errors.Is(err, ErrUnauthenticated):
		return httputil.NewAPIError(http.StatusUnauthorized, "auth_unauthenticated", "not authenticated")
	case errors.Is(err, ErrWeakPassword):
		return httputil.NewAPIError(http.StatusUnprocessableEntity, "auth_weak_password", ErrWeakPassword.Error())
	case errors.Is(err, ErrInvalidEmail):
		return httputil.NewAPIError(http.StatusUnprocessableEntity, "auth_invalid_email", ErrInvalidEmail.Error())
	case errors.Is(err, ErrEmailTaken):
		return httputil.NewAPIError(http.StatusConflict, "auth_email_taken", "a user with this email address has already been registered")
	default:
		return httputil.NewAPIError(http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
