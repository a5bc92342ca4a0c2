package auth

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrInvalidCredentials is returned for both unknown-email and
	// wrong-password sign-ins so callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrWeakPassword       = errors.New("password must be at least 8 characters and contain a letter and a digit")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrUnauthenticated    = errors.New("not authenticated")
)

// dummyHash keeps sign-in timing comparable when the email does not exist.
const dummyHash = "0000000000000000000000000000000000000000000000000000000000000000"

// ServiceConfig tunes the auth service's policies.
type ServiceConfig struct {
	PasswordMinLength int
	HashIterations    int
}

// Service implements signup, signin, refresh rotation, signout and profile
// updates on top of an injected Store and the token primitives.
type Service struct {
	store   Store
	tokens  *TokenManager
	logger  *zap.Logger
	minLen  int
	hashIts int
}

func NewService(store Store, tokens *TokenManager, logger *zap.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	minLen := cfg.PasswordMinLength
	if minLen <= 0 {
		minLen = 8
	}
	hashIts := cfg.HashIterations
	if hashIts < MinHashIterations {
		hashIts = DefaultHashIterations
	}
	return &Service{store: store, tokens: tokens, logger: logger, minLen: minLen, hashIts: hashIts}
}

// TokenResponse is the wire shape returned by signup, signin and refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	User         *User  `json:"user"`
}

// SignUp validates the password policy and email, rejects duplicates, and on
// success persists the user and mints an initial session.
func (s *Service) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*TokenResponse, error) {
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") || len(email) < 3 {
		return nil, ErrInvalidEmail
	}
	if err := validatePassword(password, s.minLen); err != nil {
		return nil, err
	}

	// Cheap pre-check before the expensive hash; the store's unique constraint
	// still decides races.
	if _, err := s.store.UserByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	}

	hash, salt, err := NewPasswordHash(password, s.hashIts)
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:             uuid.NewString(),
		Email:          email,
		PasswordHash:   hash,
		PasswordSalt:   salt,
		HashIterations: s.hashIts,
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user signed up", zap.String("user_id", user.ID))
	return s.mintSession(ctx, user)
}

// SignIn verifies credentials and mints a new session. The error for an
// unknown email and a wrong password is identical.
func (s *Service) SignIn(ctx context.Context, email, password string) (*TokenResponse, error) {
	user, err := s.store.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		// Burn comparable time so the response does not reveal whether the
		// email exists.
		VerifyPassword(password, dummyHash, dummyHash, DefaultHashIterations)
		return nil, ErrInvalidCredentials
	}

	if !VerifyPassword(password, user.PasswordHash, user.PasswordSalt, user.HashIterations) {
		return nil, ErrInvalidCredentials
	}

	return s.mintSession(ctx, user)
}

// Refresh rotates a refresh token: the old session is atomically invalidated
// and a brand-new one installed. A reused or unknown token fails with
// ErrInvalidRefreshToken.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	old, err := s.store.SessionByRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.store.UserByID(ctx, old.UserID)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	access, expiresAt, err := s.tokens.MintAccess(user)
	if err != nil {
		return nil, err
	}
	next := &Session{
		AccessToken:  access,
		RefreshToken: uuid.NewString(),
		UserID:       user.ID,
		ExpiresAt:    expiresAt,
	}

	if err := s.store.RotateSession(ctx, refreshToken, next); err != nil {
		return nil, err
	}

	return s.tokenResponse(next, user), nil
}

// SignOut removes the session owning accessToken together with its refresh
// token. Signing out twice is not an error.
func (s *Service) SignOut(ctx context.Context, accessToken string) error {
	return s.store.DeleteSessionByAccessToken(ctx, accessToken)
}

// UserFromAccessToken validates the token cryptographically, then checks a
// live, unexpired session still backs it. A rotated or signed-out token stops
// validating immediately even before its JWT expiry.
func (s *Service) UserFromAccessToken(ctx context.Context, accessToken string) (*User, error) {
	claims, err := s.tokens.Decode(accessToken)
	if err != nil || claims.Subject == "" {
		return nil, ErrUnauthenticated
	}

	sess, err := s.store.SessionByAccessToken(ctx, accessToken)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	if time.Now().After(sess.ExpiresAt) {
		return nil, ErrUnauthenticated
	}

	user, err := s.store.UserByID(ctx, sess.UserID)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

// UserUpdate carries the mutable profile fields. Nil fields are left alone;
// Metadata merges key-by-key into the existing map.
type UserUpdate struct {
	Email    *string        `json:"email"`
	Password *string        `json:"password"`
	Metadata map[string]any `json:"data"`
}

// UpdateUser applies upd to the token's owner. A password change re-hashes
// with a fresh salt at the service's current iteration count.
func (s *Service) UpdateUser(ctx context.Context, accessToken string, upd UserUpdate) (*User, error) {
	user, err := s.UserFromAccessToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	if upd.Email != nil {
		email := normalizeEmail(*upd.Email)
		if !strings.Contains(email, "@") || len(email) < 3 {
			return nil, ErrInvalidEmail
		}
		user.Email = email
	}

	if upd.Password != nil {
		if err := validatePassword(*upd.Password, s.minLen); err != nil {
			return nil, err
		}
		hash, salt, err := NewPasswordHash(*upd.Password, s.hashIts)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
		user.PasswordSalt = salt
		user.HashIterations = s.hashIts
	}

	if len(upd.Metadata) > 0 {
		if user.Metadata == nil {
			user.Metadata = make(map[string]any, len(upd.Metadata))
		}
		maps.Copy(user.Metadata, upd.Metadata)
	}

	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) mintSession(ctx context.Context, user *User) (*TokenResponse, error) {
	access, expiresAt, err := s.tokens.MintAccess(user)
	if err != nil {
		return nil, fmt.Errorf("mint session: %w", err)
	}

	sess := &Session{
		AccessToken:  access,
		RefreshToken: uuid.NewString(),
		UserID:       user.ID,
		ExpiresAt:    expiresAt,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	return s.tokenResponse(sess, user), nil
}

func (s *Service) tokenResponse(sess *Session, user *User) *TokenResponse {
	return &TokenResponse{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
		User:         user,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
