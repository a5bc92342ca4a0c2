package auth

import (
	"context"
	"errors"
	"maps"
	"strings"
	"sync"
	"time"
)

var (
	ErrEmailTaken          = errors.New("email already registered")
	ErrUserNotFound        = errors.New("user not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// User is the persisted account record. Credential material never serializes
// into API responses.
type User struct {
	ID             string         `json:"id"`
	Email          string         `json:"email"`
	PasswordHash   string         `json:"-"`
	PasswordSalt   string         `json:"-"`
	HashIterations int            `json:"-"`
	Metadata       map[string]any `json:"user_metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Session binds an access token to its refresh token and owner. Each refresh
// supersedes the session entirely: the prior access token stops validating.
type Session struct {
	AccessToken  string
	RefreshToken string
	UserID       string
	ExpiresAt    time.Time
}

// Store is the injected persistence boundary for users and sessions.
// Implementations must enforce email uniqueness themselves (unique constraint
// or equivalent) so concurrent signups cannot both pass a check-then-act
// sequence, and must make RotateSession an atomic swap keyed on the refresh
// token's current validity.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	UserByEmail(ctx context.Context, email string) (*User, error)
	UserByID(ctx context.Context, id string) (*User, error)
	UpdateUser(ctx context.Context, u *User) error

	CreateSession(ctx context.Context, s *Session) error
	SessionByAccessToken(ctx context.Context, token string) (*Session, error)
	SessionByRefreshToken(ctx context.Context, token string) (*Session, error)
	// RotateSession atomically invalidates the session owning refreshToken and
	// installs next. It returns ErrInvalidRefreshToken when refreshToken is no
	// longer live, so of two concurrent refreshes exactly one wins.
	RotateSession(ctx context.Context, refreshToken string, next *Session) error
	// DeleteSessionByAccessToken removes the session and its refresh token.
	// Deleting an already-removed session is not an error.
	DeleteSessionByAccessToken(ctx context.Context, token string) error
}

// MemoryStore is a mutex-guarded in-memory Store used in tests and dev mode.
type MemoryStore struct {
	mu        sync.RWMutex
	byEmail   map[string]*User // key: lower-cased email
	byID      map[string]*User
	byAccess  map[string]*Session
	byRefresh map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byEmail:   make(map[string]*User),
		byID:      make(map[string]*User),
		byAccess:  make(map[string]*Session),
		byRefresh: make(map[string]*Session),
	}
}

func (m *MemoryStore) CreateUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(u.Email)
	if _, exists := m.byEmail[key]; exists {
		return ErrEmailTaken
	}

	clone := cloneUser(u)
	m.byEmail[key] = clone
	m.byID[u.ID] = clone
	return nil
}

func (m *MemoryStore) UserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (m *MemoryStore) UserByID(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (m *MemoryStore) UpdateUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.byID[u.ID]
	if !ok {
		return ErrUserNotFound
	}

	newKey := strings.ToLower(u.Email)
	oldKey := strings.ToLower(prev.Email)
	if newKey != oldKey {
		if _, exists := m.byEmail[newKey]; exists {
			return ErrEmailTaken
		}
		delete(m.byEmail, oldKey)
	}

	clone := cloneUser(u)
	m.byEmail[newKey] = clone
	m.byID[u.ID] = clone
	return nil
}

func (m *MemoryStore) CreateSession(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *s
	m.byAccess[s.AccessToken] = &clone
	m.byRefresh[s.RefreshToken] = &clone
	return nil
}

func (m *MemoryStore) SessionByAccessToken(_ context.Context, token string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.byAccess[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	clone := *s
	return &clone, nil
}

func (m *MemoryStore) SessionByRefreshToken(_ context.Context, token string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.byRefresh[token]
	if !ok {
		return nil, ErrInvalidRefreshToken
	}
	clone := *s
	return &clone, nil
}

func (m *MemoryStore) RotateSession(_ context.Context, refreshToken string, next *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.byRefresh[refreshToken]
	if !ok {
		return ErrInvalidRefreshToken
	}

	delete(m.byRefresh, old.RefreshToken)
	delete(m.byAccess, old.AccessToken)

	clone := *next
	m.byAccess[next.AccessToken] = &clone
	m.byRefresh[next.RefreshToken] = &clone
	return nil
}

func (m *MemoryStore) DeleteSessionByAccessToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.byAccess[token]; ok {
		delete(m.byRefresh, s.RefreshToken)
		delete(m.byAccess, token)
	}
	return nil
}

func cloneUser(u *User) *User {
	clone := *u
	if u.Metadata != nil {
		clone.Metadata = maps.Clone(u.Metadata)
	}
	return &clone
}
