package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the JWT payload minted for access tokens and API keys.
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager mints and decodes HS256 JWTs: short-lived access tokens tied
// to a user, and long-lived role-claim API keys (anon / service_role).
type TokenManager struct {
	secret    []byte
	accessTTL time.Duration
}

func NewTokenManager(secret string, accessTTL time.Duration) *TokenManager {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	return &TokenManager{secret: []byte(secret), accessTTL: accessTTL}
}

// AccessTTL returns the lifetime applied to minted access tokens.
func (tm *TokenManager) AccessTTL() time.Duration {
	return tm.accessTTL
}

// MintAccess issues an access token for u carrying the authenticated role.
func (tm *TokenManager) MintAccess(u *User) (token string, expiresAt time.Time, err error) {
	now := time.Now()
	expiresAt = now.Add(tm.accessTTL)

	claims := Claims{
		Role:  string(RoleAuthenticated),
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return token, expiresAt, nil
}

// MintAPIKey issues a long-lived key whose only purpose is carrying a role
// claim (anon or service_role) to the session resolver.
func (tm *TokenManager) MintAPIKey(role Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	key, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("sign api key: %w", err)
	}
	return key, nil
}

// Decode verifies signature and expiry and returns the token's claims.
func (tm *TokenManager) Decode(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
