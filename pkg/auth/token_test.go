package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintAndDecodeAccessToken(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	user := &User{ID: "user-1", Email: "anne@example.com"}

	token, expiresAt, err := tm.MintAccess(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := tm.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, string(RoleAuthenticated), claims.Role)
	assert.Equal(t, "anne@example.com", claims.Email)
	assert.NotEmpty(t, claims.ID)
}

func TestDecodeRejectsForeignSignature(t *testing.T) {
	token, _, err := NewTokenManager("secret-a", time.Hour).MintAccess(&User{ID: "user-1"})
	require.NoError(t, err)

	_, err = NewTokenManager("secret-b", time.Hour).Decode(token)
	assert.Error(t, err)
}

func TestDecodeRejectsExpired(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	key, err := tm.MintAPIKey(RoleAnon, -time.Minute)
	require.NoError(t, err)

	_, err = tm.Decode(key)
	assert.Error(t, err)
}

func TestMintAPIKeyCarriesRoleOnly(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	key, err := tm.MintAPIKey(RoleServiceRole, 24*time.Hour)
	require.NoError(t, err)

	claims, err := tm.Decode(key)
	require.NoError(t, err)
	assert.Equal(t, string(RoleServiceRole), claims.Role)
	assert.Empty(t, claims.Subject)
}
