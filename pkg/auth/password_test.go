package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, salt, err := NewPasswordHash("correct horse 1", MinHashIterations)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEmpty(t, salt)

	assert.True(t, VerifyPassword("correct horse 1", hash, salt, MinHashIterations))
	assert.False(t, VerifyPassword("wrong horse 1", hash, salt, MinHashIterations))
	// iteration count is part of the derivation
	assert.False(t, VerifyPassword("correct horse 1", hash, salt, MinHashIterations*2))
}

func TestPasswordHashFreshSaltPerCall(t *testing.T) {
	hash1, salt1, err := NewPasswordHash("pa55word!", MinHashIterations)
	require.NoError(t, err)
	hash2, salt2, err := NewPasswordHash("pa55word!", MinHashIterations)
	require.NoError(t, err)

	assert.NotEqual(t, salt1, salt2)
	assert.NotEqual(t, hash1, hash2)
}

func TestValidatePassword(t *testing.T) {
	testCases := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"accepts letters and digits", "abcdef12", false},
		{"too short", "ab1", true},
		{"no digit", "abcdefgh", true},
		{"no letter", "12345678", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validatePassword(tc.password, 8)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrWeakPassword)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
