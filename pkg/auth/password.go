package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"unicode"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultHashIterations is the PBKDF2 iteration count for new credentials.
	DefaultHashIterations = 100_000
	// MinHashIterations guards against configs that would weaken stored hashes.
	MinHashIterations = 10_000

	saltLength = 16
	keyLength  = 32
)

// NewPasswordHash derives a PBKDF2-SHA256 hash for password with a fresh
// random salt. Hash and salt are returned hex-encoded for storage alongside
// the iteration count, so the parameters can be raised later without
// invalidating existing credentials.
func NewPasswordHash(password string, iterations int) (hash, salt string, err error) {
	if iterations < MinHashIterations {
		iterations = DefaultHashIterations
	}

	rawSalt := make([]byte, saltLength)
	if _, err := rand.Read(rawSalt); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(password), rawSalt, iterations, keyLength, sha256.New)
	return hex.EncodeToString(key), hex.EncodeToString(rawSalt), nil
}

// VerifyPassword re-derives the hash from the candidate password and the
// stored salt/iterations and compares in constant time.
func VerifyPassword(password, storedHash, storedSalt string, iterations int) bool {
	rawSalt, err := hex.DecodeString(storedSalt)
	if err != nil {
		return false
	}
	rawHash, err := hex.DecodeString(storedHash)
	if err != nil {
		return false
	}

	key := pbkdf2.Key([]byte(password), rawSalt, iterations, len(rawHash), sha256.New)
	return subtle.ConstantTimeCompare(key, rawHash) == 1
}

// validatePassword enforces the signup password policy: minimum length plus
// at least one letter and one digit.
func validatePassword(password string, minLength int) error {
	if minLength <= 0 {
		minLength = 8
	}
	if len(password) < minLength {
		return ErrWeakPassword
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return ErrWeakPassword
	}
	return nil
}
