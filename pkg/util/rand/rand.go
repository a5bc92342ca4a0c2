// Package rand generates cryptographically secure random material.
package rand

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

const passwordCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*()-_=+[]{}|;:,.<>?"

// NewPassword generates a random password of the given length, 16 when the
// length is omitted or not positive.
func NewPassword(length ...int) string {
	n := 16
	if len(length) > 0 && length[0] > 0 {
		n = length[0]
	}
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(passwordCharset))))
		if err != nil {
			panic(err)
		}
		b[i] = passwordCharset[idx.Int64()]
	}
	return string(b)
}

// NewSecret returns n random bytes hex-encoded. Used for ephemeral signing
// secrets in development.
func NewSecret(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
