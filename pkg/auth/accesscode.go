// Package auth implements the ephemeral AccessCode issued at host
// startup and the SessionToken handed to a successfully authenticated
// viewer.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"
)

const (
	// CodeLength is the number of decimal digits in an AccessCode.
	CodeLength = 6
	// CodeValidity is how long a generated AccessCode remains usable.
	CodeValidity = 300 * time.Second
)

// AccessCode is the one-shot shared secret a viewer presents during
// authentication. Only its hash is retained once generated.
type AccessCode struct {
	hashed    [32]byte
	createdAt time.Time
	expiresAt time.Time
}

// GenerateAccessCode produces a fresh 6-digit decimal code and returns
// both the AccessCode (for the host to hold) and the plaintext code
// (for the operator to read aloud / display, never stored).
func GenerateAccessCode() (*AccessCode, string, error) {
	code, err := randomDigits(CodeLength)
	if err != nil {
		return nil, "", fmt.Errorf("auth: generate access code: %w", err)
	}
	now := time.Now()
	return &AccessCode{
		hashed:    hashCode(code),
		createdAt: now,
		expiresAt: now.Add(CodeValidity),
	}, code, nil
}

// Verify reports whether code matches the original value AND the code
// has not expired. An expired code never verifies even with a correct
// value.
func (a *AccessCode) Verify(code string) bool {
	if a == nil {
		return false
	}
	if time.Now().After(a.expiresAt) {
		return false
	}
	candidate := hashCode(code)
	return subtle.ConstantTimeCompare(candidate[:], a.hashed[:]) == 1
}

// ExpiresAt returns when this code stops being usable.
func (a *AccessCode) ExpiresAt() time.Time { return a.expiresAt }

func hashCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}

func randomDigits(n int) (string, error) {
	digits := make([]byte, n)
	max := big.NewInt(10)
	for i := range digits {
		d, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		digits[i] = '0' + byte(d.Int64())
	}
	return string(digits), nil
}
