package auth

import (
	"crypto/rand"
	"fmt"
	"time"
)

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// SessionTokenLength is the number of alphanumeric characters in a
// generated SessionToken.
const SessionTokenLength = 32

// SessionToken is the opaque bearer token handed to a viewer on
// successful authentication.
type SessionToken struct {
	Value     string
	createdAt time.Time
	expiresAt time.Time
}

// GenerateSessionToken creates a fresh token valid for the given
// duration from now.
func GenerateSessionToken(validity time.Duration) (*SessionToken, error) {
	value, err := randomAlphanumeric(SessionTokenLength)
	if err != nil {
		return nil, fmt.Errorf("auth: generate session token: %w", err)
	}
	now := time.Now()
	return &SessionToken{
		Value:     value,
		createdAt: now,
		expiresAt: now.Add(validity),
	}, nil
}

// IsValid reports whether the token has not yet expired.
func (s *SessionToken) IsValid() bool {
	return s != nil && time.Now().Before(s.expiresAt)
}

// ExpiresAt returns the token's expiry time.
func (s *SessionToken) ExpiresAt() time.Time { return s.expiresAt }

func randomAlphanumeric(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range raw {
		out[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(out), nil
}
