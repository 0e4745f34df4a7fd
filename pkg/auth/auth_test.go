package auth

import (
	"testing"
	"time"
)

func TestAccessCodeVerify(t *testing.T) {
	code, plaintext, err := GenerateAccessCode()
	if err != nil {
		t.Fatal(err)
	}
	if len(plaintext) != CodeLength {
		t.Fatalf("expected %d-digit code, got %q", CodeLength, plaintext)
	}
	if !code.Verify(plaintext) {
		t.Fatal("correct, unexpired code failed to verify")
	}
	if code.Verify("000000") {
		t.Fatal("wrong code verified")
	}
}

func TestAccessCodeExpiry(t *testing.T) {
	code := &AccessCode{
		hashed:    hashCode("314159"),
		createdAt: time.Now().Add(-time.Hour),
		expiresAt: time.Now().Add(-time.Minute),
	}
	if code.Verify("314159") {
		t.Fatal("expired code with correct value verified")
	}
}

func TestSessionTokenValidity(t *testing.T) {
	tok, err := GenerateSessionToken(time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(tok.Value) != SessionTokenLength {
		t.Fatalf("expected %d-char token, got %d", SessionTokenLength, len(tok.Value))
	}
	if !tok.IsValid() {
		t.Fatal("freshly minted token should be valid")
	}

	expired, err := GenerateSessionToken(-time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if expired.IsValid() {
		t.Fatal("token with negative validity should be expired")
	}
}
