package cryptochannel

import (
	"bytes"
	"errors"
	"testing"
)

func agree(t *testing.T) (*Channel, *Channel) {
	t.Helper()
	a, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	b, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	aSecret, err := a.ComputeSharedSecret(b.PublicKey())
	if err != nil {
		t.Fatal(err)
	}
	bSecret, err := b.ComputeSharedSecret(a.PublicKey())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(aSecret, bSecret) {
		t.Fatal("shared secrets diverge")
	}
	chA, err := NewChannel(aSecret)
	if err != nil {
		t.Fatal(err)
	}
	chB, err := NewChannel(bSecret)
	if err != nil {
		t.Fatal(err)
	}
	return chA, chB
}

func TestChannelRoundTrip(t *testing.T) {
	a, b := agree(t)
	plaintext := []byte("screen frame payload")

	record, err := a.Encrypt(plaintext)
	if err != nil {
		t.Fatal(err)
	}
	got, err := b.Decrypt(record)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("got %q want %q", got, plaintext)
	}

	// and the reverse direction
	record2, err := b.Encrypt(plaintext)
	if err != nil {
		t.Fatal(err)
	}
	got2, err := a.Decrypt(record2)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got2, plaintext) {
		t.Fatalf("got %q want %q", got2, plaintext)
	}
}

func TestEncryptProducesDistinctCiphertexts(t *testing.T) {
	a, _ := agree(t)
	plaintext := []byte("same plaintext twice")

	r1, err := a.Encrypt(plaintext)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := a.Encrypt(plaintext)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(r1, r2) {
		t.Fatal("two encryptions of the same plaintext produced identical records")
	}
}

func TestDecryptRejectsTamperedRecord(t *testing.T) {
	a, b := agree(t)
	record, err := a.Encrypt([]byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	record[len(record)-1] ^= 0xFF
	if _, err := b.Decrypt(record); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestDecryptRejectsTruncatedRecord(t *testing.T) {
	_, b := agree(t)
	if _, err := b.Decrypt([]byte{1, 2, 3}); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
}
