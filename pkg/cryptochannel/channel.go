package cryptochannel

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
)

const nonceSize = 12

// ErrDecryptionFailed is returned on AEAD tag mismatch, a truncated
// record, or any other malformed ciphertext. It is fatal to the
// session.
var ErrDecryptionFailed = errors.New("cryptochannel: decryption failed")

// Channel wraps an AES-256-GCM AEAD keyed on SHA-256 of the X25519
// shared secret. Every record is nonce(12) || ciphertext || tag(16),
// with a fresh cryptographically random nonce drawn per encryption.
type Channel struct {
	aead cipher.AEAD
}

// NewChannel derives the AEAD key from sharedSecret and builds the
// channel used for the remainder of the connection.
func NewChannel(sharedSecret []byte) (*Channel, error) {
	key := sha256.Sum256(sharedSecret)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptochannel: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptochannel: new GCM: %w", err)
	}
	return &Channel{aead: aead}, nil
}

// Encrypt seals plaintext and prefixes the result with a fresh random
// nonce. Two calls with the same plaintext never produce the same
// record.
func (c *Channel) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("cryptochannel: generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, sealed...), nil
}

// Decrypt opens a record produced by Encrypt (on either side of the
// channel, since both derive the same key).
func (c *Channel) Decrypt(record []byte) ([]byte, error) {
	if len(record) < nonceSize {
		return nil, fmt.Errorf("%w: record too short (%d bytes)", ErrDecryptionFailed, len(record))
	}
	nonce, ciphertext := record[:nonceSize], record[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}
