// Package cryptochannel implements the session's key agreement and
// per-record authenticated encryption: ephemeral X25519 followed by
// AES-256-GCM keyed on SHA-256 of the shared secret.
package cryptochannel

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"
)

// KeyPair is one side's ephemeral X25519 state. The private scalar is
// consumed exactly once by ComputeSharedSecret.
type KeyPair struct {
	private *ecdh.PrivateKey
}

// GenerateKeyPair creates a fresh ephemeral X25519 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cryptochannel: generate key pair: %w", err)
	}
	return &KeyPair{private: priv}, nil
}

// PublicKey returns the 32-byte public key to send on the wire.
func (k *KeyPair) PublicKey() [32]byte {
	var out [32]byte
	copy(out[:], k.private.PublicKey().Bytes())
	return out
}

// ComputeSharedSecret derives the X25519 shared secret with peerPublic.
func (k *KeyPair) ComputeSharedSecret(peerPublic [32]byte) ([]byte, error) {
	peerKey, err := ecdh.X25519().NewPublicKey(peerPublic[:])
	if err != nil {
		return nil, fmt.Errorf("cryptochannel: invalid peer public key: %w", err)
	}
	secret, err := k.private.ECDH(peerKey)
	if err != nil {
		return nil, fmt.Errorf("cryptochannel: ECDH: %w", err)
	}
	return secret, nil
}
