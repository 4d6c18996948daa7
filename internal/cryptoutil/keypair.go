// Package cryptoutil implements the cryptographic primitives used by the
// authentication state machine and session transport: P-256 keypair
// management, ECDH session-key derivation, AES-GCM payload wrapping,
// constant-time secret comparison, password hashing and TOTP.
package cryptoutil

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"
)

// KeyPair is the server's long-lived P-256 identity key, used for both
// ECDH session-key derivation and as the public key advertised in an
// AuthChallenge.
type KeyPair struct {
	Private *ecdh.PrivateKey
}

// GenerateKeyPair creates a new random P-256 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: generate key pair: %w", err)
	}
	return &KeyPair{Private: priv}, nil
}

// LoadKeyPair reconstructs a KeyPair from a raw P-256 private scalar, as
// retrieved from the secret store.
func LoadKeyPair(raw []byte) (*KeyPair, error) {
	priv, err := ecdh.P256().NewPrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: load key pair: %w", err)
	}
	return &KeyPair{Private: priv}, nil
}

// Bytes returns the raw private scalar for persistence in the secret
// store.
func (kp *KeyPair) Bytes() []byte {
	return kp.Private.Bytes()
}

// PublicKeyBytes returns the uncompressed public key, sent to clients in
// an AuthChallenge.
func (kp *KeyPair) PublicKeyBytes() []byte {
	return kp.Private.PublicKey().Bytes()
}

// ParsePublicKey parses a client's uncompressed P-256 public key, as
// carried in an auth response.
func ParsePublicKey(raw []byte) (*ecdh.PublicKey, error) {
	pub, err := ecdh.P256().NewPublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: parse public key: %w", err)
	}
	return pub, nil
}
