package cryptoutil

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// PasswordIterations is the minimum HMAC-SHA256-chained round count for
// the unattended-access password hash.
const PasswordIterations = 10000

// PasswordHashSize is the derived key length in bytes.
const PasswordHashSize = 32

const passwordSaltSize = 16

// PasswordHash is the persisted form of an unattended-access password:
// salt plus the PBKDF2-equivalent derived key.
type PasswordHash struct {
	Salt []byte
	Hash []byte
}

// HashPassword derives a PasswordHash for password using a freshly
// generated random salt.
func HashPassword(password string) (*PasswordHash, error) {
	salt := make([]byte, passwordSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("cryptoutil: generate salt: %w", err)
	}
	return &PasswordHash{
		Salt: salt,
		Hash: pbkdf2.Key([]byte(password), salt, PasswordIterations, PasswordHashSize, sha256.New),
	}, nil
}

// Verify reports whether password matches the stored hash, comparing in
// constant time over equal-length inputs.
func (h *PasswordHash) Verify(password string) bool {
	if h == nil {
		return false
	}
	candidate := pbkdf2.Key([]byte(password), h.Salt, PasswordIterations, PasswordHashSize, sha256.New)
	return ConstantTimeEqual(candidate, h.Hash)
}
