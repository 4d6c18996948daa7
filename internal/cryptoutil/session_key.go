package cryptoutil

import (
	"crypto/ecdh"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// sessionKeyInfo is the fixed HKDF info string binding derived keys to
// this protocol, so the same ECDH shared secret can never be replayed
// against another protocol's key schedule.
const sessionKeyInfo = "thea.remote.session"

// SessionKeySize is the AES-GCM key size derived for each session.
const SessionKeySize = 32

// DeriveSessionKey computes ECDH(priv, clientPublic) then stretches the
// shared secret through HKDF-SHA256 (zero salt, fixed info) into a
// 32-byte AES-GCM key.
func DeriveSessionKey(kp *KeyPair, clientPublic *ecdh.PublicKey) ([]byte, error) {
	shared, err := kp.Private.ECDH(clientPublic)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: ecdh: %w", err)
	}
	reader := hkdf.New(sha256.New, shared, nil, []byte(sessionKeyInfo))
	key := make([]byte, SessionKeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("cryptoutil: hkdf expand: %w", err)
	}
	return key, nil
}
