package connmgr

import (
	"fmt"
	"time"

	"github.com/thea-remote/hostd/internal/cryptoutil"
)

// Challenge is the server-issued nonce a client must answer to
// authenticate.
type Challenge struct {
	ID              string
	Nonce           []byte
	Timestamp       time.Time
	ServerPublicKey []byte
}

// AuthResponse carries the client's answer to a Challenge.
type AuthResponse struct {
	ChallengeID          string
	PairingCode          string
	SharedSecretHMAC     []byte
	CertificatePublicKey []byte
	ClientPublicKey      []byte
	TOTPCode             string
}

// GenerateChallenge issues a fresh challenge: 32 random bytes, current
// time, and the server's ECDH public key.
func (m *Manager) GenerateChallenge() (*Challenge, error) {
	nonce, err := randomNonce()
	if err != nil {
		return nil, err
	}
	return &Challenge{
		ID:              newChallengeID(),
		Nonce:           nonce,
		Timestamp:       time.Now(),
		ServerPublicKey: m.KeyPair().PublicKeyBytes(),
	}, nil
}

// VerifyAuthentication reports whether resp correctly answers challenge
// under the given auth method: the challenge id must match, the
// challenge must not have expired (elapsed < authTimeout, the
// authoritative positive bound; up to authTimeout/2 of negative
// elapsed, i.e. a future-dated challenge, is tolerated as clock skew),
// and the method-specific secret check must pass.
func (m *Manager) VerifyAuthentication(challenge *Challenge, resp *AuthResponse, method string) (bool, error) {
	if resp.ChallengeID != challenge.ID {
		return false, fmt.Errorf("connmgr: challenge id mismatch")
	}

	authTimeout := time.Duration(m.cfg.AuthTimeoutSeconds) * time.Second
	skew := authTimeout / 2
	elapsed := time.Since(challenge.Timestamp)
	if elapsed > authTimeout || elapsed < -skew {
		return false, fmt.Errorf("connmgr: challenge expired")
	}

	switch method {
	case "pairing_code":
		return m.verifyPairingCode(resp.PairingCode), nil
	case "shared_secret":
		return m.verifySharedSecret(challenge.Nonce, resp.SharedSecretHMAC), nil
	case "certificate":
		return m.verifyCertificate(resp.CertificatePublicKey), nil
	case "identity_of_account", "biometric":
		// Stubs: the interface exists, but without an externally
		// supplied provider these methods always fail closed.
		return false, nil
	default:
		return false, fmt.Errorf("connmgr: unsupported auth method %q", method)
	}
}

func (m *Manager) verifySharedSecret(nonce, mac []byte) bool {
	m.mu.Lock()
	secret := m.sharedHash
	m.mu.Unlock()
	if len(secret) == 0 {
		return false
	}
	expected := cryptoutil.HMACSHA256(secret, nonce)
	return cryptoutil.ConstantTimeEqual(expected, mac)
}

func (m *Manager) verifyCertificate(blob []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trustedCerts[string(blob)]
}
