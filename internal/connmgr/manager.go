// Package connmgr implements the connection manager: server keypair
// custody, challenge issuance and verification, pairing codes, rate
// limiting and whitelisting.
package connmgr

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thea-remote/hostd/internal/config"
	"github.com/thea-remote/hostd/internal/cryptoutil"
	"github.com/thea-remote/hostd/internal/secretstore"
)

// Manager holds the server's long-lived identity and the per-connection
// gates (challenges, pairing, rate limit, whitelist) that run before a
// session exists.
type Manager struct {
	cfg   *config.Config
	store secretstore.Store

	mu         sync.Mutex
	keyPair    *cryptoutil.KeyPair
	sharedHash []byte // HMAC key: the raw shared secret bytes
	trustedCerts map[string]bool

	pairing *PairingSession

	rateMu   sync.Mutex
	attempts map[string][]time.Time

	whitelist map[string]bool
}

// New constructs a Manager, loading the server keypair from store or
// generating and persisting a new one.
func New(cfg *config.Config, store secretstore.Store) (*Manager, error) {
	m := &Manager{
		cfg:          cfg,
		store:        store,
		trustedCerts: make(map[string]bool),
		attempts:     make(map[string][]time.Time),
		whitelist:    make(map[string]bool),
	}
	for _, host := range cfg.Whitelist {
		m.whitelist[host] = true
	}

	kp, err := m.loadOrGenerateKeyPair()
	if err != nil {
		return nil, err
	}
	m.keyPair = kp
	return m, nil
}

func (m *Manager) loadOrGenerateKeyPair() (*cryptoutil.KeyPair, error) {
	raw, err := m.store.Get(secretstore.ServerKeyService, secretstore.ServerKeyAccount)
	if err == nil {
		return cryptoutil.LoadKeyPair(raw)
	}
	kp, err := cryptoutil.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("connmgr: generate server key pair: %w", err)
	}
	if err := m.store.Set(secretstore.ServerKeyService, secretstore.ServerKeyAccount, kp.Bytes()); err != nil {
		return nil, fmt.Errorf("connmgr: persist server key pair: %w", err)
	}
	return kp, nil
}

// KeyPair returns the server's identity key pair.
func (m *Manager) KeyPair() *cryptoutil.KeyPair {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keyPair
}

// SetSharedSecret configures the shared-secret auth method's key.
func (m *Manager) SetSharedSecret(secret []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sharedHash = secret
}

// TrustCertificate adds a public-key blob to the trusted-certs set for
// the certificate auth method.
func (m *Manager) TrustCertificate(publicKeyBlob []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trustedCerts[string(publicKeyBlob)] = true
}

// DeriveSessionKey computes the ECDH+HKDF session key against a raw
// client public key blob.
func (m *Manager) DeriveSessionKey(clientPublicKey []byte) ([]byte, error) {
	pub, err := cryptoutil.ParsePublicKey(clientPublicKey)
	if err != nil {
		return nil, err
	}
	return cryptoutil.DeriveSessionKey(m.KeyPair(), pub)
}

// Encrypt wraps an opaque payload under a derived session key.
func (m *Manager) Encrypt(sessionKey, plaintext []byte) ([]byte, error) {
	return cryptoutil.Encrypt(sessionKey, plaintext)
}

// Decrypt opens an opaque payload wrapped under a derived session key.
func (m *Manager) Decrypt(sessionKey, ciphertext []byte) ([]byte, error) {
	return cryptoutil.Decrypt(sessionKey, ciphertext)
}

func newChallengeID() string {
	return uuid.NewString()
}

func randomNonce() ([]byte, error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("connmgr: generate nonce: %w", err)
	}
	return nonce, nil
}
