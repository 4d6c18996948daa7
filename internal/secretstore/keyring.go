package secretstore

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"
)

// KeyringStore is a Store backed by the platform keychain (macOS
// Keychain, Windows Credential Manager, Secret Service/D-Bus on Linux)
// via zalando/go-keyring. Binary secrets are base64-encoded since the
// OS keychain APIs store strings.
type KeyringStore struct {
	mu sync.Mutex
}

// NewKeyringStore constructs a keychain-backed Store.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func (k *KeyringStore) Get(service, account string) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	encoded, err := keyring.Get(service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("secretstore: keyring get: %w", err)
	}
	value, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("secretstore: decode stored secret: %w", err)
	}
	return value, nil
}

func (k *KeyringStore) Set(service, account string, value []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	encoded := base64.StdEncoding.EncodeToString(value)
	if err := keyring.Set(service, account, encoded); err != nil {
		return fmt.Errorf("secretstore: keyring set: %w", err)
	}
	return nil
}

func (k *KeyringStore) Delete(service, account string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := keyring.Delete(service, account); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("secretstore: keyring delete: %w", err)
	}
	return nil
}
