// Package secretstore defines the opaque key/secret vault interface the
// core depends on for the server private key, TOTP secret and recovery
// codes, and the unattended-access password hash. The core never reads
// or writes these through the filesystem directly.
package secretstore

import "fmt"

// Service and account identifiers under which the core persists secrets,
// matching the external-interfaces contract.
const (
	ServerKeyService = "app.thea.remote"
	ServerKeyAccount = "thea.remote.server.privatekey"

	TOTPService        = "app.thea.remote.totp"
	TOTPSecretAccount  = "secret"
	TOTPRecoveryAccount = "recoverycodes"

	PasswordService = "app.thea.remote"
	PasswordAccount = "unattended.password"
)

// ErrNotFound is returned when no secret exists under the given
// service/account pair.
var ErrNotFound = fmt.Errorf("secretstore: secret not found")

// Store is the capability interface over a platform keychain. The
// keychain implementation is serialized internally; callers assume it
// is safe from concurrent access.
type Store interface {
	// Get retrieves the secret stored under service/account.
	// Returns ErrNotFound if absent.
	Get(service, account string) ([]byte, error)
	// Set persists or overwrites the secret under service/account.
	Set(service, account string, value []byte) error
	// Delete removes the secret under service/account. A no-op if absent.
	Delete(service, account string) error
}
