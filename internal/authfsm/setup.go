package authfsm

import (
	"fmt"

	"github.com/thea-remote/hostd/internal/cryptoutil"
	"github.com/thea-remote/hostd/internal/secretstore"
)

// SetupTOTP generates a new TOTP secret and recovery-code set for
// account (normally the local host name), persists both to the secret
// store, and returns the otpauth:// provisioning URL and the plaintext
// recovery codes for one-time display to the operator.
func SetupTOTP(store secretstore.Store, account string) (otpauthURL string, recoveryCodes []string, err error) {
	secret, url, err := cryptoutil.GenerateTOTPSecret(account)
	if err != nil {
		return "", nil, err
	}
	codes, err := cryptoutil.GenerateRecoveryCodes()
	if err != nil {
		return "", nil, err
	}
	if err := store.Set(secretstore.TOTPService, secretstore.TOTPSecretAccount, []byte(secret)); err != nil {
		return "", nil, fmt.Errorf("authfsm: persist totp secret: %w", err)
	}
	if err := store.Set(secretstore.TOTPService, secretstore.TOTPRecoveryAccount, encodeRecoveryCodes(codes)); err != nil {
		return "", nil, fmt.Errorf("authfsm: persist recovery codes: %w", err)
	}
	return url, codes, nil
}
