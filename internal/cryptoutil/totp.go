package cryptoutil

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// totpIssuer and totpPeriod match RFC 6238 defaults: 30-second period,
// 6 digits, SHA-1, issuer "Thea Remote Desktop".
const (
	totpIssuer = "Thea Remote Desktop"
	totpPeriod = 30
	totpDigits = otp.DigitsSix
)

// recoveryCodeAlphabet excludes visually ambiguous characters (0/O, 1/I).
const recoveryCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateTOTPSecret creates a new TOTP secret for account (the local
// host name) and returns the otpauth:// provisioning URL alongside the
// raw secret to persist in the secret store.
func GenerateTOTPSecret(account string) (secret string, otpauthURL string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: account,
		Period:      totpPeriod,
		Digits:      totpDigits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", fmt.Errorf("cryptoutil: generate totp secret: %w", err)
	}
	return key.Secret(), key.URL(), nil
}

// VerifyTOTP validates code against secret at instant now, allowing a
// ±1-step window (30s period, 6 digits, SHA-1 per RFC 6238/4226).
func VerifyTOTP(secret, code string, now time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, now, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      1,
		Digits:    totpDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// GenerateRecoveryCodes returns eight single-use 8-character recovery
// codes (alphabet excludes ambiguous characters), each formatted with a
// dash after the 4th character.
func GenerateRecoveryCodes() ([]string, error) {
	codes := make([]string, 8)
	for i := range codes {
		raw, err := randomAlphabetString(8)
		if err != nil {
			return nil, err
		}
		codes[i] = raw[:4] + "-" + raw[4:]
	}
	return codes, nil
}

func randomAlphabetString(n int) (string, error) {
	var b strings.Builder
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptoutil: generate recovery code: %w", err)
	}
	for _, v := range buf {
		b.WriteByte(recoveryCodeAlphabet[int(v)%len(recoveryCodeAlphabet)])
	}
	return b.String(), nil
}

func currentCode(secret string, now time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, now, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      1,
		Digits:    totpDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
}

// RecoveryCodeSet tracks single-use recovery codes; a used code is
// removed and never accepted again.
type RecoveryCodeSet struct {
	codes map[string]bool
}

// NewRecoveryCodeSet builds a set from freshly generated or persisted
// codes.
func NewRecoveryCodeSet(codes []string) *RecoveryCodeSet {
	set := &RecoveryCodeSet{codes: make(map[string]bool, len(codes))}
	for _, c := range codes {
		set.codes[c] = true
	}
	return set
}

// Consume reports whether code is a valid, unused recovery code, marking
// it used if so.
func (s *RecoveryCodeSet) Consume(code string) bool {
	if s == nil || !s.codes[code] {
		return false
	}
	delete(s.codes, code)
	return true
}

// Remaining returns the count of unused recovery codes.
func (s *RecoveryCodeSet) Remaining() int {
	if s == nil {
		return 0
	}
	return len(s.codes)
}
