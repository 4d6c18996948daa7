package cryptoutil

import (
	"crypto/hmac"
	"crypto/sha256"
)

// HMACSHA256 computes HMAC-SHA256(message) keyed by key.
func HMACSHA256(key, message []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}

// ConstantTimeEqual reports whether a and b are byte-identical, in time
// independent of where they first differ. Used for session keys, HMACs,
// TOTP codes and pairing codes — every secret-equality check in the
// authentication path.
func ConstantTimeEqual(a, b []byte) bool {
	return hmac.Equal(a, b)
}
