package authfsm

import "strings"

// encodeRecoveryCodes/decodeRecoveryCodes persist a recovery-code set as
// newline-joined text in the secret store.
func encodeRecoveryCodes(codes []string) []byte {
	return []byte(strings.Join(codes, "\n"))
}

func decodeRecoveryCodes(raw []byte) []string {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
