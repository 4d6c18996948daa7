package connmgr

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/thea-remote/hostd/internal/cryptoutil"
)

// PairingSession is a single-use 6-digit code. The table contains at
// most one active code at a time: generating a new one overwrites it.
type PairingSession struct {
	Code      string
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
}

// GeneratePairingCode creates a fresh cryptographically random 6-digit
// code, valid for validFor, overwriting any previous active code.
func (m *Manager) GeneratePairingCode(validFor time.Duration) (string, error) {
	code, err := randomSixDigits()
	if err != nil {
		return "", err
	}
	now := time.Now()
	m.mu.Lock()
	m.pairing = &PairingSession{
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(validFor),
	}
	m.mu.Unlock()
	return code, nil
}

func (m *Manager) verifyPairingCode(code string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.pairing
	if p == nil || p.Used {
		return false
	}
	if time.Now().After(p.ExpiresAt) {
		return false
	}
	if !cryptoutil.ConstantTimeEqual([]byte(p.Code), []byte(code)) {
		return false
	}
	p.Used = true
	m.pairing = nil
	return true
}

func randomSixDigits() (string, error) {
	buf := make([]byte, 1)
	digits := make([]byte, 6)
	for i := range digits {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("connmgr: generate pairing code: %w", err)
		}
		digits[i] = '0' + buf[0]%10
	}
	return string(digits), nil
}
