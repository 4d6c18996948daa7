package connmgr

import (
	"testing"
	"time"

	"github.com/thea-remote/hostd/internal/config"
	"github.com/thea-remote/hostd/internal/cryptoutil"
	"github.com/thea-remote/hostd/internal/secretstore"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := config.Default()
	m, err := New(cfg, secretstore.NewMemoryStore())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestGenerateChallengeAndVerifyPairingCode(t *testing.T) {
	m := newTestManager(t)

	code, err := m.GeneratePairingCode(5 * time.Minute)
	if err != nil {
		t.Fatalf("GeneratePairingCode: %v", err)
	}

	ch, err := m.GenerateChallenge()
	if err != nil {
		t.Fatalf("GenerateChallenge: %v", err)
	}

	resp := &AuthResponse{ChallengeID: ch.ID, PairingCode: code}
	ok, err := m.VerifyAuthentication(ch, resp, "pairing_code")
	if err != nil {
		t.Fatalf("VerifyAuthentication: %v", err)
	}
	if !ok {
		t.Fatal("expected pairing code verification to succeed")
	}

	// Single-use: a second attempt with the same code must fail.
	ch2, _ := m.GenerateChallenge()
	resp2 := &AuthResponse{ChallengeID: ch2.ID, PairingCode: code}
	ok2, _ := m.VerifyAuthentication(ch2, resp2, "pairing_code")
	if ok2 {
		t.Fatal("a used pairing code must not verify a second time")
	}
}

func TestVerifyAuthenticationRejectsChallengeIDMismatch(t *testing.T) {
	m := newTestManager(t)
	ch, _ := m.GenerateChallenge()
	resp := &AuthResponse{ChallengeID: "not-the-real-id"}
	ok, err := m.VerifyAuthentication(ch, resp, "pairing_code")
	if ok || err == nil {
		t.Fatal("expected a challenge id mismatch to fail verification")
	}
}

func TestVerifyAuthenticationRejectsExpiredChallenge(t *testing.T) {
	m := newTestManager(t)
	m.cfg.AuthTimeoutSeconds = 1
	ch, _ := m.GenerateChallenge()
	ch.Timestamp = time.Now().Add(-10 * time.Second)
	resp := &AuthResponse{ChallengeID: ch.ID}
	ok, err := m.VerifyAuthentication(ch, resp, "pairing_code")
	if ok || err == nil {
		t.Fatal("expected an expired challenge to fail verification")
	}
}

func TestSharedSecretAuth(t *testing.T) {
	m := newTestManager(t)
	secret := []byte("s3cr3t")
	m.SetSharedSecret(secret)

	ch, _ := m.GenerateChallenge()
	mac := cryptoutil.HMACSHA256(secret, ch.Nonce)
	resp := &AuthResponse{ChallengeID: ch.ID, SharedSecretHMAC: mac}
	ok, err := m.VerifyAuthentication(ch, resp, "shared_secret")
	if err != nil || !ok {
		t.Fatalf("expected shared secret auth to succeed, ok=%v err=%v", ok, err)
	}

	badResp := &AuthResponse{ChallengeID: ch.ID, SharedSecretHMAC: []byte("wrong")}
	ok2, _ := m.VerifyAuthentication(ch, badResp, "shared_secret")
	if ok2 {
		t.Fatal("expected a wrong HMAC to fail shared secret auth")
	}
}

func TestRateLimitSlidingWindow(t *testing.T) {
	m := newTestManager(t)
	m.cfg.RateLimitPerMinute = 3
	for i := 0; i < 3; i++ {
		if !m.CheckRateLimit("10.0.0.1") {
			t.Fatalf("attempt %d should be allowed", i)
		}
	}
	if m.CheckRateLimit("10.0.0.1") {
		t.Fatal("4th attempt within the window should be refused")
	}
	// A different endpoint has its own bucket.
	if !m.CheckRateLimit("10.0.0.2") {
		t.Fatal("a different endpoint should not share the rate limit bucket")
	}
}

func TestWhitelistEmptyAllowsAll(t *testing.T) {
	m := newTestManager(t)
	if !m.IsWhitelisted("anyone") {
		t.Fatal("an empty whitelist should allow any endpoint")
	}
}

func TestWhitelistExactMatch(t *testing.T) {
	m := newTestManager(t)
	m.whitelist["10.0.0.5"] = true
	if !m.IsWhitelisted("10.0.0.5") {
		t.Fatal("expected the whitelisted host to be allowed")
	}
	if m.IsWhitelisted("10.0.0.6") {
		t.Fatal("expected a non-whitelisted host to be refused")
	}
}

func TestDeriveSessionKeySymmetric(t *testing.T) {
	m := newTestManager(t)
	client, err := cryptoutil.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	serverKey, err := m.DeriveSessionKey(client.PublicKeyBytes())
	if err != nil {
		t.Fatalf("DeriveSessionKey: %v", err)
	}
	serverPub, err := cryptoutil.ParsePublicKey(m.KeyPair().PublicKeyBytes())
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	clientKey, err := cryptoutil.DeriveSessionKey(client, serverPub)
	if err != nil {
		t.Fatalf("client DeriveSessionKey: %v", err)
	}
	if !cryptoutil.ConstantTimeEqual(serverKey, clientKey) {
		t.Fatal("derived session keys must match on both sides")
	}
}
