package server

import (
	"net"
	"testing"
	"time"

	"github.com/thea-remote/hostd/internal/config"
	"github.com/thea-remote/hostd/internal/cryptoutil"
	"github.com/thea-remote/hostd/internal/platform"
	"github.com/thea-remote/hostd/internal/secretstore"
	"github.com/thea-remote/hostd/internal/wire"
)

func testServer(t *testing.T) (*Server, []byte) {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.AuthMethod = config.AuthMethodSharedSecret
	cfg.AuthTimeoutSeconds = 5
	cfg.RecordingDir = dir + "/recordings"
	cfg.Capabilities = config.CapabilityToggles{Screen: true, Input: true, Files: true, System: true, Audio: true}

	store := secretstore.NewMemoryStore()

	s, err := New(cfg, store, Backends{
		NewCapturer:      func() (platform.Capturer, error) { return platform.NewSyntheticCapturer(64, 64), nil },
		NewAudioCapturer: func() (platform.AudioCapturer, error) { return platform.NewSyntheticAudioCapturer(), nil },
		Clipboard:        &platform.MemoryClipboard{},
		SystemControl:    platform.NoopSystemControl{},
		Confirm:          func(string, time.Duration) bool { return true },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	secret := []byte("test-shared-secret")
	s.conn.SetSharedSecret(secret)

	return s, secret
}

// driveHandshake performs the client side of the auth handshake over an
// already-connected net.Conn and returns once authSuccess arrives.
func driveHandshake(t *testing.T, clientConn *wire.Conn, secret []byte) {
	t.Helper()

	challengeMsg, err := clientConn.Recv()
	if err != nil {
		t.Fatalf("recv challenge: %v", err)
	}
	if challengeMsg.Type != wire.TypeAuthChallenge {
		t.Fatalf("expected authChallenge, got %s", challengeMsg.Type)
	}
	var challenge wire.AuthChallengePayload
	if err := challengeMsg.Decode(&challenge); err != nil {
		t.Fatalf("decode challenge: %v", err)
	}

	mac := cryptoutil.HMACSHA256(secret, challenge.Nonce)
	respMsg, err := wire.NewMessage(wire.TypeAuthResponse, wire.AuthResponsePayload{
		ChallengeID:          challenge.ChallengeID,
		SharedSecretHMAC:     mac,
		RequestedPermissions: []string{"view-screen", "system-control", "network-access"},
	})
	if err != nil {
		t.Fatalf("build authResponse: %v", err)
	}
	if err := clientConn.Send(respMsg); err != nil {
		t.Fatalf("send authResponse: %v", err)
	}

	successMsg, err := clientConn.Recv()
	if err != nil {
		t.Fatalf("recv authSuccess: %v", err)
	}
	if successMsg.Type != wire.TypeAuthSuccess {
		t.Fatalf("expected authSuccess, got %s", successMsg.Type)
	}
}

func TestHandleConnAuthenticatesAndDispatches(t *testing.T) {
	s, secret := testServer(t)

	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	done := make(chan struct{})
	s.wg.Add(1)
	go func() {
		s.handleConn(serverSide)
		close(done)
	}()

	client := wire.NewConn(clientSide)
	driveHandshake(t, client, secret)

	invReq, _ := wire.NewMessage(wire.TypeInventoryRequest, wire.InventoryRequestPayload{})
	if err := client.Send(invReq); err != nil {
		t.Fatalf("send inventoryRequest: %v", err)
	}
	reply, err := client.Recv()
	if err != nil {
		t.Fatalf("recv inventoryResponse: %v", err)
	}
	if reply.Type != wire.TypeInventoryResponse {
		t.Fatalf("expected inventoryResponse, got %s", reply.Type)
	}

	disconnectMsg, _ := wire.NewMessage(wire.TypeDisconnect, nil)
	client.Send(disconnectMsg)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handleConn did not return after disconnect")
	}
}

func TestHandleConnRejectsBadSecret(t *testing.T) {
	s, _ := testServer(t)

	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	done := make(chan struct{})
	s.wg.Add(1)
	go func() {
		s.handleConn(serverSide)
		close(done)
	}()

	client := wire.NewConn(clientSide)
	challengeMsg, err := client.Recv()
	if err != nil {
		t.Fatalf("recv challenge: %v", err)
	}
	var challenge wire.AuthChallengePayload
	challengeMsg.Decode(&challenge)

	respMsg, _ := wire.NewMessage(wire.TypeAuthResponse, wire.AuthResponsePayload{
		ChallengeID:      challenge.ChallengeID,
		SharedSecretHMAC: []byte("wrong"),
	})
	client.Send(respMsg)

	failureMsg, err := client.Recv()
	if err != nil {
		t.Fatalf("recv authFailure: %v", err)
	}
	if failureMsg.Type != wire.TypeAuthFailure {
		t.Fatalf("expected authFailure, got %s", failureMsg.Type)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handleConn did not return after rejection")
	}
}

func TestNetworkProxyStillRepliesWithPermanentDenial(t *testing.T) {
	s, secret := testServer(t)

	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()
	s.wg.Add(1)
	go s.handleConn(serverSide)

	client := wire.NewConn(clientSide)
	driveHandshake(t, client, secret)

	req, _ := wire.NewMessage(wire.TypeNetworkProxyRequest, wire.NetworkProxyRequestPayload{Operation: "connect"})
	if err := client.Send(req); err != nil {
		t.Fatalf("send networkProxyRequest: %v", err)
	}

	// networkProxyRequest is never registered with the dispatcher, which
	// answers it with a generic error message ("feature disabled: network
	// proxy") rather than a networkProxyResponse.
	reply, err := client.Recv()
	if err != nil {
		t.Fatalf("recv reply: %v", err)
	}
	if reply.Type != wire.TypeError {
		t.Fatalf("expected a generic error reply, got %s", reply.Type)
	}
}
