package authfsm

import (
	"net"
	"testing"
	"time"

	"github.com/thea-remote/hostd/internal/config"
	"github.com/thea-remote/hostd/internal/connmgr"
	"github.com/thea-remote/hostd/internal/secretstore"
	"github.com/thea-remote/hostd/internal/wire"
)

func newTestAuthenticator(t *testing.T) (*Authenticator, *connmgr.Manager) {
	t.Helper()
	cfg := config.Default()
	cfg.AuthTimeoutSeconds = 5
	store := secretstore.NewMemoryStore()
	cm, err := connmgr.New(cfg, store)
	if err != nil {
		t.Fatalf("connmgr.New: %v", err)
	}
	return New(cfg, cm, store), cm
}

func TestAuthenticateHappyPathPairingCode(t *testing.T) {
	auth, cm := newTestAuthenticator(t)
	code, err := cm.GeneratePairingCode(5 * time.Minute)
	if err != nil {
		t.Fatalf("GeneratePairingCode: %v", err)
	}

	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	client := wire.NewConn(clientConn)

	resultCh := make(chan *Result, 1)
	errCh := make(chan error, 1)
	go func() {
		res, err := auth.Authenticate(wire.NewConn(serverConn))
		resultCh <- res
		errCh <- err
	}()

	challengeMsg, err := client.Recv()
	if err != nil {
		t.Fatalf("client recv challenge: %v", err)
	}
	if challengeMsg.Type != wire.TypeAuthChallenge {
		t.Fatalf("got type %q, want authChallenge", challengeMsg.Type)
	}
	var challengePayload wire.AuthChallengePayload
	if err := challengeMsg.Decode(&challengePayload); err != nil {
		t.Fatalf("decode challenge: %v", err)
	}

	respMsg, err := wire.NewMessage(wire.TypeAuthResponse, wire.AuthResponsePayload{
		ChallengeID:          challengePayload.ChallengeID,
		ClientName:           "Laptop",
		DeviceType:           "mac",
		RequestedPermissions: []string{"view-screen"},
		PairingCode:          code,
	})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if err := client.Send(respMsg); err != nil {
		t.Fatalf("client send response: %v", err)
	}

	successMsg, err := client.Recv()
	if err != nil {
		t.Fatalf("client recv success: %v", err)
	}
	if successMsg.Type != wire.TypeAuthSuccess {
		t.Fatalf("got type %q, want authSuccess", successMsg.Type)
	}

	result := <-resultCh
	authErr := <-errCh
	if authErr != nil {
		t.Fatalf("Authenticate returned error: %v", authErr)
	}
	if !result.Permissions.Has("view-screen") {
		t.Fatal("expected view-screen to be granted")
	}
}

func TestAuthenticateWrongPairingCodeIsRejected(t *testing.T) {
	auth, cm := newTestAuthenticator(t)
	if _, err := cm.GeneratePairingCode(5 * time.Minute); err != nil {
		t.Fatalf("GeneratePairingCode: %v", err)
	}

	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()
	client := wire.NewConn(clientConn)

	errCh := make(chan error, 1)
	go func() {
		_, err := auth.Authenticate(wire.NewConn(serverConn))
		errCh <- err
	}()

	challengeMsg, _ := client.Recv()
	var challengePayload wire.AuthChallengePayload
	challengeMsg.Decode(&challengePayload)

	respMsg, _ := wire.NewMessage(wire.TypeAuthResponse, wire.AuthResponsePayload{
		ChallengeID: challengePayload.ChallengeID,
		PairingCode: "000000",
	})
	client.Send(respMsg)

	failureMsg, err := client.Recv()
	if err != nil {
		t.Fatalf("client recv failure: %v", err)
	}
	if failureMsg.Type != wire.TypeAuthFailure {
		t.Fatalf("got type %q, want authFailure", failureMsg.Type)
	}

	if err := <-errCh; err == nil {
		t.Fatal("expected Authenticate to return a RejectedError")
	}
}
