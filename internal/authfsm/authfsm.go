// Package authfsm implements the authentication state machine:
// Accepted -> ChallengeSent -> Authenticated | Rejected.
package authfsm

import (
	"fmt"
	"time"

	"github.com/thea-remote/hostd/internal/config"
	"github.com/thea-remote/hostd/internal/connmgr"
	"github.com/thea-remote/hostd/internal/cryptoutil"
	"github.com/thea-remote/hostd/internal/secmem"
	"github.com/thea-remote/hostd/internal/secretstore"
	"github.com/thea-remote/hostd/internal/sessionmgr"
	"github.com/thea-remote/hostd/internal/wire"
)

// Result is the outcome of a successful authentication.
type Result struct {
	Permissions sessionmgr.PermissionSet
	SessionKey  []byte // nil unless the client supplied a public key
}

// RejectedError wraps the human-readable reason sent back in an
// authFailure reply.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string { return e.Reason }

// Authenticator runs the per-connection auth handshake.
type Authenticator struct {
	cfg   *config.Config
	conn  *connmgr.Manager
	store secretstore.Store
}

// New builds an Authenticator.
func New(cfg *config.Config, conn *connmgr.Manager, store secretstore.Store) *Authenticator {
	return &Authenticator{cfg: cfg, conn: conn, store: store}
}

// allowedPermissions returns the server-allowed permission ceiling for
// the chosen method; the granted set is the client's request
// intersected with this ceiling, so elevated requests are silently
// dropped rather than rejected outright.
func allowedPermissions(method config.AuthMethod) sessionmgr.PermissionSet {
	switch method {
	case config.AuthMethodIdentityAccount, config.AuthMethodBiometric:
		// These methods are stubs that never verify; nothing to grant.
		return sessionmgr.NewPermissionSet(nil)
	default:
		return sessionmgr.NewPermissionSet([]sessionmgr.Permission{
			sessionmgr.PermissionViewScreen,
			sessionmgr.PermissionControlScreen,
			sessionmgr.PermissionViewFiles,
			sessionmgr.PermissionReadFiles,
			sessionmgr.PermissionWriteFiles,
			sessionmgr.PermissionDeleteFiles,
			sessionmgr.PermissionExecuteCommands,
			sessionmgr.PermissionSystemControl,
			sessionmgr.PermissionNetworkAccess,
			sessionmgr.PermissionInferenceRelay,
		})
	}
}

// Authenticate drives one connection through the state machine: emit
// authChallenge, await exactly one authResponse within authTimeout,
// verify it, optionally check TOTP, derive a session key, and reply
// authSuccess/authFailure. On any rejection it returns a *RejectedError
// after having already sent authFailure; the caller terminates the
// session.
func (a *Authenticator) Authenticate(conn *wire.Conn) (*Result, error) {
	challenge, err := a.conn.GenerateChallenge()
	if err != nil {
		return nil, fmt.Errorf("authfsm: generate challenge: %w", err)
	}

	challengeMsg, err := wire.NewMessage(wire.TypeAuthChallenge, wire.AuthChallengePayload{
		ChallengeID:     challenge.ID,
		Nonce:           challenge.Nonce,
		ServerPublicKey: challenge.ServerPublicKey,
	})
	if err != nil {
		return nil, fmt.Errorf("authfsm: build challenge message: %w", err)
	}
	if err := conn.Send(challengeMsg); err != nil {
		return nil, fmt.Errorf("authfsm: send challenge: %w", err)
	}

	authTimeout := time.Duration(a.cfg.AuthTimeoutSeconds) * time.Second
	if err := conn.SetReadDeadline(time.Now().Add(authTimeout)); err != nil {
		return nil, fmt.Errorf("authfsm: set auth deadline: %w", err)
	}
	defer conn.SetReadDeadline(time.Time{})

	msg, err := conn.Recv()
	if err != nil {
		return nil, fmt.Errorf("authfsm: await auth response: %w", err)
	}
	if msg.Type != wire.TypeAuthResponse {
		return a.reject(conn, "expected authResponse")
	}

	var payload wire.AuthResponsePayload
	if err := msg.Decode(&payload); err != nil {
		return a.reject(conn, "malformed authResponse")
	}

	resp := &connmgr.AuthResponse{
		ChallengeID:          payload.ChallengeID,
		PairingCode:          payload.PairingCode,
		SharedSecretHMAC:     payload.SharedSecretHMAC,
		CertificatePublicKey: payload.CertificatePublicKey,
		ClientPublicKey:      payload.ClientPublicKey,
		TOTPCode:             payload.TOTPCode,
	}

	ok, err := a.conn.VerifyAuthentication(challenge, resp, string(a.cfg.AuthMethod))
	if err != nil || !ok {
		return a.reject(conn, "Invalid credentials")
	}

	if a.cfg.Capabilities.TOTP {
		if err := a.verifyTOTP(payload.TOTPCode); err != nil {
			return a.reject(conn, err.Error())
		}
	}

	requested := make([]sessionmgr.Permission, 0, len(payload.RequestedPermissions))
	for _, p := range payload.RequestedPermissions {
		requested = append(requested, sessionmgr.Permission(p))
	}
	granted := sessionmgr.NewPermissionSet(requested).Intersect(allowedPermissions(a.cfg.AuthMethod))

	var sessionKey []byte
	if len(payload.ClientPublicKey) > 0 {
		sessionKey, err = a.conn.DeriveSessionKey(payload.ClientPublicKey)
		if err != nil {
			return a.reject(conn, "invalid client public key")
		}
	}
	successMsg, err := wire.NewMessage(wire.TypeAuthSuccess, wire.AuthSuccessPayload{
		Permissions: permissionStrings(granted),
	})
	if err != nil {
		return nil, fmt.Errorf("authfsm: build success message: %w", err)
	}
	if err := conn.Send(successMsg); err != nil {
		return nil, fmt.Errorf("authfsm: send success: %w", err)
	}

	return &Result{Permissions: granted, SessionKey: sessionKey}, nil
}

func (a *Authenticator) verifyTOTP(code string) error {
	raw, err := a.store.Get(secretstore.TOTPService, secretstore.TOTPSecretAccount)
	if err != nil {
		return fmt.Errorf("TOTP not configured")
	}
	secret := secmem.NewSecureString(string(raw))
	defer secret.Zero()

	if cryptoutil.VerifyTOTP(secret.String(), code, time.Now()) {
		return nil
	}
	recoveryRaw, err := a.store.Get(secretstore.TOTPService, secretstore.TOTPRecoveryAccount)
	if err == nil {
		codes := decodeRecoveryCodes(recoveryRaw)
		set := cryptoutil.NewRecoveryCodeSet(codes)
		if set.Consume(code) {
			return nil
		}
	}
	return fmt.Errorf("TOTP verification failed")
}

func (a *Authenticator) reject(conn *wire.Conn, reason string) (*Result, error) {
	msg, err := wire.NewMessage(wire.TypeAuthFailure, wire.AuthFailurePayload{Reason: reason})
	if err == nil {
		conn.Send(msg)
	}
	return nil, &RejectedError{Reason: reason}
}

func permissionStrings(set sessionmgr.PermissionSet) []string {
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, string(p))
	}
	return out
}
