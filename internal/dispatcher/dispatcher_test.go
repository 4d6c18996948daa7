package dispatcher

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/thea-remote/hostd/internal/audit"
	"github.com/thea-remote/hostd/internal/sessionmgr"
	"github.com/thea-remote/hostd/internal/wire"
)

func newTestLogger(t *testing.T) *audit.Logger {
	t.Helper()
	aud, err := audit.NewLogger(filepath.Join(t.TempDir(), "audit.json"), 90, 100)
	if err != nil {
		t.Fatalf("audit.NewLogger: %v", err)
	}
	return aud
}

func newTestSession(t *testing.T, perms []sessionmgr.Permission) (*sessionmgr.Session, *wire.Conn) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	sess := sessionmgr.NewSession("sess-1", wire.NewConn(serverConn), sessionmgr.ClientDescriptor{Name: "tester"})
	sess.Authenticate(sessionmgr.NewPermissionSet(perms))
	return sess, wire.NewConn(clientConn)
}

func TestDispatcherRoutesAuthorizedRequest(t *testing.T) {
	sess, client := newTestSession(t, []sessionmgr.Permission{sessionmgr.PermissionViewFiles})
	defer client.Close()

	d := New(nil, nil)
	called := false
	d.Register(wire.TypeFileRequest, func(s *sessionmgr.Session, msg wire.Message) (wire.Message, error) {
		called = true
		return wire.NewMessage(wire.TypeFileResponse, wire.FileResponsePayload{Message: "ok"})
	})

	go d.Run(sess)

	req, _ := wire.NewMessage(wire.TypeFileRequest, wire.FileRequestPayload{Operation: wire.FileOpList, Path: "/"})
	if err := client.Send(req); err != nil {
		t.Fatalf("send: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := client.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if reply.Type != wire.TypeFileResponse {
		t.Fatalf("expected fileResponse, got %s", reply.Type)
	}
	if !called {
		t.Fatal("handler was not invoked")
	}
	sess.Close()
}

func TestDispatcherRejectsUnauthorizedRequest(t *testing.T) {
	sess, client := newTestSession(t, nil) // no permissions granted
	defer client.Close()

	d := New(nil, nil)
	d.Register(wire.TypeFileRequest, func(s *sessionmgr.Session, msg wire.Message) (wire.Message, error) {
		t.Fatal("handler should not be invoked without permission")
		return wire.Message{}, nil
	})

	go d.Run(sess)

	req, _ := wire.NewMessage(wire.TypeFileRequest, wire.FileRequestPayload{Operation: wire.FileOpDelete, Path: "/etc"})
	if err := client.Send(req); err != nil {
		t.Fatalf("send: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := client.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if reply.Type != wire.TypeFileResponse {
		t.Fatalf("expected fileResponse error reply, got %s", reply.Type)
	}
	var payload wire.FileResponsePayload
	reply.Decode(&payload)
	if payload.Error != "Permission denied for delete-files" {
		t.Fatalf("error = %q, want %q", payload.Error, "Permission denied for delete-files")
	}
	sess.Close()
}

func TestDispatcherLogsPermissionDenied(t *testing.T) {
	sess, client := newTestSession(t, nil)
	defer client.Close()

	aud := newTestLogger(t)
	d := New(nil, aud)
	d.Register(wire.TypeFileRequest, func(s *sessionmgr.Session, msg wire.Message) (wire.Message, error) {
		t.Fatal("handler should not be invoked without permission")
		return wire.Message{}, nil
	})

	go d.Run(sess)

	req, _ := wire.NewMessage(wire.TypeFileRequest, wire.FileRequestPayload{Operation: wire.FileOpDelete, Path: "/etc"})
	if err := client.Send(req); err != nil {
		t.Fatalf("send: %v", err)
	}
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := client.Recv(); err != nil {
		t.Fatalf("recv: %v", err)
	}
	sess.Close()

	entries := aud.Query(audit.Filter{Action: "permissionDenied"})
	if len(entries) != 1 {
		t.Fatalf("expected 1 permissionDenied entry, got %d", len(entries))
	}
	if entries[0].Result != audit.ResultDenied {
		t.Fatalf("result = %q, want %q", entries[0].Result, audit.ResultDenied)
	}
}

func TestDispatcherLogsCommandBlockedForNetworkProxy(t *testing.T) {
	sess, client := newTestSession(t, []sessionmgr.Permission{sessionmgr.PermissionNetworkAccess})
	defer client.Close()

	aud := newTestLogger(t)
	d := New(nil, aud)
	// networkProxyRequest is never registered; it falls through to the
	// feature-disabled path even when the caller holds the permission.
	go d.Run(sess)

	req, _ := wire.NewMessage(wire.TypeNetworkProxyRequest, wire.NetworkProxyRequestPayload{})
	if err := client.Send(req); err != nil {
		t.Fatalf("send: %v", err)
	}
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := client.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if reply.Type != wire.TypeError {
		t.Fatalf("expected error, got %s", reply.Type)
	}
	var payload wire.ErrorPayload
	reply.Decode(&payload)
	if payload.Message != "feature disabled: network proxy" {
		t.Fatalf("error = %q, want the feature-disabled message", payload.Message)
	}
	sess.Close()

	entries := aud.Query(audit.Filter{Action: "commandBlocked"})
	if len(entries) != 1 {
		t.Fatalf("expected 1 commandBlocked entry, got %d", len(entries))
	}
	if entries[0].Result != audit.ResultBlocked {
		t.Fatalf("result = %q, want %q", entries[0].Result, audit.ResultBlocked)
	}
}

func TestDispatcherLogsClientConnected(t *testing.T) {
	sess, client := newTestSession(t, nil)
	defer client.Close()

	aud := newTestLogger(t)
	d := New(nil, aud)
	go d.Run(sess)

	// Give Run a moment to reach its clientConnected emission before
	// closing the session out from under it.
	req, _ := wire.NewMessage(wire.TypePing, nil)
	client.Send(req)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	client.Recv()
	sess.Close()

	entries := aud.Query(audit.Filter{Action: "clientConnected"})
	if len(entries) != 1 {
		t.Fatalf("expected 1 clientConnected entry, got %d", len(entries))
	}
}

func TestDispatcherPingPong(t *testing.T) {
	sess, client := newTestSession(t, nil)
	defer client.Close()

	d := New(nil, nil)
	go d.Run(sess)

	ping, _ := wire.NewMessage(wire.TypePing, nil)
	if err := client.Send(ping); err != nil {
		t.Fatalf("send: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := client.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if reply.Type != wire.TypePong {
		t.Fatalf("expected pong, got %s", reply.Type)
	}
	sess.Close()
}
