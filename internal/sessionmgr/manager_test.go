package sessionmgr

import (
	"net"
	"testing"
	"time"

	"github.com/thea-remote/hostd/internal/wire"
)

func newTestSession(t *testing.T, id string) *Session {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { client.Close() })
	return NewSession(id, wire.NewConn(server), ClientDescriptor{Name: "test", Address: "127.0.0.1"})
}

func TestCreateSessionRespectsMaxConnections(t *testing.T) {
	m := New(1, time.Hour)
	s1 := newTestSession(t, "s1")
	if err := m.CreateSession(s1); err != nil {
		t.Fatalf("CreateSession s1: %v", err)
	}
	s2 := newTestSession(t, "s2")
	if err := m.CreateSession(s2); err == nil {
		t.Fatal("expected CreateSession to refuse exceeding max_connections")
	}
	if m.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", m.Count())
	}
}

func TestAuthenticateSessionSetsPermissionsOnce(t *testing.T) {
	m := New(10, time.Hour)
	s := newTestSession(t, "s1")
	if err := m.CreateSession(s); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	perms := NewPermissionSet([]Permission{PermissionViewScreen})
	if err := m.AuthenticateSession("s1", perms); err != nil {
		t.Fatalf("AuthenticateSession: %v", err)
	}
	if !s.IsAuthenticated() {
		t.Fatal("expected session to be authenticated")
	}
	if s.AuthenticatedAt().IsZero() {
		t.Fatal("expected a non-zero AuthenticatedAt")
	}

	// Permissions are monotone: a second Authenticate call must not
	// elevate them.
	elevated := NewPermissionSet([]Permission{PermissionViewScreen, PermissionSystemControl})
	s.Authenticate(elevated)
	if s.HasPermission(PermissionSystemControl) {
		t.Fatal("permissions must not be elevated after the first authentication")
	}
}

func TestTerminateSessionRemovesFromLiveMapAndUpdatesHistory(t *testing.T) {
	m := New(10, time.Hour)
	s := newTestSession(t, "s1")
	if err := m.CreateSession(s); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	m.TerminateSession("s1", "client disconnected")

	if _, ok := m.Get("s1"); ok {
		t.Fatal("expected session to be removed from the live table")
	}
	if m.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", m.Count())
	}

	history := m.History()
	if len(history) != 1 {
		t.Fatalf("len(History()) = %d, want 1", len(history))
	}
	if history[0].Reason != "client disconnected" {
		t.Fatalf("history reason = %q", history[0].Reason)
	}
	if history[0].EndedAt.IsZero() {
		t.Fatal("expected EndedAt to be set")
	}
}

func TestDisconnectAllTerminatesEverySession(t *testing.T) {
	m := New(10, time.Hour)
	for _, id := range []string{"a", "b", "c"} {
		if err := m.CreateSession(newTestSession(t, id)); err != nil {
			t.Fatalf("CreateSession %s: %v", id, err)
		}
	}
	m.DisconnectAll("server shutdown")
	if m.Count() != 0 {
		t.Fatalf("Count() = %d, want 0 after DisconnectAll", m.Count())
	}
}

func TestPermissionIntersect(t *testing.T) {
	requested := NewPermissionSet([]Permission{PermissionViewScreen, PermissionSystemControl})
	allowed := NewPermissionSet([]Permission{PermissionViewScreen, PermissionControlScreen})
	granted := requested.Intersect(allowed)
	if !granted.Has(PermissionViewScreen) {
		t.Fatal("expected view-screen to be granted")
	}
	if granted.Has(PermissionSystemControl) {
		t.Fatal("system-control was not in the allowed set and must be dropped silently")
	}
}
