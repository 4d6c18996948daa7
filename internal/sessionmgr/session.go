package sessionmgr

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/thea-remote/hostd/internal/wire"
)

// ClientDescriptor is the peer identity snapshot taken at accept time
// and refined once the client sends its auth response.
type ClientDescriptor struct {
	Name       string
	DeviceKind string
	Address    string
}

// Session is exactly one authenticated (or authenticating) TCP/TLS
// conversation; a session owns its socket.
type Session struct {
	ID              string
	Conn            *wire.Conn
	CreatedAt       time.Time
	Client          ClientDescriptor
	SessionKey      []byte // optional 32-byte AES-GCM key, set once derived

	authenticated   atomic.Bool
	authenticatedAt atomic.Int64 // unix nano; 0 means unset

	mu          sync.RWMutex
	permissions PermissionSet
	lastActivity time.Time

	done     chan struct{}
	closeOnce sync.Once
}

// NewSession allocates a session in the Accepted state for a freshly
// accepted connection.
func NewSession(id string, conn *wire.Conn, client ClientDescriptor) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		Conn:         conn,
		CreatedAt:    now,
		Client:       client,
		permissions:  make(PermissionSet),
		lastActivity: now,
		done:         make(chan struct{}),
	}
}

// IsAuthenticated reports whether auth-success has been sent.
func (s *Session) IsAuthenticated() bool {
	return s.authenticated.Load()
}

// Authenticate marks the session authenticated with the given granted
// permission set. Permissions are monotone: set once, never elevated;
// a second call is a no-op on the permission set but refreshes nothing.
func (s *Session) Authenticate(perms PermissionSet) {
	if !s.authenticated.CompareAndSwap(false, true) {
		return
	}
	s.authenticatedAt.Store(time.Now().UnixNano())
	s.mu.Lock()
	s.permissions = perms
	s.mu.Unlock()
}

// AuthenticatedAt returns the authentication time, or the zero Time if
// not yet authenticated.
func (s *Session) AuthenticatedAt() time.Time {
	ns := s.authenticatedAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Permissions returns the session's granted permission set.
func (s *Session) Permissions() PermissionSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.permissions
}

// HasPermission reports whether p is in the session's granted set.
func (s *Session) HasPermission(p Permission) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.permissions.Has(p)
}

// Touch records activity, resetting the idle-timeout clock.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// IdleFor reports how long the session has been idle.
func (s *Session) IdleFor() time.Duration {
	s.mu.RLock()
	last := s.lastActivity
	s.mu.RUnlock()
	return time.Since(last)
}

// Done returns a channel closed when the session is terminated.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close terminates the session's socket and signals Done. Safe to call
// more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.Conn.Close()
	})
}
