package sessionmgr

import (
	"fmt"
	"sync"
	"time"
)

// HistoryEntry is a bounded record of a session's lifetime, kept after
// the live session is removed.
type HistoryEntry struct {
	ID        string
	Client    ClientDescriptor
	StartedAt time.Time
	EndedAt   time.Time
	Reason    string
}

const historyCapacity = 100

// Manager holds the live session table and a bounded session-history
// ring (most recent 100).
type Manager struct {
	maxConnections int
	sessionTimeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session

	historyMu sync.Mutex
	history   []HistoryEntry

	// OnTerminate is invoked after a session is removed from the live
	// table, with the session and the termination reason. Used by the
	// dispatcher/audit log to react without sessionmgr depending on them.
	OnTerminate func(*Session, string)
}

// New constructs a Manager bounded to maxConnections live sessions, each
// idle-terminated after sessionTimeout of inactivity.
func New(maxConnections int, sessionTimeout time.Duration) *Manager {
	return &Manager{
		maxConnections: maxConnections,
		sessionTimeout: sessionTimeout,
		sessions:       make(map[string]*Session),
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CanAccept reports whether a new connection may proceed to session
// creation; the accept path must check this before creating a session
// so the table never exceeds max_connections.
func (m *Manager) CanAccept() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions) < m.maxConnections
}

// CreateSession allocates a new session, registers it in the live
// table, records its start in history, and starts its idle-timeout
// watchdog. Returns an error if max_connections would be exceeded.
func (m *Manager) CreateSession(s *Session) error {
	m.mu.Lock()
	if len(m.sessions) >= m.maxConnections {
		m.mu.Unlock()
		return fmt.Errorf("sessionmgr: max_connections reached")
	}
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.appendHistory(HistoryEntry{ID: s.ID, Client: s.Client, StartedAt: s.CreatedAt})

	go m.watchIdle(s)
	return nil
}

func (m *Manager) watchIdle(s *Session) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.Done():
			return
		case <-ticker.C:
			if s.IdleFor() >= m.sessionTimeout {
				m.TerminateSession(s.ID, "idle timeout")
				return
			}
		}
	}
}

// AuthenticateSession marks a live session authenticated with the given
// granted permission set.
func (m *Manager) AuthenticateSession(id string, perms PermissionSet) error {
	s, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("sessionmgr: unknown session %s", id)
	}
	s.Authenticate(perms)
	return nil
}

// Get returns the live session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// All returns a snapshot of all live sessions.
func (m *Manager) All() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// TerminateSession cancels the session's tasks, closes its socket,
// removes it from the live map, and updates its history record with the
// end time and reason.
func (m *Manager) TerminateSession(id string, reason string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	s.Close()
	m.closeHistory(id, reason)

	if m.OnTerminate != nil {
		m.OnTerminate(s, reason)
	}
}

// DisconnectAll terminates every live session with reason.
func (m *Manager) DisconnectAll(reason string) {
	for _, s := range m.All() {
		m.TerminateSession(s.ID, reason)
	}
}

func (m *Manager) appendHistory(e HistoryEntry) {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()
	m.history = append(m.history, e)
	if len(m.history) > historyCapacity {
		m.history = m.history[len(m.history)-historyCapacity:]
	}
}

func (m *Manager) closeHistory(id, reason string) {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].ID == id && m.history[i].EndedAt.IsZero() {
			m.history[i].EndedAt = time.Now()
			m.history[i].Reason = reason
			return
		}
	}
}

// History returns a snapshot of the bounded session-history ring, most
// recent last.
func (m *Manager) History() []HistoryEntry {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()
	out := make([]HistoryEntry, len(m.history))
	copy(out, m.history)
	return out
}
