package sysservice

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ConfirmFunc is the host's external confirmation callback: given a
// human-readable description of the requested action, it returns
// whether the operator approved it. Implementations must respect the
// passed timeout and return false if it elapses.
type ConfirmFunc func(description string, timeout time.Duration) bool

const defaultConfirmTimeout = 60 * time.Second

// confirmationGate tracks pending confirmation requests and drives
// the generate-id/await-result flow against a host-supplied callback.
type confirmationGate struct {
	confirm ConfirmFunc

	mu      sync.Mutex
	pending map[string]struct{}
}

func newConfirmationGate(confirm ConfirmFunc) *confirmationGate {
	return &confirmationGate{confirm: confirm, pending: make(map[string]struct{})}
}

// request generates a confirmation id, registers it as pending, calls
// the host callback, and returns the host's decision. Timing out is
// treated as a denial.
func (g *confirmationGate) request(description string) (id string, approved bool) {
	id = uuid.NewString()
	g.mu.Lock()
	g.pending[id] = struct{}{}
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		delete(g.pending, id)
		g.mu.Unlock()
	}()

	if g.confirm == nil {
		return id, false
	}
	return id, g.confirm(description, defaultConfirmTimeout)
}
