// Package inventory implements the inventoryRequest variant: a minimal
// host identification snapshot (OS and architecture) distinct from the
// richer process/hardware detail systemRequest::getSystemInfo returns.
package inventory

import (
	"runtime"

	"github.com/thea-remote/hostd/internal/wire"
)

// Service answers inventoryRequest with the running binary's GOOS/GOARCH.
type Service struct{}

func New() *Service {
	return &Service{}
}

// Handle implements dispatcher.HandlerFunc's payload shape (no session
// dependency; wrapped by an adapter closure at registration time).
func (s *Service) Handle(msg wire.Message) (wire.Message, error) {
	return wire.NewMessage(wire.TypeInventoryResponse, wire.InventoryResponsePayload{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	})
}
