// Package annotation relays screen-overlay drawing events (shapes,
// clears) from one session to every other session viewing the same
// host, so all participants see a consistent annotation layer.
package annotation

import (
	"fmt"

	"github.com/thea-remote/hostd/internal/sessionmgr"
	"github.com/thea-remote/hostd/internal/wire"
)

// Pusher is the subset of *dispatcher.Dispatcher annotation needs.
type Pusher interface {
	Push(sess *sessionmgr.Session, msg wire.Message, exempt bool)
}

// Service validates and relays annotationRequest messages.
type Service struct {
	manager *sessionmgr.Manager
	pusher  Pusher
}

func New(manager *sessionmgr.Manager, pusher Pusher) *Service {
	return &Service{manager: manager, pusher: pusher}
}

// Handle implements dispatcher.HandlerFunc for annotationRequest: it
// relays the draw/clear event to every other live session and
// acknowledges the sender.
func (s *Service) Handle(sender *sessionmgr.Session, msg wire.Message) (wire.Message, error) {
	var req wire.AnnotationRequestPayload
	if err := msg.Decode(&req); err != nil {
		return wire.Message{}, fmt.Errorf("annotation: decode request: %w", err)
	}

	switch req.Operation {
	case wire.AnnotationOpDraw, wire.AnnotationOpClear:
		// fall through to relay below
	default:
		return wire.NewMessage(wire.TypeAnnotationResponse, wire.AnnotationResponsePayload{
			Error: fmt.Sprintf("annotation: unsupported operation %q", req.Operation),
		})
	}

	for _, sess := range s.manager.All() {
		if sess.ID == sender.ID {
			continue
		}
		s.pusher.Push(sess, msg, true)
	}

	return wire.NewMessage(wire.TypeAnnotationResponse, wire.AnnotationResponsePayload{})
}
