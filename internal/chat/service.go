// Package chat relays chat messages between sessions connected to the
// same host. Unlike the request/response services, chat carries no
// paired response: delivery is a broadcast push to every other live
// session.
package chat

import (
	"fmt"

	"github.com/thea-remote/hostd/internal/dispatcher"
	"github.com/thea-remote/hostd/internal/sessionmgr"
	"github.com/thea-remote/hostd/internal/wire"
)

// Pusher is the subset of *dispatcher.Dispatcher chat needs, named so
// tests can supply a fake without standing up a live writer goroutine.
type Pusher interface {
	Push(sess *sessionmgr.Session, msg wire.Message, exempt bool)
}

var _ Pusher = (*dispatcher.Dispatcher)(nil)

// Service broadcasts chat messages to every other session the manager
// currently tracks.
type Service struct {
	manager *sessionmgr.Manager
	pusher  Pusher
}

func New(manager *sessionmgr.Manager, pusher Pusher) *Service {
	return &Service{manager: manager, pusher: pusher}
}

// Handle implements dispatcher.HandlerFunc for the chat variant: it
// relays msg to every other live session and produces no direct reply
// to the sender.
func (s *Service) Handle(sender *sessionmgr.Session, msg wire.Message) (wire.Message, error) {
	var payload wire.ChatPayload
	if err := msg.Decode(&payload); err != nil {
		return wire.Message{}, fmt.Errorf("chat: decode payload: %w", err)
	}

	for _, sess := range s.manager.All() {
		if sess.ID == sender.ID {
			continue
		}
		s.pusher.Push(sess, msg, true)
	}
	return wire.Message{}, nil
}
