package chat

import (
	"testing"
	"time"

	"github.com/thea-remote/hostd/internal/sessionmgr"
	"github.com/thea-remote/hostd/internal/wire"
)

type fakePusher struct {
	pushed []*sessionmgr.Session
}

func (f *fakePusher) Push(sess *sessionmgr.Session, msg wire.Message, exempt bool) {
	f.pushed = append(f.pushed, sess)
}

func TestHandleBroadcastsToOtherSessionsOnly(t *testing.T) {
	manager := sessionmgr.New(10, time.Minute)
	sender := sessionmgr.NewSession("sender", nil, sessionmgr.ClientDescriptor{Name: "alice"})
	other1 := sessionmgr.NewSession("other-1", nil, sessionmgr.ClientDescriptor{Name: "bob"})
	other2 := sessionmgr.NewSession("other-2", nil, sessionmgr.ClientDescriptor{Name: "carol"})
	for _, s := range []*sessionmgr.Session{sender, other1, other2} {
		if err := manager.CreateSession(s); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	pusher := &fakePusher{}
	svc := New(manager, pusher)

	msg, _ := wire.NewMessage(wire.TypeChat, wire.ChatPayload{From: "alice", Text: "hello"})
	reply, err := svc.Handle(sender, msg)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if reply.Type != "" {
		t.Fatalf("expected no direct reply to the sender, got type %q", reply.Type)
	}

	if len(pusher.pushed) != 2 {
		t.Fatalf("expected broadcast to 2 other sessions, got %d", len(pusher.pushed))
	}
	for _, s := range pusher.pushed {
		if s.ID == sender.ID {
			t.Fatal("sender must not receive its own chat message back")
		}
	}
}
