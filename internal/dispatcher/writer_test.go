package dispatcher

import (
	"testing"

	"github.com/thea-remote/hostd/internal/wire"
)

func TestWriterEvictsNonExemptBeforeExempt(t *testing.T) {
	w := &writer{notify: make(chan struct{}, 1), done: make(chan struct{})}

	frame, _ := wire.NewMessage(wire.TypeScreenFrame, wire.ScreenFramePayload{StreamID: "s1"})
	for i := 0; i < maxQueueSize; i++ {
		w.enqueue(frame, false)
	}
	if len(w.queue) != maxQueueSize {
		t.Fatalf("expected queue full at %d, got %d", maxQueueSize, len(w.queue))
	}

	// Queue is full of non-exempt frames; one more non-exempt frame is dropped.
	w.enqueue(frame, false)
	if len(w.queue) != maxQueueSize {
		t.Fatalf("expected non-exempt frame dropped, queue len = %d", len(w.queue))
	}

	// An exempt frame (RPC response) must still get in, evicting an old one.
	resp, _ := wire.NewMessage(wire.TypeFileResponse, wire.FileResponsePayload{Message: "ok"})
	w.enqueue(resp, true)
	if len(w.queue) != maxQueueSize {
		t.Fatalf("expected queue to stay bounded at %d, got %d", maxQueueSize, len(w.queue))
	}

	foundExempt := false
	for _, it := range w.queue {
		if it.exempt {
			foundExempt = true
		}
	}
	if !foundExempt {
		t.Fatal("exempt frame was not retained in queue")
	}
}
