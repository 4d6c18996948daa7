package audio

import (
	"sync"
	"testing"
	"time"

	"github.com/thea-remote/hostd/internal/platform"
	"github.com/thea-remote/hostd/internal/wire"
)

func newTestService() *Service {
	return NewService(func() (platform.AudioCapturer, error) {
		return platform.NewSyntheticAudioCapturer(), nil
	})
}

func TestStartProducesFrames(t *testing.T) {
	svc := newTestService()

	var mu sync.Mutex
	var frames []wire.AudioFramePayload
	sink := func(f wire.AudioFramePayload) {
		mu.Lock()
		frames = append(frames, f)
		mu.Unlock()
	}

	msg, _ := wire.NewMessage(wire.TypeAudioRequest, wire.AudioRequestPayload{Operation: "start"})
	reply, err := svc.Handle("sess-1", msg, sink)
	if err != nil {
		t.Fatalf("Handle start: %v", err)
	}
	var resp wire.AudioResponsePayload
	if err := reply.Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "" {
		t.Fatalf("expected no error, got %q", resp.Error)
	}

	time.Sleep(100 * time.Millisecond)

	stopMsg, _ := wire.NewMessage(wire.TypeAudioRequest, wire.AudioRequestPayload{Operation: "stop"})
	if _, err := svc.Handle("sess-1", stopMsg, sink); err != nil {
		t.Fatalf("Handle stop: %v", err)
	}

	mu.Lock()
	n := len(frames)
	mu.Unlock()
	if n == 0 {
		t.Fatal("expected at least one audio frame to be produced")
	}
}

func TestStartTwiceRejected(t *testing.T) {
	svc := newTestService()
	sink := func(wire.AudioFramePayload) {}

	msg, _ := wire.NewMessage(wire.TypeAudioRequest, wire.AudioRequestPayload{Operation: "start"})
	if _, err := svc.Handle("sess-1", msg, sink); err != nil {
		t.Fatalf("first start: %v", err)
	}
	defer svc.StopSession("sess-1")

	reply, err := svc.Handle("sess-1", msg, sink)
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	var resp wire.AudioResponsePayload
	if err := reply.Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == "" {
		t.Fatal("expected second start to be rejected")
	}
}

func TestStopWithoutStartIsIdempotent(t *testing.T) {
	svc := newTestService()
	msg, _ := wire.NewMessage(wire.TypeAudioRequest, wire.AudioRequestPayload{Operation: "stop"})
	reply, err := svc.Handle("sess-1", msg, func(wire.AudioFramePayload) {})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	var resp wire.AudioResponsePayload
	if err := reply.Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "" {
		t.Fatalf("expected idempotent stop to succeed, got %q", resp.Error)
	}
}
