package screen

import (
	"testing"
	"time"

	"github.com/thea-remote/hostd/internal/platform"
	"github.com/thea-remote/hostd/internal/wire"
)

func newTestCapturer() (platform.Capturer, error) {
	return platform.NewSyntheticCapturer(320, 240), nil
}

func TestStreamLifecycleIdleRunningIdle(t *testing.T) {
	var frames int
	sink := func(f wire.ScreenFramePayload, exempt bool) { frames++ }

	capturer, _ := newTestCapturer()
	s := NewStream("s1", capturer, sink)
	if s.State() != StateIdle {
		t.Fatal("expected initial state Idle")
	}
	if err := s.Start(10, 0.8, 1.0, wire.ProfileBalanced); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.State() != StateRunning {
		t.Fatal("expected Running after Start")
	}

	time.Sleep(150 * time.Millisecond)

	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if s.State() != StateIdle {
		t.Fatal("expected Idle after Stop")
	}
	if frames == 0 {
		t.Fatal("expected at least one frame produced")
	}

	// stopStream is idempotent.
	if err := s.Stop(); err != nil {
		t.Fatalf("second stop should succeed: %v", err)
	}
}

func TestStreamStartTwiceRejected(t *testing.T) {
	capturer, _ := newTestCapturer()
	s := NewStream("s1", capturer, func(wire.ScreenFramePayload, bool) {})
	if err := s.Start(10, 0.8, 1.0, wire.ProfileBalanced); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	if err := s.Start(10, 0.8, 1.0, wire.ProfileBalanced); err == nil {
		t.Fatal("expected error starting an already-running stream")
	}
}

func TestAdaptiveBitrateClampsAndThresholds(t *testing.T) {
	a := NewAdaptiveBitrate(paramsFor(wire.ProfileBalanced))

	target, changed := a.Adjust(1_000_000) // 0.8*1M = 800k, within range
	if !changed {
		t.Fatal("expected first adjustment to change")
	}
	if target != 800_000 {
		t.Fatalf("expected 800000, got %d", target)
	}

	// A tiny change (<10%) should not trigger reconfiguration.
	_, changed = a.Adjust(1_010_000)
	if changed {
		t.Fatal("expected small change to be ignored")
	}

	// Large change should trigger.
	target, changed = a.Adjust(5_000_000)
	if !changed {
		t.Fatal("expected large change to trigger reconfiguration")
	}
	if target != 4_000_000 {
		t.Fatalf("expected 4000000, got %d", target)
	}
}

func TestAdaptiveBitrateRespectsMinimumFloor(t *testing.T) {
	a := NewAdaptiveBitrate(paramsFor(wire.ProfilePerformance))
	target, _ := a.Adjust(1) // near-zero bandwidth
	if target != minBitrate {
		t.Fatalf("expected floor of %d, got %d", minBitrate, target)
	}
}

func TestServiceOneShotCapture(t *testing.T) {
	svc := NewService(newTestCapturer)
	req, _ := wire.NewMessage(wire.TypeScreenRequest, wire.ScreenRequestPayload{
		Operation: wire.ScreenOpCapture,
		Target:    wire.CaptureTargetFullScreen,
	})
	reply, err := svc.Handle("sess-1", req, func(wire.ScreenFramePayload, bool) {})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	var resp wire.ScreenResponsePayload
	reply.Decode(&resp)
	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if len(resp.Data) == 0 {
		t.Fatal("expected encoded frame data")
	}
}

func TestServiceRejectsSecondStream(t *testing.T) {
	svc := NewService(newTestCapturer)
	start, _ := wire.NewMessage(wire.TypeScreenRequest, wire.ScreenRequestPayload{
		Operation: wire.ScreenOpStartStream, FPS: 10,
	})
	reply, err := svc.Handle("sess-1", start, func(wire.ScreenFramePayload, bool) {})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	var resp wire.ScreenResponsePayload
	reply.Decode(&resp)
	if resp.Error != "" {
		t.Fatalf("unexpected error starting stream: %s", resp.Error)
	}
	defer svc.StopSession("sess-1")

	reply2, _ := svc.Handle("sess-1", start, func(wire.ScreenFramePayload, bool) {})
	var resp2 wire.ScreenResponsePayload
	reply2.Decode(&resp2)
	if resp2.Error == "" {
		t.Fatal("expected error starting a second stream on the same session")
	}
}
