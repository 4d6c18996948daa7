// Package screen implements the one-shot capture and streaming
// pipeline: Idle -> Running -> Stopping -> Idle per session, with
// adaptive bitrate and keyframe-on-demand.
package screen

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/thea-remote/hostd/internal/platform"
	"github.com/thea-remote/hostd/internal/wire"
)

// State is a stream's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopping
)

// FrameSink receives produced frames and their exemption status for
// the session's outgoing queue (keyframes are exempt from eviction).
type FrameSink func(frame wire.ScreenFramePayload, exempt bool)

// Stream drives one capture+encode+emit+pace loop for a session.
type Stream struct {
	id       string
	capturer platform.Capturer
	encoder  *Encoder
	sink     FrameSink

	mu       sync.Mutex
	state    State
	fps      int
	scale    float64
	profile  wire.QualityProfile
	adaptive *AdaptiveBitrate

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStream constructs an idle stream bound to capturer/encoder/sink.
func NewStream(id string, capturer platform.Capturer, sink FrameSink) *Stream {
	return &Stream{
		id:       id,
		capturer: capturer,
		encoder:  NewEncoder(),
		sink:     sink,
		state:    StateIdle,
		fps:      30,
		scale:    1.0,
		profile:  wire.ProfileBalanced,
		adaptive: NewAdaptiveBitrate(paramsFor(wire.ProfileBalanced)),
	}
}

// State returns the stream's current lifecycle state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start transitions Idle -> Running and launches the pipeline
// goroutine. Returns an error if the stream is already running.
func (s *Stream) Start(fps int, quality float64, scale float64, profile wire.QualityProfile) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("screen: stream %s already running", s.id)
	}
	params := paramsFor(profile)
	if fps <= 0 {
		fps = params.fps
	}
	s.fps = clampInt(fps, 1, params.fps)
	if scale <= 0 || scale > 1 {
		scale = 1.0
	}
	s.scale = scale
	s.profile = profile
	s.adaptive = NewAdaptiveBitrate(params)
	s.encoder.SetBitrate(params.maxBitrate)
	s.state = StateRunning
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)
	return nil
}

// Stop transitions Running -> Stopping -> Idle. Idempotent: stopping
// an already-idle stream is a no-op success.
func (s *Stream) Stop() error {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
	return nil
}

// SetFPS updates the target frame rate of a running stream.
func (s *Stream) SetFPS(fps int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	params := paramsFor(s.profile)
	s.fps = clampInt(fps, 1, params.fps)
}

// RequestKeyframe asks the pipeline to flush and resume with a fresh
// keyframe. A no-op on the motion-JPEG backend: every frame it
// produces is already an independent keyframe.
func (s *Stream) RequestKeyframe() {
	s.encoder.ForceKeyframe()
}

// AdjustBandwidth feeds a bandwidth estimate (bytes/sec from the
// quality monitor) into the adaptive-bitrate controller and
// reconfigures the encoder if the recommended bitrate moved enough.
func (s *Stream) AdjustBandwidth(bandwidthBps int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if target, changed := s.adaptive.Adjust(bandwidthBps); changed {
		s.encoder.SetBitrate(target)
	}
}

func (s *Stream) run(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		start := time.Now()
		frame, exempt, err := s.produceFrame()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}
		s.sink(frame, exempt)

		s.mu.Lock()
		fps := s.fps
		s.mu.Unlock()
		target := time.Second / time.Duration(fps)
		elapsed := time.Since(start)
		if sleep := target - elapsed; sleep > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(sleep):
			}
		}
	}
}

func (s *Stream) produceFrame() (wire.ScreenFramePayload, bool, error) {
	img, err := s.capturer.Capture()
	if err != nil {
		return wire.ScreenFramePayload{}, false, fmt.Errorf("screen: capture: %w", err)
	}

	data, err := s.encoder.Encode(img)
	if err != nil {
		return wire.ScreenFramePayload{}, false, fmt.Errorf("screen: encode: %w", err)
	}

	cursor := wire.CursorInfo{}
	if cp, ok := s.capturer.(platform.CursorProvider); ok {
		if pos, err := cp.Cursor(); err == nil {
			cursor = wire.CursorInfo{X: pos.X, Y: pos.Y, Visible: pos.Visible}
		}
	}

	bounds := img.Bounds()
	// Motion-JPEG has no inter-frame prediction: every frame is a
	// keyframe, so every frame is exempt from backpressure eviction.
	return wire.ScreenFramePayload{
		StreamID:   s.id,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Format:     "jpeg",
		Data:       data,
		IsKeyFrame: true,
		Cursor:     cursor,
	}, true, nil
}
