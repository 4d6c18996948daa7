package screen

import (
	"fmt"
	"sync"

	"github.com/thea-remote/hostd/internal/platform"
	"github.com/thea-remote/hostd/internal/wire"
)

// Service owns the per-session stream table and handles screenRequest
// messages. Exactly one stream per session: starting a second while
// one is already running is rejected.
type Service struct {
	newCapturer func() (platform.Capturer, error)

	mu      sync.Mutex
	streams map[string]*Stream // sessionID -> stream
}

// NewService builds a Service using newCapturer to obtain a capturer
// for each new stream. Tests and headless builds can pass a
// constructor returning a platform.SyntheticCapturer.
func NewService(newCapturer func() (platform.Capturer, error)) *Service {
	return &Service{
		newCapturer: newCapturer,
		streams:     make(map[string]*Stream),
	}
}

// Handle implements dispatcher.HandlerFunc for wire.TypeScreenRequest.
// sink receives frames produced by a started stream for sessionID.
func (s *Service) Handle(sessionID string, msg wire.Message, sink FrameSink) (wire.Message, error) {
	var req wire.ScreenRequestPayload
	if err := msg.Decode(&req); err != nil {
		return wire.Message{}, fmt.Errorf("screen: decode request: %w", err)
	}

	switch req.Operation {
	case wire.ScreenOpCapture:
		return s.handleCapture(req)
	case wire.ScreenOpStartStream:
		return s.handleStartStream(sessionID, req, sink)
	case wire.ScreenOpStopStream:
		return s.handleStopStream(sessionID)
	case wire.ScreenOpSetFPS:
		return s.handleSetFPS(sessionID, req)
	case wire.ScreenOpKeyframe:
		return s.handleKeyframe(sessionID)
	default:
		return wire.NewMessage(wire.TypeScreenResponse, wire.ScreenResponsePayload{
			Error: fmt.Sprintf("unknown screen operation %q", req.Operation),
		})
	}
}

func (s *Service) handleCapture(req wire.ScreenRequestPayload) (wire.Message, error) {
	capturer, err := s.newCapturer()
	if err != nil {
		return wire.Message{}, fmt.Errorf("screen: acquire capturer: %w", err)
	}
	defer capturer.Close()

	var img, capErr = capturer.Capture()
	if req.Target == wire.CaptureTargetRegion && req.Region != nil {
		img, capErr = capturer.CaptureRegion(req.Region.X, req.Region.Y, req.Region.Width, req.Region.Height)
	}
	if capErr != nil {
		return wire.Message{}, fmt.Errorf("screen: capture: %w", capErr)
	}

	enc := NewEncoder()
	data, err := enc.Encode(img)
	if err != nil {
		return wire.Message{}, fmt.Errorf("screen: encode: %w", err)
	}

	bounds := img.Bounds()
	return wire.NewMessage(wire.TypeScreenResponse, wire.ScreenResponsePayload{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: "jpeg",
		Data:   data,
	})
}

func (s *Service) handleStartStream(sessionID string, req wire.ScreenRequestPayload, sink FrameSink) (wire.Message, error) {
	s.mu.Lock()
	if existing, ok := s.streams[sessionID]; ok && existing.State() == StateRunning {
		s.mu.Unlock()
		return wire.NewMessage(wire.TypeScreenResponse, wire.ScreenResponsePayload{
			Error: "a stream is already running for this session",
		})
	}
	capturer, err := s.newCapturer()
	if err != nil {
		s.mu.Unlock()
		return wire.Message{}, fmt.Errorf("screen: acquire capturer: %w", err)
	}
	streamID := req.StreamID
	if streamID == "" {
		streamID = sessionID
	}
	stream := NewStream(streamID, capturer, sink)
	s.streams[sessionID] = stream
	s.mu.Unlock()

	profile := req.Profile
	if profile == "" {
		profile = wire.ProfileBalanced
	}
	if err := stream.Start(req.FPS, req.Quality, req.Scale, profile); err != nil {
		return wire.NewMessage(wire.TypeScreenResponse, wire.ScreenResponsePayload{Error: err.Error()})
	}

	return wire.NewMessage(wire.TypeScreenResponse, wire.ScreenResponsePayload{
		Message:  "stream started",
		StreamID: streamID,
	})
}

func (s *Service) handleStopStream(sessionID string) (wire.Message, error) {
	s.mu.Lock()
	stream, ok := s.streams[sessionID]
	s.mu.Unlock()
	if !ok {
		// stopStream is idempotent: stopping a never-started stream succeeds.
		return wire.NewMessage(wire.TypeScreenResponse, wire.ScreenResponsePayload{Message: "stopped"})
	}
	if err := stream.Stop(); err != nil {
		return wire.Message{}, err
	}
	return wire.NewMessage(wire.TypeScreenResponse, wire.ScreenResponsePayload{Message: "stopped"})
}

func (s *Service) handleSetFPS(sessionID string, req wire.ScreenRequestPayload) (wire.Message, error) {
	s.mu.Lock()
	stream, ok := s.streams[sessionID]
	s.mu.Unlock()
	if !ok {
		return wire.NewMessage(wire.TypeScreenResponse, wire.ScreenResponsePayload{Error: "no active stream"})
	}
	stream.SetFPS(req.FPS)
	return wire.NewMessage(wire.TypeScreenResponse, wire.ScreenResponsePayload{Message: "fps updated"})
}

func (s *Service) handleKeyframe(sessionID string) (wire.Message, error) {
	s.mu.Lock()
	stream, ok := s.streams[sessionID]
	s.mu.Unlock()
	if !ok {
		return wire.NewMessage(wire.TypeScreenResponse, wire.ScreenResponsePayload{Error: "no active stream"})
	}
	stream.RequestKeyframe()
	return wire.NewMessage(wire.TypeScreenResponse, wire.ScreenResponsePayload{Message: "keyframe requested"})
}

// StopSession stops and removes any stream belonging to sessionID; the
// dispatcher/session manager calls this from OnTerminate.
func (s *Service) StopSession(sessionID string) {
	s.mu.Lock()
	stream, ok := s.streams[sessionID]
	if ok {
		delete(s.streams, sessionID)
	}
	s.mu.Unlock()
	if ok {
		stream.Stop()
	}
}

// AdjustBandwidth forwards a bandwidth sample to sessionID's active
// stream, if any.
func (s *Service) AdjustBandwidth(sessionID string, bandwidthBps int) {
	s.mu.Lock()
	stream, ok := s.streams[sessionID]
	s.mu.Unlock()
	if ok {
		stream.AdjustBandwidth(bandwidthBps)
	}
}
