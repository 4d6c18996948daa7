// Package audio implements the audioRequest variant: start/stop audio
// capture streaming, piggy-backed on the dispatcher's outgoing queue
// the same way screen frames are, one stream per session.
package audio

import (
	"fmt"
	"sync"

	"github.com/thea-remote/hostd/internal/platform"
	"github.com/thea-remote/hostd/internal/wire"
)

// Service owns the per-session audio stream table.
type Service struct {
	newCapturer func() (platform.AudioCapturer, error)

	mu      sync.Mutex
	streams map[string]*Stream
}

func NewService(newCapturer func() (platform.AudioCapturer, error)) *Service {
	return &Service{
		newCapturer: newCapturer,
		streams:     make(map[string]*Stream),
	}
}

// Handle implements dispatcher.HandlerFunc for wire.TypeAudioRequest.
// sink receives frames produced by a started stream for sessionID.
func (s *Service) Handle(sessionID string, msg wire.Message, sink FrameSink) (wire.Message, error) {
	var req wire.AudioRequestPayload
	if err := msg.Decode(&req); err != nil {
		return wire.Message{}, fmt.Errorf("audio: decode request: %w", err)
	}

	switch req.Operation {
	case "start":
		return s.start(sessionID, sink)
	case "stop":
		return s.stop(sessionID)
	default:
		return wire.NewMessage(wire.TypeAudioResponse, wire.AudioResponsePayload{
			Error: fmt.Sprintf("audio: unsupported operation %q", req.Operation),
		})
	}
}

func (s *Service) start(sessionID string, sink FrameSink) (wire.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.streams[sessionID]; ok {
		return wire.NewMessage(wire.TypeAudioResponse, wire.AudioResponsePayload{
			Error: "audio stream already running for this session",
		})
	}
	capturer, err := s.newCapturer()
	if err != nil {
		return wire.Message{}, fmt.Errorf("audio: acquire capturer: %w", err)
	}
	stream := NewStream(capturer, sink)
	s.streams[sessionID] = stream
	stream.Start()
	return wire.NewMessage(wire.TypeAudioResponse, wire.AudioResponsePayload{})
}

func (s *Service) stop(sessionID string) (wire.Message, error) {
	s.mu.Lock()
	stream, ok := s.streams[sessionID]
	delete(s.streams, sessionID)
	s.mu.Unlock()
	if !ok {
		// stop is idempotent: stopping a never-started stream succeeds.
		return wire.NewMessage(wire.TypeAudioResponse, wire.AudioResponsePayload{})
	}
	stream.Stop()
	return wire.NewMessage(wire.TypeAudioResponse, wire.AudioResponsePayload{})
}

// StopSession stops and discards any active audio stream for
// sessionID, used by session-termination cleanup.
func (s *Service) StopSession(sessionID string) {
	s.mu.Lock()
	stream, ok := s.streams[sessionID]
	delete(s.streams, sessionID)
	s.mu.Unlock()
	if ok {
		stream.Stop()
	}
}
