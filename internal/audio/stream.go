package audio

import (
	"context"
	"sync"

	"github.com/thea-remote/hostd/internal/platform"
	"github.com/thea-remote/hostd/internal/wire"
)

// FrameSink receives produced audio chunks for a session's outgoing
// queue. Audio frames are never exempt from backpressure: a dropped
// chunk is an audible glitch, not a broken connection.
type FrameSink func(frame wire.AudioFramePayload)

// Stream drains an AudioCapturer and pushes chunks to sink until
// stopped.
type Stream struct {
	capturer platform.AudioCapturer
	sink     FrameSink

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewStream(capturer platform.AudioCapturer, sink FrameSink) *Stream {
	return &Stream{capturer: capturer, sink: sink}
}

func (s *Stream) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.run(ctx)
}

func (s *Stream) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.capturer.Close()
}

func (s *Stream) run(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		data, err := s.capturer.ReadChunk()
		if err != nil {
			return
		}
		s.sink(wire.AudioFramePayload{
			Data:       data,
			SampleRate: s.capturer.SampleRate(),
			Channels:   s.capturer.Channels(),
		})
	}
}
