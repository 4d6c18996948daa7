package platform

import (
	"fmt"
	"sync"
	"time"
)

// NoopInputPoster discards injected input; used on builds with no
// native input-injection backend wired in.
type NoopInputPoster struct{}

func (NoopInputPoster) Post(InputEvent) error { return nil }

// MemoryClipboard is an in-process clipboard fallback for builds
// without access to the OS clipboard.
type MemoryClipboard struct {
	mu          sync.RWMutex
	text        string
	image       []byte
	imageFormat string
}

func (c *MemoryClipboard) GetText() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.text, nil
}

func (c *MemoryClipboard) SetText(text string) error {
	c.mu.Lock()
	c.text = text
	c.mu.Unlock()
	return nil
}

func (c *MemoryClipboard) GetImage() ([]byte, string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.image, c.imageFormat, nil
}

func (c *MemoryClipboard) SetImage(data []byte, format string) error {
	c.mu.Lock()
	c.image = data
	c.imageFormat = format
	c.mu.Unlock()
	return nil
}

// NoopSystemControl returns an error for every power-state transition;
// used on builds with no native system-control backend wired in.
type NoopSystemControl struct{}

func (NoopSystemControl) Reboot() error   { return fmt.Errorf("platform: reboot not supported on this build") }
func (NoopSystemControl) Shutdown() error { return fmt.Errorf("platform: shutdown not supported on this build") }
func (NoopSystemControl) Logout() error   { return fmt.Errorf("platform: logout not supported on this build") }

// SyntheticAudioCapturer produces silent 16-bit PCM chunks at a fixed
// rate; used on builds with no native audio-capture backend wired in,
// and in tests that exercise the streaming pipeline without real audio.
type SyntheticAudioCapturer struct {
	sampleRate int
	channels   int
	chunkSize  int
}

func NewSyntheticAudioCapturer() *SyntheticAudioCapturer {
	return &SyntheticAudioCapturer{sampleRate: 48000, channels: 2, chunkSize: 4096}
}

func (c *SyntheticAudioCapturer) ReadChunk() ([]byte, error) {
	time.Sleep(20 * time.Millisecond)
	return make([]byte, c.chunkSize), nil
}

func (c *SyntheticAudioCapturer) SampleRate() int { return c.sampleRate }
func (c *SyntheticAudioCapturer) Channels() int   { return c.channels }
func (c *SyntheticAudioCapturer) Close() error    { return nil }
