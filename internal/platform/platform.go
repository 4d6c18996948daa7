// Package platform defines the capability interfaces the host's
// services depend on for OS-level screen, input, clipboard, recording
// and system control. Concrete backends are swapped per build target;
// this package only holds the interfaces and a synthetic fallback
// implementation used when no native backend is wired in.
package platform

import (
	"image"
	"time"
)

// Capturer captures the screen or a region of it as an RGBA image.
type Capturer interface {
	Capture() (*image.RGBA, error)
	CaptureRegion(x, y, width, height int) (*image.RGBA, error)
	Bounds() (width, height int, err error)
	Close() error
}

// CursorPosition reports the system cursor's current location.
type CursorPosition struct {
	X, Y    int
	Visible bool
}

// CursorProvider is implemented by capturers that can report cursor
// position independent of the captured frame.
type CursorProvider interface {
	Cursor() (CursorPosition, error)
}

// InputEvent is a decoded input request ready for injection.
type InputEvent struct {
	Kind    string
	X, Y    int
	Button  string
	DeltaX  int
	DeltaY  int
	KeyCode int
}

// InputPoster injects synthetic input events into the OS input queue.
type InputPoster interface {
	Post(e InputEvent) error
}

// Clipboard reads and writes the OS clipboard. Image data is opaque
// encoded bytes (e.g. PNG) plus a format tag; backends that cannot
// hold image data return an empty image with a nil error.
type Clipboard interface {
	GetText() (string, error)
	SetText(text string) error
	GetImage() (data []byte, format string, err error)
	SetImage(data []byte, format string) error
}

// SystemControl performs host power-state transitions.
type SystemControl interface {
	Reboot() error
	Shutdown() error
	Logout() error
}

// Recorder captures the screen to an encoded video file on disk,
// independent of the live streaming pipeline.
type Recorder interface {
	Start(outputPath string) error
	Stop() (durationSeconds float64, sizeBytes int64, err error)
}

// AudioCapturer captures a chunk of PCM audio from the host's default
// output/input device. SampleRate and Channels describe the format of
// the bytes ReadChunk returns.
type AudioCapturer interface {
	ReadChunk() (data []byte, err error)
	SampleRate() int
	Channels() int
	Close() error
}

// Now exists so capture backends can be exercised deterministically in
// tests without depending on wall-clock time directly.
var Now = time.Now
