package screen

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
)

// Encoder turns captured RGBA frames into a wire-ready byte stream.
// The software fallback encodes motion-JPEG: no native H264/VP9
// backend is wired into this build, so every frame is an independent
// keyframe and ForceKeyframe is always a no-op success.
type Encoder struct {
	mu      sync.Mutex
	quality int // 1-100, derived from bitrate budget per frame
}

// NewEncoder builds a software JPEG encoder at a starting quality.
func NewEncoder() *Encoder {
	return &Encoder{quality: 80}
}

// SetBitrate maps a bitrate budget onto a JPEG quality factor. This is
// an approximation (JPEG has no true bitrate control): higher bitrate
// budgets relax quality towards 95, lower budgets tighten it towards 30.
func (e *Encoder) SetBitrate(bitrate int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case bitrate >= 15_000_000:
		e.quality = 95
	case bitrate >= 8_000_000:
		e.quality = 85
	case bitrate >= 3_000_000:
		e.quality = 70
	case bitrate >= 1_000_000:
		e.quality = 50
	default:
		e.quality = 30
	}
}

// Encode compresses frame to JPEG at the encoder's current quality.
// Every frame produced is a keyframe (isKeyFrame is always true for
// this backend), since motion-JPEG has no inter-frame prediction.
func (e *Encoder) Encode(frame *image.RGBA) ([]byte, error) {
	e.mu.Lock()
	quality := e.quality
	e.mu.Unlock()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("screen: jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

// ForceKeyframe is a no-op: every frame from this backend is already a
// keyframe.
func (e *Encoder) ForceKeyframe() {}
