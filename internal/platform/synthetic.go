package platform

import (
	"image"
	"image/color"
	"sync"
)

// SyntheticCapturer is the platform-independent fallback capturer used
// when no native backend (DXGI, CoreGraphics, X11) is wired in for the
// current build. It renders a deterministic test pattern: a solid
// background with a moving marker rectangle, so the streaming pipeline
// (diffing, encoding, keyframe cadence) is fully exercisable in a
// headless build or test environment.
type SyntheticCapturer struct {
	mu     sync.Mutex
	width  int
	height int
	tick   int
}

// NewSyntheticCapturer returns a capturer producing width x height frames.
func NewSyntheticCapturer(width, height int) *SyntheticCapturer {
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}
	return &SyntheticCapturer{width: width, height: height}
}

// Capture renders the next frame of the test pattern.
func (c *SyntheticCapturer) Capture() (*image.RGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	img := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	bg := color.RGBA{R: 32, G: 32, B: 48, A: 255}
	for y := 0; y < c.height; y++ {
		for x := 0; x < c.width; x++ {
			img.Set(x, y, bg)
		}
	}
	markerSize := 40
	x0 := c.tick % (c.width - markerSize)
	y0 := (c.height - markerSize) / 2
	marker := color.RGBA{R: 220, G: 120, B: 40, A: 255}
	for y := y0; y < y0+markerSize; y++ {
		for x := x0; x < x0+markerSize; x++ {
			img.Set(x, y, marker)
		}
	}
	c.tick += 4
	return img, nil
}

// CaptureRegion renders the test pattern and crops to the region.
func (c *SyntheticCapturer) CaptureRegion(x, y, width, height int) (*image.RGBA, error) {
	full, err := c.Capture()
	if err != nil {
		return nil, err
	}
	rect := image.Rect(x, y, x+width, y+height).Intersect(full.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for yy := 0; yy < rect.Dy(); yy++ {
		for xx := 0; xx < rect.Dx(); xx++ {
			out.Set(xx, yy, full.At(rect.Min.X+xx, rect.Min.Y+yy))
		}
	}
	return out, nil
}

// Bounds returns the capturer's fixed frame dimensions.
func (c *SyntheticCapturer) Bounds() (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height, nil
}

// Close is a no-op; the synthetic capturer holds no OS resources.
func (c *SyntheticCapturer) Close() error { return nil }

// Cursor reports a synthetic cursor tracking the moving marker.
func (c *SyntheticCapturer) Cursor() (CursorPosition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CursorPosition{X: c.tick % c.width, Y: c.height / 2, Visible: true}, nil
}
