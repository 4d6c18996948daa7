// Package recording implements per-session screen recording: a
// motion-JPEG frame container on disk plus a JSON metadata index,
// with optional remote archival once a recording completes.
package recording

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/jpeg"
	"os"
)

// container magic identifies a recording file written by this package.
// Frames are stored as a sequence of (uint32 length, JPEG bytes)
// records, mirroring the length-prefixed framing used by the wire
// protocol. No ISO-BMFF box structure is produced; see DESIGN.md for
// why a full MP4 muxer was not wired in.
var containerMagic = [4]byte{'T', 'H', 'R', '1'}

// writer appends JPEG-encoded frames to a single recording file.
type writer struct {
	file       *os.File
	buf        *bufio.Writer
	frameCount int
	width      int
	height     int
}

func newWriter(path string) (*writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("recording: create file: %w", err)
	}
	buf := bufio.NewWriter(f)
	if _, err := buf.Write(containerMagic[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("recording: write header: %w", err)
	}
	return &writer{file: f, buf: buf}, nil
}

// writeFrame JPEG-encodes img and appends it as a length-prefixed
// record. Only raw pixel buffers are accepted here; already-encoded
// frames from the live stream are never muxed into recordings.
func (w *writer) writeFrame(img image.Image) error {
	var frame bytes.Buffer
	if err := jpeg.Encode(&frame, img, &jpeg.Options{Quality: 85}); err != nil {
		return fmt.Errorf("recording: encode frame: %w", err)
	}

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(frame.Len()))
	if _, err := w.buf.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("recording: write frame length: %w", err)
	}
	if _, err := w.buf.Write(frame.Bytes()); err != nil {
		return fmt.Errorf("recording: write frame: %w", err)
	}

	w.frameCount++
	if b := img.Bounds(); w.width == 0 {
		w.width, w.height = b.Dx(), b.Dy()
	}
	return nil
}

func (w *writer) close() (int64, error) {
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return 0, fmt.Errorf("recording: flush: %w", err)
	}
	info, err := w.file.Stat()
	if err != nil {
		w.file.Close()
		return 0, fmt.Errorf("recording: stat: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return 0, fmt.Errorf("recording: close: %w", err)
	}
	return info.Size(), nil
}
