// Package wire implements the length-prefixed, JSON-framed message
// protocol used between the host service and remote-desktop clients.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize is the largest frame accepted from the wire. ReadFrame
// rejects a larger declared length with ErrFrameTooLarge, which ends
// the session's reader loop; the session is then terminated with the
// same reason as any other read error ("connection closed"), not a
// distinct "invalid frame" reason.
const MaxFrameSize = 16 * 1024 * 1024 // 16 MiB

// ErrFrameTooLarge is returned by ReadFrame when the declared length
// exceeds MaxFrameSize.
var ErrFrameTooLarge = errors.New("wire: frame exceeds maximum size")

// ReadFrame reads one length-prefixed frame from r: a uint32 big-endian
// length followed by that many bytes. Partial reads are accumulated via
// io.ReadFull until the declared length is satisfied.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	body := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("wire: read frame body: %w", err)
		}
	}
	return body, nil
}

// WriteFrame writes body as a single length-prefixed frame to w.
func WriteFrame(w io.Writer, body []byte) error {
	if len(body) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("wire: write frame header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("wire: write frame body: %w", err)
	}
	return nil
}
