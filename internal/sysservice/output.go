package sysservice

import "bytes"

// maxOutputBytes caps captured stdout/stderr per command so a chatty
// process cannot exhaust host memory.
const maxOutputBytes = 1 << 20 // 1 MiB

// limitedWriter discards writes past limit without erroring.
type limitedWriter struct {
	buf     *bytes.Buffer
	limit   int
	written int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	total := len(p)
	if w.written >= w.limit {
		return total, nil
	}
	remaining := w.limit - w.written
	if len(p) > remaining {
		p = p[:remaining]
	}
	n, err := w.buf.Write(p)
	w.written += n
	if err != nil {
		return n, err
	}
	return total, nil
}
