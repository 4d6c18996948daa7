package wire

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// Conn wraps a net.Conn (normally a *tls.Conn) with frame-at-a-time
// Message send/receive. Writes are serialized: multiple goroutines may
// call Send concurrently and frames will not interleave.
type Conn struct {
	nc net.Conn
	mu sync.Mutex
}

// NewConn wraps nc for framed Message I/O.
func NewConn(nc net.Conn) *Conn {
	return &Conn{nc: nc}
}

// Send encodes and writes m as a single frame. Safe for concurrent use.
func (c *Conn) Send(m Message) error {
	body, err := Encode(m)
	if err != nil {
		return fmt.Errorf("wire: encode message: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return WriteFrame(c.nc, body)
}

// Recv reads and decodes the next frame as a Message. Not safe for
// concurrent use from multiple readers; the dispatcher owns a single
// reader per session.
func (c *Conn) Recv() (Message, error) {
	body, err := ReadFrame(c.nc)
	if err != nil {
		return Message{}, err
	}
	return DecodeMessage(body)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.nc.Close()
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

// SetDeadline sets both read and write deadlines on the underlying
// connection.
func (c *Conn) SetDeadline(t time.Time) error {
	return c.nc.SetDeadline(t)
}

// SetReadDeadline sets the read deadline, used by the auth handshake
// to bound the wait for the client's authResponse.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.nc.SetReadDeadline(t)
}
