package dispatcher

import (
	"sync"

	"github.com/thea-remote/hostd/internal/wire"
)

// maxQueueSize bounds the per-session outgoing frame queue. Once full,
// non-exempt items (non-keyframe screen frames) are dropped at the
// producer; exempt items (RPC responses, keyframes, auth/control
// messages) always displace the oldest non-exempt item instead.
const maxQueueSize = 64

type outgoingItem struct {
	msg    wire.Message
	exempt bool
}

// writer serializes a session's outgoing frames through a single
// goroutine so screenFrame production never blocks on slow network
// writes and never interleaves with RPC responses.
type writer struct {
	conn *wire.Conn

	mu      sync.Mutex
	queue   []outgoingItem
	lastErr error

	notify chan struct{}
	done   chan struct{}
}

func newWriter(conn *wire.Conn) *writer {
	return &writer{
		conn:   conn,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// enqueue appends msg to the outgoing queue. exempt marks frames that
// must never be dropped (RPC responses, keyframes, control messages);
// non-exempt frames (steady-state screen/audio frames) are dropped
// outright once the queue is full rather than evicting older frames of
// the same kind, keeping latency bounded.
func (w *writer) enqueue(msg wire.Message, exempt bool) {
	w.mu.Lock()
	if len(w.queue) >= maxQueueSize {
		if !exempt {
			w.mu.Unlock()
			return
		}
		evicted := false
		for i, it := range w.queue {
			if !it.exempt {
				w.queue = append(w.queue[:i], w.queue[i+1:]...)
				evicted = true
				break
			}
		}
		_ = evicted // if every queued item is exempt, queue grows; rare and self-correcting once writes drain
	}
	w.queue = append(w.queue, outgoingItem{msg: msg, exempt: exempt})
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// run drains the queue onto the connection until stopped or a write
// fails. A write failure is fatal to the session: it is recorded for
// err() and the connection is closed, which ends the reader loop.
func (w *writer) run() {
	for {
		select {
		case <-w.done:
			return
		case <-w.notify:
			for {
				w.mu.Lock()
				if len(w.queue) == 0 {
					w.mu.Unlock()
					break
				}
				item := w.queue[0]
				w.queue = w.queue[1:]
				w.mu.Unlock()

				if err := w.conn.Send(item.msg); err != nil {
					w.fail(err)
					w.conn.Close()
					return
				}
			}
		}
	}
}

func (w *writer) fail(err error) {
	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()
}

// err returns the error that stopped run, if any.
func (w *writer) err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

func (w *writer) stop() {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
}
