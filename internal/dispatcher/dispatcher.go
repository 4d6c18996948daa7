// Package dispatcher routes authenticated-session wire messages to the
// per-domain service handlers, enforcing the permission gate and
// carrying the bounded backpressure queue screen/audio streaming push
// frames through.
package dispatcher

import (
	"fmt"
	"sync"
	"time"

	"github.com/thea-remote/hostd/internal/audit"
	"github.com/thea-remote/hostd/internal/events"
	"github.com/thea-remote/hostd/internal/sessionmgr"
	"github.com/thea-remote/hostd/internal/wire"
)

// HandlerFunc handles one decoded request message for an authenticated
// session and returns the reply message to send back. A non-nil error
// is reported to the peer as a paired *Response error rather than
// terminating the session.
type HandlerFunc func(sess *sessionmgr.Session, msg wire.Message) (wire.Message, error)

// pingInterval and pongTimeout bound the liveness check run alongside
// the reader loop; a session that misses two consecutive pongs is
// terminated as unreachable.
const (
	pingInterval = 5 * time.Second
	pongTimeout  = 5 * time.Second
)

// Dispatcher owns the handler registry and drives one reader + one
// writer goroutine per session.
type Dispatcher struct {
	handlers map[wire.Type]HandlerFunc
	bus      *events.Bus
	aud      *audit.Logger

	writersMu sync.Mutex
	writers   map[string]*writer
}

// New builds a Dispatcher that emits lifecycle/traffic events onto bus
// and security events (clientConnected, permissionDenied,
// commandBlocked) onto aud. Either may be nil to disable emission
// (e.g. in unit tests).
func New(bus *events.Bus, aud *audit.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[wire.Type]HandlerFunc),
		bus:      bus,
		aud:      aud,
		writers:  make(map[string]*writer),
	}
}

// Register installs the handler for a request variant. Services call
// this during server wiring; the dispatcher itself never imports the
// service packages, avoiding import cycles.
func (d *Dispatcher) Register(t wire.Type, h HandlerFunc) {
	d.handlers[t] = h
}

// Push enqueues an out-of-band message (screenFrame, audioFrame, chat,
// recordingResponse progress, etc.) for sess's writer goroutine.
// exempt must be true for frames that must never be dropped under
// backpressure (keyframes, RPC responses); false for steady-state
// frames that may be shed.
func (d *Dispatcher) Push(sess *sessionmgr.Session, msg wire.Message, exempt bool) {
	d.writersMu.Lock()
	w, ok := d.writers[sess.ID]
	d.writersMu.Unlock()
	if !ok {
		return
	}
	w.enqueue(msg, exempt)
}

// Run drives sess until its connection closes or a fatal error occurs.
// It starts the writer goroutine, the ping watchdog, and then reads
// request frames in a loop, dispatching each to its registered
// handler. Run returns once the session is done; the caller (the
// accept loop) is responsible for removing sess from the session
// manager.
func (d *Dispatcher) Run(sess *sessionmgr.Session) {
	w := newWriter(sess.Conn)
	d.writersMu.Lock()
	d.writers[sess.ID] = w
	d.writersMu.Unlock()
	defer func() {
		d.writersMu.Lock()
		delete(d.writers, sess.ID)
		d.writersMu.Unlock()
	}()

	go w.run()
	defer w.stop()

	pingDone := make(chan struct{})
	go d.pingLoop(sess, w, pingDone)
	defer close(pingDone)

	d.emit(events.KindClientConnected, sess)
	d.logAudit(sess, "clientConnected", audit.ResultSuccess, nil)

	for {
		msg, err := sess.Conn.Recv()
		if err != nil {
			d.emit(events.KindClientDisconnected, sess)
			return
		}
		sess.Touch()

		if msg.Type == wire.TypePing {
			pong, _ := wire.NewMessage(wire.TypePong, nil)
			w.enqueue(pong, true)
			continue
		}
		if msg.Type == wire.TypePong {
			continue
		}
		if msg.Type == wire.TypeDisconnect {
			return
		}

		d.dispatchOne(sess, w, msg)
	}
}

func (d *Dispatcher) dispatchOne(sess *sessionmgr.Session, w *writer, msg wire.Message) {
	perm, gated := RequiredPermission(msg)
	if gated && !sess.HasPermission(perm) {
		d.logAudit(sess, "permissionDenied", audit.ResultDenied, map[string]any{
			"permission":  string(perm),
			"messageType": string(msg.Type),
		})
		w.enqueue(errorReply(msg.Type, fmt.Sprintf("Permission denied for %s", perm)), true)
		return
	}

	handler, ok := d.handlers[msg.Type]
	if !ok {
		if msg.Type == wire.TypeNetworkProxyRequest {
			d.logAudit(sess, "commandBlocked", audit.ResultBlocked, map[string]any{"messageType": string(msg.Type)})
			w.enqueue(wire.NewError("feature disabled: network proxy"), true)
			return
		}
		w.enqueue(wire.NewError(fmt.Sprintf("unsupported message type %q", msg.Type)), true)
		return
	}

	reply, err := handler(sess, msg)
	if err != nil {
		w.enqueue(errorReply(msg.Type, err.Error()), true)
		return
	}
	if reply.Type != "" {
		w.enqueue(reply, true)
	}
}

func (d *Dispatcher) pingLoop(sess *sessionmgr.Session, w *writer, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-sess.Done():
			return
		case <-ticker.C:
			// Nothing received (pongs included) since two pings ago:
			// both went unanswered past pongTimeout.
			if sess.IdleFor() >= 2*pingInterval {
				sess.Close()
				return
			}
			ping, _ := wire.NewMessage(wire.TypePing, nil)
			w.enqueue(ping, true)
		}
	}
}

func (d *Dispatcher) emit(kind events.Kind, sess *sessionmgr.Session) {
	if d.bus == nil {
		return
	}
	d.bus.Emit(events.Event{
		Kind:      kind,
		At:        time.Now(),
		SessionID: sess.ID,
		Data: events.ClientConnectedData{
			ClientName: sess.Client.Name,
			DeviceKind: sess.Client.DeviceKind,
			Address:    sess.Client.Address,
		},
	})
}

// logAudit records a security-relevant dispatch event. No-op if the
// dispatcher was built without an audit logger.
func (d *Dispatcher) logAudit(sess *sessionmgr.Session, action string, result audit.Result, details map[string]any) {
	if d.aud == nil {
		return
	}
	d.aud.Log(action, sess.Client.Name, sess.ID, result, details)
}

// errorReply builds the paired response for reqType carrying reason in
// its "error" field. Every *ResponsePayload struct exposes an Error
// field tagged json:"error,omitempty", so a bare map marshals into a
// payload any of them can decode.
func errorReply(reqType wire.Type, reason string) wire.Message {
	replyType := responseTypeFor(reqType)
	if replyType == wire.TypeError {
		return wire.NewError(reason)
	}
	m, _ := wire.NewMessage(replyType, map[string]string{"error": reason})
	return m
}
