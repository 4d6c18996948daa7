package livepreview

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/thea-remote/hostd/internal/logging"
)

var log = logging.L("livepreview")

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1 << 16,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request to a WebSocket and streams sessionID's
// published frames to the client until it disconnects or the request
// context is cancelled. The connection is strictly outbound: any
// message the client sends is discarded unread except for the control
// frames the websocket protocol itself requires to detect a closed
// peer.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	frames, cancel := h.Subscribe(sessionID)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return nil
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				log.Debug("live preview write failed, closing", "session", sessionID, "error", err)
				return nil
			}
		}
	}
}
