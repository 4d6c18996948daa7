package livepreview

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	h := NewHub()
	frames, cancel := h.Subscribe("sess-1")
	defer cancel()

	h.Publish("sess-1", []byte("frame-1"))

	select {
	case f := <-frames:
		if string(f) != "frame-1" {
			t.Fatalf("expected frame-1, got %q", f)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published frame")
	}
}

func TestPublishIgnoresOtherSessions(t *testing.T) {
	h := NewHub()
	frames, cancel := h.Subscribe("sess-1")
	defer cancel()

	h.Publish("sess-2", []byte("not for you"))

	select {
	case f := <-frames:
		t.Fatalf("did not expect a frame, got %q", f)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancelRemovesSubscriberAndClosesChannel(t *testing.T) {
	h := NewHub()
	if h.SubscriberCount("sess-1") != 0 {
		t.Fatal("expected zero subscribers initially")
	}
	frames, cancel := h.Subscribe("sess-1")
	if h.SubscriberCount("sess-1") != 1 {
		t.Fatal("expected one subscriber after Subscribe")
	}
	cancel()
	if h.SubscriberCount("sess-1") != 0 {
		t.Fatal("expected zero subscribers after cancel")
	}
	if _, ok := <-frames; ok {
		t.Fatal("expected channel to be closed after cancel")
	}
}

func TestServeWSStreamsPublishedFrames(t *testing.T) {
	h := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeWS(w, r, "sess-1")
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give the server a moment to register the subscriber before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for h.SubscriberCount("sess-1") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if h.SubscriberCount("sess-1") == 0 {
		t.Fatal("server never registered a subscriber")
	}

	h.Publish("sess-1", []byte("hello preview"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(msg) != "hello preview" {
		t.Fatalf("expected 'hello preview', got %q", msg)
	}
}
