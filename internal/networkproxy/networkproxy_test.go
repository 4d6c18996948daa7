package networkproxy

import (
	"testing"

	"github.com/thea-remote/hostd/internal/wire"
)

func TestHandleAlwaysDenies(t *testing.T) {
	msg, _ := wire.NewMessage(wire.TypeNetworkProxyRequest, wire.NetworkProxyRequestPayload{Operation: "connect"})
	reply, err := Handle(msg)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	var resp wire.NetworkProxyResponsePayload
	if err := reply.Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == "" {
		t.Fatal("expected networkproxy to always deny")
	}
}

func TestHandleToleratesMalformedPayload(t *testing.T) {
	msg := wire.Message{Type: wire.TypeNetworkProxyRequest, Payload: []byte(`{"operation":123}`)}
	reply, err := Handle(msg)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	var resp wire.NetworkProxyResponsePayload
	if err := reply.Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == "" {
		t.Fatal("expected a denial response even for malformed input")
	}
}
