package wire

import (
	"bytes"
	"testing"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := []byte(`{"type":"ping"}`)
	if err := WriteFrame(&buf, want); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestWriteFrameRejectsOversized(t *testing.T) {
	var buf bytes.Buffer
	oversized := make([]byte, MaxFrameSize+1)
	if err := WriteFrame(&buf, oversized); err == nil {
		t.Fatal("WriteFrame should reject a frame larger than MaxFrameSize")
	}
}

func TestReadFrameAcceptsMaxSize(t *testing.T) {
	var buf bytes.Buffer
	body := make([]byte, MaxFrameSize)
	if err := WriteFrame(&buf, body); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if len(got) != MaxFrameSize {
		t.Fatalf("got %d bytes, want %d", len(got), MaxFrameSize)
	}
}

func TestMessageEncodeDecodeRoundTrip(t *testing.T) {
	type pingPayload struct {
		Seq int `json:"seq"`
	}
	m, err := NewMessage(TypePing, pingPayload{Seq: 7})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	body, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeMessage(body)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if got.Type != TypePing {
		t.Fatalf("got type %q, want %q", got.Type, TypePing)
	}
	var payload pingPayload
	if err := got.Decode(&payload); err != nil {
		t.Fatalf("Decode payload: %v", err)
	}
	if payload.Seq != 7 {
		t.Fatalf("got seq %d, want 7", payload.Seq)
	}
}

func TestUnknownTypeDecodesWithoutError(t *testing.T) {
	body := []byte(`{"type":"somethingNew","payload":{"x":1}}`)
	m, err := DecodeMessage(body)
	if err != nil {
		t.Fatalf("DecodeMessage should not fail on an unknown tag: %v", err)
	}
	if m.Type != "somethingNew" {
		t.Fatalf("got type %q", m.Type)
	}
}
