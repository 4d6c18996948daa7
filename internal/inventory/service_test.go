package inventory

import (
	"runtime"
	"testing"

	"github.com/thea-remote/hostd/internal/wire"
)

func TestHandleReportsRuntimeOSAndArch(t *testing.T) {
	svc := New()
	req, _ := wire.NewMessage(wire.TypeInventoryRequest, wire.InventoryRequestPayload{})

	reply, err := svc.Handle(req)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	var resp wire.InventoryResponsePayload
	if err := reply.Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.OS != runtime.GOOS {
		t.Fatalf("expected os %q, got %q", runtime.GOOS, resp.OS)
	}
	if resp.Arch != runtime.GOARCH {
		t.Fatalf("expected arch %q, got %q", runtime.GOARCH, resp.Arch)
	}
	if resp.Error != "" {
		t.Fatalf("expected no error, got %q", resp.Error)
	}
}
