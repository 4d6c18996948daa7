package fileservice

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/thea-remote/hostd/internal/audit"
	"github.com/thea-remote/hostd/internal/wire"
)

func TestValidateAndResolvePathRejectsTraversal(t *testing.T) {
	_, err := validateAndResolvePath("/tmp/../etc/passwd", nil, nil, false)
	if err == nil {
		t.Fatal("expected traversal to be rejected")
	}
	if err.Error() != "Path traversal attack detected" {
		t.Fatalf("error = %q, want the peer-visible traversal message", err.Error())
	}
}

func TestValidateAndResolvePathRejectsNUL(t *testing.T) {
	if _, err := validateAndResolvePath("/tmp/\x00evil", nil, nil, false); err == nil {
		t.Fatal("expected NUL byte to be rejected")
	}
}

func TestValidateAndResolvePathBlockedPrecedesAllowed(t *testing.T) {
	dir := t.TempDir()
	if _, err := validateAndResolvePath(dir, []string{dir}, []string{dir}, false); err == nil {
		t.Fatal("expected blocked list to take precedence over allowed list")
	}
}

func TestValidateAndResolvePathRequiresAllowedMembership(t *testing.T) {
	dir := t.TempDir()
	other := t.TempDir()
	if _, err := validateAndResolvePath(other, []string{dir}, nil, false); err == nil {
		t.Fatal("expected path outside allowed list to be rejected")
	}
	if _, err := validateAndResolvePath(dir, []string{dir}, nil, false); err != nil {
		t.Fatalf("expected path inside allowed list to succeed: %v", err)
	}
}

func TestValidateAndResolvePathCriticalDeleteProtection(t *testing.T) {
	if _, err := validateAndResolvePath("/", nil, nil, true); err == nil {
		t.Fatal("expected deletion of / to be rejected")
	}
	if _, err := validateAndResolvePath("/Users/alice", nil, nil, true); err == nil {
		t.Fatal("expected deletion three segments under /Users to be rejected")
	}
}

func TestServiceWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	svc := New([]string{dir}, nil, 0, nil)

	path := filepath.Join(dir, "hello.txt")
	writeReq, _ := wire.NewMessage(wire.TypeFileRequest, wire.FileRequestPayload{
		Operation: wire.FileOpWrite, Path: path, Data: []byte("hello world"),
	})
	reply, err := svc.Handle("sess-1", "client-1", writeReq)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	var wresp wire.FileResponsePayload
	reply.Decode(&wresp)
	if wresp.Error != "" {
		t.Fatalf("write error: %s", wresp.Error)
	}

	readReq, _ := wire.NewMessage(wire.TypeFileRequest, wire.FileRequestPayload{
		Operation: wire.FileOpRead, Path: path, Length: 100,
	})
	reply, err = svc.Handle("sess-1", "client-1", readReq)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var rresp wire.FileResponsePayload
	reply.Decode(&rresp)
	if string(rresp.Data) != "hello world" {
		t.Fatalf("expected %q, got %q", "hello world", rresp.Data)
	}
	if !rresp.IsComplete {
		t.Fatal("expected isComplete=true on a read reaching EOF")
	}
}

func TestServiceListSortsCaseInsensitiveAndFiltersHidden(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"Banana", "apple", ".hidden", "cherry"} {
		os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644)
	}
	svc := New([]string{dir}, nil, 0, nil)
	req, _ := wire.NewMessage(wire.TypeFileRequest, wire.FileRequestPayload{
		Operation: wire.FileOpList, Path: dir,
	})
	reply, err := svc.Handle("sess-1", "client-1", req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var resp wire.FileResponsePayload
	reply.Decode(&resp)
	if len(resp.Entries) != 3 {
		t.Fatalf("expected 3 visible entries, got %d", len(resp.Entries))
	}
	names := []string{resp.Entries[0].Name, resp.Entries[1].Name, resp.Entries[2].Name}
	want := []string{"apple", "Banana", "cherry"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected sorted order %v, got %v", want, names)
		}
	}
}

func TestServiceDeleteNonEmptyDirWithoutRecursiveFails(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	os.Mkdir(sub, 0755)
	os.WriteFile(filepath.Join(sub, "f"), []byte("x"), 0644)

	svc := New([]string{dir}, nil, 0, nil)
	req, _ := wire.NewMessage(wire.TypeFileRequest, wire.FileRequestPayload{
		Operation: wire.FileOpDelete, Path: sub,
	})
	reply, err := svc.Handle("sess-1", "client-1", req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	var resp wire.FileResponsePayload
	reply.Decode(&resp)
	if resp.Error == "" {
		t.Fatal("expected error deleting a non-empty directory without recursive")
	}
}

func TestServiceUploadRejectsExistingWithoutOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	os.WriteFile(path, []byte("original"), 0644)

	svc := New([]string{dir}, nil, 0, nil)
	req, _ := wire.NewMessage(wire.TypeFileRequest, wire.FileRequestPayload{
		Operation: wire.FileOpUpload, Path: path, Data: []byte("new"),
	})
	reply, err := svc.Handle("sess-1", "client-1", req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	var resp wire.FileResponsePayload
	reply.Decode(&resp)
	if resp.Error == "" {
		t.Fatal("expected error uploading over an existing file without overwrite")
	}
}

func TestServiceLogsFileAccessBlockedOnTraversal(t *testing.T) {
	dir := t.TempDir()
	aud, err := audit.NewLogger(filepath.Join(dir, "audit.json"), 90, 100)
	if err != nil {
		t.Fatalf("audit.NewLogger: %v", err)
	}
	svc := New(nil, nil, 0, aud)

	req, _ := wire.NewMessage(wire.TypeFileRequest, wire.FileRequestPayload{
		Operation: wire.FileOpRead, Path: "/tmp/../etc/passwd",
	})
	if _, err := svc.Handle("sess-1", "client-1", req); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	entries := aud.Query(audit.Filter{Action: "fileAccessBlocked"})
	if len(entries) != 1 {
		t.Fatalf("expected 1 fileAccessBlocked entry, got %d", len(entries))
	}
	if entries[0].Result != audit.ResultBlocked {
		t.Fatalf("result = %q, want %q", entries[0].Result, audit.ResultBlocked)
	}
}

func TestServiceDownloadEnforcesMaxTransferSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.bin")
	os.WriteFile(path, make([]byte, 100), 0644)

	svc := New([]string{dir}, nil, 10, nil)
	req, _ := wire.NewMessage(wire.TypeFileRequest, wire.FileRequestPayload{
		Operation: wire.FileOpDownload, Path: path,
	})
	reply, err := svc.Handle("sess-1", "client-1", req)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	var resp wire.FileResponsePayload
	reply.Decode(&resp)
	if resp.Error == "" {
		t.Fatal("expected error downloading a file over the transfer cap")
	}
}
