package secretstore

import (
	"errors"
	"testing"
)

func TestMemoryStoreSetGetDelete(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get(ServerKeyService, ServerKeyAccount); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got err %v, want ErrNotFound", err)
	}
	if err := s.Set(ServerKeyService, ServerKeyAccount, []byte("secret-bytes")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ServerKeyService, ServerKeyAccount)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "secret-bytes" {
		t.Fatalf("got %q", got)
	}
	if err := s.Delete(ServerKeyService, ServerKeyAccount); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ServerKeyService, ServerKeyAccount); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got err %v after delete, want ErrNotFound", err)
	}
}
