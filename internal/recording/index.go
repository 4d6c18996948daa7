package recording

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/thea-remote/hostd/internal/wire"
)

// index is the JSON array persisted alongside recording files,
// rewritten atomically (temp file + rename) on every change.
type index struct {
	mu      sync.Mutex
	path    string
	entries []wire.RecordingMetadata
}

func loadIndex(path string) (*index, error) {
	idx := &index{path: path}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("recording: read index: %w", err)
	}
	if len(data) == 0 {
		return idx, nil
	}
	if err := json.Unmarshal(data, &idx.entries); err != nil {
		return nil, fmt.Errorf("recording: parse index: %w", err)
	}
	return idx, nil
}

func (idx *index) list() []wire.RecordingMetadata {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	out := make([]wire.RecordingMetadata, len(idx.entries))
	copy(out, idx.entries)
	return out
}

func (idx *index) append(m wire.RecordingMetadata) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = append(idx.entries, m)
	return idx.writeLocked()
}

func (idx *index) writeLocked() error {
	data, err := json.MarshalIndent(idx.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("recording: marshal index: %w", err)
	}
	dir := filepath.Dir(idx.path)
	tmp, err := os.CreateTemp(dir, "recordings-*.json.tmp")
	if err != nil {
		return fmt.Errorf("recording: create temp index: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("recording: write temp index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("recording: close temp index: %w", err)
	}
	if err := os.Rename(tmpPath, idx.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("recording: rename index: %w", err)
	}
	return nil
}
