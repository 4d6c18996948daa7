// Package fileservice implements the file-browser/transfer request
// variant: list, info, read, write, delete, move, copy, download,
// upload, each gated by validateAndResolvePath.
package fileservice

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/thea-remote/hostd/internal/audit"
	"github.com/thea-remote/hostd/internal/wire"
)

// Service resolves and executes file operations within the
// configured allowed/blocked path boundaries and transfer size cap.
type Service struct {
	AllowedPaths  []string
	BlockedPaths  []string
	MaxTransferBytes int64
	aud           *audit.Logger
}

// New builds a Service bound to the given path policy and transfer cap.
// aud may be nil to disable audit logging (e.g. in unit tests).
func New(allowed, blocked []string, maxTransferBytes int64, aud *audit.Logger) *Service {
	return &Service{AllowedPaths: allowed, BlockedPaths: blocked, MaxTransferBytes: maxTransferBytes, aud: aud}
}

// Handle implements the dispatcher handler contract for fileRequest.
// sessionID and clientName identify the caller for fileAccessBlocked
// audit entries.
func (s *Service) Handle(sessionID, clientName string, msg wire.Message) (wire.Message, error) {
	var req wire.FileRequestPayload
	if err := msg.Decode(&req); err != nil {
		return wire.Message{}, fmt.Errorf("fileservice: decode request: %w", err)
	}

	forDelete := req.Operation == wire.FileOpDelete
	resolved, err := validateAndResolvePath(req.Path, s.AllowedPaths, s.BlockedPaths, forDelete)
	if err != nil {
		s.logBlocked(clientName, sessionID, req.Path, err)
		return errorResponse(err)
	}

	switch req.Operation {
	case wire.FileOpList:
		return s.list(resolved, req.Recursive, req.ShowHidden)
	case wire.FileOpInfo:
		return s.info(resolved)
	case wire.FileOpRead:
		return s.read(resolved, req.Offset, req.Length)
	case wire.FileOpWrite:
		return s.write(resolved, req.Data, req.Offset, req.Append)
	case wire.FileOpDelete:
		return s.delete(resolved, req.Recursive)
	case wire.FileOpMove, wire.FileOpCopy:
		toResolved, err := validateAndResolvePath(req.To, s.AllowedPaths, s.BlockedPaths, false)
		if err != nil {
			s.logBlocked(clientName, sessionID, req.To, err)
			return errorResponse(err)
		}
		if req.Operation == wire.FileOpMove {
			return s.move(resolved, toResolved)
		}
		return s.copy(resolved, toResolved)
	case wire.FileOpDownload:
		return s.download(resolved)
	case wire.FileOpUpload:
		return s.upload(resolved, req.Data, req.Overwrite)
	default:
		return errorResponse(fmt.Errorf("fileservice: unknown operation %q", req.Operation))
	}
}

func (s *Service) list(dir string, recursive, showHidden bool) (wire.Message, error) {
	var entries []wire.FileEntry
	walk := func(path string) error {
		dirEntries, err := os.ReadDir(path)
		if err != nil {
			return err
		}
		for _, de := range dirEntries {
			if !showHidden && strings.HasPrefix(de.Name(), ".") {
				continue
			}
			full := filepath.Join(path, de.Name())
			info, err := de.Info()
			if err != nil {
				continue
			}
			entries = append(entries, toFileEntry(full, info))
			if recursive && de.IsDir() {
				if err := walk(full); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(dir); err != nil {
		return errorResponse(fmt.Errorf("fileservice: list: %w", err))
	}

	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})

	return wire.NewMessage(wire.TypeFileResponse, wire.FileResponsePayload{Entries: entries})
}

func (s *Service) info(path string) (wire.Message, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return errorResponse(fmt.Errorf("fileservice: info: %w", err))
	}
	entry := toFileEntry(path, fi)
	return wire.NewMessage(wire.TypeFileResponse, wire.FileResponsePayload{Entry: &entry})
}

func (s *Service) read(path string, offset, length int64) (wire.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return errorResponse(fmt.Errorf("fileservice: read: %w", err))
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return errorResponse(fmt.Errorf("fileservice: seek: %w", err))
	}

	buf := make([]byte, length)
	n, err := io.ReadFull(f, buf)
	isComplete := false
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		isComplete = true
		err = nil
	}
	if err != nil {
		return errorResponse(fmt.Errorf("fileservice: read: %w", err))
	}
	if !isComplete {
		// Reached length without EOF; check whether we're now exactly at EOF.
		if _, peekErr := f.Read(make([]byte, 1)); peekErr == io.EOF {
			isComplete = true
		}
	}

	return wire.NewMessage(wire.TypeFileResponse, wire.FileResponsePayload{
		Data:       buf[:n],
		IsComplete: isComplete,
	})
}

func (s *Service) write(path string, data []byte, offset int64, append bool) (wire.Message, error) {
	flags := os.O_CREATE | os.O_WRONLY
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return errorResponse(fmt.Errorf("fileservice: write: %w", err))
	}
	defer f.Close()

	if append {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			return errorResponse(fmt.Errorf("fileservice: seek end: %w", err))
		}
	} else if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return errorResponse(fmt.Errorf("fileservice: seek: %w", err))
	}

	if _, err := f.Write(data); err != nil {
		return errorResponse(fmt.Errorf("fileservice: write: %w", err))
	}
	return wire.NewMessage(wire.TypeFileResponse, wire.FileResponsePayload{Message: "write complete"})
}

func (s *Service) delete(path string, recursive bool) (wire.Message, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return errorResponse(fmt.Errorf("fileservice: delete: %w", err))
	}
	if fi.IsDir() && !recursive {
		entries, err := os.ReadDir(path)
		if err != nil {
			return errorResponse(fmt.Errorf("fileservice: delete: %w", err))
		}
		if len(entries) > 0 {
			return errorResponse(fmt.Errorf("fileservice: directory not empty"))
		}
		if err := os.Remove(path); err != nil {
			return errorResponse(fmt.Errorf("fileservice: delete: %w", err))
		}
		return wire.NewMessage(wire.TypeFileResponse, wire.FileResponsePayload{Message: "deleted"})
	}
	if err := os.RemoveAll(path); err != nil {
		return errorResponse(fmt.Errorf("fileservice: delete: %w", err))
	}
	return wire.NewMessage(wire.TypeFileResponse, wire.FileResponsePayload{Message: "deleted"})
}

func (s *Service) move(from, to string) (wire.Message, error) {
	if _, err := os.Stat(from); err != nil {
		return errorResponse(fmt.Errorf("fileservice: move: source missing: %w", err))
	}
	if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return errorResponse(fmt.Errorf("fileservice: move: %w", err))
	}
	if err := os.Rename(from, to); err != nil {
		return errorResponse(fmt.Errorf("fileservice: move: %w", err))
	}
	return wire.NewMessage(wire.TypeFileResponse, wire.FileResponsePayload{Message: "moved"})
}

func (s *Service) copy(from, to string) (wire.Message, error) {
	src, err := os.Open(from)
	if err != nil {
		return errorResponse(fmt.Errorf("fileservice: copy: source missing: %w", err))
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return errorResponse(fmt.Errorf("fileservice: copy: %w", err))
	}
	dst, err := os.Create(to)
	if err != nil {
		return errorResponse(fmt.Errorf("fileservice: copy: %w", err))
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return errorResponse(fmt.Errorf("fileservice: copy: %w", err))
	}
	return wire.NewMessage(wire.TypeFileResponse, wire.FileResponsePayload{Message: "copied"})
}

func (s *Service) download(path string) (wire.Message, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return errorResponse(fmt.Errorf("fileservice: download: %w", err))
	}
	if fi.IsDir() {
		return errorResponse(fmt.Errorf("fileservice: cannot download a directory"))
	}
	if s.MaxTransferBytes > 0 && fi.Size() > s.MaxTransferBytes {
		return errorResponse(fmt.Errorf("fileservice: file exceeds max transfer size"))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errorResponse(fmt.Errorf("fileservice: download: %w", err))
	}
	return wire.NewMessage(wire.TypeFileResponse, wire.FileResponsePayload{Data: data, IsComplete: true})
}

func (s *Service) upload(path string, data []byte, overwrite bool) (wire.Message, error) {
	if s.MaxTransferBytes > 0 && int64(len(data)) > s.MaxTransferBytes {
		return errorResponse(fmt.Errorf("fileservice: upload exceeds max transfer size"))
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errorResponse(fmt.Errorf("fileservice: file already exists"))
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errorResponse(fmt.Errorf("fileservice: upload: %w", err))
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errorResponse(fmt.Errorf("fileservice: upload: %w", err))
	}
	return wire.NewMessage(wire.TypeFileResponse, wire.FileResponsePayload{Message: "upload complete"})
}

func toFileEntry(path string, fi os.FileInfo) wire.FileEntry {
	entry := wire.FileEntry{
		Name:        fi.Name(),
		Path:        path,
		IsDir:       fi.IsDir(),
		Size:        fi.Size(),
		ModifiedAt:  fi.ModTime().UTC().Format(time.RFC3339),
		Permissions: permissionString(fi.Mode()),
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		if target, err := os.Readlink(path); err == nil {
			entry.SymlinkTarget = target
		}
	}
	return entry
}

// permissionString renders a POSIX mode as an "rwxrwxrwx"-style triple.
func permissionString(mode os.FileMode) string {
	const letters = "rwxrwxrwx"
	perm := mode.Perm()
	var b strings.Builder
	for i := 0; i < 9; i++ {
		bit := perm & (1 << uint(8-i))
		if bit != 0 {
			b.WriteByte(letters[i])
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

func errorResponse(err error) (wire.Message, error) {
	m, _ := wire.NewMessage(wire.TypeFileResponse, wire.FileResponsePayload{Error: err.Error()})
	return m, nil
}

// logBlocked records a fileAccessBlocked entry for a path rejected by
// validateAndResolvePath (traversal, blocked path, critical path).
// No-op if the service was built without an audit logger.
func (s *Service) logBlocked(clientName, sessionID, path string, cause error) {
	if s.aud == nil {
		return
	}
	s.aud.Log("fileAccessBlocked", clientName, sessionID, audit.ResultBlocked, map[string]any{
		"path":   path,
		"reason": cause.Error(),
	})
}
