package recording

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thea-remote/hostd/internal/recording/archive"
	"github.com/thea-remote/hostd/internal/wire"
)

// active tracks one in-progress recording for a session.
type active struct {
	id        string
	sessionID string
	startedAt time.Time
	path      string
	width     int
	height    int
	w         *writer
}

// Service implements the recordingRequest variant: start/stop/list.
// At most one recording runs per session. Completed recordings are
// optionally pushed to remote storage via archive.Uploader.
type Service struct {
	dir      string
	idx      *index
	archiver archive.Uploader // nil disables archival

	mu     sync.Mutex
	active map[string]*active
}

// New opens (or creates) the recordings directory and its JSON index.
func New(dir string, archiver archive.Uploader) (*Service, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("recording: create directory: %w", err)
	}
	idx, err := loadIndex(filepath.Join(dir, "recordings.json"))
	if err != nil {
		return nil, err
	}
	return &Service{dir: dir, idx: idx, archiver: archiver, active: make(map[string]*active)}, nil
}

// Handle implements the dispatcher handler contract for recordingRequest.
func (s *Service) Handle(sessionID string, msg wire.Message) (wire.Message, error) {
	var req wire.RecordingRequestPayload
	if err := msg.Decode(&req); err != nil {
		return wire.Message{}, fmt.Errorf("recording: decode request: %w", err)
	}

	switch req.Operation {
	case wire.RecordingOpStart:
		return s.start(sessionID)
	case wire.RecordingOpStop:
		return s.stop(sessionID)
	case wire.RecordingOpList:
		return wire.NewMessage(wire.TypeRecordingResponse, wire.RecordingResponsePayload{Recordings: s.idx.list()})
	default:
		return errorResponse(fmt.Errorf("recording: unsupported operation %q", req.Operation))
	}
}

func (s *Service) start(sessionID string) (wire.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[sessionID]; ok {
		return errorResponse(fmt.Errorf("recording: already active for session"))
	}

	id := uuid.NewString()
	path := filepath.Join(s.dir, id+".mp4")
	w, err := newWriter(path)
	if err != nil {
		return errorResponse(err)
	}

	s.active[sessionID] = &active{id: id, sessionID: sessionID, startedAt: time.Now(), path: path, w: w}
	return wire.NewMessage(wire.TypeRecordingResponse, wire.RecordingResponsePayload{Message: id})
}

func (s *Service) stop(sessionID string) (wire.Message, error) {
	s.mu.Lock()
	rec, ok := s.active[sessionID]
	if ok {
		delete(s.active, sessionID)
	}
	s.mu.Unlock()

	if !ok {
		return errorResponse(fmt.Errorf("recording: no active recording for session"))
	}

	size, err := rec.w.close()
	if err != nil {
		return errorResponse(err)
	}

	meta := wire.RecordingMetadata{
		ID:              rec.id,
		SessionID:       rec.sessionID,
		StartTime:       rec.startedAt.UTC().Format(time.RFC3339),
		DurationSeconds: time.Since(rec.startedAt).Seconds(),
		FileSizeBytes:   size,
		Resolution:      fmt.Sprintf("%dx%d", rec.w.width, rec.w.height),
		Codec:           "mjpeg",
		FilePath:        rec.path,
	}
	if err := s.idx.append(meta); err != nil {
		return errorResponse(err)
	}

	if s.archiver != nil {
		go s.archiveAsync(meta)
	}

	return wire.NewMessage(wire.TypeRecordingResponse, wire.RecordingResponsePayload{Message: "stopped"})
}

// archiveAsync uploads a completed recording off the request path; a
// failure is not reported back to the session that requested the
// stop, since the recording itself already succeeded locally.
func (s *Service) archiveAsync(meta wire.RecordingMetadata) {
	_ = s.archiver.Upload(meta.FilePath, meta.ID+".mp4")
}

// WriteFrame appends a raw captured frame to sessionID's active
// recording, if any. Already-encoded stream frames are never routed
// here: only raw pixel buffers are muxed into recordings.
func (s *Service) WriteFrame(sessionID string, img image.Image) error {
	s.mu.Lock()
	rec, ok := s.active[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return rec.w.writeFrame(img)
}

// StopSession discards any in-progress recording for sessionID without
// finalizing it, used when a session terminates uncleanly.
func (s *Service) StopSession(sessionID string) {
	s.mu.Lock()
	rec, ok := s.active[sessionID]
	if ok {
		delete(s.active, sessionID)
	}
	s.mu.Unlock()
	if ok {
		_, _ = rec.w.close()
	}
}

func errorResponse(err error) (wire.Message, error) {
	m, _ := wire.NewMessage(wire.TypeRecordingResponse, wire.RecordingResponsePayload{Error: err.Error()})
	return m, nil
}
