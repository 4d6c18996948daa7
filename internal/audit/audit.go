// Package audit implements a buffered, write-through audit log: every
// entry is prepended to an in-memory view and the full list is
// rewritten to disk atomically, with startup retention purge, filtered
// queries, and CSV/JSON export.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thea-remote/hostd/internal/logging"
)

var log = logging.L("audit")

// Result classifies the outcome of an audited action.
type Result string

const (
	ResultSuccess Result = "success"
	ResultDenied  Result = "denied"
	ResultBlocked Result = "blocked"
	ResultError   Result = "error"
)

// Entry is a single audit log record.
type Entry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	ClientID  string         `json:"clientId,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	Result    Result         `json:"result"`
	Details   map[string]any `json:"details,omitempty"`
}

// Filter narrows a Query. Zero-value fields are not applied.
type Filter struct {
	Action    string
	ClientID  string
	SessionID string
	Result    Result
	Since     time.Time
	Until     time.Time
	Search    string // free text over action/clientId/details
	Limit     int
}

// Stats summarizes the current log contents.
type Stats struct {
	Total         int       `json:"total"`
	Last24Hours   int       `json:"last24Hours"`
	LastWeek      int       `json:"lastWeek"`
	FailedAuth    int       `json:"failedAuth"`
	Blocked       int       `json:"blocked"`
	UniqueClients int       `json:"uniqueClients"`
	Oldest        time.Time `json:"oldest"`
	Newest        time.Time `json:"newest"`
}

const defaultMaxInMemoryEntries = 10000

// Logger is a single-writer, atomically-persisted audit log. Entries
// are kept newest-first in memory, matching the "prepend" contract;
// queries operate over a snapshot so they never race a concurrent
// append.
type Logger struct {
	mu                 sync.Mutex
	path               string
	maxInMemoryEntries int
	entries            []Entry
}

// NewLogger opens (or creates) the audit log at path, purging any
// entries older than retentionDays.
func NewLogger(path string, retentionDays int, maxInMemoryEntries int) (*Logger, error) {
	if maxInMemoryEntries <= 0 {
		maxInMemoryEntries = defaultMaxInMemoryEntries
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("audit: create log directory: %w", err)
	}

	l := &Logger{path: path, maxInMemoryEntries: maxInMemoryEntries}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// fresh install, nothing to load
	case err != nil:
		return nil, fmt.Errorf("audit: read log: %w", err)
	case len(data) > 0:
		if err := json.Unmarshal(data, &l.entries); err != nil {
			return nil, fmt.Errorf("audit: parse log: %w", err)
		}
	}

	if retentionDays > 0 {
		l.purgeOlderThanLocked(time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour))
		if err := l.persistLocked(); err != nil {
			return nil, err
		}
	}

	log.Info("audit log opened", "path", path, "entries", len(l.entries))
	return l, nil
}

// Log records one entry. Safe to call on a nil receiver (no-op), so
// callers that construct Logger optionally never need a nil check.
func (l *Logger) Log(action, clientID, sessionID string, result Result, details map[string]any) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Action:    action,
		ClientID:  clientID,
		SessionID: sessionID,
		Result:    result,
		Details:   details,
	}

	l.entries = append([]Entry{entry}, l.entries...)
	if len(l.entries) > l.maxInMemoryEntries {
		l.entries = l.entries[:l.maxInMemoryEntries]
	}

	if err := l.persistLocked(); err != nil {
		log.Error("failed to persist audit log", "error", err, "action", action)
	}
}

// Query returns entries matching f, newest first, capped at f.Limit
// (0 means unlimited).
func (l *Logger) Query(f Filter) []Entry {
	l.mu.Lock()
	snapshot := make([]Entry, len(l.entries))
	copy(snapshot, l.entries)
	l.mu.Unlock()

	out := make([]Entry, 0, len(snapshot))
	for _, e := range snapshot {
		if !matches(e, f) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out
}

func matches(e Entry, f Filter) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.ClientID != "" && e.ClientID != f.ClientID {
		return false
	}
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if f.Result != "" && e.Result != f.Result {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	if f.Search != "" && !searchMatches(e, f.Search) {
		return false
	}
	return true
}

func searchMatches(e Entry, needle string) bool {
	needle = strings.ToLower(needle)
	if strings.Contains(strings.ToLower(e.Action), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(e.ClientID), needle) {
		return true
	}
	for k, v := range e.Details {
		if strings.Contains(strings.ToLower(k), needle) {
			return true
		}
		if strings.Contains(strings.ToLower(fmt.Sprint(v)), needle) {
			return true
		}
	}
	return false
}

// Stats computes summary statistics over the full in-memory log.
func (l *Logger) Stats() Stats {
	l.mu.Lock()
	snapshot := make([]Entry, len(l.entries))
	copy(snapshot, l.entries)
	l.mu.Unlock()

	var s Stats
	s.Total = len(snapshot)
	if s.Total == 0 {
		return s
	}

	now := time.Now()
	clients := make(map[string]struct{})
	s.Oldest = snapshot[0].Timestamp
	s.Newest = snapshot[0].Timestamp

	for _, e := range snapshot {
		if e.Timestamp.Before(s.Oldest) {
			s.Oldest = e.Timestamp
		}
		if e.Timestamp.After(s.Newest) {
			s.Newest = e.Timestamp
		}
		if now.Sub(e.Timestamp) <= 24*time.Hour {
			s.Last24Hours++
		}
		if now.Sub(e.Timestamp) <= 7*24*time.Hour {
			s.LastWeek++
		}
		if e.Result == ResultDenied || e.Result == ResultError {
			s.FailedAuth++
		}
		if e.Result == ResultBlocked {
			s.Blocked++
		}
		if e.ClientID != "" {
			clients[e.ClientID] = struct{}{}
		}
	}
	s.UniqueClients = len(clients)
	return s
}

// ExportJSON renders matching entries as pretty-printed JSON with
// ISO-8601 timestamps (time.Time already marshals this way).
func (l *Logger) ExportJSON(f Filter) ([]byte, error) {
	entries := l.Query(f)
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("audit: marshal export: %w", err)
	}
	return data, nil
}

// ExportCSV renders matching entries as CSV: timestamp, action,
// clientId, sessionId, result, details (JSON-encoded). Fields are
// quoted and quote-doubled whenever they contain a comma, quote or
// newline.
func (l *Logger) ExportCSV(f Filter) ([]byte, error) {
	entries := l.Query(f)

	var b strings.Builder
	writeRow(&b, []string{"timestamp", "action", "clientId", "sessionId", "result", "details"})
	for _, e := range entries {
		details := ""
		if len(e.Details) > 0 {
			raw, err := json.Marshal(e.Details)
			if err != nil {
				return nil, fmt.Errorf("audit: marshal details for csv: %w", err)
			}
			details = string(raw)
		}
		writeRow(&b, []string{
			e.Timestamp.Format(time.RFC3339),
			e.Action,
			e.ClientID,
			e.SessionID,
			string(e.Result),
			details,
		})
	}
	return []byte(b.String()), nil
}

func writeRow(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(csvQuote(f))
	}
	b.WriteString("\r\n")
}

func csvQuote(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func (l *Logger) purgeOlderThanLocked(cutoff time.Time) {
	kept := l.entries[:0]
	for _, e := range l.entries {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}
	l.entries = kept
}

// persistLocked atomically rewrites the full entry list to disk.
// Called with l.mu held.
func (l *Logger) persistLocked() error {
	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("audit: marshal log: %w", err)
	}

	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, "audit-*.json.tmp")
	if err != nil {
		return fmt.Errorf("audit: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("audit: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("audit: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("audit: rename temp file: %w", err)
	}
	return nil
}
