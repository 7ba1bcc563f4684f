// Package usage records token usage per generation call.
package usage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one recorded generation call.
type Entry struct {
	Timestamp        time.Time `json:"timestamp"`
	SessionID        string    `json:"session_id,omitempty"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	Estimated        bool      `json:"estimated,omitempty"` // counts are heuristic, not tokenizer output
	Failed           bool      `json:"failed,omitempty"`
}

// Recorder stores usage entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// NewSessionID returns a fresh identifier for grouping one run's entries.
func NewSessionID() string {
	return uuid.NewString()
}

// FileRecorder writes entries to daily JSONL files
type FileRecorder struct {
	baseDir string
	mu      sync.Mutex
}

// NewFileRecorder writes under dir, or the XDG data directory when dir is
// empty.
func NewFileRecorder(dir string) *FileRecorder {
	if dir == "" {
		dir = DefaultDir()
	}
	return &FileRecorder{baseDir: dir}
}

// Dir returns the directory entries are written to.
func (r *FileRecorder) Dir() string {
	return r.baseDir
}

// Record appends entry to the file for its date.
func (r *FileRecorder) Record(_ context.Context, entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if err := os.MkdirAll(r.baseDir, 0755); err != nil {
		return err
	}

	filename := filepath.Join(r.baseDir, entry.Timestamp.Format("2006-01-02")+".jsonl")
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	if _, err := w.Write(data); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}

// ReadDay returns the entries recorded on the given date.
func (r *FileRecorder) ReadDay(day time.Time) ([]Entry, error) {
	f, err := os.Open(filepath.Join(r.baseDir, day.Format("2006-01-02")+".jsonl"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

// DefaultDir returns the XDG data directory for usage logs
func DefaultDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "zchat", "usage")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".zchat", "usage")
	}
	return filepath.Join(homeDir, ".local", "share", "zchat", "usage")
}

// Multi fans an entry out to several recorders, returning all their errors
// joined.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, entry Entry) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Totals sums entries.
type Totals struct {
	Calls            int
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Estimated        bool // at least one entry was estimated
}

// Sum adds up entries.
func Sum(entries []Entry) Totals {
	var t Totals
	for _, e := range entries {
		t.Calls++
		t.PromptTokens += e.PromptTokens
		t.CompletionTokens += e.CompletionTokens
		t.TotalTokens += e.TotalTokens
		t.Estimated = t.Estimated || e.Estimated
	}
	return t
}

// Session accumulates entries in memory for the running process and
// forwards them to an optional Recorder.
type Session struct {
	ID   string
	next Recorder

	mu      sync.Mutex
	entries []Entry
}

// NewSession starts a session with a new ID. next may be nil.
func NewSession(next Recorder) *Session {
	return &Session{ID: NewSessionID(), next: next}
}

// Record stamps entry with the session ID, keeps it and forwards it.
func (s *Session) Record(ctx context.Context, entry Entry) error {
	entry.SessionID = s.ID
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()

	if s.next == nil {
		return nil
	}
	return s.next.Record(ctx, entry)
}

// Totals returns the sums for this session so far.
func (s *Session) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Sum(s.entries)
}
