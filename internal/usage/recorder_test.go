package usage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileRecorderDailyFiles(t *testing.T) {
	dir := t.TempDir()
	r := NewFileRecorder(dir)
	ctx := context.Background()

	day1 := time.Date(2024, 6, 1, 23, 59, 0, 0, time.UTC)
	day2 := day1.Add(2 * time.Minute)

	entries := []Entry{
		{Timestamp: day1, Provider: "ollama", Model: "llama3.2", PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7, Estimated: true},
		{Timestamp: day1, Provider: "ollama", Model: "llama3.2", PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2},
		{Timestamp: day2, Provider: "anthropic", Model: "claude", PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
	for _, e := range entries {
		if err := r.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "2024-06-01.jsonl")); err != nil {
		t.Errorf("expected daily file: %v", err)
	}

	got, err := r.ReadDay(day1)
	if err != nil {
		t.Fatalf("ReadDay() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadDay(day1) returned %d entries, want 2", len(got))
	}
	totals := Sum(got)
	if totals.TotalTokens != 9 || !totals.Estimated || totals.Calls != 2 {
		t.Errorf("Sum() = %+v", totals)
	}

	got, err = r.ReadDay(day2)
	if err != nil || len(got) != 1 || got[0].Provider != "anthropic" {
		t.Errorf("ReadDay(day2) = (%+v, %v)", got, err)
	}

	none, err := r.ReadDay(day1.AddDate(0, 0, -7))
	if err != nil || none != nil {
		t.Errorf("ReadDay(missing) = (%v, %v), want (nil, nil)", none, err)
	}
}

func TestDefaultDirHonorsXDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg")
	if got := DefaultDir(); got != "/tmp/xdg/zchat/usage" {
		t.Errorf("DefaultDir() = %q", got)
	}
}

type failingRecorder struct{ err error }

func (f failingRecorder) Record(context.Context, Entry) error { return f.err }

type memRecorder struct{ entries []Entry }

func (m *memRecorder) Record(_ context.Context, e Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func TestMulti(t *testing.T) {
	boom := errors.New("disk full")
	mem := &memRecorder{}
	m := Multi{failingRecorder{boom}, mem}

	err := m.Record(context.Background(), Entry{Provider: "ollama"})
	if !errors.Is(err, boom) {
		t.Errorf("Record() error = %v, want %v", err, boom)
	}
	if len(mem.entries) != 1 {
		t.Errorf("later recorder got %d entries, want 1", len(mem.entries))
	}
}

func TestSession(t *testing.T) {
	mem := &memRecorder{}
	s := NewSession(mem)
	if s.ID == "" {
		t.Fatal("session ID is empty")
	}

	for i := 0; i < 3; i++ {
		if err := s.Record(context.Background(), Entry{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	if got := s.Totals(); got.Calls != 3 || got.TotalTokens != 9 {
		t.Errorf("Totals() = %+v", got)
	}
	for _, e := range mem.entries {
		if e.SessionID != s.ID {
			t.Errorf("forwarded SessionID = %q, want %q", e.SessionID, s.ID)
		}
		if e.Timestamp.IsZero() {
			t.Error("forwarded entry has zero timestamp")
		}
	}

	if other := NewSession(nil); other.ID == s.ID {
		t.Error("two sessions share an ID")
	}
}
