package tui

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/simonyos/zchat/internal/chat"
	"github.com/simonyos/zchat/internal/config"
	"github.com/simonyos/zchat/internal/llm"
	"github.com/simonyos/zchat/internal/usage"
)

type fakeBackend struct {
	cfg     config.ProviderConfig
	replies []string
}

func newFakeBackend(model string, replies ...string) *fakeBackend {
	return &fakeBackend{cfg: config.LocalProvider("", model), replies: replies}
}

func (f *fakeBackend) Chat(ctx context.Context, messages []llm.Message) (llm.ChatResponse, error) {
	return llm.ChatResponse{Content: "ok"}, nil
}

func (f *fakeBackend) ChatStream(ctx context.Context, messages []llm.Message) (llm.Stream, error) {
	var chunks []llm.Chunk
	for _, r := range f.replies {
		chunks = append(chunks, llm.Chunk{Content: r})
	}
	chunks = append(chunks, llm.Chunk{Done: true, Usage: &llm.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5}})
	return &sliceStream{chunks: chunks}, nil
}

func (f *fakeBackend) Provider() config.ProviderID          { return f.cfg.Provider }
func (f *fakeBackend) Model() string                        { return f.cfg.Model() }
func (f *fakeBackend) IsAvailable(ctx context.Context) bool { return true }
func (f *fakeBackend) Config() config.ProviderConfig        { return f.cfg }

func (f *fakeBackend) ListModels(ctx context.Context) ([]llm.ModelDescriptor, error) {
	return []llm.ModelDescriptor{{Name: f.cfg.Model()}}, nil
}

type sliceStream struct {
	chunks []llm.Chunk
}

func (s *sliceStream) Recv() (llm.Chunk, error) {
	if len(s.chunks) == 0 {
		return llm.Chunk{}, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *sliceStream) Close() error { return nil }

func newTestModel(t *testing.T, b *fakeBackend) (Model, *usage.Session) {
	t.Helper()
	tracker := usage.NewSession(nil)
	m := New(context.Background(), Options{
		Session: chat.New(b, "sys", tracker),
		Backend: b,
		Usage:   tracker,
		Version: "test",
		Switch: func(cfg config.ProviderConfig) (Backend, error) {
			return &fakeBackend{cfg: cfg}, nil
		},
	})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return updated.(Model), tracker
}

// drive feeds msg to the model and follows the returned commands until the
// chain stops.
func drive(m Model, msg tea.Msg) Model {
	for msg != nil {
		updated, cmd := m.Update(msg)
		m = updated.(Model)
		if cmd == nil {
			break
		}
		msg = cmd()
	}
	return m
}

func TestStreamedTurn(t *testing.T) {
	b := newFakeBackend("llama3.2", "Hel", "lo")
	m, tracker := newTestModel(t, b)

	turn, err := m.session.Stream(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	m.streaming = true
	m = drive(m, turnStartedMsg{turn: turn})

	if m.streaming {
		t.Error("still streaming after the terminal chunk")
	}
	if m.content != "Hello" {
		t.Errorf("content = %q, want %q", m.content, "Hello")
	}
	if m.messages.Len() != 1 {
		t.Errorf("transcript has %d messages, want the assistant reply", m.messages.Len())
	}

	history := m.session.History()
	if last := history[len(history)-1]; last.Role != llm.RoleAssistant || last.Content != "Hello" {
		t.Errorf("last history entry = %+v", last)
	}
	if got := tracker.Totals(); got.Calls != 1 || got.TotalTokens != 5 {
		t.Errorf("Totals() = %+v, want one call with 5 tokens", got)
	}
	if m.status.Totals.TotalTokens != 5 {
		t.Errorf("status totals = %+v, want 5 tokens", m.status.Totals)
	}
}

func TestTurnStartFailure(t *testing.T) {
	m, _ := newTestModel(t, newFakeBackend("llama3.2"))
	m.streaming = true

	m = drive(m, turnStartedMsg{err: &llm.HTTPError{Provider: config.ProviderLocal, StatusCode: http.StatusNotFound}})

	if m.streaming {
		t.Error("still streaming after a failed start")
	}
	if m.messages.Len() != 1 {
		t.Errorf("transcript has %d messages, want one error", m.messages.Len())
	}
}

func TestEscCancelsStreaming(t *testing.T) {
	m, _ := newTestModel(t, newFakeBackend("llama3.2"))
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.streaming = true

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = updated.(Model)

	if !errors.Is(ctx.Err(), context.Canceled) {
		t.Error("Esc did not cancel the request context")
	}

	m = drive(m, turnEndMsg{err: context.Canceled})
	if m.streaming {
		t.Error("still streaming after cancellation")
	}
}

func TestResetCommand(t *testing.T) {
	b := newFakeBackend("llama3.2")
	m, _ := newTestModel(t, b)
	m.session.Send(context.Background(), "hello")

	updated, _ := m.handleCommand("/reset")
	m = updated.(Model)

	if got := len(m.session.History()); got != 1 {
		t.Errorf("history length after /reset = %d, want 1", got)
	}
}

func TestModelCommandSwitches(t *testing.T) {
	m, _ := newTestModel(t, newFakeBackend("llama3.2"))

	updated, _ := m.handleCommand("/model mistral")
	m = updated.(Model)

	if m.backend.Model() != "mistral" {
		t.Errorf("backend model = %q, want mistral", m.backend.Model())
	}
	if m.session.Client().Model() != "mistral" {
		t.Errorf("session client model = %q, want mistral", m.session.Client().Model())
	}
	if m.header.Model != "mistral" {
		t.Errorf("header model = %q, want mistral", m.header.Model)
	}
}

func TestModelCommandLists(t *testing.T) {
	m, _ := newTestModel(t, newFakeBackend("llama3.2"))

	_, cmd := m.handleCommand("/model")
	if cmd == nil {
		t.Fatal("/model without arguments returned no command")
	}
	msg, ok := cmd().(modelsMsg)
	if !ok || msg.err != nil || len(msg.models) != 1 {
		t.Fatalf("command result = %+v, want one model", msg)
	}
}

func TestUnknownCommand(t *testing.T) {
	m, _ := newTestModel(t, newFakeBackend("llama3.2"))

	updated, cmd := m.handleCommand("/bogus")
	m = updated.(Model)
	if cmd != nil {
		t.Error("unknown command returned a tea.Cmd")
	}
	if m.messages.Len() != 1 {
		t.Errorf("transcript has %d messages, want one error", m.messages.Len())
	}
}
