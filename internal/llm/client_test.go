package llm

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/simonyos/zchat/internal/config"
)

// MockProvider is a test implementation of the Provider interface
type MockProvider struct {
	ChatFunc       func(ctx context.Context, messages []Message) (ChatResponse, error)
	ChatStreamFunc func(ctx context.Context, messages []Message) (Stream, error)
	Available      bool
}

func (m *MockProvider) Chat(ctx context.Context, messages []Message) (ChatResponse, error) {
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, messages)
	}
	return ChatResponse{Content: "mock response"}, nil
}

func (m *MockProvider) ChatStream(ctx context.Context, messages []Message) (Stream, error) {
	if m.ChatStreamFunc != nil {
		return m.ChatStreamFunc(ctx, messages)
	}
	return &sliceStream{chunks: []Chunk{{Content: "mock stream response"}}}, nil
}

func (m *MockProvider) IsAvailable(context.Context) bool { return m.Available }
func (m *MockProvider) Model() string                    { return "mock-model" }
func (m *MockProvider) Name() config.ProviderID          { return config.ProviderLocal }

// sliceStream replays fixed chunks, then io.EOF.
type sliceStream struct {
	chunks []Chunk
	closed bool
}

func (s *sliceStream) Recv() (Chunk, error) {
	if len(s.chunks) == 0 {
		return Chunk{}, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

func drain(t *testing.T, s Stream) []Chunk {
	t.Helper()
	defer s.Close()
	var chunks []Chunk
	for {
		c, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return chunks
		}
		if err != nil {
			t.Fatalf("Recv() error = %v", err)
		}
		chunks = append(chunks, c)
	}
}

// newTestClients returns one Client per provider, each backed by a fake
// server producing the same deterministic reply.
func newTestClients(t *testing.T, fragments []string) map[config.ProviderID]*Client {
	t.Helper()

	ollamaSrv := httptest.NewServer((&fakeOllama{fragments: fragments}).handler(t))
	t.Cleanup(ollamaSrv.Close)
	anthropicSrv := httptest.NewServer(&fakeAnthropic{deltas: fragments})
	t.Cleanup(anthropicSrv.Close)

	local := config.LocalProvider(ollamaSrv.URL, "llama3.2")
	cloud := config.CloudProvider("sk-ant-test", "claude-test", 128)
	cloud.Cloud.BaseURL = anthropicSrv.URL

	clients := map[config.ProviderID]*Client{}
	for _, tc := range []struct {
		cfg config.ProviderConfig
		srv *httptest.Server
	}{{local, ollamaSrv}, {cloud, anthropicSrv}} {
		c, err := New(tc.cfg, WithHTTPClient(tc.srv.Client()))
		if err != nil {
			t.Fatalf("New(%s) error = %v", tc.cfg.Provider, err)
		}
		clients[tc.cfg.Provider] = c
	}
	return clients
}

func TestClientProviderOpacity(t *testing.T) {
	histories := [][]Message{
		{{Role: RoleUser, Content: "hi"}},
		{{Role: RoleSystem, Content: "terse"}, {Role: RoleUser, Content: "a"}, {Role: RoleAssistant, Content: "b"}, {Role: RoleUser, Content: "c"}},
	}

	for id, client := range newTestClients(t, []string{"x"}) {
		for _, h := range histories {
			resp, err := client.Chat(context.Background(), h)
			if err != nil {
				t.Fatalf("%s: Chat() error = %v", id, err)
			}
			if resp.Provider != id {
				t.Errorf("%s: Chat().Provider = %q", id, resp.Provider)
			}
		}
		if client.Provider() != id {
			t.Errorf("Provider() = %q, want %q", client.Provider(), id)
		}
	}
}

func TestClientStreamMatchesChat(t *testing.T) {
	fragments := []string{"The ", "quick ", "brown ", "föx"}
	messages := []Message{{Role: RoleUser, Content: "go"}}

	for id, client := range newTestClients(t, fragments) {
		t.Run(string(id), func(t *testing.T) {
			resp, err := client.Chat(context.Background(), messages)
			if err != nil {
				t.Fatalf("Chat() error = %v", err)
			}

			stream, err := client.ChatStream(context.Background(), messages)
			if err != nil {
				t.Fatalf("ChatStream() error = %v", err)
			}
			chunks := drain(t, stream)

			var sb strings.Builder
			for _, c := range chunks {
				sb.WriteString(c.Content)
			}
			if sb.String() != resp.Content {
				t.Errorf("streamed %q, chat returned %q", sb.String(), resp.Content)
			}

			if len(chunks) == 0 || !chunks[len(chunks)-1].Done {
				t.Fatalf("last chunk not terminal: %+v", chunks)
			}
			for _, c := range chunks[:len(chunks)-1] {
				if c.Done {
					t.Errorf("chunk before the end has Done set: %+v", c)
				}
				if c.Provider != id {
					t.Errorf("chunk Provider = %q, want %q", c.Provider, id)
				}
			}
		})
	}
}

func TestClientStreamNothingAfterDone(t *testing.T) {
	inner := &sliceStream{chunks: []Chunk{
		{Content: "a"},
		{Done: true},
		{Content: "late"},
	}}
	client := &Client{provider: &MockProvider{
		ChatStreamFunc: func(context.Context, []Message) (Stream, error) { return inner, nil },
	}}

	stream, err := client.ChatStream(context.Background(), nil)
	if err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}
	chunks := drain(t, stream)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2: %+v", len(chunks), chunks)
	}
	if !inner.closed {
		t.Error("inner stream not closed after terminal chunk")
	}
	if chunks[1].Model != "mock-model" || chunks[1].Provider != config.ProviderLocal {
		t.Errorf("terminal chunk = %+v, want model and provider filled", chunks[1])
	}
}

func TestClientStreamSynthesizesTerminal(t *testing.T) {
	client := &Client{provider: &MockProvider{}}

	stream, err := client.ChatStream(context.Background(), nil)
	if err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}
	chunks := drain(t, stream)
	if len(chunks) != 2 || chunks[0].Content != "mock stream response" || !chunks[1].Done {
		t.Errorf("chunks = %+v, want content then synthesized terminal", chunks)
	}
}

func TestClientStreamPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	client := &Client{provider: &MockProvider{
		ChatStreamFunc: func(context.Context, []Message) (Stream, error) { return nil, boom },
	}}
	if _, err := client.ChatStream(context.Background(), nil); !errors.Is(err, boom) {
		t.Errorf("ChatStream() error = %v, want %v", err, boom)
	}
}

func TestNewConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ProviderConfig
	}{
		{"cloud without config", config.ProviderConfig{Provider: config.ProviderCloud}},
		{"cloud without key", config.CloudProvider("", "", 0)},
		{"local without config", config.ProviderConfig{Provider: config.ProviderLocal}},
		{"unknown provider", config.ProviderConfig{Provider: "openai"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			var cfgErr *config.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("New() error = %v, want *config.ConfigurationError", err)
			}
		})
	}
}

func TestNewFromEnv(t *testing.T) {
	env := map[string]string{
		config.EnvProvider:    "local",
		config.EnvOllamaModel: "qwen2.5-coder:7b",
	}
	client, err := NewFromEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if err != nil {
		t.Fatalf("NewFromEnv() error = %v", err)
	}
	if client.Provider() != config.ProviderLocal || client.Model() != "qwen2.5-coder:7b" {
		t.Errorf("client = %s/%s", client.Provider(), client.Model())
	}

	_, err = NewFromEnv(func(string) (string, bool) { return "", false })
	var cfgErr *config.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("NewFromEnv(empty) error = %v, want *config.ConfigurationError", err)
	}
}

func TestClientListModels(t *testing.T) {
	client := &Client{provider: &MockProvider{}}
	if _, err := client.ListModels(context.Background()); !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("ListModels() error = %v, want ErrUnsupportedOperation", err)
	}
}

func TestClientIsAvailableNeverFails(t *testing.T) {
	cfg := config.LocalProvider("http://127.0.0.1:1", "m")
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if client.IsAvailable(context.Background()) {
		t.Error("IsAvailable() = true for a closed port")
	}
}
