package generator

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github.com/simonyos/zchat/internal/config"
	"github.com/simonyos/zchat/internal/llm"
	"github.com/simonyos/zchat/internal/usage"
)

// fakeClient is a ChatClient with scripted replies.
type fakeClient struct {
	provider config.ProviderID
	reply    string
	usage    *llm.Usage
	chunks   []llm.Chunk
	err      error // returned by Chat and ChatStream
	recvErr  error // returned by Recv after chunks run out

	lastMessages []llm.Message
	stream       *fakeStream
}

func (f *fakeClient) Chat(_ context.Context, messages []llm.Message) (llm.ChatResponse, error) {
	f.lastMessages = messages
	if f.err != nil {
		return llm.ChatResponse{}, f.err
	}
	return llm.ChatResponse{Content: f.reply, Model: "fake-model", Provider: f.provider, Usage: f.usage}, nil
}

func (f *fakeClient) ChatStream(_ context.Context, messages []llm.Message) (llm.Stream, error) {
	f.lastMessages = messages
	if f.err != nil {
		return nil, f.err
	}
	f.stream = &fakeStream{chunks: append([]llm.Chunk(nil), f.chunks...), err: f.recvErr}
	return f.stream, nil
}

func (f *fakeClient) Provider() config.ProviderID { return f.provider }
func (f *fakeClient) Model() string                { return "fake-model" }

type fakeStream struct {
	chunks []llm.Chunk
	err    error
	closed bool
}

func (s *fakeStream) Recv() (llm.Chunk, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return llm.Chunk{}, s.err
		}
		return llm.Chunk{}, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type memRecorder struct{ entries []usage.Entry }

func (m *memRecorder) Record(_ context.Context, e usage.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func userTurns(texts ...string) []*genai.Content {
	var out []*genai.Content
	for _, t := range texts {
		out = append(out, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: t}}})
	}
	return out
}

func candidateText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

func TestFlattenText(t *testing.T) {
	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: "first"}, {InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte{1}}}}},
		nil,
		{Role: "model", Parts: []*genai.Part{{Text: "second"}}},
		{Role: "user", Parts: []*genai.Part{{Text: "third"}, nil}},
	}
	if got := FlattenText(contents); got != "first\nsecond\nthird" {
		t.Errorf("FlattenText() = %q, want %q", got, "first\nsecond\nthird")
	}
}

func TestGenerateContentSendsFlattenedPrompt(t *testing.T) {
	client := &fakeClient{provider: config.ProviderLocal, reply: "hi"}
	g := NewChatGenerator(client, nil)

	req := &Request{
		Contents: userTurns("a", "b"),
		Config: &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: "be terse"}}},
		},
	}
	if _, err := g.GenerateContent(context.Background(), req); err != nil {
		t.Fatalf("GenerateContent() error = %v", err)
	}

	want := []llm.Message{
		{Role: llm.RoleSystem, Content: "be terse"},
		{Role: llm.RoleUser, Content: "a\nb"},
	}
	if len(client.lastMessages) != len(want) {
		t.Fatalf("messages = %+v, want %+v", client.lastMessages, want)
	}
	for i := range want {
		if client.lastMessages[i] != want[i] {
			t.Errorf("messages[%d] = %+v, want %+v", i, client.lastMessages[i], want[i])
		}
	}
}

func TestGenerateContentUsage(t *testing.T) {
	t.Run("reported", func(t *testing.T) {
		client := &fakeClient{
			provider: config.ProviderCloud,
			reply:    "answer",
			usage:    &llm.Usage{PromptTokens: 11, CompletionTokens: 4},
		}
		rec := &memRecorder{}
		resp, err := NewChatGenerator(client, rec).GenerateContent(context.Background(), &Request{Contents: userTurns("q")})
		if err != nil {
			t.Fatalf("GenerateContent() error = %v", err)
		}

		u := resp.UsageMetadata
		if u.PromptTokenCount != 11 || u.CandidatesTokenCount != 4 || u.TotalTokenCount != 15 {
			t.Errorf("UsageMetadata = %+v, want 11/4/15", u)
		}
		if resp.Candidates[0].FinishReason != genai.FinishReasonStop {
			t.Errorf("FinishReason = %q, want STOP", resp.Candidates[0].FinishReason)
		}
		if candidateText(resp) != "answer" {
			t.Errorf("text = %q, want %q", candidateText(resp), "answer")
		}
		if len(rec.entries) != 1 || rec.entries[0].Estimated || rec.entries[0].TotalTokens != 15 {
			t.Errorf("recorded = %+v", rec.entries)
		}
	})

	t.Run("estimated", func(t *testing.T) {
		client := &fakeClient{provider: config.ProviderLocal, reply: "12345"}
		rec := &memRecorder{}
		resp, err := NewChatGenerator(client, rec).GenerateContent(context.Background(), &Request{Contents: userTurns("abcdefgh")})
		if err != nil {
			t.Fatalf("GenerateContent() error = %v", err)
		}

		u := resp.UsageMetadata
		// ceil(8/4) = 2, ceil(5/4) = 2
		if u.PromptTokenCount != 2 || u.CandidatesTokenCount != 2 || u.TotalTokenCount != 4 {
			t.Errorf("UsageMetadata = %+v, want 2/2/4", u)
		}
		if len(rec.entries) != 1 || !rec.entries[0].Estimated {
			t.Errorf("recorded = %+v, want one estimated entry", rec.entries)
		}
	})
}

func TestGenerateContentNeverFails(t *testing.T) {
	failures := []error{
		&llm.HTTPError{Provider: config.ProviderCloud, StatusCode: 401, Body: "{}"},
		&llm.HTTPError{Provider: config.ProviderLocal, StatusCode: 500, Body: "boom"},
		context.DeadlineExceeded,
		errors.New("connection reset"),
	}

	for _, failure := range failures {
		t.Run(failure.Error(), func(t *testing.T) {
			rec := &memRecorder{}
			client := &fakeClient{provider: config.ProviderCloud, err: failure}
			resp, err := NewChatGenerator(client, rec).GenerateContent(context.Background(), &Request{Contents: userTurns("q")})
			if err != nil {
				t.Fatalf("GenerateContent() error = %v, want nil", err)
			}
			if len(resp.Candidates) != 1 {
				t.Fatalf("got %d candidates, want 1", len(resp.Candidates))
			}
			if !strings.HasPrefix(candidateText(resp), DiagnosticMarker) {
				t.Errorf("text %q lacks diagnostic marker", candidateText(resp))
			}
			if !IsDiagnostic(resp) {
				t.Error("IsDiagnostic() = false")
			}
			u := resp.UsageMetadata
			if u == nil || u.PromptTokenCount != 0 || u.CandidatesTokenCount != 0 || u.TotalTokenCount != 0 {
				t.Errorf("UsageMetadata = %+v, want zeros", u)
			}
			if len(rec.entries) != 1 || !rec.entries[0].Failed {
				t.Errorf("recorded = %+v, want one failed entry", rec.entries)
			}
		})
	}
}

func collectStream(t *testing.T, g ContentGenerator, req *Request) []*genai.GenerateContentResponse {
	t.Helper()
	var out []*genai.GenerateContentResponse
	for resp, err := range g.GenerateContentStream(context.Background(), req) {
		if err != nil {
			t.Fatalf("stream yielded error %v", err)
		}
		out = append(out, resp)
	}
	return out
}

func TestGenerateContentStream(t *testing.T) {
	client := &fakeClient{
		provider: config.ProviderLocal,
		chunks: []llm.Chunk{
			{Content: "Hel"},
			{Content: "lo"},
			{Done: true, Usage: &llm.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5}},
		},
	}
	frags := collectStream(t, NewChatGenerator(client, nil), &Request{Contents: userTurns("hi")})

	if len(frags) != 3 {
		t.Fatalf("got %d fragments, want 3", len(frags))
	}
	if candidateText(frags[0])+candidateText(frags[1]) != "Hello" {
		t.Errorf("streamed text = %q", candidateText(frags[0])+candidateText(frags[1]))
	}
	final := frags[2]
	if final.Candidates[0].FinishReason != genai.FinishReasonStop {
		t.Errorf("final FinishReason = %q", final.Candidates[0].FinishReason)
	}
	if final.UsageMetadata.TotalTokenCount != 5 {
		t.Errorf("final usage = %+v, want total 5", final.UsageMetadata)
	}
	if !client.stream.closed {
		t.Error("stream not closed")
	}
}

func TestGenerateContentStreamFailures(t *testing.T) {
	t.Run("open fails", func(t *testing.T) {
		client := &fakeClient{provider: config.ProviderLocal, err: &llm.HTTPError{Provider: config.ProviderLocal, StatusCode: 404}}
		frags := collectStream(t, NewChatGenerator(client, nil), &Request{Contents: userTurns("hi")})
		if len(frags) != 1 || !IsDiagnostic(frags[0]) {
			t.Fatalf("fragments = %d, want one diagnostic", len(frags))
		}
		if !strings.Contains(candidateText(frags[0]), "ollama pull fake-model") {
			t.Errorf("diagnostic = %q, want pull hint", candidateText(frags[0]))
		}
	})

	t.Run("mid-stream", func(t *testing.T) {
		client := &fakeClient{
			provider: config.ProviderCloud,
			chunks:   []llm.Chunk{{Content: "partial"}},
			recvErr:  errors.New("connection reset by peer"),
		}
		frags := collectStream(t, NewChatGenerator(client, nil), &Request{Contents: userTurns("hi")})
		if len(frags) != 2 {
			t.Fatalf("got %d fragments, want 2", len(frags))
		}
		if candidateText(frags[0]) != "partial" || !IsDiagnostic(frags[1]) {
			t.Errorf("fragments = %q, %q", candidateText(frags[0]), candidateText(frags[1]))
		}
		if !client.stream.closed {
			t.Error("stream not closed after failure")
		}
	})
}

func TestGenerateContentStreamEarlyStop(t *testing.T) {
	client := &fakeClient{
		provider: config.ProviderLocal,
		chunks:   []llm.Chunk{{Content: "a"}, {Content: "b"}, {Done: true}},
	}
	g := NewChatGenerator(client, nil)

	n := 0
	for range g.GenerateContentStream(context.Background(), &Request{Contents: userTurns("hi")}) {
		n++
		break
	}
	if n != 1 {
		t.Errorf("consumed %d fragments, want 1", n)
	}
	if !client.stream.closed {
		t.Error("stream not closed after consumer stopped")
	}
}

func TestCountTokensAndEmbed(t *testing.T) {
	g := NewChatGenerator(&fakeClient{provider: config.ProviderCloud}, nil)

	resp, err := g.CountTokens(context.Background(), &Request{Contents: userTurns("abcdefg")})
	if err != nil {
		t.Fatalf("CountTokens() error = %v", err)
	}
	// ceil(7/3.5) = 2
	if resp.TotalTokens != 2 {
		t.Errorf("TotalTokens = %d, want 2", resp.TotalTokens)
	}

	if _, err := g.EmbedContent(context.Background(), &EmbedRequest{}); !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("EmbedContent() error = %v, want ErrUnsupportedOperation", err)
	}
}

func TestNew(t *testing.T) {
	client := &fakeClient{provider: config.ProviderLocal}

	g, err := New(context.Background(), Options{Client: client})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := g.(*ChatGenerator); !ok {
		t.Errorf("New() = %T, want *ChatGenerator", g)
	}

	if _, err := New(context.Background(), Options{Backend: BackendGemini}); err == nil {
		t.Error("New(gemini) without key error = nil")
	}
	if _, err := New(context.Background(), Options{Backend: "bard"}); err == nil {
		t.Error("New(bard) error = nil")
	}
	if _, err := New(context.Background(), Options{}); err == nil {
		t.Error("New() without client error = nil")
	}
}
