// Package chat keeps the conversation history for an interactive session.
package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/simonyos/zchat/internal/config"
	"github.com/simonyos/zchat/internal/generator"
	"github.com/simonyos/zchat/internal/llm"
	"github.com/simonyos/zchat/internal/usage"
)

// Client is the part of llm.Client a Session uses.
type Client interface {
	Chat(ctx context.Context, messages []llm.Message) (llm.ChatResponse, error)
	ChatStream(ctx context.Context, messages []llm.Message) (llm.Stream, error)
	Provider() config.ProviderID
	Model() string
}

// Session orchestrates a conversation with one client
type Session struct {
	mu       sync.Mutex
	client   Client
	messages []llm.Message
	recorder usage.Recorder
}

// New creates a session. The system prompt, when not empty, is always the
// first message of the history.
func New(client Client, systemPrompt string, recorder usage.Recorder) *Session {
	s := &Session{client: client, recorder: recorder}
	if systemPrompt != "" {
		s.messages = []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}
	}
	return s
}

// Send appends text as a user turn and waits for the full reply.
func (s *Session) Send(ctx context.Context, text string) (llm.ChatResponse, error) {
	client, history := s.begin(text)

	resp, err := client.Chat(ctx, history)
	if err != nil {
		s.rollback(len(history))
		s.record(ctx, client, history, "", nil, true)
		return llm.ChatResponse{}, err
	}

	s.commit(len(history), resp.Content)
	s.record(ctx, client, history, resp.Content, resp.Usage, false)
	return resp, nil
}

// Stream appends text as a user turn and starts a streaming reply. The
// assistant turn is added to the history when the returned Turn finishes.
func (s *Session) Stream(ctx context.Context, text string) (*Turn, error) {
	client, history := s.begin(text)

	stream, err := client.ChatStream(ctx, history)
	if err != nil {
		s.rollback(len(history))
		s.record(ctx, client, history, "", nil, true)
		return nil, err
	}

	return &Turn{
		ctx:     ctx,
		session: s,
		client:  client,
		history: history,
		stream:  stream,
	}, nil
}

// begin appends the user turn and returns a copy of the history to send.
func (s *Session) begin(text string) (Client, []llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, llm.Message{Role: llm.RoleUser, Content: text})
	return s.client, slices.Clone(s.messages)
}

// commit adds the assistant reply to a history of length n.
func (s *Session) commit(n int, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) != n {
		// Reset while the request was in flight.
		return
	}
	s.messages = append(s.messages, llm.Message{Role: llm.RoleAssistant, Content: content})
}

// rollback drops the unanswered user turn so user and assistant turns keep
// alternating.
func (s *Session) rollback(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == n {
		s.messages = s.messages[:n-1]
	}
}

func (s *Session) record(ctx context.Context, client Client, history []llm.Message, reply string, reported *llm.Usage, failed bool) {
	if s.recorder == nil {
		return
	}

	entry := usage.Entry{
		Provider: string(client.Provider()),
		Model:    client.Model(),
		Failed:   failed,
	}
	if reported != nil && (reported.PromptTokens > 0 || reported.CompletionTokens > 0) {
		entry.PromptTokens = reported.PromptTokens
		entry.CompletionTokens = reported.CompletionTokens
		entry.TotalTokens = reported.PromptTokens + reported.CompletionTokens
	} else if !failed {
		parts := make([]string, len(history))
		for i, m := range history {
			parts[i] = m.Content
		}
		// Joined the way generator.FlattenText joins turns.
		prompt := strings.Join(parts, "\n")
		entry.PromptTokens = int(generator.EstimateTokens(client.Provider(), prompt))
		entry.CompletionTokens = int(generator.EstimateTokens(client.Provider(), reply))
		entry.TotalTokens = entry.PromptTokens + entry.CompletionTokens
		entry.Estimated = true
	}

	// Recording is best effort and must not fail the turn.
	if err := s.recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		slog.Warn("failed to record usage", "error", err)
	}
}

// History returns a copy of the conversation
func (s *Session) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// Reset clears the conversation history (keeps system prompt)
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) > 0 && s.messages[0].Role == llm.RoleSystem {
		s.messages = s.messages[:1]
	} else {
		s.messages = nil
	}
}

// SetClient switches the client used for later turns. The history is kept.
func (s *Session) SetClient(client Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = client
}

// Client returns the active client.
func (s *Session) Client() Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// Turn is one streaming reply in progress.
type Turn struct {
	ctx     context.Context
	session *Session
	client  Client
	history []llm.Message
	stream  llm.Stream

	reply    strings.Builder
	usage    *llm.Usage
	finished bool
}

// Recv returns the next chunk of the reply. After the terminal chunk or an
// error the turn is settled into the session history and Recv returns
// io.EOF or the error again.
func (t *Turn) Recv() (llm.Chunk, error) {
	if t.finished {
		return llm.Chunk{}, io.EOF
	}

	chunk, err := t.stream.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			t.finish(false)
			return llm.Chunk{}, io.EOF
		}
		t.finish(true)
		return llm.Chunk{}, err
	}

	t.reply.WriteString(chunk.Content)
	if chunk.Usage != nil {
		t.usage = chunk.Usage
	}
	if chunk.Done {
		t.finish(false)
	}
	return chunk, nil
}

// Close abandons the turn. Text received so far is kept as the reply.
func (t *Turn) Close() error {
	err := t.stream.Close()
	if !t.finished {
		t.finish(true)
	}
	return err
}

// Content returns the reply text received so far.
func (t *Turn) Content() string {
	return t.reply.String()
}

// Usage returns the usage reported with the terminal chunk, if any.
func (t *Turn) Usage() *llm.Usage {
	return t.usage
}

func (t *Turn) finish(failed bool) {
	t.finished = true
	t.stream.Close()

	content := t.reply.String()
	if failed && content == "" {
		t.session.rollback(len(t.history))
	} else {
		t.session.commit(len(t.history), content)
	}
	t.session.record(t.ctx, t.client, t.history, content, t.usage, failed)
}
