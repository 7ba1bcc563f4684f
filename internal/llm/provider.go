// Package llm talks to chat model backends. Each backend is wrapped by an
// adapter implementing Provider; Client is the single entry point callers use.
package llm

import (
	"context"
	"time"

	"github.com/simonyos/zchat/internal/config"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message represents a chat message
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Usage holds token counts reported by a backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse is the result of a non-streaming call.
type ChatResponse struct {
	Content  string
	Model    string
	Provider config.ProviderID
	Usage    *Usage // nil when the backend reported no counts
}

// Chunk is one piece of a streamed response. The last chunk of a stream has
// Done set; its Content may be empty.
type Chunk struct {
	Content  string
	Done     bool
	Model    string
	Provider config.ProviderID
	Usage    *Usage // only on the terminal chunk, when reported
}

// Stream is a finite, pull-based sequence of chunks. Recv returns io.EOF
// after the terminal chunk. Close releases the underlying connection and
// may be called at any time, including concurrently with Recv.
type Stream interface {
	Recv() (Chunk, error)
	Close() error
}

// ModelDescriptor describes one model offered by a backend.
type ModelDescriptor struct {
	Name          string
	Size          int64
	Digest        string
	ModifiedAt    time.Time
	Family        string
	ParameterSize string
	Quantization  string
}

// Provider is the interface for LLM backends
type Provider interface {
	// Chat sends the conversation and waits for the full reply.
	Chat(ctx context.Context, messages []Message) (ChatResponse, error)

	// ChatStream sends the conversation and streams the reply.
	ChatStream(ctx context.Context, messages []Message) (Stream, error)

	// IsAvailable reports whether the backend answers within a short
	// timeout. It never fails; any error means false.
	IsAvailable(ctx context.Context) bool

	// Model returns the configured model name.
	Model() string

	// Name returns the provider identifier.
	Name() config.ProviderID
}

// ModelLister is implemented by providers that can enumerate their models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelDescriptor, error)
}
