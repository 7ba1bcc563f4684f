// Package generator exposes chat backends as content generators: a
// request/response shape with candidates and token accounting, as used by
// the Gemini API. Generation never fails on a provider error; the failure is
// reported as a diagnostic candidate instead.
package generator

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/genai"

	"github.com/simonyos/zchat/internal/config"
	"github.com/simonyos/zchat/internal/llm"
	"github.com/simonyos/zchat/internal/usage"
)

// ErrUnsupportedOperation is returned by operations a backend cannot serve.
var ErrUnsupportedOperation = llm.ErrUnsupportedOperation

// Request is a generation request. Only text parts of Contents are used by
// chat-backed generators.
type Request struct {
	Model    string
	Contents []*genai.Content
	Config   *genai.GenerateContentConfig
}

// EmbedRequest is an embedding request.
type EmbedRequest struct {
	Model    string
	Contents []*genai.Content
	Config   *genai.EmbedContentConfig
}

// ContentGenerator generates content with token accounting.
type ContentGenerator interface {
	// GenerateContent returns one complete response. Provider failures are
	// reported as a diagnostic candidate, not an error.
	GenerateContent(ctx context.Context, req *Request) (*genai.GenerateContentResponse, error)

	// GenerateContentStream yields response fragments. A failure ends the
	// sequence with one diagnostic fragment.
	GenerateContentStream(ctx context.Context, req *Request) iter.Seq2[*genai.GenerateContentResponse, error]

	CountTokens(ctx context.Context, req *Request) (*genai.CountTokensResponse, error)
	EmbedContent(ctx context.Context, req *EmbedRequest) (*genai.EmbedContentResponse, error)
}

// Backend names accepted by New.
const (
	BackendChat   = "chat"
	BackendGemini = "gemini"
)

// Options configures New.
type Options struct {
	// Backend is BackendChat (default) or BackendGemini.
	Backend string

	// Client backs BackendChat.
	Client ChatClient

	// Lookup supplies GEMINI_* settings for BackendGemini.
	Lookup config.LookupFunc

	// Recorder receives one entry per generation call. May be nil.
	Recorder usage.Recorder
}

// New returns the generator for opts.Backend.
func New(ctx context.Context, opts Options) (ContentGenerator, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendChat:
		if opts.Client == nil {
			return nil, fmt.Errorf("chat backend requires a client")
		}
		return NewChatGenerator(opts.Client, opts.Recorder), nil
	case BackendGemini:
		lookup := opts.Lookup
		if lookup == nil {
			lookup = func(string) (string, bool) { return "", false }
		}
		cfg, err := config.GeminiFromEnv(lookup)
		if err != nil {
			return nil, err
		}
		return NewGemini(ctx, cfg, opts.Recorder)
	default:
		return nil, fmt.Errorf("unknown generation backend %q (want %s or %s)", opts.Backend, BackendChat, BackendGemini)
	}
}

// FlattenText joins the text parts of every turn with newlines. Non-text
// parts and empty turns are skipped.
func FlattenText(contents []*genai.Content) string {
	var texts []string
	for _, c := range contents {
		if c == nil {
			continue
		}
		for _, p := range c.Parts {
			if p == nil || p.Text == "" {
				continue
			}
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

func textContent(text string) *genai.Content {
	return &genai.Content{
		Role:  string(genai.RoleModel),
		Parts: []*genai.Part{{Text: text}},
	}
}

func textResponse(text, model string, reason genai.FinishReason, u *genai.GenerateContentResponseUsageMetadata) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      textContent(text),
			FinishReason: reason,
		}},
		UsageMetadata: u,
		ModelVersion:  model,
	}
}

func zeroUsage() *genai.GenerateContentResponseUsageMetadata {
	return &genai.GenerateContentResponseUsageMetadata{}
}
