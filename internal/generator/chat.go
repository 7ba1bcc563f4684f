package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/simonyos/zchat/internal/config"
	"github.com/simonyos/zchat/internal/llm"
	"github.com/simonyos/zchat/internal/usage"
)

// ChatClient is the part of llm.Client a ChatGenerator needs.
type ChatClient interface {
	Chat(ctx context.Context, messages []llm.Message) (llm.ChatResponse, error)
	ChatStream(ctx context.Context, messages []llm.Message) (llm.Stream, error)
	Provider() config.ProviderID
	Model() string
}

// ChatGenerator serves generation requests through a chat client. The
// request's turns are flattened into a single user prompt.
type ChatGenerator struct {
	client   ChatClient
	recorder usage.Recorder
}

// NewChatGenerator wraps client. recorder may be nil.
func NewChatGenerator(client ChatClient, recorder usage.Recorder) *ChatGenerator {
	return &ChatGenerator{client: client, recorder: recorder}
}

// messages builds the chat history for req: an optional system message from
// the system instruction, then the flattened prompt as one user message.
func (g *ChatGenerator) messages(req *Request) (string, []llm.Message) {
	prompt := FlattenText(req.Contents)

	var msgs []llm.Message
	if req.Config != nil && req.Config.SystemInstruction != nil {
		if system := FlattenText([]*genai.Content{req.Config.SystemInstruction}); system != "" {
			msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})
		}
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: prompt})
	return prompt, msgs
}

// GenerateContent runs one non-streaming chat call. It never returns an
// error for a provider failure.
func (g *ChatGenerator) GenerateContent(ctx context.Context, req *Request) (*genai.GenerateContentResponse, error) {
	provider := g.client.Provider()
	prompt, msgs := g.messages(req)

	resp, err := g.client.Chat(ctx, msgs)
	if err != nil {
		slog.Warn("generation failed", "provider", provider, "model", g.client.Model(), "error", err)
		g.record(ctx, g.client.Model(), zeroUsage(), false, true)
		return diagnosticResponse(provider, g.client.Model(), err), nil
	}

	u, estimated := usageFor(provider, resp.Usage, prompt, resp.Content)
	g.record(ctx, resp.Model, u, estimated, false)
	return textResponse(resp.Content, resp.Model, genai.FinishReasonStop, u), nil
}

// GenerateContentStream yields one fragment per streamed chunk and a final
// fragment carrying the finish reason and usage. The error value is always
// nil; failures arrive as a diagnostic fragment.
func (g *ChatGenerator) GenerateContentStream(ctx context.Context, req *Request) iter.Seq2[*genai.GenerateContentResponse, error] {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		provider := g.client.Provider()
		model := g.client.Model()
		prompt, msgs := g.messages(req)

		fail := func(err error) {
			slog.Warn("streaming generation failed", "provider", provider, "model", model, "error", err)
			g.record(ctx, model, zeroUsage(), false, true)
			yield(diagnosticResponse(provider, model, err), nil)
		}

		stream, err := g.client.ChatStream(ctx, msgs)
		if err != nil {
			fail(err)
			return
		}
		defer stream.Close()

		var text strings.Builder
		var reported *llm.Usage
		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				fail(err)
				return
			}
			if chunk.Model != "" {
				model = chunk.Model
			}
			if chunk.Content != "" {
				text.WriteString(chunk.Content)
				fragment := &genai.GenerateContentResponse{
					Candidates:   []*genai.Candidate{{Content: textContent(chunk.Content)}},
					ModelVersion: model,
				}
				if !yield(fragment, nil) {
					return
				}
			}
			if chunk.Done {
				reported = chunk.Usage
				break
			}
		}

		u, estimated := usageFor(provider, reported, prompt, text.String())
		g.record(ctx, model, u, estimated, false)
		yield(&genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content:      &genai.Content{Role: string(genai.RoleModel)},
				FinishReason: genai.FinishReasonStop,
			}},
			UsageMetadata: u,
			ModelVersion:  model,
		}, nil)
	}
}

// CountTokens estimates the prompt size without calling the provider.
func (g *ChatGenerator) CountTokens(_ context.Context, req *Request) (*genai.CountTokensResponse, error) {
	return &genai.CountTokensResponse{
		TotalTokens: EstimateTokens(g.client.Provider(), FlattenText(req.Contents)),
	}, nil
}

// EmbedContent is not offered by chat backends.
func (g *ChatGenerator) EmbedContent(context.Context, *EmbedRequest) (*genai.EmbedContentResponse, error) {
	return nil, fmt.Errorf("embed content with %s: %w", g.client.Provider(), ErrUnsupportedOperation)
}

func (g *ChatGenerator) record(ctx context.Context, model string, u *genai.GenerateContentResponseUsageMetadata, estimated, failed bool) {
	if g.recorder == nil {
		return
	}
	entry := usage.Entry{
		Timestamp:        time.Now(),
		Provider:         string(g.client.Provider()),
		Model:            model,
		PromptTokens:     int(u.PromptTokenCount),
		CompletionTokens: int(u.CandidatesTokenCount),
		TotalTokens:      int(u.TotalTokenCount),
		Estimated:        estimated,
		Failed:           failed,
	}
	if err := g.recorder.Record(ctx, entry); err != nil {
		slog.Warn("failed to record usage", "error", err)
	}
}

var _ ContentGenerator = (*ChatGenerator)(nil)
