package generator

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/simonyos/zchat/internal/config"
	"github.com/simonyos/zchat/internal/usage"
)

const providerGemini config.ProviderID = "gemini"

const defaultEmbeddingModel = "gemini-embedding-001"

// GeminiGenerator serves requests from the Gemini API directly.
type GeminiGenerator struct {
	models   *genai.Models
	model    string
	recorder usage.Recorder
}

// NewGemini creates a Gemini API client. recorder may be nil.
func NewGemini(ctx context.Context, cfg config.GeminiConfig, recorder usage.Recorder) (*GeminiGenerator, error) {
	return newGemini(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}, cfg.Model, recorder)
}

func newGemini(ctx context.Context, cc *genai.ClientConfig, model string, recorder usage.Recorder) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = config.DefaultGeminiModel
	}
	return &GeminiGenerator{models: client.Models, model: model, recorder: recorder}, nil
}

func (g *GeminiGenerator) modelFor(req *Request) string {
	if req.Model != "" {
		return req.Model
	}
	return g.model
}

// GenerateContent calls the API. Failures are reported as a diagnostic
// candidate.
func (g *GeminiGenerator) GenerateContent(ctx context.Context, req *Request) (*genai.GenerateContentResponse, error) {
	model := g.modelFor(req)
	resp, err := g.models.GenerateContent(ctx, model, req.Contents, req.Config)
	if err != nil {
		slog.Warn("generation failed", "provider", providerGemini, "model", model, "error", err)
		g.record(ctx, model, nil, true)
		return diagnosticResponse(providerGemini, model, err), nil
	}
	fillTotal(resp.UsageMetadata)
	g.record(ctx, model, resp.UsageMetadata, false)
	return resp, nil
}

// GenerateContentStream relays the API stream. A failure ends the sequence
// with one diagnostic fragment.
func (g *GeminiGenerator) GenerateContentStream(ctx context.Context, req *Request) iter.Seq2[*genai.GenerateContentResponse, error] {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		model := g.modelFor(req)
		var last *genai.GenerateContentResponseUsageMetadata
		for resp, err := range g.models.GenerateContentStream(ctx, model, req.Contents, req.Config) {
			if err != nil {
				slog.Warn("streaming generation failed", "provider", providerGemini, "model", model, "error", err)
				g.record(ctx, model, nil, true)
				yield(diagnosticResponse(providerGemini, model, err), nil)
				return
			}
			if resp.UsageMetadata != nil {
				fillTotal(resp.UsageMetadata)
				last = resp.UsageMetadata
			}
			if !yield(resp, nil) {
				return
			}
		}
		g.record(ctx, model, last, false)
	}
}

// CountTokens estimates locally with the Gemini divisor. It makes no API
// call.
func (g *GeminiGenerator) CountTokens(_ context.Context, req *Request) (*genai.CountTokensResponse, error) {
	return &genai.CountTokensResponse{
		TotalTokens: EstimateTokens(providerGemini, FlattenText(req.Contents)),
	}, nil
}

// EmbedContent calls the embeddings endpoint.
func (g *GeminiGenerator) EmbedContent(ctx context.Context, req *EmbedRequest) (*genai.EmbedContentResponse, error) {
	model := req.Model
	if model == "" {
		model = defaultEmbeddingModel
	}
	return g.models.EmbedContent(ctx, model, req.Contents, req.Config)
}

// fillTotal sets the total to prompt + candidates when the API left it out.
func fillTotal(u *genai.GenerateContentResponseUsageMetadata) {
	if u != nil && u.TotalTokenCount == 0 {
		u.TotalTokenCount = u.PromptTokenCount + u.CandidatesTokenCount
	}
}

func (g *GeminiGenerator) record(ctx context.Context, model string, u *genai.GenerateContentResponseUsageMetadata, failed bool) {
	if g.recorder == nil {
		return
	}
	entry := usage.Entry{
		Timestamp: time.Now(),
		Provider:  string(providerGemini),
		Model:     model,
		Failed:    failed,
	}
	if u != nil {
		entry.PromptTokens = int(u.PromptTokenCount)
		entry.CompletionTokens = int(u.CandidatesTokenCount)
		entry.TotalTokens = int(u.TotalTokenCount)
	}
	if err := g.recorder.Record(ctx, entry); err != nil {
		slog.Warn("failed to record usage", "error", err)
	}
}

var _ ContentGenerator = (*GeminiGenerator)(nil)
