package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/simonyos/zchat/internal/config"
)

// OllamaAdapter implements Provider against a local Ollama server.
type OllamaAdapter struct {
	host   string
	model  string
	client *http.Client
}

// Ollama API types
type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"` // the server streams unless told otherwise
}

// ollamaChatResponse is both the non-streaming reply and one streamed frame.
type ollamaChatResponse struct {
	Model           string        `json:"model"`
	CreatedAt       string        `json:"created_at"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	DoneReason      string        `json:"done_reason,omitempty"`
	PromptEvalCount int           `json:"prompt_eval_count,omitempty"`
	EvalCount       int           `json:"eval_count,omitempty"`
	Error           string        `json:"error,omitempty"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name       string    `json:"name"`
		Size       int64     `json:"size"`
		Digest     string    `json:"digest"`
		ModifiedAt time.Time `json:"modified_at"`
		Details    struct {
			Family            string `json:"family"`
			ParameterSize     string `json:"parameter_size"`
			QuantizationLevel string `json:"quantization_level"`
		} `json:"details"`
	} `json:"models"`
}

// NewOllama creates an adapter for the given local config.
func NewOllama(cfg config.LocalConfig, client *http.Client) *OllamaAdapter {
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &OllamaAdapter{
		host:   cfg.Host,
		model:  cfg.Model,
		client: client,
	}
}

func toOllamaMessages(messages []Message) []ollamaMessage {
	out := make([]ollamaMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, ollamaMessage{Role: msg.Role, Content: msg.Content})
	}
	return out
}

func (o *OllamaAdapter) post(ctx context.Context, messages []Message, stream bool) (*http.Response, error) {
	jsonBody, err := json.Marshal(ollamaChatRequest{
		Model:    o.model,
		Messages: toOllamaMessages(messages),
		Stream:   stream,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.host+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	slog.Debug("sending chat request",
		"provider", config.ProviderLocal,
		"model", o.model,
		"messages", len(messages),
		"stream", stream)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if err := checkResponse(config.ProviderLocal, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Chat sends a non-streaming request.
func (o *OllamaAdapter) Chat(ctx context.Context, messages []Message) (ChatResponse, error) {
	resp, err := o.post(ctx, messages, false)
	if err != nil {
		return ChatResponse{}, err
	}
	defer resp.Body.Close()

	var reply ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return ChatResponse{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if reply.Error != "" {
		return ChatResponse{}, &StreamError{Provider: config.ProviderLocal, Message: reply.Error}
	}

	return ChatResponse{
		Content:  reply.Message.Content,
		Model:    orModel(reply.Model, o.model),
		Provider: config.ProviderLocal,
		Usage:    ollamaUsage(reply),
	}, nil
}

// ChatStream sends a streaming request. Each line of the body is one JSON
// frame.
func (o *OllamaAdapter) ChatStream(ctx context.Context, messages []Message) (Stream, error) {
	resp, err := o.post(ctx, messages, true)
	if err != nil {
		return nil, err
	}

	frames := newFrameStream(ctx, config.ProviderLocal, resp.Body, parseOllamaFrame)
	return &chunkStream[ollamaChatResponse]{
		frames:  frames,
		convert: o.convertFrame,
	}, nil
}

func parseOllamaFrame(line string) (ollamaChatResponse, bool, error) {
	var frame ollamaChatResponse
	if err := json.Unmarshal([]byte(line), &frame); err != nil {
		return frame, false, &malformedFrameError{err: err}
	}
	if frame.Error != "" {
		return frame, false, &StreamError{Provider: config.ProviderLocal, Message: frame.Error}
	}
	return frame, true, nil
}

func (o *OllamaAdapter) convertFrame(frame ollamaChatResponse) (Chunk, bool) {
	if frame.Message.Content == "" && !frame.Done {
		return Chunk{}, false
	}
	chunk := Chunk{
		Content:  frame.Message.Content,
		Done:     frame.Done,
		Model:    orModel(frame.Model, o.model),
		Provider: config.ProviderLocal,
	}
	if frame.Done {
		chunk.Usage = ollamaUsage(frame)
	}
	return chunk, true
}

func ollamaUsage(r ollamaChatResponse) *Usage {
	if r.PromptEvalCount == 0 && r.EvalCount == 0 {
		return nil
	}
	return &Usage{
		PromptTokens:     r.PromptEvalCount,
		CompletionTokens: r.EvalCount,
		TotalTokens:      r.PromptEvalCount + r.EvalCount,
	}
}

// IsAvailable checks that GET /api/tags answers 2xx within the probe
// timeout.
func (o *OllamaAdapter) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, availabilityTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(req)
	if err != nil {
		slog.Debug("ollama probe failed", "host", o.host, "error", err)
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// ListModels returns the models installed on the server, in server order.
func (o *OllamaAdapter) ListModels(ctx context.Context) ([]ModelDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.host+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if err := checkResponse(config.ProviderLocal, resp); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to parse model list: %w", err)
	}

	models := make([]ModelDescriptor, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, ModelDescriptor{
			Name:          m.Name,
			Size:          m.Size,
			Digest:        m.Digest,
			ModifiedAt:    m.ModifiedAt,
			Family:        m.Details.Family,
			ParameterSize: m.Details.ParameterSize,
			Quantization:  m.Details.QuantizationLevel,
		})
	}
	return models, nil
}

// Model returns the configured model
func (o *OllamaAdapter) Model() string { return o.model }

// Name returns the provider identifier
func (o *OllamaAdapter) Name() config.ProviderID { return config.ProviderLocal }

// Host returns the server base URL
func (o *OllamaAdapter) Host() string { return o.host }

func orModel(reported, configured string) string {
	if reported != "" {
		return reported
	}
	return configured
}

var (
	_ Provider    = (*OllamaAdapter)(nil)
	_ ModelLister = (*OllamaAdapter)(nil)
)
