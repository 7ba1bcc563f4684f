package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/simonyos/zchat/internal/config"
)

const anthropicVersion = "2023-06-01"

// AnthropicAdapter implements Provider using the Claude Messages API.
type AnthropicAdapter struct {
	apiKey    string
	model     string
	maxTokens int
	baseURL   string
	client    *http.Client
}

// Anthropic API types
type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Stream    bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Role       string                  `json:"role"`
	Content    []anthropicContentBlock `json:"content"`
	Model      string                  `json:"model"`
	StopReason string                  `json:"stop_reason"`
	Usage      anthropicUsage          `json:"usage"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// anthropicEvent is one SSE data payload.
type anthropicEvent struct {
	Type    string             `json:"type"`
	Index   int                `json:"index,omitempty"`
	Message *anthropicResponse `json:"message,omitempty"`
	Delta   *struct {
		Type       string `json:"type"`
		Text       string `json:"text,omitempty"`
		StopReason string `json:"stop_reason,omitempty"`
	} `json:"delta,omitempty"`
	Usage *anthropicUsage `json:"usage,omitempty"`
	Error *anthropicError `json:"error,omitempty"`
}

type anthropicModelsResponse struct {
	Data []struct {
		ID          string    `json:"id"`
		DisplayName string    `json:"display_name"`
		CreatedAt   time.Time `json:"created_at"`
	} `json:"data"`
}

// NewAnthropic creates an adapter for the given cloud config.
func NewAnthropic(cfg config.CloudConfig, client *http.Client) *AnthropicAdapter {
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultAnthropicBaseURL
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = config.DefaultAnthropicMaxTokens
	}
	return &AnthropicAdapter{
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: maxTokens,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		client:    client,
	}
}

// splitSystem moves system messages out of the turn list. Their contents are
// joined by newlines; the result is empty when there are none.
func splitSystem(messages []Message) (string, []anthropicMessage) {
	var system []string
	turns := make([]anthropicMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		turns = append(turns, anthropicMessage{Role: msg.Role, Content: msg.Content})
	}
	return strings.Join(system, "\n"), turns
}

func (a *AnthropicAdapter) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	return req, nil
}

func (a *AnthropicAdapter) post(ctx context.Context, messages []Message, stream bool) (*http.Response, error) {
	system, turns := splitSystem(messages)
	req, err := a.newRequest(ctx, http.MethodPost, "/v1/messages", anthropicRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    system,
		Messages:  turns,
		Stream:    stream,
	})
	if err != nil {
		return nil, err
	}
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	slog.Debug("sending chat request",
		"provider", config.ProviderCloud,
		"model", a.model,
		"messages", len(turns),
		"stream", stream)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if err := checkResponse(config.ProviderCloud, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Chat sends a non-streaming request. The reply content is the first text
// block, or empty when the model returned none.
func (a *AnthropicAdapter) Chat(ctx context.Context, messages []Message) (ChatResponse, error) {
	resp, err := a.post(ctx, messages, false)
	if err != nil {
		return ChatResponse{}, err
	}
	defer resp.Body.Close()

	var reply anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return ChatResponse{}, fmt.Errorf("failed to parse response: %w", err)
	}

	var content string
	for _, block := range reply.Content {
		if block.Type == "text" {
			content = block.Text
			break
		}
	}

	return ChatResponse{
		Content:  content,
		Model:    orModel(reply.Model, a.model),
		Provider: config.ProviderCloud,
		Usage: &Usage{
			PromptTokens:     reply.Usage.InputTokens,
			CompletionTokens: reply.Usage.OutputTokens,
			TotalTokens:      reply.Usage.InputTokens + reply.Usage.OutputTokens,
		},
	}, nil
}

// ChatStream sends a streaming request and reads the SSE body.
func (a *AnthropicAdapter) ChatStream(ctx context.Context, messages []Message) (Stream, error) {
	resp, err := a.post(ctx, messages, true)
	if err != nil {
		return nil, err
	}

	frames := newFrameStream(ctx, config.ProviderCloud, resp.Body, parseAnthropicLine)
	return &chunkStream[anthropicEvent]{
		frames:  frames,
		convert: a.eventConverter(),
	}, nil
}

// parseAnthropicLine handles one SSE line. Only data lines carry frames;
// event names are implied by the payload type.
func parseAnthropicLine(line string) (anthropicEvent, bool, error) {
	var event anthropicEvent
	data, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return event, false, nil
	}
	data = strings.TrimSpace(data)
	if data == "[DONE]" {
		return event, false, errEndOfStream
	}
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return event, false, &malformedFrameError{err: err}
	}
	if event.Type == "error" && event.Error != nil {
		return event, false, &StreamError{
			Provider: config.ProviderCloud,
			Kind:     event.Error.Type,
			Message:  event.Error.Message,
		}
	}
	return event, true, nil
}

// eventConverter returns a per-stream converter. Text deltas become chunks
// and message_stop becomes the terminal chunk; every other event only
// updates model and usage bookkeeping.
func (a *AnthropicAdapter) eventConverter() func(anthropicEvent) (Chunk, bool) {
	model := a.model
	var usage Usage

	return func(event anthropicEvent) (Chunk, bool) {
		switch event.Type {
		case "message_start":
			if event.Message != nil {
				model = orModel(event.Message.Model, model)
				usage.PromptTokens = event.Message.Usage.InputTokens
			}
		case "content_block_delta":
			if event.Delta != nil && event.Delta.Type == "text_delta" {
				return Chunk{Content: event.Delta.Text, Model: model, Provider: config.ProviderCloud}, true
			}
		case "message_delta":
			if event.Usage != nil {
				usage.CompletionTokens = event.Usage.OutputTokens
			}
		case "message_stop":
			final := usage
			final.TotalTokens = final.PromptTokens + final.CompletionTokens
			return Chunk{Done: true, Model: model, Provider: config.ProviderCloud, Usage: &final}, true
		}
		return Chunk{}, false
	}
}

// IsAvailable sends a one-token request. Any answer below 500 means the
// service is up, even if it rejected the key or quota.
func (a *AnthropicAdapter) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, availabilityTimeout)
	defer cancel()

	req, err := a.newRequest(ctx, http.MethodPost, "/v1/messages", anthropicRequest{
		Model:     a.model,
		MaxTokens: 1,
		Messages:  []anthropicMessage{{Role: RoleUser, Content: "ping"}},
	})
	if err != nil {
		return false
	}
	resp, err := a.client.Do(req)
	if err != nil {
		slog.Debug("anthropic probe failed", "error", err)
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// ListModels returns the models the API key can use.
func (a *AnthropicAdapter) ListModels(ctx context.Context) ([]ModelDescriptor, error) {
	req, err := a.newRequest(ctx, http.MethodGet, "/v1/models", nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if err := checkResponse(config.ProviderCloud, resp); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var list anthropicModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to parse model list: %w", err)
	}

	models := make([]ModelDescriptor, 0, len(list.Data))
	for _, m := range list.Data {
		models = append(models, ModelDescriptor{
			Name:       m.ID,
			ModifiedAt: m.CreatedAt,
			Family:     m.DisplayName,
		})
	}
	return models, nil
}

// Model returns the configured model
func (a *AnthropicAdapter) Model() string { return a.model }

// Name returns the provider identifier
func (a *AnthropicAdapter) Name() config.ProviderID { return config.ProviderCloud }

var (
	_ Provider    = (*AnthropicAdapter)(nil)
	_ ModelLister = (*AnthropicAdapter)(nil)
)
