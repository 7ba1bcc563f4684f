package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/simonyos/zchat/internal/config"
)

const (
	// Default timeout for chat requests (long generations on local hardware
	// can take minutes)
	defaultRequestTimeout = 5 * time.Minute

	// availabilityTimeout bounds IsAvailable probes.
	availabilityTimeout = 5 * time.Second
)

// Client is the provider-neutral entry point. It wraps exactly one adapter
// chosen by the ProviderConfig it was built from.
type Client struct {
	cfg      config.ProviderConfig
	provider Provider
}

type options struct {
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*options)

// WithHTTPClient sets the HTTP client used by the adapter.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// New builds a Client for cfg. It fails with a *config.ConfigurationError
// when the variant matching cfg.Provider is missing.
func New(cfg config.ProviderConfig, opts ...Option) (*Client, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	var p Provider
	switch cfg.Provider {
	case config.ProviderLocal:
		if cfg.Local == nil {
			return nil, config.MissingProviderConfig(cfg.Provider)
		}
		p = NewOllama(*cfg.Local, o.httpClient)
	case config.ProviderCloud:
		if cfg.Cloud == nil || cfg.Cloud.APIKey == "" {
			return nil, config.MissingProviderConfig(cfg.Provider)
		}
		p = NewAnthropic(*cfg.Cloud, o.httpClient)
	default:
		return nil, config.UnknownProvider(string(cfg.Provider))
	}

	return &Client{cfg: cfg, provider: p}, nil
}

// NewFromEnv reads the provider configuration through lookup and builds a
// Client from it.
func NewFromEnv(lookup config.LookupFunc, opts ...Option) (*Client, error) {
	cfg, err := config.FromEnv(lookup)
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

// Chat sends messages and waits for the full reply. The caller keeps
// ownership of messages.
func (c *Client) Chat(ctx context.Context, messages []Message) (ChatResponse, error) {
	resp, err := c.provider.Chat(ctx, messages)
	if err != nil {
		return ChatResponse{}, err
	}
	resp.Provider = c.provider.Name()
	if resp.Model == "" {
		resp.Model = c.provider.Model()
	}
	return resp, nil
}

// ChatStream sends messages and returns the reply as a stream. The last
// chunk received always has Done set.
func (c *Client) ChatStream(ctx context.Context, messages []Message) (Stream, error) {
	inner, err := c.provider.ChatStream(ctx, messages)
	if err != nil {
		return nil, err
	}
	return &terminatedStream{
		inner:    inner,
		provider: c.provider.Name(),
		model:    c.provider.Model(),
	}, nil
}

// IsAvailable reports whether the backend answers.
func (c *Client) IsAvailable(ctx context.Context) bool {
	return c.provider.IsAvailable(ctx)
}

// ListModels lists the models the backend offers.
func (c *Client) ListModels(ctx context.Context) ([]ModelDescriptor, error) {
	lister, ok := c.provider.(ModelLister)
	if !ok {
		return nil, fmt.Errorf("list models: %w", ErrUnsupportedOperation)
	}
	return lister.ListModels(ctx)
}

// Provider returns the active provider identifier.
func (c *Client) Provider() config.ProviderID {
	return c.provider.Name()
}

// Model returns the active model name.
func (c *Client) Model() string {
	return c.provider.Model()
}

// Config returns the configuration the client was built from.
func (c *Client) Config() config.ProviderConfig {
	return c.cfg
}
