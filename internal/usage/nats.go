package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectPrefix is prepended to the provider name to form the subject.
const SubjectPrefix = "zchat.usage."

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL            string
	Token          string
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
}

// DefaultNATSConfig returns the default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:            nats.DefaultURL, // "nats://localhost:4222"
		ConnectTimeout: 5 * time.Second,
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  60,
	}
}

// NATSRecorder publishes entries as JSON to zchat.usage.<provider>.
type NATSRecorder struct {
	conn *nats.Conn
}

// NewNATSRecorder connects to the server in cfg.
func NewNATSRecorder(cfg NATSConfig) (*NATSRecorder, error) {
	opts := []nats.Option{
		nats.Name("zchat-usage"),
		nats.Timeout(cfg.ConnectTimeout),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("usage publisher disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("usage publisher reconnected", "url", nc.ConnectedUrl())
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	return &NATSRecorder{conn: conn}, nil
}

// Subject returns the subject entries for provider are published on.
func Subject(provider string) string {
	return SubjectPrefix + provider
}

// Record publishes entry. Delivery is fire-and-forget; ctx only bounds the
// flush.
func (r *NATSRecorder) Record(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal usage entry: %w", err)
	}
	if err := r.conn.Publish(Subject(entry.Provider), data); err != nil {
		return fmt.Errorf("failed to publish usage entry: %w", err)
	}
	if _, ok := ctx.Deadline(); ok {
		return r.conn.FlushWithContext(ctx)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (r *NATSRecorder) Close() error {
	return r.conn.Drain()
}
