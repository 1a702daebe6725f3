// Package publisher forwards membership notifications to NATS JetStream.
//
// Every notification is published on "<prefix>.<Kind>" with its TypeID as
// the JetStream message ID, so a redelivery inside the stream's duplicate
// window is dropped by the server.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/xraph/membership/notification"
	"github.com/xraph/membership/plugin"
)

// DefaultSubjectPrefix is the subject prefix used when none is configured.
const DefaultSubjectPrefix = "membership"

// Compile-time interface checks.
var (
	_ plugin.Plugin         = (*Publisher)(nil)
	_ plugin.OnNotification = (*Publisher)(nil)
	_ plugin.OnShutdown     = (*Publisher)(nil)
)

// JetStream is the subset of jetstream.JetStream the publisher uses.
type JetStream interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Conn is the subset of *nats.Conn closed on shutdown.
type Conn interface {
	Drain() error
}

// Message is the wire form of a published notification.
type Message struct {
	ID         string            `json:"id"`
	Seq        int64             `json:"seq"`
	Kind       notification.Kind `json:"kind"`
	OccurredAt time.Time         `json:"occurred_at"`
	Data       json.RawMessage   `json:"data"`
}

// Publisher is a plugin publishing each notification to JetStream.
type Publisher struct {
	js     JetStream
	conn   Conn
	prefix string
	logger *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithSubjectPrefix sets the subject prefix.
func WithSubjectPrefix(prefix string) Option {
	return func(p *Publisher) {
		if prefix != "" {
			p.prefix = prefix
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// WithConn makes the publisher drain conn on shutdown.
func WithConn(conn Conn) Option {
	return func(p *Publisher) { p.conn = conn }
}

// New creates a publisher on an existing JetStream context.
func New(js JetStream, opts ...Option) *Publisher {
	p := &Publisher{
		js:     js,
		prefix: DefaultSubjectPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements plugin.Plugin.
func (p *Publisher) Name() string { return "nats-publisher" }

// Subject returns the subject notifications of kind are published on.
func (p *Publisher) Subject(kind notification.Kind) string {
	return p.prefix + "." + string(kind)
}

// OnNotification implements plugin.OnNotification. A publish failure is
// returned so the relay retries the notification.
func (p *Publisher) OnNotification(ctx context.Context, n *notification.Notification) error {
	data, err := json.Marshal(Message{
		ID:         n.ID.String(),
		Seq:        n.Seq,
		Kind:       n.Kind,
		OccurredAt: n.OccurredAt,
		Data:       n.Data,
	})
	if err != nil {
		return fmt.Errorf("publisher: encode %s: %w", n.ID, err)
	}

	subject := p.Subject(n.Kind)
	ack, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(n.ID.String()))
	if err != nil {
		return fmt.Errorf("publisher: publish %s: %w", subject, err)
	}
	if ack != nil && ack.Duplicate {
		p.logger.Debug("publisher: duplicate notification dropped by stream",
			"notification_id", n.ID.String(),
			"stream", ack.Stream,
		)
	}
	return nil
}

// OnShutdown implements plugin.OnShutdown.
func (p *Publisher) OnShutdown(_ context.Context) error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}

// Config holds the settings for Connect.
type Config struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	DuplicateWindow time.Duration
	MaxReconnects   int
	ReconnectWait   time.Duration
	ConnectionName  string
}

// Connect dials NATS, ensures the stream exists and returns a publisher
// that owns the connection.
func Connect(ctx context.Context, cfg Config, opts ...Option) (*Publisher, error) {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = DefaultSubjectPrefix
	}
	if cfg.DuplicateWindow == 0 {
		cfg.DuplicateWindow = 2 * time.Minute
	}
	logger := slog.Default()

	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("publisher: disconnected from NATS", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("publisher: reconnected to NATS", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("publisher: connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("publisher: jetstream: %w", err)
	}

	if cfg.StreamName != "" {
		if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:       cfg.StreamName,
			Subjects:   []string{cfg.SubjectPrefix + ".>"},
			Duplicates: cfg.DuplicateWindow,
		}); err != nil {
			nc.Close()
			return nil, fmt.Errorf("publisher: ensure stream %s: %w", cfg.StreamName, err)
		}
	}

	base := []Option{WithSubjectPrefix(cfg.SubjectPrefix), WithConn(nc), WithLogger(logger)}
	return New(js, append(base, opts...)...), nil
}
