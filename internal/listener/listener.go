package listener

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/esignworks/connect-worker/internal/logging"
	"github.com/esignworks/connect-worker/internal/messaging"
	"github.com/esignworks/connect-worker/internal/messaging/nats"
	"github.com/esignworks/connect-worker/internal/metrics"
)

// DefaultCooldown is the pause between subscribe attempts.
const DefaultCooldown = 10 * time.Second

// Session is one live subscription. Closed signals that the broker stopped
// delivering, at which point the listener opens a fresh session.
type Session interface {
	Stop()
	Closed() <-chan struct{}
}

// Source opens subscriptions against the broker.
type Source interface {
	Subscribe(ctx context.Context, handler messaging.Handler) (Session, error)
}

// Config holds the subscription settings for the worker's one consumer.
type Config struct {
	Stream   nats.StreamConfig
	Consumer nats.ConsumerConfig
	Cooldown time.Duration
}

// Listener keeps the worker subscribed. Subscribe failures and dropped
// sessions trigger a cool-down followed by a fresh attempt; the loop only
// exits when the context is cancelled.
type Listener struct {
	source   Source
	handler  messaging.Handler
	cooldown time.Duration
}

// New creates a listener consuming from JetStream. Zero-value stream or
// consumer configs fall back to the worker defaults.
func New(js *nats.JetStreamClient, pipeline *Pipeline, cfg Config) *Listener {
	if cfg.Stream.Name == "" {
		cfg.Stream = nats.EnvelopeEventsStream
	}
	if cfg.Consumer.Name == "" {
		cfg.Consumer = nats.WorkerConsumer
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}

	return &Listener{
		source: &jetstreamSource{
			js:       js,
			stream:   cfg.Stream,
			consumer: cfg.Consumer,
		},
		handler:  pipeline.Handle,
		cooldown: cfg.Cooldown,
	}
}

// Run subscribes and keeps the subscription alive until ctx is cancelled.
// This loop is the process's steady-state control flow: it never gives up
// on the broker, it only waits out the cool-down and tries again.
func (l *Listener) Run(ctx context.Context) {
	defer slog.Info("listener stopped")

	for {
		metrics.Reconnects.Inc()

		session, err := l.source.Subscribe(ctx, l.handler)
		if err != nil {
			slog.Error("subscribe failed",
				"cooldown", l.cooldown.String(), logging.Error(err))
			if !l.pause(ctx) {
				return
			}
			continue
		}

		slog.Info("subscribed, waiting for envelope notifications")

		select {
		case <-ctx.Done():
			session.Stop()
			return
		case <-session.Closed():
			slog.Warn("subscription closed by broker",
				"cooldown", l.cooldown.String())
			if !l.pause(ctx) {
				return
			}
		}
	}
}

// pause waits one cool-down interval. It reports false when the context was
// cancelled while waiting.
func (l *Listener) pause(ctx context.Context) bool {
	t := time.NewTimer(l.cooldown)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// jetstreamSource provisions the stream and durable consumer, then starts
// consuming. Provisioning is repeated on every subscribe so a wiped broker
// heals without operator action.
type jetstreamSource struct {
	js       *nats.JetStreamClient
	stream   nats.StreamConfig
	consumer nats.ConsumerConfig
}

func (s *jetstreamSource) Subscribe(ctx context.Context, handler messaging.Handler) (Session, error) {
	if _, err := s.js.CreateOrUpdateStream(ctx, s.stream); err != nil {
		return nil, fmt.Errorf("ensure stream %s: %w", s.stream.Name, err)
	}

	if _, err := s.js.CreateOrUpdateConsumer(ctx, s.stream.Name, s.consumer); err != nil {
		return nil, fmt.Errorf("ensure consumer %s: %w", s.consumer.Name, err)
	}

	session, err := s.js.Consume(ctx, s.stream.Name, s.consumer.Name, handler)
	if err != nil {
		return nil, fmt.Errorf("consume %s/%s: %w", s.stream.Name, s.consumer.Name, err)
	}

	return session, nil
}
