package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/esignworks/connect-worker/internal/messaging"
)

// JetStreamClient extends Client with JetStream persistence capabilities.
type JetStreamClient struct {
	*Client
	js jetstream.JetStream
}

// StreamConfig defines a JetStream stream configuration.
type StreamConfig struct {
	// Name is the stream name.
	Name string

	// Subjects are the subjects this stream captures.
	Subjects []string

	// MaxAge is the maximum age of messages in the stream.
	MaxAge time.Duration

	// MaxBytes is the maximum total size of the stream.
	MaxBytes int64

	// MaxMsgs is the maximum number of messages in the stream.
	MaxMsgs int64

	// Retention policy (LimitsPolicy, InterestPolicy, WorkQueuePolicy).
	Retention jetstream.RetentionPolicy

	// Storage type (FileStorage, MemoryStorage).
	Storage jetstream.StorageType
}

// ConsumerConfig defines a JetStream consumer configuration.
type ConsumerConfig struct {
	// Name is the durable consumer name.
	Name string

	// FilterSubject filters which messages this consumer receives.
	FilterSubject string

	// AckWait is time to wait for acknowledgment before redelivery.
	AckWait time.Duration

	// MaxDeliver is maximum delivery attempts. Use -1 for unlimited.
	MaxDeliver int

	// MaxAckPending is maximum unacknowledged messages.
	MaxAckPending int
}

// EnvelopeEventsStream captures envelope event notifications published by
// the Connect bridge. Work-queue retention removes each message once the
// worker acknowledges it.
var EnvelopeEventsStream = StreamConfig{
	Name:      messaging.StreamEnvelopeEvents,
	Subjects:  []string{messaging.SubjectEnvelopeEvents},
	MaxAge:    24 * time.Hour,
	MaxBytes:  1024 * 1024 * 1024, // 1GB
	MaxMsgs:   1000000,
	Retention: jetstream.WorkQueuePolicy,
	Storage:   jetstream.FileStorage,
}

// WorkerConsumer is the durable consumer the fulfillment worker reads from.
// Unlimited redelivery: fulfillment is idempotent, so a message is retried
// until an operator drains it or processing succeeds.
var WorkerConsumer = ConsumerConfig{
	Name:          messaging.ConsumerWorker,
	FilterSubject: messaging.SubjectEnvelopeEvents,
	AckWait:       30 * time.Second,
	MaxDeliver:    -1,
	MaxAckPending: 100,
}

// NewJetStreamClient creates a JetStream-enabled client.
func NewJetStreamClient(cfg Config) (*JetStreamClient, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(client.conn)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &JetStreamClient{
		Client: client,
		js:     js,
	}, nil
}

// CreateOrUpdateStream creates or updates a stream.
func (c *JetStreamClient) CreateOrUpdateStream(ctx context.Context, cfg StreamConfig) (jetstream.Stream, error) {
	streamCfg := jetstream.StreamConfig{
		Name:      cfg.Name,
		Subjects:  cfg.Subjects,
		MaxAge:    cfg.MaxAge,
		MaxBytes:  cfg.MaxBytes,
		MaxMsgs:   cfg.MaxMsgs,
		Retention: cfg.Retention,
		Storage:   cfg.Storage,
	}

	stream, err := c.js.CreateOrUpdateStream(ctx, streamCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream %s: %w", cfg.Name, err)
	}

	return stream, nil
}

// CreateOrUpdateConsumer creates or updates a durable consumer.
func (c *JetStreamClient) CreateOrUpdateConsumer(ctx context.Context, streamName string, cfg ConsumerConfig) (jetstream.Consumer, error) {
	consumerCfg := jetstream.ConsumerConfig{
		Name:          cfg.Name,
		Durable:       cfg.Name,
		FilterSubject: cfg.FilterSubject,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxDeliver,
		MaxAckPending: cfg.MaxAckPending,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}

	stream, err := c.js.Stream(ctx, streamName)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream %s: %w", streamName, err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, consumerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create/update consumer %s: %w", cfg.Name, err)
	}

	return consumer, nil
}

// PublishSync publishes a message and waits for stream acknowledgment.
func (c *JetStreamClient) PublishSync(ctx context.Context, subject string, data []byte) (*jetstream.PubAck, error) {
	return c.js.Publish(ctx, subject, data)
}

// PublishMsgSync publishes a message with headers and waits for stream
// acknowledgment. A Nats-Msg-Id header enables server-side duplicate
// suppression within the stream's duplicate window.
func (c *JetStreamClient) PublishMsgSync(ctx context.Context, msg *messaging.Message) (*jetstream.PubAck, error) {
	return c.js.PublishMsg(ctx, toNatsMsg(msg))
}

// ConsumeSession is a handle on an active consume loop. Stop halts delivery;
// Closed is signaled when the loop ends for any reason, including a lost
// connection, so callers can rebuild the subscription.
type ConsumeSession struct {
	consumeCtx jetstream.ConsumeContext
}

// Stop halts message delivery for this session.
func (s *ConsumeSession) Stop() {
	s.consumeCtx.Stop()
}

// Closed returns a channel that is closed when the consume loop terminates.
func (s *ConsumeSession) Closed() <-chan struct{} {
	return s.consumeCtx.Closed()
}

// Consume starts delivering messages from a durable consumer to the handler.
// The handler owns acknowledgment: the session never settles a delivery on
// its own, so retry and redelivery decisions stay with the caller.
func (c *JetStreamClient) Consume(ctx context.Context, streamName, consumerName string, handler messaging.Handler) (*ConsumeSession, error) {
	stream, err := c.js.Stream(ctx, streamName)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream %s: %w", streamName, err)
	}

	consumer, err := stream.Consumer(ctx, consumerName)
	if err != nil {
		return nil, fmt.Errorf("failed to get consumer %s: %w", consumerName, err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		handler(ctx, deliveryFromMsg(msg))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	return &ConsumeSession{consumeCtx: consumeCtx}, nil
}

// deliveryFromMsg wraps a JetStream message in the broker-agnostic delivery
// contract, deferring Ack and NakWithDelay to the underlying message.
func deliveryFromMsg(msg jetstream.Msg) *messaging.Delivery {
	var metadata map[string]string
	if headers := msg.Headers(); headers != nil {
		metadata = make(map[string]string)
		for k := range headers {
			metadata[k] = headers.Get(k)
		}
	}

	d := messaging.NewDelivery(deliveryID(msg), msg.Subject(), msg.Data(), metadata, msg.Ack, msg.NakWithDelay)

	if meta, err := msg.Metadata(); err == nil {
		d.Attempt = meta.NumDelivered
		d.Timestamp = meta.Timestamp
	}

	return d
}

// deliveryID prefers the publisher-assigned message ID, falls back to the
// stream sequence, and mints a random ID only when neither is available.
func deliveryID(msg jetstream.Msg) string {
	if id := msg.Headers().Get(jetstream.MsgIDHeader); id != "" {
		return id
	}
	if meta, err := msg.Metadata(); err == nil {
		return fmt.Sprintf("%s-%d", meta.Stream, meta.Sequence.Stream)
	}
	return uuid.NewString()
}
