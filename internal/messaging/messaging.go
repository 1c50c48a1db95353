// Package messaging provides abstractions for message broker communication.
// It defines the delivery contract the worker consumes so the pipeline is not
// coupled to a specific broker implementation.
package messaging

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSettled is returned when Ack or Nak is called on a delivery that has
// already been acknowledged or negatively acknowledged.
var ErrSettled = errors.New("delivery already settled")

// Delivery is one at-least-once message handed to the worker. The broker owns
// the message until exactly one of Ack or Nak is called; duplicates and
// out-of-order redelivery are expected, not exceptional.
type Delivery struct {
	// ID identifies the message for logging and duplicate tracking.
	ID string

	// Subject is the topic/channel the message was published to.
	Subject string

	// Data is the raw message payload.
	Data []byte

	// Metadata contains optional key-value pairs from message headers.
	Metadata map[string]string

	// Attempt is the delivery attempt count when the broker provides it
	// (1 for the first delivery).
	Attempt uint64

	// Timestamp is when the message was published.
	Timestamp time.Time

	ack func() error
	nak func(delay time.Duration) error

	mu      sync.Mutex
	settled bool
}

// NewDelivery constructs a Delivery with the given acknowledgment callbacks.
// Either callback may be nil (useful in tests); settling still happens.
func NewDelivery(id, subject string, data []byte, metadata map[string]string, ack func() error, nak func(time.Duration) error) *Delivery {
	return &Delivery{
		ID:        id,
		Subject:   subject,
		Data:      data,
		Metadata:  metadata,
		Timestamp: time.Now(),
		ack:       ack,
		nak:       nak,
	}
}

// Ack acknowledges the delivery, removing it from the broker. Calling Ack or
// Nak more than once returns ErrSettled without reaching the broker.
func (d *Delivery) Ack() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.settled {
		return ErrSettled
	}
	d.settled = true

	if d.ack == nil {
		return nil
	}
	return d.ack()
}

// Nak negatively acknowledges the delivery, asking the broker to redeliver
// after the given delay.
func (d *Delivery) Nak(delay time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.settled {
		return ErrSettled
	}
	d.settled = true

	if d.nak == nil {
		return nil
	}
	return d.nak(delay)
}

// Settled reports whether Ack or Nak has been called.
func (d *Delivery) Settled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settled
}

// Handler processes one delivery. The handler is responsible for settling the
// delivery with exactly one Ack or Nak; the broker may invoke handlers for
// several in-flight deliveries concurrently.
type Handler func(ctx context.Context, d *Delivery)

// Message is an outbound message.
type Message struct {
	// Subject is the topic/channel to publish to.
	Subject string

	// Data is the raw message payload.
	Data []byte

	// Metadata contains optional key-value pairs for message headers.
	Metadata map[string]string
}

// Publisher publishes messages to subjects.
type Publisher interface {
	// Publish sends a message to the specified subject, fire-and-forget.
	Publish(ctx context.Context, subject string, data []byte) error

	// PublishMsg sends a Message with full control over headers.
	PublishMsg(ctx context.Context, msg *Message) error

	// Close releases any resources held by the publisher.
	Close() error
}
