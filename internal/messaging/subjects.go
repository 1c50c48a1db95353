// Package messaging defines standard subject and header names for the
// connect worker's message bus.
package messaging

// Subject and stream constants. Subjects follow the pattern
// {domain}.{resource}.
const (
	// SubjectEnvelopeEvents carries raw Connect notification payloads.
	SubjectEnvelopeEvents = "connect.events"

	// StreamEnvelopeEvents is the JetStream work-queue stream capturing
	// envelope event subjects.
	StreamEnvelopeEvents = "CONNECT"

	// ConsumerWorker is the durable consumer shared by worker instances;
	// each message is processed by exactly one instance.
	ConsumerWorker = "connect-worker"
)

// Header names recognized on inbound messages.
const (
	// HeaderTestMode marks a synthetic harness message. Deliveries carrying
	// it bypass the notification decoder; the body is the test value.
	HeaderTestMode = "Test-Mode"
)
