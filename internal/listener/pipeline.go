// Package listener owns the subscription loop and the per-delivery
// processing chain: decode, filter, fulfill, actuate, then settle the
// delivery with exactly one Ack or Nak.
package listener

import (
	"context"
	"log/slog"
	"time"

	"github.com/esignworks/connect-worker/internal/dedupe"
	"github.com/esignworks/connect-worker/internal/journal"
	"github.com/esignworks/connect-worker/internal/logging"
	"github.com/esignworks/connect-worker/internal/messaging"
	"github.com/esignworks/connect-worker/internal/metrics"
	"github.com/esignworks/connect-worker/internal/notification"
)

// Fulfiller executes the side effect for an eligible envelope and returns
// the path of the artifact it wrote.
type Fulfiller interface {
	Fulfill(ctx context.Context, envelopeID, businessKey string) (string, error)
}

// Actuator signals an external device. Callers treat failures as advisory.
type Actuator interface {
	Enabled() bool
	SetColor(ctx context.Context, color string) error
}

// HarnessRunner processes synthetic test values delivered in test mode.
type HarnessRunner interface {
	Run(value string) error
}

// DefaultNakDelay spaces out broker redeliveries after a fulfillment failure.
const DefaultNakDelay = 5 * time.Second

// PipelineConfig wires the per-delivery processing chain. Actuator and
// Harness may be nil; Tracker and Journal fall back to no-ops when nil.
type PipelineConfig struct {
	Filter    *notification.Filter
	Fulfiller Fulfiller
	Actuator  Actuator
	Harness   HarnessRunner
	Tracker   dedupe.Tracker
	Journal   journal.Journal
	NakDelay  time.Duration
}

// Pipeline drives one delivery through the processing chain. Deliveries may
// arrive concurrently; the pipeline holds no per-message state of its own.
type Pipeline struct {
	filter    *notification.Filter
	fulfiller Fulfiller
	actuator  Actuator
	harness   HarnessRunner
	tracker   dedupe.Tracker
	journal   journal.Journal
	nakDelay  time.Duration
}

// NewPipeline creates the processing chain from its dependencies.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = dedupe.NoOpTracker{}
	}
	jrnl := cfg.Journal
	if jrnl == nil {
		jrnl = journal.NoOpJournal{}
	}
	nakDelay := cfg.NakDelay
	if nakDelay <= 0 {
		nakDelay = DefaultNakDelay
	}

	return &Pipeline{
		filter:    cfg.Filter,
		fulfiller: cfg.Fulfiller,
		actuator:  cfg.Actuator,
		harness:   cfg.Harness,
		tracker:   tracker,
		journal:   jrnl,
		nakDelay:  nakDelay,
	}
}

// Handle implements messaging.Handler. Every delivery is settled here and
// nowhere else. Undecodable and ineligible deliveries are acked so the
// broker never redelivers payloads that can never succeed; fulfillment
// failures are nacked and left to the broker's redelivery policy.
func (p *Pipeline) Handle(ctx context.Context, d *messaging.Delivery) {
	if d.Attempt > 1 {
		metrics.RedeliveriesTotal.Inc()
	}

	if _, ok := d.Metadata[messaging.HeaderTestMode]; ok {
		p.handleHarness(d)
		return
	}

	env, err := notification.Decode(d.Data)
	if err != nil {
		slog.Warn("dropping undecodable notification",
			logging.MessageID(d.ID), logging.Subject(d.Subject), logging.Error(err))
		metrics.NotificationsTotal.WithLabelValues(metrics.OutcomeUndecodable).Inc()
		p.ack(d)
		return
	}

	if !p.filter.Eligible(env) {
		slog.Debug("ignoring ineligible envelope",
			logging.EnvelopeID(env.EnvelopeID), logging.Status(string(env.Status)))
		metrics.NotificationsTotal.WithLabelValues(metrics.OutcomeIneligible).Inc()
		p.ack(d)
		return
	}

	key, _ := p.filter.BusinessKey(env)

	path, err := p.fulfiller.Fulfill(ctx, env.EnvelopeID, key)
	if err != nil {
		slog.Error("fulfillment failed, leaving delivery for redelivery",
			logging.EnvelopeID(env.EnvelopeID), logging.BusinessKey(key),
			"attempt", d.Attempt, logging.Error(err))
		metrics.NotificationsTotal.WithLabelValues(metrics.OutcomeFulfillFailed).Inc()
		p.nak(d)
		p.record(ctx, &journal.Entry{
			EnvelopeID:  env.EnvelopeID,
			BusinessKey: key,
			Outcome:     journal.OutcomeFailed,
			Detail:      err.Error(),
			Attempt:     d.Attempt,
		})
		return
	}

	// Duplicate notifications are expected under at-least-once delivery.
	// The overwrite above already made the retry safe; tracking only
	// surfaces how often it happens.
	duplicate, err := p.tracker.MarkFulfilled(ctx, env.EnvelopeID)
	switch {
	case err != nil:
		slog.Warn("duplicate tracking unavailable",
			logging.EnvelopeID(env.EnvelopeID), logging.Error(err))
	case duplicate:
		slog.Info("envelope fulfilled again, artifact overwritten in place",
			logging.EnvelopeID(env.EnvelopeID), logging.BusinessKey(key))
	}

	p.record(ctx, &journal.Entry{
		EnvelopeID:   env.EnvelopeID,
		BusinessKey:  key,
		ArtifactPath: path,
		Outcome:      journal.OutcomeFulfilled,
		Attempt:      d.Attempt,
	})

	if color, ok := p.filter.Color(env); ok {
		p.actuate(ctx, env.EnvelopeID, color)
	}

	metrics.NotificationsTotal.WithLabelValues(metrics.OutcomeFulfilled).Inc()
	p.ack(d)
}

// handleHarness routes test-mode deliveries straight to the harness,
// bypassing decode and filtering. The body carries the test value.
func (p *Pipeline) handleHarness(d *messaging.Delivery) {
	metrics.NotificationsTotal.WithLabelValues(metrics.OutcomeHarness).Inc()

	if p.harness == nil {
		slog.Warn("test-mode delivery received but harness is disabled",
			logging.MessageID(d.ID))
		p.ack(d)
		return
	}

	if err := p.harness.Run(string(d.Data)); err != nil {
		slog.Error("harness run failed", logging.MessageID(d.ID), logging.Error(err))
		p.nak(d)
		return
	}

	p.ack(d)
}

func (p *Pipeline) actuate(ctx context.Context, envelopeID, color string) {
	if p.actuator == nil || !p.actuator.Enabled() {
		return
	}
	if err := p.actuator.SetColor(ctx, color); err != nil {
		metrics.ActuationErrors.Inc()
		slog.Warn("color actuation failed",
			logging.EnvelopeID(envelopeID), "color", color, logging.Error(err))
	}
}

func (p *Pipeline) record(ctx context.Context, e *journal.Entry) {
	if err := p.journal.Record(ctx, e); err != nil {
		slog.Warn("journal write failed",
			logging.EnvelopeID(e.EnvelopeID), logging.Error(err))
	}
}

func (p *Pipeline) ack(d *messaging.Delivery) {
	if err := d.Ack(); err != nil {
		slog.Warn("ack failed", logging.MessageID(d.ID), logging.Error(err))
	}
}

func (p *Pipeline) nak(d *messaging.Delivery) {
	if err := d.Nak(p.nakDelay); err != nil {
		slog.Warn("nak failed", logging.MessageID(d.ID), logging.Error(err))
	}
}
