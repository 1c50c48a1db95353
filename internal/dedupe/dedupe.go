// Package dedupe makes duplicate deliveries of fulfilled envelopes visible.
// At-least-once delivery means duplicates are expected and harmless: the
// artifact write is idempotent, so the tracker only observes and counts.
// It never suppresses a fulfillment.
package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/esignworks/connect-worker/internal/metrics"
)

// Tracker records fulfilled envelopes and reports repeats.
type Tracker interface {
	// MarkFulfilled records that the envelope was fulfilled and reports
	// whether it had already been recorded inside the tracking window.
	MarkFulfilled(ctx context.Context, envelopeID string) (bool, error)
	Close() error
}

type redisTracker struct {
	client   *redis.Client
	ttl      time.Duration
	disabled bool
}

// NewRedisTracker connects to Redis and returns a Tracker. With disabled
// set, it returns a tracker that reports nothing and touches no network.
func NewRedisTracker(redisURL string, ttl time.Duration, disabled bool) (Tracker, error) {
	if disabled {
		return &redisTracker{disabled: true}, nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &redisTracker{
		client: client,
		ttl:    ttl,
	}, nil
}

func (r *redisTracker) MarkFulfilled(ctx context.Context, envelopeID string) (bool, error) {
	if r.disabled {
		return false, nil
	}

	firstSeen, err := r.client.SetNX(ctx, "fulfilled:"+envelopeID, time.Now().UTC().Format(time.RFC3339), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("record fulfillment: %w", err)
	}

	duplicate := !firstSeen
	if duplicate {
		metrics.DuplicatesTotal.Inc()
	}
	return duplicate, nil
}

func (r *redisTracker) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// NoOpTracker reports every envelope as first-seen (for tests or when the
// tracker is switched off).
type NoOpTracker struct{}

func (NoOpTracker) MarkFulfilled(ctx context.Context, envelopeID string) (bool, error) {
	return false, nil
}

func (NoOpTracker) Close() error {
	return nil
}
