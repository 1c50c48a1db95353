// Package journal keeps an optional Postgres audit trail of fulfillment
// outcomes. Writes are best-effort: a journal failure is logged and counted
// but never changes what happens to the delivery.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/esignworks/connect-worker/internal/metrics"
)

// Outcome values recorded per fulfillment attempt.
const (
	OutcomeFulfilled = "fulfilled"
	OutcomeFailed    = "failed"
)

// Entry is one fulfillment attempt's audit record.
type Entry struct {
	EnvelopeID   string
	BusinessKey  string
	ArtifactPath string
	Outcome      string
	Detail       string
	Attempt      uint64
	RecordedAt   time.Time
}

// Journal records fulfillment attempts.
type Journal interface {
	Record(ctx context.Context, e *Entry) error
	Close() error
}

// PostgresJournal implements Journal using PostgreSQL.
type PostgresJournal struct {
	pool *pgxpool.Pool
}

// NewPostgresJournal creates a PostgreSQL journal.
func NewPostgresJournal(ctx context.Context, connString string) (*PostgresJournal, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresJournal{pool: pool}, nil
}

// Record appends one fulfillment attempt. The table is append-only;
// redeliveries of the same envelope each get their own row.
func (j *PostgresJournal) Record(ctx context.Context, e *Entry) error {
	query := `
		INSERT INTO fulfillments (envelope_id, business_key, artifact_path, outcome, detail, attempt, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	recordedAt := e.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	_, err := j.pool.Exec(ctx, query,
		e.EnvelopeID, e.BusinessKey, e.ArtifactPath, e.Outcome, e.Detail, e.Attempt, recordedAt,
	)
	if err != nil {
		metrics.JournalErrors.Inc()
		return fmt.Errorf("failed to record fulfillment: %w", err)
	}

	return nil
}

// Ping checks database connectivity.
func (j *PostgresJournal) Ping(ctx context.Context) error {
	return j.pool.Ping(ctx)
}

// Close closes the database connection pool.
func (j *PostgresJournal) Close() error {
	j.pool.Close()
	return nil
}

// NoOpJournal discards entries when the journal is disabled.
type NoOpJournal struct{}

func (NoOpJournal) Record(ctx context.Context, e *Entry) error {
	return nil
}

func (NoOpJournal) Close() error {
	return nil
}
