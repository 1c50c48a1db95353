// Package fulfill performs the worker's side effect for an eligible
// envelope: download the combined document and write it to the order's
// artifact path. Fulfillment is idempotent, so redelivered notifications
// simply overwrite the same file.
package fulfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/esignworks/connect-worker/internal/logging"
	"github.com/esignworks/connect-worker/internal/metrics"
	"github.com/esignworks/connect-worker/internal/notification"
)

// TokenSource supplies an API access token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// DocumentFetcher downloads an envelope's combined document.
type DocumentFetcher interface {
	GetCombinedDocument(ctx context.Context, accessToken, envelopeID string) ([]byte, error)
}

// FulfillmentError reports a failed fulfillment attempt. The cause is
// preserved for errors.As, so auth classification survives the wrap.
type FulfillmentError struct {
	EnvelopeID  string
	BusinessKey string
	Step        string
	Err         error
}

func (e *FulfillmentError) Error() string {
	return fmt.Sprintf("fulfill envelope %s (key %q): %s: %v", e.EnvelopeID, e.BusinessKey, e.Step, e.Err)
}

func (e *FulfillmentError) Unwrap() error { return e.Err }

// Config holds the artifact layout and the harness break marker.
type Config struct {
	// OutputDir is where artifacts are written. Created on demand.
	OutputDir string

	// FilePrefix is prepended to the sanitized business key.
	FilePrefix string

	// BreakMarker, when found inside a business key, fails the fulfillment
	// after the document fetch. It exercises the redelivery path end to
	// end without needing a broken downstream.
	BreakMarker string
}

// Fulfiller executes fulfillments against a token source and document API.
type Fulfiller struct {
	tokens    TokenSource
	documents DocumentFetcher
	cfg       Config
}

// New constructs a Fulfiller.
func New(tokens TokenSource, documents DocumentFetcher, cfg Config) *Fulfiller {
	return &Fulfiller{
		tokens:    tokens,
		documents: documents,
		cfg:       cfg,
	}
}

// ArtifactPath is the file an envelope with this business key is written to.
// Equal keys always map to the same path.
func (f *Fulfiller) ArtifactPath(businessKey string) string {
	name := f.cfg.FilePrefix + notification.Sanitize(businessKey) + ".pdf"
	return filepath.Join(f.cfg.OutputDir, name)
}

// Fulfill downloads the envelope's combined document and writes it to the
// business key's artifact path, returning that path. Every failure is a
// *FulfillmentError; callers nack so the broker redelivers.
func (f *Fulfiller) Fulfill(ctx context.Context, envelopeID, businessKey string) (string, error) {
	start := time.Now()
	defer func() {
		metrics.FulfillmentDuration.Observe(time.Since(start).Seconds())
	}()

	token, err := f.tokens.Token(ctx)
	if err != nil {
		return "", f.fail(envelopeID, businessKey, "acquire token", err)
	}

	pdf, err := f.documents.GetCombinedDocument(ctx, token, envelopeID)
	if err != nil {
		return "", f.fail(envelopeID, businessKey, "fetch document", err)
	}

	// The synthetic fault sits after the fetch so a harness run proves the
	// whole remote path works and the redelivered message starts over.
	if f.cfg.BreakMarker != "" && strings.Contains(businessKey, f.cfg.BreakMarker) {
		return "", f.fail(envelopeID, businessKey, "break marker", errors.New("synthetic fault requested by business key"))
	}

	if err := os.MkdirAll(f.cfg.OutputDir, 0o755); err != nil {
		return "", f.fail(envelopeID, businessKey, "create output dir", err)
	}

	path := f.ArtifactPath(businessKey)
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return "", f.fail(envelopeID, businessKey, "write artifact", err)
	}

	metrics.ArtifactBytesTotal.Add(float64(len(pdf)))
	slog.Info("fulfillment artifact written",
		logging.EnvelopeID(envelopeID),
		logging.BusinessKey(businessKey),
		logging.Path(path),
	)
	return path, nil
}

func (f *Fulfiller) fail(envelopeID, businessKey, step string, err error) error {
	metrics.FulfillmentErrors.Inc()
	return &FulfillmentError{
		EnvelopeID:  envelopeID,
		BusinessKey: businessKey,
		Step:        step,
		Err:         err,
	}
}
