// Package harness implements the queue test mode: each test message shifts a
// ring of marker files so an operator can watch messages survive worker
// crashes and arrive exactly as often as the broker redelivers them.
package harness

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/esignworks/connect-worker/internal/metrics"
)

// BreakExitCode is the process exit code for a deliberate harness crash.
// Distinct from the startup failure code so supervisors can tell them apart.
const BreakExitCode = 2

// Runner executes harness messages. All marker writes happen under one lock,
// so concurrent deliveries cannot interleave a ring shift.
type Runner struct {
	dir         string
	depth       int
	breakMarker string
	exit        func(int)

	mu sync.Mutex
}

// New constructs a Runner writing markers beneath dir. depth is the ring
// size (test1.txt … test<depth>.txt); breakMarker crashes the process when
// it appears in a message value.
func New(dir string, depth int, breakMarker string) *Runner {
	if depth <= 0 {
		depth = 5
	}
	return &Runner{
		dir:         dir,
		depth:       depth,
		breakMarker: breakMarker,
		exit:        os.Exit,
	}
}

// Run processes one harness message value. A value carrying the break marker
// terminates the process immediately, before any marker moves; the unsettled
// delivery then comes back on the next run. Otherwise the ring shifts up by
// one and the value lands in test1.txt.
func (r *Runner) Run(value string) error {
	if r.breakMarker != "" && strings.Contains(value, r.breakMarker) {
		slog.Warn("harness break requested, crashing before acknowledgment", "value", value)
		r.exit(BreakExitCode)
		// Reached only in tests that inject exit.
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create harness dir: %w", err)
	}

	for i := r.depth - 1; i >= 1; i-- {
		src := r.markerPath(i)
		dst := r.markerPath(i + 1)
		if err := os.Rename(src, dst); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("shift marker %d: %w", i, err)
		}
	}

	if err := os.WriteFile(r.markerPath(1), []byte(value), 0o644); err != nil {
		return fmt.Errorf("write marker 1: %w", err)
	}

	metrics.HarnessRuns.Inc()
	return nil
}

func (r *Runner) markerPath(i int) string {
	return filepath.Join(r.dir, fmt.Sprintf("test%d.txt", i))
}
