// Package worker runs the background loops that act on leads outside of an
// inbound turn: ghost-protocol follow-ups, property matching, and the daily
// admin digest. Each worker is a ticker loop; per-item failures are isolated
// and a failed tick backs off before retrying.
package worker

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/propflow/propflow/plugin/chat_apps/metrics"
)

// crashBackoff delays the next tick after a worker tick fails outright.
const crashBackoff = 5 * time.Minute

// Worker is one periodic background loop.
type Worker interface {
	// Name labels log lines and metrics.
	Name() string

	// Interval is the tick period.
	Interval() time.Duration

	// Tick performs one iteration. Per-item failures should be handled
	// inside; a returned error means the whole tick failed and triggers the
	// crash backoff.
	Tick(ctx context.Context) error
}

// Runner drives a set of workers until the context is cancelled.
type Runner struct {
	workers []Worker
}

func NewRunner(workers ...Worker) *Runner {
	return &Runner{workers: workers}
}

// Run starts every worker loop and blocks until the context is cancelled.
// Cancellation is a graceful stop, not an error.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range r.workers {
		w := w
		g.Go(func() error {
			return r.loop(ctx, w)
		})
	}
	return g.Wait()
}

func (r *Runner) loop(ctx context.Context, w Worker) error {
	slog.Info("worker: started", "worker", w.Name(), "interval", w.Interval())
	ticker := time.NewTicker(w.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker: stopped", "worker", w.Name())
			return nil
		case <-ticker.C:
			metrics.WorkerIterations.WithLabelValues(w.Name()).Inc()
			if err := w.Tick(ctx); err != nil {
				if ctx.Err() != nil {
					slog.Info("worker: stopped", "worker", w.Name())
					return nil
				}
				metrics.WorkerErrors.WithLabelValues(w.Name()).Inc()
				slog.Error("worker: tick failed", "worker", w.Name(), "error", err)
				ticker.Reset(crashBackoff)
				continue
			}
			ticker.Reset(w.Interval())
		}
	}
}
