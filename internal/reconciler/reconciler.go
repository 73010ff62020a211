// Package reconciler abandons stale job executions.
//
// An execution is stale when it is still marked STARTED long after it began,
// typically because the process running it crashed. While it stays STARTED
// every later launch of the same instance is refused as already running, so
// the reconciler moves it to ABANDONED.
package reconciler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/easy-import/internal/domain"
	"github.com/djlord-it/easy-import/internal/launcher"
)

const abandonMessage = "abandoned by reconciler: execution exceeded threshold while running"

// Store defines the interface for fetching and abandoning stale executions.
type Store interface {
	GetStaleExecutions(ctx context.Context, olderThan time.Time, maxResults int) ([]domain.JobExecution, error)
	MarkAbandoned(ctx context.Context, id uuid.UUID, endedAt time.Time, message string) error
}

// MetricsSink defines the interface for recording reconciler metrics.
type MetricsSink interface {
	ExecutionsAbandoned(count int)
}

// Config holds reconciler configuration.
type Config struct {
	// Interval is how often the reconciler runs.
	// Default: 5 minutes.
	Interval time.Duration

	// Threshold is the age after which a running execution is considered stale.
	// It must exceed the longest expected import.
	// Default: 6 hours.
	Threshold time.Duration

	// BatchSize is the maximum number of executions to abandon per cycle.
	// Default: 100.
	BatchSize int
}

// DefaultConfig returns the default reconciler configuration.
func DefaultConfig() Config {
	return Config{
		Interval:  5 * time.Minute,
		Threshold: 6 * time.Hour,
		BatchSize: 100,
	}
}

// Reconciler detects stale executions and abandons them.
type Reconciler struct {
	config  Config
	store   Store
	metrics MetricsSink // optional, nil = disabled
	clock   func() time.Time
}

// New creates a new Reconciler.
func New(config Config, store Store) *Reconciler {
	return &Reconciler{
		config: config,
		store:  store,
		clock:  time.Now,
	}
}

// WithMetrics attaches a metrics sink to the reconciler.
func (r *Reconciler) WithMetrics(sink MetricsSink) *Reconciler {
	r.metrics = sink
	return r
}

// Run starts the reconciliation loop. It blocks until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	log.Printf("reconciler: started (interval=%s, threshold=%s, batch=%d)",
		r.config.Interval, r.config.Threshold, r.config.BatchSize)

	// Run immediately on startup, then on ticker
	r.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("reconciler: stopped")
			return
		case <-ticker.C:
			r.runCycle(ctx)
		}
	}
}

// runCycle executes one reconciliation cycle and returns the number of
// executions abandoned.
func (r *Reconciler) runCycle(ctx context.Context) int {
	now := r.clock().UTC()
	threshold := now.Add(-r.config.Threshold)

	stale, err := r.store.GetStaleExecutions(ctx, threshold, r.config.BatchSize)
	if err != nil {
		// DB error: log and abort cycle. Will retry next interval.
		log.Printf("reconciler: failed to fetch stale executions: %v", err)
		return 0
	}

	if len(stale) == 0 {
		return 0
	}

	log.Printf("reconciler: found %d stale executions", len(stale))

	abandoned := 0
	for _, exec := range stale {
		if ctx.Err() != nil {
			log.Printf("reconciler: cycle interrupted, abandoned %d/%d", abandoned, len(stale))
			break
		}

		err := r.store.MarkAbandoned(ctx, exec.ID, now, abandonMessage)
		if errors.Is(err, launcher.ErrNotFound) {
			// Finished between the scan and the update.
			continue
		}
		if err != nil {
			log.Printf("reconciler: failed to abandon execution=%s job=%s: %v",
				exec.ID, exec.Instance.JobName, err)
			continue
		}

		log.Printf("reconciler: abandoned execution=%s job=%s started_at=%s (age=%s)",
			exec.ID, exec.Instance.JobName, exec.StartedAt.Format(time.RFC3339),
			now.Sub(exec.StartedAt).Round(time.Second))
		abandoned++
	}

	if r.metrics != nil && abandoned > 0 {
		r.metrics.ExecutionsAbandoned(abandoned)
	}
	log.Printf("reconciler: cycle complete, abandoned=%d", abandoned)
	return abandoned
}
