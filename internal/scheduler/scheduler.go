package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/djlord-it/easy-import/internal/trigger"
)

type CronParser interface {
	Parse(expression string, timezone string) (CronSchedule, error)
}

type CronSchedule interface {
	Next(after time.Time) time.Time
}

// Target is invoked synchronously on every fire time.
type Target interface {
	OnSchedule(ctx context.Context) trigger.Result
}

// MetricsSink defines the interface for recording scheduler metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	TickDrift(drift time.Duration)
}

type Config struct {
	Expression string
	Timezone   string
}

// Scheduler fires its target on a cron schedule, one tick at a time.
// Fire times that pass while the target is running are skipped.
type Scheduler struct {
	config  Config
	parser  CronParser
	target  Target
	metrics MetricsSink // optional, nil = disabled
	clock   func() time.Time
	after   func(d time.Duration) <-chan time.Time

	mu       sync.Mutex
	nextFire time.Time
}

func New(config Config, parser CronParser, target Target) *Scheduler {
	return &Scheduler{
		config: config,
		parser: parser,
		target: target,
		clock:  time.Now,
		after:  time.After,
	}
}

// WithMetrics attaches a metrics sink to the scheduler.
func (s *Scheduler) WithMetrics(sink MetricsSink) *Scheduler {
	s.metrics = sink
	return s
}

// NextFire returns the next planned fire time, or zero if not running.
func (s *Scheduler) NextFire() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextFire
}

// Run blocks until ctx is cancelled. It returns early only if the
// configured expression or timezone cannot be parsed.
func (s *Scheduler) Run(ctx context.Context) error {
	tz := s.config.Timezone
	if tz == "" {
		tz = "Local"
	}

	sched, err := s.parser.Parse(s.config.Expression, tz)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	log.Printf("scheduler: started, cron=%q tz=%s", s.config.Expression, tz)
	defer s.setNextFire(time.Time{})

	var lastFired time.Time
	for {
		if ctx.Err() != nil {
			log.Println("scheduler: stopped")
			return ctx.Err()
		}

		now := s.clock()
		next := sched.Next(now)
		if !lastFired.IsZero() && !next.After(lastFired) {
			next = sched.Next(lastFired)
		}
		if next.IsZero() {
			log.Printf("scheduler: cron=%q has no future fire time, stopping", s.config.Expression)
			return nil
		}
		s.setNextFire(next)
		log.Printf("scheduler: next run at %s", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			log.Println("scheduler: stopped")
			return ctx.Err()
		case <-s.after(next.Sub(now)):
			s.fire(ctx, next)
			lastFired = next
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, scheduledAt time.Time) {
	if s.metrics != nil {
		s.metrics.TickDrift(s.clock().Sub(scheduledAt))
	}

	result := s.target.OnSchedule(ctx)
	if result.Err != nil {
		log.Printf("scheduler: run scheduled at %s did not launch (%s)",
			scheduledAt.Format(time.RFC3339), result.Err.Kind)
	}
}

func (s *Scheduler) setNextFire(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextFire = t
}
