// Package trigger launches the import job on each scheduled tick.
//
// OnSchedule never returns an error to the timer that calls it: every launch
// failure is turned into a LaunchError, logged, and reported in the Result.
package trigger

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/djlord-it/easy-import/internal/domain"
	"github.com/djlord-it/easy-import/internal/launcher"
)

// ParamUserJob is the run parameter carrying the epoch-millisecond timestamp
// that makes each invocation a distinct job instance.
const ParamUserJob = "userJob"

// Logger is satisfied by *log.Logger.
type Logger interface {
	Printf(format string, v ...any)
}

// MetricsSink records trigger metrics. Implementations must not block.
type MetricsSink interface {
	RunStarted()
	RunCompleted(duration time.Duration, outcome string)
}

// AnalyticsSink records run outcomes for reporting. Errors are logged, never propagated.
type AnalyticsSink interface {
	Record(ctx context.Context, jobName, outcome string, at time.Time) error
}

// Result describes one invocation. The scheduler ignores it; manual callers
// and tests inspect it.
type Result struct {
	Params    domain.JobParameters
	Execution *domain.JobExecution
	Elapsed   time.Duration
	Err       *LaunchError
}

// Outcome is the execution status on a successful launch, or the error kind.
func (r Result) Outcome() string {
	if r.Err != nil {
		return string(r.Err.Kind)
	}
	if r.Execution != nil {
		return string(r.Execution.Status)
	}
	return string(KindUnknown)
}

type Trigger struct {
	job       launcher.Job
	launcher  launcher.Launcher
	logger    Logger
	metrics   MetricsSink   // optional, nil = disabled
	analytics AnalyticsSink // optional, nil = disabled
	clock     func() time.Time

	mu         sync.Mutex
	lastMillis int64
}

func New(job launcher.Job, l launcher.Launcher) *Trigger {
	return &Trigger{
		job:      job,
		launcher: l,
		logger:   log.Default(),
		clock:    time.Now,
	}
}

// WithLogger replaces the default standard logger.
func (t *Trigger) WithLogger(logger Logger) *Trigger {
	t.logger = logger
	return t
}

// WithMetrics attaches a metrics sink to the trigger.
func (t *Trigger) WithMetrics(sink MetricsSink) *Trigger {
	t.metrics = sink
	return t
}

func (t *Trigger) WithAnalytics(sink AnalyticsSink) *Trigger {
	t.analytics = sink
	return t
}

// WithClock overrides the wall clock used for the userJob timestamp.
func (t *Trigger) WithClock(clock func() time.Time) *Trigger {
	t.clock = clock
	return t
}

// OnSchedule runs the job once with a fresh userJob parameter and logs the
// elapsed time, whatever the outcome.
func (t *Trigger) OnSchedule(ctx context.Context) Result {
	return t.launch(ctx, t.buildParameters())
}

// Rerun launches the instance identified by an earlier userJob value. The
// launcher restarts it if its last execution failed or stopped and refuses
// it otherwise; the refusal is logged and reported like any launch error.
func (t *Trigger) Rerun(ctx context.Context, userJob int64) Result {
	return t.launch(ctx, domain.JobParameters{
		ParamUserJob: domain.LongParameter(userJob),
	})
}

func (t *Trigger) launch(ctx context.Context, params domain.JobParameters) (result Result) {
	start := time.Now()
	if t.metrics != nil {
		t.metrics.RunStarted()
	}

	result.Params = params
	userJob, _ := result.Params.Long(ParamUserJob)

	defer func() {
		if r := recover(); r != nil {
			result.Err = &LaunchError{
				Kind:    KindUnknown,
				JobName: t.job.Name(),
				Params:  result.Params,
				Err:     fmt.Errorf("panic: %v", r),
			}
			t.logger.Printf("trigger: job=%s userJob=%d launch failed: %v", t.job.Name(), userJob, result.Err)
		}

		result.Elapsed = time.Since(start)
		outcome := result.Outcome()
		t.logger.Printf("trigger: job=%s userJob=%d elapsed=%.3fs outcome=%s",
			t.job.Name(), userJob, result.Elapsed.Seconds(), outcome)

		if t.metrics != nil {
			t.metrics.RunCompleted(result.Elapsed, outcome)
		}
		if t.analytics != nil {
			if err := t.analytics.Record(ctx, t.job.Name(), outcome, start); err != nil {
				t.logger.Printf("trigger: analytics error: %v", err)
			}
		}
	}()

	exec, err := t.launcher.Run(ctx, t.job, result.Params)
	if err != nil {
		result.Err = newLaunchError(t.job.Name(), result.Params, err)
		t.logger.Printf("trigger: job=%s userJob=%d launch failed (kind=%s): %v",
			t.job.Name(), userJob, result.Err.Kind, result.Err.Err)
		return result
	}

	result.Execution = &exec
	return result
}

// buildParameters returns a parameter set whose userJob value is strictly
// greater than any previously issued by this trigger.
func (t *Trigger) buildParameters() domain.JobParameters {
	t.mu.Lock()
	defer t.mu.Unlock()

	millis := t.clock().UnixMilli()
	if millis <= t.lastMillis {
		millis = t.lastMillis + 1
	}
	t.lastMillis = millis

	return domain.JobParameters{
		ParamUserJob: domain.LongParameter(millis),
	}
}
