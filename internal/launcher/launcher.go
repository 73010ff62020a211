// Package launcher is the job-launch boundary consumed by the import trigger.
//
// Simple enforces instance-identity rules against a Repository: one running
// execution per instance, no re-run of a completed instance, no restart of a
// non-restartable job. It does not split jobs into steps; a Job runs as a
// single unit of work.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/easy-import/internal/domain"
)

var (
	// ErrAlreadyRunning: another execution of the same instance is in progress.
	ErrAlreadyRunning = errors.New("job execution already running")
	// ErrRestartNotAllowed: the instance ran before and the job is not restartable.
	ErrRestartNotAllowed = errors.New("job restart not allowed")
	// ErrAlreadyComplete: an instance with identical parameters already completed.
	ErrAlreadyComplete = errors.New("job instance already complete")
	// ErrInvalidParameters: the job rejected the parameter set.
	ErrInvalidParameters = errors.New("invalid job parameters")
)

// ErrNotFound is returned by repositories when no execution matches.
var ErrNotFound = errors.New("execution not found")

// ErrNotRunning is returned by UpdateExecution when the execution already
// left the running states, for example because the reconciler abandoned it.
var ErrNotRunning = errors.New("execution no longer running")

// Logger is satisfied by *log.Logger.
type Logger interface {
	Printf(format string, v ...any)
}

// Job is a unit of work the launcher can run.
type Job interface {
	Name() string
	Restartable() bool
	Validate(params domain.JobParameters) error
	Execute(ctx context.Context, exec domain.JobExecution) error
}

// Launcher runs a job synchronously with the given parameters.
type Launcher interface {
	Run(ctx context.Context, job Job, params domain.JobParameters) (domain.JobExecution, error)
}

// Repository persists job executions.
type Repository interface {
	// GetLastExecution returns ErrNotFound if the instance never ran.
	GetLastExecution(ctx context.Context, instance domain.JobInstance) (domain.JobExecution, error)
	// CreateExecution must return ErrAlreadyRunning if another execution of the
	// same instance is still running.
	CreateExecution(ctx context.Context, exec domain.JobExecution) error
	// UpdateExecution records a final status. It must only replace a running
	// status and return ErrNotRunning otherwise.
	UpdateExecution(ctx context.Context, exec domain.JobExecution) error
}

// Simple is a synchronous Launcher.
type Simple struct {
	repo   Repository
	logger Logger
	clock  func() time.Time
}

func NewSimple(repo Repository) *Simple {
	return &Simple{repo: repo, logger: log.Default(), clock: time.Now}
}

// WithLogger replaces the default standard logger.
func (l *Simple) WithLogger(logger Logger) *Simple {
	l.logger = logger
	return l
}

func (l *Simple) Run(ctx context.Context, job Job, params domain.JobParameters) (domain.JobExecution, error) {
	if err := job.Validate(params); err != nil {
		return domain.JobExecution{}, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}

	instance := domain.JobInstance{JobName: job.Name(), Key: params.InstanceKey()}

	last, err := l.repo.GetLastExecution(ctx, instance)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return domain.JobExecution{}, fmt.Errorf("get last execution: %w", err)
	default:
		if err := checkRestart(job, last); err != nil {
			return domain.JobExecution{}, err
		}
	}

	now := l.clock().UTC()
	exec := domain.JobExecution{
		ID:         uuid.New(),
		Instance:   instance,
		Parameters: params,
		Status:     domain.BatchStatusStarted,
		CreatedAt:  now,
		StartedAt:  now,
	}
	if err := l.repo.CreateExecution(ctx, exec); err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			return domain.JobExecution{}, fmt.Errorf("job %s: %w", job.Name(), ErrAlreadyRunning)
		}
		return domain.JobExecution{}, fmt.Errorf("create execution: %w", err)
	}

	l.logger.Printf("launcher: job=%s execution=%s started", job.Name(), exec.ID)

	runErr := job.Execute(ctx, exec)

	ended := l.clock().UTC()
	exec.EndedAt = &ended
	if runErr != nil {
		exec.Status = domain.BatchStatusFailed
		exec.ExitMessage = runErr.Error()
	} else {
		exec.Status = domain.BatchStatusCompleted
	}

	// The job already ran; a failed status write still reports the execution.
	// Use a fresh context so a cancelled run can still be recorded.
	updateCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	switch err := l.repo.UpdateExecution(updateCtx, exec); {
	case errors.Is(err, ErrNotRunning):
		// Abandoned while running; the stored status stands.
		l.logger.Printf("launcher: job=%s execution=%s finished as %s after it was abandoned", job.Name(), exec.ID, exec.Status)
		exec.Status = domain.BatchStatusAbandoned
	case err != nil:
		l.logger.Printf("launcher: job=%s execution=%s status update error: %v", job.Name(), exec.ID, err)
	}

	l.logger.Printf("launcher: job=%s execution=%s finished status=%s", job.Name(), exec.ID, exec.Status)
	return exec, nil
}

func checkRestart(job Job, last domain.JobExecution) error {
	if last.Status.IsRunning() {
		return fmt.Errorf("job %s execution %s: %w", job.Name(), last.ID, ErrAlreadyRunning)
	}
	if !job.Restartable() {
		return fmt.Errorf("job %s: %w", job.Name(), ErrRestartNotAllowed)
	}
	if last.Status == domain.BatchStatusCompleted || last.Status == domain.BatchStatusAbandoned {
		return fmt.Errorf("job %s instance %s: %w", job.Name(), last.Instance.Key, ErrAlreadyComplete)
	}
	return nil
}
