package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/djlord-it/easy-import/internal/domain"
	"github.com/djlord-it/easy-import/internal/launcher"
)

// Store implements launcher.Repository using PostgreSQL.
type Store struct {
	db        *sql.DB
	opTimeout time.Duration
}

// New creates a new PostgreSQL store. opTimeout bounds each query; zero disables it.
func New(db *sql.DB, opTimeout time.Duration) *Store {
	return &Store{db: db, opTimeout: opTimeout}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// GetLastExecution returns the most recent execution of an instance,
// or launcher.ErrNotFound.
func (s *Store) GetLastExecution(ctx context.Context, instance domain.JobInstance) (domain.JobExecution, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	exec, err := scanExecution(s.db.QueryRowContext(ctx, queryGetLastExecution, instance.JobName, instance.Key))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.JobExecution{}, launcher.ErrNotFound
	}
	return exec, err
}

// CreateExecution inserts a new execution.
// Returns launcher.ErrAlreadyRunning if the instance already has a running
// execution (enforced by the job_executions_running_uniq partial index).
func (s *Store) CreateExecution(ctx context.Context, exec domain.JobExecution) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	params, err := json.Marshal(exec.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}

	_, err = s.db.ExecContext(ctx, queryInsertExecution,
		exec.ID,
		exec.Instance.JobName,
		exec.Instance.Key,
		params,
		string(exec.Status),
		exec.ExitMessage,
		exec.CreatedAt,
		exec.StartedAt,
		exec.EndedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return launcher.ErrAlreadyRunning
		}
		return err
	}
	return nil
}

// UpdateExecution records the final status of a running execution. It returns
// launcher.ErrNotRunning when no running execution with that ID exists.
func (s *Store) UpdateExecution(ctx context.Context, exec domain.JobExecution) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx, queryUpdateExecution,
		exec.ID,
		string(exec.Status),
		exec.ExitMessage,
		exec.EndedAt,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return launcher.ErrNotRunning
	}
	return nil
}

// ListExecutions returns executions of a job, newest first, paginated by limit and offset.
func (s *Store) ListExecutions(ctx context.Context, jobName string, limit, offset int) ([]domain.JobExecution, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryListExecutions, jobName, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanExecutions(rows)
}

// GetStaleExecutions returns executions still marked running that started
// before olderThan, oldest first, limited to maxResults.
func (s *Store) GetStaleExecutions(ctx context.Context, olderThan time.Time, maxResults int) ([]domain.JobExecution, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryGetStaleExecutions, olderThan, maxResults)
	if err != nil {
		return nil, err
	}
	return scanExecutions(rows)
}

// MarkAbandoned moves a running execution to ABANDONED.
// Returns launcher.ErrNotFound if it is missing or already finished.
func (s *Store) MarkAbandoned(ctx context.Context, id uuid.UUID, endedAt time.Time, message string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx, queryMarkAbandoned, id, endedAt, message)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return launcher.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (domain.JobExecution, error) {
	var exec domain.JobExecution
	var params []byte
	var status string
	var endedAt sql.NullTime

	err := row.Scan(
		&exec.ID,
		&exec.Instance.JobName,
		&exec.Instance.Key,
		&params,
		&status,
		&exec.ExitMessage,
		&exec.CreatedAt,
		&exec.StartedAt,
		&endedAt,
	)
	if err != nil {
		return domain.JobExecution{}, err
	}

	exec.Status = domain.BatchStatus(status)
	if endedAt.Valid {
		t := endedAt.Time
		exec.EndedAt = &t
	}
	if err := json.Unmarshal(params, &exec.Parameters); err != nil {
		return domain.JobExecution{}, fmt.Errorf("execution %s: decode parameters: %w", exec.ID, err)
	}
	return exec, nil
}

func scanExecutions(rows *sql.Rows) ([]domain.JobExecution, error) {
	defer rows.Close()

	var result []domain.JobExecution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, exec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// isDuplicateKeyError checks if the error is a PostgreSQL unique violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	// Fall back to message patterns for wrapped or foreign driver errors
	errStr := err.Error()
	return contains(errStr, "23505") || contains(errStr, "unique constraint") || contains(errStr, "duplicate key")
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && searchString(s, substr)
}

func searchString(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// Compile-time interface assertions
var _ launcher.Repository = (*Store)(nil)
