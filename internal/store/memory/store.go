// Package memory is an in-process job repository, used when no database is configured.
// History is lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/easy-import/internal/domain"
	"github.com/djlord-it/easy-import/internal/launcher"
)

type Store struct {
	mu         sync.Mutex
	executions map[uuid.UUID]domain.JobExecution
	order      []uuid.UUID
}

func New() *Store {
	return &Store{executions: make(map[uuid.UUID]domain.JobExecution)}
}

func (s *Store) GetLastExecution(ctx context.Context, instance domain.JobInstance) (domain.JobExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.order) - 1; i >= 0; i-- {
		exec := s.executions[s.order[i]]
		if exec.Instance == instance {
			return exec, nil
		}
	}
	return domain.JobExecution{}, launcher.ErrNotFound
}

// CreateExecution returns launcher.ErrAlreadyRunning if the instance has a running execution.
func (s *Store) CreateExecution(ctx context.Context, exec domain.JobExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.executions {
		if existing.Instance == exec.Instance && existing.Status.IsRunning() {
			return launcher.ErrAlreadyRunning
		}
	}
	s.executions[exec.ID] = exec
	s.order = append(s.order, exec.ID)
	return nil
}

// UpdateExecution records the final status of a running execution. It
// returns launcher.ErrNotRunning if the execution already finished or was
// abandoned.
func (s *Store) UpdateExecution(ctx context.Context, exec domain.JobExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.executions[exec.ID]
	if !ok {
		return launcher.ErrNotFound
	}
	if !stored.Status.IsRunning() {
		return launcher.ErrNotRunning
	}
	stored.Status = exec.Status
	stored.ExitMessage = exec.ExitMessage
	stored.EndedAt = exec.EndedAt
	s.executions[exec.ID] = stored
	return nil
}

// ListExecutions returns executions of jobName, newest first.
func (s *Store) ListExecutions(ctx context.Context, jobName string, limit, offset int) ([]domain.JobExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []domain.JobExecution
	for i := len(s.order) - 1; i >= 0; i-- {
		exec := s.executions[s.order[i]]
		if exec.Instance.JobName != jobName {
			continue
		}
		if offset > 0 {
			offset--
			continue
		}
		if len(result) >= limit {
			break
		}
		result = append(result, exec)
	}
	return result, nil
}

// GetStaleExecutions returns running executions started before olderThan, oldest first.
func (s *Store) GetStaleExecutions(ctx context.Context, olderThan time.Time, maxResults int) ([]domain.JobExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []domain.JobExecution
	for _, exec := range s.executions {
		if exec.Status.IsRunning() && exec.StartedAt.Before(olderThan) {
			result = append(result, exec)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.Before(result[j].StartedAt)
	})
	if len(result) > maxResults {
		result = result[:maxResults]
	}
	return result, nil
}

// MarkAbandoned moves a running execution to ABANDONED. It returns
// launcher.ErrNotFound if the execution is missing or no longer running.
func (s *Store) MarkAbandoned(ctx context.Context, id uuid.UUID, endedAt time.Time, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec, ok := s.executions[id]
	if !ok || !exec.Status.IsRunning() {
		return launcher.ErrNotFound
	}
	exec.Status = domain.BatchStatusAbandoned
	exec.EndedAt = &endedAt
	exec.ExitMessage = message
	s.executions[id] = exec
	return nil
}
