package domain

import (
	"time"

	"github.com/google/uuid"
)

type BatchStatus string

const (
	BatchStatusStarting  BatchStatus = "STARTING"
	BatchStatusStarted   BatchStatus = "STARTED"
	BatchStatusCompleted BatchStatus = "COMPLETED"
	BatchStatusFailed    BatchStatus = "FAILED"
	BatchStatusStopped   BatchStatus = "STOPPED"
	BatchStatusAbandoned BatchStatus = "ABANDONED"
)

// IsRunning reports whether the status belongs to an execution still in progress.
func (s BatchStatus) IsRunning() bool {
	return s == BatchStatusStarting || s == BatchStatusStarted
}

// JobInstance identifies one logical run of a job: its name plus the hash
// of its identifying parameters.
type JobInstance struct {
	JobName string
	Key     string
}

// JobExecution records one attempt at running a job instance.
type JobExecution struct {
	ID       uuid.UUID
	Instance JobInstance

	Parameters  JobParameters
	Status      BatchStatus
	ExitMessage string

	CreatedAt time.Time
	StartedAt time.Time
	EndedAt   *time.Time
}

// Duration returns the wall time of a finished execution, or zero.
func (e JobExecution) Duration() time.Duration {
	if e.EndedAt == nil {
		return 0
	}
	return e.EndedAt.Sub(e.StartedAt)
}
