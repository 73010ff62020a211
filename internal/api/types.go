package api

import (
	"time"

	"github.com/djlord-it/easy-import/internal/domain"
)

type ExecutionResponse struct {
	ID          string            `json:"id"`
	Job         string            `json:"job"`
	InstanceKey string            `json:"instance_key"`
	Parameters  map[string]string `json:"parameters"`
	Status      string            `json:"status"`
	ExitMessage string            `json:"exit_message,omitempty"`
	CreatedAt   string            `json:"created_at"`
	StartedAt   string            `json:"started_at"`
	EndedAt     string            `json:"ended_at,omitempty"`
}

type ListExecutionsResponse struct {
	Executions []ExecutionResponse `json:"executions"`
}

// RunRequest is the optional body of POST /runs. With UserJob set, the run
// targets that existing instance instead of a fresh one.
type RunRequest struct {
	UserJob *int64 `json:"user_job,omitempty"`
}

// RunResponse reports the outcome of a manual invocation. Launch errors are
// described here rather than mapped to an HTTP error status.
type RunResponse struct {
	Job            string             `json:"job"`
	Outcome        string             `json:"outcome"`
	UserJob        int64              `json:"user_job"`
	ElapsedSeconds float64            `json:"elapsed_seconds"`
	Execution      *ExecutionResponse `json:"execution,omitempty"`
	Error          string             `json:"error,omitempty"`
}

type StatsResponse struct {
	Job    string           `json:"job"`
	Day    string           `json:"day"`
	Counts map[string]int64 `json:"counts"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func toExecutionResponse(exec domain.JobExecution) ExecutionResponse {
	resp := ExecutionResponse{
		ID:          exec.ID.String(),
		Job:         exec.Instance.JobName,
		InstanceKey: exec.Instance.Key,
		Parameters:  exec.Parameters.Values(),
		Status:      string(exec.Status),
		ExitMessage: exec.ExitMessage,
		CreatedAt:   formatTime(exec.CreatedAt),
		StartedAt:   formatTime(exec.StartedAt),
	}
	if exec.EndedAt != nil {
		resp.EndedAt = formatTime(*exec.EndedAt)
	}
	return resp
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
