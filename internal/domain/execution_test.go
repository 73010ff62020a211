package domain

import (
	"testing"
	"time"
)

func TestBatchStatus_Values(t *testing.T) {
	tests := []struct {
		status  BatchStatus
		want    string
		running bool
	}{
		{BatchStatusStarting, "STARTING", true},
		{BatchStatusStarted, "STARTED", true},
		{BatchStatusCompleted, "COMPLETED", false},
		{BatchStatusFailed, "FAILED", false},
		{BatchStatusStopped, "STOPPED", false},
		{BatchStatusAbandoned, "ABANDONED", false},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if string(tt.status) != tt.want {
				t.Errorf("BatchStatus = %q, want %q", tt.status, tt.want)
			}
			if tt.status.IsRunning() != tt.running {
				t.Errorf("%s.IsRunning() = %v, want %v", tt.status, tt.status.IsRunning(), tt.running)
			}
		})
	}
}

func TestJobExecution_Duration(t *testing.T) {
	start := time.Date(2024, 1, 15, 17, 25, 0, 0, time.UTC)
	exec := JobExecution{StartedAt: start}
	if exec.Duration() != 0 {
		t.Errorf("unfinished Duration() = %v, want 0", exec.Duration())
	}

	end := start.Add(90 * time.Second)
	exec.EndedAt = &end
	if exec.Duration() != 90*time.Second {
		t.Errorf("Duration() = %v, want 90s", exec.Duration())
	}
}
