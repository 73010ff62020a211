package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestLeaderRunner_StartStop(t *testing.T) {
	var running atomic.Int32
	runner := newLeaderRunner(func(ctx context.Context) {
		running.Add(1)
		<-ctx.Done()
		running.Add(-1)
	})

	runner.start(context.Background())
	runner.start(context.Background()) // second start is ignored while running

	deadline := time.Now().Add(time.Second)
	for running.Load() != 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := running.Load(); got != 1 {
		t.Fatalf("expected 1 running loop, got %d", got)
	}

	runner.stop()
	if got := running.Load(); got != 0 {
		t.Errorf("expected loop stopped after stop(), got %d running", got)
	}

	// stop is idempotent
	runner.stop()
}

func TestLeaderRunner_RestartAfterStop(t *testing.T) {
	var starts atomic.Int32
	runner := newLeaderRunner(func(ctx context.Context) {
		starts.Add(1)
		<-ctx.Done()
	})

	runner.start(context.Background())
	runner.stop()
	runner.start(context.Background())
	runner.stop()

	if got := starts.Load(); got != 2 {
		t.Errorf("expected 2 starts, got %d", got)
	}
}

func TestLeaderRunner_WaitStoppedTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	runner := newLeaderRunner(func(ctx context.Context) {
		<-release
	})
	runner.start(context.Background())

	if runner.waitStopped(20 * time.Millisecond) {
		t.Error("waitStopped should report false when the loop ignores cancellation")
	}
}

func TestLeaderRunner_WaitStoppedNotStarted(t *testing.T) {
	runner := newLeaderRunner(func(ctx context.Context) {})

	if !runner.waitStopped(time.Millisecond) {
		t.Error("waitStopped should report true when nothing is running")
	}
}
