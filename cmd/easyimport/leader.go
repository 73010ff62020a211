package main

import (
	"context"
	"sync"
	"time"
)

// leaderRunner starts and stops the scheduling loop as leadership changes.
// start and stop match the leaderelection callbacks; stop is idempotent.
type leaderRunner struct {
	run func(ctx context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newLeaderRunner(run func(ctx context.Context)) *leaderRunner {
	return &leaderRunner{run: run}
}

func (l *leaderRunner) start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done

	go func() {
		defer close(done)
		l.run(runCtx)
	}()
}

func (l *leaderRunner) stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// waitStopped cancels the loop and waits up to timeout for it to return.
func (l *leaderRunner) waitStopped(timeout time.Duration) bool {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return true
	}
	cancel()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
