// Package leaderelection decides which easyimport replica runs the schedule
// of an import job.
//
// Each job name maps to its own Postgres session-scoped advisory lock, so
// replicas of different import jobs can share one database without blocking
// each other. The replica holding the lock is the job's leader; the others
// are standbys and retry until the lock is released. The lock lives as long
// as the session that took it: Postgres drops it when that connection dies.
// Heartbeat pings only detect a dead session locally; they never extend the
// lock.
package leaderelection

import (
	"context"
	"database/sql"
	"hash/fnv"
	"log"
	"sync"
	"time"
)

// MetricsSink defines the interface for recording leader election metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	LeaderStatusChanged(isLeader bool)
	LeaderAcquired()
	LeaderLost(reason string) // reason: "shutdown", "conn_lost", "error"
}

// LockKey derives the advisory lock key of a job. Replicas configured with
// the same job name agree on the key without coordination.
func LockKey(jobName string) int64 {
	h := fnv.New64a()
	h.Write([]byte("easyimport/" + jobName))
	return int64(h.Sum64() & (1<<63 - 1))
}

// Session is a dedicated database session that can hold an advisory lock.
type Session interface {
	TryLock(ctx context.Context, key int64) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// Config describes which job the elector gates and how it polls.
type Config struct {
	JobName string
	// LockKey of zero means LockKey(JobName).
	LockKey           int64
	RetryInterval     time.Duration // standby: how often to try the lock
	HeartbeatInterval time.Duration // leader: how often to ping the session
}

// Status is a snapshot of the elector's view of the job.
type Status struct {
	JobName string
	LockKey int64
	Leader  bool
	Since   time.Time // when Leader last changed; zero before the first change
}

// Elector runs the election loop for one import job.
type Elector struct {
	cfg       Config
	open      func(ctx context.Context) (Session, error)
	onElected func(ctx context.Context)
	onDemoted func()
	metrics   MetricsSink // optional, nil = disabled
	now       func() time.Time

	mu     sync.Mutex
	status Status
}

// New creates an Elector whose sessions are dedicated connections from db.
//
// onElected runs in a new goroutine once the lock is taken, with a context
// cancelled on demotion; it should start the job's scheduler and return.
// onDemoted runs synchronously after the lock is lost and must block until
// the scheduler has stopped. It must be idempotent.
func New(db *sql.DB, cfg Config, onElected func(ctx context.Context), onDemoted func()) *Elector {
	return NewWithSessions(func(ctx context.Context) (Session, error) {
		conn, err := db.Conn(ctx)
		if err != nil {
			return nil, err
		}
		return &sqlSession{conn: conn}, nil
	}, cfg, onElected, onDemoted)
}

// NewWithSessions creates an Elector that opens sessions with open.
func NewWithSessions(
	open func(ctx context.Context) (Session, error),
	cfg Config,
	onElected func(ctx context.Context),
	onDemoted func(),
) *Elector {
	if cfg.LockKey == 0 {
		cfg.LockKey = LockKey(cfg.JobName)
	}
	return &Elector{
		cfg:       cfg,
		open:      open,
		onElected: onElected,
		onDemoted: onDemoted,
		now:       time.Now,
		status:    Status{JobName: cfg.JobName, LockKey: cfg.LockKey},
	}
}

// WithMetrics attaches a metrics sink to the elector.
func (e *Elector) WithMetrics(sink MetricsSink) *Elector {
	e.metrics = sink
	return e
}

// IsLeader reports whether this replica currently runs the job's schedule.
func (e *Elector) IsLeader() bool {
	return e.Status().Leader
}

func (e *Elector) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *Elector) setLeader(leader bool) {
	e.mu.Lock()
	e.status.Leader = leader
	e.status.Since = e.now()
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.LeaderStatusChanged(leader)
	}
}

// Run campaigns for the job's lock until ctx is cancelled.
func (e *Elector) Run(ctx context.Context) {
	log.Printf("leader: job=%s campaigning (lock_key=%d, retry=%s, heartbeat=%s)",
		e.cfg.JobName, e.cfg.LockKey, e.cfg.RetryInterval, e.cfg.HeartbeatInterval)

	for ctx.Err() == nil {
		if reason := e.runOnce(ctx); reason != "" && ctx.Err() == nil {
			log.Printf("leader: job=%s lost leadership (reason=%s), retrying in %s",
				e.cfg.JobName, reason, e.cfg.RetryInterval)
		}

		select {
		case <-ctx.Done():
		case <-time.After(e.cfg.RetryInterval):
		}
	}
	log.Printf("leader: job=%s election loop stopped", e.cfg.JobName)
}

// runOnce takes the lock if it is free and holds it until the session dies
// or ctx ends. Returns why leadership ended, or "" if it was never taken.
func (e *Elector) runOnce(ctx context.Context) string {
	session, err := e.open(ctx)
	if err != nil {
		log.Printf("leader: job=%s open session: %v", e.cfg.JobName, err)
		return ""
	}
	defer session.Close()

	acquired, err := session.TryLock(ctx, e.cfg.LockKey)
	if err != nil {
		log.Printf("leader: job=%s advisory lock query failed: %v", e.cfg.JobName, err)
		return ""
	}
	if !acquired {
		return ""
	}

	log.Printf("leader: job=%s elected (lock_key=%d); scheduler starting", e.cfg.JobName, e.cfg.LockKey)
	e.setLeader(true)
	if e.metrics != nil {
		e.metrics.LeaderAcquired()
	}

	leaderCtx, cancelLeader := context.WithCancel(ctx)
	go e.onElected(leaderCtx)

	reason := e.holdLock(ctx, session)

	cancelLeader()
	e.onDemoted()
	e.setLeader(false)
	if e.metrics != nil {
		e.metrics.LeaderLost(reason)
	}

	log.Printf("leader: job=%s demoted (reason=%s); scheduler stopped", e.cfg.JobName, reason)
	return reason
}

func (e *Elector) holdLock(ctx context.Context, session Session) string {
	ticker := time.NewTicker(e.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "shutdown"
		case <-ticker.C:
			if err := session.Ping(ctx); err != nil {
				if ctx.Err() != nil {
					return "shutdown"
				}
				log.Printf("leader: job=%s session ping failed: %v", e.cfg.JobName, err)
				return "conn_lost"
			}
		}
	}
}

type sqlSession struct {
	conn *sql.Conn
}

func (s *sqlSession) TryLock(ctx context.Context, key int64) (bool, error) {
	var acquired bool
	err := s.conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired)
	return acquired, err
}

func (s *sqlSession) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Close releases the session's advisory locks before the connection goes
// back to the pool.
func (s *sqlSession) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _ = s.conn.ExecContext(ctx, "SELECT pg_advisory_unlock_all()")
	return s.conn.Close()
}
