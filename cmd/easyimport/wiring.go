package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/djlord-it/easy-import/internal/analytics"
	"github.com/djlord-it/easy-import/internal/api"
	"github.com/djlord-it/easy-import/internal/config"
	"github.com/djlord-it/easy-import/internal/cron"
	"github.com/djlord-it/easy-import/internal/importjob"
	"github.com/djlord-it/easy-import/internal/launcher"
	"github.com/djlord-it/easy-import/internal/metrics"
	"github.com/djlord-it/easy-import/internal/reconciler"
	"github.com/djlord-it/easy-import/internal/scheduler"
	"github.com/djlord-it/easy-import/internal/store/memory"
	"github.com/djlord-it/easy-import/internal/store/postgres"
	"github.com/djlord-it/easy-import/internal/trigger"

	_ "github.com/lib/pq"
)

// cronParserAdapter adapts internal/cron.Parser to scheduler.CronParser interface.
type cronParserAdapter struct {
	parser *cron.Parser
}

func (a *cronParserAdapter) Parse(expression string, timezone string) (scheduler.CronSchedule, error) {
	sched, err := a.parser.Parse(expression, timezone)
	if err != nil {
		return nil, err
	}
	return sched, nil
}

// executionStore is satisfied by both the postgres and the in-memory store.
type executionStore interface {
	launcher.Repository
	api.Store
	reconciler.Store
}

// app holds the components shared by the serve and run commands.
type app struct {
	cfg       config.Config
	db        *sql.DB // nil when DATABASE_URL is unset
	store     executionStore
	redis     *redis.Client           // nil when REDIS_ADDR is unset
	analytics *analytics.RedisSink    // nil when REDIS_ADDR is unset
	metrics   *metrics.PrometheusSink // nil when metrics are disabled
	trigger   *trigger.Trigger
}

// buildApp connects to the configured backends and wires the trigger.
// reg is only used when metrics are enabled.
func buildApp(cfg config.Config, reg prometheus.Registerer) (*app, error) {
	a := &app{cfg: cfg}

	if cfg.DatabaseURL != "" {
		db, err := openDatabase(cfg)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.store = postgres.New(db, cfg.DBOpTimeout)
	} else {
		a.store = memory.New()
		log.Println("easyimport: DATABASE_URL not set; execution history kept in memory")
	}

	if cfg.MetricsEnabled {
		a.metrics = metrics.NewPrometheusSink(reg)
	}

	job := importjob.New(importjob.Config{
		Name:     cfg.ImportJobName,
		URL:      cfg.ImportURL,
		Secret:   cfg.ImportSecret,
		Timeout:  cfg.ImportTimeout,
		Required: []string{trigger.ParamUserJob},
	})

	logger := log.Default()
	l := launcher.NewSimple(a.store).WithLogger(logger)
	a.trigger = trigger.New(job, l).WithLogger(logger)

	if a.metrics != nil {
		job.WithMetrics(a.metrics)
		a.trigger.WithMetrics(a.metrics)
	}

	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		a.analytics = analytics.NewRedisSink(a.redis, cfg.AnalyticsRetention)
		a.trigger.WithAnalytics(a.analytics)
		log.Printf("easyimport: analytics enabled (redis=%s, retention=%s)", cfg.RedisAddr, cfg.AnalyticsRetentionStr)
	} else {
		log.Println("easyimport: REDIS_ADDR not set; analytics disabled")
	}

	return a, nil
}

func openDatabase(cfg config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	log.Printf("easyimport: db pool configured (max_open=%d, max_idle=%d, max_lifetime=%s, max_idle_time=%s)",
		cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := probeExecutionsTable(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("job_executions table not found (apply migrations/001_job_executions.sql): %w", err)
	}

	return db, nil
}

func (a *app) newScheduler() *scheduler.Scheduler {
	sched := scheduler.New(
		scheduler.Config{Expression: a.cfg.ImportCron, Timezone: a.cfg.ImportTimezone},
		&cronParserAdapter{parser: cron.NewParser()},
		a.trigger,
	)
	if a.metrics != nil {
		sched = sched.WithMetrics(a.metrics)
	}
	return sched
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Printf("easyimport: redis close error: %v", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Printf("easyimport: database close error: %v", err)
		}
	}
}
