package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/djlord-it/easy-import/internal/api"
	"github.com/djlord-it/easy-import/internal/config"
	"github.com/djlord-it/easy-import/internal/leaderelection"
	"github.com/djlord-it/easy-import/internal/reconciler"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	if err := config.LoadEnvFile(os.Getenv("ENV_FILE")); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load env file: %v\n", err)
		os.Exit(exitInvalidConfig)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "run":
		os.Exit(runOnce())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`easyimport - scheduled batch import trigger

Usage:
  easyimport <command>

Commands:
  serve      Run the import on its cron schedule and serve the HTTP API
  run        Launch the import once, log the outcome, and exit
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  ENV_FILE                  dotenv file loaded before reading the environment (default: ".env")

  IMPORT_URL                Endpoint that performs the import (required)
  IMPORT_SECRET             HMAC key for the X-EasyImport-Signature header
  IMPORT_CRON               Schedule, seconds field optional (default: "0 25 17 * * *")
  IMPORT_TIMEZONE           Schedule timezone (default: "Local")
  IMPORT_JOB_NAME           Job name (default: "importPeopleJob")
  IMPORT_TIMEOUT            Import request timeout (default: "30m")

  DATABASE_URL              PostgreSQL connection string (optional, in-memory history if unset)
  REDIS_ADDR                Redis address for analytics (optional)
  HTTP_ADDR                 HTTP server address (default: ":8080")

  DB_OP_TIMEOUT             Database operation timeout (default: "5s")
  DB_MAX_OPEN_CONNS         Max open database connections (default: "10")
  DB_MAX_IDLE_CONNS         Max idle database connections (default: "2")
  DB_CONN_MAX_LIFETIME      Max connection lifetime (default: "30m")
  DB_CONN_MAX_IDLE_TIME     Max connection idle time (default: "5m")

  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")
  RUN_DRAIN_TIMEOUT         Wait for an in-flight run on shutdown (default: "1m")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")
  METRICS_PORT              Metrics server port (default: "9090")

  ANALYTICS_RETENTION       How long daily outcome counters are kept (default: "2160h")

  RECONCILE_ENABLED         Abandon executions stuck in STARTED (default: "false")
  RECONCILE_INTERVAL        How often to scan for stale executions (default: "5m")
  RECONCILE_THRESHOLD       Age before an execution is stale (default: "6h")
  RECONCILE_BATCH_SIZE      Max executions abandoned per cycle (default: "100")

  LEADER_ELECTION_ENABLED   Only the advisory lock holder runs the schedule (default: "false")
  LEADER_LOCK_KEY           Advisory lock key shared by all replicas (default: derived from IMPORT_JOB_NAME)
  LEADER_RETRY_INTERVAL     Follower lock retry interval (default: "5s")
  LEADER_HEARTBEAT_INTERVAL Leader connection ping interval (default: "2s")`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	logConfigWarnings(&cfg)

	a, err := buildApp(cfg, prometheus.DefaultRegisterer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		return exitRuntimeError
	}
	defer a.close()

	var metricsServer *http.Server
	if a.metrics != nil {
		log.Printf("easyimport: metrics enabled (port=%s, path=%s)", cfg.MetricsPort, cfg.MetricsPath)

		// Start metrics HTTP server on separate port
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    ":" + cfg.MetricsPort,
			Handler: metricsMux,
		}
		go func() {
			log.Printf("easyimport: metrics server listening on :%s", cfg.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("easyimport: metrics server error: %v", err)
			}
		}()
	} else {
		log.Println("easyimport: METRICS_ENABLED not set; metrics disabled")
	}

	sched := a.newScheduler()
	leader := newLeaderRunner(func(ctx context.Context) {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("easyimport: scheduler exited: %v", err)
		}
	})

	apiHandler := api.NewHandler(a.store, cfg.ImportJobName).WithRunner(a.trigger)
	if a.db != nil {
		apiHandler = apiHandler.WithHealthChecker(a.db)
	}
	if a.analytics != nil {
		apiHandler = apiHandler.WithStats(a.analytics)
	}

	// The scheduler runs either unconditionally or only while holding the lock.
	var elector *leaderelection.Elector
	var electionWg sync.WaitGroup
	electionCtx, cancelElection := context.WithCancel(context.Background())
	defer cancelElection()

	if cfg.LeaderElectionEnabled {
		elector = leaderelection.New(
			a.db,
			leaderelection.Config{
				JobName:           cfg.ImportJobName,
				LockKey:           cfg.LeaderLockKey,
				RetryInterval:     cfg.LeaderRetryInterval,
				HeartbeatInterval: cfg.LeaderHeartbeatInterval,
			},
			leader.start,
			leader.stop,
		)
		if a.metrics != nil {
			elector = elector.WithMetrics(a.metrics)
		}
		apiHandler = apiHandler.WithLeader(elector)

		electionWg.Add(1)
		go func() {
			defer electionWg.Done()
			elector.Run(electionCtx)
		}()
		log.Printf("easyimport: leader election enabled (job=%s, lock_key=%d)", cfg.ImportJobName, cfg.LeaderLockKey)
	} else {
		leader.start(electionCtx)
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: apiHandler,
	}

	go func() {
		log.Printf("easyimport: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("easyimport: http server error: %v", err)
		}
	}()

	var reconcilerWg sync.WaitGroup
	var cancelReconciler context.CancelFunc

	if cfg.ReconcileEnabled {
		var reconcilerCtx context.Context
		reconcilerCtx, cancelReconciler = context.WithCancel(context.Background())
		recon := reconciler.New(
			reconciler.Config{
				Interval:  cfg.ReconcileInterval,
				Threshold: cfg.ReconcileThreshold,
				BatchSize: cfg.ReconcileBatchSize,
			},
			a.store,
		)
		if a.metrics != nil {
			recon = recon.WithMetrics(a.metrics)
		}
		reconcilerWg.Add(1)
		go func() {
			defer reconcilerWg.Done()
			recon.Run(reconcilerCtx)
		}()
		log.Printf("easyimport: reconciler enabled (interval=%s, threshold=%s, batch=%d)",
			cfg.ReconcileInterval, cfg.ReconcileThreshold, cfg.ReconcileBatchSize)
	} else {
		log.Println("easyimport: RECONCILE_ENABLED not set; reconciler disabled")
	}

	log.Printf("easyimport: started (job=%s, cron=%q, tz=%s, http=%s)",
		cfg.ImportJobName, cfg.ImportCron, cfg.ImportTimezone, cfg.HTTPAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("easyimport: received signal %v, shutting down", received)

	// Phase 1: Stop scheduling (no new runs), then release the leader lock if held
	log.Println("easyimport: stopping scheduler...")
	if !leader.waitStopped(cfg.RunDrainTimeout) {
		log.Printf("easyimport: in-flight run did not finish within %s", cfg.RunDrainTimeout)
	}
	cancelElection()
	if elector != nil {
		electionWg.Wait()
	}
	log.Println("easyimport: scheduler stopped")

	// Phase 2: Stop reconciler
	if cancelReconciler != nil {
		log.Println("easyimport: stopping reconciler...")
		cancelReconciler()
		reconcilerWg.Wait()
		log.Println("easyimport: reconciler stopped")
	}

	// Phase 3: Stop HTTP server, then drain manual runs before the store closes
	log.Println("easyimport: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("easyimport: http server shutdown error: %v", err)
	}
	if !apiHandler.WaitRuns(cfg.RunDrainTimeout) {
		log.Printf("easyimport: manual run did not finish within %s", cfg.RunDrainTimeout)
	}
	log.Println("easyimport: http server stopped")

	// Phase 4: Stop metrics server if running (with same timeout)
	if metricsServer != nil {
		log.Println("easyimport: stopping metrics server...")
		metricsShutdownCtx, metricsShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer metricsShutdownCancel()
		if err := metricsServer.Shutdown(metricsShutdownCtx); err != nil {
			log.Printf("easyimport: metrics server shutdown error: %v", err)
		}
		log.Println("easyimport: metrics server stopped")
	}

	log.Println("easyimport: stopped")
	return exitSuccess
}

// runOnce performs a single invocation, as the scheduler would, and exits.
// Launch failures are logged by the trigger and do not change the exit code.
func runOnce() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	a, err := buildApp(cfg, prometheus.NewRegistry())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		return exitRuntimeError
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result := a.trigger.OnSchedule(ctx)
	log.Printf("easyimport: run finished (outcome=%s)", result.Outcome())
	return exitSuccess
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("easyimport version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
