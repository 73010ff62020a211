package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/djlord-it/easy-import/internal/leaderelection"
)

// Defaults for the daily import trigger.
const (
	DefaultImportCron     = "0 25 17 * * *"
	DefaultImportTimezone = "Local"
	DefaultImportJobName  = "importPeopleJob"
)

// Config holds all configuration for the easyimport application.
// Values are loaded from environment variables; see printUsage() for the full list.
type Config struct {
	// DatabaseURL is optional: without it executions are kept in memory
	// and leader election is unavailable.
	DatabaseURL string `json:"database_url"`
	RedisAddr   string `json:"redis_addr,omitempty"`
	HTTPAddr    string `json:"http_addr"`

	ImportCron       string        `json:"import_cron"`
	ImportTimezone   string        `json:"import_timezone"`
	ImportJobName    string        `json:"import_job_name"`
	ImportURL        string        `json:"import_url"`
	ImportSecret     string        `json:"-"`
	ImportTimeout    time.Duration `json:"-"`
	ImportTimeoutStr string        `json:"import_timeout"`

	DBOpTimeout    time.Duration `json:"-"`
	DBOpTimeoutStr string        `json:"db_op_timeout"`

	DBMaxOpenConns       int           `json:"db_max_open_conns"`
	DBMaxIdleConns       int           `json:"db_max_idle_conns"`
	DBConnMaxLifetime    time.Duration `json:"-"`
	DBConnMaxLifetimeStr string        `json:"db_conn_max_lifetime"`
	DBConnMaxIdleTime    time.Duration `json:"-"`
	DBConnMaxIdleTimeStr string        `json:"db_conn_max_idle_time"`

	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`

	// RunDrainTimeout bounds how long shutdown waits for an in-flight run.
	RunDrainTimeout    time.Duration `json:"-"`
	RunDrainTimeoutStr string        `json:"run_drain_timeout"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`
	MetricsPort    string `json:"metrics_port"`

	AnalyticsRetention    time.Duration `json:"-"`
	AnalyticsRetentionStr string        `json:"analytics_retention"`

	ReconcileEnabled     bool          `json:"reconcile_enabled"`
	ReconcileInterval    time.Duration `json:"-"`
	ReconcileIntervalStr string        `json:"reconcile_interval"`

	// ReconcileThreshold must exceed the longest expected import.
	ReconcileThreshold    time.Duration `json:"-"`
	ReconcileThresholdStr string        `json:"reconcile_threshold"`

	ReconcileBatchSize int `json:"reconcile_batch_size"`

	LeaderElectionEnabled bool `json:"leader_election_enabled"`

	// LeaderLockKey defaults to a key derived from ImportJobName, so replicas
	// of one job contend for the same lock and other jobs use their own.
	LeaderLockKey int64 `json:"leader_lock_key"`

	// LeaderRetryInterval determines the maximum failover gap.
	LeaderRetryInterval    time.Duration `json:"-"`
	LeaderRetryIntervalStr string        `json:"leader_retry_interval"`

	// LeaderHeartbeatInterval: pings the dedicated connection to detect local
	// connection death. Does NOT renew the advisory lock.
	LeaderHeartbeatInterval    time.Duration `json:"-"`
	LeaderHeartbeatIntervalStr string        `json:"leader_heartbeat_interval"`
}

// LoadEnvFile loads variables from a dotenv file into the process
// environment. Variables already set take precedence. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	log.Printf("config: loaded environment from %s", path)
	return nil
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		DatabaseURL:                os.Getenv("DATABASE_URL"),
		RedisAddr:                  os.Getenv("REDIS_ADDR"),
		HTTPAddr:                   os.Getenv("HTTP_ADDR"),
		ImportCron:                 os.Getenv("IMPORT_CRON"),
		ImportTimezone:             os.Getenv("IMPORT_TIMEZONE"),
		ImportJobName:              os.Getenv("IMPORT_JOB_NAME"),
		ImportURL:                  os.Getenv("IMPORT_URL"),
		ImportSecret:               os.Getenv("IMPORT_SECRET"),
		ImportTimeoutStr:           os.Getenv("IMPORT_TIMEOUT"),
		DBOpTimeoutStr:             os.Getenv("DB_OP_TIMEOUT"),
		DBConnMaxLifetimeStr:       os.Getenv("DB_CONN_MAX_LIFETIME"),
		DBConnMaxIdleTimeStr:       os.Getenv("DB_CONN_MAX_IDLE_TIME"),
		HTTPShutdownTimeoutStr:     os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		RunDrainTimeoutStr:         os.Getenv("RUN_DRAIN_TIMEOUT"),
		MetricsEnabled:             os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:                os.Getenv("METRICS_PATH"),
		MetricsPort:                os.Getenv("METRICS_PORT"),
		AnalyticsRetentionStr:      os.Getenv("ANALYTICS_RETENTION"),
		ReconcileEnabled:           os.Getenv("RECONCILE_ENABLED") == "true",
		ReconcileIntervalStr:       os.Getenv("RECONCILE_INTERVAL"),
		ReconcileThresholdStr:      os.Getenv("RECONCILE_THRESHOLD"),
		LeaderElectionEnabled:      os.Getenv("LEADER_ELECTION_ENABLED") == "true",
		LeaderRetryIntervalStr:     os.Getenv("LEADER_RETRY_INTERVAL"),
		LeaderHeartbeatIntervalStr: os.Getenv("LEADER_HEARTBEAT_INTERVAL"),
	}

	if batchStr := os.Getenv("RECONCILE_BATCH_SIZE"); batchStr != "" {
		if batch, err := parseInt(batchStr); err == nil && batch > 0 {
			cfg.ReconcileBatchSize = batch
		} else {
			log.Printf("config: invalid RECONCILE_BATCH_SIZE %q (must be a positive integer), using default 100", batchStr)
		}
	}
	if cfg.ReconcileBatchSize == 0 {
		cfg.ReconcileBatchSize = 100
	}

	if lockKeyStr := os.Getenv("LEADER_LOCK_KEY"); lockKeyStr != "" {
		if n, err := parseInt(lockKeyStr); err == nil && n > 0 {
			cfg.LeaderLockKey = int64(n)
		} else {
			log.Printf("config: invalid LEADER_LOCK_KEY %q (must be a positive integer), deriving it from IMPORT_JOB_NAME", lockKeyStr)
		}
	}

	if maxOpenStr := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpenStr != "" {
		if n, err := parseInt(maxOpenStr); err == nil && n > 0 {
			cfg.DBMaxOpenConns = n
		}
	}
	if cfg.DBMaxOpenConns == 0 {
		cfg.DBMaxOpenConns = 10
	}

	if maxIdleStr := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdleStr != "" {
		if n, err := parseInt(maxIdleStr); err == nil && n > 0 {
			cfg.DBMaxIdleConns = n
		}
	}
	if cfg.DBMaxIdleConns == 0 {
		cfg.DBMaxIdleConns = 2
	}

	// Support the platform PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	if cfg.ImportCron == "" {
		cfg.ImportCron = DefaultImportCron
	}
	if cfg.ImportTimezone == "" {
		cfg.ImportTimezone = DefaultImportTimezone
	}
	if cfg.ImportJobName == "" {
		cfg.ImportJobName = DefaultImportJobName
	}
	if cfg.LeaderLockKey == 0 {
		cfg.LeaderLockKey = leaderelection.LockKey(cfg.ImportJobName)
	}
	if cfg.ImportTimeoutStr == "" {
		cfg.ImportTimeoutStr = "30m"
	}
	if cfg.DBOpTimeoutStr == "" {
		cfg.DBOpTimeoutStr = "5s"
	}
	if cfg.DBConnMaxLifetimeStr == "" {
		cfg.DBConnMaxLifetimeStr = "30m"
	}
	if cfg.DBConnMaxIdleTimeStr == "" {
		cfg.DBConnMaxIdleTimeStr = "5m"
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}
	if cfg.RunDrainTimeoutStr == "" {
		cfg.RunDrainTimeoutStr = "1m"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.MetricsPort == "" {
		cfg.MetricsPort = "9090"
	}
	if cfg.AnalyticsRetentionStr == "" {
		cfg.AnalyticsRetentionStr = "2160h"
	}
	if cfg.ReconcileIntervalStr == "" {
		cfg.ReconcileIntervalStr = "5m"
	}
	if cfg.ReconcileThresholdStr == "" {
		cfg.ReconcileThresholdStr = "6h"
	}
	if cfg.LeaderRetryIntervalStr == "" {
		cfg.LeaderRetryIntervalStr = "5s"
	}
	if cfg.LeaderHeartbeatIntervalStr == "" {
		cfg.LeaderHeartbeatIntervalStr = "2s"
	}

	// Parse durations; validation is handled separately by Validate().
	cfg.ImportTimeout = parseDuration(cfg.ImportTimeoutStr)
	cfg.DBOpTimeout = parseDuration(cfg.DBOpTimeoutStr)
	cfg.DBConnMaxLifetime = parseDuration(cfg.DBConnMaxLifetimeStr)
	cfg.DBConnMaxIdleTime = parseDuration(cfg.DBConnMaxIdleTimeStr)
	cfg.HTTPShutdownTimeout = parseDuration(cfg.HTTPShutdownTimeoutStr)
	cfg.RunDrainTimeout = parseDuration(cfg.RunDrainTimeoutStr)
	cfg.AnalyticsRetention = parseDuration(cfg.AnalyticsRetentionStr)
	cfg.ReconcileInterval = parseDuration(cfg.ReconcileIntervalStr)
	cfg.ReconcileThreshold = parseDuration(cfg.ReconcileThresholdStr)
	cfg.LeaderRetryInterval = parseDuration(cfg.LeaderRetryIntervalStr)
	cfg.LeaderHeartbeatInterval = parseDuration(cfg.LeaderHeartbeatIntervalStr)

	return cfg
}

// parseDuration returns zero for unparseable input.
func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// parseInt parses a string as an integer.
func parseInt(s string) (int, error) {
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		DatabaseURL             string `json:"database_url"`
		RedisAddr               string `json:"redis_addr,omitempty"`
		HTTPAddr                string `json:"http_addr"`
		ImportCron              string `json:"import_cron"`
		ImportTimezone          string `json:"import_timezone"`
		ImportJobName           string `json:"import_job_name"`
		ImportURL               string `json:"import_url"`
		ImportSecret            string `json:"import_secret,omitempty"`
		ImportTimeout           string `json:"import_timeout"`
		DBOpTimeout             string `json:"db_op_timeout"`
		DBMaxOpenConns          int    `json:"db_max_open_conns"`
		DBMaxIdleConns          int    `json:"db_max_idle_conns"`
		DBConnMaxLifetime       string `json:"db_conn_max_lifetime"`
		DBConnMaxIdleTime       string `json:"db_conn_max_idle_time"`
		HTTPShutdownTimeout     string `json:"http_shutdown_timeout"`
		RunDrainTimeout         string `json:"run_drain_timeout"`
		MetricsEnabled          bool   `json:"metrics_enabled"`
		MetricsPath             string `json:"metrics_path"`
		MetricsPort             string `json:"metrics_port"`
		AnalyticsRetention      string `json:"analytics_retention"`
		ReconcileEnabled        bool   `json:"reconcile_enabled"`
		ReconcileInterval       string `json:"reconcile_interval"`
		ReconcileThreshold      string `json:"reconcile_threshold"`
		ReconcileBatchSize      int    `json:"reconcile_batch_size"`
		LeaderElectionEnabled   bool   `json:"leader_election_enabled"`
		LeaderLockKey           int64  `json:"leader_lock_key"`
		LeaderRetryInterval     string `json:"leader_retry_interval"`
		LeaderHeartbeatInterval string `json:"leader_heartbeat_interval"`
	}{
		DatabaseURL:             maskSecret(c.DatabaseURL),
		RedisAddr:               c.RedisAddr,
		HTTPAddr:                c.HTTPAddr,
		ImportCron:              c.ImportCron,
		ImportTimezone:          c.ImportTimezone,
		ImportJobName:           c.ImportJobName,
		ImportURL:               c.ImportURL,
		ImportSecret:            maskSecret(c.ImportSecret),
		ImportTimeout:           c.ImportTimeoutStr,
		DBOpTimeout:             c.DBOpTimeoutStr,
		DBMaxOpenConns:          c.DBMaxOpenConns,
		DBMaxIdleConns:          c.DBMaxIdleConns,
		DBConnMaxLifetime:       c.DBConnMaxLifetimeStr,
		DBConnMaxIdleTime:       c.DBConnMaxIdleTimeStr,
		HTTPShutdownTimeout:     c.HTTPShutdownTimeoutStr,
		RunDrainTimeout:         c.RunDrainTimeoutStr,
		MetricsEnabled:          c.MetricsEnabled,
		MetricsPath:             c.MetricsPath,
		MetricsPort:             c.MetricsPort,
		AnalyticsRetention:      c.AnalyticsRetentionStr,
		ReconcileEnabled:        c.ReconcileEnabled,
		ReconcileInterval:       c.ReconcileIntervalStr,
		ReconcileThreshold:      c.ReconcileThresholdStr,
		ReconcileBatchSize:      c.ReconcileBatchSize,
		LeaderElectionEnabled:   c.LeaderElectionEnabled,
		LeaderLockKey:           c.LeaderLockKey,
		LeaderRetryInterval:     c.LeaderRetryIntervalStr,
		LeaderHeartbeatInterval: c.LeaderHeartbeatIntervalStr,
	}
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if len(s) >= len(scheme) && s[:len(scheme)] == scheme {
			return scheme + "***"
		}
	}
	return "***"
}
