package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/djlord-it/easy-import/internal/leaderelection"
)

func TestLoad_ImportDefaults(t *testing.T) {
	os.Unsetenv("IMPORT_CRON")
	os.Unsetenv("IMPORT_TIMEZONE")
	os.Unsetenv("IMPORT_JOB_NAME")
	os.Unsetenv("IMPORT_TIMEOUT")

	cfg := Load()

	if cfg.ImportCron != "0 25 17 * * *" {
		t.Errorf("ImportCron: expected daily 17:25:00, got %q", cfg.ImportCron)
	}
	if cfg.ImportTimezone != "Local" {
		t.Errorf("ImportTimezone: expected Local, got %q", cfg.ImportTimezone)
	}
	if cfg.ImportJobName != "importPeopleJob" {
		t.Errorf("ImportJobName: expected importPeopleJob, got %q", cfg.ImportJobName)
	}
	if cfg.ImportTimeout != 30*time.Minute {
		t.Errorf("ImportTimeout: expected 30m, got %v", cfg.ImportTimeout)
	}
}

func TestLoad_ImportCustomValues(t *testing.T) {
	t.Setenv("IMPORT_CRON", "0 0 6 * * MON-FRI")
	t.Setenv("IMPORT_TIMEZONE", "Europe/Paris")
	t.Setenv("IMPORT_JOB_NAME", "importOrdersJob")
	t.Setenv("IMPORT_URL", "https://importer.internal/run")
	t.Setenv("IMPORT_SECRET", "s3cret")
	t.Setenv("IMPORT_TIMEOUT", "45m")

	cfg := Load()

	if cfg.ImportCron != "0 0 6 * * MON-FRI" {
		t.Errorf("ImportCron = %q", cfg.ImportCron)
	}
	if cfg.ImportTimezone != "Europe/Paris" {
		t.Errorf("ImportTimezone = %q", cfg.ImportTimezone)
	}
	if cfg.ImportJobName != "importOrdersJob" {
		t.Errorf("ImportJobName = %q", cfg.ImportJobName)
	}
	if cfg.ImportURL != "https://importer.internal/run" {
		t.Errorf("ImportURL = %q", cfg.ImportURL)
	}
	if cfg.ImportSecret != "s3cret" {
		t.Errorf("ImportSecret = %q", cfg.ImportSecret)
	}
	if cfg.ImportTimeout != 45*time.Minute {
		t.Errorf("ImportTimeout = %v, want 45m", cfg.ImportTimeout)
	}
}

func TestLoad_TimeoutDefaults(t *testing.T) {
	// Clear any existing env vars
	os.Unsetenv("DB_OP_TIMEOUT")
	os.Unsetenv("DB_MAX_OPEN_CONNS")
	os.Unsetenv("DB_MAX_IDLE_CONNS")
	os.Unsetenv("DB_CONN_MAX_LIFETIME")
	os.Unsetenv("DB_CONN_MAX_IDLE_TIME")
	os.Unsetenv("HTTP_SHUTDOWN_TIMEOUT")
	os.Unsetenv("RUN_DRAIN_TIMEOUT")

	cfg := Load()

	if cfg.DBOpTimeout != 5*time.Second {
		t.Errorf("DBOpTimeout: expected 5s, got %v", cfg.DBOpTimeout)
	}
	if cfg.DBMaxOpenConns != 10 {
		t.Errorf("DBMaxOpenConns: expected 10, got %d", cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns != 2 {
		t.Errorf("DBMaxIdleConns: expected 2, got %d", cfg.DBMaxIdleConns)
	}
	if cfg.DBConnMaxLifetime != 30*time.Minute {
		t.Errorf("DBConnMaxLifetime: expected 30m, got %v", cfg.DBConnMaxLifetime)
	}
	if cfg.DBConnMaxIdleTime != 5*time.Minute {
		t.Errorf("DBConnMaxIdleTime: expected 5m, got %v", cfg.DBConnMaxIdleTime)
	}
	if cfg.HTTPShutdownTimeout != 10*time.Second {
		t.Errorf("HTTPShutdownTimeout: expected 10s, got %v", cfg.HTTPShutdownTimeout)
	}
	if cfg.RunDrainTimeout != time.Minute {
		t.Errorf("RunDrainTimeout: expected 1m, got %v", cfg.RunDrainTimeout)
	}
}

func TestLoad_TimeoutCustomValues(t *testing.T) {
	// Set custom values
	os.Setenv("DB_OP_TIMEOUT", "10s")
	os.Setenv("DB_MAX_OPEN_CONNS", "50")
	os.Setenv("DB_MAX_IDLE_CONNS", "10")
	os.Setenv("DB_CONN_MAX_LIFETIME", "1h")
	os.Setenv("DB_CONN_MAX_IDLE_TIME", "10m")
	os.Setenv("HTTP_SHUTDOWN_TIMEOUT", "20s")
	os.Setenv("RUN_DRAIN_TIMEOUT", "5m")
	defer func() {
		os.Unsetenv("DB_OP_TIMEOUT")
		os.Unsetenv("DB_MAX_OPEN_CONNS")
		os.Unsetenv("DB_MAX_IDLE_CONNS")
		os.Unsetenv("DB_CONN_MAX_LIFETIME")
		os.Unsetenv("DB_CONN_MAX_IDLE_TIME")
		os.Unsetenv("HTTP_SHUTDOWN_TIMEOUT")
		os.Unsetenv("RUN_DRAIN_TIMEOUT")
	}()

	cfg := Load()

	if cfg.DBOpTimeout != 10*time.Second {
		t.Errorf("DBOpTimeout: expected 10s, got %v", cfg.DBOpTimeout)
	}
	if cfg.DBMaxOpenConns != 50 {
		t.Errorf("DBMaxOpenConns: expected 50, got %d", cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns != 10 {
		t.Errorf("DBMaxIdleConns: expected 10, got %d", cfg.DBMaxIdleConns)
	}
	if cfg.DBConnMaxLifetime != time.Hour {
		t.Errorf("DBConnMaxLifetime: expected 1h, got %v", cfg.DBConnMaxLifetime)
	}
	if cfg.DBConnMaxIdleTime != 10*time.Minute {
		t.Errorf("DBConnMaxIdleTime: expected 10m, got %v", cfg.DBConnMaxIdleTime)
	}
	if cfg.HTTPShutdownTimeout != 20*time.Second {
		t.Errorf("HTTPShutdownTimeout: expected 20s, got %v", cfg.HTTPShutdownTimeout)
	}
	if cfg.RunDrainTimeout != 5*time.Minute {
		t.Errorf("RunDrainTimeout: expected 5m, got %v", cfg.RunDrainTimeout)
	}
}

func TestLoad_InvalidDurationLeavesZero(t *testing.T) {
	t.Setenv("IMPORT_TIMEOUT", "forever")

	cfg := Load()

	if cfg.ImportTimeout != 0 {
		t.Errorf("ImportTimeout: expected 0 for unparseable value, got %v", cfg.ImportTimeout)
	}
	if cfg.ImportTimeoutStr != "forever" {
		t.Errorf("ImportTimeoutStr should keep the raw value, got %q", cfg.ImportTimeoutStr)
	}
}

func TestLoad_HTTPAddrFallsBackToPort(t *testing.T) {
	os.Unsetenv("HTTP_ADDR")
	t.Setenv("PORT", "3000")

	cfg := Load()

	if cfg.HTTPAddr != ":3000" {
		t.Errorf("HTTPAddr: expected :3000, got %q", cfg.HTTPAddr)
	}
}

func TestLoad_ReconcileBatchSizeInvalidFallsBack(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"negative", "-1"},
		{"zero", "0"},
		{"non-numeric", "abc"},
		{"float", "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("RECONCILE_BATCH_SIZE", tt.value)
			defer os.Unsetenv("RECONCILE_BATCH_SIZE")

			cfg := Load()

			if cfg.ReconcileBatchSize != 100 {
				t.Errorf("ReconcileBatchSize: expected fallback to 100 for %q, got %d", tt.value, cfg.ReconcileBatchSize)
			}
		})
	}
}

func TestLoad_LeaderLockKey(t *testing.T) {
	os.Unsetenv("LEADER_LOCK_KEY")
	os.Unsetenv("IMPORT_JOB_NAME")
	if got, want := Load().LeaderLockKey, leaderelection.LockKey(DefaultImportJobName); got != want {
		t.Errorf("LeaderLockKey default: expected %d, got %d", want, got)
	}

	t.Setenv("IMPORT_JOB_NAME", "importOrdersJob")
	if got, want := Load().LeaderLockKey, leaderelection.LockKey("importOrdersJob"); got != want {
		t.Errorf("LeaderLockKey for importOrdersJob: expected %d, got %d", want, got)
	}

	t.Setenv("LEADER_LOCK_KEY", "42")
	if got := Load().LeaderLockKey; got != 42 {
		t.Errorf("LeaderLockKey: expected 42, got %d", got)
	}
}

func TestMaskedJSON_MasksSecrets(t *testing.T) {
	cfg := Config{
		DatabaseURL:  "postgres://user:pass@db:5432/easyimport",
		ImportURL:    "https://importer.internal/run",
		ImportSecret: "hunter2",
	}

	data, err := cfg.MaskedJSON()
	if err != nil {
		t.Fatalf("MaskedJSON failed: %v", err)
	}

	json := string(data)

	if containsString(json, "user:pass") {
		t.Error("MaskedJSON leaked database credentials")
	}
	if !containsString(json, `"database_url": "postgres://***"`) {
		t.Errorf("MaskedJSON database_url not masked as expected: %s", json)
	}
	if containsString(json, "hunter2") {
		t.Error("MaskedJSON leaked import secret")
	}
	if !containsString(json, `"import_url": "https://importer.internal/run"`) {
		t.Errorf("MaskedJSON should include import_url: %s", json)
	}
}

func TestMaskedJSON_IncludesTimeoutConfig(t *testing.T) {
	// Clear env vars to get defaults
	os.Unsetenv("DB_OP_TIMEOUT")
	os.Unsetenv("HTTP_SHUTDOWN_TIMEOUT")
	os.Unsetenv("RUN_DRAIN_TIMEOUT")

	cfg := Load()
	data, err := cfg.MaskedJSON()
	if err != nil {
		t.Fatalf("MaskedJSON failed: %v", err)
	}

	json := string(data)

	for _, field := range []string{`"db_op_timeout"`, `"http_shutdown_timeout"`, `"run_drain_timeout"`, `"db_max_open_conns"`, `"import_cron"`} {
		if !containsString(json, field) {
			t.Errorf("MaskedJSON missing %s field", field)
		}
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("EASYIMPORT_TEST_FROM_FILE=file\nEASYIMPORT_TEST_PRESET=file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("EASYIMPORT_TEST_PRESET", "process")
	t.Cleanup(func() { os.Unsetenv("EASYIMPORT_TEST_FROM_FILE") })

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile failed: %v", err)
	}

	if got := os.Getenv("EASYIMPORT_TEST_FROM_FILE"); got != "file" {
		t.Errorf("EASYIMPORT_TEST_FROM_FILE = %q, want file", got)
	}
	if got := os.Getenv("EASYIMPORT_TEST_PRESET"); got != "process" {
		t.Errorf("existing variable overridden: got %q, want process", got)
	}
}

func TestLoadEnvFile_MissingFile(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("missing env file should not be an error, got %v", err)
	}
}

func containsString(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
