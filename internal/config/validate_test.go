package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		ImportCron:       "0 25 17 * * *",
		ImportTimezone:   "UTC",
		ImportURL:        "https://importer.internal/run",
		ImportTimeout:    30 * time.Minute,
		ImportTimeoutStr: "30m",
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Errorf("valid config should not return error, got: %v", err)
	}
}

func TestValidate_DatabaseURLOptional(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = ""

	if err := Validate(cfg); err != nil {
		t.Errorf("DATABASE_URL should be optional, got: %v", err)
	}
}

func TestValidate_MissingImportURL(t *testing.T) {
	cfg := validConfig()
	cfg.ImportURL = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for missing IMPORT_URL")
	}

	if !strings.Contains(err.Error(), "IMPORT_URL: required") {
		t.Errorf("error should mention IMPORT_URL: %q", err.Error())
	}
}

func TestValidate_InvalidImportURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"ftp scheme", "ftp://example.com"},
		{"no host", "http://"},
		{"no scheme", "example.com/import"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.ImportURL = tt.url

			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), "IMPORT_URL") {
				t.Errorf("Validate with IMPORT_URL=%q = %v, want IMPORT_URL error", tt.url, err)
			}
		})
	}
}

func TestValidate_ImportCron(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{"six fields", "0 25 17 * * *", false},
		{"five fields", "25 17 * * *", false},
		{"descriptor", "@daily", false},
		{"garbage", "not a cron", true},
		{"out of range", "0 61 17 * * *", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.ImportCron = tt.expr

			err := Validate(cfg)
			if tt.wantErr {
				if err == nil || !strings.Contains(err.Error(), "IMPORT_CRON") {
					t.Errorf("expected IMPORT_CRON error for %q, got %v", tt.expr, err)
				}
				return
			}
			if err != nil {
				t.Errorf("expected %q to be valid, got %v", tt.expr, err)
			}
		})
	}
}

func TestValidate_InvalidTimezone(t *testing.T) {
	cfg := validConfig()
	cfg.ImportTimezone = "Mars/Olympus"

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "IMPORT_TIMEZONE") {
		t.Errorf("expected IMPORT_TIMEZONE error, got %v", err)
	}
}

func TestValidate_InvalidDurations(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr string
	}{
		{"non-parseable", "invalid", "invalid duration"},
		{"negative", "-1s", "must be positive"},
		{"zero", "0s", "must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.DBOpTimeoutStr = tt.value

			err := Validate(cfg)
			if err == nil {
				t.Fatalf("expected error for db_op_timeout=%q", tt.value)
			}
			if !strings.Contains(err.Error(), "DB_OP_TIMEOUT") || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention DB_OP_TIMEOUT and %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_ReconcileThresholdMustExceedImportTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.ReconcileEnabled = true
	cfg.ReconcileThreshold = 10 * time.Minute
	cfg.ReconcileThresholdStr = "10m"

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "RECONCILE_THRESHOLD") {
		t.Fatalf("expected RECONCILE_THRESHOLD error, got %v", err)
	}

	cfg.ReconcileThreshold = time.Hour
	cfg.ReconcileThresholdStr = "1h"
	if err := Validate(cfg); err != nil {
		t.Errorf("threshold above import timeout should be valid, got %v", err)
	}
}

func TestValidate_LeaderElectionRequiresDatabase(t *testing.T) {
	cfg := validConfig()
	cfg.LeaderElectionEnabled = true

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "LEADER_ELECTION_ENABLED") {
		t.Fatalf("expected LEADER_ELECTION_ENABLED error, got %v", err)
	}

	cfg.DatabaseURL = "postgres://localhost/easyimport"
	if err := Validate(cfg); err != nil {
		t.Errorf("leader election with database should be valid, got %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.ImportURL = ""
	cfg.DBOpTimeoutStr = "invalid"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}

	errs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	if len(errs) != 2 {
		t.Errorf("expected 2 validation errors, got %d: %v", len(errs), errs)
	}
}

func TestValidationError_Format(t *testing.T) {
	err := ValidationError{Field: "IMPORT_URL", Message: "required"}
	got := err.Error()
	want := "IMPORT_URL: required"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestValidationErrors_Format(t *testing.T) {
	// Single error
	single := ValidationErrors{{Field: "F1", Message: "M1"}}
	if single.Error() != "F1: M1" {
		t.Errorf("single error = %q, want 'F1: M1'", single.Error())
	}

	// Multiple errors
	multi := ValidationErrors{
		{Field: "F1", Message: "M1"},
		{Field: "F2", Message: "M2"},
	}
	got := multi.Error()
	if !strings.Contains(got, "2 validation errors") {
		t.Errorf("multi error should contain '2 validation errors': %q", got)
	}
	if !strings.Contains(got, "F1: M1") || !strings.Contains(got, "F2: M2") {
		t.Errorf("multi error should contain both errors: %q", got)
	}

	// Empty
	empty := ValidationErrors{}
	if empty.Error() != "" {
		t.Errorf("empty errors should return empty string, got %q", empty.Error())
	}
}
