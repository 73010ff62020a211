package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/djlord-it/easy-import/internal/cron"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	// IMPORT_URL is required
	if cfg.ImportURL == "" {
		errs = append(errs, ValidationError{
			Field:   "IMPORT_URL",
			Message: "required",
		})
	} else if err := validateImportURL(cfg.ImportURL); err != nil {
		errs = append(errs, ValidationError{
			Field:   "IMPORT_URL",
			Message: err.Error(),
		})
	}

	tz := cfg.ImportTimezone
	if tz == "" {
		tz = DefaultImportTimezone
	}
	if _, err := time.LoadLocation(tz); err != nil {
		errs = append(errs, ValidationError{
			Field:   "IMPORT_TIMEZONE",
			Message: fmt.Sprintf("unknown timezone: %v", err),
		})
		tz = "UTC"
	}

	if cfg.ImportCron != "" {
		if _, err := cron.NewParser().Parse(cfg.ImportCron, tz); err != nil {
			errs = append(errs, ValidationError{
				Field:   "IMPORT_CRON",
				Message: err.Error(),
			})
		}
	}

	durations := []struct {
		field string
		value string
	}{
		{"IMPORT_TIMEOUT", cfg.ImportTimeoutStr},
		{"DB_OP_TIMEOUT", cfg.DBOpTimeoutStr},
		{"HTTP_SHUTDOWN_TIMEOUT", cfg.HTTPShutdownTimeoutStr},
		{"RUN_DRAIN_TIMEOUT", cfg.RunDrainTimeoutStr},
		{"ANALYTICS_RETENTION", cfg.AnalyticsRetentionStr},
		{"RECONCILE_INTERVAL", cfg.ReconcileIntervalStr},
		{"RECONCILE_THRESHOLD", cfg.ReconcileThresholdStr},
		{"LEADER_RETRY_INTERVAL", cfg.LeaderRetryIntervalStr},
		{"LEADER_HEARTBEAT_INTERVAL", cfg.LeaderHeartbeatIntervalStr},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		if err := validatePositiveDuration(d.value); err != nil {
			errs = append(errs, ValidationError{Field: d.field, Message: err.Error()})
		}
	}

	// A running import must not be abandoned before it can time out.
	if cfg.ReconcileEnabled && cfg.ReconcileThreshold > 0 && cfg.ReconcileThreshold <= cfg.ImportTimeout {
		errs = append(errs, ValidationError{
			Field:   "RECONCILE_THRESHOLD",
			Message: fmt.Sprintf("must exceed IMPORT_TIMEOUT (%s)", cfg.ImportTimeoutStr),
		})
	}

	if cfg.LeaderElectionEnabled && cfg.DatabaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "LEADER_ELECTION_ENABLED",
			Message: "requires DATABASE_URL",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validatePositiveDuration(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration: %v", err)
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validateImportURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
