package metrics

import (
	"strings"
	"time"
)

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
// If the metrics backend is unavailable, implementations log warnings and continue.
type Sink interface {
	// Trigger metrics
	RunStarted()
	RunCompleted(duration time.Duration, outcome string)

	// Scheduler metrics
	TickDrift(drift time.Duration)

	// Import job metrics
	ImportRequestCompleted(statusClass string, duration time.Duration)

	// Reconciler metrics
	ExecutionsAbandoned(count int)

	// Leader election metrics
	LeaderStatusChanged(isLeader bool)
	LeaderAcquired()
	LeaderLost(reason string)
}

// StatusClass constants for ImportRequestCompleted metric.
const (
	StatusClass2xx             = "2xx"
	StatusClass4xx             = "4xx"
	StatusClass5xx             = "5xx"
	StatusClassTimeout         = "timeout"
	StatusClassConnectionError = "connection_error"
	StatusClassOtherError      = "other_error"
)

// ClassifyStatus maps a status code and error to a status class.
func ClassifyStatus(statusCode int, err error) string {
	if err != nil {
		errStr := strings.ToLower(err.Error())
		if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
			return StatusClassTimeout
		}
		if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") ||
			strings.Contains(errStr, "network is unreachable") || strings.Contains(errStr, "dial") {
			return StatusClassConnectionError
		}
		return StatusClassOtherError
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		return StatusClass2xx
	case statusCode >= 400 && statusCode < 500:
		return StatusClass4xx
	case statusCode >= 500:
		return StatusClass5xx
	default:
		return StatusClassOtherError
	}
}
