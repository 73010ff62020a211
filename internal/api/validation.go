package api

import (
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// maxStatsAge bounds how far back /stats may look; counters older than the
// analytics retention have expired anyway.
const maxStatsAge = 366 * 24 * time.Hour

// parseDay parses a YYYY-MM-DD query value as a UTC day. An empty value
// means the UTC day containing now.
func parseDay(raw string, now time.Time) (time.Time, error) {
	now = now.UTC()
	if raw == "" {
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}

	day, err := time.ParseInLocation(dayLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("day must be formatted as YYYY-MM-DD")
	}
	if day.After(now) {
		return time.Time{}, fmt.Errorf("day must not be in the future")
	}
	if now.Sub(day) > maxStatsAge {
		return time.Time{}, fmt.Errorf("day must be within the last year")
	}
	return day, nil
}
