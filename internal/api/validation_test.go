package api

import (
	"testing"
	"time"
)

func TestParseDay(t *testing.T) {
	now := time.Date(2026, 3, 2, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*3600))

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "empty is today in UTC", raw: "", want: "2026-03-03"},
		{name: "explicit day", raw: "2026-02-14", want: "2026-02-14"},
		{name: "today", raw: "2026-03-03", want: "2026-03-03"},
		{name: "future", raw: "2026-03-04", wantErr: true},
		{name: "too old", raw: "2024-01-01", wantErr: true},
		{name: "bad format", raw: "2026/03/01", wantErr: true},
		{name: "not a date", raw: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDay(tt.raw, now)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseDay(%q) should return error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDay(%q) = %v, want nil", tt.raw, err)
			}
			if got.Format(dayLayout) != tt.want {
				t.Errorf("parseDay(%q) = %s, want %s", tt.raw, got.Format(dayLayout), tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("parseDay(%q) location = %v, want UTC", tt.raw, got.Location())
			}
		})
	}
}
