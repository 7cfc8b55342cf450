package models

import (
	"testing"
	"time"
)

func TestControlRequestExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name        string
		requestedAt time.Time
		want        bool
	}{
		{"fresh", now.Add(-5 * time.Second), false},
		{"at the limit", now.Add(-time.Minute), false},
		{"left over", now.Add(-time.Hour), true},
		{"no timestamp", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &ControlRequest{ID: "x", Action: ActionStart, RequestedAt: tt.requestedAt}
			if got := req.Expired(now, time.Minute); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}
