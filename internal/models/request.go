package models

import (
	"time"

	"github.com/google/uuid"
)

// Control request actions.
const (
	ActionStart = "start"
	ActionStop  = "stop"
)

// ControlRequest is a start/stop request dropped into the daemon's mailbox.
// This corresponds to ~/.mimonitor/requests/<id>.yaml.
type ControlRequest struct {
	ID          string    `yaml:"id"`
	Action      string    `yaml:"action"`
	RequestedAt time.Time `yaml:"requested_at"`
}

// NewControlRequest creates a request with a fresh ID.
func NewControlRequest(action string) *ControlRequest {
	return &ControlRequest{
		ID:          uuid.NewString(),
		Action:      action,
		RequestedAt: time.Now().UTC(),
	}
}

// Expired reports whether the request was made more than ttl before now.
// Requests without a timestamp are treated as expired.
func (r *ControlRequest) Expired(now time.Time, ttl time.Duration) bool {
	return r.RequestedAt.IsZero() || now.Sub(r.RequestedAt) > ttl
}

// Valid reports whether the request names a known action.
func (r *ControlRequest) Valid() bool {
	return r.ID != "" && (r.Action == ActionStart || r.Action == ActionStop)
}
