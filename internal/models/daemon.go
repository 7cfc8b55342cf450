package models

import "time"

// DaemonInfo represents the running daemon and where its control service
// listens. This corresponds to ~/.mimonitor/daemon.yaml.
type DaemonInfo struct {
	Version    int       `yaml:"version"`
	Host       string    `yaml:"host,omitempty"`
	Port       int       `yaml:"port,omitempty"` // 0 when the control service is not available
	PID        int       `yaml:"pid"`
	ConfigPath string    `yaml:"config_path,omitempty"`
	StartedAt  time.Time `yaml:"started_at"`
}

// NewDaemonInfo creates a new daemon info with current values.
func NewDaemonInfo(host string, port, pid int, configPath string) *DaemonInfo {
	return &DaemonInfo{
		Version:    1,
		Host:       host,
		Port:       port,
		PID:        pid,
		ConfigPath: configPath,
		StartedAt:  time.Now().UTC(),
	}
}

// StatusFile is the last known supervisor state, persisted for the CLI.
// This corresponds to ~/.mimonitor/status.yaml.
type StatusFile struct {
	Version     int             `yaml:"version"`
	App         string          `yaml:"app"`
	Phase       string          `yaml:"phase"`
	Instances   int             `yaml:"instances"` // -1 when the last observation failed
	Indicator   bool            `yaml:"indicator"`
	LastError   string          `yaml:"last_error,omitempty"`
	LastRequest *RequestOutcome `yaml:"last_request,omitempty"`
	UpdatedAt   time.Time       `yaml:"updated_at"`
}

// RequestOutcome records how the daemon handled a mailbox request.
type RequestOutcome struct {
	ID        string    `yaml:"id"`
	Action    string    `yaml:"action"`
	Result    string    `yaml:"result,omitempty"` // e.g. "started", "not running"
	Error     string    `yaml:"error,omitempty"`
	HandledAt time.Time `yaml:"handled_at"`
}
