package tray

import "log/slog"

// LogBackend stands in for the tray in foreground mode: each instance is a
// log line.
type LogBackend struct {
	logger  *slog.Logger
	destroy chan struct{}
}

// NewLogBackend creates a log backend.
func NewLogBackend(logger *slog.Logger) *LogBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogBackend{logger: logger, destroy: make(chan struct{}, 1)}
}

// Create implements Backend.
func (b *LogBackend) Create(icon Icon) bool {
	b.logger.Info("indicator", "running", icon.Running, "tooltip", icon.Tooltip)
	<-b.destroy
	return false
}

// Destroy implements Backend.
func (b *LogBackend) Destroy() {
	select {
	case b.destroy <- struct{}{}:
	default:
	}
}
