package tui

import (
	"github.com/motioninput/mimonitor/internal/models"
)

// SnapshotMsg carries everything read from ~/.mimonitor on one poll.
type SnapshotMsg struct {
	Daemon   *models.DaemonInfo // nil when the daemon is not running
	Status   *models.StatusFile // nil before the daemon reports
	LogLines []string
	Err      error
}

// RequestSentMsg signals a control request was written to the mailbox.
type RequestSentMsg struct {
	Action string
}

// RequestDoneMsg carries the outcome of a start or stop handled by the
// control service.
type RequestDoneMsg struct {
	Action string
	Result string
	Status *models.StatusFile
}

// ErrorMsg carries an error to display.
type ErrorMsg struct {
	Err error
}

// TickMsg is a periodic tick for polling.
type TickMsg struct{}

// ClearNoticeMsg clears the status bar notice.
type ClearNoticeMsg struct{}
