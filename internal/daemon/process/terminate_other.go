//go:build !windows

package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shirou/gopsutil/v4/process"
)

// OSTerminator signals the captured PIDs: SIGTERM for Terminate and SIGKILL
// for Kill.
type OSTerminator struct {
	logger *slog.Logger
}

// NewTerminator creates a terminator for this platform.
func NewTerminator(logger *slog.Logger) *OSTerminator {
	if logger == nil {
		logger = slog.Default()
	}
	return &OSTerminator{logger: logger}
}

// Terminate implements Terminator.
func (t *OSTerminator) Terminate(ctx context.Context, targets []Record) error {
	return t.each(ctx, targets, "terminate", (*process.Process).TerminateWithContext)
}

// Kill implements Terminator.
func (t *OSTerminator) Kill(ctx context.Context, targets []Record) error {
	return t.each(ctx, targets, "kill", (*process.Process).KillWithContext)
}

func (t *OSTerminator) each(ctx context.Context, targets []Record, verb string, fn func(*process.Process, context.Context) error) error {
	var errs []error
	for _, r := range targets {
		p, err := process.NewProcessWithContext(ctx, r.PID)
		if err != nil {
			// Already gone.
			continue
		}
		if err := fn(p, ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s %s (pid %d): %w", verb, r.Name, r.PID, err))
			continue
		}
		t.logger.Debug("signal sent", "action", verb, "name", r.Name, "pid", r.PID)
	}
	return errors.Join(errs...)
}
