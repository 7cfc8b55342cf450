//go:build windows

package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// OSTerminator runs taskkill against the captured image names: a close
// request for Terminate and /F for Kill.
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
	return t.taskkill(ctx, targets, false)
}

// Kill implements Terminator.
func (t *OSTerminator) Kill(ctx context.Context, targets []Record) error {
	return t.taskkill(ctx, targets, true)
}

func (t *OSTerminator) taskkill(ctx context.Context, targets []Record, force bool) error {
	var errs []error
	seen := map[string]bool{}
	for _, r := range targets {
		key := strings.ToLower(r.Name)
		if seen[key] {
			continue
		}
		seen[key] = true

		args := []string{"/IM", r.Name}
		if force {
			args = append([]string{"/F"}, args...)
		}
		out, err := exec.CommandContext(ctx, "taskkill", args...).CombinedOutput()
		t.logger.Debug("taskkill", "args", args, "output", strings.TrimSpace(string(out)))
		if err != nil {
			errs = append(errs, fmt.Errorf("taskkill %s: %w", strings.Join(args, " "), err))
		}
	}
	return errors.Join(errs...)
}
