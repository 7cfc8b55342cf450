package process

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// ShellRunner runs fallback scripts through the platform shell and waits for
// them up to a timeout.
type ShellRunner struct {
	timeout time.Duration
	dir     string
	logger  *slog.Logger
}

// NewShellRunner creates a runner. Scripts run in dir.
func NewShellRunner(timeout time.Duration, dir string, logger *slog.Logger) *ShellRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ShellRunner{timeout: timeout, dir: dir, logger: logger}
}

// Run implements ScriptRunner.
func (r *ShellRunner) Run(ctx context.Context, script string) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	name, args := shellCommand(script)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.dir
	out, err := cmd.CombinedOutput()
	r.logger.Debug("fallback script finished", "script", script, "output", strings.TrimSpace(string(out)), "error", err)
	if err != nil {
		return fmt.Errorf("script %s: %w", script, err)
	}
	return nil
}

func shellCommand(script string) (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C", script}
	}
	return "/bin/sh", []string{"-c", script}
}
