package process

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/motioninput/mimonitor/internal/logging"
	"github.com/motioninput/mimonitor/internal/models"
)

// launchVars are the values available to launch command templates.
type launchVars struct {
	Executable string
	Dir        string
}

// CommandLauncher starts the managed app from a templated argv in the
// configured launch directory.
type CommandLauncher struct {
	argv   []*template.Template
	vars   launchVars
	logger *slog.Logger
}

// NewCommandLauncher parses the launch command templates.
func NewCommandLauncher(app models.AppConfig, logger *slog.Logger) (*CommandLauncher, error) {
	if len(app.LaunchCommand) == 0 {
		return nil, fmt.Errorf("launch command is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	l := &CommandLauncher{
		vars:   launchVars{Executable: app.Executable, Dir: app.LaunchDir},
		logger: logger,
	}
	for i, arg := range app.LaunchCommand {
		tmpl, err := template.New(fmt.Sprintf("arg%d", i)).Option("missingkey=error").Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid launch command element %q: %w", arg, err)
		}
		l.argv = append(l.argv, tmpl)
	}
	return l, nil
}

// Command renders the argv. A relative program path is resolved against the
// launch directory.
func (l *CommandLauncher) Command() ([]string, error) {
	argv := make([]string, len(l.argv))
	for i, tmpl := range l.argv {
		var sb strings.Builder
		if err := tmpl.Execute(&sb, l.vars); err != nil {
			return nil, fmt.Errorf("rendering launch command: %w", err)
		}
		argv[i] = sb.String()
	}
	if argv[0] == "" {
		return nil, fmt.Errorf("launch command renders an empty program")
	}

	prog := argv[0]
	if l.vars.Dir != "" && !filepath.IsAbs(prog) && strings.ContainsAny(prog, `/\`) {
		argv[0] = filepath.Join(l.vars.Dir, prog)
	}
	return argv, nil
}

// Launch implements Launcher. The child is not tied to ctx; it outlives the
// request that started it and is reaped in the background.
func (l *CommandLauncher) Launch(ctx context.Context) error {
	argv, err := l.Command()
	if err != nil {
		return err
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = l.vars.Dir
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", argv[0], err)
	}
	l.logger.Info("launched managed app", "argv", argv, "dir", cmd.Dir, "pid", cmd.Process.Pid)

	go func() {
		defer logging.LogPanic("launch-reaper", nil)
		err := cmd.Wait()
		l.logger.Debug("launch command exited", "pid", cmd.Process.Pid, "error", err)
	}()
	return nil
}
