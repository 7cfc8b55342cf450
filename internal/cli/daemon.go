package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/motioninput/mimonitor/internal/config"
)

const daemonName = "mimonitord"

// EnsureDaemon makes sure the daemon is running, starting it if necessary.
func EnsureDaemon() error {
	running, info, err := config.IsDaemonRunning()
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if running {
		return nil
	}

	// Clean up stale daemon info if it exists
	if info != nil {
		_ = config.RemoveDaemonInfo()
	}

	return startDaemon()
}

// ensureDaemon is swapped out by tests.
var ensureDaemon = EnsureDaemon

// startDaemon starts the daemon process in the background.
func startDaemon() error {
	daemonPath, err := findDaemonBinary()
	if err != nil {
		return err
	}

	cmd := exec.Command(daemonPath, daemonArgs(configPath)...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	// The daemon outlives the CLI.
	_ = cmd.Process.Release()

	// Wait for daemon to be ready (max 5 seconds)
	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		running, _, err := config.IsDaemonRunning()
		if err == nil && running {
			return nil
		}
	}

	return fmt.Errorf("daemon failed to start within timeout, see %s", logHint())
}

func daemonArgs(settingsPath string) []string {
	if settingsPath == "" {
		return nil
	}
	if abs, err := filepath.Abs(settingsPath); err == nil {
		settingsPath = abs
	}
	return []string{"--config", settingsPath}
}

func daemonBinaryName() string {
	if runtime.GOOS == "windows" {
		return daemonName + ".exe"
	}
	return daemonName
}

// findDaemonBinary locates the mimonitord binary.
func findDaemonBinary() (string, error) {
	// Try PATH first
	if path, err := exec.LookPath(daemonName); err == nil {
		return path, nil
	}

	// Try next to the current executable
	if execPath, err := os.Executable(); err == nil {
		daemonPath := filepath.Join(filepath.Dir(execPath), daemonBinaryName())
		if config.FileExists(daemonPath) {
			return daemonPath, nil
		}
	}

	// Try build directory
	local := filepath.Join("build", daemonBinaryName())
	if config.FileExists(local) {
		return local, nil
	}

	return "", fmt.Errorf("%s not found. Install or build it first", daemonName)
}

func logHint() string {
	path, err := config.GlobalLogFile()
	if err != nil {
		return "the daemon log"
	}
	return path
}

// GetDaemonStatus returns the daemon status.
func GetDaemonStatus() (bool, *DaemonStatusInfo, error) {
	running, info, err := config.IsDaemonRunning()
	if err != nil {
		return false, nil, err
	}

	if !running || info == nil {
		return false, nil, nil
	}

	return true, &DaemonStatusInfo{
		Host:       info.Host,
		Port:       info.Port,
		PID:        info.PID,
		ConfigPath: info.ConfigPath,
		StartedAt:  info.StartedAt,
	}, nil
}

// DaemonStatusInfo contains daemon status information.
type DaemonStatusInfo struct {
	Host       string
	Port       int
	PID        int
	ConfigPath string
	StartedAt  time.Time
}
