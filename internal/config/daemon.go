package config

import (
	"os"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/motioninput/mimonitor/internal/models"
)

// LoadDaemonInfo loads the daemon info from ~/.mimonitor/daemon.yaml.
// Returns nil if the file doesn't exist.
func LoadDaemonInfo() (*models.DaemonInfo, error) {
	path, err := GlobalDaemonFile()
	if err != nil {
		return nil, err
	}

	if !FileExists(path) {
		return nil, nil
	}

	var info models.DaemonInfo
	if err := LoadYAML(path, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// SaveDaemonInfo saves the daemon info to ~/.mimonitor/daemon.yaml.
func SaveDaemonInfo(info *models.DaemonInfo) error {
	if err := EnsureGlobalDir(); err != nil {
		return err
	}

	path, err := GlobalDaemonFile()
	if err != nil {
		return err
	}
	return SaveYAML(path, info)
}

// RemoveDaemonInfo removes the daemon.yaml file.
func RemoveDaemonInfo() error {
	return removeGlobalFile(GlobalDaemonFile)
}

// IsDaemonRunning checks if the daemon process is still running.
// Returns true if daemon.yaml exists and the PID is alive. A stale file is removed.
func IsDaemonRunning() (bool, *models.DaemonInfo, error) {
	info, err := LoadDaemonInfo()
	if err != nil {
		return false, nil, err
	}
	if info == nil {
		return false, nil, nil
	}

	if !pidAlive(info.PID) {
		_ = RemoveDaemonInfo()
		return false, info, nil
	}

	return true, info, nil
}

// LoadStatus loads the last persisted supervisor status.
// Returns nil if the daemon has not written one yet.
func LoadStatus() (*models.StatusFile, error) {
	path, err := GlobalStatusFile()
	if err != nil {
		return nil, err
	}
	if !FileExists(path) {
		return nil, nil
	}

	var status models.StatusFile
	if err := LoadYAML(path, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SaveStatus persists the supervisor status to ~/.mimonitor/status.yaml.
func SaveStatus(status *models.StatusFile) error {
	path, err := GlobalStatusFile()
	if err != nil {
		return err
	}
	return SaveYAML(path, status)
}

// RemoveStatus removes the status.yaml file.
func RemoveStatus() error {
	return removeGlobalFile(GlobalStatusFile)
}

func removeGlobalFile(pathFn func() (string, error)) error {
	path, err := pathFn()
	if err != nil {
		return err
	}
	if !FileExists(path) {
		return nil
	}
	return os.Remove(path)
}

// pidAlive reports whether a process with the given PID exists.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	alive, err := process.PidExists(int32(pid))
	return err == nil && alive
}
