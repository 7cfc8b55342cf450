// Package config handles configuration loading, saving, and path management.
package config

import (
	"os"
	"path/filepath"
)

const (
	// GlobalDirName is the name of the global mimonitor directory.
	GlobalDirName = ".mimonitor"

	// RequestsDirName is the name of the control-request mailbox directory.
	RequestsDirName = "requests"

	// AssetsDirName is the name of the directory holding fallback scripts and icons.
	AssetsDirName = "assets"
)

// File names
const (
	DaemonFileName   = "daemon.yaml"
	SettingsFileName = "settings.yaml"
	StatusFileName   = "status.yaml"
	LogFileName      = "mimonitor.log"
)

// homeOverride lets tests relocate the global directory.
var homeOverride string

// GlobalDir returns the path to the global mimonitor directory (~/.mimonitor/).
// MIMONITOR_HOME overrides the location.
func GlobalDir() (string, error) {
	if homeOverride != "" {
		return homeOverride, nil
	}
	if dir := os.Getenv("MIMONITOR_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, GlobalDirName), nil
}

func globalFile(name string) (string, error) {
	dir, err := GlobalDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// GlobalDaemonFile returns the path to the daemon.yaml file.
func GlobalDaemonFile() (string, error) {
	return globalFile(DaemonFileName)
}

// GlobalSettingsFile returns the path to the settings.yaml file.
func GlobalSettingsFile() (string, error) {
	return globalFile(SettingsFileName)
}

// GlobalStatusFile returns the path to the status.yaml file.
func GlobalStatusFile() (string, error) {
	return globalFile(StatusFileName)
}

// GlobalLogFile returns the default log file path.
func GlobalLogFile() (string, error) {
	return globalFile(LogFileName)
}

// RequestsDir returns the path to the control-request mailbox.
func RequestsDir() (string, error) {
	return globalFile(RequestsDirName)
}

// EnsureGlobalDir creates the global directory and the mailbox if they don't exist.
func EnsureGlobalDir() error {
	dir, err := GlobalDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(filepath.Join(dir, RequestsDirName), 0o755)
}
