package config

import (
	"fmt"

	"github.com/motioninput/mimonitor/internal/models"
)

// LoadSettings loads settings from path, or from ~/.mimonitor/settings.yaml when
// path is empty. Missing keys keep their defaults; a missing file yields the
// defaults. The current mode, if any, is applied and the result validated.
func LoadSettings(path string) (*models.Settings, error) {
	if path == "" {
		var err error
		path, err = GlobalSettingsFile()
		if err != nil {
			return nil, err
		}
	}

	settings, err := LoadYAMLOrDefault(path, models.NewSettings)
	if err != nil {
		return nil, err
	}
	if err := settings.ApplyMode(); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", path, err)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", path, err)
	}
	return settings, nil
}

// SaveSettings saves settings to path, or to ~/.mimonitor/settings.yaml when
// path is empty.
func SaveSettings(path string, settings *models.Settings) error {
	if path == "" {
		var err error
		path, err = GlobalSettingsFile()
		if err != nil {
			return err
		}
	}
	return SaveYAML(path, settings)
}
