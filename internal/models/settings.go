package models

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Match modes for identifying the managed app in the process table.
const (
	MatchExact  = "exact"
	MatchPrefix = "prefix"
)

// AppConfig describes the managed application.
type AppConfig struct {
	Name          string   `yaml:"name"`           // Display name used in the tray tooltip
	Executable    string   `yaml:"executable"`     // Process name, e.g. "MI_app.exe"
	LaunchDir     string   `yaml:"launch_dir"`     // Working directory for the launch command
	LaunchCommand []string `yaml:"launch_command"` // argv; each element is a template over {{.Executable}} and {{.Dir}}
	Match         string   `yaml:"match"`          // "exact" | "prefix"
	Prefixes      []string `yaml:"prefixes,omitempty"`
}

// PhrasesConfig holds the trigger vocabulary.
type PhrasesConfig struct {
	Subjects []string `yaml:"subjects"` // "motion" expands to "start motion", "stop motion", "close motion"
	Start    []string `yaml:"start,omitempty"`
	Stop     []string `yaml:"stop,omitempty"`
}

// ScriptsConfig lists last-resort terminate scripts, run in order.
type ScriptsConfig struct {
	Fallback []string      `yaml:"fallback,omitempty"`
	Timeout  time.Duration `yaml:"timeout"`
}

// TimingConfig holds the settle windows and the reconciliation interval.
type TimingConfig struct {
	StartSettle  time.Duration `yaml:"start_settle"`
	StartRetry   time.Duration `yaml:"start_retry"`
	StopGrace    time.Duration `yaml:"stop_grace"`
	KillSettle   time.Duration `yaml:"kill_settle"`
	ScriptSettle time.Duration `yaml:"script_settle"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// AudioConfig holds microphone capture settings.
type AudioConfig struct {
	SampleRate      float64 `yaml:"sample_rate"` // 0 = device default
	FramesPerBuffer int     `yaml:"frames_per_buffer"`
	QueueSize       int     `yaml:"queue_size"`
}

// RecognizerConfig points at the speech engine.
type RecognizerConfig struct {
	URL      string `yaml:"url"`
	Partials bool   `yaml:"partials"`
}

// TrayConfig overrides the embedded tray icons.
type TrayConfig struct {
	OnIcon  string `yaml:"on_icon,omitempty"`
	OffIcon string `yaml:"off_icon,omitempty"`
}

// LoggingConfig holds log destination settings.
type LoggingConfig struct {
	Level      string `yaml:"level"` // "debug" | "info" | "warn" | "error"
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Settings represents the supervisor configuration.
// This corresponds to ~/.mimonitor/settings.yaml.
type Settings struct {
	Version int `yaml:"version"`
	// CurrentMode names the entry of Modes laid over App, Phrases and
	// Scripts. Empty means the top-level sections are used as they are.
	CurrentMode string `yaml:"current_mode,omitempty"`
	// Modes holds per-mode overrides, each a mapping with any of the keys
	// app, phrases and scripts. Only the current mode is decoded.
	Modes      map[string]yaml.Node `yaml:"modes,omitempty"`
	App        AppConfig            `yaml:"app"`
	Phrases    PhrasesConfig        `yaml:"phrases"`
	Scripts    ScriptsConfig        `yaml:"scripts"`
	Timing     TimingConfig         `yaml:"timing"`
	Audio      AudioConfig          `yaml:"audio"`
	Recognizer RecognizerConfig     `yaml:"recognizer"`
	Tray       TrayConfig           `yaml:"tray"`
	Logging    LoggingConfig        `yaml:"logging"`
}

// modeOverlay is the part of Settings a mode may override.
type modeOverlay struct {
	App     AppConfig     `yaml:"app"`
	Phrases PhrasesConfig `yaml:"phrases"`
	Scripts ScriptsConfig `yaml:"scripts"`
}

// ApplyMode lays the current mode over App, Phrases and Scripts. Keys the
// mode leaves out keep their top-level values.
func (s *Settings) ApplyMode() error {
	if s.CurrentMode == "" {
		return nil
	}
	node, ok := s.Modes[s.CurrentMode]
	if !ok {
		return fmt.Errorf("current_mode %q is not defined under modes", s.CurrentMode)
	}
	overlay := modeOverlay{App: s.App, Phrases: s.Phrases, Scripts: s.Scripts}
	if err := node.Decode(&overlay); err != nil {
		return fmt.Errorf("modes.%s: %w", s.CurrentMode, err)
	}
	s.App, s.Phrases, s.Scripts = overlay.App, overlay.Phrases, overlay.Scripts
	return nil
}

// NewSettings creates settings with default values.
func NewSettings() *Settings {
	return &Settings{
		Version: 1,
		App: AppConfig{
			Name:          "UCL MotionInput",
			Executable:    defaultExecutable(),
			LaunchDir:     "",
			LaunchCommand: defaultLaunchCommand(),
			Match:         MatchExact,
		},
		Phrases: PhrasesConfig{
			Subjects: []string{"motion"},
		},
		Scripts: ScriptsConfig{
			Timeout: 10 * time.Second,
		},
		Timing: TimingConfig{
			StartSettle:  3 * time.Second,
			StartRetry:   5 * time.Second,
			StopGrace:    2 * time.Second,
			KillSettle:   2 * time.Second,
			ScriptSettle: 2 * time.Second,
			PollInterval: 1500 * time.Millisecond,
		},
		Audio: AudioConfig{
			SampleRate:      0,
			FramesPerBuffer: 8000,
			QueueSize:       64,
		},
		Recognizer: RecognizerConfig{
			URL:      "ws://localhost:2700",
			Partials: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

func defaultExecutable() string {
	if runtime.GOOS == "windows" {
		return "MI_app.exe"
	}
	return "MI_app"
}

func defaultLaunchCommand() []string {
	if runtime.GOOS == "windows" {
		return []string{"cmd", "/C", "start", "", "{{.Executable}}"}
	}
	return []string{"./{{.Executable}}"}
}

// Validate reports the first configuration problem found.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.App.Executable) == "" {
		return fmt.Errorf("app.executable must be set")
	}
	if len(s.App.LaunchCommand) == 0 {
		return fmt.Errorf("app.launch_command must not be empty")
	}
	switch s.App.Match {
	case "", MatchExact:
	case MatchPrefix:
		if len(s.App.Prefixes) == 0 {
			return fmt.Errorf("app.prefixes must be set when app.match is %q", MatchPrefix)
		}
	default:
		return fmt.Errorf("app.match must be %q or %q, got %q", MatchExact, MatchPrefix, s.App.Match)
	}
	if len(s.Phrases.Subjects) == 0 && len(s.Phrases.Start) == 0 && len(s.Phrases.Stop) == 0 {
		return fmt.Errorf("phrases: no trigger phrases configured")
	}
	if s.Timing.PollInterval <= 0 {
		return fmt.Errorf("timing.poll_interval must be positive")
	}
	for name, d := range map[string]time.Duration{
		"start_settle":  s.Timing.StartSettle,
		"start_retry":   s.Timing.StartRetry,
		"stop_grace":    s.Timing.StopGrace,
		"kill_settle":   s.Timing.KillSettle,
		"script_settle": s.Timing.ScriptSettle,
	} {
		if d < 0 {
			return fmt.Errorf("timing.%s must not be negative", name)
		}
	}
	if s.Audio.FramesPerBuffer <= 0 {
		return fmt.Errorf("audio.frames_per_buffer must be positive")
	}
	if s.Audio.QueueSize <= 0 {
		return fmt.Errorf("audio.queue_size must be positive")
	}
	return nil
}
