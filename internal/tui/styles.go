package tui

import "github.com/charmbracelet/lipgloss"

// Colors using AdaptiveColor for light/dark terminal support.
var (
	colorWhite  = lipgloss.AdaptiveColor{Light: "0", Dark: "15"}
	colorDim    = lipgloss.AdaptiveColor{Light: "242", Dark: "240"}
	colorGreen  = lipgloss.AdaptiveColor{Light: "28", Dark: "40"}
	colorRed    = lipgloss.AdaptiveColor{Light: "160", Dark: "196"}
	colorYellow = lipgloss.AdaptiveColor{Light: "136", Dark: "220"}
	colorCyan   = lipgloss.AdaptiveColor{Light: "30", Dark: "45"}
)

// Layout styles.
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorWhite).
			Background(lipgloss.AdaptiveColor{Light: "235", Dark: "236"})

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim)

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)
)

// Phase badge styles.
var (
	badgeIdleStyle       = lipgloss.NewStyle().Foreground(colorDim)
	badgeTransitionStyle = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	badgeRunningStyle    = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	trayOnStyle          = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	trayOffStyle         = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
)

// Text styles.
var (
	brandStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	labelStyle = lipgloss.NewStyle().Foreground(colorDim)
	valueStyle = lipgloss.NewStyle().Foreground(colorWhite)
	errorStyle = lipgloss.NewStyle().Foreground(colorRed)
	keyStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorWhite)
	hintStyle  = lipgloss.NewStyle().Foreground(colorDim)

	logLevelStyles = map[string]lipgloss.Style{
		"DEBUG": lipgloss.NewStyle().Foreground(colorDim),
		"INFO":  lipgloss.NewStyle().Foreground(colorCyan),
		"WARN":  lipgloss.NewStyle().Foreground(colorYellow),
		"ERROR": lipgloss.NewStyle().Foreground(colorRed).Bold(true),
	}
)
