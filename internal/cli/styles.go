package cli

import "github.com/charmbracelet/lipgloss"

// Adaptive colors for terminal output.
var (
	colorWhite  = lipgloss.AdaptiveColor{Light: "0", Dark: "15"}
	colorDim    = lipgloss.AdaptiveColor{Light: "242", Dark: "240"}
	colorGreen  = lipgloss.AdaptiveColor{Light: "28", Dark: "40"}
	colorRed    = lipgloss.AdaptiveColor{Light: "160", Dark: "196"}
	colorYellow = lipgloss.AdaptiveColor{Light: "136", Dark: "220"}
	colorCyan   = lipgloss.AdaptiveColor{Light: "30", Dark: "45"}
)

// Semantic styles for CLI output.
var (
	styleBrand   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleVersion = lipgloss.NewStyle().Foreground(colorGreen)
	styleLabel   = lipgloss.NewStyle().Foreground(colorDim)
	styleValue   = lipgloss.NewStyle().Foreground(colorWhite)
	styleSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleWarning = lipgloss.NewStyle().Bold(true).Foreground(colorYellow)
	styleError   = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	styleHint    = lipgloss.NewStyle().Foreground(colorDim)
	styleCommand = lipgloss.NewStyle().Bold(true).Foreground(colorWhite)
)

// Phase badge styles.
var (
	badgeIdle       = lipgloss.NewStyle().Foreground(colorDim)
	badgeTransition = lipgloss.NewStyle().Foreground(colorYellow)
	badgeRunning    = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
)

// phaseBadge renders a supervisor phase name.
func phaseBadge(phase string) string {
	switch phase {
	case "running":
		return badgeRunning.Render(phase)
	case "starting", "stopping":
		return badgeTransition.Render(phase)
	default:
		return badgeIdle.Render(phase)
	}
}

// indicatorBadge renders the tray state the way the tooltip does.
func indicatorBadge(on bool) string {
	if on {
		return styleSuccess.Render("ON")
	}
	return styleError.Render("OFF")
}
