package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/motioninput/mimonitor/internal/models"
)

func renderHeader(status *models.StatusFile, width int) string {
	app := "mimonitor"
	if status != nil && status.App != "" {
		app = status.App
	}

	left := fmt.Sprintf(" %s  %s", brandStyle.Render("mimonitor"), lipgloss.NewStyle().Bold(true).Render(app))
	right := renderPhaseBadge(status) + "  " + renderTrayBadge(status) + " "

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}

	return headerStyle.Width(width).Render(left + strings.Repeat(" ", gap) + right)
}

func renderPhaseBadge(status *models.StatusFile) string {
	if status == nil {
		return badgeIdleStyle.Render("○ unknown")
	}
	switch status.Phase {
	case "running":
		return badgeRunningStyle.Render("● running")
	case "starting", "stopping":
		return badgeTransitionStyle.Render("◐ " + status.Phase)
	default:
		return badgeIdleStyle.Render("○ " + status.Phase)
	}
}

func renderTrayBadge(status *models.StatusFile) string {
	if status != nil && status.Indicator {
		return trayOnStyle.Render("ON")
	}
	return trayOffStyle.Render("OFF")
}
