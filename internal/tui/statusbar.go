package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

func renderStatusBar(m *Model, width int) string {
	if m.err != nil {
		return renderErrorBar(m.err.Error(), width)
	}

	left := " " + getKeyHints(m)
	if m.notice != "" {
		left = " " + lipgloss.NewStyle().Foreground(colorGreen).Render(m.notice)
	}

	right := ""
	if m.daemon != nil {
		right = lipgloss.NewStyle().Foreground(colorGreen).Render(fmt.Sprintf("Daemon PID %d", m.daemon.PID)) + " "
	} else {
		right = lipgloss.NewStyle().Foreground(colorYellow).Bold(true).Render("⚠ Daemon not running") + " "
	}

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}

	return statusBarStyle.Width(width).Render(left + strings.Repeat(" ", gap) + right)
}

func getKeyHints(m *Model) string {
	hints := []string{
		bindingHint(keys.Quit),
		bindingHint(keys.Up),
		bindingHint(keys.Follow),
	}
	if m.daemon != nil {
		hints = append(hints, bindingHint(keys.Start), bindingHint(keys.Stop))
	}
	return strings.Join(hints, "  ")
}

func bindingHint(b key.Binding) string {
	h := b.Help()
	return keyStyle.Render(h.Key) + " " + hintStyle.Render(h.Desc)
}

func renderErrorBar(msg string, width int) string {
	return statusBarStyle.
		Background(colorRed).
		Width(width).
		Render(" " + msg)
}
