// Package tui implements the live mimonitor dashboard.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the dashboard until the user quits. logPath is the daemon log
// to tail.
func Run(logPath string) error {
	p := tea.NewProgram(
		NewModel(logPath),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
