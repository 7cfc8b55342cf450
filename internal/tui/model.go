package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/motioninput/mimonitor/internal/config"
	"github.com/motioninput/mimonitor/internal/daemon/server"
	"github.com/motioninput/mimonitor/internal/models"
)

const (
	pollInterval = 500 * time.Millisecond
	noticeTTL    = 2 * time.Second
	callTimeout  = 30 * time.Second
	logLines     = 500
	infoHeight   = 6 // rows of the status panel, borders included
)

// Model is the dashboard state.
type Model struct {
	logPath string
	width   int
	height  int

	daemon *models.DaemonInfo
	status *models.StatusFile
	loaded bool

	logs   *LogViewer
	err    error
	notice string
}

// NewModel creates the dashboard model reading the log at logPath.
func NewModel(logPath string) Model {
	return Model{
		logPath: logPath,
		logs:    NewLogViewer(),
	}
}

// Init returns the initial commands.
func (m Model) Init() tea.Cmd {
	return loadCmd(m.logPath)
}

// Update processes messages and returns an updated model and commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateDimensions()
		return m, nil

	case tea.KeyMsg:
		cmd := m.handleKey(msg)
		return m, cmd

	case SnapshotMsg:
		m.loaded = true
		m.daemon = msg.Daemon
		m.status = msg.Status
		m.logs.SetLines(msg.LogLines)
		if msg.Err != nil {
			m.err = msg.Err
			return m, tea.Batch(tickCmd(), clearNoticeCmd())
		}
		return m, tickCmd()

	case TickMsg:
		return m, loadCmd(m.logPath)

	case RequestSentMsg:
		m.err = nil
		m.notice = fmt.Sprintf("%s request sent", msg.Action)
		return m, clearNoticeCmd()

	case RequestDoneMsg:
		m.err = nil
		m.notice = fmt.Sprintf("%s: %s", msg.Action, msg.Result)
		if msg.Status != nil {
			m.status = msg.Status
		}
		return m, clearNoticeCmd()

	case ClearNoticeMsg:
		m.notice = ""
		m.err = nil
		return m, nil

	case ErrorMsg:
		m.err = msg.Err
		return m, clearNoticeCmd()
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Quit):
		return tea.Quit
	case key.Matches(msg, keys.Start):
		return m.request(models.ActionStart)
	case key.Matches(msg, keys.Stop):
		return m.request(models.ActionStop)
	case key.Matches(msg, keys.Up):
		m.logs.ScrollUp(false)
	case key.Matches(msg, keys.Down):
		m.logs.ScrollDown(false)
	case key.Matches(msg, keys.PageUp):
		m.logs.ScrollUp(true)
	case key.Matches(msg, keys.PageDown):
		m.logs.ScrollDown(true)
	case key.Matches(msg, keys.Follow):
		m.logs.Follow()
	}
	return nil
}

func (m *Model) request(action string) tea.Cmd {
	if m.daemon == nil {
		m.err = errors.New("daemon is not running, start it with `mimonitor daemon start`")
		return clearNoticeCmd()
	}
	return requestCmd(m.daemon, action)
}

func (m *Model) updateDimensions() {
	// header + status bar + info panel + log panel borders and title
	logHeight := m.height - 2 - infoHeight - 3
	if logHeight < 1 {
		logHeight = 1
	}
	m.logs.SetSize(m.width-2, logHeight)
}

// View renders the dashboard.
func (m Model) View() string {
	if m.width == 0 || !m.loaded {
		return "Loading..."
	}

	header := renderHeader(m.status, m.width)
	info := panelStyle.Width(m.width - 2).Render(m.renderInfo())
	logs := panelStyle.Width(m.width - 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, panelTitleStyle.Render("Log"), m.logs.View()),
	)
	statusBar := renderStatusBar(&m, m.width)

	return lipgloss.JoinVertical(lipgloss.Left, header, info, logs, statusBar)
}

func (m Model) renderInfo() string {
	row := func(label, value string) string {
		return labelStyle.Render(fmt.Sprintf("%-10s", label)) + " " + value
	}

	var rows []string
	if m.daemon == nil {
		rows = append(rows, row("Daemon", errorStyle.Render("not running")))
	} else {
		uptime := time.Since(m.daemon.StartedAt).Truncate(time.Second)
		rows = append(rows, row("Daemon", valueStyle.Render(fmt.Sprintf("PID %d, up %s", m.daemon.PID, uptime))))
	}

	if m.status == nil {
		rows = append(rows, row("Status", hintStyle.Render("no report yet")))
		return strings.Join(rows, "\n")
	}

	rows = append(rows,
		row("Instances", valueStyle.Render(instancesText(m.status.Instances))),
		row("Updated", valueStyle.Render(m.status.UpdatedAt.Local().Format("15:04:05"))),
	)
	if m.status.LastError != "" {
		rows = append(rows, row("Error", errorStyle.Render(m.status.LastError)))
	}
	return strings.Join(rows, "\n")
}

func instancesText(n int) string {
	switch n {
	case -1:
		return "unknown (last observation failed)"
	case 1:
		return "1"
	default:
		return fmt.Sprintf("%d", n)
	}
}

func loadCmd(logPath string) tea.Cmd {
	return func() tea.Msg {
		var msg SnapshotMsg

		running, info, err := config.IsDaemonRunning()
		if err != nil {
			msg.Err = err
		} else if running {
			msg.Daemon = info
		}

		st, err := config.LoadStatus()
		if err != nil && msg.Err == nil {
			msg.Err = err
		}
		msg.Status = st

		lines, err := readLogTail(logPath, logLines)
		if err != nil && msg.Err == nil {
			msg.Err = err
		}
		msg.LogLines = lines
		return msg
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg { return TickMsg{} })
}

func clearNoticeCmd() tea.Cmd {
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg { return ClearNoticeMsg{} })
}

// requestCmd runs action through the daemon's control service, or drops it in
// the request mailbox when the daemon has none.
func requestCmd(daemon *models.DaemonInfo, action string) tea.Cmd {
	return func() tea.Msg {
		if daemon != nil && daemon.Port != 0 {
			msg, err := callControl(daemon, action)
			if status.Code(err) != codes.Unavailable {
				if err != nil {
					return ErrorMsg{Err: err}
				}
				return msg
			}
		}
		if _, err := config.SubmitRequest(models.NewControlRequest(action)); err != nil {
			return ErrorMsg{Err: err}
		}
		return RequestSentMsg{Action: action}
	}
}

func callControl(daemon *models.DaemonInfo, action string) (tea.Msg, error) {
	conn, err := server.Dial(daemon.Host, daemon.Port)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	client := server.NewControlClient(conn)
	var reply *server.ControlReply
	if action == models.ActionStop {
		reply, err = client.Stop(ctx)
	} else {
		reply, err = client.Start(ctx)
	}
	if err != nil {
		return nil, err
	}
	if reply.Error != "" {
		return ErrorMsg{Err: fmt.Errorf("%s failed: %s", action, reply.Error)}, nil
	}
	return RequestDoneMsg{Action: action, Result: reply.Result, Status: reply.Status}, nil
}
