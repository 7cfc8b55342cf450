package tui

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/x/ansi"
	json "github.com/goccy/go-json"
)

// tailBytes bounds how much of the daemon log is read per poll.
const tailBytes = 64 * 1024

// LogViewer shows the tail of the daemon log.
type LogViewer struct {
	viewport viewport.Model
	lines    []string
	follow   bool // stick to the newest line
	width    int
	height   int
}

// NewLogViewer creates a log viewer that follows new lines.
func NewLogViewer() *LogViewer {
	return &LogViewer{
		viewport: viewport.New(80, 10),
		follow:   true,
	}
}

// SetSize updates dimensions.
func (l *LogViewer) SetSize(width, height int) {
	l.width = width
	l.height = height
	l.viewport.Width = width
	l.viewport.Height = height
	l.render()
}

// SetLines replaces the shown log records.
func (l *LogViewer) SetLines(lines []string) {
	l.lines = lines
	l.render()
}

func (l *LogViewer) render() {
	formatted := make([]string, 0, len(l.lines))
	for _, raw := range l.lines {
		line := formatLogLine(raw)
		if l.width > 0 {
			line = ansi.Truncate(line, l.width, "…")
		}
		formatted = append(formatted, line)
	}
	l.viewport.SetContent(strings.Join(formatted, "\n"))
	if l.follow {
		l.viewport.GotoBottom()
	}
}

// ScrollUp scrolls towards older lines and stops following.
func (l *LogViewer) ScrollUp(page bool) {
	if page {
		l.viewport.HalfViewUp()
	} else {
		l.viewport.LineUp(1)
	}
	l.follow = l.viewport.AtBottom()
}

// ScrollDown scrolls towards newer lines; reaching the end resumes following.
func (l *LogViewer) ScrollDown(page bool) {
	if page {
		l.viewport.HalfViewDown()
	} else {
		l.viewport.LineDown(1)
	}
	l.follow = l.viewport.AtBottom()
}

// Follow jumps to the newest line and keeps following.
func (l *LogViewer) Follow() {
	l.follow = true
	l.viewport.GotoBottom()
}

// Following reports whether the viewer sticks to new lines.
func (l *LogViewer) Following() bool {
	return l.follow
}

// View renders the viewport.
func (l *LogViewer) View() string {
	if len(l.lines) == 0 {
		return hintStyle.Render("No log output yet.")
	}
	return l.viewport.View()
}

// readLogTail returns up to max complete lines from the end of path.
// A missing file yields no lines.
func readLogTail(path string, max int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	offset := info.Size() - tailBytes
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if offset > 0 {
		// Drop the partial first line.
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			data = data[i+1:]
		}
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil, nil
	}
	if len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	return lines, nil
}

// formatLogLine renders one JSON log record as "15:04:05 LEVEL msg k=v ...".
// Lines that are not JSON are shown as they are.
func formatLogLine(raw string) string {
	var rec map[string]any
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return raw
	}

	ts := ""
	if s, ok := rec["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			ts = t.Local().Format("15:04:05")
		}
	}
	level, _ := rec["level"].(string)
	msg, _ := rec["msg"].(string)
	delete(rec, "time")
	delete(rec, "level")
	delete(rec, "msg")

	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	if ts != "" {
		b.WriteString(labelStyle.Render(ts))
		b.WriteByte(' ')
	}
	if style, ok := logLevelStyles[level]; ok {
		b.WriteString(style.Render(fmt.Sprintf("%-5s", level)))
	} else {
		b.WriteString(fmt.Sprintf("%-5s", level))
	}
	b.WriteByte(' ')
	b.WriteString(msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", labelStyle.Render(k), rec[k])
	}
	return b.String()
}
