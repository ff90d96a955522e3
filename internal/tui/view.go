package tui

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/charliek/herolog/internal/domain"
	"github.com/charliek/herolog/internal/logs"
)

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.mode == ModeHelp {
		return m.helpView()
	}

	var sb strings.Builder
	sb.WriteString(m.headerView())
	sb.WriteString("\n")
	sb.WriteString(m.filterView())
	sb.WriteString("\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	sb.WriteString(m.statusBar())
	return sb.String()
}

// updateViewport updates the viewport content
func (m *Model) updateViewport() {
	if !m.ready {
		return
	}
	records := logs.LastN(m.records, maxRenderedRecords)
	lines := make([]string, len(records))
	for i, record := range records {
		lines[i] = formatRecord(record)
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
}

// headerView renders the app, connection state and counts
func (m Model) headerView() string {
	app := m.target
	if app == "" {
		app = "(no app)"
	}

	items := []string{
		"herolog",
		app,
		stateStyle(m.state).Render(m.state.String()),
		fmt.Sprintf("%d/%d lines", m.stats.Visible, m.stats.Total),
		m.stats.Mode.Label(),
	}
	return headerStyle.Width(m.width).Render(strings.Join(items, " │ "))
}

// filterView lists the active predicates with the keys that remove them
func (m Model) filterView() string {
	predicates := m.engine.Predicates()
	if len(predicates) == 0 {
		return filterBarStyle.Render(dimStyle.Render("No filters (/ to add)"))
	}

	items := make([]string, len(predicates))
	for i, p := range predicates {
		if i < 9 {
			items[i] = fmt.Sprintf("%d:%s", i+1, p)
		} else {
			items[i] = p.String()
		}
	}
	label := fmt.Sprintf("Filters (%s): ", m.stats.Mode.Label())
	return filterBarStyle.Render(label + strings.Join(items, "  "))
}

// statusBar renders the bottom status bar
func (m Model) statusBar() string {
	var left string
	switch {
	case m.mode == ModeFilterInput:
		left = "Filter: " + m.textInput.View()
	case m.notice != "" && m.noticeIsErr:
		left = noticeErrStyle.Render(m.notice)
	case m.notice != "":
		left = m.notice
	default:
		left = "/ filter | m mode | p pause | ? help"
	}

	indicator := "[FOLLOW]"
	switch {
	case m.paused:
		indicator = "[PAUSED]"
	case !m.followMode:
		indicator = "[SCROLL]"
	}
	right := fmt.Sprintf("%s %d lines", indicator, len(m.records))

	leftWidth := max(m.width-lipgloss.Width(right)-4, 0)
	leftPart := statusStyle.Width(leftWidth).Render(left)
	rightPart := statusStyle.Render(right)

	return lipgloss.JoinHorizontal(lipgloss.Top, leftPart, "  ", rightPart)
}

// helpView renders the help overlay
func (m Model) helpView() string {
	help := `
herolog - Heroku log viewer

Filtering:
  /          Add filter (text, /regex/, dyno:x, source:x, level:x)
  1-9        Remove filter
  c          Clear filters
  m          Toggle AND/OR

Navigation:
  j/↓        Scroll down
  k/↑        Scroll up (pauses auto-follow)
  g/Home     Go to top (pauses auto-follow)
  G/End      Go to bottom (resumes auto-follow)
  PgUp/PgDn  Page up/down
  F          Toggle auto-follow mode
  p/Space    Pause view (logs keep arriving)

Other:
  Ctrl+S     Export visible lines to file
  y          Copy visible lines to clipboard
  d          Disconnect
  r          Reconnect
  ?          Toggle help
  q/Ctrl+C   Quit

Press any key to close help...
`
	return helpStyle.Render(help)
}

// formatRecord formats a single record for display
func formatRecord(record domain.LogRecord) string {
	ts := dimStyle.Render(record.Timestamp.Format("15:04:05"))
	origin := dynoStyle(record.Dyno).Render(fmt.Sprintf("%-14s", record.Source+"["+record.Dyno+"]"))

	level := ""
	switch record.Level {
	case domain.LevelError:
		level = errorStyle.Render(" ERR ") + " "
	case domain.LevelWarn:
		level = warnStyle.Render("WARN") + " "
	}

	return fmt.Sprintf("%s %s %s%s", ts, origin, level, record.Message)
}

// dynoStyle picks a stable color for a dyno name
func dynoStyle(dyno string) lipgloss.Style {
	h := fnv.New32a()
	_, _ = h.Write([]byte(dyno))
	return dynoColors[h.Sum32()%uint32(len(dynoColors))]
}

// stateStyle returns style based on connection state
func stateStyle(state domain.ConnectionState) lipgloss.Style {
	switch state.Status {
	case domain.StatusStreaming:
		return streamingStyle
	case domain.StatusConnecting, domain.StatusReconnecting:
		return pendingStyle
	case domain.StatusError:
		return failedStyle
	default:
		return disconnectedStyle
	}
}

// truncate shortens s to maxLen characters
func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen-3] + "..."
	}
	return s
}
