package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/charliek/herolog/internal/constants"
	"github.com/charliek/herolog/internal/domain"
	"github.com/charliek/herolog/internal/logs"
)

// nearBottomThreshold is the scroll percentage (0.0-1.0) at which we consider
// the viewport to be "near" the bottom for auto-follow purposes.
const nearBottomThreshold = 0.98

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.handleWindowSize(msg)
		m.updateViewport()

	case TickMsg:
		wasNearBottom := m.isNearBottom()
		m.refresh()
		m.updateViewport()
		if wasNearBottom || m.followMode {
			m.followMode = true
			m.viewport.GotoBottom()
		}
		cmds = append(cmds, tickCmd())

	case NoticeMsg:
		m.setNotice(msg)
		m.refresh()
		m.updateViewport()
		cmds = append(cmds, noticeClearCmd())

	case NoticeClearMsg:
		m.notice = ""
		m.noticeIsErr = false
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) setNotice(msg NoticeMsg) {
	if msg.Err != nil {
		m.notice = truncate(msg.Err.Error(), maxNoticeLen)
		m.noticeIsErr = true
		return
	}
	m.notice = truncate(msg.Text, maxNoticeLen)
	m.noticeIsErr = false
}

// handleWindowSize handles window resize messages
func (m *Model) handleWindowSize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height

	headerHeight := 3 // status line, filter line, margin
	footerHeight := 2 // status bar
	viewportHeight := max(msg.Height-headerHeight-footerHeight, 1)

	if !m.ready {
		m.viewport = viewport.New(msg.Width, viewportHeight)
		m.viewport.YPosition = headerHeight
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
	}
}

// handleKey processes keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case ModeFilterInput:
		return m.handleFilterInputKey(msg)
	case ModeHelp:
		// any key closes help
		m.mode = ModeNormal
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "?":
		m.mode = ModeHelp
		return m, nil

	case "/":
		m.mode = ModeFilterInput
		m.textInput.SetValue("")
		cmd := m.textInput.Focus()
		return m, cmd

	case "c":
		m.engine.ClearPredicates()
		m.refresh()
		m.updateViewport()
		return m, nil

	case "m":
		m.engine.ToggleMode()
		m.refresh()
		m.updateViewport()
		return m, nil

	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		idx, _ := strconv.Atoi(msg.String())
		if m.engine.Remove(idx - 1) {
			m.refresh()
			m.updateViewport()
		}
		return m, nil

	case "p", " ":
		m.paused = !m.paused
		m.refresh()
		m.updateViewport()
		return m, nil

	case "ctrl+s":
		return m, m.exportCmd()

	case "y":
		return m, m.copyCmd()

	case "d":
		return m, m.disconnectCmd()

	case "r":
		return m, m.reconnectCmd()
	}

	m.handleNavigationKey(msg)
	return m, nil
}

// handleFilterInputKey handles keys while typing a filter
func (m Model) handleFilterInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = ModeNormal
		m.textInput.Blur()
		return m, nil

	case "enter":
		m.mode = ModeNormal
		m.textInput.Blur()
		spec := m.textInput.Value()
		if spec == "" {
			return m, nil
		}
		if err := m.engine.AddPredicate(spec); err != nil {
			m.setNotice(NoticeMsg{Err: err})
			return m, noticeClearCmd()
		}
		m.refresh()
		m.updateViewport()
		return m, nil
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

// handleNavigationKey handles scrolling keys
func (m *Model) handleNavigationKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "up", "k":
		m.viewport.LineUp(1)
		m.followMode = false
	case "down", "j":
		m.viewport.LineDown(1)
	case "pgup":
		m.viewport.HalfViewUp()
		m.followMode = false
	case "pgdown":
		m.viewport.HalfViewDown()
	case "home", "g":
		m.viewport.GotoTop()
		m.followMode = false
	case "end", "G":
		m.viewport.GotoBottom()
		m.followMode = true
	case "F":
		m.followMode = !m.followMode
		if m.followMode {
			m.viewport.GotoBottom()
		}
	default:
		return false
	}
	return true
}

// isNearBottom checks if the viewport is at or near the bottom
func (m *Model) isNearBottom() bool {
	if !m.ready || m.viewport.AtBottom() {
		return true
	}
	return m.viewport.ScrollPercent() >= nearBottomThreshold
}

// exportCmd writes the visible records to a timestamped file
func (m Model) exportCmd() tea.Cmd {
	records := m.records
	dir, now := m.exportDir, m.now()
	return func() tea.Msg {
		path, err := logs.ExportToFile(dir, records, now)
		if err != nil {
			return NoticeMsg{Err: err}
		}
		return NoticeMsg{Text: fmt.Sprintf("Exported %d lines to %s", len(records), path)}
	}
}

// copyCmd copies the visible records to the clipboard
func (m Model) copyCmd() tea.Cmd {
	records := m.records
	copyFn := m.copyFn
	return func() tea.Msg {
		if err := copyFn(records); err != nil {
			return NoticeMsg{Err: err}
		}
		return NoticeMsg{Text: fmt.Sprintf("Copied %d lines", len(records))}
	}
}

func (m Model) disconnectCmd() tea.Cmd {
	stream := m.stream
	return func() tea.Msg {
		stream.Disconnect()
		return NoticeMsg{Text: "Disconnected"}
	}
}

// reconnectCmd starts a fresh session against the last known app
func (m Model) reconnectCmd() tea.Cmd {
	stream, target := m.stream, m.target
	return func() tea.Msg {
		if target == "" {
			return NoticeMsg{Err: fmt.Errorf("reconnect: %w", domain.ErrNotConnected)}
		}
		ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultCommandTimeout)
		defer cancel()
		if err := stream.Connect(ctx, target); err != nil {
			if errors.Is(err, domain.ErrNotAuthenticated) {
				return NoticeMsg{Err: fmt.Errorf("%w (run: herolog login)", domain.ErrNotAuthenticated)}
			}
			return NoticeMsg{Err: err}
		}
		return NoticeMsg{Text: "Connecting to " + target}
	}
}
