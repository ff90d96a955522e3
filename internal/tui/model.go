package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/charliek/herolog/internal/constants"
	"github.com/charliek/herolog/internal/domain"
	"github.com/charliek/herolog/internal/logs"
)

// maxRenderedRecords caps how many visible records are drawn in the viewport
const maxRenderedRecords = 1000

// maxNoticeLen is the maximum length of a notice in the status bar
const maxNoticeLen = 60

// noticeClearDelay is how long a notice stays in the status bar
const noticeClearDelay = 3 * time.Second

// Mode represents the current TUI mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeFilterInput
	ModeHelp
)

// Stream is the part of the stream manager the TUI drives
type Stream interface {
	Connect(ctx context.Context, target string) error
	Disconnect()
	State() domain.ConnectionState
	Target() string
}

// Config wires the TUI to the stream and filter engine
type Config struct {
	Stream    Stream
	Engine    *logs.Engine
	Target    string // app to reconnect to when the stream has none
	ExportDir string
}

// Model is the bubbletea model for the TUI
type Model struct {
	// Dependencies
	stream    Stream
	engine    *logs.Engine
	target    string
	exportDir string
	copyFn    func([]domain.LogRecord) error
	now       func() time.Time

	// Polled state
	state   domain.ConnectionState
	records []domain.LogRecord
	stats   logs.FilterStats

	// UI components
	viewport  viewport.Model
	textInput textinput.Model

	mode       Mode
	paused     bool // view frozen while ingestion continues
	followMode bool // auto-scroll to bottom on new records

	notice      string
	noticeIsErr bool

	// Dimensions
	width  int
	height int
	ready  bool
}

// NewModel creates a new TUI model
func NewModel(cfg Config) Model {
	ti := textinput.New()
	ti.Placeholder = "text, /regex/, dyno:web.1, source:app, level:error"
	ti.CharLimit = logs.MaxPatternLength
	ti.Width = 50

	m := Model{
		stream:     cfg.Stream,
		engine:     cfg.Engine,
		target:     cfg.Target,
		exportDir:  cfg.ExportDir,
		copyFn:     logs.CopyToClipboard,
		now:        time.Now,
		textInput:  ti,
		mode:       ModeNormal,
		followMode: true,
	}
	if m.exportDir == "" {
		m.exportDir = "."
	}
	m.refresh()
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// TickMsg is sent periodically to poll the stream and engine
type TickMsg time.Time

// NoticeMsg reports the result of an action in the status bar
type NoticeMsg struct {
	Text string
	Err  error
}

// NoticeClearMsg clears the current notice
type NoticeClearMsg struct{}

// tickCmd returns a command that ticks at the refresh interval
func tickCmd() tea.Cmd {
	return tea.Tick(constants.TUIRefreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// noticeClearCmd returns a command that clears the notice after a delay
func noticeClearCmd() tea.Cmd {
	return tea.Tick(noticeClearDelay, func(time.Time) tea.Msg {
		return NoticeClearMsg{}
	})
}

// refresh polls the stream state and, unless paused, the visible records
func (m *Model) refresh() {
	m.state = m.stream.State()
	if t := m.stream.Target(); t != "" {
		m.target = t
	}
	m.stats = m.engine.Stats()
	if !m.paused {
		m.records = m.engine.VisibleRecords()
	}
}
