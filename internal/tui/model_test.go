package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charliek/herolog/internal/domain"
	"github.com/charliek/herolog/internal/logs"
)

var baseTime = time.Date(2024, 2, 17, 10, 30, 0, 0, time.UTC)

type fakeStream struct {
	mu         sync.Mutex
	state      domain.ConnectionState
	target     string
	connects   []string
	connectErr error
}

func (f *fakeStream) Connect(_ context.Context, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects = append(f.connects, target)
	if f.connectErr != nil {
		return f.connectErr
	}
	f.target = target
	f.state = domain.Streaming()
	return nil
}

func (f *fakeStream) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.target = ""
	f.state = domain.Disconnected()
}

func (f *fakeStream) State() domain.ConnectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeStream) Target() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.target
}

type testEnv struct {
	stream *fakeStream
	logs   *logs.Manager
	engine *logs.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logMgr := logs.NewManager(logs.ManagerConfig{BufferSize: 100})
	t.Cleanup(logMgr.Close)
	return &testEnv{
		stream: &fakeStream{state: domain.Streaming(), target: "my-app"},
		logs:   logMgr,
		engine: logs.NewEngine(logMgr),
	}
}

func (e *testEnv) push(dyno string, level domain.Level, message string) {
	e.logs.Push(domain.LogRecord{
		Timestamp: baseTime.Add(time.Duration(e.logs.Len()) * time.Second),
		Source:    "app",
		Dyno:      dyno,
		Level:     level,
		Message:   message,
		Raw:       fmt.Sprintf("2024-02-17T10:30:00.000000+00:00 app[%s]: %s", dyno, message),
	})
}

// newTestModel returns a sized model so the viewport is ready
func (e *testEnv) newTestModel(t *testing.T) Model {
	t.Helper()
	model := NewModel(Config{Stream: e.stream, Engine: e.engine, ExportDir: t.TempDir()})
	model.now = func() time.Time { return baseTime }
	updated, _ := model.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return updated.(Model)
}

func press(t *testing.T, m Model, keys ...string) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEscape}
		case "ctrl+s":
			msg = tea.KeyMsg{Type: tea.KeyCtrlS}
		case "ctrl+c":
			msg = tea.KeyMsg{Type: tea.KeyCtrlC}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		updated, c := m.Update(msg)
		m, cmd = updated.(Model), c
	}
	return m, cmd
}

func typeFilter(t *testing.T, m Model, spec string) (Model, tea.Cmd) {
	t.Helper()
	m, _ = press(t, m, "/")
	require.Equal(t, ModeFilterInput, m.mode)
	m.textInput.SetValue(spec)
	return press(t, m, "enter")
}

func tick(m Model) Model {
	updated, _ := m.Update(TickMsg(time.Now()))
	return updated.(Model)
}

// run executes cmd and feeds its message back into the model
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	updated, _ := m.Update(cmd())
	return updated.(Model)
}

func messages(records []domain.LogRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Message
	}
	return out
}

func TestNewModel(t *testing.T) {
	env := newTestEnv(t)
	env.push("web.1", domain.LevelInfo, "hello")

	model := NewModel(Config{Stream: env.stream, Engine: env.engine})

	assert.Equal(t, ModeNormal, model.mode)
	assert.False(t, model.ready)
	assert.True(t, model.followMode)
	assert.Equal(t, "my-app", model.target)
	assert.Equal(t, domain.StatusStreaming, model.state.Status)
	assert.Equal(t, []string{"hello"}, messages(model.records))
	assert.Equal(t, "Initializing...", model.View())
}

func TestModel_Quit(t *testing.T) {
	env := newTestEnv(t)
	for _, key := range []string{"q", "ctrl+c"} {
		_, cmd := press(t, env.newTestModel(t), key)
		require.NotNil(t, cmd)
		assert.Equal(t, tea.QuitMsg{}, cmd())
	}
}

func TestModel_TickPollsState(t *testing.T) {
	env := newTestEnv(t)
	model := env.newTestModel(t)

	env.push("web.1", domain.LevelInfo, "first")
	env.stream.state = domain.Reconnecting(2)
	model = tick(model)

	assert.Equal(t, []string{"first"}, messages(model.records))
	assert.Equal(t, domain.Reconnecting(2), model.state)
	assert.Equal(t, 1, model.stats.Total)
	assert.Contains(t, model.View(), "reconnecting (attempt 2)")
}

func TestModel_AddFilter(t *testing.T) {
	env := newTestEnv(t)
	env.push("web.1", domain.LevelInfo, "GET /users")
	env.push("worker.1", domain.LevelError, "job failed")
	model := env.newTestModel(t)

	model, _ = typeFilter(t, model, "level:error")

	assert.Equal(t, ModeNormal, model.mode)
	assert.Equal(t, []string{"job failed"}, messages(model.records))
	assert.Contains(t, model.View(), "1:Level: Error")
	assert.Contains(t, model.View(), "1/2 lines")
}

func TestModel_AddFilter_Invalid(t *testing.T) {
	env := newTestEnv(t)
	model := env.newTestModel(t)

	model, cmd := typeFilter(t, model, "/[bad/")

	assert.NotNil(t, cmd)
	assert.True(t, model.noticeIsErr)
	assert.NotEmpty(t, model.notice)
	assert.Empty(t, env.engine.Predicates())
}

func TestModel_FilterInput_EscCancels(t *testing.T) {
	env := newTestEnv(t)
	model := env.newTestModel(t)

	model, _ = press(t, model, "/", "x", "esc")

	assert.Equal(t, ModeNormal, model.mode)
	assert.Empty(t, env.engine.Predicates())
}

func TestModel_FilterInput_TypingDoesNotTriggerCommands(t *testing.T) {
	env := newTestEnv(t)
	model := env.newTestModel(t)

	model, _ = press(t, model, "/", "q", "m", "c")
	assert.Equal(t, ModeFilterInput, model.mode)
	assert.Equal(t, "qmc", model.textInput.Value())
	assert.Equal(t, logs.ModeAll, env.engine.Mode())
}

func TestModel_ToggleModeAndClear(t *testing.T) {
	env := newTestEnv(t)
	env.push("web.1", domain.LevelInfo, "GET /a")
	env.push("web.2", domain.LevelError, "POST /b")
	model := env.newTestModel(t)

	model, _ = typeFilter(t, model, "dyno:web.1")
	model, _ = typeFilter(t, model, "level:error")
	assert.Empty(t, model.records)

	model, _ = press(t, model, "m")
	assert.Equal(t, logs.ModeAny, env.engine.Mode())
	assert.Equal(t, []string{"GET /a", "POST /b"}, messages(model.records))
	assert.Contains(t, model.View(), "Filters (OR)")

	model, _ = press(t, model, "c")
	assert.Empty(t, env.engine.Predicates())
	assert.Len(t, model.records, 2)
	assert.Contains(t, model.View(), "No filters")
}

func TestModel_RemoveFilterByNumber(t *testing.T) {
	env := newTestEnv(t)
	model := env.newTestModel(t)

	model, _ = typeFilter(t, model, "first")
	model, _ = typeFilter(t, model, "second")
	model, _ = press(t, model, "1")

	preds := env.engine.Predicates()
	require.Len(t, preds, 1)
	assert.Equal(t, "second", preds[0].Value())

	// out of range is ignored
	_, _ = press(t, model, "5")
	assert.Len(t, env.engine.Predicates(), 1)
}

func TestModel_PauseFreezesView(t *testing.T) {
	env := newTestEnv(t)
	env.push("web.1", domain.LevelInfo, "before")
	model := env.newTestModel(t)

	model, _ = press(t, model, "p")
	assert.True(t, model.paused)

	env.push("web.1", domain.LevelInfo, "during")
	model = tick(model)
	assert.Equal(t, []string{"before"}, messages(model.records))
	assert.Equal(t, 2, model.stats.Total)
	assert.Contains(t, model.View(), "[PAUSED]")

	model, _ = press(t, model, "p")
	assert.False(t, model.paused)
	assert.Equal(t, []string{"before", "during"}, messages(model.records))
}

func TestModel_Export(t *testing.T) {
	env := newTestEnv(t)
	env.push("web.1", domain.LevelInfo, "one")
	env.push("web.2", domain.LevelInfo, "two")
	model := env.newTestModel(t)
	model, _ = typeFilter(t, model, "dyno:web.2")

	model, cmd := press(t, model, "ctrl+s")
	model = run(t, model, cmd)

	assert.False(t, model.noticeIsErr, model.notice)
	assert.Contains(t, model.notice, "Exported 1 lines")

	data, err := os.ReadFile(filepath.Join(model.exportDir, logs.ExportFileName(baseTime)))
	require.NoError(t, err)
	assert.Equal(t, "2024-02-17T10:30:00.000000+00:00 app[web.2]: two\n", string(data))
}

func TestModel_ExportEmpty(t *testing.T) {
	env := newTestEnv(t)
	model := env.newTestModel(t)

	model, cmd := press(t, model, "ctrl+s")
	model = run(t, model, cmd)

	assert.True(t, model.noticeIsErr)
	assert.Equal(t, logs.ErrNothingToExport.Error(), model.notice)
}

func TestModel_Copy(t *testing.T) {
	env := newTestEnv(t)
	env.push("web.1", domain.LevelInfo, "one")
	model := env.newTestModel(t)

	var copied []domain.LogRecord
	model.copyFn = func(records []domain.LogRecord) error {
		copied = records
		return nil
	}

	model, cmd := press(t, model, "y")
	model = run(t, model, cmd)
	assert.Equal(t, []string{"one"}, messages(copied))
	assert.Equal(t, "Copied 1 lines", model.notice)

	model.copyFn = func([]domain.LogRecord) error { return errors.New("no clipboard") }
	model, cmd = press(t, model, "y")
	model = run(t, model, cmd)
	assert.True(t, model.noticeIsErr)
	assert.Equal(t, "no clipboard", model.notice)
}

func TestModel_DisconnectAndReconnect(t *testing.T) {
	env := newTestEnv(t)
	model := env.newTestModel(t)

	model, cmd := press(t, model, "d")
	model = run(t, model, cmd)
	assert.Equal(t, domain.StatusDisconnected, model.state.Status)
	assert.Equal(t, "my-app", model.target)

	model, cmd = press(t, model, "r")
	model = run(t, model, cmd)
	assert.Equal(t, []string{"my-app"}, env.stream.connects)
	assert.Equal(t, domain.StatusStreaming, model.state.Status)
	assert.Equal(t, "Connecting to my-app", model.notice)
}

func TestModel_ReconnectErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
		want   string
	}{
		{"no target", "", nil, domain.ErrNotConnected.Error()},
		{"not logged in", "my-app", fmt.Errorf("whoami: %w", domain.ErrNotAuthenticated), "herolog login"},
		{"cli missing", "my-app", domain.ErrToolUnavailable, domain.ErrToolUnavailable.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.stream.target = ""
			env.stream.state = domain.Disconnected()
			env.stream.connectErr = tt.err
			model := NewModel(Config{Stream: env.stream, Engine: env.engine, Target: tt.target})

			model, cmd := press(t, model, "r")
			model = run(t, model, cmd)
			assert.True(t, model.noticeIsErr)
			assert.Contains(t, model.notice, tt.want)
		})
	}
}

func TestModel_NoticeClears(t *testing.T) {
	env := newTestEnv(t)
	model := env.newTestModel(t)
	model.notice = "hello"

	updated, _ := model.Update(NoticeClearMsg{})
	assert.Empty(t, updated.(Model).notice)
}

func TestModel_HelpMode(t *testing.T) {
	env := newTestEnv(t)
	model := env.newTestModel(t)

	model, _ = press(t, model, "?")
	assert.Equal(t, ModeHelp, model.mode)
	assert.Contains(t, model.View(), "Toggle AND/OR")

	model, _ = press(t, model, "x")
	assert.Equal(t, ModeNormal, model.mode)
}

func TestFollowModeDisabledOnScrollUp(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"up arrow", "k"},
		{"home", "g"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			model := env.newTestModel(t)

			model, _ = press(t, model, tt.key)
			assert.False(t, model.followMode)
			assert.Contains(t, model.View(), "[SCROLL]")

			model, _ = press(t, model, "G")
			assert.True(t, model.followMode)
		})
	}
}

func TestFormatRecord(t *testing.T) {
	line := formatRecord(domain.LogRecord{
		Timestamp: baseTime,
		Source:    "heroku",
		Dyno:      "router",
		Level:     domain.LevelError,
		Message:   "at=error code=H12",
	})

	assert.Contains(t, line, "10:30:00")
	assert.Contains(t, line, "heroku[router]")
	assert.Contains(t, line, "ERR")
	assert.True(t, strings.HasSuffix(line, "at=error code=H12"))
}

func TestDynoStyle_Stable(t *testing.T) {
	assert.Equal(t, dynoStyle("web.1").Render("x"), dynoStyle("web.1").Render("x"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
