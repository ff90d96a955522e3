package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charliek/herolog/internal/domain"
	"github.com/charliek/herolog/internal/logs"
)

var baseTime = time.Date(2024, 2, 17, 10, 30, 0, 0, time.UTC)

// fakeStream records calls and reports a scripted state
type fakeStream struct {
	mu         sync.Mutex
	state      domain.ConnectionState
	target     string
	connectErr error
	connects   []string
	disconnect int
	subs       []chan domain.ConnectionState
}

func newFakeStream() *fakeStream {
	return &fakeStream{state: domain.Disconnected()}
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
	f.disconnect++
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

func (f *fakeStream) SubscribeStates() <-chan domain.ConnectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan domain.ConnectionState, 8)
	f.subs = append(f.subs, ch)
	return ch
}

func (f *fakeStream) UnsubscribeStates(ch <-chan domain.ConnectionState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, sub := range f.subs {
		if sub == ch {
			f.subs = append(f.subs[:i], f.subs[i+1:]...)
			return
		}
	}
}

func (f *fakeStream) emit(state domain.ConnectionState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = state
	for _, sub := range f.subs {
		sub <- state
	}
}

func (f *fakeStream) subscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

type fakeTargets struct {
	targets []domain.Target
	err     error
}

func (f fakeTargets) ListTargets(context.Context) ([]domain.Target, error) {
	return f.targets, f.err
}

type testEnv struct {
	server  *Server
	stream  *fakeStream
	logs    *logs.Manager
	engine  *logs.Engine
	targets *fakeTargets
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestServer(t *testing.T, token string) *testEnv {
	t.Helper()

	logMgr := logs.NewManager(logs.ManagerConfig{BufferSize: 100, SubscriptionBuffer: 10, Logger: discardLogger()})
	t.Cleanup(logMgr.Close)

	env := &testEnv{
		stream:  newFakeStream(),
		logs:    logMgr,
		engine:  logs.NewEngine(logMgr),
		targets: &fakeTargets{},
	}
	handlers := NewHandlers(HandlersConfig{
		Stream:  env.stream,
		Logs:    logMgr,
		Engine:  env.engine,
		Targets: env.targets,
		Logger:  discardLogger(),
	})
	env.server = NewServer(ServerConfig{Host: "127.0.0.1", Port: 0, Token: token, Logger: discardLogger()}, handlers)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	e.server.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) push(source, dyno, message string, level domain.Level) {
	e.logs.Push(domain.LogRecord{
		Timestamp: baseTime.Add(time.Duration(e.logs.Len()) * time.Second),
		Source:    source,
		Dyno:      dyno,
		Level:     level,
		Message:   message,
	})
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func requireStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
}

func mustField(t *testing.T, body []byte, field string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &m))
	v, ok := m[field]
	require.True(t, ok, "missing field %q in %s", field, body)
	return v
}

func assertClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}
