package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/charliek/herolog/internal/config"
)

const fakeHeroku = `#!/bin/sh
case "$1" in
  version)
    echo "heroku/8.11.0 linux-x64 node-v20"
    ;;
  auth:whoami)
    if [ -n "$HEROKU_API_KEY" ]; then
      echo "dev@example.com"
    else
      echo " ›   Error: not logged in" >&2
      exit 100
    fi
    ;;
  apps)
    echo '[{"name":"zeta-api","id":"2"},{"name":"alpha-web","id":"1"}]'
    ;;
  logs)
    printf '%s\n' \
      "2024-02-17T10:30:00.000000+00:00 app[web.1]: GET /users" \
      "2024-02-17T10:30:01.000000+00:00 heroku[router]: at=info method=GET path=/" \
      "2024-02-17T10:30:02.000000+00:00 app[worker.1]: job failed: error"
    if [ -n "$FAKE_STAY" ]; then
      exec sleep 30
    fi
    ;;
  login)
    read answer
    echo "Logged in as $answer"
    ;;
  *)
    exit 1
    ;;
esac
`

const (
	webLine    = "2024-02-17T10:30:00.000000+00:00 app[web.1]: GET /users"
	routerLine = "2024-02-17T10:30:01.000000+00:00 heroku[router]: at=info method=GET path=/"
	workerLine = "2024-02-17T10:30:02.000000+00:00 app[worker.1]: job failed: error"
)

func init() {
	color.NoColor = true
}

func writeFakeHeroku(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "heroku")
	require.NoError(t, os.WriteFile(path, []byte(fakeHeroku), 0o755))
	return path
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig returns a config pointing at the fake heroku binary with env set
func testConfig(t *testing.T, extra string, env map[string]string) *config.Config {
	t.Helper()

	var sb strings.Builder
	fmt.Fprintf(&sb, "heroku:\n  binary: %s\n", writeFakeHeroku(t))
	if len(env) > 0 {
		sb.WriteString("  env:\n")
		for k, v := range env {
			fmt.Fprintf(&sb, "    %s: %q\n", k, v)
		}
	}
	sb.WriteString(extra)

	cfg, err := config.Parse([]byte(sb.String()))
	require.NoError(t, err)
	return cfg
}

var loggedIn = map[string]string{"HEROKU_API_KEY": "test-key"}

func streaming() map[string]string {
	return map[string]string{"HEROKU_API_KEY": "test-key", "FAKE_STAY": "1"}
}

func newTestSession(t *testing.T, cfg *config.Config, flags filterFlags) *session {
	t.Helper()
	s, err := newSession(cfg, discardLogger(), flags)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

// syncBuffer is a bytes buffer safe for a writer and a polling reader
type syncBuffer struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}
