package integration

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
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
    echo '[{"name":"my-app","id":"1"}]'
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
  *)
    exit 1
    ;;
esac
`

const workerLine = "2024-02-17T10:30:02.000000+00:00 app[worker.1]: job failed: error"

// buildBinary builds the herolog binary and returns its path
func buildBinary(t *testing.T) string {
	t.Helper()

	// Get project root (two directories up from test/integration)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	projectRoot := filepath.Join(wd, "..", "..")

	binary := filepath.Join(t.TempDir(), "herolog")

	cmd := exec.Command("go", "build", "-o", binary, "./cmd/herolog")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to build binary: %v\n%s", err, output)
	}

	return binary
}

// workspace is a temp directory holding a fake heroku CLI and a config
// pointing at it
type workspace struct {
	dir    string
	config string
}

// newWorkspace writes the fake CLI and a config with the given heroku env
// and extra top-level YAML
func newWorkspace(t *testing.T, env map[string]string, extra string) workspace {
	t.Helper()

	dir := t.TempDir()
	binary := filepath.Join(dir, "heroku")
	requireNoError(t, os.WriteFile(binary, []byte(fakeHeroku), 0o755), "failed to write fake heroku")

	var sb strings.Builder
	fmt.Fprintf(&sb, "heroku:\n  binary: %s\n", binary)
	if len(env) > 0 {
		sb.WriteString("  env:\n")
		for k, v := range env {
			fmt.Fprintf(&sb, "    %s: %q\n", k, v)
		}
	}
	sb.WriteString(extra)

	config := filepath.Join(dir, "herolog.yaml")
	requireNoError(t, os.WriteFile(config, []byte(sb.String()), 0o644), "failed to write config")

	return workspace{dir: dir, config: config}
}

func streamingEnv() map[string]string {
	return map[string]string{"HEROKU_API_KEY": "test-key", "FAKE_STAY": "1"}
}

// freePort returns a port that was free a moment ago
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	requireNoError(t, err, "failed to find a free port")
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// startHerolog starts the herolog binary with the given arguments
func startHerolog(t *testing.T, binary, dir string, args ...string) *exec.Cmd {
	t.Helper()

	cmd := exec.Command(binary, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start herolog: %v", err)
	}

	return cmd
}

// runHerolog runs the binary to completion and returns stdout and stderr
func runHerolog(t *testing.T, binary, dir string, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr strings.Builder
	cmd := exec.Command(binary, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	done := make(chan error, 1)
	requireNoError(t, cmd.Start(), "failed to start herolog")
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return stdout.String(), stderr.String(), err
	case <-time.After(20 * time.Second):
		killHerolog(cmd)
		t.Fatalf("herolog %v did not exit", args)
		return "", "", nil
	}
}

// waitForAPI waits for the API to be ready
func waitForAPI(t *testing.T, addr string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(addr + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("API did not become ready within %v", timeout)
}

// waitForRecords polls /status until the buffer holds n records
func waitForRecords(t *testing.T, addr string, n int, timeout time.Duration) StatusResponse {
	t.Helper()

	deadline := time.Now().Add(timeout)
	var last StatusResponse
	for time.Now().Before(deadline) {
		if err := getJSON(addr+"/api/v1/status", &last); err == nil && last.Buffer.Records >= n {
			return last
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("buffer did not reach %d records within %v (last: %+v)", n, timeout, last)
	return StatusResponse{}
}

func getJSON(url string, v any) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// stopHerolog sends a shutdown request via the API
func stopHerolog(addr string) error {
	req, err := http.NewRequest(http.MethodPost, addr+"/api/v1/shutdown", nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// waitForExit waits for a started process and returns its exit error
func waitForExit(t *testing.T, cmd *exec.Cmd, timeout time.Duration) error {
	t.Helper()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		t.Fatalf("herolog did not exit within %v", timeout)
		return nil
	}
}

// killHerolog forcefully kills the herolog process
func killHerolog(cmd *exec.Cmd) {
	if cmd != nil && cmd.Process != nil {
		cmd.Process.Kill()
	}
}

// requireNoError fails the test if err is not nil
func requireNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

// skipShort skips the test if -short flag is provided
func skipShort(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

// StatusResponse mirrors the /api/v1/status payload
type StatusResponse struct {
	Connection struct {
		Status string `json:"status"`
		Code   string `json:"code"`
	} `json:"connection"`
	Target string `json:"target"`
	Buffer struct {
		Records int `json:"records"`
	} `json:"buffer"`
}

// LogsResponse mirrors the /api/v1/logs payload
type LogsResponse struct {
	Logs []struct {
		Dyno    string `json:"dyno"`
		Level   string `json:"level"`
		Message string `json:"message"`
	} `json:"logs"`
	VisibleCount int `json:"visible_count"`
	TotalCount   int `json:"total_count"`
}
