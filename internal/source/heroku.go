// Package source talks to the heroku CLI: discovery, auth checks,
// app listing and the command line used to stream logs.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charliek/herolog/internal/constants"
	"github.com/charliek/herolog/internal/domain"
)

// KnownPaths are the install locations checked before PATH lookup
var KnownPaths = []string{
	"/opt/homebrew/bin/heroku",
	"/usr/local/bin/heroku",
	"/usr/local/heroku/bin/heroku",
}

// extraPathDirs are prepended to PATH for every heroku invocation.
// Launchers that do not source the user's shell profile often miss them.
var extraPathDirs = []string{"/opt/homebrew/bin", "/usr/local/bin", "/usr/bin", "/bin"}

// AuthError is returned when `heroku auth:whoami` fails
type AuthError struct {
	Output string // what the CLI printed
	Err    error
}

func (e *AuthError) Error() string {
	msg := domain.ErrNotAuthenticated.Error()
	if e.Output != "" {
		msg += ": " + e.Output
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both domain.ErrNotAuthenticated and the underlying failure
func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{domain.ErrNotAuthenticated}
	}
	return []error{domain.ErrNotAuthenticated, e.Err}
}

// HerokuCLI runs the heroku binary
type HerokuCLI struct {
	binary     string
	knownPaths []string
	env        map[string]string
	logger     *slog.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// Option configures a HerokuCLI
type Option func(*HerokuCLI)

// WithBinary sets the binary name or path
func WithBinary(binary string) Option {
	return func(h *HerokuCLI) {
		if binary != "" {
			h.binary = binary
		}
	}
}

// WithEnv adds variables (e.g. HEROKU_API_KEY) to every invocation
func WithEnv(env map[string]string) Option {
	return func(h *HerokuCLI) { h.env = env }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(h *HerokuCLI) { h.logger = logger }
}

// WithIO sets the terminal streams used by the interactive login
func WithIO(in io.Reader, out, errOut io.Writer) Option {
	return func(h *HerokuCLI) {
		h.stdin, h.stdout, h.stderr = in, out, errOut
	}
}

// WithKnownPaths replaces the install locations probed during discovery
func WithKnownPaths(paths ...string) Option {
	return func(h *HerokuCLI) { h.knownPaths = paths }
}

// NewHerokuCLI creates a CLI wrapper
func NewHerokuCLI(opts ...Option) *HerokuCLI {
	h := &HerokuCLI{
		binary:     constants.DefaultHerokuBinary,
		knownPaths: KnownPaths,
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Binary resolves the heroku executable: an explicit path, then the known
// install locations, then the augmented PATH. Falls back to the bare name.
func (h *HerokuCLI) Binary() string {
	if strings.ContainsRune(h.binary, filepath.Separator) {
		return h.binary
	}
	if h.binary == constants.DefaultHerokuBinary {
		for _, p := range h.knownPaths {
			if isExecutable(p) {
				return p
			}
		}
	}
	for _, dir := range filepath.SplitList(searchPath()) {
		if dir == "" {
			continue
		}
		if p := filepath.Join(dir, h.binary); isExecutable(p) {
			return p
		}
	}
	return h.binary
}

// Environ returns the environment for heroku child processes:
// the current environment with PATH augmented and configured variables applied.
func (h *HerokuCLI) Environ() []string {
	env := make([]string, 0, len(os.Environ())+len(h.env)+1)
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if key == "PATH" {
			continue
		}
		if _, override := h.env[key]; override {
			continue
		}
		env = append(env, kv)
	}
	env = append(env, "PATH="+searchPath())

	keys := make([]string, 0, len(h.env))
	for k := range h.env {
		if k != "PATH" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+h.env[k])
	}
	return env
}

// IsToolAvailable reports whether the heroku CLI can be run
func (h *HerokuCLI) IsToolAvailable(ctx context.Context) bool {
	if h.binary == constants.DefaultHerokuBinary {
		for _, p := range h.knownPaths {
			if isExecutable(p) {
				return true
			}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DefaultCommandTimeout)
	defer cancel()
	if _, _, err := h.run(ctx, "version"); err != nil {
		h.logger.Debug("heroku CLI not available", "binary", h.Binary(), "error", err)
		return false
	}
	return true
}

// CheckAuthenticated returns the logged-in account email
func (h *HerokuCLI) CheckAuthenticated(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DefaultCommandTimeout)
	defer cancel()

	stdout, stderr, err := h.run(ctx, "auth:whoami")
	if err != nil {
		return "", &AuthError{Output: stderr, Err: err}
	}

	email := strings.TrimSpace(stdout)
	if email == "" {
		return "", &AuthError{Output: stderr}
	}
	return email, nil
}

// ListTargets returns every app visible to the account, sorted by name
func (h *HerokuCLI) ListTargets(ctx context.Context) ([]domain.Target, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DefaultCommandTimeout)
	defer cancel()

	stdout, stderr, err := h.run(ctx, "apps", "--all", "--json")
	if err != nil {
		if stderr != "" {
			return nil, fmt.Errorf("fetching apps: %w: %s", err, stderr)
		}
		return nil, fmt.Errorf("fetching apps: %w", err)
	}

	var targets []domain.Target
	if err := json.Unmarshal([]byte(stdout), &targets); err != nil {
		return nil, fmt.Errorf("parsing apps JSON: %w", err)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].Name < targets[j].Name })
	return targets, nil
}

// StreamCommand returns the command that tails target's logs
func (h *HerokuCLI) StreamCommand(target string) (string, []string) {
	return h.Binary(), []string{"logs", "--tail", "--app", target}
}

// Login runs the interactive `heroku login` flow attached to the terminal
func (h *HerokuCLI) Login(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, h.Binary(), "login")
	cmd.Env = h.Environ()
	cmd.Stdin = h.stdin
	cmd.Stdout = h.stdout
	cmd.Stderr = h.stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("heroku login: %w", err)
	}
	return nil
}

// run executes a short heroku command and returns trimmed stderr for diagnostics
func (h *HerokuCLI) run(ctx context.Context, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, h.Binary(), args...)
	cmd.Env = h.Environ()
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), strings.TrimSpace(stderr.String()), err
}

func searchPath() string {
	return strings.Join(extraPathDirs, string(filepath.ListSeparator)) +
		string(filepath.ListSeparator) + os.Getenv("PATH")
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}
