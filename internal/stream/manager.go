// Package stream owns the external log process for one target: it spawns
// the process, feeds parsed lines into the record store, and respawns with
// exponential backoff when the stream ends on its own.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/charliek/herolog/internal/constants"
	"github.com/charliek/herolog/internal/domain"
	"github.com/charliek/herolog/internal/parser"
)

// stateSubscriberBuffer is the channel size for state subscribers
const stateSubscriberBuffer = 64

// Preconditions are checked before each Connect
type Preconditions interface {
	IsToolAvailable(ctx context.Context) bool
	CheckAuthenticated(ctx context.Context) (string, error)
}

// RecordStore receives parsed records. *logs.Manager implements it.
type RecordStore interface {
	Push(record domain.LogRecord)
	Snapshot() []domain.LogRecord
	Clear()
}

// Config holds the collaborators and policy for a Manager
type Config struct {
	Spawner       Spawner
	Records       RecordStore
	Preconditions Preconditions // optional

	// Sleep performs the backoff wait. Defaults to SleepContext.
	Sleep Sleeper

	// StableAfter is how long a session must run before its exit stops
	// counting toward MaxAttempts. Zero uses the default; negative disables.
	StableAfter time.Duration

	// MaxAttempts is the number of consecutive respawns allowed
	MaxAttempts int

	Logger *slog.Logger
}

// Manager is the connection lifecycle state machine.
// At most one process is alive per manager.
type Manager struct {
	spawner     Spawner
	records     RecordStore
	pre         Preconditions
	sleep       Sleeper
	stableAfter time.Duration
	maxAttempts int
	logger      *slog.Logger

	// opMu serializes Connect, Disconnect and Close
	opMu sync.Mutex

	mu     sync.RWMutex
	state  domain.ConnectionState
	target string
	proc   Process
	cancel context.CancelFunc
	done   chan struct{}
	closed bool

	// abortConnect cancels the precondition checks of an in-flight Connect
	abortConnect context.CancelFunc

	subMu     sync.RWMutex
	stateSubs []chan domain.ConnectionState
}

// NewManager creates a disconnected manager
func NewManager(cfg Config) *Manager {
	if cfg.Sleep == nil {
		cfg.Sleep = SleepContext
	}
	if cfg.StableAfter == 0 {
		cfg.StableAfter = constants.DefaultStableAfter
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = constants.MaxReconnectAttempts
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Manager{
		spawner:     cfg.Spawner,
		records:     cfg.Records,
		pre:         cfg.Preconditions,
		sleep:       cfg.Sleep,
		stableAfter: cfg.StableAfter,
		maxAttempts: cfg.MaxAttempts,
		logger:      cfg.Logger,
		state:       domain.Disconnected(),
	}
}

// State returns the current connection state
func (m *Manager) State() domain.ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Target returns the connected target, or "" when disconnected
func (m *Manager) Target() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.target
}

// Snapshot returns the buffered records, oldest first
func (m *Manager) Snapshot() []domain.LogRecord {
	return m.records.Snapshot()
}

// Connect starts streaming target. Any previous session is torn down and
// the buffer cleared first. Precondition failures leave the state unchanged.
// ctx bounds the precondition checks only; the session runs until
// Disconnect, Close or a terminal error. A Disconnect or Close issued while
// the checks run aborts the Connect before anything is spawned.
func (m *Manager) Connect(ctx context.Context, target string) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.isClosed() {
		return domain.ErrManagerClosed
	}
	if target == "" {
		return fmt.Errorf("%w: target is required", domain.ErrNotConnected)
	}

	checkCtx, abort := context.WithCancel(ctx)
	m.mu.Lock()
	m.abortConnect = abort
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.abortConnect = nil
		m.mu.Unlock()
		abort()
	}()

	if err := m.checkPreconditions(checkCtx); err != nil {
		return err
	}
	if err := checkCtx.Err(); err != nil {
		return fmt.Errorf("%w: connect to %s aborted: %w", domain.ErrNotConnected, target, err)
	}

	m.teardown()
	m.records.Clear()

	m.mu.Lock()
	m.target = target
	m.mu.Unlock()
	m.setState(domain.Connecting())

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	proc, err := m.spawner.Spawn(sessionCtx, target)
	if err != nil {
		cancel()
		err = fmt.Errorf("%w: %v", domain.ErrSpawnFailed, err)
		m.logger.Error("failed to start log stream", "target", target, "error", err)
		m.setState(domain.Failed(err))
		return err
	}

	done := make(chan struct{})
	m.mu.Lock()
	m.proc = proc
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	m.logger.Info("log stream started", "target", target, "pid", proc.PID())
	m.setState(domain.Streaming())

	go m.run(sessionCtx, target, proc, done)
	return nil
}

// checkPreconditions reports a missing tool or credentials. A cancelled
// ctx is reported as such rather than as a failed check.
func (m *Manager) checkPreconditions(ctx context.Context) error {
	if m.pre == nil {
		return nil
	}
	if !m.pre.IsToolAvailable(ctx) {
		if ctx.Err() != nil {
			return nil
		}
		return domain.ErrToolUnavailable
	}
	if _, err := m.pre.CheckAuthenticated(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}

// abortPendingConnect cancels the checks of a Connect that holds opMu
func (m *Manager) abortPendingConnect() {
	m.mu.RLock()
	abort := m.abortConnect
	m.mu.RUnlock()
	if abort != nil {
		abort()
	}
}

// Disconnect stops the session, kills the process and clears the buffer.
// It is safe to call in any state, including while Connect is checking
// preconditions.
func (m *Manager) Disconnect() {
	m.abortPendingConnect()
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.disconnect()
}

// Close disconnects and rejects later Connect calls. State subscriptions are closed.
func (m *Manager) Close() {
	m.abortPendingConnect()
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.isClosed() {
		return
	}
	m.disconnect()

	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.subMu.Lock()
	for _, ch := range m.stateSubs {
		close(ch)
	}
	m.stateSubs = nil
	m.subMu.Unlock()
}

func (m *Manager) disconnect() {
	m.teardown()
	m.records.Clear()

	m.mu.Lock()
	m.target = ""
	m.mu.Unlock()
	m.setState(domain.Disconnected())
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// teardown cancels the session, kills its process and waits for the
// session goroutine to exit
func (m *Manager) teardown() {
	m.mu.Lock()
	cancel, proc, done := m.cancel, m.proc, m.done
	m.cancel, m.proc, m.done = nil, nil, nil
	if cancel != nil {
		cancel()
	}
	m.mu.Unlock()

	if proc != nil {
		if err := proc.Signal(sigkill); err != nil {
			m.logger.Debug("kill log process", "pid", proc.PID(), "error", err)
		}
	}
	if done != nil {
		<-done
	}
}

// run owns one session: read until the stream ends, then back off and
// respawn until the attempt limit or a cancellation
func (m *Manager) run(ctx context.Context, target string, proc Process, done chan struct{}) {
	defer close(done)

	schedule := NewBackoffSchedule()
	attempt := 0

	for {
		started := time.Now()
		m.ingest(proc.Stdout())
		waitErr := proc.Wait()
		m.releaseProcess(proc)

		if ctx.Err() != nil {
			return
		}

		uptime := time.Since(started)
		if m.stableAfter > 0 && uptime >= m.stableAfter {
			attempt = 0
			schedule.Reset()
		}
		attempt++

		if attempt > m.maxAttempts {
			m.logger.Error("log stream ended, giving up", "target", target, "attempts", m.maxAttempts)
			m.transition(ctx, domain.Failed(domain.ErrMaxReconnectExceeded))
			return
		}

		delay := schedule.NextBackOff()
		m.logger.Warn("log stream ended, reconnecting",
			"target", target, "attempt", attempt, "delay", delay, "uptime", uptime, "exit", waitErr)
		m.transition(ctx, domain.Reconnecting(attempt))

		if err := m.sleep(ctx, delay); err != nil {
			return
		}

		next, err := m.spawner.Spawn(ctx, target)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			err = fmt.Errorf("%w: %v", domain.ErrSpawnFailed, err)
			m.logger.Error("failed to restart log stream", "target", target, "error", err)
			m.transition(ctx, domain.Failed(err))
			return
		}

		if !m.adoptProcess(ctx, next) {
			discard(next)
			return
		}
		m.transition(ctx, domain.Streaming())
		proc = next
	}
}

// ingest parses lines until EOF. Lines that do not parse are dropped, and
// a line longer than ScannerMaxBufferSize is skipped up to its newline.
func (m *Manager) ingest(r io.Reader) {
	reader := bufio.NewReaderSize(r, constants.ScannerBufferSize)
	var line []byte
	oversized := false

	for {
		chunk, err := reader.ReadSlice('\n')
		if !oversized {
			if len(line)+len(chunk) > constants.ScannerMaxBufferSize+1 {
				oversized = true
				line = line[:0]
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		if oversized {
			m.logger.Warn("skipping oversized log line", "limit", constants.ScannerMaxBufferSize)
		} else if len(line) > 0 {
			m.handleLine(string(bytes.TrimSuffix(line, []byte("\n"))))
		}
		line = line[:0]
		oversized = false

		if err != nil {
			if !errors.Is(err, io.EOF) {
				m.logger.Debug("log stream read ended", "error", err)
			}
			return
		}
	}
}

func (m *Manager) handleLine(line string) {
	record, ok := parser.Parse(line)
	if !ok {
		m.logger.Debug("dropping unparseable line", "line", line)
		return
	}
	m.records.Push(record)
}

// adoptProcess makes next the session's process unless the session was cancelled
func (m *Manager) adoptProcess(ctx context.Context, next Process) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	m.proc = next
	return true
}

// releaseProcess forgets proc once it has been reaped
func (m *Manager) releaseProcess(proc Process) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.proc == proc {
		m.proc = nil
	}
}

// transition sets the state unless the session has been cancelled
func (m *Manager) transition(ctx context.Context, state domain.ConnectionState) {
	m.mu.Lock()
	if ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	m.state = state
	m.mu.Unlock()
	m.emit(state)
}

func (m *Manager) setState(state domain.ConnectionState) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
	m.emit(state)
}

// discard kills a process nobody will read from and reaps it
func discard(proc Process) {
	_ = proc.Signal(sigkill)
	_, _ = io.Copy(io.Discard, proc.Stdout())
	_ = proc.Wait()
}

// SubscribeStates returns a channel receiving every state change.
// Slow subscribers miss changes rather than block the manager.
func (m *Manager) SubscribeStates() <-chan domain.ConnectionState {
	ch := make(chan domain.ConnectionState, stateSubscriberBuffer)

	m.subMu.Lock()
	defer m.subMu.Unlock()
	if m.isClosed() {
		close(ch)
		return ch
	}
	m.stateSubs = append(m.stateSubs, ch)
	return ch
}

// UnsubscribeStates removes and closes a channel returned by SubscribeStates
func (m *Manager) UnsubscribeStates(ch <-chan domain.ConnectionState) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for i, sub := range m.stateSubs {
		if sub == ch {
			m.stateSubs = append(m.stateSubs[:i], m.stateSubs[i+1:]...)
			close(sub)
			return
		}
	}
}

func (m *Manager) emit(state domain.ConnectionState) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for _, ch := range m.stateSubs {
		select {
		case ch <- state:
		default:
			// Channel full, skip
		}
	}
}
