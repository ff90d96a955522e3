package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charliek/herolog/internal/logs"
)

// fakeProcess emits lines through a pipe. Unless it stays open, the pipe
// closes after the lines (or after lifetime, when set).
type fakeProcess struct {
	pid    int
	r      *io.PipeReader
	w      *io.PipeWriter
	killed atomic.Bool
}

type fakeOpts struct {
	lines    []string
	stayOpen bool
	lifetime time.Duration
}

func newFakeProcess(pid int, opts fakeOpts) *fakeProcess {
	r, w := io.Pipe()
	p := &fakeProcess{pid: pid, r: r, w: w}
	go func() {
		for _, l := range opts.lines {
			if _, err := io.WriteString(w, l+"\n"); err != nil {
				return
			}
		}
		if opts.stayOpen {
			return
		}
		if opts.lifetime > 0 {
			time.Sleep(opts.lifetime)
		}
		w.Close()
	}()
	return p
}

func (p *fakeProcess) PID() int          { return p.pid }
func (p *fakeProcess) Stdout() io.Reader { return p.r }
func (p *fakeProcess) Wait() error       { return nil }

func (p *fakeProcess) Signal(os.Signal) error {
	p.killed.Store(true)
	return p.w.Close()
}

// fakeSpawner hands out processes from next, called with the 1-indexed spawn number
type fakeSpawner struct {
	mu      sync.Mutex
	next    func(n int) (Process, error)
	targets []string
	procs   []*fakeProcess
}

func (s *fakeSpawner) Spawn(_ context.Context, target string) (Process, error) {
	s.mu.Lock()
	s.targets = append(s.targets, target)
	n := len(s.targets)
	s.mu.Unlock()

	proc, err := s.next(n)
	if fp, ok := proc.(*fakeProcess); ok && err == nil {
		s.mu.Lock()
		s.procs = append(s.procs, fp)
		s.mu.Unlock()
	}
	return proc, err
}

func (s *fakeSpawner) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.targets)
}

func (s *fakeSpawner) Targets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.targets...)
}

func (s *fakeSpawner) Proc(i int) *fakeProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.procs[i]
}

func exitingSpawner() *fakeSpawner {
	return &fakeSpawner{next: func(n int) (Process, error) {
		return newFakeProcess(n, fakeOpts{}), nil
	}}
}

func openSpawner(lines ...string) *fakeSpawner {
	return &fakeSpawner{next: func(n int) (Process, error) {
		return newFakeProcess(n, fakeOpts{lines: lines, stayOpen: true}), nil
	}}
}

var errNoBinary = errors.New("exec: \"heroku\": executable file not found in $PATH")

// recordingSleeper records requested delays and returns immediately
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// blockingSleeper blocks until the context is cancelled
type blockingSleeper struct {
	entered chan time.Duration
}

func newBlockingSleeper() *blockingSleeper {
	return &blockingSleeper{entered: make(chan time.Duration, 10)}
}

func (s *blockingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.entered <- d
	<-ctx.Done()
	return ctx.Err()
}

type fakePreconditions struct {
	mu        sync.Mutex
	available bool
	authErr   error
}

func (p *fakePreconditions) IsToolAvailable(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

func (p *fakePreconditions) CheckAuthenticated(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.authErr != nil {
		return "", p.authErr
	}
	return "dev@example.com", nil
}

func (p *fakePreconditions) set(available bool, authErr error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.available = available
	p.authErr = authErr
}

// blockingPreconditions blocks CheckAuthenticated until its context is done
type blockingPreconditions struct {
	entered chan struct{}
}

func newBlockingPreconditions() *blockingPreconditions {
	return &blockingPreconditions{entered: make(chan struct{}, 1)}
}

func (p *blockingPreconditions) IsToolAvailable(context.Context) bool { return true }

func (p *blockingPreconditions) CheckAuthenticated(ctx context.Context) (string, error) {
	p.entered <- struct{}{}
	<-ctx.Done()
	return "", ctx.Err()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T, cfg Config) (*Manager, *logs.Manager) {
	t.Helper()
	records := logs.NewManager(logs.ManagerConfig{BufferSize: 100})
	cfg.Records = records
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	m := NewManager(cfg)
	t.Cleanup(func() {
		m.Close()
		records.Close()
	})
	return m, records
}
