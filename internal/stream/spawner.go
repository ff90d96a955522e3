package stream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"
)

// waitDelay bounds how long Wait keeps draining stderr after the child
// exits, in case a grandchild outside the group still holds it open.
const waitDelay = 5 * time.Second

// Spawner starts the external log process for a target
type Spawner interface {
	Spawn(ctx context.Context, target string) (Process, error)
}

// Process is a running log process.
// Stdout must reach EOF once the process is signaled to die.
type Process interface {
	PID() int
	Stdout() io.Reader
	Wait() error
	Signal(sig os.Signal) error
}

// CommandSource builds the command line that streams a target's logs
type CommandSource interface {
	StreamCommand(target string) (name string, args []string)
}

// ExecSpawner implements Spawner using os/exec.
// Children run in their own process group so the whole group can be killed.
type ExecSpawner struct {
	commands CommandSource
	env      []string
	logger   *slog.Logger
}

// NewExecSpawner creates a spawner. env replaces the inherited environment
// when non-empty; stderr lines from the child are logged as warnings.
func NewExecSpawner(commands CommandSource, env []string, logger *slog.Logger) *ExecSpawner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecSpawner{commands: commands, env: env, logger: logger}
}

// Spawn starts the stream command for target
func (s *ExecSpawner) Spawn(ctx context.Context, target string) (Process, error) {
	name, args := s.commands.StreamCommand(target)

	cmd := exec.CommandContext(ctx, name, args...)
	if len(s.env) > 0 {
		cmd.Env = s.env
	}
	cmd.SysProcAttr = sysProcAttr()
	cmd.WaitDelay = waitDelay

	proc := &execProcess{cmd: cmd}
	// Cancel only runs after Start has set cmd.Process
	cmd.Cancel = func() error {
		return proc.Signal(sigkill)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	cmd.Stderr = &stderrLogger{logger: s.logger.With("target", target)}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", name, err)
	}

	proc.stdout = stdout
	s.logger.Debug("log process started", "target", target, "pid", proc.PID(), "cmd", name)
	return proc, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdout io.Reader
	exited atomic.Bool
}

func (p *execProcess) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *execProcess) Stdout() io.Reader {
	return p.stdout
}

func (p *execProcess) Wait() error {
	err := p.cmd.Wait()
	p.exited.Store(true)
	return err
}

// Signal sends sig to the whole process group. Signaling an exited
// process is a no-op so a recycled pid is never hit.
func (p *execProcess) Signal(sig os.Signal) error {
	pid := p.PID()
	if pid == 0 || p.exited.Load() {
		return nil
	}

	s, ok := sig.(syscall.Signal)
	if !ok {
		return p.cmd.Process.Signal(sig)
	}
	if err := syscall.Kill(-pid, s); err != nil {
		return p.cmd.Process.Signal(sig)
	}
	return nil
}

// stderrLogger logs each complete line the child writes to stderr
type stderrLogger struct {
	logger  *slog.Logger
	partial []byte
}

func (w *stderrLogger) Write(b []byte) (int, error) {
	w.partial = append(w.partial, b...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		if line := bytes.TrimRight(w.partial[:i], "\r"); len(line) > 0 {
			w.logger.Warn("log process stderr", "line", string(line))
		}
		w.partial = w.partial[i+1:]
	}
	return len(b), nil
}
