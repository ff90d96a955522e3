package stream

import "syscall"

// sysProcAttr puts the child in its own process group. Pdeathsig fires when
// the forking OS thread exits, so it only backs up Close and the signal handler.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
}
