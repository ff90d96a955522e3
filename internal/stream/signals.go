package stream

import (
	"os"
	"syscall"
)

// Signal definitions for cross-platform compatibility
var (
	sigkill os.Signal = syscall.SIGKILL
)
