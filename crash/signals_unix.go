//go:build !windows && !plan9

package crash

import (
	"os"
	"os/signal"
	"syscall"
	"time"
)

var faultSignals = []os.Signal{syscall.SIGSEGV, syscall.SIGBUS, syscall.SIGFPE, syscall.SIGILL, syscall.SIGSYS}

// DefaultAbort raises SIGABRT with its default disposition, which makes the
// runtime dump all goroutines and, with GOTRACEBACK=crash, the kernel write a
// core file. It never returns.
func DefaultAbort() {
	signal.Reset(syscall.SIGABRT)
	syscall.Kill(os.Getpid(), syscall.SIGABRT)
	time.Sleep(time.Second)
	os.Exit(ABORT_EXIT_CODE)
}
