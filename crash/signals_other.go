//go:build windows || plan9

package crash

import (
	"os"
	"syscall"
)

var faultSignals = []os.Signal{syscall.SIGSEGV, syscall.SIGBUS, syscall.SIGFPE, syscall.SIGILL}

// DefaultAbort exits with the status abort(3) gives on unix.
func DefaultAbort() {
	os.Exit(ABORT_EXIT_CODE)
}
