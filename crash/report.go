// Package crash turns fatal faults into a forensic report: a crash file in
// the working directory, one Fatal record in the logging pipeline and an
// abort that leaves a core dump behind.
package crash

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const (
	MAX_FRAMES        = 256                          // backtrace depth limit
	CRASH_TIME_LAYOUT = "2006-01-02T15:04:05.000000" // crash file name timestamp
	CRASH_FILE_MODE   = 0o600
)

// Signal codes stored in Report.Code.
const (
	SI_USER     = 0  // sent by kill(2), the only code visible to os/signal
	SI_TKILL    = -6 // what abort(3) raises, used for recovered panics
	SEGV_MAPERR = 1  // address not mapped, used for recovered memory faults
)

// Report is everything known about one fault.
type Report struct {
	Signo   int
	Code    int
	Name    string  // human readable signal name or panic text
	Addr    uintptr // fault address, only meaningful when HasAddr
	HasAddr bool
	Thread  string   // name of the faulting goroutine/worker
	Frames  []string // "function file:line", innermost first
	Time    time.Time
	Host    string
	Prog    string
	Pid     int
	RunID   string
}

// Format renders the report as the text stored in the crash file and sent
// to the logger.
func (r *Report) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "got signal: si_signo=%d, si_code=%d, name=%s\n", r.Signo, r.Code, r.Name)
	fmt.Fprintf(&b, "process: pid=%d run=%s\n", r.Pid, r.RunID)
	if r.HasAddr && (r.Signo == int(syscall.SIGSEGV) || r.Signo == int(syscall.SIGBUS)) {
		fmt.Fprintf(&b, "at si_addr=0x%x\n", r.Addr)
	}
	fmt.Fprintf(&b, "in thread %s at\n", r.Thread)
	for i, f := range r.Frames {
		b.WriteString("  #")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteByte(' ')
		b.WriteString(f)
		b.WriteByte('\n')
	}
	b.WriteString(r.Prog)
	b.WriteString(" CRASHED - core dump requested\n")
	return b.String()
}

// FileName builds "<prefix>_crash_<timestamp>_<host>.log".
func FileName(prefix string, t time.Time, host string) string {
	return prefix + "_crash_" + t.Format(CRASH_TIME_LAYOUT) + "_" + host + ".log"
}

// WriteFile stores text owner-readable/writable only and returns the path.
func WriteFile(dir, name, text string) (string, error) {
	path := name
	if dir != "" {
		path = filepath.Join(dir, name)
	}
	return path, os.WriteFile(path, []byte(text), CRASH_FILE_MODE)
}

// SignalName is the strsignal(3)-like text of a signal number.
func SignalName(signo int) string {
	return syscall.Signal(signo).String()
}

// Backtrace returns at most MAX_FRAMES frames of the calling goroutine,
// skipping skip frames above its caller.
func Backtrace(skip int) []string {
	pcs := make([]uintptr, MAX_FRAMES)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs[:n])
	out := make([]string, 0, n)
	for {
		f, more := frames.Next()
		out = append(out, f.Function+" "+f.File+":"+strconv.Itoa(f.Line))
		if !more {
			break
		}
	}
	return out
}
