package crash

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/abyssdigger/acqlog"
	"github.com/abyssdigger/acqlog/severity"
)

const (
	CRASH_KEYS      = "cid=__Application"
	CRASH_ID        = "SignalCatcher"
	EXTERNAL_THREAD = "signal" // thread name of externally delivered fault signals
	SETTLE_DELAY    = 200 * time.Millisecond
	ABORT_EXIT_CODE = 134 // 128 + SIGABRT
)

// Handler converts faults into crash reports. Faults are handled one at a
// time, Abort is expected not to return.
type Handler struct {
	Prefix string           // crash file prefix and report program name
	Dir    string           // crash file directory, working directory when empty
	Logger *acqlog.Logger   // acqlog.Default() when nil
	Stderr io.Writer        // os.Stderr when nil
	Abort  func()           // terminates the process, see DefaultAbort
	Settle time.Duration    // wait after logger delivery, SETTLE_DELAY when zero
	Now    func() time.Time // time.Now when nil
	RunID  string

	mtx  sync.Mutex
	sigs chan os.Signal
	done chan struct{}
}

// NewHandler returns a Handler with a fresh run id.
func NewHandler(prefix string, l *acqlog.Logger) *Handler {
	return &Handler{Prefix: prefix, Logger: l, RunID: uuid.NewString()}
}

// Install routes externally delivered fault signals to Handle. Faults raised
// by Go code itself are reported by Guard instead.
func (h *Handler) Install() {
	if h.sigs != nil {
		return
	}
	h.sigs = make(chan os.Signal, 1)
	h.done = make(chan struct{})
	signal.Notify(h.sigs, faultSignals...)
	go func() {
		defer close(h.done)
		for sig := range h.sigs {
			// a second delivery of the same signal gets the default action
			signal.Reset(sig)
			signo := int(sig.(syscall.Signal))
			h.Handle(h.NewReport(signo, SI_USER, SignalName(signo), EXTERNAL_THREAD, 0))
		}
	}()
}

// Uninstall stops signal delivery to the handler.
func (h *Handler) Uninstall() {
	if h.sigs == nil {
		return
	}
	signal.Stop(h.sigs)
	close(h.sigs)
	<-h.done
	h.sigs = nil
}

// Go runs fn in a new goroutine named thread, with memory faults turned
// into panics and reported by Guard.
func (h *Handler) Go(thread string, fn func()) {
	go func() {
		debug.SetPanicOnFault(true)
		defer h.Guard(thread)
		fn()
	}()
}

// Guard must be deferred directly. It recovers a panic of the goroutine and
// hands it to Handle as a fault of thread.
func (h *Handler) Guard(thread string) {
	r := recover()
	if r == nil {
		return
	}
	signo, code, name := int(syscall.SIGABRT), SI_TKILL, fmt.Sprintf("panic: %v", r)
	var addr uintptr
	hasAddr := false
	if err, ok := r.(runtime.Error); ok && strings.Contains(err.Error(), "invalid memory address") {
		signo, code, name = int(syscall.SIGSEGV), SEGV_MAPERR, SignalName(int(syscall.SIGSEGV))
		// only faults under SetPanicOnFault carry the address
		if a, ok := r.(interface{ Addr() uintptr }); ok {
			addr, hasAddr = a.Addr(), true
		}
	}
	rep := h.NewReport(signo, code, name, thread, 1)
	rep.Addr, rep.HasAddr = addr, hasAddr
	h.Handle(rep)
}

// NewReport fills a report for the calling goroutine, skip frames above
// the caller are left out of the backtrace.
func (h *Handler) NewReport(signo, code int, name, thread string, skip int) *Report {
	host := ""
	if l := h.logger(); l != nil {
		host = l.HostName()
	} else {
		host, _ = os.Hostname()
	}
	return &Report{
		Signo:  signo,
		Code:   code,
		Name:   name,
		Thread: thread,
		Frames: Backtrace(skip + 1),
		Time:   h.now(),
		Host:   host,
		Prog:   h.prog(),
		Pid:    os.Getpid(),
		RunID:  h.RunID,
	}
}

// Handle writes the crash file, delivers the report to the logger unless the
// fault happened on the logger's own worker, then aborts.
func (h *Handler) Handle(r *Report) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	stderr := h.stderr()
	text := r.Format()

	fname := FileName(h.prog(), r.Time, r.Host)
	path, err := WriteFile(h.Dir, fname, text)
	if err != nil {
		fmt.Fprintf(stderr, "%s crash handler: %v\n", r.Prog, err)
	}

	if l := h.logger(); l != nil && r.Thread != l.WorkerName() {
		c := l.NewClient(r.Thread, CRASH_KEYS, severity.FATAL)
		if err := c.Always(severity.FATAL, CRASH_ID, "%s", strings.TrimSuffix(text, "\n")); err != nil {
			fmt.Fprintf(stderr, "%s %s: %v\n%s", r.Prog, CRASH_ID, err, text)
		} else {
			time.Sleep(h.settle())
		}
	} else {
		fmt.Fprintf(stderr, "%s %s:\n%s", r.Prog, CRASH_ID, text)
	}

	fmt.Fprintf(stderr, "%s CRASHED - backtrace in %s\n%s CRASHED - calling abort (will core dump)\n", r.Prog, path, r.Prog)
	h.abort()
}

func (h *Handler) logger() *acqlog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return acqlog.Default()
}

func (h *Handler) prog() string {
	if h.Prefix != "" {
		return h.Prefix
	}
	if l := h.logger(); l != nil {
		return l.ProgName()
	}
	return acqlog.DEFAULT_PROG_NAME
}

func (h *Handler) stderr() io.Writer {
	if h.Stderr != nil {
		return h.Stderr
	}
	return os.Stderr
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) settle() time.Duration {
	if h.Settle > 0 {
		return h.Settle
	}
	return SETTLE_DELAY
}

func (h *Handler) abort() {
	if h.Abort != nil {
		h.Abort()
		return
	}
	DefaultAbort()
}

// BlockTermination hands SIGINT, SIGTERM and SIGHUP to the returned context
// only, so no worker goroutine ever sees them.
func BlockTermination(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
}
