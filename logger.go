package acqlog

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/abyssdigger/acqlog/internal/pipeline"
	"github.com/abyssdigger/acqlog/severity"
)

// current holds the single live Logger of the process.
var current atomic.Pointer[Logger]

var lookupHostname = os.Hostname

// New constructs the process-wide Logger and starts its worker goroutine.
// Only one Logger may exist at a time, a second call fails with
// ErrAlreadyInstantiated until the first one is stopped.
//
// Preferred usage example:
//
//	func main() {
//	    logger, err := acqlog.New(acqlog.Options{ProgName: "daq"})
//	    if err != nil { ... }
//	    defer logger.Stop()
//	    logger.OpenSink("file:cout", severity.INFO)
//	    ...
//	}
func New(opts Options) (*Logger, error) {
	l := &Logger{
		sinks:    pipeline.NewRegistry[Record](),
		hostname: opts.HostName,
		progname: opts.ProgName,
		now:      opts.Now,
	}
	if current.Load() != nil {
		return nil, ErrAlreadyInstantiated
	}
	if l.hostname == "" {
		h, err := lookupHostname()
		if err != nil {
			return nil, fmt.Errorf("hostname: %w", err)
		}
		l.hostname = h
	}
	if l.progname == "" {
		l.progname = DEFAULT_PROG_NAME
	}
	if l.now == nil {
		l.now = time.Now
	}
	if opts.Fallback == nil {
		opts.Fallback = os.Stderr
	}
	l.SetFallback(opts.Fallback)
	l.registerSchemes()
	l.worker = pipeline.StartWorker(pipeline.WorkerOptions[Record]{
		Name:     WORKER_NAME,
		Capacity: opts.Capacity,
		Timeout:  opts.Timeout,
		Urgent:   func(r Record) bool { return r.Severity.Urgent() },
		Dispatch: l.procced,
		Guard:    opts.Guard,
	})
	if !current.CompareAndSwap(nil, l) {
		l.worker.Stop()
		return nil, ErrAlreadyInstantiated
	}
	return l, nil
}

// Default returns the live Logger, nil when none is constructed.
func Default() *Logger {
	return current.Load()
}

// Stop refuses new records, drains everything already queued into the sinks,
// closes the sinks and releases the process-wide slot. Safe to call twice.
func (l *Logger) Stop() {
	l.sync.stopOnce.Do(func() {
		l.worker.Stop()
		if err := l.sinks.CloseAll(); err != nil {
			l.handleLogWriteError(err.Error())
		}
		current.CompareAndSwap(l, nil)
	})
}

// IsActive is true until Stop has begun.
func (l *Logger) IsActive() bool {
	return l.worker.State() == pipeline.STATE_RUNNING
}

// Sets the fallback output used to report internal errors, io.Discard is used
// instead of nil to silently drop fallback messages.
func (l *Logger) SetFallback(f io.Writer) *Logger {
	l.sync.fbckMtx.Lock()
	defer l.sync.fbckMtx.Unlock()
	if f != nil {
		l.fallbck = f
	} else {
		l.fallbck = io.Discard
	}
	return l
}

func (l *Logger) HostName() string { return l.hostname }
func (l *Logger) ProgName() string { return l.progname }
func (l *Logger) WorkerName() string { return l.worker.Name() }

// Stats exposes the worker counters (for the pipeline collector).
func (l *Logger) Stats() pipeline.Stats { return l.worker.Stats() }
func (l *Logger) Name() string { return l.worker.Name() }

// Queue moves a finished record into the pending queue. Records at NOTE and
// above wake the worker immediately.
func (l *Logger) Queue(rec Record) error {
	if err := l.worker.Enqueue(rec); err != nil {
		return fmt.Errorf("%w: %w", ErrInactive, err)
	}
	return nil
}

/////////////////////////////////////////////////////////////////////////////////////////
// Sink management. Names have the form "<scheme>:<path>", see the SCHEME_*
// constants for the accepted schemes. All operations hold the registry lock,
// never the queue lock.

// OpenSink creates a sink with the given threshold.
func (l *Logger) OpenSink(name string, level severity.Level) error {
	return l.sinks.Open(name, level)
}

// CloseSink closes and removes a sink.
func (l *Logger) CloseSink(name string) error {
	return l.sinks.Close(name)
}

// SinkList returns the names of all open sinks, sorted.
func (l *Logger) SinkList() []string {
	return l.sinks.List()
}

func (l *Logger) SinkLevel(name string) (severity.Level, error) {
	return l.sinks.Level(name)
}

func (l *Logger) SetSinkLevel(name string, level severity.Level) error {
	return l.sinks.SetLevel(name, level)
}

func (l *Logger) registerSchemes() {
	l.sinks.Register(SCHEME_FILE, l.newFileSink)
	l.sinks.Register(SCHEME_ROTFILE, l.newRotFileSink)
	l.sinks.Register(SCHEME_SYSLOG, l.newSyslogSink)
	l.sinks.Register(SCHEME_MONITOR, newMonitorSink)
}
