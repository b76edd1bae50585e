package acqlog

/*
Core data types of the logging pipeline:
  - Record: one immutable log record, produced by Entry.Commit
  - KeyValue: a parsed token of a structured key string
  - Options: construction parameters of the process-wide Logger
  - Logger: the central state object owning the queue worker and sinks
  - Client: a named producer handle (one per goroutine/subsystem)
  - Entry: the short-lived builder accumulating one record body
*/

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/abyssdigger/acqlog/internal/pipeline"
	"github.com/abyssdigger/acqlog/severity"
)

// Record is the unit queued by producers and consumed by sinks.
type Record struct {
	Time     time.Time      // capture time, taken when the Entry was begun
	Severity severity.Level // record severity
	Thread   string         // producing goroutine/subsystem name
	Keys     string         // comma-separated key=value tokens, may be empty
	Body     string         // free-form message text
}

// Level makes Record filterable by the sink registry.
func (r Record) Level() severity.Level { return r.Severity }

// KeyValue is one `key=value` token of a key string.
type KeyValue struct {
	Key   string
	Value string
}

// Options configure New. The zero value is usable.
type Options struct {
	ProgName string            // program name, syslog tag and crash file prefix
	HostName string            // os.Hostname() when empty
	Fallback io.Writer         // receives internal errors, os.Stderr when nil
	Capacity int               // initial queue capacity
	Timeout  time.Duration     // worker wait timeout, pipeline.LOOP_TIMEOUT when zero
	Guard    func(name string) // deferred in the worker goroutine (crash handler)
	Now      func() time.Time  // clock used by Entry, time.Now when nil
}

// Logger is the process-wide logging pipeline. It is created by New and
// owns the queue worker, the sink registry and the fallback writer.
type Logger struct {
	sync struct {
		fbckMtx  sync.RWMutex // guards access to fallback writer
		stopOnce sync.Once    // Stop runs once
	}
	worker   *pipeline.Worker[Record]
	sinks    *pipeline.Registry[Record]
	fallbck  io.Writer
	hostname string
	progname string
	now      func() time.Time
}

// Client is a producer of log records. It carries the thread name and
// primary keys stamped into every record and its own threshold used by the
// call-site guard.
type Client struct {
	logger   *Logger
	thread   string
	keys     string
	mtx      sync.RWMutex
	level    severity.Level
	curLevel severity.Level // used by Write / fmt.Fprintf helpers
}

// Entry builds one record. Its body is written through io.Writer and the
// record is handed to the queue by Commit, at most once.
type Entry struct {
	logger    *Logger
	rec       Record
	body      bytes.Buffer
	committed bool
}
