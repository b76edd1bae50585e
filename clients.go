package acqlog

import (
	"fmt"
	"io"

	"github.com/abyssdigger/acqlog/severity"
)

/////////////////////////////////////////////////////////////////////////////////////////
/*
A Client stands for a program part (goroutine, subsystem, module) with its own
thread name, primary keys and threshold. All records are produced by clients,
never by the logger itself.

Filtering is a call-site contract: Enabled() is checked before a body is built
so suppressed records never pay for formatting. Log/Logf and the level helpers
do this check themselves, Begin and Always do not.

Every record is handed to the queue by Entry.Commit, which the helpers run
from a defer so the record is queued on every path out of the body closure,
panics included.
*/

// NewClient creates a producer bound to this logger.
//   - thread: name stamped into every record (goroutines have no OS name)
//   - keys: primary keys, e.g. "cid=__Daq,crate=3"
//   - level: threshold used by Enabled()
func (l *Logger) NewClient(thread, keys string, level severity.Level) *Client {
	return &Client{
		logger:   l,
		thread:   thread,
		keys:     keys,
		level:    severity.Norm(level, severity.INFO),
		curLevel: severity.INFO,
	}
}

func (c *Client) Thread() string { return c.thread }
func (c *Client) Keys() string { return c.keys }

func (c *Client) Level() severity.Level {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.level
}

func (c *Client) SetLevel(level severity.Level) *Client {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.level = severity.Norm(level, c.level)
	return c
}

// Enabled reports whether a record at sev passes the client threshold.
func (c *Client) Enabled(sev severity.Level) bool {
	return c != nil && c.logger != nil && sev.Valid() && sev >= c.Level()
}

// Begin snapshots time, severity, thread name and the composed key string
// (primary keys, id=<id>, secondary keys) into a new Entry. No filtering is
// applied here.
func (c *Client) Begin(sev severity.Level, id, keys string) *Entry {
	e := &Entry{
		rec: Record{
			Severity: sev,
			Thread:   c.thread,
			Keys:     ComposeKeys(c.keys, id, keys),
		},
	}
	if c.logger != nil {
		e.logger = c.logger
		e.rec.Time = c.logger.now()
	}
	return e
}

// Log writes a record whose body is produced by the body closure. The closure
// is not called when sev is filtered out.
func (c *Client) Log(sev severity.Level, id, keys string, body func(w io.Writer)) error {
	if !c.Enabled(sev) {
		return nil
	}
	return c.emit(sev, id, keys, body)
}

// Logf is the fmt flavoured Log.
func (c *Client) Logf(sev severity.Level, id, format string, args ...any) error {
	if !c.Enabled(sev) {
		return nil
	}
	return c.emit(sev, id, "", func(w io.Writer) { fmt.Fprintf(w, format, args...) })
}

// Always writes a record regardless of the client threshold. Used for
// startup/shutdown notes and fatal reports.
func (c *Client) Always(sev severity.Level, id, format string, args ...any) error {
	return c.emit(sev, id, "", func(w io.Writer) { fmt.Fprintf(w, format, args...) })
}

func (c *Client) emit(sev severity.Level, id, keys string, body func(w io.Writer)) (err error) {
	e := c.Begin(sev, id, keys)
	defer func() {
		if cerr := e.Commit(); err == nil {
			err = cerr
		}
	}()
	body(e)
	return nil
}

/////////////////////////////////////////////////////////////////////////////////////////
/*
Level-specific helpers. They check Enabled() first and report enqueue
failures to the logger fallback writer instead of returning them.
*/

func (c *Client) logOrFallback(sev severity.Level, id, format string, args []any) {
	if err := c.Logf(sev, id, format, args...); err != nil && c.logger != nil {
		c.logger.handleLogWriteError(err.Error())
	}
}

func (c *Client) Tracef(id, format string, args ...any) {
	c.logOrFallback(severity.TRACE, id, format, args)
}

func (c *Client) Debugf(id, format string, args ...any) {
	c.logOrFallback(severity.DEBUG, id, format, args)
}

func (c *Client) Infof(id, format string, args ...any) {
	c.logOrFallback(severity.INFO, id, format, args)
}

func (c *Client) Notef(id, format string, args ...any) {
	c.logOrFallback(severity.NOTE, id, format, args)
}

func (c *Client) Warnf(id, format string, args ...any) {
	c.logOrFallback(severity.WARNING, id, format, args)
}

func (c *Client) Errorf(id, format string, args ...any) {
	c.logOrFallback(severity.ERROR, id, format, args)
}

// Err logs e at ERROR level, a nil error is ignored.
func (c *Client) Err(id string, e error) {
	if e != nil {
		c.logOrFallback(severity.ERROR, id, "%s", []any{e.Error()})
	}
}

// Fatalf is unconditional: fatal records bypass the client threshold.
func (c *Client) Fatalf(id, format string, args ...any) {
	if err := c.Always(severity.FATAL, id, format, args...); err != nil && c.logger != nil {
		c.logger.handleLogWriteError(err.Error())
	}
}
