package acqlog

import (
	"fmt"

	"github.com/abyssdigger/acqlog/severity"
)

/*********************************************************************************
io.Writer implementations

An Entry accumulates the body of one record, it is what Begin returns and
what body closures write to:

	e := client.Begin(severity.WARNING, "Daq-2", "crate=3")
	defer e.Commit()
	fmt.Fprintf(e, "disk low: %d%%", percent)

A Client is also an io.Writer: Lvl(level) selects the severity and every
Write call becomes one record, so the client can be handed to code that
only knows io.Writer:

	fmt.Fprintf(client.Lvl(severity.WARNING), "disk low: %d%%", percent)

Neither is safe for concurrent use by several goroutines.
*/

// Write appends p to the record body.
func (e *Entry) Write(p []byte) (int, error) {
	return e.body.Write(p)
}

// WriteString appends s to the record body.
func (e *Entry) WriteString(s string) (int, error) {
	return e.body.WriteString(s)
}

// Printf is fmt.Fprintf on the entry.
func (e *Entry) Printf(format string, args ...any) *Entry {
	fmt.Fprintf(e, format, args...)
	return e
}

// Record returns a copy of the record as it would be queued now.
func (e *Entry) Record() Record {
	rec := e.rec
	rec.Body = e.body.String()
	return rec
}

// Commit moves the finished record into the logger queue. Only the first
// call queues, later calls return ErrCommitted.
func (e *Entry) Commit() error {
	if e.committed {
		return ErrCommitted
	}
	e.committed = true
	if e.logger == nil {
		return ErrOrphanClient
	}
	return e.logger.Queue(e.Record())
}

// Lvl sets the severity used by subsequent Write calls and returns the same
// client for chaining.
func (c *Client) Lvl(level severity.Level) *Client {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.curLevel = severity.Norm(level, severity.INFO)
	return c
}

// Write implements io.Writer. One call is one record at the Lvl() severity,
// filtered by Enabled(). A trailing newline is dropped from the body, an
// empty body queues nothing.
func (c *Client) Write(p []byte) (n int, err error) {
	body := p
	if l := len(body); l > 0 && body[l-1] == '\n' {
		body = body[:l-1]
	}
	if len(body) == 0 {
		return len(p), nil
	}
	c.mtx.RLock()
	sev := c.curLevel
	c.mtx.RUnlock()
	if !c.Enabled(sev) {
		return len(p), nil
	}
	e := c.Begin(sev, "", "")
	e.Write(body)
	if err = e.Commit(); err != nil {
		return 0, err
	}
	return len(p), nil
}
