package acqlog

import (
	"bytes"

	"github.com/abyssdigger/acqlog/severity"
)

/*
Batch processing performed by the worker goroutine:
  - procced hands every swapped-out batch to the sink registry
  - sink errors are reported to the fallback writer, never dropped
  - buildTextMessage/buildSyslogMessage produce the line formats shared by
    the file, rotating file and syslog sinks

Sink panics are not recovered here: they reach the worker guard, which is
the crash handler when one is installed.
*/

// procced is the dispatch callback of the logger worker.
func (l *Logger) procced(batch []Record) {
	if err := l.sinks.Dispatch(batch); err != nil {
		l.handleLogWriteError("error proceeding log batch: " + err.Error())
	}
}

// handleLogWriteError writes a human-readable error message to the fallback
// writer. A read lock is used since we only need consistent access to fallbck.
func (l *Logger) handleLogWriteError(errormsg string) {
	l.sync.fbckMtx.RLock()
	defer l.sync.fbckMtx.RUnlock()
	if l.fallbck != nil {
		l.fallbck.Write([]byte(errormsg + "\n"))
	}
}

// buildTextMessage appends
//
//	<time>: {host=<h>,thread=<t>,sev=<text>[,<keys>]}: <body>\n
//
// to outBuffer and returns it.
func buildTextMessage(outBuffer *bytes.Buffer, rec *Record, host string) *bytes.Buffer {
	outBuffer.WriteString(rec.Time.Format(TIME_LAYOUT))
	outBuffer.WriteString(": {host=")
	outBuffer.WriteString(host)
	writeKeysTail(outBuffer, rec)
	outBuffer.WriteString(rec.Body)
	outBuffer.WriteByte('\n')
	return outBuffer
}

// buildSyslogMessage builds the syslog payload, host and pid are added by
// the syslog daemon:
//
//	{time=<t>,thread=<t>,sev=<text>[,<keys>]}: <body>
func buildSyslogMessage(outBuffer *bytes.Buffer, rec *Record) *bytes.Buffer {
	outBuffer.WriteString("{time=")
	outBuffer.WriteString(rec.Time.Format(TIME_LAYOUT))
	writeKeysTail(outBuffer, rec)
	outBuffer.WriteString(rec.Body)
	return outBuffer
}

func writeKeysTail(outBuffer *bytes.Buffer, rec *Record) {
	outBuffer.WriteString(",thread=")
	outBuffer.WriteString(rec.Thread)
	outBuffer.WriteString(",sev=")
	outBuffer.WriteString(severity.TextOrEmpty(rec.Severity))
	if len(rec.Keys) > 0 {
		outBuffer.WriteString(KEY_SEPARATOR)
		outBuffer.WriteString(rec.Keys)
	}
	outBuffer.WriteString("}: ")
}
