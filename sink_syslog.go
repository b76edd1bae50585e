package acqlog

import (
	"bytes"
	"sync/atomic"

	"github.com/abyssdigger/acqlog/internal/pipeline"
	"github.com/abyssdigger/acqlog/severity"
)

// syslogPriority is the syslog(3) severity a record is sent with.
type syslogPriority uint8

const (
	SYSLOG_ERR     syslogPriority = 3
	SYSLOG_WARNING syslogPriority = 4
	SYSLOG_NOTICE  syslogPriority = 5
	SYSLOG_INFO    syslogPriority = 6
	SYSLOG_DEBUG   syslogPriority = 7
)

// Fatal is sent as err, emerg would be broadcast to every terminal.
var syslogPriorities = [...]syslogPriority{
	SYSLOG_DEBUG,   //TRACE
	SYSLOG_DEBUG,   //DEBUG
	SYSLOG_INFO,    //INFO
	SYSLOG_NOTICE,  //NOTE
	SYSLOG_WARNING, //WARNING
	SYSLOG_ERR,     //ERROR
	SYSLOG_ERR,     //FATAL
}

func syslogPriorityOf(sev severity.Level) syslogPriority {
	if sev.Valid() {
		return syslogPriorities[sev]
	}
	return SYSLOG_ERR
}

// syslogWriter is the subset of *syslog.Writer used by the sink.
type syslogWriter interface {
	Debug(m string) error
	Info(m string) error
	Notice(m string) error
	Warning(m string) error
	Err(m string) error
	Close() error
}

// dialSyslog connects to the local syslog daemon, facility LOCAL1.
// Replaced in tests.
var dialSyslog = openSystemSyslog

// syslog(3) has one process-wide connection, so at most one sink may own it.
var syslogInUse atomic.Bool

type syslogSink struct {
	w      syslogWriter
	msgbuf *bytes.Buffer
}

// "syslog:", the path must be empty.
func (l *Logger) newSyslogSink(path string) (pipeline.Sink[Record], error) {
	if path != "" {
		return nil, ErrSyslogPath
	}
	if !syslogInUse.CompareAndSwap(false, true) {
		return nil, ErrSyslogInUse
	}
	w, err := dialSyslog(l.progname)
	if err != nil {
		syslogInUse.Store(false)
		return nil, err
	}
	return &syslogSink{w: w, msgbuf: bytes.NewBuffer(make([]byte, 0, DEFAULT_OUT_BUFF))}, nil
}

func (s *syslogSink) Process(batch []Record, threshold severity.Level) error {
	for i := range batch {
		if !pipeline.Accepted(batch[i], threshold) {
			continue
		}
		s.msgbuf.Reset()
		msg := buildSyslogMessage(s.msgbuf, &batch[i]).String()
		if err := s.send(syslogPriorityOf(batch[i].Severity), msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *syslogSink) send(prio syslogPriority, msg string) error {
	switch prio {
	case SYSLOG_DEBUG:
		return s.w.Debug(msg)
	case SYSLOG_INFO:
		return s.w.Info(msg)
	case SYSLOG_NOTICE:
		return s.w.Notice(msg)
	case SYSLOG_WARNING:
		return s.w.Warning(msg)
	default:
		return s.w.Err(msg)
	}
}

func (s *syslogSink) Close() error {
	defer syslogInUse.Store(false)
	return s.w.Close()
}
