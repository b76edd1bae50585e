// Package acqlog is the logging half of a telemetry backbone for long-running
// data-acquisition programs. Producers build records through a Client, the
// records are queued without blocking on I/O and a single worker goroutine
// hands them in batches to named sinks (files, syslog, the metrics pipeline).
package acqlog

import (
	"errors"
	"strings"
)

const (
	// Error messages used across logger operations (used for testing).
	_ERROR_MESSAGE_LOGGER_EXISTS   = "logger is allready instantiated"
	_ERROR_MESSAGE_LOGGER_INACTIVE = "logger is not active"
	_ERROR_MESSAGE_CLIENT_ORPHAN   = "client has no logger"
	_ERROR_MESSAGE_ENTRY_COMMITTED = "entry is already committed"
	_ERROR_MESSAGE_SYSLOG_IN_USE   = "syslog sink is already open in this process"
	_ERROR_MESSAGE_SYSLOG_PATH     = "syslog sink path must be empty"
	_ERROR_MESSAGE_SYSLOG_MISSING  = "syslog is not supported on this platform"
)

var (
	ErrAlreadyInstantiated = errors.New(_ERROR_MESSAGE_LOGGER_EXISTS)
	ErrInactive            = errors.New(_ERROR_MESSAGE_LOGGER_INACTIVE)
	ErrOrphanClient        = errors.New(_ERROR_MESSAGE_CLIENT_ORPHAN)
	ErrCommitted           = errors.New(_ERROR_MESSAGE_ENTRY_COMMITTED)
	ErrSyslogInUse         = errors.New(_ERROR_MESSAGE_SYSLOG_IN_USE)
	ErrSyslogPath          = errors.New(_ERROR_MESSAGE_SYSLOG_PATH)
)

const (
	WORKER_NAME       = "acqlog:logger"              // name of the logger worker goroutine
	DEFAULT_PROG_NAME = "acqlog"                     // program name when Options.ProgName is empty
	TIME_LAYOUT       = "2006-01-02 15:04:05.000000" // record timestamps in file and syslog lines
	FILE_TIME_LAYOUT  = "2006-01-02_15_04_05"        // timestamps embedded in file names
	DEFAULT_OUT_BUFF  = 4096                         // initial size of the per-sink line buffer
	KEY_SEPARATOR     = ","
	KEY_ASSIGN        = "="
	ID_KEY            = "id"
)

// Scheme names accepted by Logger.OpenSink.
const (
	SCHEME_FILE    = "file"
	SCHEME_ROTFILE = "rotfile"
	SCHEME_SYSLOG  = "syslog"
	SCHEME_MONITOR = "monitor"
)

// ComposeKeys joins the primary keys, an `id=<id>` token and the secondary
// keys. Empty parts are skipped and stray separators at either end of a part
// are trimmed, so the result never starts or ends with a comma.
func ComposeKeys(primary, id, secondary string) string {
	var b strings.Builder
	add := func(s string) {
		s = strings.Trim(s, KEY_SEPARATOR)
		if s == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString(KEY_SEPARATOR)
		}
		b.WriteString(s)
	}
	add(primary)
	if id != "" {
		add(ID_KEY + KEY_ASSIGN + id)
	}
	add(secondary)
	return b.String()
}

// SplitKeys parses a key string. Tokens without '=' or with an empty key or
// value are skipped.
func SplitKeys(keys string) []KeyValue {
	var kvs []KeyValue
	for tok := range strings.SplitSeq(keys, KEY_SEPARATOR) {
		k, v, ok := strings.Cut(tok, KEY_ASSIGN)
		if !ok || k == "" || v == "" {
			continue
		}
		kvs = append(kvs, KeyValue{Key: k, Value: v})
	}
	return kvs
}

// HasKey reports whether keys holds exactly the token key=value.
func HasKey(keys, key, value string) bool {
	for tok := range strings.SplitSeq(keys, KEY_SEPARATOR) {
		if k, v, ok := strings.Cut(tok, KEY_ASSIGN); ok && k == key && v == value {
			return true
		}
	}
	return false
}
