// Package severity defines the ordered importance scale shared by the
// logging and metrics pipelines. Numeric codes are stable and are what
// gets written into metric tags, so they must never be renumbered.
package severity

import (
	"errors"
	"strconv"
)

// Level is a byte-sized severity code.
type Level uint8

const (
	TRACE Level = iota
	DEBUG
	INFO
	NOTE
	WARNING
	ERROR
	FATAL
	_MAX_for_checks_only
)

// INVALID is the sentinel returned by the non-strict lookups.
const INVALID Level = 255

const (
	_ERROR_MESSAGE_INVALID_CODE = "invalid severity code"
	_ERROR_MESSAGE_INVALID_TEXT = "invalid severity text"
)

var (
	ErrInvalidCode = errors.New(_ERROR_MESSAGE_INVALID_CODE)
	ErrInvalidText = errors.New(_ERROR_MESSAGE_INVALID_TEXT)
)

// Names maps every valid code to its canonical text.
var Names = [_MAX_for_checks_only]string{
	"Trace",   //TRACE
	"Debug",   //DEBUG
	"Info",    //INFO
	"Note",    //NOTE
	"Warning", //WARNING
	"Error",   //ERROR
	"Fatal",   //FATAL
}

// All returns every valid level in ascending order.
func All() []Level {
	all := make([]Level, 0, int(_MAX_for_checks_only))
	for l := TRACE; l < _MAX_for_checks_only; l++ {
		all = append(all, l)
	}
	return all
}

// Valid reports whether l is one of the seven defined codes.
func (l Level) Valid() bool {
	return l < _MAX_for_checks_only
}

// Urgent reports whether records at this level should wake a pipeline
// worker immediately instead of waiting for its periodic timeout.
func (l Level) Urgent() bool {
	return l >= NOTE && l.Valid()
}

// String never fails: invalid codes are rendered as "Level(<n>)".
func (l Level) String() string {
	if l.Valid() {
		return Names[l]
	}
	return "Level(" + strconv.Itoa(int(l)) + ")"
}

// Text is the strict code to text conversion.
func Text(l Level) (string, error) {
	if !l.Valid() {
		return "", errors.Join(ErrInvalidCode, errors.New("code "+strconv.Itoa(int(l))))
	}
	return Names[l], nil
}

// TextOrEmpty is the non-throwing conversion, "" for an invalid code.
func TextOrEmpty(l Level) string {
	if !l.Valid() {
		return ""
	}
	return Names[l]
}

// Parse is the strict text to code conversion. Matching is exact.
func Parse(s string) (Level, error) {
	for i, name := range Names {
		if name == s {
			return Level(i), nil
		}
	}
	return INVALID, errors.Join(ErrInvalidText, errors.New("text `"+s+"`"))
}

// ParseOrInvalid returns INVALID instead of an error.
func ParseOrInvalid(s string) Level {
	l, err := Parse(s)
	if err != nil {
		return INVALID
	}
	return l
}

// Norm clamps an out of range code to def.
func Norm(l, def Level) Level {
	if l.Valid() {
		return l
	}
	return def
}

// MarshalText lets levels appear as text in YAML/JSON configuration.
func (l Level) MarshalText() ([]byte, error) {
	s, err := Text(l)
	return []byte(s), err
}

// UnmarshalText accepts the canonical names only.
func (l *Level) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
