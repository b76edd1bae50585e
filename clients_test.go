package acqlog

import (
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abyssdigger/acqlog/severity"
)

func Test_Client_Enabled(t *testing.T) {
	l, _ := newTestLogger(t)
	c := l.NewClient("c", "", severity.WARNING)
	assert.False(t, c.Enabled(severity.NOTE))
	assert.True(t, c.Enabled(severity.WARNING))
	assert.False(t, c.Enabled(severity.INVALID))
	c.SetLevel(severity.TRACE)
	assert.True(t, c.Enabled(severity.TRACE))
	c.SetLevel(severity.Level(100))
	assert.Equal(t, severity.TRACE, c.Level(), "invalid level keeps the old one")

	var orphan *Client
	assert.False(t, orphan.Enabled(severity.FATAL))
	assert.Equal(t, severity.INFO, l.NewClient("d", "", severity.Level(77)).Level())
}

func Test_Client_SuppressedBodyIsNotBuilt(t *testing.T) {
	l, _ := newTestLogger(t)
	c := l.NewClient("c", "", severity.ERROR)
	called := 0
	require.NoError(t, c.Log(severity.INFO, "", "", func(w io.Writer) { called++ }))
	assert.Zero(t, called)
	require.NoError(t, c.Log(severity.ERROR, "", "", func(w io.Writer) { called++ }))
	assert.Equal(t, 1, called)
}

type stringerCounter struct{ n *int }

func (s stringerCounter) String() string { *s.n++; return "formatted" }

func Test_Client_LevelHelpersGuard(t *testing.T) {
	l, _ := newTestLogger(t)
	path := filepath.Join(t.TempDir(), "helpers.log")
	require.NoError(t, l.OpenSink("file:"+path, severity.TRACE))
	c := l.NewClient("h", "", severity.NOTE)
	n := 0
	s := stringerCounter{&n}
	c.Tracef("", "%v", s)
	c.Debugf("", "%v", s)
	c.Infof("", "%v", s)
	assert.Zero(t, n)
	c.Notef("", "%v", s)
	c.Warnf("", "%v", s)
	c.Errorf("", "%v", s)
	c.Err("", nil)
	c.Err("E-1", fmt.Errorf("wrapped: %w", io.EOF))
	c.SetLevel(severity.FATAL)
	c.Fatalf("F-1", "%v", s)
	c.SetLevel(severity.FATAL + 1)
	require.NoError(t, c.Always(severity.INFO, "A-1", "always"))
	l.Stop()
	assert.Equal(t, 4, n)
	lines := readLines(t, path)
	require.Len(t, lines, 6)
	assert.Contains(t, lines[3], "sev=Error,id=E-1}: wrapped: EOF")
	assert.Contains(t, lines[4], "sev=Fatal,id=F-1}: formatted")
	assert.Contains(t, lines[5], "sev=Info,id=A-1}: always")
}

func Test_Client_CommitOnPanic(t *testing.T) {
	l, _ := newTestLogger(t)
	path := filepath.Join(t.TempDir(), "panic.log")
	require.NoError(t, l.OpenSink("file:"+path, severity.TRACE))
	c := l.NewClient("p", "", severity.TRACE)
	assert.PanicsWithValue(t, "body failed", func() {
		c.Log(severity.ERROR, "P-1", "", func(w io.Writer) {
			io.WriteString(w, "partial")
			panic("body failed")
		})
	})
	l.Stop()
	lines := readLines(t, path)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "id=P-1}: partial")
}

func Test_Entry_Begin(t *testing.T) {
	l, _ := newTestLogger(t)
	c := l.NewClient("daq:3", "cid=__Daq,", severity.TRACE)
	e := c.Begin(severity.NOTE, "N-1", "run=42")
	fmt.Fprintf(e, "a=%d", 1)
	e.WriteString(",b=2")
	e.Printf(",c=%s", "3")
	assert.Equal(t, Record{
		Time:     testTime,
		Severity: severity.NOTE,
		Thread:   "daq:3",
		Keys:     "cid=__Daq,id=N-1,run=42",
		Body:     "a=1,b=2,c=3",
	}, e.Record())
	require.NoError(t, e.Commit())
	assert.ErrorIs(t, e.Commit(), ErrCommitted)

	orphan := (&Client{thread: "o"}).Begin(severity.INFO, "", "")
	assert.ErrorIs(t, orphan.Commit(), ErrOrphanClient)
}

func Test_Client_Write(t *testing.T) {
	l, _ := newTestLogger(t)
	path := filepath.Join(t.TempDir(), "writer.log")
	require.NoError(t, l.OpenSink("file:"+path, severity.TRACE))
	c := l.NewClient("w", "", severity.INFO)

	n, err := fmt.Fprintf(c.Lvl(severity.WARNING), "disk low: %d%%\n", 93)
	require.NoError(t, err)
	assert.Equal(t, len("disk low: 93%\n"), n)
	n, err = fmt.Fprint(c.Lvl(severity.DEBUG), "filtered")
	require.NoError(t, err)
	assert.Equal(t, len("filtered"), n)
	n, err = c.Write(nil)
	assert.Zero(t, n)
	assert.NoError(t, err)
	n, err = c.Lvl(severity.ERROR).Write([]byte{})
	assert.Zero(t, n)
	assert.NoError(t, err)
	n, err = c.Write([]byte("\n"))
	assert.Equal(t, 1, n)
	assert.NoError(t, err)
	l.Stop()

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "sev=Warning}: disk low: 93%")

	_, err = fmt.Fprint(c.Lvl(severity.ERROR), "stopped")
	assert.ErrorIs(t, err, ErrInactive)
}
