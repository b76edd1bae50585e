package acqlog

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abyssdigger/acqlog/severity"
)

type sentSyslog struct {
	prio syslogPriority
	msg  string
}

type fakeSyslog struct {
	mtx    sync.Mutex
	tag    string
	sent   []sentSyslog
	closed bool
}

func (f *fakeSyslog) add(p syslogPriority, m string) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.sent = append(f.sent, sentSyslog{p, m})
	return nil
}

func (f *fakeSyslog) Debug(m string) error   { return f.add(SYSLOG_DEBUG, m) }
func (f *fakeSyslog) Info(m string) error    { return f.add(SYSLOG_INFO, m) }
func (f *fakeSyslog) Notice(m string) error  { return f.add(SYSLOG_NOTICE, m) }
func (f *fakeSyslog) Warning(m string) error { return f.add(SYSLOG_WARNING, m) }
func (f *fakeSyslog) Err(m string) error     { return f.add(SYSLOG_ERR, m) }
func (f *fakeSyslog) Close() error           { f.closed = true; return nil }

func useFakeSyslog(t *testing.T) *fakeSyslog {
	fake := &fakeSyslog{}
	orig := dialSyslog
	dialSyslog = func(tag string) (syslogWriter, error) {
		fake.tag = tag
		return fake, nil
	}
	t.Cleanup(func() { dialSyslog = orig })
	return fake
}

func Test_Syslog_PriorityMap(t *testing.T) {
	want := map[severity.Level]syslogPriority{
		severity.TRACE:   SYSLOG_DEBUG,
		severity.DEBUG:   SYSLOG_DEBUG,
		severity.INFO:    SYSLOG_INFO,
		severity.NOTE:    SYSLOG_NOTICE,
		severity.WARNING: SYSLOG_WARNING,
		severity.ERROR:   SYSLOG_ERR,
		severity.FATAL:   SYSLOG_ERR,
	}
	for sev, prio := range want {
		assert.Equal(t, prio, syslogPriorityOf(sev), sev.String())
	}
	assert.Equal(t, SYSLOG_ERR, syslogPriorityOf(severity.INVALID))
}

func Test_Syslog_Sink(t *testing.T) {
	fake := useFakeSyslog(t)
	l, _ := newTestLogger(t)

	assert.ErrorIs(t, l.OpenSink("syslog:/dev/log", severity.TRACE), ErrSyslogPath)
	require.NoError(t, l.OpenSink("syslog:", severity.DEBUG))
	_, err := l.newSyslogSink("")
	assert.ErrorIs(t, err, ErrSyslogInUse)

	c := l.NewClient("sys", "cid=__Sys", severity.TRACE)
	for _, sev := range severity.All() {
		c.Logf(sev, "", "%d", sev)
	}
	l.Stop()

	assert.Equal(t, "test", fake.tag)
	assert.True(t, fake.closed)
	require.Len(t, fake.sent, 6)
	for i, s := range fake.sent {
		sev := severity.Level(i + 1)
		assert.Equal(t, syslogPriorityOf(sev), s.prio)
		assert.Equal(t, "{time=2024-03-14 15:09:26.535897,thread=sys,sev="+sev.String()+",cid=__Sys}: "+strconv.Itoa(int(sev)), s.msg)
	}
	assert.False(t, syslogInUse.Load(), "closing the sink releases the process slot")
}
