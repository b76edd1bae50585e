package pipeline

import (
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abyssdigger/acqlog/severity"
)

type testRec struct {
	lvl      severity.Level
	producer int
	seq      int
}

func (r testRec) Level() severity.Level { return r.lvl }

type FakeSink struct {
	mtx    sync.Mutex
	got    []testRec
	fail   error
	closed bool
}

func (f *FakeSink) Process(batch []testRec, threshold severity.Level) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	for _, r := range batch {
		if Accepted(r, threshold) {
			f.got = append(f.got, r)
		}
	}
	return f.fail
}

func (f *FakeSink) Close() error {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.closed = true
	return nil
}

func (f *FakeSink) Records() []testRec {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return append([]testRec(nil), f.got...)
}

func TestQueue_NextCap(t *testing.T) {
	tests := []struct {
		length, capacity, want int
	}{
		{0, 64, 32},
		{32, 64, 32},
		{33, 64, 96},
		{64, 64, 96},
		{0, 4, 4},
		{3, 4, 6},
		{100, 64, 96},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.length)+"/"+strconv.Itoa(tt.capacity), func(t *testing.T) {
			assert.Equal(t, tt.want, NextCap(tt.length, tt.capacity))
		})
	}
}

func TestQueue_Swap(t *testing.T) {
	q := NewQueue[int](8)
	assert.Equal(t, 8, q.Cap())
	for i := range 6 {
		assert.Equal(t, i+1, q.Push(i))
	}
	batch := q.Swap()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, batch)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 12, q.Cap())
	assert.Empty(t, q.Swap())
	assert.Equal(t, 6, q.Cap())
	assert.Equal(t, DEFAULT_QUEUE_CAP, NewQueue[int](0).Cap())
}

func newTestWorker(sink *FakeSink, timeout time.Duration) *Worker[testRec] {
	return StartWorker(WorkerOptions[testRec]{
		Name:    "test:worker",
		Timeout: timeout,
		Urgent:  func(r testRec) bool { return r.lvl.Urgent() },
		Dispatch: func(batch []testRec) {
			sink.Process(batch, severity.TRACE)
		},
	})
}

func TestWorker_UrgentWakeup(t *testing.T) {
	sink := &FakeSink{}
	w := newTestWorker(sink, time.Hour)
	defer w.Stop()
	require.NoError(t, w.Enqueue(testRec{lvl: severity.DEBUG}))
	require.NoError(t, w.Enqueue(testRec{lvl: severity.NOTE}))
	assert.Eventually(t, func() bool { return len(sink.Records()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, STATE_RUNNING, w.State())
}

func TestWorker_TimeoutFlush(t *testing.T) {
	sink := &FakeSink{}
	w := newTestWorker(sink, 10*time.Millisecond)
	defer w.Stop()
	require.NoError(t, w.Enqueue(testRec{lvl: severity.TRACE}))
	assert.Eventually(t, func() bool { return len(sink.Records()) == 1 }, time.Second, time.Millisecond)
}

func TestWorker_StopDrains(t *testing.T) {
	sink := &FakeSink{}
	w := newTestWorker(sink, time.Hour)
	for i := range 100 {
		require.NoError(t, w.Enqueue(testRec{lvl: severity.INFO, seq: i}))
	}
	w.Stop()
	assert.Len(t, sink.Records(), 100)
	assert.Equal(t, STATE_STOPPED, w.State())
	assert.ErrorIs(t, w.Enqueue(testRec{lvl: severity.FATAL}), ErrStopped)
	assert.Len(t, sink.Records(), 100)
	w.Stop() // second stop only waits
	st := w.Stats()
	assert.Equal(t, uint64(100), st.Records)
	assert.Equal(t, 0, st.Pending)
}

func TestWorker_ParallelProducers(t *testing.T) {
	const producers, count = 20, 500
	sink := &FakeSink{}
	w := newTestWorker(sink, 5*time.Millisecond)
	var wg sync.WaitGroup
	for p := range producers {
		wg.Go(func() {
			for i := range count {
				lvl := severity.Level(i % 7)
				assert.NoError(t, w.Enqueue(testRec{lvl: lvl, producer: p, seq: i}))
			}
		})
	}
	wg.Wait()
	w.Stop()
	got := sink.Records()
	require.Len(t, got, producers*count)
	next := make([]int, producers)
	for _, r := range got {
		assert.Equal(t, next[r.producer], r.seq, "producer %d out of order", r.producer)
		next[r.producer] = r.seq + 1
	}
}

func TestWorker_Guard(t *testing.T) {
	var guarded string
	w := StartWorker(WorkerOptions[testRec]{
		Name: "guarded",
		Dispatch: func(batch []testRec) {
			panic("sink exploded")
		},
		Guard: func(name string) {
			if r := recover(); r != nil {
				guarded = name
			}
		},
	})
	require.NoError(t, w.Enqueue(testRec{}))
	w.Stop()
	assert.Equal(t, "guarded", guarded)
}

func newTestRegistry(sinks map[string]*FakeSink) *Registry[testRec] {
	r := NewRegistry[testRec]()
	r.Register("fake", func(path string) (Sink[testRec], error) {
		if path == "broken" {
			return nil, errors.New("cannot open")
		}
		s := &FakeSink{}
		sinks[path] = s
		return s, nil
	})
	return r
}

func TestRegistry_Operations(t *testing.T) {
	sinks := map[string]*FakeSink{}
	r := newTestRegistry(sinks)

	require.NoError(t, r.Open("fake:b", severity.WARNING))
	require.NoError(t, r.Open("fake:a", severity.TRACE))
	first := sinks["a"]
	assert.ErrorIs(t, r.Open("fake:a", severity.INFO), ErrDuplicate)
	assert.Same(t, first, sinks["a"])
	assert.ErrorIs(t, r.Open("nope:x", severity.INFO), ErrUnknownScheme)
	assert.ErrorIs(t, r.Open("noscheme", severity.INFO), ErrNoScheme)
	assert.ErrorContains(t, r.Open("fake:broken", severity.INFO), "cannot open")
	assert.Equal(t, []string{"fake:a", "fake:b"}, r.List())

	lvl, err := r.Level("fake:b")
	require.NoError(t, err)
	assert.Equal(t, severity.WARNING, lvl)
	require.NoError(t, r.SetLevel("fake:b", severity.ERROR))
	lvl, _ = r.Level("fake:b")
	assert.Equal(t, severity.ERROR, lvl)

	_, err = r.Level("fake:zz")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, r.SetLevel("fake:zz", severity.INFO), ErrNotFound)
	assert.ErrorIs(t, r.Close("fake:zz"), ErrNotFound)

	require.NoError(t, r.Dispatch([]testRec{{lvl: severity.DEBUG}, {lvl: severity.ERROR}}))
	assert.Len(t, sinks["a"].Records(), 2)
	assert.Len(t, sinks["b"].Records(), 1)

	require.NoError(t, r.Close("fake:a"))
	assert.True(t, sinks["a"].closed)
	assert.Equal(t, []string{"fake:b"}, r.List())

	require.NoError(t, r.CloseAll())
	assert.True(t, sinks["b"].closed)
	assert.Empty(t, r.List())
}

func TestRegistry_DispatchErrors(t *testing.T) {
	sinks := map[string]*FakeSink{}
	r := newTestRegistry(sinks)
	require.NoError(t, r.Open("fake:ok", severity.TRACE))
	require.NoError(t, r.Open("fake:bad", severity.TRACE))
	sinks["bad"].fail = errors.New("disk full")
	err := r.Dispatch([]testRec{{lvl: severity.INFO}})
	assert.ErrorContains(t, err, "sink fake:bad: disk full")
	assert.Len(t, sinks["ok"].Records(), 1)
}

func TestRegistry_SlowOpen(t *testing.T) {
	sinks := map[string]*FakeSink{}
	r := newTestRegistry(sinks)
	require.NoError(t, r.Open("fake:ok", severity.TRACE))

	entered := make(chan struct{})
	release := make(chan struct{})
	slow := &FakeSink{}
	r.Register("slow", func(path string) (Sink[testRec], error) {
		close(entered)
		<-release
		return slow, nil
	})
	opened := make(chan error, 1)
	go func() { opened <- r.Open("slow:x", severity.TRACE) }()
	<-entered

	dispatched := make(chan error, 1)
	go func() { dispatched <- r.Dispatch([]testRec{{lvl: severity.INFO}}) }()
	select {
	case err := <-dispatched:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Dispatch blocked by a sink being opened")
	}
	assert.Len(t, sinks["ok"].Records(), 1)

	// a sink with the same name appearing meanwhile wins
	first := &FakeSink{}
	r.mtx.Lock()
	r.sinks["slow:x"] = &entry[testRec]{sink: first, level: severity.TRACE}
	r.names = append(r.names, "slow:x")
	r.mtx.Unlock()
	close(release)
	assert.ErrorIs(t, <-opened, ErrDuplicate)
	assert.True(t, slow.closed)
	assert.False(t, first.closed)
	assert.Equal(t, []string{"fake:ok", "slow:x"}, r.List())
}

func TestSplitName(t *testing.T) {
	s, p, err := SplitName("syslog:")
	require.NoError(t, err)
	assert.Equal(t, "syslog", s)
	assert.Equal(t, "", p)
	s, p, err = SplitName("file:/tmp/a:b.log")
	require.NoError(t, err)
	assert.Equal(t, "file", s)
	assert.Equal(t, "/tmp/a:b.log", p)
	_, _, err = SplitName(":x")
	assert.ErrorIs(t, err, ErrNoScheme)
}

func TestCollector(t *testing.T) {
	sink := &FakeSink{}
	w := newTestWorker(sink, time.Hour)
	require.NoError(t, w.Enqueue(testRec{lvl: severity.INFO}))
	w.Stop()
	c := NewCollector(w)
	assert.Equal(t, 4, testutil.CollectAndCount(c))

	late := StartWorker(WorkerOptions[testRec]{Name: "test:late", Dispatch: func([]testRec) {}})
	defer late.Stop()
	c.Add(late)
	assert.Equal(t, 8, testutil.CollectAndCount(c))
	assert.Equal(t, 2, testutil.CollectAndCount(c, "acqlog_pipeline_records_total"))
}
