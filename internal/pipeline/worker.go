package pipeline

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

type State uint8

const (
	STATE_RUNNING State = iota
	STATE_STOPPING
	STATE_STOPPED
)

// LOOP_TIMEOUT bounds the latency of non-urgent records.
const LOOP_TIMEOUT = 100 * time.Millisecond

const _ERROR_MESSAGE_WORKER_STOPPED = "pipeline is stopping or stopped"

var ErrStopped = errors.New(_ERROR_MESSAGE_WORKER_STOPPED)

// WorkerOptions configures StartWorker. Dispatch is mandatory.
type WorkerOptions[R any] struct {
	Name     string            // worker (thread) name, used by crash reports
	Capacity int               // initial queue capacity
	Timeout  time.Duration     // wait timeout, LOOP_TIMEOUT when zero
	Urgent   func(R) bool      // records that wake the loop immediately
	Dispatch func(batch []R)   // called with every non-empty batch
	Guard    func(name string) // deferred inside the worker goroutine
}

// Stats is a snapshot of worker counters.
type Stats struct {
	Batches  uint64
	Records  uint64
	Pending  int
	Capacity int
}

// Worker owns a Queue and the goroutine draining it.
type Worker[R any] struct {
	sync struct {
		statMtx sync.RWMutex   // guards state against concurrent Enqueue
		waitEnd sync.WaitGroup // tracks the loop goroutine
	}
	name     string
	queue    *Queue[R]
	wakeup   chan struct{}
	timeout  time.Duration
	urgent   func(R) bool
	dispatch func([]R)
	guard    func(string)
	state    State
	batches  atomic.Uint64
	records  atomic.Uint64
}

// StartWorker creates the queue and launches the loop goroutine.
func StartWorker[R any](opts WorkerOptions[R]) *Worker[R] {
	w := &Worker[R]{
		name:     opts.Name,
		queue:    NewQueue[R](opts.Capacity),
		wakeup:   make(chan struct{}, 1),
		timeout:  opts.Timeout,
		urgent:   opts.Urgent,
		dispatch: opts.Dispatch,
		guard:    opts.Guard,
		state:    STATE_RUNNING,
	}
	if w.timeout <= 0 {
		w.timeout = LOOP_TIMEOUT
	}
	if w.urgent == nil {
		w.urgent = func(R) bool { return false }
	}
	w.sync.waitEnd.Go(w.loop)
	return w
}

func (w *Worker[R]) Name() string { return w.name }

func (w *Worker[R]) State() State {
	w.sync.statMtx.RLock()
	defer w.sync.statMtx.RUnlock()
	return w.state
}

// Enqueue appends r to the pending queue. Records are refused once stopping
// has begun, everything accepted before that is guaranteed to be dispatched.
func (w *Worker[R]) Enqueue(r R) error {
	w.sync.statMtx.RLock()
	defer w.sync.statMtx.RUnlock()
	if w.state != STATE_RUNNING {
		return ErrStopped
	}
	w.queue.Push(r)
	if w.urgent(r) {
		w.Wakeup()
	}
	return nil
}

// Wakeup signals the loop without blocking. Pending signals coalesce.
func (w *Worker[R]) Wakeup() {
	select {
	case w.wakeup <- struct{}{}:
	default:
	}
}

// Stop moves the worker to STATE_STOPPING, waits for the final drain and
// returns once the loop goroutine has exited. Repeated calls only wait.
func (w *Worker[R]) Stop() {
	w.sync.statMtx.Lock()
	if w.state == STATE_RUNNING {
		w.state = STATE_STOPPING
	}
	w.sync.statMtx.Unlock()
	w.Wakeup()
	w.sync.waitEnd.Wait()
}

func (w *Worker[R]) Stats() Stats {
	return Stats{
		Batches:  w.batches.Load(),
		Records:  w.records.Load(),
		Pending:  w.queue.Len(),
		Capacity: w.queue.Cap(),
	}
}

func (w *Worker[R]) loop() {
	if w.guard != nil {
		defer w.guard(w.name)
	}
	timer := time.NewTimer(w.timeout)
	defer timer.Stop()
	for {
		select {
		case <-w.wakeup:
		case <-timer.C:
		}
		timer.Reset(w.timeout)
		// the flag is read before the swap so the last batch holds
		// everything accepted before Stop
		stopping := w.State() != STATE_RUNNING
		w.drain()
		if stopping {
			break
		}
	}
	w.sync.statMtx.Lock()
	w.state = STATE_STOPPED
	w.sync.statMtx.Unlock()
}

func (w *Worker[R]) drain() {
	batch := w.queue.Swap()
	if len(batch) == 0 {
		return
	}
	w.dispatch(batch)
	w.batches.Add(1)
	w.records.Add(uint64(len(batch)))
}
