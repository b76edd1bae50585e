// Package pipeline holds the machinery shared by the logging and metrics
// pipelines: a lock-protected pending queue that is swapped out whole, the
// worker goroutine draining it and the named sink registry it feeds.
package pipeline

import "sync"

const (
	MIN_QUEUE_CAP     = 4  // lower bound of the reserved capacity after a swap
	DEFAULT_QUEUE_CAP = 64 // initial capacity when none is given
)

// Queue is a growable slice guarded by a single mutex. Producers append,
// the worker takes the whole slice at once.
type Queue[R any] struct {
	mtx   sync.Mutex
	items []R
}

func NewQueue[R any](capacity int) *Queue[R] {
	if capacity < MIN_QUEUE_CAP {
		capacity = DEFAULT_QUEUE_CAP
	}
	return &Queue[R]{items: make([]R, 0, capacity)}
}

// Push appends r and returns the number of pending records.
func (q *Queue[R]) Push(r R) int {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	q.items = append(q.items, r)
	return len(q.items)
}

// Swap hands the pending slice to the caller without copying and installs
// a fresh one sized by NextCap.
func (q *Queue[R]) Swap() []R {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	batch := q.items
	q.items = make([]R, 0, NextCap(len(batch), cap(batch)))
	return batch
}

// Len is the number of pending records.
func (q *Queue[R]) Len() int {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	return len(q.items)
}

// Cap is the currently reserved capacity.
func (q *Queue[R]) Cap() int {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	return cap(q.items)
}

// NextCap grows the reservation by half when the last batch filled more than
// half of it and halves it otherwise, never going below MIN_QUEUE_CAP.
func NextCap(length, capacity int) int {
	ncap := capacity
	if length > capacity/2 {
		ncap += ncap / 2
	} else {
		ncap /= 2
	}
	if ncap < MIN_QUEUE_CAP {
		ncap = MIN_QUEUE_CAP
	}
	return ncap
}
