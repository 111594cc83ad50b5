// Package queue provides the bounded, multi-producer/single-consumer
// ingress queue used by node.Node's input_queue. It is adapted from the
// teacher's pool.Pool: the same semaphore-gated channel store, but
// repurposed from "acquire a pooled connection, blocking up to a
// timeout" into "offer an item, fail fast when full" — ingress must
// never block an application goroutine (see node.Node and the
// concurrency model's backpressure rules).
package queue

import (
	"fmt"

	"golang.org/x/sync/semaphore"
)

const token int64 = 1

var (
	// ErrFull is returned by Offer when the queue is at capacity. The
	// caller must retry or shed load; Offer never blocks to wait for
	// room.
	ErrFull = fmt.Errorf("queue: full")
	// ErrClosed is returned once Close has been called.
	ErrClosed = fmt.Errorf("queue: closed")
)

// Queue is a bounded FIFO with a fixed capacity shared by any number of
// producer goroutines and exactly one consumer.
type Queue[T any] struct {
	sema   *semaphore.Weighted
	store  chan T
	closed chan struct{}
	maxCap int
}

// New creates a Queue with the given capacity.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		panic("queue: invalid capacity")
	}
	return &Queue[T]{
		sema:   semaphore.NewWeighted(int64(capacity)),
		store:  make(chan T, capacity),
		closed: make(chan struct{}),
		maxCap: capacity,
	}
}

// Offer enqueues v without blocking. It returns ErrFull if the queue is
// at capacity and ErrClosed if the queue has been closed.
func (q *Queue[T]) Offer(v T) error {
	if q.isClosed() {
		return ErrClosed
	}
	if !q.sema.TryAcquire(token) {
		return ErrFull
	}
	select {
	case q.store <- v:
		return nil
	default:
		// Lost the race with a concurrent Close; release back the slot.
		q.sema.Release(token)
		return ErrClosed
	}
}

// Poll removes and returns the head item, or ok=false if the queue is
// currently empty. It never blocks; it is meant to be called once per
// reactor tick by the single consumer goroutine.
func (q *Queue[T]) Poll() (v T, ok bool) {
	select {
	case v, ok = <-q.store:
		if ok {
			q.sema.Release(token)
		}
		return v, ok
	default:
		return v, false
	}
}

// Drain removes up to max items, in FIFO order, calling fn for each.
// It stops early if fn returns false.
func (q *Queue[T]) Drain(max int, fn func(T) bool) int {
	n := 0
	for n < max {
		v, ok := q.Poll()
		if !ok {
			break
		}
		n++
		if !fn(v) {
			break
		}
	}
	return n
}

// Len reports the number of items currently queued.
func (q *Queue[T]) Len() int {
	return len(q.store)
}

// Cap reports the queue's fixed capacity.
func (q *Queue[T]) Cap() int {
	return q.maxCap
}

// Close marks the queue closed; subsequent Offer calls fail with
// ErrClosed. Already-queued items remain available via Poll/Drain.
func (q *Queue[T]) Close() {
	select {
	case <-q.closed:
	default:
		close(q.closed)
	}
}

func (q *Queue[T]) isClosed() bool {
	select {
	case <-q.closed:
		return true
	default:
		return false
	}
}
