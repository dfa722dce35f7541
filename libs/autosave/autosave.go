// Package autosave provides a debounced, single-flight flush scheduler.
package autosave

import (
	"context"
	"sync"
	"time"
)

// DefaultDelay is the debounce window used when Options.Delay is zero.
const DefaultDelay = 300 * time.Millisecond

type Status string

const (
	StatusIdle      Status = "idle"
	StatusScheduled Status = "scheduled"
	StatusSaving    Status = "saving"
	StatusError     Status = "error"
)

// Options configures a Queue. OnFlush is required.
type Options[T any] struct {
	Delay time.Duration
	// OnFlush persists one payload. It always runs to completion.
	OnFlush func(ctx context.Context, value T) error
	// OnStatusChange is called outside the queue lock, one call at a time and in
	// the order the transitions happened; a transition overtaken by a later one
	// is dropped. err is set for StatusError and carries the last failure for
	// StatusScheduled. It must not call back into the Queue.
	OnStatusChange func(status Status, err error)
}

type flight struct {
	done chan struct{}
	err  error
}

// Queue coalesces scheduled payloads and flushes only the latest one.
// At most one flush runs at a time; a payload scheduled during a flush is
// flushed right after it without waiting for another delay.
type Queue[T any] struct {
	delay    time.Duration
	onFlush  func(ctx context.Context, value T) error
	onStatus func(status Status, err error)

	mu         sync.Mutex
	timer      *time.Timer
	timerGen   uint64
	pending    T
	hasPending bool
	inflight   *flight
	lastErr    error
	// seq orders status transitions; it only grows under mu.
	seq uint64

	notifyMu  sync.Mutex
	delivered uint64
}

func New[T any](opts Options[T]) *Queue[T] {
	delay := opts.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Queue[T]{
		delay:    delay,
		onFlush:  opts.OnFlush,
		onStatus: opts.OnStatusChange,
	}
}

// Schedule replaces the pending payload and restarts the debounce timer.
func (q *Queue[T]) Schedule(value T) {
	q.mu.Lock()
	q.pending = value
	q.hasPending = true
	q.stopTimerLocked()
	q.timerGen++
	gen := q.timerGen
	q.timer = time.AfterFunc(q.delay, func() { q.fire(gen) })
	lastErr := q.lastErr
	seq := q.nextSeqLocked()
	q.mu.Unlock()

	q.notify(seq, StatusScheduled, lastErr)
}

// FlushNow skips the debounce and waits until nothing is pending or in flight.
// It returns the first flush error it observes; ctx only bounds the wait.
func (q *Queue[T]) FlushNow(ctx context.Context) error {
	for {
		q.mu.Lock()
		q.stopTimerLocked()
		f := q.inflight
		var value T
		var seq uint64
		started := false
		if f == nil && q.hasPending {
			f, value, seq = q.startLocked()
			started = true
		}
		q.mu.Unlock()

		if f == nil {
			return nil
		}
		if started {
			q.launch(f, value, seq)
		}

		select {
		case <-f.done:
		case <-ctx.Done():
			return ctx.Err()
		}
		if f.err != nil {
			return f.err
		}
	}
}

// Cancel drops the pending payload and timer. An in-flight flush is not interrupted.
func (q *Queue[T]) Cancel() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopTimerLocked()
	var zero T
	q.pending = zero
	q.hasPending = false
}

// Pending reports whether a payload is waiting to be flushed.
func (q *Queue[T]) Pending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.hasPending
}

func (q *Queue[T]) fire(gen uint64) {
	q.mu.Lock()
	if gen != q.timerGen || q.timer == nil {
		// superseded or cancelled
		q.mu.Unlock()
		return
	}
	q.timer = nil
	if q.inflight != nil || !q.hasPending {
		// the in-flight flush picks up the pending payload when it finishes
		q.mu.Unlock()
		return
	}
	f, value, seq := q.startLocked()
	q.mu.Unlock()

	q.launch(f, value, seq)
}

// startLocked takes the pending payload and stamps the saving transition.
func (q *Queue[T]) startLocked() (*flight, T, uint64) {
	value := q.pending
	var zero T
	q.pending = zero
	q.hasPending = false
	f := &flight{done: make(chan struct{})}
	q.inflight = f
	return f, value, q.nextSeqLocked()
}

func (q *Queue[T]) launch(f *flight, value T, seq uint64) {
	q.notify(seq, StatusSaving, nil)
	go q.run(f, value)
}

func (q *Queue[T]) run(f *flight, value T) {
	err := q.onFlush(context.Background(), value)
	status := StatusIdle
	if err != nil {
		status = StatusError
	}

	q.mu.Lock()
	q.lastErr = err
	f.err = err
	seq := q.nextSeqLocked()
	q.mu.Unlock()

	// the flight stays registered until its outcome is delivered
	q.notify(seq, status, err)

	q.mu.Lock()
	q.inflight = nil
	var next *flight
	var nextValue T
	var nextSeq uint64
	if q.hasPending {
		q.stopTimerLocked()
		next, nextValue, nextSeq = q.startLocked()
	}
	q.mu.Unlock()
	close(f.done)

	if next != nil {
		q.launch(next, nextValue, nextSeq)
	}
}

func (q *Queue[T]) stopTimerLocked() {
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}

func (q *Queue[T]) nextSeqLocked() uint64 {
	q.seq++
	return q.seq
}

// notify delivers a transition stamped with seq unless a later one was already delivered.
func (q *Queue[T]) notify(seq uint64, status Status, err error) {
	if q.onStatus == nil {
		return
	}
	q.notifyMu.Lock()
	defer q.notifyMu.Unlock()
	if seq <= q.delivered {
		return
	}
	q.delivered = seq
	q.onStatus(status, err)
}
