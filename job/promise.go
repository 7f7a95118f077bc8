// Package job implements command/reply correlation and the
// background-job registry (spec.md §4.D): a FIFO of pending synchronous
// API replies and a Job-UUID-keyed map of pending BACKGROUND_JOB
// completions.
package job

import (
	"context"
	"sync"

	"github.com/atomscat/softswitch-gateway/internal/eslerr"
)

// Promise is a one-shot future: completed at most once, observed by any
// number of readers via Wait. Grounded on spec.md §9's guidance to model
// futures as "a oneshot channel or completable value, never a shared
// mutable slot", and on the channel-per-pending-call pattern shared by
// eslgo.Conn.responseChannels and fsock.FSConn.bgapiChan.
type Promise[T any] struct {
	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	value   T
	err     error
	settled bool
}

// NewPromise returns an unsettled Promise.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// Complete settles the promise with a value. Redundant completions are
// ignored (spec.md §4.D's "completion... is at-most-once" invariant).
func (p *Promise[T]) Complete(v T) {
	p.once.Do(func() {
		p.mu.Lock()
		p.value = v
		p.settled = true
		p.mu.Unlock()
		close(p.done)
	})
}

// Fail settles the promise with a terminal error.
func (p *Promise[T]) Fail(err error) {
	p.once.Do(func() {
		p.mu.Lock()
		p.err = err
		p.settled = true
		p.mu.Unlock()
		close(p.done)
	})
}

// Wait blocks until the promise settles, ctx is cancelled, or ctx's
// deadline passes, whichever comes first. A ctx-driven timeout maps to
// eslerr.ErrTimeout rather than ctx.Err() so callers observe the
// taxonomy spec.md §7 defines.
func (p *Promise[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, eslerr.ErrTimeout
	}
}

// Settled reports whether Complete or Fail has already run, without
// blocking.
func (p *Promise[T]) Settled() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}
