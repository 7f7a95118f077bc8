package job

import (
	"context"
	"sync"
	"time"

	"github.com/atomscat/softswitch-gateway/codec"
	"github.com/atomscat/softswitch-gateway/internal/eslerr"
)

// DefaultTimeout is the default per-call deadline for both synchronous
// API replies and background-job completions (spec.md §4.D).
const DefaultTimeout = 120 * time.Second

// Registry is the Job-UUID-keyed map of pending BACKGROUND_JOB
// completions (spec.md §4.D), grounded on fsock.FSConn's
// bgapiChan/bgapiMux pair. Unlike ReplyQueue, entries here must be
// actively swept on timeout: a FIFO self-bounds by being consumed in
// order, but a map keyed by an externally-generated id can otherwise
// leak (spec.md §9: "a leak-free design attaches a deadline to every
// insertion and sweeps on connection events").
type Registry struct {
	mu      sync.Mutex
	pending map[string]*Promise[*codec.Event]
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{pending: make(map[string]*Promise[*codec.Event])}
}

// Insert registers a new pending job under jobUUID. It fails with
// eslerr.ErrDuplicateJobID if that UUID is already pending — FreeSWITCH
// guarantees uniqueness, but spec.md §4.D requires tolerating a
// collision by rejecting the newer insertion rather than clobbering the
// older one.
func (r *Registry) Insert(jobUUID string) (*Promise[*codec.Event], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.pending[jobUUID]; exists {
		return nil, eslerr.ErrDuplicateJobID
	}
	p := NewPromise[*codec.Event]()
	r.pending[jobUUID] = p
	return p, nil
}

// Complete resolves the pending job for jobUUID with ev, removing it
// from the registry. It reports whether a pending entry was found —
// callers should not deliver the BACKGROUND_JOB event to the listener
// when true (spec.md §4.C's dispatch table).
func (r *Registry) Complete(jobUUID string, ev *codec.Event) bool {
	r.mu.Lock()
	p, ok := r.pending[jobUUID]
	if ok {
		delete(r.pending, jobUUID)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	p.Complete(ev)
	return true
}

// remove removes and returns the pending promise for jobUUID without
// settling it, used when a timeout sweep needs to both fail the promise
// and drop the map entry atomically.
func (r *Registry) remove(jobUUID string) (*Promise[*codec.Event], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[jobUUID]
	if ok {
		delete(r.pending, jobUUID)
	}
	return p, ok
}

// Cancel removes jobUUID's pending entry, if any, and fails it with err.
// Used when the bgapi command that registered the job never reaches
// FreeSWITCH (write failure or -ERR reply), so the registration doesn't
// linger waiting for a BACKGROUND_JOB event that will never arrive.
func (r *Registry) Cancel(jobUUID string, err error) {
	if p, ok := r.remove(jobUUID); ok {
		p.Fail(err)
	}
}

// Len reports the number of outstanding jobs, for metrics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// FailAll settles every pending job with err, used on connection
// teardown and on reconnect (spec.md §4.F: "pending background jobs are
// failed on reconnect because FreeSWITCH loses the job on session
// loss").
func (r *Registry) FailAll(err error) {
	r.mu.Lock()
	pending := r.pending
	r.pending = make(map[string]*Promise[*codec.Event])
	r.mu.Unlock()

	for _, p := range pending {
		p.Fail(err)
	}
}

// Await blocks on a job already registered by a prior Insert (typically
// performed by the caller's own send path, e.g. connection.SendBgAPI,
// which must insert before writing the command so a fast reply can never
// race ahead of registration). It returns eslerr.ErrMissingJobUUID if no
// such entry exists, and otherwise behaves like WaitWithTimeout: the
// entry is swept on timeout so it cannot leak.
func (r *Registry) Await(ctx context.Context, jobUUID string, timeout time.Duration) (*codec.Event, error) {
	r.mu.Lock()
	p, ok := r.pending[jobUUID]
	r.mu.Unlock()
	if !ok {
		return nil, eslerr.ErrMissingJobUUID
	}

	deadline, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ev, err := p.Wait(deadline)
	if err != nil {
		if _, stillPending := r.remove(jobUUID); stillPending {
			p.Fail(err)
		}
	}
	return ev, err
}

// WaitWithTimeout registers jobUUID, then blocks until it completes, ctx
// is done, or timeout elapses — whichever comes first — sweeping the
// registry entry on timeout so it cannot leak (spec.md §9).
func (r *Registry) WaitWithTimeout(ctx context.Context, jobUUID string, timeout time.Duration) (*codec.Event, error) {
	p, err := r.Insert(jobUUID)
	if err != nil {
		return nil, err
	}

	deadline, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ev, err := p.Wait(deadline)
	if err != nil {
		// Only sweep if it's still ours to sweep; Complete may have
		// raced us and already removed it, in which case Wait already
		// observed the real result via the promise's done channel and
		// would not have returned an error.
		if _, stillPending := r.remove(jobUUID); stillPending {
			p.Fail(err)
		}
	}
	return ev, err
}
