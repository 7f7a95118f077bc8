package job

import (
	"sync"

	"github.com/atomscat/softswitch-gateway/codec"
	"github.com/atomscat/softswitch-gateway/internal/eslerr"
)

// ReplyQueue is the FIFO of pending synchronous command replies for one
// connection (spec.md §4.D). ESL guarantees replies arrive in the same
// order as the commands that produced them, so a plain head-pop matches
// head-push under the connection's write mutex.
//
// Popping always dequeues the head and calls Complete/Fail on it, even
// if that promise already timed out — Promise.Complete is a no-op once
// settled, so a late reply is silently dropped while the FIFO stays in
// lockstep with wire order (spec.md §8 scenario 5).
type ReplyQueue struct {
	mu    sync.Mutex
	items []*Promise[*codec.Message]
}

// NewReplyQueue returns an empty queue.
func NewReplyQueue() *ReplyQueue {
	return &ReplyQueue{}
}

// Push enqueues a new pending promise. Callers must hold the
// connection's write mutex for the duration spanning the write and this
// call (spec.md §4.D's ordering invariant); codec.Writer's Lock/Unlock
// are intended for exactly this.
func (q *ReplyQueue) Push(p *Promise[*codec.Message]) {
	q.mu.Lock()
	q.items = append(q.items, p)
	q.mu.Unlock()
}

// Pop dequeues the oldest pending promise and completes it with m. If
// the queue is empty, spec.md §9's chosen behavior applies: the caller
// should log and drop rather than treat it as fatal. Pop reports
// whether an entry was present.
func (q *ReplyQueue) Pop(m *codec.Message) bool {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return false
	}
	p := q.items[0]
	q.items = q.items[1:]
	q.mu.Unlock()

	if reason, failed := m.FailureText(); failed {
		p.Fail(eslerr.NewCommandError(reason))
	} else {
		p.Complete(m)
	}
	return true
}

// Len reports the number of outstanding replies, for metrics/tests.
func (q *ReplyQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// FailAll settles every pending promise with err, used on connection
// teardown (spec.md §3: "Outstanding promises... are failed with a
// terminal error on destruction").
func (q *ReplyQueue) FailAll(err error) {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()

	for _, p := range items {
		p.Fail(err)
	}
}
