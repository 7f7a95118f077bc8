package listener

import (
	"sync"

	"github.com/atomscat/softswitch-gateway/codec"
)

// dispatchJob is one queued delivery: a plain event to HandleEslEvent,
// or (when disconnect is set) the terminal disconnect notice.
type dispatchJob struct {
	ctx        *Context
	ev         *codec.Event
	disconnect bool
	remoteAddr string
}

// OrderedWorker serializes event delivery for a single connection on its
// own goroutine, so that HandleEslEvent calls observe wire order even
// though the read loop must not block on a slow callback (spec.md §4.C's
// "ordering... preserved per connection"). Grounded on the single-
// consumer channel idiom in icegreg-chat-smpl's event bus workers.
type OrderedWorker struct {
	l         Listener
	queue     chan dispatchJob
	closeCh   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewOrderedWorker starts a worker with the given queue depth backing l.
func NewOrderedWorker(l Listener, queueDepth int) *OrderedWorker {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	w := &OrderedWorker{
		l:       l,
		queue:   make(chan dispatchJob, queueDepth),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *OrderedWorker) run() {
	defer close(w.done)
	for {
		select {
		case j := <-w.queue:
			w.process(j)
		case <-w.closeCh:
			// Drain whatever was already buffered before exiting, so
			// Close's "waits for the queue to drain" promise holds for
			// work enqueued before the close, not just work already
			// picked up.
			for {
				select {
				case j := <-w.queue:
					w.process(j)
				default:
					return
				}
			}
		}
	}
}

func (w *OrderedWorker) process(j dispatchJob) {
	if j.disconnect {
		w.l.HandleDisconnectNotice(j.remoteAddr, j.ctx)
		j.ctx.Done()
		return
	}
	w.l.HandleEslEvent(j.ctx, j.ev)
	j.ctx.Done()
}

// Dispatch enqueues an event for in-order delivery. Blocks if the queue
// is full, applying backpressure to the connection's read loop rather
// than dropping frames.
func (w *OrderedWorker) Dispatch(ctx *Context, ev *codec.Event) {
	w.enqueue(dispatchJob{ctx: ctx, ev: ev})
}

// DispatchDisconnect enqueues the terminal disconnect notice, delivered
// after every event queued ahead of it.
func (w *OrderedWorker) DispatchDisconnect(ctx *Context, remoteAddr string) {
	w.enqueue(dispatchJob{ctx: ctx, disconnect: true, remoteAddr: remoteAddr})
}

// enqueue hands j to the worker goroutine, or drops it and releases its
// context if Close has already been (or is concurrently being) called.
// Racing against Close here must never panic: Connection.Close() can run
// on a goroutine other than the read loop (client.RemoveServer,
// autoAuthenticate's failure path, the outbound connect-failure path),
// so a plain "check closed, then send" would still be able to land the
// send after Close closes the queue. Selecting on closeCh instead of
// closing the queue channel itself avoids that: there is no channel for
// a late send to panic against.
func (w *OrderedWorker) enqueue(j dispatchJob) {
	select {
	case w.queue <- j:
	case <-w.closeCh:
		j.ctx.Done()
	}
}

// Close stops accepting new work and waits for the queue to drain.
func (w *OrderedWorker) Close() {
	w.closeOnce.Do(func() {
		close(w.closeCh)
	})
	<-w.done
}
