package listener

import (
	"sync"

	"github.com/atomscat/softswitch-gateway/codec"
)

// Pool is a bounded goroutine pool shared across every connection a
// client manages, used for OnConnect — callbacks with no ordering
// requirement against other connections' events, where a slow handler on
// one connection must not stall another (spec.md §4.C/§4.E). Grounded on
// the worker-pool shape in eslgo/fsock rather than a durable queue
// library such as asynq, since this work is in-process and ephemeral.
type Pool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

// NewPool returns a Pool that runs at most size callbacks concurrently.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 8
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Submit runs fn on a pooled goroutine, blocking only if the pool is
// already at capacity.
func (p *Pool) Submit(fn func()) {
	p.sem <- struct{}{}
	p.wg.Add(1)
	go func() {
		defer func() {
			<-p.sem
			p.wg.Done()
		}()
		fn()
	}()
}

// DispatchOnConnect runs l.OnConnect(ctx, ev) on the pool and releases
// ctx's derived context when the callback returns.
func (p *Pool) DispatchOnConnect(l Listener, ctx *Context, ev *codec.Event) {
	p.Submit(func() {
		defer ctx.Done()
		l.OnConnect(ctx, ev)
	})
}

// Wait blocks until every submitted callback has returned. Used during
// shutdown to avoid callbacks racing past process teardown.
func (p *Pool) Wait() {
	p.wg.Wait()
}
