// Package listener implements dispatch of parsed events and lifecycle
// notices to user callbacks (spec.md §4.E): an ordered per-connection
// worker for event delivery, and a bounded pool shared across
// connections for onConnect and other potentially slow callbacks.
package listener

import (
	"context"
	"time"

	"github.com/atomscat/softswitch-gateway/codec"
)

// ConnHandle is the subset of a connection's behavior a listener
// callback may invoke back into — sending commands, replying to an auth
// challenge, or closing the socket. Defined here rather than importing
// package connection directly so that connection (which must call into
// Listener) and listener (whose Context holds a ConnHandle) don't form
// an import cycle; *connection.Connection satisfies this interface.
type ConnHandle interface {
	RemoteAddr() string
	SendAuth(password string) error
	SendAPI(ctx context.Context, command, arg string) (*codec.Message, error)
	SendBgAPI(ctx context.Context, command, arg string) (string, error)
	SendCommand(ctx context.Context, command string) (*codec.Message, error)
	SendMsg(ctx context.Context, msg *codec.SendMsg) (*codec.Message, error)
	Close() error
}

// Context is the lightweight, borrowed handle passed to listener
// callbacks (spec.md §3): it binds a cancellable context, the owning
// connection, and a default command timeout. It must not be retained
// beyond the callback's duration.
type Context struct {
	ctx     context.Context
	cancel  context.CancelFunc
	handle  ConnHandle
	timeout time.Duration
}

// NewContext builds a Context bound to parent with the given default
// command timeout, deriving a cancellable child context the callback can
// use for SendAPI/SendCommand deadlines.
func NewContext(parent context.Context, handle ConnHandle, timeout time.Duration) *Context {
	ctx, cancel := context.WithCancel(parent)
	return &Context{ctx: ctx, cancel: cancel, handle: handle, timeout: timeout}
}

// Done releases the Context's derived cancellable context. Call when the
// callback returns; the harness (OrderedWorker/Pool) does this
// automatically.
func (c *Context) Done() { c.cancel() }

// Ctx returns the underlying context.Context, suitable for passing to
// Handle() methods.
func (c *Context) Ctx() context.Context { return c.ctx }

// Handle returns the connection handle this Context is bound to.
func (c *Context) Handle() ConnHandle { return c.handle }

// RemoteAddr is a convenience accessor over Handle().RemoteAddr().
func (c *Context) RemoteAddr() string { return c.handle.RemoteAddr() }

// Timeout returns the configured default command timeout as a
// time.Duration (spec.md §3's per-Context default command timeout).
func (c *Context) Timeout() time.Duration { return c.timeout }

// WithTimeout derives a context.Context bound by this Context's default
// command timeout, for use with a single Handle() call.
func (c *Context) WithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.ctx, c.timeout)
}

// Listener is the capability set spec.md §6 requires, varying by mode:
// onConnect only fires in outbound mode, HandleAuthRequest only in
// inbound mode.
type Listener interface {
	// OnConnect fires once per accepted outbound session, on the
	// parallel worker pool, with the promoted command/reply event
	// carrying the initial channel data.
	OnConnect(ctx *Context, ev *codec.Event)

	// HandleEslEvent fires on the connection's ordered worker, once per
	// plain event (BACKGROUND_JOB events that correlate to a pending
	// bgapi call are consumed internally and never reach here).
	HandleEslEvent(ctx *Context, ev *codec.Event)

	// HandleAuthRequest fires (inbound mode only) when FreeSWITCH sends
	// its auth/request challenge. When the connection's ServerOption
	// carries a password, the connection authenticates by itself and this
	// call is informational; otherwise implementations must call
	// ctx.Handle().SendAuth(password).
	HandleAuthRequest(ctx *Context)

	// HandleDisconnectNotice fires once, terminally, when the server
	// sends text/disconnect-notice or the socket is otherwise torn down.
	HandleDisconnectNotice(remoteAddr string, ctx *Context)
}

// BaseListener implements Listener with no-op methods so callers only
// need to override what they use, grounded on the partial-handler idiom
// in zenthangplus/eslgo's OutboundHandler/EventListener split.
type BaseListener struct{}

func (BaseListener) OnConnect(*Context, *codec.Event)        {}
func (BaseListener) HandleEslEvent(*Context, *codec.Event)   {}
func (BaseListener) HandleAuthRequest(*Context)              {}
func (BaseListener) HandleDisconnectNotice(string, *Context) {}
