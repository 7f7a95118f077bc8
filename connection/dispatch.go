package connection

import (
	"context"
	"errors"
	"io"

	"github.com/atomscat/softswitch-gateway/codec"
	"github.com/atomscat/softswitch-gateway/internal/eslerr"
	"github.com/atomscat/softswitch-gateway/listener"
	"go.uber.org/zap"
)

// readLoop is the single reader goroutine per connection (spec.md §4.C):
// it classifies every frame by content-type and routes it to either a
// correlation structure (pendingAPI/jobs) or the listener, never
// blocking on a slow callback thanks to the ordered worker/pool split.
func (c *Connection) readLoop() {
	defer c.Close()

	for {
		m, err := c.reader.ReadMessage()
		if err != nil {
			var unsupported *eslerr.UnsupportedContentTypeError
			if errors.As(err, &unsupported) {
				c.log.Warn("unsupported content-type, dropping frame", zap.String("content_type", unsupported.ContentType))
				if m != nil {
					c.markActivity()
					c.dispatchFrame(m)
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				c.log.Info("connection closed by peer", zap.String("remote_addr", c.remoteAddr))
			} else {
				c.log.Error("read error, closing connection", zap.Error(err), zap.String("remote_addr", c.remoteAddr))
			}
			c.notifyDisconnect()
			return
		}
		c.markActivity()
		if m.ContentType == codec.ContentTypeDisconnectNotice {
			c.notifyDisconnect()
			return
		}
		c.dispatchFrame(m)
	}
}

// dispatchFrame implements spec.md §4.C's dispatch table for frames that
// are neither an error nor a disconnect notice.
func (c *Connection) dispatchFrame(m *codec.Message) {
	switch m.ContentType {
	case codec.ContentTypeEventPlain, codec.ContentTypeEventXML:
		ev, err := codec.PromoteEvent(m)
		if err != nil {
			c.log.Warn("dropping unparseable event", zap.Error(err))
			return
		}
		c.handleEvent(ev)

	case codec.ContentTypeAPIResponse, codec.ContentTypeCommandReply:
		if !c.pendingAPI.Pop(m) {
			c.log.Warn("reply with no pending command, dropping", zap.String("remote_addr", c.remoteAddr))
		}

	case codec.ContentTypeAuthRequest:
		c.setState(StateAuthenticating)
		if c.opt != nil && c.opt.Password != "" {
			// The dialing library already knows the password (it built
			// opt), so it authenticates directly rather than requiring
			// every listener to reimplement the handshake. The listener
			// is still informed, on the shared pool, for observability.
			go c.autoAuthenticate()
			ctx := listener.NewContext(context.Background(), c, c.commandTimeout())
			c.pool.Submit(func() {
				defer ctx.Done()
				c.l.HandleAuthRequest(ctx)
			})
			return
		}
		// No known password: the listener itself must call
		// ctx.Handle().SendAuth(password), e.g. after a dynamic lookup.
		ctx := listener.NewContext(context.Background(), c, c.commandTimeout())
		c.pool.Submit(func() {
			defer ctx.Done()
			c.l.HandleAuthRequest(ctx)
		})

	default:
		c.log.Debug("dropping frame of unhandled content-type", zap.String("content_type", string(m.ContentType)))
	}
}

// handleEvent routes a promoted Event either to the background-job
// registry, when it is a BACKGROUND_JOB completion for any pending
// bgapi call (including the idle keepalive's own probe), or to the
// ordered worker for listener delivery (spec.md §4.C/§4.D).
func (c *Connection) handleEvent(ev *codec.Event) {
	if ev.Name == "BACKGROUND_JOB" {
		if c.jobs.Complete(ev.JobUUID(), ev) {
			c.metrics.BackgroundJobTotal.Inc()
			return
		}
	}
	c.metrics.EventsDelivered.WithLabelValues(ev.Name).Inc()
	ctx := listener.NewContext(context.Background(), c, c.commandTimeout())
	c.ordered.Dispatch(ctx, ev)
}

// autoAuthenticate runs the inbound handshake's auth + event subscription
// using the credentials already known from ServerOption, then flips the
// connection to StateReady and starts the idle keepalive.
func (c *Connection) autoAuthenticate() {
	if err := c.SendAuth(c.opt.Password); err != nil {
		c.log.Error("authentication failed, closing connection", zap.Error(err))
		c.Close()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.commandTimeout())
	defer cancel()
	if _, err := c.SendCommand(ctx, "event plain "+c.opt.EventFilter); err != nil {
		c.log.Error("event subscription failed, closing connection", zap.Error(err))
		c.Close()
		return
	}
	c.setState(StateReady)
	c.startIdleKeepalive()
}

func (c *Connection) notifyDisconnect() {
	ctx := listener.NewContext(context.Background(), c, c.commandTimeout())
	c.ordered.DispatchDisconnect(ctx, c.remoteAddr)
}
