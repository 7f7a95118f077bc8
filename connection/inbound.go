package connection

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/atomscat/softswitch-gateway/internal/log"
	"github.com/atomscat/softswitch-gateway/internal/metrics"
	"github.com/atomscat/softswitch-gateway/listener"
	"github.com/atomscat/softswitch-gateway/options"
)

// DialInbound opens a client-initiated ("inbound mode") connection to a
// FreeSWITCH mod_event_socket listener: it dials, then waits for the
// read loop to drive the connection through auth/request → authenticated
// → subscribed before returning (spec.md §4.C's inbound handshake,
// grounded on eventsocket.go's Dial). The handshake itself runs in
// dispatchFrame/autoAuthenticate, using opt's credentials.
func DialInbound(ctx context.Context, opt *options.ServerOption, l listener.Listener, pool *listener.Pool, logger log.Logger, m *metrics.ClientMetrics) (*Connection, error) {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", opt.Addr())
	if err != nil {
		return nil, fmt.Errorf("connection: dial %s: %w", opt.Addr(), err)
	}

	c := newConnection(conn, false, opt, l, pool, logger, m)
	go c.readLoop()

	if err := c.waitReady(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// waitReady polls until the handshake driven by dispatchFrame reaches
// StateReady, ctx is cancelled, or the connection closes first.
func (c *Connection) waitReady(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		switch c.State() {
		case StateReady:
			return nil
		case StateClosed:
			return fmt.Errorf("connection: closed during handshake")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.doneCh:
			return fmt.Errorf("connection: closed during handshake")
		case <-ticker.C:
		}
	}
}
