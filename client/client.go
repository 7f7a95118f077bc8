// Package client implements the top-level facade (spec.md §4.F): a
// pool of inbound connections keyed by host:port, with automatic
// reconnect. Background jobs are tracked per connection: jobs pending
// when a connection closes are failed, and a reconnected connection
// starts with none.
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atomscat/softswitch-gateway/connection"
	"github.com/atomscat/softswitch-gateway/internal/eslerr"
	"github.com/atomscat/softswitch-gateway/internal/log"
	"github.com/atomscat/softswitch-gateway/internal/metrics"
	"github.com/atomscat/softswitch-gateway/listener"
	"github.com/atomscat/softswitch-gateway/options"
)

// Client manages a set of inbound-mode connections to one or more
// FreeSWITCH instances, reconnecting each with exponential backoff when
// its socket drops unexpectedly (spec.md §4.F).
type Client struct {
	mu      sync.RWMutex
	conns   map[string]*connection.Connection
	backoff map[string]*backoff

	store   *options.Store
	l       listener.Listener
	pool    *listener.Pool
	log     log.Logger
	metrics *metrics.ClientMetrics

	closeOnce sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// New builds a Client. l receives every event from every managed
// connection; pass a distinct listener per server if isolation matters.
func New(l listener.Listener, logger log.Logger, m *metrics.ClientMetrics) *Client {
	if logger == nil {
		logger = log.NewNop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Client{
		conns:   make(map[string]*connection.Connection),
		backoff: make(map[string]*backoff),
		store:   options.NewStore(),
		l:       l,
		pool:    listener.NewPool(16),
		log:     logger,
		metrics: m,
		stopCh:  make(chan struct{}),
	}
}

// AddServer registers opt and dials it, reconnecting automatically for
// the lifetime of the Client (spec.md §4.F: "adding an existing entry
// replaces the option record without tearing down the connection unless
// authentication-relevant fields changed").
func (c *Client) AddServer(ctx context.Context, opt *options.ServerOption) error {
	authChanged := c.store.Add(opt)

	c.mu.Lock()
	_, alreadyRunning := c.conns[opt.Addr()]
	c.mu.Unlock()

	if alreadyRunning && !authChanged {
		return nil
	}
	if alreadyRunning {
		c.RemoveServer(opt.Addr())
	}

	conn, err := connection.DialInbound(ctx, opt, c.l, c.pool, c.log, c.metrics)
	if err != nil {
		return fmt.Errorf("client: dialing %s: %w", opt.Addr(), err)
	}

	c.mu.Lock()
	c.conns[opt.Addr()] = conn
	c.backoff[opt.Addr()] = newBackoff(opt.ReconnectBackoffMin, opt.ReconnectBackoffMax)
	c.mu.Unlock()

	c.wg.Add(1)
	go c.superviseReconnect(opt)
	return nil
}

// superviseReconnect waits for the current connection to die, then
// redials with exponential backoff until the Client is closed or a
// fresh ServerOption for this address is no longer present (spec.md
// §4.F reconnect loop).
func (c *Client) superviseReconnect(opt *options.ServerOption) {
	defer c.wg.Done()
	addr := opt.Addr()

	for {
		c.mu.RLock()
		conn := c.conns[addr]
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		select {
		case <-conn.Done():
		case <-c.stopCh:
			return
		}

		newConn, ok := c.redialUntilSuccess(addr)
		if !ok {
			return
		}
		c.mu.Lock()
		c.conns[addr] = newConn
		c.mu.Unlock()
	}
}

// redialUntilSuccess retries DialInbound with the backoff schedule for
// addr until it succeeds, the Client is closed, or addr's ServerOption
// is removed from the store (meaning RemoveServer/a caller no longer
// wants this connection supervised).
func (c *Client) redialUntilSuccess(addr string) (*connection.Connection, bool) {
	for {
		select {
		case <-c.stopCh:
			return nil, false
		default:
		}

		current, ok := c.store.Get(addr)
		if !ok {
			return nil, false
		}

		c.mu.Lock()
		b := c.backoff[addr]
		c.mu.Unlock()
		if b == nil {
			return nil, false
		}
		delay := b.next()
		c.metrics.Reconnects.Inc()
		c.log.Warn("connection lost, reconnecting", zap.String("addr", addr), zap.Duration("delay", delay))

		select {
		case <-time.After(delay):
		case <-c.stopCh:
			return nil, false
		}

		newConn, err := connection.DialInbound(context.Background(), current, c.l, c.pool, c.log, c.metrics)
		if err != nil {
			c.log.Warn("reconnect attempt failed", zap.String("addr", addr), zap.Error(err))
			continue
		}
		b.reset()
		return newConn, true
	}
}

// RemoveServer tears down the connection for addr, if any, and stops
// reconnecting it.
func (c *Client) RemoveServer(addr string) {
	c.store.Remove(addr)
	c.mu.Lock()
	conn := c.conns[addr]
	delete(c.conns, addr)
	delete(c.backoff, addr)
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// ServerOptions returns a stable snapshot of every registered server
// option (spec.md §4.F).
func (c *Client) ServerOptions() []*options.ServerOption {
	return c.store.Snapshot()
}

func (c *Client) connectionFor(addr string) (*connection.Connection, error) {
	c.mu.RLock()
	conn := c.conns[addr]
	c.mu.RUnlock()
	if conn == nil {
		return nil, eslerr.ErrNotConnected
	}
	return conn, nil
}

// SendSyncAPICommand issues a synchronous "api" call against addr and
// waits for its reply (spec.md §4.F).
func (c *Client) SendSyncAPICommand(ctx context.Context, addr, command, arg string) (string, error) {
	conn, err := c.connectionFor(addr)
	if err != nil {
		return "", err
	}
	m, err := conn.SendAPI(ctx, command, arg)
	if err != nil {
		return "", err
	}
	return m.Body, nil
}

// SendAsyncAPICommand issues "bgapi" against addr and returns its
// Job-UUID synchronously, once the command/reply round-trip completes;
// unlike SendBackgroundAPICommand, the resulting BACKGROUND_JOB event is
// never awaited here — it is delivered to the connection's event
// listener like any other event (spec.md §4.F).
func (c *Client) SendAsyncAPICommand(ctx context.Context, addr, command, arg string) (string, error) {
	conn, err := c.connectionFor(addr)
	if err != nil {
		return "", err
	}
	return conn.SendAsyncAPI(ctx, command, arg)
}

// SendBackgroundAPICommand issues "bgapi" against addr, returning the
// Job-UUID immediately; call WaitBackgroundJob to block for completion
// (spec.md §4.D/§4.F).
func (c *Client) SendBackgroundAPICommand(ctx context.Context, addr, command, arg string) (string, error) {
	conn, err := c.connectionFor(addr)
	if err != nil {
		return "", err
	}
	return conn.SendBgAPI(ctx, command, arg)
}

// WaitBackgroundJob blocks for the BACKGROUND_JOB completion correlated
// to jobUUID on addr's connection.
func (c *Client) WaitBackgroundJob(ctx context.Context, addr, jobUUID string, timeout time.Duration) (string, error) {
	conn, err := c.connectionFor(addr)
	if err != nil {
		return "", err
	}
	ev, err := conn.WaitBackgroundJob(ctx, jobUUID, timeout)
	if err != nil {
		return "", err
	}
	return ev.MessageBody, nil
}

// Close tears down every managed connection and stops all reconnect
// supervisors (spec.md §4.F).
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopCh)
		c.mu.Lock()
		conns := make([]*connection.Connection, 0, len(c.conns))
		for _, conn := range c.conns {
			if conn != nil {
				conns = append(conns, conn)
			}
		}
		c.conns = make(map[string]*connection.Connection)
		c.mu.Unlock()

		for _, conn := range conns {
			conn.Close()
		}
		c.wg.Wait()
		c.pool.Wait()
	})
	return nil
}
