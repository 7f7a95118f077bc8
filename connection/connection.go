package connection

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/atomscat/softswitch-gateway/codec"
	"github.com/atomscat/softswitch-gateway/internal/eslerr"
	"github.com/atomscat/softswitch-gateway/internal/log"
	"github.com/atomscat/softswitch-gateway/internal/metrics"
	"github.com/atomscat/softswitch-gateway/job"
	"github.com/atomscat/softswitch-gateway/listener"
	"github.com/atomscat/softswitch-gateway/options"
)

// Connection is one ESL socket, inbound or outbound, carrying the wire
// codec, the two correlation structures from package job, and the
// listener dispatch harness (spec.md §3/§4.C). It implements
// listener.ConnHandle so callbacks can write commands back without
// package listener importing this package.
type Connection struct {
	mu    sync.RWMutex
	state State

	conn   net.Conn
	reader *codec.Reader
	writer *codec.Writer

	pendingAPI *job.ReplyQueue
	jobs       *job.Registry

	remoteAddr string
	outbound   bool
	opt        *options.ServerOption

	l       listener.Listener
	ordered *listener.OrderedWorker
	pool    *listener.Pool

	log     log.Logger
	metrics *metrics.ClientMetrics

	// lastActivity is the unix-nano timestamp of the most recently read
	// frame, used by idleKeepaliveLoop to probe only a genuinely idle
	// socket (spec.md §4.C: "no frame is read within the configured
	// reader idle window").
	lastActivity atomic.Int64

	closeOnce sync.Once
	doneCh    chan struct{}
}

// newConnection builds a Connection around an already-dialed/accepted
// net.Conn. outbound distinguishes FreeSWITCH-initiated sockets (where
// onConnect fires) from client-initiated ones (where the auth challenge
// drives HandleAuthRequest).
func newConnection(conn net.Conn, outbound bool, opt *options.ServerOption, l listener.Listener, pool *listener.Pool, logger log.Logger, m *metrics.ClientMetrics) *Connection {
	if logger == nil {
		logger = log.NewNop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	c := &Connection{
		state:      StateConnecting,
		conn:       conn,
		reader:     codec.NewReader(conn),
		writer:     codec.NewWriter(conn),
		pendingAPI: job.NewReplyQueue(),
		jobs:       job.NewRegistry(),
		remoteAddr: conn.RemoteAddr().String(),
		outbound:   outbound,
		opt:        opt,
		l:          l,
		pool:       pool,
		log:        logger.With(),
		metrics:    m,
		doneCh:     make(chan struct{}),
	}
	c.ordered = listener.NewOrderedWorker(l, 256)
	c.lastActivity.Store(time.Now().UnixNano())
	m.ActiveConnections.Inc()
	return c
}

// markActivity records that a frame was just read, for idleKeepaliveLoop.
func (c *Connection) markActivity() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// idleSince reports how long it has been since the last frame was read.
func (c *Connection) idleSince() time.Duration {
	return time.Since(time.Unix(0, c.lastActivity.Load()))
}

// State returns the connection's current lifecycle state.
func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Connection) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// RemoteAddr satisfies listener.ConnHandle.
func (c *Connection) RemoteAddr() string { return c.remoteAddr }

// commandTimeout resolves the per-call deadline, falling back to
// job.DefaultTimeout when no ServerOption is set (outbound sockets may
// have none).
func (c *Connection) commandTimeout() time.Duration {
	if c.opt != nil && c.opt.CommandTimeout > 0 {
		return c.opt.CommandTimeout
	}
	return job.DefaultTimeout
}

// SendAuth writes the "auth <password>" command and waits for its reply,
// used both by the inbound handshake and by HandleAuthRequest callbacks
// that want to retry.
func (c *Connection) SendAuth(password string) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.commandTimeout())
	defer cancel()
	m, err := c.SendCommand(ctx, "auth "+password)
	if err != nil {
		return err
	}
	if !m.IsOK() {
		return eslerr.ErrAuthFailed
	}
	return nil
}

// SendCommand writes a single-line command and waits for the correlated
// command/reply or api/response frame (spec.md §4.D).
func (c *Connection) SendCommand(ctx context.Context, command string) (*codec.Message, error) {
	p := job.NewPromise[*codec.Message]()

	c.writer.Lock()
	err := c.writer.WriteCommandLocked(command)
	if err == nil {
		c.pendingAPI.Push(p)
	}
	c.writer.Unlock()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	m, err := p.Wait(ctx)
	c.metrics.CommandDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.CommandErrors.Inc()
	}
	return m, err
}

// SendAPI issues a synchronous "api <command> <arg>" call (spec.md
// §4.D).
func (c *Connection) SendAPI(ctx context.Context, command, arg string) (*codec.Message, error) {
	line := "api " + command
	if arg != "" {
		line += " " + arg
	}
	return c.SendCommand(ctx, line)
}

// SendBgAPI issues a "bgapi <command> <arg>" call, registers the
// resulting Job-UUID in the background-job registry, and returns the
// UUID immediately — the caller awaits completion separately via the
// registry (spec.md §4.D).
func (c *Connection) SendBgAPI(ctx context.Context, command, arg string) (string, error) {
	jobUUID := uuid.NewString()
	line := fmt.Sprintf("bgapi %s", command)
	if arg != "" {
		line += " " + arg
	}
	line += fmt.Sprintf("\nJob-UUID: %s", jobUUID)

	if _, err := c.jobs.Insert(jobUUID); err != nil {
		return "", err
	}
	c.metrics.PendingJobs.Set(float64(c.jobs.Len()))

	m, err := c.SendCommand(ctx, line)
	if err != nil {
		c.jobs.Cancel(jobUUID, err)
		return "", err
	}
	if m.IsError() {
		cmdErr := eslerr.NewCommandError(m.ReplyText())
		c.jobs.Cancel(jobUUID, cmdErr)
		return "", cmdErr
	}
	return jobUUID, nil
}

// SendAsyncAPI issues a "bgapi <command> <arg>" call without registering
// its Job-UUID in the background-job registry, so the resulting
// BACKGROUND_JOB event falls through handleEvent's registry lookup and is
// delivered to the listener like any other event (spec.md §4.F's
// sendAsyncApiCommand: "returns the Job-UUID synchronously... the
// BACKGROUND_JOB event is delivered via the event listener"). Callers
// that want to await the completion themselves should use SendBgAPI
// instead.
func (c *Connection) SendAsyncAPI(ctx context.Context, command, arg string) (string, error) {
	jobUUID := uuid.NewString()
	line := fmt.Sprintf("bgapi %s", command)
	if arg != "" {
		line += " " + arg
	}
	line += fmt.Sprintf("\nJob-UUID: %s", jobUUID)

	m, err := c.SendCommand(ctx, line)
	if err != nil {
		return "", err
	}
	if m.IsError() {
		return "", eslerr.NewCommandError(m.ReplyText())
	}
	return jobUUID, nil
}

// WaitBackgroundJob blocks for the BACKGROUND_JOB completion event
// correlated to jobUUID, which must already have been registered by
// SendBgAPI (spec.md §4.D).
func (c *Connection) WaitBackgroundJob(ctx context.Context, jobUUID string, timeout time.Duration) (*codec.Event, error) {
	ev, err := c.jobs.Await(ctx, jobUUID, timeout)
	c.metrics.PendingJobs.Set(float64(c.jobs.Len()))
	return ev, err
}

// SendMsg writes a sendmsg block and waits for its command/reply
// (spec.md §4.B).
func (c *Connection) SendMsg(ctx context.Context, msg *codec.SendMsg) (*codec.Message, error) {
	p := job.NewPromise[*codec.Message]()

	c.writer.Lock()
	err := c.writer.WriteSendMsg(msg)
	if err == nil {
		c.pendingAPI.Push(p)
	}
	c.writer.Unlock()
	if err != nil {
		return nil, err
	}
	return p.Wait(ctx)
}

// Close tears the connection down: enters StateDraining while it closes
// the socket, drains the ordered worker, and fails every outstanding
// promise so callers blocked in SendCommand/SendAPI/WaitBackgroundJob
// observe eslerr.ErrConnectionClosed rather than hanging, then settles in
// StateClosed once nothing is left pending (spec.md §4.C's
// Draining → (all pending failed) → Closed step).
func (c *Connection) Close() error {
	var closeErr error
	c.closeOnce.Do(func() {
		c.setState(StateDraining)
		closeErr = c.conn.Close()
		c.pendingAPI.FailAll(eslerr.ErrConnectionClosed)
		c.jobs.FailAll(eslerr.ErrConnectionClosed)
		c.ordered.Close()
		c.setState(StateClosed)
		close(c.doneCh)
		c.metrics.ActiveConnections.Dec()
	})
	return closeErr
}

// Done returns a channel closed once the connection has fully torn down.
func (c *Connection) Done() <-chan struct{} { return c.doneCh }
