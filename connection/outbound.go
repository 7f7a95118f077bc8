package connection

import (
	"context"
	"fmt"
	"net"

	"github.com/atomscat/softswitch-gateway/codec"
	"github.com/atomscat/softswitch-gateway/internal/log"
	"github.com/atomscat/softswitch-gateway/internal/metrics"
	"github.com/atomscat/softswitch-gateway/listener"
	"github.com/atomscat/softswitch-gateway/options"
	"go.uber.org/zap"
)

// OutboundServer accepts FreeSWITCH-initiated ("outbound mode")
// connections, grounded on eventsocket.go's ListenAndServe.
type OutboundServer struct {
	l       net.Listener
	handler listener.Listener
	pool    *listener.Pool
	log     log.Logger
	metrics *metrics.ClientMetrics
	opt     *options.ServerOption
}

// ListenOutbound binds addr and returns a server ready to Serve.
func ListenOutbound(addr string, handler listener.Listener, opt *options.ServerOption, logger log.Logger, m *metrics.ClientMetrics) (*OutboundServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connection: listen %s: %w", addr, err)
	}
	if logger == nil {
		logger = log.NewNop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &OutboundServer{
		l:       ln,
		handler: handler,
		pool:    listener.NewPool(16),
		log:     logger,
		metrics: m,
		opt:     opt,
	}, nil
}

// Addr returns the bound listen address.
func (s *OutboundServer) Addr() net.Addr { return s.l.Addr() }

// Serve accepts connections until ctx is cancelled or Close is called,
// sending an initial "connect" command on each new socket to retrieve
// the channel's initial data before dispatching OnConnect (spec.md §4.C,
// mirroring eventsocket.go's outbound accept loop).
func (s *OutboundServer) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.l.Close()
	}()

	for {
		conn, err := s.l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("connection: accept: %w", err)
			}
		}
		go s.handle(conn)
	}
}

// Close stops accepting new connections.
func (s *OutboundServer) Close() error {
	return s.l.Close()
}

func (s *OutboundServer) handle(conn net.Conn) {
	c := newConnection(conn, true, s.opt, s.handler, s.pool, s.log, s.metrics)
	go c.readLoop()

	timeout := c.commandTimeout()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	m, err := c.SendCommand(ctx, "connect")
	if err != nil {
		s.log.Error("outbound connect handshake failed", zap.Error(err), zap.String("remote_addr", c.RemoteAddr()))
		c.Close()
		return
	}
	c.setState(StateReady)

	connectEv := codec.PromoteCommandReply(m)
	onConnectCtx := listener.NewContext(context.Background(), c, timeout)
	s.pool.DispatchOnConnect(s.handler, onConnectCtx, connectEv)

	if s.opt != nil && s.opt.EventFilter != "" {
		subCtx, subCancel := context.WithTimeout(context.Background(), timeout)
		defer subCancel()
		if _, err := c.SendCommand(subCtx, "event plain "+s.opt.EventFilter); err != nil {
			s.log.Warn("outbound event subscription failed", zap.Error(err), zap.String("remote_addr", c.RemoteAddr()))
		}
	}
	c.startIdleKeepalive()
}
