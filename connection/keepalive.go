package connection

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// idleKeepalive issues a "bgapi status" probe once the connection has
// been silent (no frame read at all, including replies) for at least
// IdleReadTimeout, so a silent socket still sees traffic and a half-open
// TCP socket (peer gone without FIN) shows up as a failed probe in the
// log; a failed probe does not close the connection (spec.md §4.C: "no
// frame is read within the configured reader idle window"). The probe is an ordinary
// bgapi call: its Job-UUID is registered in the same job registry every
// other background call uses, so its BACKGROUND_JOB completion is
// already consumed by handleEvent's jobs.Complete lookup and never
// reaches the listener — no separate bookkeeping is needed (a
// simplification recorded in DESIGN.md over an earlier design that
// tracked the probe's Job-UUID separately). The probe's own
// command/reply, read back by readLoop, counts as activity and pushes
// the idle window out again, so a busy connection never fires one while
// a reply is already in flight.
func (c *Connection) startIdleKeepalive() {
	if c.opt == nil || c.opt.IdleReadTimeout <= 0 {
		return
	}
	go c.idleKeepaliveLoop(c.opt.IdleReadTimeout)
}

func (c *Connection) idleKeepaliveLoop(interval time.Duration) {
	pollInterval := interval / 4
	if pollInterval <= 0 {
		pollInterval = interval
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.doneCh:
			return
		case <-ticker.C:
			if c.State() != StateReady {
				continue
			}
			if c.idleSince() < interval {
				continue
			}
			c.probe()
		}
	}
}

func (c *Connection) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), c.commandTimeout())
	defer cancel()
	if _, err := c.SendBgAPI(ctx, "status", ""); err != nil {
		c.log.Warn("idle keepalive probe failed to send", zap.Error(err))
	}
}
