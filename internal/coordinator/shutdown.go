package coordinator

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dhirschfeld/apologies-server/internal/protocol"
)

// runShutdown is the Shutdown Controller from spec.md §4.6: broadcast
// SERVER_SHUTDOWN to every connected player, then give connections up to
// CloseTimeoutSec to drain their send buffers before the process exits.
// This runs on the mailbox goroutine itself, as the final act of Run, so
// no new request can race the broadcast.
func (c *Coordinator) runShutdown() {
	log.Info().Msg("coordinator: shutting down, notifying connected players")
	c.dispatch.ToAllConnected(protocol.ServerShutdown, nil)

	deadline := time.Duration(c.cfg.CloseTimeoutSec) * time.Second
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timer.C:
			log.Warn().Msg("coordinator: close timeout elapsed with connections still open")
			return
		case <-ticker.C:
			if c.store.ConnectionCount() == 0 {
				return
			}
		}
	}
}

// Done returns a channel closed once Run has fully exited, for callers
// that need to wait out a graceful shutdown.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}
