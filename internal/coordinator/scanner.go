package coordinator

import (
	"context"
	"time"

	"github.com/dhirschfeld/apologies-server/internal/protocol"
)

// startSweepers launches the four periodic scanners from spec.md §4.5 and
// §6 (idle-websocket, idle-player, idle-game, obsolete-game), each on its
// own ticker so a slow sweep of one kind never starves another. Every tick
// is coalesced into a single mailbox item rather than mutating the store
// from the ticker's own goroutine, preserving the coordinator's
// single-writer invariant.
func (c *Coordinator) startSweepers(ctx context.Context) []*time.Ticker {
	specs := []struct {
		delay, period time.Duration
		kind          sweepKind
	}{
		{time.Duration(c.cfg.IdleWebsocketCheckDelaySec) * time.Second, time.Duration(c.cfg.IdleWebsocketCheckPeriodSec) * time.Second, sweepIdleWebsocket},
		{time.Duration(c.cfg.IdlePlayerCheckDelaySec) * time.Second, time.Duration(c.cfg.IdlePlayerCheckPeriodSec) * time.Second, sweepIdlePlayer},
		{time.Duration(c.cfg.IdleGameCheckDelaySec) * time.Second, time.Duration(c.cfg.IdleGameCheckPeriodSec) * time.Second, sweepIdleGame},
		{time.Duration(c.cfg.ObsoleteGameCheckDelaySec) * time.Second, time.Duration(c.cfg.ObsoleteGameCheckPeriodSec) * time.Second, sweepObsoleteGame},
	}

	tickers := make([]*time.Ticker, 0, len(specs))
	for _, spec := range specs {
		spec := spec
		t := time.NewTicker(spec.period)
		tickers = append(tickers, t)
		go func() {
			select {
			case <-time.After(spec.delay):
			case <-ctx.Done():
				return
			}
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					select {
					case c.mailbox <- mailboxItem{kind: itemTick, sweep: spec.kind}:
					case <-c.done:
						return
					}
				}
			}
		}()
	}
	return tickers
}

func (c *Coordinator) handleSweep(kind sweepKind) {
	switch kind {
	case sweepIdleWebsocket:
		c.sweepIdleWebsockets()
	case sweepIdlePlayer:
		c.sweepIdlePlayers()
	case sweepIdleGame:
		c.sweepIdleGames()
	case sweepObsoleteGame:
		c.sweepObsoleteGames()
	}
}

// sweepIdleWebsockets drops connections that were marked dead by a prior
// failed send and never got cleaned up via SubmitConnectionClosed (a
// defensive backstop, not the primary path). It does not look at how long
// a connection has been quiet: connections carry no last-activity time, and
// the websocket idle/inactive thresholds are not applied anywhere. Pings
// are sent by the transport layer's write pump.
func (c *Coordinator) sweepIdleWebsockets() {
	for _, deadConn := range c.dispatch.DrainDead() {
		c.handleConnectionClosed(deadConn)
	}
}

// sweepIdlePlayers marks players idle, then inactive, based on how long
// it's been since their last request, cascading an unregister once a
// player crosses the inactive threshold (spec.md §4.5).
func (c *Coordinator) sweepIdlePlayers() {
	now := c.clk.Now()
	for _, p := range c.store.Players() {
		since := now.Sub(p.LastActiveAt)
		switch {
		case since >= c.cfg.PlayerInactiveThresh():
			c.dispatch.ToPlayer(p.PlayerID, protocol.PlayerInactive, nil)
			c.cascadeUnregister(p.PlayerID)
		case since >= c.cfg.PlayerIdleThresh():
			if p.ActivityState != protocol.Idle {
				_ = c.store.SetConnectionState(p.PlayerID, p.ConnectionState, protocol.Idle)
				c.dispatch.ToPlayer(p.PlayerID, protocol.PlayerIdle, nil)
			}
		}
	}
}

// sweepIdleGames marks games idle, then cancels them as inactive, mirroring
// sweepIdlePlayers but over game last-active timestamps.
func (c *Coordinator) sweepIdleGames() {
	now := c.clk.Now()
	for _, g := range c.store.Games() {
		if g.State != protocol.Advertised && g.State != protocol.Started {
			continue
		}
		since := now.Sub(g.LastActiveAt)
		switch {
		case since >= c.cfg.GameInactiveThresh():
			c.dispatch.ToGame(g, protocol.GameInactive, nil)
			c.cancelGame(g, protocol.ReasonInactive, "no activity within the inactive threshold")
		case since >= c.cfg.GameIdleThresh():
			if g.ActivityState != protocol.Idle {
				_ = c.store.SetGameActivityState(g.GameID, protocol.Idle)
				c.dispatch.ToGame(g, protocol.GameIdle, nil)
			}
		}
	}
}

// sweepObsoleteGames purges COMPLETED/CANCELLED games once they've sat past
// the retention threshold (spec.md §3 invariant: no player still
// references such a game, so the purge needs no notification).
func (c *Coordinator) sweepObsoleteGames() {
	now := c.clk.Now()
	for _, g := range c.store.Games() {
		if g.State != protocol.Completed && g.State != protocol.Cancelled {
			continue
		}
		if g.CompletedAt == nil {
			continue
		}
		if now.Sub(*g.CompletedAt) >= c.cfg.GameRetentionThresh() {
			c.store.RemoveGame(g.GameID)
		}
	}
}
