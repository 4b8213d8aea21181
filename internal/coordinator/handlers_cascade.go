package coordinator

import (
	"github.com/dhirschfeld/apologies-server/internal/protocol"
	"github.com/dhirschfeld/apologies-server/internal/store"
)

// cascadeUnregister removes a player entirely: any game they advertised but
// never started is cancelled, any in-progress game they hold a seat in
// forfeits that seat, and the player record and handle reservation are
// freed. This is the shared graph behind UNREGISTER_PLAYER and the
// inactive-player sweep (spec.md §4.5, "cascades"); a closing websocket
// goes through cascadeDisconnect instead, which keeps the player registered.
func (c *Coordinator) cascadeUnregister(playerID string) {
	player, err := c.store.Player(playerID)
	if err != nil {
		return
	}
	if player.GameID != "" {
		c.leaveGame(player.GameID, playerID, protocol.SeatQuit)
	}
	c.cancelAdvertisedGamesBy(playerID)
	_ = c.store.UnregisterPlayer(playerID)
}

// leaveGame removes playerID from a game it currently occupies. For a game
// that never started, it cancels the game if playerID advertised it and
// otherwise just frees the seat; for a game in progress, it forfeits the seat.
// seatState records why the seat is being vacated (QUIT for an explicit
// quit/unregister, DISCONNECTED for a dropped socket) so the seat table and
// any later viability check reflect the real cause.
func (c *Coordinator) leaveGame(gameID, playerID string, seatState protocol.SeatState) {
	g, err := c.store.Game(gameID)
	if err != nil {
		return
	}
	switch g.State {
	case protocol.Advertised:
		if g.AdvertiserID == playerID {
			c.cancelGame(g, protocol.ReasonCancelled, "advertiser left")
		} else {
			c.leaveAdvertisedSeat(g, playerID)
		}
	case protocol.Started:
		c.quitStartedGame(g, playerID, seatState)
	}
}

func (c *Coordinator) leaveAdvertisedSeat(g *store.Game, playerID string) {
	filtered := g.Seats[:0]
	for _, seat := range g.Seats {
		if seat.PlayerID != playerID {
			filtered = append(filtered, seat)
		}
	}
	g.Seats = filtered
	c.dispatch.ToGame(g, protocol.GamePlayerChange, protocol.GamePlayerChangeContext{
		Comment: mustHandle(c.store, playerID) + " left",
		Seats:   seatSummaries(g),
	})
}

func (c *Coordinator) cancelAdvertisedGamesBy(playerID string) {
	for _, g := range c.store.Games() {
		if g.AdvertiserID == playerID && g.State == protocol.Advertised {
			c.cancelGame(g, protocol.ReasonCancelled, "advertiser unregistered")
		}
	}
}

// cascadeDisconnect handles a dropped socket without unregistering the
// player (spec.md §4.5): the handle stays reserved so a REREGISTER_PLAYER
// within the inactive threshold can resume the same identity. Per §4.4's
// cascade paragraph, a player currently seated in a game gets the same
// seat/viability treatment as an explicit QUIT_GAME -- otherwise a
// disconnected seat whose turn comes up would stall the game forever --
// just flagged DISCONNECTED instead of QUIT.
func (c *Coordinator) cascadeDisconnect(playerID string) {
	player, err := c.store.Player(playerID)
	if err == nil && player.GameID != "" {
		c.leaveGame(player.GameID, playerID, protocol.SeatDisconnected)
	}
	_ = c.store.SetConnectionState(playerID, protocol.Disconnected, protocol.Idle)
}

// handleConnectionClosed is invoked both for a real websocket close and for
// a connection the dispatcher just marked dead after a full send buffer.
func (c *Coordinator) handleConnectionClosed(connectionID string) {
	conn, ok := c.store.Connection(connectionID)
	if !ok {
		return
	}
	playerID := conn.PlayerID
	c.store.RemoveConnection(connectionID)
	if playerID == "" {
		return
	}
	c.cascadeDisconnect(playerID)
}
