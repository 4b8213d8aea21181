// Package dispatch is the Event Dispatcher from spec.md §4/§6: it turns an
// EventKind+context into wire bytes once and fans it out to an audience --
// a single connection, a set of player-ids, every connected player, or
// every seated player of a game -- using the same non-blocking
// send-channel-with-default pattern as the teacher's Hub.sendTo/
// broadcastRooms/sendMsgToRoom. A connection whose send buffer is full is
// marked dead rather than blocking the coordinator loop.
package dispatch

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dhirschfeld/apologies-server/internal/protocol"
	"github.com/dhirschfeld/apologies-server/internal/store"
)

// Dispatcher fans events out to one or more connections. Its only state is
// a reference to the store and the list of connections marked dead, and it
// is only ever called from the coordinator's mailbox goroutine.
type Dispatcher struct {
	store *store.Store
	// dead collects connection ids whose send buffer overflowed during the
	// current dispatch call, so the coordinator can run the disconnect
	// cascade for them after the mailbox item finishes processing.
	dead []string
}

// New returns a Dispatcher backed by s.
func New(s *store.Store) *Dispatcher {
	return &Dispatcher{store: s}
}

// DrainDead returns and clears the connection ids marked dead since the
// last call, so the coordinator can cascade their disconnection.
func (d *Dispatcher) DrainDead() []string {
	dead := d.dead
	d.dead = nil
	return dead
}

func (d *Dispatcher) encode(kind protocol.EventKind, context interface{}) []byte {
	b, err := json.Marshal(protocol.OutEnvelope{Message: kind, Context: context})
	if err != nil {
		log.Error().Err(err).Str("event", string(kind)).Msg("dispatch: failed to encode event")
		return nil
	}
	return b
}

func (d *Dispatcher) sendRaw(connectionID string, b []byte) {
	conn, ok := d.store.Connection(connectionID)
	if !ok {
		return
	}
	select {
	case conn.Send <- b:
	default:
		d.dead = append(d.dead, connectionID)
	}
}

// ToConnection sends an event to exactly one connection, regardless of
// whether it is bound to a registered player yet (used for REQUEST_FAILED
// replies to malformed pre-registration frames).
func (d *Dispatcher) ToConnection(connectionID string, kind protocol.EventKind, context interface{}) {
	b := d.encode(kind, context)
	if b == nil {
		return
	}
	d.sendRaw(connectionID, b)
}

// ToPlayer sends an event to a single player's current connection, if any.
func (d *Dispatcher) ToPlayer(playerID string, kind protocol.EventKind, context interface{}) {
	player, err := d.store.Player(playerID)
	if err != nil || player.ConnectionID == "" {
		return
	}
	d.ToConnection(player.ConnectionID, kind, context)
}

// ToPlayers sends an event to each of a set of players' current connections.
func (d *Dispatcher) ToPlayers(playerIDs []string, kind protocol.EventKind, context interface{}) {
	b := d.encode(kind, context)
	if b == nil {
		return
	}
	for _, playerID := range playerIDs {
		player, err := d.store.Player(playerID)
		if err != nil || player.ConnectionID == "" {
			continue
		}
		d.sendRaw(player.ConnectionID, b)
	}
}

// ToAllConnected sends an event to every currently-registered, connected player.
func (d *Dispatcher) ToAllConnected(kind protocol.EventKind, context interface{}) {
	b := d.encode(kind, context)
	if b == nil {
		return
	}
	for _, player := range d.store.Players() {
		if player.ConnectionID == "" || player.ConnectionState != protocol.Connected {
			continue
		}
		d.sendRaw(player.ConnectionID, b)
	}
}

// ToGame sends an event to every human seat currently occupied in g.
func (d *Dispatcher) ToGame(g *store.Game, kind protocol.EventKind, context interface{}) {
	b := d.encode(kind, context)
	if b == nil {
		return
	}
	for _, seat := range g.Seats {
		if seat.Type != protocol.Human || seat.PlayerID == "" {
			continue
		}
		player, err := d.store.Player(seat.PlayerID)
		if err != nil || player.ConnectionID == "" {
			continue
		}
		d.sendRaw(player.ConnectionID, b)
	}
}
