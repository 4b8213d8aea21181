package store

import (
	"time"

	"github.com/dhirschfeld/apologies-server/internal/protocol"
)

// Player is the tracked state for a registered player, spec.md §3.
// Grounded on apologiesserver.state.TrackedPlayer.
type Player struct {
	PlayerID     string
	Handle       string
	ConnectionID string

	RegisteredAt time.Time
	LastActiveAt time.Time

	ConnectionState protocol.ConnectionState
	ActivityState   protocol.ActivityState
	PlayState       protocol.PlayState

	GameID string // current game, if any
}

// RegisterPlayer tracks a newly-registered player bound to connectionID,
// failing with HandleTaken if the handle is already in use (spec.md §4.1
// invariant: handles are unique among currently-registered players).
func (s *Store) RegisterPlayer(playerID, handle, connectionID string) (*Player, error) {
	if _, taken := s.handles[handle]; taken {
		return nil, newErr(protocol.HandleTaken, "handle %q already registered", handle)
	}
	now := s.clock.Now()
	p := &Player{
		PlayerID:        playerID,
		Handle:          handle,
		ConnectionID:    connectionID,
		RegisteredAt:    now,
		LastActiveAt:    now,
		ConnectionState: protocol.Connected,
		ActivityState:   protocol.Active,
		PlayState:       protocol.Waiting,
	}
	s.players[playerID] = p
	s.handles[handle] = playerID
	if conn, ok := s.connections[connectionID]; ok {
		conn.PlayerID = playerID
	}
	return p, nil
}

// Player looks up a tracked player by id.
func (s *Store) Player(playerID string) (*Player, error) {
	p, ok := s.players[playerID]
	if !ok {
		return nil, newErr(protocol.InvalidPlayer, "unknown player %s", playerID)
	}
	return p, nil
}

// PlayerByHandle looks up a tracked player by handle.
func (s *Store) PlayerByHandle(handle string) (*Player, error) {
	id, ok := s.handles[handle]
	if !ok {
		return nil, newErr(protocol.InvalidPlayer, "unknown handle %s", handle)
	}
	return s.Player(id)
}

// Players returns every tracked player, in no particular order.
func (s *Store) Players() []*Player {
	out := make([]*Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	return out
}

// MarkActive refreshes a player's last-active timestamp and activity/
// connection state, the effect of any inbound request (spec.md §5).
func (s *Store) MarkActive(playerID string) error {
	p, err := s.Player(playerID)
	if err != nil {
		return err
	}
	p.LastActiveAt = s.clock.Now()
	p.ActivityState = protocol.Active
	p.ConnectionState = protocol.Connected
	return nil
}

// UnregisterPlayer removes a player and its handle reservation. The caller
// (coordinator cascade) is responsible for first resolving any game
// membership consequences.
func (s *Store) UnregisterPlayer(playerID string) error {
	p, err := s.Player(playerID)
	if err != nil {
		return err
	}
	delete(s.handles, p.Handle)
	delete(s.players, playerID)
	if p.ConnectionID != "" {
		delete(s.connections, p.ConnectionID)
	}
	return nil
}

// SetPlayerGame updates the game a player is currently associated with
// (empty string clears it) and its play state.
func (s *Store) SetPlayerGame(playerID, gameID string, playState protocol.PlayState) error {
	p, err := s.Player(playerID)
	if err != nil {
		return err
	}
	p.GameID = gameID
	p.PlayState = playState
	return nil
}

// SetConnectionState updates a player's connection/activity bookkeeping
// directly, used by the idle sweepers and the disconnect cascade.
func (s *Store) SetConnectionState(playerID string, cs protocol.ConnectionState, as protocol.ActivityState) error {
	p, err := s.Player(playerID)
	if err != nil {
		return err
	}
	p.ConnectionState = cs
	p.ActivityState = as
	return nil
}
