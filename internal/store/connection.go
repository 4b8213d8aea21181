package store

import (
	"time"

	"github.com/dhirschfeld/apologies-server/internal/protocol"
)

// Connection is a live websocket connection, tracked from accept until
// close. A connection exists before REGISTER_PLAYER completes (it has no
// PlayerID yet) and is rebound to a different connection id across a
// REREGISTER_PLAYER (spec.md §4.4).
type Connection struct {
	ConnectionID string
	PlayerID     string // empty until bound by REGISTER_PLAYER/REREGISTER_PLAYER
	Send         chan<- []byte
	ConnectedAt  time.Time
}

// AddConnection tracks a newly-accepted websocket connection.
func (s *Store) AddConnection(connectionID string, send chan<- []byte) *Connection {
	conn := &Connection{
		ConnectionID: connectionID,
		Send:         send,
		ConnectedAt:  s.clock.Now(),
	}
	s.connections[connectionID] = conn
	return conn
}

// Connection looks up a tracked connection by id.
func (s *Store) Connection(connectionID string) (*Connection, bool) {
	c, ok := s.connections[connectionID]
	return c, ok
}

// RemoveConnection stops tracking a connection, e.g. after its socket closes.
func (s *Store) RemoveConnection(connectionID string) {
	delete(s.connections, connectionID)
}

// BindConnection associates connectionID with playerID, detaching any
// previous connection that was bound to the same player (the
// bind_reregister contract: reregistering supersedes the player's old
// connection, it does not duplicate it). It fails with ALREADY_CONNECTED if
// connectionID itself is already bound to a *different* player -- one
// connection may never speak for two identities at once (spec.md §3's
// Connection invariant), which a stale REGISTER_PLAYER/REREGISTER_PLAYER
// retry on an already-bound socket would otherwise silently violate.
func (s *Store) BindConnection(connectionID, playerID string) error {
	conn, ok := s.connections[connectionID]
	if !ok {
		return newErr(protocol.InvalidRequest, "unknown connection %s", connectionID)
	}
	player, ok := s.players[playerID]
	if !ok {
		return newErr(protocol.InvalidPlayer, "unknown player %s", playerID)
	}
	if conn.PlayerID != "" && conn.PlayerID != playerID {
		return newErr(protocol.AlreadyConnected, "connection %s is already bound to player %s", connectionID, conn.PlayerID)
	}
	if player.ConnectionID != "" && player.ConnectionID != connectionID {
		delete(s.connections, player.ConnectionID)
	}
	conn.PlayerID = playerID
	player.ConnectionID = connectionID
	return nil
}

// ConnectionCount reports the number of live websocket connections.
func (s *Store) ConnectionCount() int { return len(s.connections) }
