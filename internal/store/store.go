// Package store is the State Store: the single in-memory registry of
// connections, players, and games that the coordinator loop (internal/
// coordinator) is the sole mutator of. Nothing in this package takes a
// mutex -- single-threaded access is an invariant enforced by the caller,
// the same way apologiesserver.state's module-level maps were only ever
// meant to be touched while holding the asyncio lock. Grounded on
// apologiesserver.state (TrackedPlayer/TrackedGame/_GAME_MAP/_PLAYER_MAP).
package store

import (
	"fmt"

	"github.com/dhirschfeld/apologies-server/internal/clock"
	"github.com/dhirschfeld/apologies-server/internal/protocol"
)

// Error wraps a FailureReason so handlers can turn a store error directly
// into a REQUEST_FAILED context without re-deriving the reason.
type Error struct {
	Reason  protocol.FailureReason
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("store: %s: %s", e.Reason, e.Message) }

func newErr(reason protocol.FailureReason, format string, args ...interface{}) *Error {
	return &Error{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Store is the coordinator's in-memory state. Zero value is not usable;
// construct with New.
type Store struct {
	clock clock.Clock

	connections map[string]*Connection
	players     map[string]*Player
	handles     map[string]string // handle -> player id
	games       map[string]*Game
}

// New returns an empty Store using clk as its time source.
func New(clk clock.Clock) *Store {
	return &Store{
		clock:       clk,
		connections: make(map[string]*Connection),
		players:     make(map[string]*Player),
		handles:     make(map[string]string),
		games:       make(map[string]*Game),
	}
}

// Clock exposes the store's time source to callers that need to stamp
// derived records consistently.
func (s *Store) Clock() clock.Clock { return s.clock }

// Counts returns the current registry sizes, used for the capacity limits
// in spec.md §6 (websocket_limit, total_game_limit, in_progress_game_limit,
// registered_player_limit).
type Counts struct {
	Connections int
	Players     int
	Games       int
	GamesInPlay int
}

func (s *Store) Counts() Counts {
	c := Counts{
		Connections: len(s.connections),
		Players:     len(s.players),
		Games:       len(s.games),
	}
	for _, g := range s.games {
		if g.State == protocol.Started {
			c.GamesInPlay++
		}
	}
	return c
}
