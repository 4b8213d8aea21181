package store

import (
	"time"

	"github.com/dhirschfeld/apologies-server/internal/engine"
	"github.com/dhirschfeld/apologies-server/internal/protocol"
)

// Seat is one seat at a game table, human or programmatic.
type Seat struct {
	Seat     int
	PlayerID string // empty for a programmatic (engine-controlled) seat
	Handle   string
	Type     protocol.PlayerType
	State    protocol.SeatState
}

// Game is the tracked state for an advertised or in-progress game, spec.md
// §3. Grounded on apologiesserver.state.TrackedGame.
type Game struct {
	GameID           string
	Name             string
	Mode             engine.Mode
	AdvertiserID     string
	MaxPlayers       int
	Visibility       protocol.Visibility
	InvitedHandles   []string

	AdvertisedAt time.Time
	LastActiveAt time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time

	State            protocol.GameState
	ActivityState    protocol.ActivityState
	CompletionReason protocol.CompletionReason

	Seats []Seat

	EngineState engine.State
}

// CreateGame advertises a new game on behalf of advertiserID, seating the
// advertiser in seat 0. Fails with InvalidPlayer if the advertiser isn't a
// tracked player.
func (s *Store) CreateGame(gameID, advertiserID, name string, mode engine.Mode, maxPlayers int, vis protocol.Visibility, invited []string) (*Game, error) {
	advertiser, err := s.Player(advertiserID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	g := &Game{
		GameID:         gameID,
		Name:           name,
		Mode:           mode,
		AdvertiserID:   advertiserID,
		MaxPlayers:     maxPlayers,
		Visibility:     vis,
		InvitedHandles: invited,
		AdvertisedAt:   now,
		LastActiveAt:   now,
		State:          protocol.Advertised,
		ActivityState:  protocol.Active,
		Seats: []Seat{{
			Seat:     0,
			PlayerID: advertiserID,
			Handle:   advertiser.Handle,
			Type:     protocol.Human,
			State:    protocol.SeatJoined,
		}},
	}
	s.games[gameID] = g
	return g, nil
}

// Game looks up a tracked game by id.
func (s *Store) Game(gameID string) (*Game, error) {
	g, ok := s.games[gameID]
	if !ok {
		return nil, newErr(protocol.InvalidGame, "unknown game %s", gameID)
	}
	return g, nil
}

// Games returns every tracked game, in no particular order.
func (s *Store) Games() []*Game {
	out := make([]*Game, 0, len(s.games))
	for _, g := range s.games {
		out = append(out, g)
	}
	return out
}

// JoinGame seats playerID into the next open seat of an advertised game.
// Fails with GameAlreadyStarted, NoSeats, NotInvited, or InvalidPlayer per
// spec.md §4.4's JOIN_GAME contract.
func (s *Store) JoinGame(gameID, playerID string) (*Game, int, error) {
	g, err := s.Game(gameID)
	if err != nil {
		return nil, 0, err
	}
	if g.State != protocol.Advertised {
		return nil, 0, newErr(protocol.GameAlreadyStarted, "game %s already started", gameID)
	}
	player, err := s.Player(playerID)
	if err != nil {
		return nil, 0, err
	}
	if g.Visibility == protocol.Private && !handleInvited(g.InvitedHandles, player.Handle) {
		return nil, 0, newErr(protocol.NotInvited, "handle %q not invited to game %s", player.Handle, gameID)
	}
	if len(g.Seats) >= g.MaxPlayers {
		return nil, 0, newErr(protocol.NoSeats, "game %s has no open seats", gameID)
	}
	seatNum := len(g.Seats)
	g.Seats = append(g.Seats, Seat{
		Seat:     seatNum,
		PlayerID: playerID,
		Handle:   player.Handle,
		Type:     protocol.Human,
		State:    protocol.SeatJoined,
	})
	g.LastActiveAt = s.clock.Now()
	return g, seatNum, nil
}

func handleInvited(invited []string, handle string) bool {
	for _, h := range invited {
		if h == handle {
			return true
		}
	}
	return false
}

// StartGame fills any remaining open seats with programmatic players,
// transitions the game to STARTED, and records the initial engine state.
func (s *Store) StartGame(gameID string, initial engine.State, fillHandlePrefix string) (*Game, error) {
	g, err := s.Game(gameID)
	if err != nil {
		return nil, err
	}
	if g.State != protocol.Advertised {
		return nil, newErr(protocol.GameAlreadyStarted, "game %s already started", gameID)
	}
	for len(g.Seats) < g.MaxPlayers {
		seatNum := len(g.Seats)
		g.Seats = append(g.Seats, Seat{
			Seat:  seatNum,
			Type:  protocol.Programmatic,
			State: protocol.SeatPlaying,
		})
	}
	for i := range g.Seats {
		if g.Seats[i].State == protocol.SeatJoined {
			g.Seats[i].State = protocol.SeatPlaying
		}
	}
	now := s.clock.Now()
	g.State = protocol.Started
	g.StartedAt = &now
	g.LastActiveAt = now
	g.EngineState = initial
	return g, nil
}

// RecordMove persists the engine state and activity timestamp after a
// successful EXECUTE_MOVE, and updates seat state if the game just ended.
func (s *Store) RecordMove(gameID string, next engine.State) (*Game, error) {
	g, err := s.Game(gameID)
	if err != nil {
		return nil, err
	}
	g.EngineState = next
	g.LastActiveAt = s.clock.Now()
	g.ActivityState = protocol.Active
	if next.Winner != nil {
		s.completeGame(g, protocol.ReasonWon)
		for i := range g.Seats {
			if g.Seats[i].State == protocol.SeatPlaying {
				g.Seats[i].State = protocol.SeatFinished
			}
		}
	}
	return g, nil
}

// SeatOf returns the seat playerID occupies in g, or -1 if none.
func (g *Game) SeatOf(playerID string) int {
	for _, seat := range g.Seats {
		if seat.PlayerID == playerID {
			return seat.Seat
		}
	}
	return -1
}

// Viable reports whether g still satisfies spec.md §4.4's viability rule:
// a started game needs at least one human seat still PLAYING, and at least
// one other seat (human or programmatic) still PLAYING alongside it, or
// there's no real game left to referee. Losing viability is what turns a
// QUIT_GAME or disconnect into a NOT_VIABLE cancellation instead of a
// forfeit.
func (g *Game) Viable() bool {
	var playing, humanPlaying int
	for _, seat := range g.Seats {
		if seat.State != protocol.SeatPlaying {
			continue
		}
		playing++
		if seat.Type == protocol.Human {
			humanPlaying++
		}
	}
	return playing >= 2 && humanPlaying >= 1
}

// SetSeatState updates one seat's state in place.
func (s *Store) SetSeatState(gameID string, seatNum int, state protocol.SeatState) error {
	g, err := s.Game(gameID)
	if err != nil {
		return err
	}
	if seatNum < 0 || seatNum >= len(g.Seats) {
		return newErr(protocol.InvalidGameState, "seat %d out of range for game %s", seatNum, gameID)
	}
	g.Seats[seatNum].State = state
	return nil
}

// CancelGame transitions an advertised or in-progress game to CANCELLED.
func (s *Store) CancelGame(gameID string, reason protocol.CompletionReason) (*Game, error) {
	g, err := s.Game(gameID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	g.State = protocol.Cancelled
	g.CompletedAt = &now
	g.CompletionReason = reason
	g.LastActiveAt = now
	return g, nil
}

func (s *Store) completeGame(g *Game, reason protocol.CompletionReason) {
	now := s.clock.Now()
	g.State = protocol.Completed
	g.CompletedAt = &now
	g.CompletionReason = reason
	g.LastActiveAt = now
}

// MarkGameActivity refreshes a game's activity bookkeeping, the effect of
// any request touching it (spec.md §5).
func (s *Store) MarkGameActivity(gameID string) error {
	g, err := s.Game(gameID)
	if err != nil {
		return err
	}
	g.LastActiveAt = s.clock.Now()
	g.ActivityState = protocol.Active
	return nil
}

// SetGameActivityState updates a game's activity state directly, used by
// the idle-game sweeper.
func (s *Store) SetGameActivityState(gameID string, as protocol.ActivityState) error {
	g, err := s.Game(gameID)
	if err != nil {
		return err
	}
	g.ActivityState = as
	return nil
}

// RemoveGame stops tracking a game entirely, used by the obsolete-game sweep.
func (s *Store) RemoveGame(gameID string) {
	delete(s.games, gameID)
}
