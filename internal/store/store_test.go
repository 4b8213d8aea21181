package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhirschfeld/apologies-server/internal/clock"
	"github.com/dhirschfeld/apologies-server/internal/engine"
	"github.com/dhirschfeld/apologies-server/internal/protocol"
)

func newTestStore() *Store {
	return New(clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestRegisterPlayerHandleTaken(t *testing.T) {
	s := newTestStore()
	s.AddConnection("conn-1", make(chan []byte, 1))
	_, err := s.RegisterPlayer("player-1", "alice", "conn-1")
	require.NoError(t, err)

	s.AddConnection("conn-2", make(chan []byte, 1))
	_, err = s.RegisterPlayer("player-2", "alice", "conn-2")
	require.Error(t, err)
	var storeErr *Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, protocol.HandleTaken, storeErr.Reason)
}

func TestBindConnectionRebindsAndDetachesOld(t *testing.T) {
	s := newTestStore()
	s.AddConnection("conn-1", make(chan []byte, 1))
	p, err := s.RegisterPlayer("player-1", "alice", "conn-1")
	require.NoError(t, err)

	s.AddConnection("conn-2", make(chan []byte, 1))
	require.NoError(t, s.BindConnection("conn-2", p.PlayerID))

	_, stillThere := s.Connection("conn-1")
	assert.False(t, stillThere)
	conn2, ok := s.Connection("conn-2")
	require.True(t, ok)
	assert.Equal(t, p.PlayerID, conn2.PlayerID)

	got, err := s.Player(p.PlayerID)
	require.NoError(t, err)
	assert.Equal(t, "conn-2", got.ConnectionID)
}

func TestBindConnectionRejectsDoubleBoundConnection(t *testing.T) {
	s := newTestStore()
	s.AddConnection("conn-1", make(chan []byte, 1))
	alice, err := s.RegisterPlayer("player-1", "alice", "conn-1")
	require.NoError(t, err)

	s.AddConnection("conn-2", make(chan []byte, 1))
	bob, err := s.RegisterPlayer("player-2", "bob", "conn-2")
	require.NoError(t, err)

	// conn-1 already speaks for alice; it must not also be able to bind bob.
	err = s.BindConnection("conn-1", bob.PlayerID)
	require.Error(t, err)
	var storeErr *Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, protocol.AlreadyConnected, storeErr.Reason)

	conn1, ok := s.Connection("conn-1")
	require.True(t, ok)
	assert.Equal(t, alice.PlayerID, conn1.PlayerID, "the rejected bind must not have changed anything")
}

func TestUnregisterPlayerFreesHandle(t *testing.T) {
	s := newTestStore()
	s.AddConnection("conn-1", make(chan []byte, 1))
	p, err := s.RegisterPlayer("player-1", "alice", "conn-1")
	require.NoError(t, err)

	require.NoError(t, s.UnregisterPlayer(p.PlayerID))
	_, err = s.Player(p.PlayerID)
	assert.Error(t, err)

	s.AddConnection("conn-2", make(chan []byte, 1))
	_, err = s.RegisterPlayer("player-2", "alice", "conn-2")
	assert.NoError(t, err)
}

func TestJoinGameEnforcesSeatsAndInvitation(t *testing.T) {
	s := newTestStore()
	s.AddConnection("conn-1", make(chan []byte, 1))
	advertiser, err := s.RegisterPlayer("player-1", "alice", "conn-1")
	require.NoError(t, err)

	g, err := s.CreateGame("game-1", advertiser.PlayerID, "alice's game", engine.Standard, 2, protocol.Private, []string{"bob", "dave"})
	require.NoError(t, err)
	assert.Equal(t, protocol.Advertised, g.State)

	s.AddConnection("conn-2", make(chan []byte, 1))
	carol, err := s.RegisterPlayer("player-2", "carol", "conn-2")
	require.NoError(t, err)

	_, _, err = s.JoinGame("game-1", carol.PlayerID)
	require.Error(t, err)
	var storeErr *Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, protocol.NotInvited, storeErr.Reason)

	s.AddConnection("conn-3", make(chan []byte, 1))
	bob, err := s.RegisterPlayer("player-3", "bob", "conn-3")
	require.NoError(t, err)

	_, seat, err := s.JoinGame("game-1", bob.PlayerID)
	require.NoError(t, err)
	assert.Equal(t, 1, seat)

	s.AddConnection("conn-4", make(chan []byte, 1))
	dave, err := s.RegisterPlayer("player-4", "dave", "conn-4")
	require.NoError(t, err)
	_, _, err = s.JoinGame("game-1", dave.PlayerID)
	require.Error(t, err)
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, protocol.NoSeats, storeErr.Reason)
}

func TestStartGameFillsProgrammaticSeats(t *testing.T) {
	s := newTestStore()
	s.AddConnection("conn-1", make(chan []byte, 1))
	advertiser, err := s.RegisterPlayer("player-1", "alice", "conn-1")
	require.NoError(t, err)

	g, err := s.CreateGame("game-1", advertiser.PlayerID, "alice's game", engine.Standard, 4, protocol.Public, nil)
	require.NoError(t, err)

	g, err = s.StartGame(g.GameID, engine.State{}, "bot")
	require.NoError(t, err)
	assert.Equal(t, protocol.Started, g.State)
	assert.Len(t, g.Seats, 4)
	assert.Equal(t, protocol.Programmatic, g.Seats[1].Type)
	assert.Equal(t, protocol.SeatPlaying, g.Seats[0].State)
}

func TestRecordMoveCompletesGameOnWinner(t *testing.T) {
	s := newTestStore()
	s.AddConnection("conn-1", make(chan []byte, 1))
	advertiser, err := s.RegisterPlayer("player-1", "alice", "conn-1")
	require.NoError(t, err)
	g, err := s.CreateGame("game-1", advertiser.PlayerID, "alice's game", engine.Standard, 2, protocol.Public, nil)
	require.NoError(t, err)
	_, err = s.StartGame(g.GameID, engine.State{}, "bot")
	require.NoError(t, err)

	winner := 0
	g, err = s.RecordMove(g.GameID, engine.State{Winner: &winner})
	require.NoError(t, err)
	assert.Equal(t, protocol.Completed, g.State)
	assert.Equal(t, protocol.ReasonWon, g.CompletionReason)
}
