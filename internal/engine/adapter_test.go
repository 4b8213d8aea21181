package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoSeats() []SeatAssignment {
	return []SeatAssignment{{Seat: 0, Human: true}, {Seat: 1, Human: true}}
}

func TestStartProducesValidState(t *testing.T) {
	a := NewLuaAdapter()
	state, err := a.Start(twoSeats(), Standard)
	require.NoError(t, err)
	assert.Len(t, state.Seats, 2)
	assert.GreaterOrEqual(t, state.DrawnValue, 1)
	assert.LessOrEqual(t, state.DrawnValue, 6)
	for _, seat := range state.Seats {
		for _, pos := range seat.Pawns {
			assert.Equal(t, -1, pos)
		}
	}
}

func TestStartRejectsBadSeatCounts(t *testing.T) {
	a := NewLuaAdapter()
	_, err := a.Start([]SeatAssignment{{Seat: 0, Human: true}}, Standard)
	assert.Error(t, err)
}

func TestLegalMovesFallsBackToPassWhenStuck(t *testing.T) {
	a := NewLuaAdapter()
	state, err := a.Start(twoSeats(), Standard)
	require.NoError(t, err)
	state.DrawnValue = 2 // no pawn out of the start area yet, and 2 doesn't release one

	moves, err := a.LegalMoves(state, 0)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, PassMoveID, moves[0].ID)
}

func TestApplyAdvancesTurnOnNonSix(t *testing.T) {
	a := NewLuaAdapter()
	state, err := a.Start(twoSeats(), Standard)
	require.NoError(t, err)
	state.DrawnValue = 1
	state.ActiveSeat = 0

	next, outcome, err := a.Apply(state, 0, PassMoveID)
	require.NoError(t, err)
	assert.Equal(t, Continue, outcome.Kind)
	assert.Equal(t, 1, next.ActiveSeat)
}

func TestApplyGrantsAnotherTurnOnSix(t *testing.T) {
	a := NewLuaAdapter()
	state, err := a.Start(twoSeats(), Standard)
	require.NoError(t, err)
	state.DrawnValue = 6
	state.ActiveSeat = 0

	next, outcome, err := a.Apply(state, 0, "advance:0")
	require.NoError(t, err)
	assert.Equal(t, Continue, outcome.Kind)
	assert.Equal(t, 0, next.ActiveSeat)
	assert.Equal(t, 0, next.Seats[0].Pawns[0])
}

func TestForfeitEndsGameWithOneSeatRemaining(t *testing.T) {
	a := NewLuaAdapter()
	state, err := a.Start(twoSeats(), Standard)
	require.NoError(t, err)

	_, outcome, err := a.Forfeit(state, 0)
	require.NoError(t, err)
	assert.Equal(t, GameOver, outcome.Kind)
	assert.Equal(t, 1, outcome.Winner)
}

func TestPlayerViewOnlyAttachesMovesOnYourTurn(t *testing.T) {
	a := NewLuaAdapter()
	state, err := a.Start(twoSeats(), Standard)
	require.NoError(t, err)
	state.ActiveSeat = 0

	viewerZero, err := a.PlayerView(state, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, viewerZero.LegalMoves)

	viewerOne, err := a.PlayerView(state, 1)
	require.NoError(t, err)
	assert.Empty(t, viewerOne.LegalMoves)
	assert.Len(t, viewerOne.Seats, 2)
}

func TestPlayerViewRejectsOutOfRangeSeat(t *testing.T) {
	a := NewLuaAdapter()
	state, err := a.Start(twoSeats(), Standard)
	require.NoError(t, err)

	_, err = a.PlayerView(state, 5)
	assert.Error(t, err)
}
