package engine

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// Adapter is the stateless wrapper contract from spec.md §6: start a game
// for N seats, apply a chosen move by id, query legal moves and per-player
// view, and detect game over. Every method is a pure function of its
// arguments; no Adapter implementation may retain state across calls.
type Adapter interface {
	Start(seats []SeatAssignment, mode Mode) (State, error)
	LegalMoves(state State, seat int) ([]Move, error)
	Apply(state State, seat int, moveID string) (State, Outcome, error)
	Forfeit(state State, seat int) (State, Outcome, error)
	PlayerView(state State, seat int) (PlayerView, error)
}

// LuaAdapter implements Adapter by running the embedded Lua rule scripts.
type LuaAdapter struct{}

// NewLuaAdapter returns the production Engine Adapter.
func NewLuaAdapter() *LuaAdapter { return &LuaAdapter{} }

// Start initializes a fresh game state for the given seats. The draw
// sequence always starts from seed 0, so Start is a pure function of its
// inputs, per the adapter contract, and every game sees the same sequence
// of draws; the coordinator stores the result unchanged.
func (a *LuaAdapter) Start(seats []SeatAssignment, mode Mode) (State, error) {
	if len(seats) < 2 || len(seats) > 4 {
		return State{}, fmt.Errorf("engine: start requires 2-4 seats, got %d", len(seats))
	}
	s := State{
		Mode:       mode,
		ActiveSeat: 0,
		Seats:      make([]SeatState, len(seats)),
	}
	for _, seat := range seats {
		if seat.Seat < 0 || seat.Seat >= len(seats) {
			return State{}, errInvalidSeat(seat.Seat, len(seats))
		}
		st := SeatState{Human: seat.Human}
		for i := range st.Pawns {
			st.Pawns[i] = -1
		}
		s.Seats[seat.Seat] = st
	}

	L, err := newLuaState()
	if err != nil {
		return State{}, err
	}
	defer L.Close()

	if err := L.CallByParam(lua.P{Fn: L.GetGlobal("next_draw"), NRet: 2, Protect: true}, lua.LNumber(s.Seed)); err != nil {
		return State{}, fmt.Errorf("engine: seeding first draw: %w", err)
	}
	drawn := L.Get(-1)
	seed := L.Get(-2)
	L.Pop(2)
	s.Seed = int64(lua.LVAsNumber(seed))
	s.DrawnValue = int(lua.LVAsNumber(drawn))

	return s, nil
}

// LegalMoves returns the moves available to seat given the state's current draw.
func (a *LuaAdapter) LegalMoves(state State, seat int) ([]Move, error) {
	if err := checkSeat(state, seat); err != nil {
		return nil, err
	}
	L, err := newLuaState()
	if err != nil {
		return nil, err
	}
	defer L.Close()

	if err := L.CallByParam(lua.P{Fn: L.GetGlobal("legal_moves"), NRet: 1, Protect: true}, pushState(L, state), lua.LNumber(seat)); err != nil {
		return nil, fmt.Errorf("engine: legal_moves: %w", err)
	}
	ret, ok := L.Get(-1).(*lua.LTable)
	L.Pop(1)
	if !ok {
		return nil, fmt.Errorf("engine: legal_moves returned unexpected type")
	}
	return pullMoves(ret), nil
}

// Apply plays moveID for seat and returns the resulting state and outcome.
func (a *LuaAdapter) Apply(state State, seat int, moveID string) (State, Outcome, error) {
	if err := checkSeat(state, seat); err != nil {
		return State{}, Outcome{}, err
	}
	if state.Seats[seat].Forfeited {
		return State{}, Outcome{}, fmt.Errorf("engine: seat %d has forfeited", seat)
	}

	L, err := newLuaState()
	if err != nil {
		return State{}, Outcome{}, err
	}
	defer L.Close()

	if err := L.CallByParam(lua.P{Fn: L.GetGlobal("apply"), NRet: 2, Protect: true},
		pushState(L, state), lua.LNumber(seat), lua.LString(moveID)); err != nil {
		return State{}, Outcome{}, fmt.Errorf("engine: apply: %w", err)
	}
	outcomeTbl, _ := L.Get(-1).(*lua.LTable)
	stateTbl, _ := L.Get(-2).(*lua.LTable)
	L.Pop(2)
	if outcomeTbl == nil || stateTbl == nil {
		return State{}, Outcome{}, fmt.Errorf("engine: apply returned unexpected types")
	}

	next := pullState(stateTbl)
	next.Mode = state.Mode
	outcome := pullOutcome(outcomeTbl)
	if outcome.Kind == GameOver {
		w := outcome.Winner
		next.Winner = &w
	}
	return next, outcome, nil
}

// Forfeit marks seat as forfeited (spec.md §4.4, QUIT_GAME) and advances the
// turn past it if it was that seat's turn.
func (a *LuaAdapter) Forfeit(state State, seat int) (State, Outcome, error) {
	if err := checkSeat(state, seat); err != nil {
		return State{}, Outcome{}, err
	}

	L, err := newLuaState()
	if err != nil {
		return State{}, Outcome{}, err
	}
	defer L.Close()

	if err := L.CallByParam(lua.P{Fn: L.GetGlobal("forfeit"), NRet: 2, Protect: true},
		pushState(L, state), lua.LNumber(seat)); err != nil {
		return State{}, Outcome{}, fmt.Errorf("engine: forfeit: %w", err)
	}
	outcomeTbl, _ := L.Get(-1).(*lua.LTable)
	stateTbl, _ := L.Get(-2).(*lua.LTable)
	L.Pop(2)
	if outcomeTbl == nil || stateTbl == nil {
		return State{}, Outcome{}, fmt.Errorf("engine: forfeit returned unexpected types")
	}

	next := pullState(stateTbl)
	next.Mode = state.Mode
	outcome := pullOutcome(outcomeTbl)
	if outcome.Kind == GameOver {
		w := outcome.Winner
		next.Winner = &w
	}
	return next, outcome, nil
}

// PlayerView renders state from seat's perspective. Every seat's pawns are
// fully visible in this engine (no hidden information), so PlayerView only
// needs to annotate whose turn it is and what moves are legal for the
// viewer when it is their turn.
func (a *LuaAdapter) PlayerView(state State, seat int) (PlayerView, error) {
	if err := checkSeat(state, seat); err != nil {
		return PlayerView{}, err
	}
	view := PlayerView{
		ActiveSeat: state.ActiveSeat,
		DrawnValue: state.DrawnValue,
		YourSeat:   seat,
		GameOver:   state.Winner != nil,
	}
	if state.Winner != nil {
		view.WinnerSeat = *state.Winner
	}
	for i, st := range state.Seats {
		sv := SeatView{
			Human:     st.Human,
			Forfeited: st.Forfeited,
		}
		if i < len(Colors) {
			sv.Color = Colors[i]
		}
		for _, p := range st.Pawns {
			sv.Pawns = append(sv.Pawns, PawnView{Position: p, Home: p >= trackLength})
		}
		view.Seats = append(view.Seats, sv)
	}
	if !view.GameOver && state.ActiveSeat == seat {
		moves, err := a.LegalMoves(state, seat)
		if err != nil {
			return PlayerView{}, err
		}
		view.LegalMoves = moves
	}
	return view, nil
}

func checkSeat(state State, seat int) error {
	if seat < 0 || seat >= len(state.Seats) {
		return errInvalidSeat(seat, len(state.Seats))
	}
	return nil
}
