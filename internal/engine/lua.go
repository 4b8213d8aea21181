package engine

import (
	_ "embed"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

//go:embed rules/prelude.lua
var preludeSrc string

//go:embed rules/legal_moves.lua
var legalMovesSrc string

//go:embed rules/apply.lua
var applySrc string

// newLuaState creates a fresh Lua VM preloaded with the rule scripts. Each call
// into the engine gets its own VM and closes it before returning, so the
// engine holds no state between calls (spec.md §9, "Engine statelessness").
func newLuaState() (*lua.LState, error) {
	L := lua.NewState()
	L.SetGlobal("TRACK_LENGTH", lua.LNumber(trackLength))
	for _, src := range []string{preludeSrc, legalMovesSrc, applySrc} {
		if err := L.DoString(src); err != nil {
			L.Close()
			return nil, fmt.Errorf("engine: loading rule script: %w", err)
		}
	}
	return L, nil
}

// pushState converts a Go State into the Lua table shape the rule scripts expect.
func pushState(L *lua.LState, s State) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("seed", lua.LNumber(s.Seed))
	tbl.RawSetString("mode", lua.LString(s.Mode))
	tbl.RawSetString("active_seat", lua.LNumber(s.ActiveSeat))
	tbl.RawSetString("drawn_value", lua.LNumber(s.DrawnValue))

	seats := L.NewTable()
	for _, seat := range s.Seats {
		seatTbl := L.NewTable()
		seatTbl.RawSetString("human", lua.LBool(seat.Human))
		seatTbl.RawSetString("forfeited", lua.LBool(seat.Forfeited))
		pawns := L.NewTable()
		for _, p := range seat.Pawns {
			pawns.Append(lua.LNumber(p))
		}
		seatTbl.RawSetString("pawns", pawns)
		seats.Append(seatTbl)
	}
	tbl.RawSetString("seats", seats)
	return tbl
}

// pullState converts a Lua table back into a Go State after a script runs.
func pullState(tbl *lua.LTable) State {
	var s State
	s.Seed = int64(lua.LVAsNumber(tbl.RawGetString("seed")))
	s.Mode = Mode(lua.LVAsString(tbl.RawGetString("mode")))
	s.ActiveSeat = int(lua.LVAsNumber(tbl.RawGetString("active_seat")))
	s.DrawnValue = int(lua.LVAsNumber(tbl.RawGetString("drawn_value")))

	seatsTbl, _ := tbl.RawGetString("seats").(*lua.LTable)
	if seatsTbl != nil {
		seatsTbl.ForEach(func(_ lua.LValue, v lua.LValue) {
			seatTbl, ok := v.(*lua.LTable)
			if !ok {
				return
			}
			var seat SeatState
			seat.Human = lua.LVAsBool(seatTbl.RawGetString("human"))
			seat.Forfeited = lua.LVAsBool(seatTbl.RawGetString("forfeited"))
			pawnsTbl, _ := seatTbl.RawGetString("pawns").(*lua.LTable)
			idx := 0
			if pawnsTbl != nil {
				pawnsTbl.ForEach(func(_ lua.LValue, pv lua.LValue) {
					if idx < len(seat.Pawns) {
						seat.Pawns[idx] = int(lua.LVAsNumber(pv))
						idx++
					}
				})
			}
			s.Seats = append(s.Seats, seat)
		})
	}
	return s
}

func pullMoves(tbl *lua.LTable) []Move {
	var moves []Move
	tbl.ForEach(func(_ lua.LValue, v lua.LValue) {
		mt, ok := v.(*lua.LTable)
		if !ok {
			return
		}
		moves = append(moves, Move{
			ID:   lua.LVAsString(mt.RawGetString("id")),
			Pawn: int(lua.LVAsNumber(mt.RawGetString("pawn"))),
			To:   int(lua.LVAsNumber(mt.RawGetString("to"))),
		})
	})
	return moves
}

func pullOutcome(tbl *lua.LTable) Outcome {
	kind := lua.LVAsString(tbl.RawGetString("kind"))
	if kind == "game_over" {
		return Outcome{Kind: GameOver, Winner: int(lua.LVAsNumber(tbl.RawGetString("winner")))}
	}
	return Outcome{Kind: Continue, NextSeat: int(lua.LVAsNumber(tbl.RawGetString("next_seat")))}
}
