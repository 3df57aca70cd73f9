// internal/game/tictac.go
package game

import (
	"encoding/json"
	"fmt"
	"slices"
)

// TicTacHeartsID is the catalog id for Tic-Tac-Hearts.
const TicTacHeartsID = "tic_tac_hearts"

// Marks placed on the board by each seat.
const (
	MarkFirst  = "❤️"
	MarkSecond = "💙"
)

const boardSize = 3

// winningLines lists the 8 lines (rows, columns, diagonals) as [row, col] cells.
var winningLines = [8][3][2]int{
	{{0, 0}, {0, 1}, {0, 2}},
	{{1, 0}, {1, 1}, {1, 2}},
	{{2, 0}, {2, 1}, {2, 2}},
	{{0, 0}, {1, 0}, {2, 0}},
	{{0, 1}, {1, 1}, {2, 1}},
	{{0, 2}, {1, 2}, {2, 2}},
	{{0, 0}, {1, 1}, {2, 2}},
	{{0, 2}, {1, 1}, {2, 0}},
}

// TicTacMove is one entry of the move history.
type TicTacMove struct {
	Seat int `json:"seat"`
	Row  int `json:"row"`
	Col  int `json:"col"`
}

// TicTacState is the Tic-Tac-Hearts board. Empty cells hold "".
type TicTacState struct {
	Board         [boardSize][boardSize]string `json:"board"`
	CurrentPlayer int                          `json:"current_player"`
	Moves         []TicTacMove                 `json:"moves"`
}

func (s *TicTacState) GameID() string { return TicTacHeartsID }

func (s *TicTacState) Turn() int { return s.CurrentPlayer }

func (s *TicTacState) Clone() State {
	cp := *s
	cp.Moves = slices.Clone(s.Moves)
	return &cp
}

// winningMark returns the mark filling a complete line, or "" if none does.
func (s *TicTacState) winningMark() string {
	for _, line := range winningLines {
		a := s.Board[line[0][0]][line[0][1]]
		if a == "" {
			continue
		}
		if a == s.Board[line[1][0]][line[1][1]] && a == s.Board[line[2][0]][line[2][1]] {
			return a
		}
	}
	return ""
}

func (s *TicTacState) full() bool {
	for r := range s.Board {
		for c := range s.Board[r] {
			if s.Board[r][c] == "" {
				return false
			}
		}
	}
	return true
}

func markForSeat(seat int) string {
	if seat == SeatFirst {
		return MarkFirst
	}
	return MarkSecond
}

func seatForMark(mark string) int {
	if mark == MarkFirst {
		return SeatFirst
	}
	return SeatSecond
}

// TicTacHearts is the reducer for a 3x3 tic-tac-toe where the first complete line wins.
type TicTacHearts struct{}

func (TicTacHearts) NewState() State {
	return &TicTacState{CurrentPlayer: SeatFirst, Moves: []TicTacMove{}}
}

func (TicTacHearts) DecodeState(data []byte) (State, error) {
	st := &TicTacState{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (TicTacHearts) Apply(st State, seat int, mv Move) (Outcome, error) {
	cur, ok := st.(*TicTacState)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: state is %T", ErrInvalidMove, st)
	}
	if cur.winningMark() != "" || cur.full() {
		return Outcome{}, ErrGameOver
	}
	if !validSeat(seat) || seat != cur.CurrentPlayer {
		return Outcome{}, ErrNotYourTurn
	}
	if mv.Row == nil || mv.Col == nil {
		return Outcome{}, fmt.Errorf("%w: row and col are required", ErrInvalidMove)
	}
	row, col := *mv.Row, *mv.Col
	if row < 0 || row >= boardSize || col < 0 || col >= boardSize {
		return Outcome{}, fmt.Errorf("%w: (%d,%d)", ErrInvalidIndex, row, col)
	}
	if cur.Board[row][col] != "" {
		return Outcome{}, fmt.Errorf("%w: (%d,%d)", ErrCellOccupied, row, col)
	}

	next := cur.Clone().(*TicTacState)
	next.Board[row][col] = markForSeat(seat)
	next.Moves = append(next.Moves, TicTacMove{Seat: seat, Row: row, Col: col})

	if mark := next.winningMark(); mark != "" {
		return Outcome{State: next, Completed: true, Winner: seatForMark(mark)}, nil
	}
	if next.full() {
		return Outcome{State: next, Completed: true, Winner: WinnerDraw}, nil
	}
	next.CurrentPlayer = otherSeat(seat)
	return Outcome{State: next, Winner: WinnerNone}, nil
}
