// internal/game/game.go
package game

import "errors"

// Rejection reasons returned by reducers. A rejected move never mutates state.
var (
	ErrNotYourTurn  = errors.New("not your turn")
	ErrCellOccupied = errors.New("cell already taken")
	ErrInvalidIndex = errors.New("index out of range")
	ErrGameOver     = errors.New("game is over")
	ErrInvalidMove  = errors.New("invalid move")
)

// Seats in a two-player game. Participants[0] always plays SeatFirst.
const (
	SeatFirst  = 0
	SeatSecond = 1
	NumSeats   = 2
)

// Outcome winners that are not a seat index.
const (
	WinnerNone = -1
	WinnerDraw = -2
)

// Move is the union of every per-game move payload. Each reducer reads only the fields it needs;
// pointers let us tell "row 0" apart from "row missing".
type Move struct {
	// tic_tac_hearts
	Row *int `json:"row,omitempty"`
	Col *int `json:"col,omitempty"`

	// memory_match
	CardIndex *int `json:"card_index,omitempty"`

	// love_trivia
	Answer        string `json:"answer,omitempty"`
	QuestionIndex *int   `json:"question_index,omitempty"`
}

// State is the game-specific payload of a session. Implementations are plain structs
// that round-trip through JSON.
type State interface {
	// GameID is the catalog id this state belongs to.
	GameID() string
	// Clone returns a deep copy so reducers can work on it without touching the committed state.
	Clone() State
	// Turn is the seat expected to act next.
	Turn() int
}

// Outcome is what a reducer produces for an accepted move.
type Outcome struct {
	State     State
	Completed bool
	// Winner is a seat index, WinnerNone or WinnerDraw.
	Winner int
}

// Reducer is the contract every game type satisfies. Apply must be pure: it may only
// return a new state (or a rejection) and must leave st untouched.
type Reducer interface {
	// NewState builds the state a fresh session starts with.
	NewState() State
	// Apply validates mv from the participant sitting in seat against st.
	Apply(st State, seat int, mv Move) (Outcome, error)
	// DecodeState restores a state previously marshalled to JSON.
	DecodeState(data []byte) (State, error)
}

func otherSeat(seat int) int {
	return 1 - seat
}

func validSeat(seat int) bool {
	return seat == SeatFirst || seat == SeatSecond
}
