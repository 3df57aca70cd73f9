// internal/game/memory.go
package game

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"slices"
)

// MemoryMatchID is the catalog id for Memory Match.
const MemoryMatchID = "memory_match"

// memorySymbols are the faces of the deck; each appears twice.
var memorySymbols = []string{"❤️", "💙", "💚", "💛", "💜", "🧡", "🤍", "🖤"}

// MemoryState is the deck plus the per-turn flip state.
//
// Flipped holds at most one index between moves: the second flip of a turn is resolved
// immediately, and the pair it formed is left in LastPair so both clients can show it.
type MemoryState struct {
	Cards         []string `json:"cards"`
	Flipped       []int    `json:"flipped"`
	Matched       []int    `json:"matched"`
	CurrentPlayer int      `json:"current_player"`
	// Pairs counts the pairs attributed to each seat.
	Pairs    [NumSeats]int `json:"pairs"`
	LastPair []int         `json:"last_pair,omitempty"`
}

func (s *MemoryState) GameID() string { return MemoryMatchID }

func (s *MemoryState) Turn() int { return s.CurrentPlayer }

func (s *MemoryState) Clone() State {
	cp := *s
	cp.Cards = slices.Clone(s.Cards)
	cp.Flipped = slices.Clone(s.Flipped)
	cp.Matched = slices.Clone(s.Matched)
	cp.LastPair = slices.Clone(s.LastPair)
	return &cp
}

func (s *MemoryState) finished() bool {
	return len(s.Cards) > 0 && len(s.Matched) >= len(s.Cards)
}

func (s *MemoryState) isMatched(idx int) bool {
	return slices.Contains(s.Matched, idx)
}

// MemoryMatch is the reducer for the pair-finding game. A found pair keeps the turn;
// a miss passes it. The seat with more pairs wins, equal pairs is a draw.
type MemoryMatch struct {
	// Shuffle reorders a new deck in place. Defaults to math/rand/v2.
	Shuffle func(cards []string)
}

func (m MemoryMatch) NewState() State {
	cards := make([]string, 0, len(memorySymbols)*2)
	cards = append(cards, memorySymbols...)
	cards = append(cards, memorySymbols...)
	shuffle := m.Shuffle
	if shuffle == nil {
		shuffle = func(c []string) {
			rand.Shuffle(len(c), func(i, j int) { c[i], c[j] = c[j], c[i] })
		}
	}
	shuffle(cards)
	return &MemoryState{
		Cards:         cards,
		Flipped:       []int{},
		Matched:       []int{},
		CurrentPlayer: SeatFirst,
	}
}

func (MemoryMatch) DecodeState(data []byte) (State, error) {
	st := &MemoryState{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (MemoryMatch) Apply(st State, seat int, mv Move) (Outcome, error) {
	cur, ok := st.(*MemoryState)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: state is %T", ErrInvalidMove, st)
	}
	if cur.finished() {
		return Outcome{}, ErrGameOver
	}
	if !validSeat(seat) || seat != cur.CurrentPlayer {
		return Outcome{}, ErrNotYourTurn
	}
	if mv.CardIndex == nil {
		return Outcome{}, fmt.Errorf("%w: card_index is required", ErrInvalidMove)
	}
	idx := *mv.CardIndex
	if idx < 0 || idx >= len(cur.Cards) {
		return Outcome{}, fmt.Errorf("%w: card %d", ErrInvalidIndex, idx)
	}
	if cur.isMatched(idx) || slices.Contains(cur.Flipped, idx) {
		return Outcome{}, fmt.Errorf("%w: card %d is already face up", ErrCellOccupied, idx)
	}
	if len(cur.Flipped) >= 2 {
		return Outcome{}, fmt.Errorf("%w: two cards already flipped", ErrInvalidMove)
	}

	next := cur.Clone().(*MemoryState)
	next.Flipped = append(next.Flipped, idx)
	if len(next.Flipped) < 2 {
		next.LastPair = nil
		return Outcome{State: next, Winner: WinnerNone}, nil
	}

	a, b := next.Flipped[0], next.Flipped[1]
	next.LastPair = []int{a, b}
	next.Flipped = []int{}
	if next.Cards[a] == next.Cards[b] {
		next.Matched = append(next.Matched, a, b)
		next.Pairs[seat]++
	} else {
		next.CurrentPlayer = otherSeat(seat)
	}

	if !next.finished() {
		return Outcome{State: next, Winner: WinnerNone}, nil
	}
	out := Outcome{State: next, Completed: true, Winner: WinnerDraw}
	switch {
	case next.Pairs[SeatFirst] > next.Pairs[SeatSecond]:
		out.Winner = SeatFirst
	case next.Pairs[SeatSecond] > next.Pairs[SeatFirst]:
		out.Winner = SeatSecond
	}
	return out, nil
}
