// internal/game/trivia.go
package game

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// LoveTriviaID is the catalog id for Love Trivia.
const LoveTriviaID = "love_trivia"

// Question kinds.
const (
	QuestionOpen           = "open"
	QuestionDate           = "date"
	QuestionMultipleChoice = "multiple_choice"
)

// TriviaQuestion is one prompt in the deck.
type TriviaQuestion struct {
	Question string   `json:"question"`
	Type     string   `json:"type"`
	Options  []string `json:"options,omitempty"`
	Points   int      `json:"points"`
}

// TriviaAnswer records who answered which question with what.
type TriviaAnswer struct {
	QuestionIndex int    `json:"question_index"`
	Seat          int    `json:"seat"`
	Answer        string `json:"answer"`
}

// TriviaState tracks progress through the question deck. Both seats answer every question,
// first seat first, and the shared score grows when their answers agree.
type TriviaState struct {
	CurrentQuestion int              `json:"current_question"`
	CurrentPlayer   int              `json:"current_player"`
	Questions       []TriviaQuestion `json:"questions"`
	Answers         []TriviaAnswer   `json:"answers"`
	Score           int              `json:"score"`
}

func (s *TriviaState) GameID() string { return LoveTriviaID }

func (s *TriviaState) Turn() int { return s.CurrentPlayer }

func (s *TriviaState) Clone() State {
	cp := *s
	cp.Questions = make([]TriviaQuestion, len(s.Questions))
	for i, q := range s.Questions {
		q.Options = slices.Clone(q.Options)
		cp.Questions[i] = q
	}
	cp.Answers = slices.Clone(s.Answers)
	return &cp
}

func (s *TriviaState) finished() bool {
	return s.CurrentQuestion >= len(s.Questions)
}

// answerFor returns the answer a seat already gave to question qi.
func (s *TriviaState) answerFor(qi, seat int) (string, bool) {
	for _, a := range s.Answers {
		if a.QuestionIndex == qi && a.Seat == seat {
			return a.Answer, true
		}
	}
	return "", false
}

// DefaultTriviaQuestions is the deck every new Love Trivia session starts with.
func DefaultTriviaQuestions() []TriviaQuestion {
	return []TriviaQuestion{
		{Question: "What's your favorite memory together?", Type: QuestionOpen, Points: 10},
		{Question: "When did we first meet?", Type: QuestionDate, Points: 15},
		{Question: "What's my favorite color?", Type: QuestionMultipleChoice, Options: []string{"Red", "Blue", "Green", "Purple"}, Points: 5},
		{Question: "Where would we go on a dream trip?", Type: QuestionMultipleChoice, Options: []string{"Paris", "Tokyo", "Bali", "Iceland"}, Points: 5},
		{Question: "What song reminds you of us?", Type: QuestionOpen, Points: 10},
	}
}

// LoveTrivia is the reducer for the cooperative question game. It has no adversarial
// winner: a finished deck is reported as a draw so both clients agree on the result.
type LoveTrivia struct {
	// Questions overrides the default deck when non-empty.
	Questions []TriviaQuestion
}

func (t LoveTrivia) NewState() State {
	qs := t.Questions
	if len(qs) == 0 {
		qs = DefaultTriviaQuestions()
	}
	st := &TriviaState{CurrentPlayer: SeatFirst, Questions: qs, Answers: []TriviaAnswer{}}
	// hand out a private copy of the deck
	return st.Clone()
}

func (LoveTrivia) DecodeState(data []byte) (State, error) {
	st := &TriviaState{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (LoveTrivia) Apply(st State, seat int, mv Move) (Outcome, error) {
	cur, ok := st.(*TriviaState)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: state is %T", ErrInvalidMove, st)
	}
	if cur.finished() {
		return Outcome{}, ErrGameOver
	}
	if !validSeat(seat) || seat != cur.CurrentPlayer {
		return Outcome{}, ErrNotYourTurn
	}
	if mv.QuestionIndex == nil {
		return Outcome{}, fmt.Errorf("%w: question_index is required", ErrInvalidMove)
	}
	if *mv.QuestionIndex != cur.CurrentQuestion {
		return Outcome{}, fmt.Errorf("%w: question %d, expected %d", ErrInvalidIndex, *mv.QuestionIndex, cur.CurrentQuestion)
	}

	q := cur.Questions[cur.CurrentQuestion]
	answer := strings.TrimSpace(mv.Answer)
	switch q.Type {
	case QuestionMultipleChoice:
		if !containsFold(q.Options, answer) {
			return Outcome{}, fmt.Errorf("%w: %q is not an option", ErrInvalidMove, answer)
		}
	default:
		// open questions only need an acknowledgment such as "discussed"
		if answer == "" {
			return Outcome{}, fmt.Errorf("%w: answer is required", ErrInvalidMove)
		}
	}

	next := cur.Clone().(*TriviaState)
	next.Answers = append(next.Answers, TriviaAnswer{QuestionIndex: next.CurrentQuestion, Seat: seat, Answer: answer})

	if seat == SeatFirst {
		next.CurrentPlayer = SeatSecond
		return Outcome{State: next, Winner: WinnerNone}, nil
	}

	// second answer closes the question
	if q.Type != QuestionOpen {
		if first, ok := next.answerFor(next.CurrentQuestion, SeatFirst); ok && strings.EqualFold(first, answer) {
			next.Score += q.Points
		}
	}
	next.CurrentQuestion++
	next.CurrentPlayer = SeatFirst
	if next.finished() {
		return Outcome{State: next, Completed: true, Winner: WinnerDraw}, nil
	}
	return Outcome{State: next, Winner: WinnerNone}, nil
}

func containsFold(options []string, s string) bool {
	for _, o := range options {
		if strings.EqualFold(o, s) {
			return true
		}
	}
	return false
}
