// internal/models/session.go
package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/playtogether/internal/game"
)

// Status is the lifecycle stage of a GameSession. It only ever moves forward.
type Status string

const (
	StatusWaiting    Status = "waiting_for_partner"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// WinnerDraw is stored in GameSession.Winner when nobody won.
const WinnerDraw = "draw"

// MaxParticipants is the seat count of every game in the catalog.
const MaxParticipants = 2

func (s Status) rank() int {
	switch s {
	case StatusWaiting:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted:
		return 2
	}
	return -1
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s.rank() >= 0
}

// CanAdvanceTo reports whether moving from s to next keeps the lifecycle forward-only.
// Staying on the same status is allowed.
func (s Status) CanAdvanceTo(next Status) bool {
	return s.Valid() && next.Valid() && next.rank() >= s.rank()
}

// GameSession is one two-participant game, waiting for a partner, in progress or finished.
type GameSession struct {
	ID     uuid.UUID `json:"id"`
	GameID string    `json:"game_id"`

	// Participants holds the creator first and the joiner second.
	Participants []string   `json:"participants"`
	State        game.State `json:"state"`
	Status       Status     `json:"status"`

	// Winner is empty while undecided, otherwise a participant id or WinnerDraw.
	Winner string `json:"winner,omitempty"`

	// Version increments on every committed change. Clients can drop snapshots older than
	// one they already applied.
	Version int `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the session, state included.
func (s *GameSession) Clone() *GameSession {
	cp := *s
	cp.Participants = slices.Clone(s.Participants)
	if s.State != nil {
		cp.State = s.State.Clone()
	}
	return &cp
}

// Seat returns the seat index of participant, or -1 if they do not play in this session.
func (s *GameSession) Seat(participant string) int {
	for i, p := range s.Participants {
		if p == participant {
			return i
		}
	}
	return -1
}

// CurrentTurn returns the participant expected to move next, or "" when nobody is.
func (s *GameSession) CurrentTurn() string {
	if s.Status != StatusInProgress || s.State == nil {
		return ""
	}
	seat := s.State.Turn()
	if seat < 0 || seat >= len(s.Participants) {
		return ""
	}
	return s.Participants[seat]
}

// WinnerFor translates a reducer outcome winner into the stored representation.
func (s *GameSession) WinnerFor(outcome int) string {
	switch {
	case outcome == game.WinnerDraw:
		return WinnerDraw
	case outcome >= 0 && outcome < len(s.Participants):
		return s.Participants[outcome]
	}
	return ""
}

// StateDecoder restores the game-specific state of a session. *catalog.Catalog satisfies it.
type StateDecoder interface {
	DecodeState(gameID string, data []byte) (game.State, error)
}

type sessionJSON struct {
	ID           uuid.UUID       `json:"id"`
	GameID       string          `json:"game_id"`
	Participants []string        `json:"participants"`
	State        json.RawMessage `json:"state"`
	Status       Status          `json:"status"`
	Winner       string          `json:"winner,omitempty"`
	Version      int             `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// DecodeSession parses a session snapshot produced by json.Marshal(*GameSession).
func DecodeSession(data []byte, dec StateDecoder) (*GameSession, error) {
	var raw sessionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	s := &GameSession{
		ID:           raw.ID,
		GameID:       raw.GameID,
		Participants: raw.Participants,
		Status:       raw.Status,
		Winner:       raw.Winner,
		Version:      raw.Version,
		CreatedAt:    raw.CreatedAt,
		UpdatedAt:    raw.UpdatedAt,
	}
	if len(raw.State) > 0 && string(raw.State) != "null" {
		st, err := dec.DecodeState(raw.GameID, raw.State)
		if err != nil {
			return nil, err
		}
		s.State = st
	}
	return s, nil
}
