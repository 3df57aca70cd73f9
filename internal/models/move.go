// internal/models/move.go
package models

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/playtogether/internal/game"
)

// MoveRecord is the history entry written for every accepted move. It is what the
// historian persists.
type MoveRecord struct {
	SessionID   uuid.UUID `json:"session_id"`
	GameID      string    `json:"game_id"`
	Version     int       `json:"version"`
	Participant string    `json:"participant"`
	Move        game.Move `json:"move"`
	Status      Status    `json:"status"`
	Winner      string    `json:"winner,omitempty"`
	Timestamp   int64     `json:"timestamp"`
}
