// internal/session/errors.go
package session

import "errors"

// Store errors. Reducer rejections (game.ErrNotYourTurn, ...) are passed through unchanged.
var (
	ErrNotFound           = errors.New("session not found")
	ErrInvalidGame        = errors.New("invalid game")
	ErrAlreadyFull        = errors.New("session already has two participants")
	ErrSelfJoin           = errors.New("cannot join your own session")
	ErrNotParticipant     = errors.New("not a participant of this session")
	ErrWaitingForPartner  = errors.New("session is still waiting for a partner")
	ErrInvalidParticipant = errors.New("participant id is required")
	ErrConflict           = errors.New("session was modified concurrently")
	ErrAlreadyExists      = errors.New("session already exists")
)
