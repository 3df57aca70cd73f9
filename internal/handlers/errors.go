// internal/handlers/errors.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/jason-s-yu/playtogether/internal/catalog"
	"github.com/jason-s-yu/playtogether/internal/game"
	"github.com/jason-s-yu/playtogether/internal/session"
)

// apiError is the body of every failed request and websocket rejection.
type apiError struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{session.ErrNotFound, http.StatusNotFound, "not_found"},
	{session.ErrInvalidGame, http.StatusBadRequest, "invalid_game"},
	{catalog.ErrNotFound, http.StatusBadRequest, "invalid_game"},
	{session.ErrInvalidParticipant, http.StatusBadRequest, "invalid_participant"},
	{session.ErrAlreadyFull, http.StatusConflict, "already_full"},
	{session.ErrSelfJoin, http.StatusConflict, "self_join"},
	{session.ErrNotParticipant, http.StatusForbidden, "not_participant"},
	{session.ErrWaitingForPartner, http.StatusConflict, "waiting_for_partner"},
	{session.ErrConflict, http.StatusConflict, "conflict"},
	{game.ErrNotYourTurn, http.StatusConflict, "not_your_turn"},
	{game.ErrCellOccupied, http.StatusConflict, "cell_occupied"},
	{game.ErrGameOver, http.StatusConflict, "game_over"},
	{game.ErrInvalidIndex, http.StatusBadRequest, "invalid_index"},
	{game.ErrInvalidMove, http.StatusBadRequest, "invalid_move"},
}

// errorStatus maps a store or reducer error to an HTTP status and a stable machine code.
func errorStatus(err error) (int, string) {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.status, ec.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func toAPIError(err error) (int, apiError) {
	status, code := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	return status, apiError{Code: code, Message: msg}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := toAPIError(err)
	if status == http.StatusInternalServerError {
		s.Logger.WithError(err).Errorf("%s %s failed", r.Method, r.URL.Path)
	}
	writeJSON(w, status, body)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, apiError{Code: "bad_request", Message: msg})
}
