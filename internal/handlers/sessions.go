// internal/handlers/sessions.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/jason-s-yu/playtogether/internal/game"
	"github.com/jason-s-yu/playtogether/internal/models"
	"github.com/jason-s-yu/playtogether/internal/session"
)

// PingHandler answers GET / so load balancers can check the service.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "playtogether"})
}

// MeHandler returns the caller's participant id, minting a guest identity if needed.
func MeHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		participant, err := s.identify(w, r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"participant_id": participant})
	}
}

// PersonalizationHandler serves the configured landing page copy.
func PersonalizationHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Personalization)
	}
}

// ListGamesHandler serves the catalog.
func ListGamesHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Store.Catalog().List())
	}
}

type createSessionRequest struct {
	GameID string `json:"game_id"`
}

// CreateSessionHandler opens a session with the caller in the first seat.
func CreateSessionHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		participant, err := s.identify(w, r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var req createSessionRequest
		if err := decodeBody(r, &req); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		sess, err := s.Store.Create(r.Context(), req.GameID, participant)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, view(sess))
	}
}

// Page sizes for GET /sessions.
const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ListSessionsHandler lists sessions newest first, optionally by ?status= and ?mine=true.
// ?limit= caps the page at up to 100 sessions, default 20.
func ListSessionsHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := session.Filter{
			Status: models.Status(r.URL.Query().Get("status")),
			Limit:  defaultListLimit,
		}
		if f.Status != "" && !f.Status.Valid() {
			writeBadRequest(w, "unknown status "+string(f.Status))
			return
		}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > maxListLimit {
				writeBadRequest(w, "limit must be between 1 and "+strconv.Itoa(maxListLimit))
				return
			}
			f.Limit = n
		}
		if r.URL.Query().Get("mine") == "true" {
			participant, err := s.identify(w, r)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			f.Participant = participant
		}
		list, err := s.Store.List(r.Context(), f)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out := make([]sessionView, len(list))
		for i, sess := range list {
			out[i] = view(sess)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GetSessionHandler returns the current snapshot of one session.
func GetSessionHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := sessionID(r)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		sess, err := s.Store.Get(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view(sess))
	}
}

// JoinSessionHandler seats the caller as the second participant.
func JoinSessionHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		participant, err := s.identify(w, r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		id, err := sessionID(r)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		sess, err := s.Store.Join(r.Context(), id, participant)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view(sess))
	}
}

// MoveHandler submits one move as the caller. The body is the move itself, e.g.
// {"row":0,"col":2}, {"card_index":5} or {"question_index":1,"answer":"Blue"}.
func MoveHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		participant, err := s.identify(w, r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		id, err := sessionID(r)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		var mv game.Move
		if err := decodeBody(r, &mv); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		sess, err := s.Store.ApplyMove(r.Context(), id, participant, mv)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view(sess))
	}
}

// StatsHandler reports the caller's results across completed sessions.
func StatsHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		participant, err := s.identify(w, r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		st, err := s.Store.Stats(r.Context(), participant)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}
