// internal/handlers/utils.go
package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/playtogether/internal/models"
)

// maxBodyBytes bounds request bodies; moves and create requests are tiny.
const maxBodyBytes = 1 << 16

// extractToken returns the auth token from the auth_token cookie or a Bearer header.
func extractToken(r *http.Request) string {
	if c, err := r.Cookie(authCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func sessionID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid session id %q", r.PathValue("id"))
	}
	return id, nil
}

// sessionView adds the derived current_turn field clients render from.
type sessionView struct {
	*models.GameSession
	CurrentTurn string `json:"current_turn,omitempty"`
}

func view(s *models.GameSession) sessionView {
	return sessionView{GameSession: s, CurrentTurn: s.CurrentTurn()}
}
