// internal/handlers/identity.go
package handlers

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

const authCookieName = "auth_token"

// identify returns the caller's participant id. A caller without a valid token is a new
// guest: an id is minted and returned in the auth_token cookie. Must run before anything
// is written to w.
func (s *Server) identify(w http.ResponseWriter, r *http.Request) (string, error) {
	if token := extractToken(r); token != "" {
		participant, err := s.Issuer.Verify(token)
		if err == nil {
			return participant, nil
		}
		s.Logger.Debugf("discarding invalid token from %s: %v", r.RemoteAddr, err)
	}

	participant := "guest-" + uuid.NewString()
	token, err := s.Issuer.Issue(participant)
	if err != nil {
		return "", fmt.Errorf("failed to issue guest token: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
	return participant, nil
}
