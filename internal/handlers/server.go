// internal/handlers/server.go
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/playtogether/internal/auth"
	"github.com/jason-s-yu/playtogether/internal/config"
	"github.com/jason-s-yu/playtogether/internal/middleware"
	"github.com/jason-s-yu/playtogether/internal/realtime"
	"github.com/jason-s-yu/playtogether/internal/session"
	"github.com/sirupsen/logrus"
)

// Server holds what the HTTP and websocket handlers share.
type Server struct {
	Store           *session.Store
	Hub             *realtime.Hub
	Issuer          *auth.Issuer
	Personalization config.Personalization
	OriginPatterns  []string
	Logger          *logrus.Logger
}

// Routes builds the mux with every endpoint behind the logging middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", PingHandler)
	mux.HandleFunc("GET /me", MeHandler(s))
	mux.HandleFunc("GET /personalization", PersonalizationHandler(s))
	mux.HandleFunc("GET /games", ListGamesHandler(s))
	mux.HandleFunc("GET /stats", StatsHandler(s))

	mux.HandleFunc("POST /sessions", CreateSessionHandler(s))
	mux.HandleFunc("GET /sessions", ListSessionsHandler(s))
	mux.HandleFunc("GET /sessions/{id}", GetSessionHandler(s))
	mux.HandleFunc("POST /sessions/{id}/join", JoinSessionHandler(s))
	mux.HandleFunc("POST /sessions/{id}/move", MoveHandler(s))

	mux.HandleFunc("GET /sessions/ws/{id}", SessionWSHandler(s))

	return middleware.LogMiddleware(s.Logger)(mux)
}
