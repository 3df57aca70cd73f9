// internal/handlers/session_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/playtogether/internal/game"
	"github.com/jason-s-yu/playtogether/internal/middleware"
	"github.com/jason-s-yu/playtogether/internal/models"
	"github.com/sirupsen/logrus"
)

// SessionMessage is what a client sends over the session socket.
type SessionMessage struct {
	// Type is one of "move", "sync" or "ping".
	Type string `json:"type"`

	// Move carries the move fields for Type "move".
	Move *game.Move `json:"move,omitempty"`
}

// sessionEvent is a snapshot pushed to the client.
type sessionEvent struct {
	Type    models.EventType `json:"type"`
	Session sessionView      `json:"session"`
	Actor   string           `json:"actor,omitempty"`
}

const wsWriteTimeout = 5 * time.Second

// SessionWSHandler upgrades to a websocket bound to one session. It sends the current
// snapshot, then every committed snapshot, and accepts moves from participants. Rejections
// go back to the sender only.
func SessionWSHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			http.Error(w, "Invalid session id format", http.StatusBadRequest)
			return
		}
		if _, err := s.Store.Get(r.Context(), id); err != nil {
			status, body := toAPIError(err)
			http.Error(w, body.Message, status)
			return
		}

		// identify before the upgrade so a guest cookie can still be set
		participant, err := s.identify(w, r)
		if err != nil {
			s.Logger.Warnf("identification failed for session %s: %v", id, err)
			http.Error(w, "Authentication failed", http.StatusInternalServerError)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"game"},
			OriginPatterns: s.OriginPatterns,
		})
		if err != nil {
			s.Logger.Warnf("WebSocket accept error for session %s: %v", id, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		if c.Subprotocol() != "game" {
			s.Logger.Warnf("Client for session %s connected with invalid subprotocol: %s", id, c.Subprotocol())
			c.Close(BadSubprotocolError, "Client must use the 'game' subprotocol.")
			return
		}
		middleware.LogWebSocketConnect(s.Logger, r.RemoteAddr, r.URL.Path)

		// subscribe before reading the snapshot so no commit falls between the two
		events, unsubscribe := s.Hub.Subscribe(id)
		defer unsubscribe()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		conn := &sessionConn{
			c:           c,
			sessionID:   id,
			participant: participant,
			replies:     make(chan interface{}, 8),
			logger:      s.Logger,
		}

		snap, err := s.Store.Get(ctx, id)
		if err != nil {
			// expired between the check and the subscription
			c.Close(InvalidSessionIDError, "Session not found.")
			return
		}
		conn.reply(newSessionEvent(models.EventSessionSnapshot, snap, ""))

		writerDone := make(chan error, 1)
		go func() {
			writerDone <- conn.writeLoop(ctx, events)
			cancel()
		}()

		readErr := conn.readLoop(ctx, s)
		cancel()
		<-writerDone

		c.Close(websocket.StatusNormalClosure, "")
		middleware.LogWebSocketDisconnect(s.Logger, r.RemoteAddr, r.URL.Path, readErr)
	}
}

func newSessionEvent(typ models.EventType, sess *models.GameSession, actor string) sessionEvent {
	return sessionEvent{Type: typ, Session: view(sess), Actor: actor}
}

// sessionConn is one client socket. All writes go through writeLoop.
type sessionConn struct {
	c           *websocket.Conn
	sessionID   uuid.UUID
	participant string
	replies     chan interface{}
	logger      *logrus.Logger

	// lastVersion is only touched by writeLoop.
	lastVersion int
}

// reply queues a direct answer to this client. It never blocks the read loop.
func (sc *sessionConn) reply(msg interface{}) {
	select {
	case sc.replies <- msg:
	default:
		sc.logger.Warnf("reply queue full for %s in session %s; dropping message", sc.participant, sc.sessionID)
	}
}

// writeLoop forwards hub events and direct replies. A snapshot older than one already
// sent is skipped so the client never steps back in time.
func (sc *sessionConn) writeLoop(ctx context.Context, events <-chan models.SessionEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg := <-sc.replies:
			if ev, ok := msg.(sessionEvent); ok {
				if ev.Session.Version < sc.lastVersion {
					continue
				}
				sc.lastVersion = ev.Session.Version
			}
			if err := sc.send(ctx, msg); err != nil {
				return err
			}

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Type != models.EventSessionExpired && ev.Session.Version <= sc.lastVersion {
				continue
			}
			sc.lastVersion = ev.Session.Version
			if err := sc.send(ctx, newSessionEvent(ev.Type, ev.Session, ev.Actor)); err != nil {
				return err
			}
			if ev.Type == models.EventSessionExpired {
				// unblocks readLoop as well
				sc.c.Close(SessionExpiredCode, "Session expired waiting for a partner.")
				return nil
			}
		}
	}
}

// readLoop handles client messages until the socket closes or ctx is cancelled. A nil
// return means the client went away normally.
func (sc *sessionConn) readLoop(ctx context.Context, s *Server) error {
	for {
		msgType, data, err := sc.c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			sc.logger.Warnf("Received non-text message type %d from %s in session %s. Ignoring.", msgType, sc.participant, sc.sessionID)
			continue
		}

		var msg SessionMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			sc.reply(apiError{Type: "error", Code: "bad_request", Message: "Invalid JSON format."})
			continue
		}
		sc.logger.Debugf("Received '%s' from %s in session %s.", msg.Type, sc.participant, sc.sessionID)

		switch msg.Type {
		case "move":
			if msg.Move == nil {
				sc.reply(apiError{Type: "error", Code: "invalid_move", Message: "move is required"})
				continue
			}
			// the committed snapshot arrives through the hub like everyone else's
			if _, err := s.Store.ApplyMove(ctx, sc.sessionID, sc.participant, *msg.Move); err != nil {
				_, body := toAPIError(err)
				body.Type = "error"
				sc.reply(body)
			}

		case "sync":
			snap, err := s.Store.Get(ctx, sc.sessionID)
			if err != nil {
				_, body := toAPIError(err)
				body.Type = "error"
				sc.reply(body)
				continue
			}
			sc.reply(newSessionEvent(models.EventSessionSnapshot, snap, ""))

		case "ping":
			sc.reply(map[string]string{"type": "pong"})

		default:
			sc.reply(apiError{Type: "error", Code: "bad_request", Message: fmt.Sprintf("Unknown message type: %s", msg.Type)})
		}
	}
}

// send marshals a message and writes it with a timeout.
func (sc *sessionConn) send(ctx context.Context, message interface{}) error {
	msgBytes, err := json.Marshal(message)
	if err != nil {
		sc.logger.Errorf("Error marshaling WebSocket message: %v", err)
		return nil
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()

	if err := sc.c.Write(writeCtx, websocket.MessageText, msgBytes); err != nil {
		if !strings.Contains(err.Error(), "context canceled") {
			sc.logger.Warnf("Error writing to %s in session %s: %v", sc.participant, sc.sessionID, err)
		}
		return err
	}
	return nil
}
