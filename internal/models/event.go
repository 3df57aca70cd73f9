// internal/models/event.go
package models

// EventType names a change pushed to session subscribers.
type EventType string

const (
	EventSessionCreated  EventType = "session_created"
	EventSessionJoined   EventType = "session_joined"
	EventSessionMove     EventType = "session_move"
	EventSessionExpired  EventType = "session_expired"
	EventSessionSnapshot EventType = "session_snapshot" // sent on connect and on explicit sync
)

// SessionEvent carries the full authoritative snapshot. Receivers replace their local copy
// with Session rather than patching it.
type SessionEvent struct {
	Type    EventType    `json:"type"`
	Session *GameSession `json:"session"`
	// Actor is the participant whose action produced the event, if any.
	Actor string `json:"actor,omitempty"`
}
