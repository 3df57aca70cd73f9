// internal/realtime/codec.go
package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/jason-s-yu/playtogether/internal/models"
)

type eventJSON struct {
	Type    models.EventType `json:"type"`
	Session json.RawMessage  `json:"session"`
	Actor   string           `json:"actor,omitempty"`
}

// EncodeEvent serializes an event for a broker or a websocket frame.
func EncodeEvent(ev models.SessionEvent) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	return data, nil
}

// DecodeEvent restores an event produced by EncodeEvent, rebuilding the game state through dec.
func DecodeEvent(data []byte, dec models.StateDecoder) (models.SessionEvent, error) {
	var raw eventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.SessionEvent{}, fmt.Errorf("decode event: %w", err)
	}
	sess, err := models.DecodeSession(raw.Session, dec)
	if err != nil {
		return models.SessionEvent{}, err
	}
	return models.SessionEvent{Type: raw.Type, Session: sess, Actor: raw.Actor}, nil
}
