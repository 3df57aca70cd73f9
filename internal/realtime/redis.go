// internal/realtime/redis.go
package realtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/playtogether/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisChannelPrefix namespaces the per-session pub/sub channels.
const RedisChannelPrefix = "playtogether:session:"

// RedisChannel returns the channel events for sessionID are published on.
func RedisChannel(sessionID uuid.UUID) string {
	return RedisChannelPrefix + sessionID.String()
}

// RedisBridge publishes session events through Redis pub/sub so every server instance
// sharing the store sees them, and feeds what it receives into the local Hub.
type RedisBridge struct {
	rdb     *redis.Client
	hub     *Hub
	decoder models.StateDecoder
	logger  *logrus.Logger
}

// NewRedisBridge wires a bridge. Run must be started for received events to reach hub.
func NewRedisBridge(rdb *redis.Client, hub *Hub, dec models.StateDecoder, logger *logrus.Logger) *RedisBridge {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisBridge{rdb: rdb, hub: hub, decoder: dec, logger: logger}
}

// Publish sends ev to the session's channel. Local subscribers receive it back through Run.
func (b *RedisBridge) Publish(ctx context.Context, ev models.SessionEvent) error {
	data, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, RedisChannel(ev.Session.ID), data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run listens on every session channel until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	ps := b.rdb.PSubscribe(ctx, RedisChannelPrefix+"*")
	defer ps.Close()

	// wait for the subscription to be confirmed before reporting ready
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("redis psubscribe: %w", err)
	}
	b.logger.Infof("listening for session events on %s*", RedisChannelPrefix)

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			ev, err := DecodeEvent([]byte(msg.Payload), b.decoder)
			if err != nil {
				b.logger.Warnf("discarding event from %s: %v", strings.TrimPrefix(msg.Channel, RedisChannelPrefix), err)
				continue
			}
			b.hub.Deliver(ev)
		}
	}
}
