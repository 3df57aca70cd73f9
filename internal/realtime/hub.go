// internal/realtime/hub.go
package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/playtogether/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 16

type subscriber struct {
	ch chan models.SessionEvent
}

// Hub fans session events out to the subscribers of this process. It is the local
// Synchronization Channel and the delivery end of the Redis and NATS bridges.
//
// Delivery never blocks the publisher. A subscriber whose queue is full loses its oldest
// pending event: every event carries a full snapshot, so the newest one supersedes it.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[*subscriber]struct{}
	buffer int
	logger *logrus.Logger
}

// NewHub creates a Hub. A buffer <= 0 uses DefaultBuffer.
func NewHub(logger *logrus.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		subs:   make(map[uuid.UUID]map[*subscriber]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers interest in one session. The returned cancel func unregisters and
// closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(sessionID uuid.UUID) (<-chan models.SessionEvent, func()) {
	sub := &subscriber{ch: make(chan models.SessionEvent, h.buffer)}

	h.mu.Lock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[sessionID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if set, ok := h.subs[sessionID]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(h.subs, sessionID)
				}
			}
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Subscribers returns how many subscribers a session currently has.
func (h *Hub) Subscribers(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

// Publish delivers ev to local subscribers. It satisfies session.Notifier.
func (h *Hub) Publish(_ context.Context, ev models.SessionEvent) error {
	h.Deliver(ev)
	return nil
}

// Deliver hands ev to every subscriber of its session without blocking.
func (h *Hub) Deliver(ev models.SessionEvent) {
	if ev.Session == nil {
		return
	}
	// the read lock also keeps cancel from closing a channel mid-send
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[ev.Session.ID] {
		h.offer(sub, ev)
	}
}

func (h *Hub) offer(sub *subscriber, ev models.SessionEvent) {
	for {
		select {
		case sub.ch <- ev:
			return
		default:
		}
		select {
		case stale := <-sub.ch:
			h.logger.Debugf("dropping stale %s event v%d for session %s", stale.Type, stale.Session.Version, stale.Session.ID)
		default:
		}
	}
}
