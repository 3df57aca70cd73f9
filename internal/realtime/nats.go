// internal/realtime/nats.go
package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/playtogether/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// NATSSubjectPrefix namespaces the per-session subjects.
const NATSSubjectPrefix = "playtogether.session."

// NATSSubject returns the subject events for sessionID are published on.
func NATSSubject(sessionID uuid.UUID) string {
	return NATSSubjectPrefix + sessionID.String()
}

// ConnectNATS dials the broker at url with reconnect settings suited to a long-lived server.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	opts := []nats.Option{
		nats.Name(name),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(5),
	}
	return nats.Connect(url, opts...)
}

// NATSBridge is the NATS counterpart of RedisBridge.
type NATSBridge struct {
	nc      *nats.Conn
	hub     *Hub
	decoder models.StateDecoder
	logger  *logrus.Logger
}

// NewNATSBridge wires a bridge. Run must be started for received events to reach hub.
func NewNATSBridge(nc *nats.Conn, hub *Hub, dec models.StateDecoder, logger *logrus.Logger) *NATSBridge {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &NATSBridge{nc: nc, hub: hub, decoder: dec, logger: logger}
}

// Publish sends ev to the session's subject.
func (b *NATSBridge) Publish(_ context.Context, ev models.SessionEvent) error {
	data, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	if err := b.nc.Publish(NATSSubject(ev.Session.ID), data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Run subscribes to every session subject and blocks until ctx is cancelled.
func (b *NATSBridge) Run(ctx context.Context) error {
	sub, err := b.nc.Subscribe(NATSSubjectPrefix+"*", func(m *nats.Msg) {
		ev, err := DecodeEvent(m.Data, b.decoder)
		if err != nil {
			b.logger.Warnf("discarding event from %s: %v", m.Subject, err)
			return
		}
		b.hub.Deliver(ev)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	defer sub.Unsubscribe()
	b.logger.Infof("listening for session events on %s*", NATSSubjectPrefix)

	<-ctx.Done()
	return nil
}
