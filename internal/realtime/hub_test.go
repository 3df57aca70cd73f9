// internal/realtime/hub_test.go
package realtime

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/playtogether/internal/catalog"
	"github.com/jason-s-yu/playtogether/internal/game"
	"github.com/jason-s-yu/playtogether/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func snapshot(id uuid.UUID, version int) models.SessionEvent {
	return models.SessionEvent{
		Type: models.EventSessionMove,
		Session: &models.GameSession{
			ID:           id,
			GameID:       game.TicTacHeartsID,
			Participants: []string{"alice", "bob"},
			State:        game.TicTacHearts{}.NewState(),
			Status:       models.StatusInProgress,
			Version:      version,
			CreatedAt:    time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC),
			UpdatedAt:    time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC),
		},
		Actor: "alice",
	}
}

func TestHubDeliversToSessionSubscribers(t *testing.T) {
	h := NewHub(quietLogger(), 4)
	id, other := uuid.New(), uuid.New()

	a, cancelA := h.Subscribe(id)
	defer cancelA()
	b, cancelB := h.Subscribe(id)
	defer cancelB()
	c, cancelC := h.Subscribe(other)
	defer cancelC()
	assert.Equal(t, 2, h.Subscribers(id))

	require.NoError(t, h.Publish(context.Background(), snapshot(id, 3)))

	for _, ch := range []<-chan models.SessionEvent{a, b} {
		select {
		case ev := <-ch:
			assert.Equal(t, 3, ev.Session.Version)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
	select {
	case ev := <-c:
		t.Fatalf("unrelated session received %v", ev.Type)
	default:
	}
}

func TestHubSlowSubscriberKeepsNewest(t *testing.T) {
	h := NewHub(quietLogger(), 2)
	id := uuid.New()
	ch, cancel := h.Subscribe(id)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for v := 1; v <= 10; v++ {
			h.Deliver(snapshot(id, v))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}

	var last int
	for len(ch) > 0 {
		last = (<-ch).Session.Version
	}
	assert.Equal(t, 10, last)
}

func TestHubCancelClosesChannel(t *testing.T) {
	h := NewHub(quietLogger(), 0)
	id := uuid.New()
	ch, cancel := h.Subscribe(id)
	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, h.Subscribers(id))

	// delivering after everyone left is a no-op
	h.Deliver(snapshot(id, 1))
}

func TestEventCodecRoundTrip(t *testing.T) {
	ev := snapshot(uuid.New(), 4)
	data, err := EncodeEvent(ev)
	require.NoError(t, err)

	got, err := DecodeEvent(data, catalog.Default())
	require.NoError(t, err)
	assert.Equal(t, ev, got)

	_, err = DecodeEvent([]byte(`{"type":"session_move","session":{"game_id":"chess","state":{}}}`), catalog.Default())
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

// awaitBridge publishes until the hub subscriber sees it, since the broker
// subscription is established asynchronously.
func awaitBridge(t *testing.T, h *Hub, publish func(models.SessionEvent) error) {
	t.Helper()
	id := uuid.New()
	ch, cancel := h.Subscribe(id)
	defer cancel()

	ev := snapshot(id, 5)
	require.Eventually(t, func() bool {
		if err := publish(ev); err != nil {
			return false
		}
		select {
		case got := <-ch:
			return got.Session.ID == id && got.Session.Version == 5
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 50*time.Millisecond)
}

func TestRedisBridge(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	h := NewHub(quietLogger(), 0)
	b := NewRedisBridge(rdb, h, catalog.Default(), quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	awaitBridge(t, h, func(ev models.SessionEvent) error { return b.Publish(ctx, ev) })
}

func TestNATSBridge(t *testing.T) {
	url := os.Getenv("TEST_NATS_URL")
	if url == "" {
		t.Skip("TEST_NATS_URL not set")
	}
	nc, err := ConnectNATS(url, "playtogether-test")
	require.NoError(t, err)
	defer nc.Close()

	h := NewHub(quietLogger(), 0)
	b := NewNATSBridge(nc, h, catalog.Default(), quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	awaitBridge(t, h, func(ev models.SessionEvent) error { return b.Publish(ctx, ev) })
}
