// internal/historian/historian_test.go
package historian

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/playtogether/internal/game"
	"github.com/jason-s-yu/playtogether/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chanSource serves records from a channel the way BLPop serves a list.
type chanSource struct {
	ch chan models.MoveRecord
}

func (c *chanSource) Pop(ctx context.Context, timeout time.Duration) (*models.MoveRecord, error) {
	select {
	case rec := <-c.ch:
		return &rec, nil
	case <-time.After(timeout):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type memorySink struct {
	mu      sync.Mutex
	batches [][]models.MoveRecord
	failing int
}

func (m *memorySink) InsertMoves(_ context.Context, recs []models.MoveRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing > 0 {
		m.failing--
		return errors.New("database unavailable")
	}
	m.batches = append(m.batches, append([]models.MoveRecord(nil), recs...))
	return nil
}

func (m *memorySink) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

func record(version int) models.MoveRecord {
	idx := version
	return models.MoveRecord{
		SessionID:   uuid.New(),
		GameID:      game.MemoryMatchID,
		Version:     version,
		Participant: "alice",
		Move:        game.Move{CardIndex: &idx},
		Status:      models.StatusInProgress,
		Timestamp:   time.Now().UnixMilli(),
	}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestHistorianFlushesFullBatches(t *testing.T) {
	src := &chanSource{ch: make(chan models.MoveRecord, 10)}
	sink := &memorySink{}
	svc := New(src, sink, Options{BatchSize: 3, FlushDelay: time.Hour, PopTimeout: 10 * time.Millisecond, Logger: quietLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	for v := 1; v <= 6; v++ {
		src.ch <- record(v)
	}
	require.Eventually(t, func() bool { return sink.total() == 6 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.batches, 2)
	assert.Len(t, sink.batches[0], 3)
}

func TestHistorianFlushesAfterDelay(t *testing.T) {
	src := &chanSource{ch: make(chan models.MoveRecord, 10)}
	sink := &memorySink{}
	svc := New(src, sink, Options{BatchSize: 100, FlushDelay: 20 * time.Millisecond, PopTimeout: 10 * time.Millisecond, Logger: quietLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	src.ch <- record(1)
	require.Eventually(t, func() bool { return sink.total() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHistorianRetriesFailedFlush(t *testing.T) {
	src := &chanSource{ch: make(chan models.MoveRecord, 10)}
	sink := &memorySink{failing: 2}
	svc := New(src, sink, Options{BatchSize: 1, FlushDelay: time.Millisecond, PopTimeout: 5 * time.Millisecond, Logger: quietLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	src.ch <- record(1)
	require.Eventually(t, func() bool { return sink.total() == 1 }, 2*time.Second, 10*time.Millisecond)
}

// downSource fails every read, like a Redis that is unreachable.
type downSource struct {
	mu    sync.Mutex
	calls int
}

func (d *downSource) Pop(context.Context, time.Duration) (*models.MoveRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return nil, errors.New("dial tcp: connection refused")
}

func TestHistorianBacksOffWhenQueueIsDown(t *testing.T) {
	src := &downSource{}
	svc := New(src, &memorySink{}, Options{ErrorBackoff: 50 * time.Millisecond, Logger: quietLogger()})

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	require.NoError(t, svc.Run(ctx))

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.GreaterOrEqual(t, src.calls, 1)
	assert.LessOrEqual(t, src.calls, 4)
}

func TestHistorianFlushesOnShutdown(t *testing.T) {
	src := &chanSource{ch: make(chan models.MoveRecord, 10)}
	sink := &memorySink{}
	svc := New(src, sink, Options{BatchSize: 100, FlushDelay: time.Hour, PopTimeout: 5 * time.Millisecond, Logger: quietLogger()})

	src.ch <- record(1)
	src.ch <- record(2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool { return len(src.ch) == 0 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 2, sink.total())
}
