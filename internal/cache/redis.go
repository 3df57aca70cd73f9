// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/playtogether/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list the historian drains.
const DefaultQueueName = "playtogether_moves"

// Connect opens a Redis client and checks it answers.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// MoveQueue pushes accepted moves onto a Redis list for the historian.
// It satisfies session.HistorySink.
type MoveQueue struct {
	rdb  *redis.Client
	name string
}

// NewMoveQueue returns a queue writing to the list called name.
func NewMoveQueue(rdb *redis.Client, name string) *MoveQueue {
	if name == "" {
		name = DefaultQueueName
	}
	return &MoveQueue{rdb: rdb, name: name}
}

// Name returns the list name.
func (q *MoveQueue) Name() string {
	return q.name
}

// Record serializes rec and appends it to the queue. It does not wait for the historian.
func (q *MoveQueue) Record(ctx context.Context, rec models.MoveRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal MoveRecord: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.name, err)
	}
	return nil
}

// Pop blocks up to timeout for the next record. It returns (nil, nil) when the wait
// times out with nothing queued.
func (q *MoveQueue) Pop(ctx context.Context, timeout time.Duration) (*models.MoveRecord, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("BLPop %s: %w", q.name, err)
	}
	// res[0] is the list name and res[1] the payload
	if len(res) < 2 {
		return nil, nil
	}
	var rec models.MoveRecord
	if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
		return nil, fmt.Errorf("invalid move record: %w", err)
	}
	return &rec, nil
}
