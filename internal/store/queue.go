package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const runQueueKey = "jobmatch:runs"

// ErrQueueEmpty is returned when a blocking pop times out with no work.
var ErrQueueEmpty = errors.New("run queue is empty")

// RunQueue hands run ids from the submission surface to the pipeline worker.
type RunQueue struct {
	rdb *redis.Client
}

func NewRunQueue(rdb *redis.Client) *RunQueue {
	return &RunQueue{rdb: rdb}
}

// Enqueue pushes a run id onto the queue.
func (q *RunQueue) Enqueue(ctx context.Context, runID uuid.UUID) error {
	if err := q.rdb.LPush(ctx, runQueueKey, runID.String()).Err(); err != nil {
		return fmt.Errorf("enqueue run: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next run id. Returns ErrQueueEmpty
// when nothing arrived in time.
func (q *RunQueue) Dequeue(ctx context.Context, timeout time.Duration) (uuid.UUID, error) {
	values, err := q.rdb.BRPop(ctx, timeout, runQueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, ErrQueueEmpty
		}
		return uuid.Nil, fmt.Errorf("dequeue run: %w", err)
	}

	// BRPop returns [key, value].
	if len(values) != 2 {
		return uuid.Nil, fmt.Errorf("dequeue run: unexpected reply %v", values)
	}

	runID, err := uuid.Parse(values[1])
	if err != nil {
		return uuid.Nil, fmt.Errorf("dequeue run: malformed id %q: %w", values[1], err)
	}

	return runID, nil
}

// Depth reports how many runs are waiting.
func (q *RunQueue) Depth(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, runQueueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return n, nil
}
