package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultQueueKey = "crawler:queue"

// JobQueue is a durable FIFO of jobs shared between processes.
type JobQueue interface {
	Push(ctx context.Context, job Job) error
	// Pop returns false when the queue is empty.
	Pop(ctx context.Context) (Job, bool, error)
	Size(ctx context.Context) (int64, error)
}

// RedisQueue keeps jobs as JSON in a Redis list: LPUSH to enqueue, RPOP to
// dequeue.
type RedisQueue struct {
	client redis.Cmdable
	key    string
}

// NewRedisQueue uses key, or "crawler:queue" when empty.
func NewRedisQueue(client redis.Cmdable, key string) *RedisQueue {
	if key == "" {
		key = defaultQueueKey
	}
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Push(ctx context.Context, job Job) error {
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	return q.client.LPush(ctx, q.key, b).Err()
}

func (q *RedisQueue) Pop(ctx context.Context) (Job, bool, error) {
	raw, err := q.client.RPop(ctx, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, fmt.Errorf("failed to pop job from queue: %w", err)
	}
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return Job{}, false, fmt.Errorf("decode job: %w", err)
	}
	return job, true, nil
}

func (q *RedisQueue) Size(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Consume moves jobs from q into the runner every interval until ctx is
// done. A job that does not fit the local queue is pushed back.
func (r *Runner) Consume(ctx context.Context, q JobQueue, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		r.drain(ctx, q)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// drain submits queued jobs until q is empty or the runner is full. It
// returns the number submitted.
func (r *Runner) drain(ctx context.Context, q JobQueue) int {
	n := 0
	for ctx.Err() == nil {
		job, ok, err := q.Pop(ctx)
		if err != nil {
			r.logger.Error("failed to pop job", zap.Error(err))
			return n
		}
		if !ok {
			return n
		}
		id, err := r.Submit(job)
		switch {
		case errors.Is(err, ErrQueueFull), errors.Is(err, ErrStopped):
			if err := q.Push(ctx, job); err != nil {
				r.logger.Error("failed to requeue job", zap.String("source", job.Source), zap.Error(err))
			}
			return n
		case err != nil:
			r.logger.Warn("dropping invalid job", zap.String("source", job.Source), zap.Error(err))
			continue
		}
		r.logger.Debug("job dequeued", zap.String("session_id", id), zap.String("source", job.Source))
		n++
	}
	return n
}
