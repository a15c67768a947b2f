package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// OrphanQueue holds blob keys whose records are gone but whose deletion from
// object storage failed. Keys are a set; pushing a key twice stores it once.
type OrphanQueue interface {
	Push(ctx context.Context, keys ...string) error
	// Pop removes and returns up to n keys in no particular order.
	Pop(ctx context.Context, n int) ([]string, error)
}

const orphanSetKey = "blobs:orphaned"

// RedisOrphanQueue is an OrphanQueue on a Redis set, shared by all API replicas.
type RedisOrphanQueue struct {
	client redis.Cmdable
	key    string
}

// NewRedisOrphanQueue creates a queue on client.
func NewRedisOrphanQueue(client redis.Cmdable) *RedisOrphanQueue {
	return &RedisOrphanQueue{client: client, key: orphanSetKey}
}

// Push implements OrphanQueue.
func (q *RedisOrphanQueue) Push(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	members := make([]any, len(keys))
	for i, k := range keys {
		members[i] = k
	}
	if err := q.client.SAdd(ctx, q.key, members...).Err(); err != nil {
		return fmt.Errorf("queue orphaned blobs: %w", err)
	}
	return nil
}

// Pop implements OrphanQueue.
func (q *RedisOrphanQueue) Pop(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	keys, err := q.client.SPopN(ctx, q.key, int64(n)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("pop orphaned blobs: %w", err)
	}
	return keys, nil
}

// Len returns the number of queued keys.
func (q *RedisOrphanQueue) Len(ctx context.Context) (int64, error) {
	return q.client.SCard(ctx, q.key).Result()
}

// MemoryOrphanQueue is an in-process OrphanQueue for single-instance deployments and tests.
type MemoryOrphanQueue struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewMemoryOrphanQueue creates an empty queue.
func NewMemoryOrphanQueue() *MemoryOrphanQueue {
	return &MemoryOrphanQueue{keys: make(map[string]struct{})}
}

// Push implements OrphanQueue.
func (q *MemoryOrphanQueue) Push(_ context.Context, keys ...string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, k := range keys {
		q.keys[k] = struct{}{}
	}
	return nil
}

// Pop implements OrphanQueue.
func (q *MemoryOrphanQueue) Pop(_ context.Context, n int) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []string
	for k := range q.keys {
		if len(out) >= n {
			break
		}
		out = append(out, k)
		delete(q.keys, k)
	}
	return out, nil
}

// Len returns the number of queued keys.
func (q *MemoryOrphanQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.keys)
}
