package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openclassifieds/gatekeeper/internal/models"
)

const (
	defaultQueueKey     = "moderation:jobs"
	defaultResultPrefix = "moderation:result:"
)

// RedisQueue is a Redis-list-backed job queue shared across processes
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue creates a queue on the given Redis client
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	key = strings.TrimSpace(key)
	if key == "" {
		key = defaultQueueKey
	}
	return &RedisQueue{client: client, key: key}
}

// Enqueue appends a job to the queue
func (q *RedisQueue) Enqueue(ctx context.Context, job *models.ModerationJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("%w: enqueue: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Dequeue pops the oldest job, blocking up to timeout
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*models.ModerationJob, error) {
	vals, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dequeue: %v", ErrStoreUnavailable, err)
	}
	if len(vals) < 2 {
		return nil, nil
	}

	var job models.ModerationJob
	if err := json.Unmarshal([]byte(vals[1]), &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

// Depth returns the queue length
func (q *RedisQueue) Depth(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: queue depth: %v", ErrStoreUnavailable, err)
	}
	return int(n), nil
}

var _ Queue = (*RedisQueue)(nil)

// RedisResultStore keeps job results in Redis under TTL keys
type RedisResultStore struct {
	client *redis.Client
	prefix string
}

// NewRedisResultStore creates a result store with the given key prefix
func NewRedisResultStore(client *redis.Client, prefix string) *RedisResultStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultResultPrefix
	}
	return &RedisResultStore{client: client, prefix: prefix}
}

func (s *RedisResultStore) key(jobID string) string {
	return s.prefix + jobID
}

// Put stores a result under its job ID with the given TTL
func (s *RedisResultStore) Put(ctx context.Context, result *models.JobResult, ttl time.Duration) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode job result: %w", err)
	}
	if err := s.client.Set(ctx, s.key(result.JobID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("%w: store job result: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Get returns the stored result, or nil when the key has expired
func (s *RedisResultStore) Get(ctx context.Context, jobID string) (*models.JobResult, error) {
	payload, err := s.client.Get(ctx, s.key(jobID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load job result: %v", ErrStoreUnavailable, err)
	}

	var result models.JobResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode job result: %w", err)
	}
	return &result, nil
}

var _ ResultStore = (*RedisResultStore)(nil)
