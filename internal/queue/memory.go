package queue

import (
	"context"
	"sync"
	"time"

	"github.com/openclassifieds/gatekeeper/internal/models"
)

// MemoryQueue is an in-process queue used when Redis is unavailable and in
// tests. It loses jobs on restart; acceptable for the degraded path.
type MemoryQueue struct {
	mu    sync.Mutex
	jobs  []*models.ModerationJob
	wake  chan struct{}
	depth int
}

// NewMemoryQueue creates an in-process queue
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{wake: make(chan struct{}, 1)}
}

// Enqueue appends a job
func (q *MemoryQueue) Enqueue(ctx context.Context, job *models.ModerationJob) error {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.depth = len(q.jobs)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Dequeue pops the oldest job, waiting up to timeout for one to arrive
func (q *MemoryQueue) Dequeue(ctx context.Context, timeout time.Duration) (*models.ModerationJob, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		q.mu.Lock()
		if len(q.jobs) > 0 {
			job := q.jobs[0]
			q.jobs = q.jobs[1:]
			q.depth = len(q.jobs)
			q.mu.Unlock()
			return job, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, nil
		case <-q.wake:
		}
	}
}

// Depth returns the number of queued jobs
func (q *MemoryQueue) Depth(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depth, nil
}

var _ Queue = (*MemoryQueue)(nil)

type resultEntry struct {
	result    *models.JobResult
	expiresAt time.Time
}

// MemoryResultStore keeps job results in memory with TTL expiry
type MemoryResultStore struct {
	mu      sync.Mutex
	entries map[string]resultEntry
	now     func() time.Time
}

// NewMemoryResultStore creates an in-process result store
func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{
		entries: make(map[string]resultEntry),
		now:     time.Now,
	}
}

// Put stores a result with a TTL
func (s *MemoryResultStore) Put(ctx context.Context, result *models.JobResult, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
		}
	}
	s.entries[result.JobID] = resultEntry{result: result, expiresAt: now.Add(ttl)}
	return nil
}

// Get returns the stored result, or nil once it has expired
func (s *MemoryResultStore) Get(ctx context.Context, jobID string) (*models.JobResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[jobID]
	if !ok || s.now().After(e.expiresAt) {
		return nil, nil
	}
	return e.result, nil
}

var _ ResultStore = (*MemoryResultStore)(nil)
