// Package queue implements the shared moderation job queue and the polled
// result store that workers publish into.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/openclassifieds/gatekeeper/internal/models"
)

// ErrStoreUnavailable signals that the shared queue/counter store cannot be
// reached. Callers are expected to degrade gracefully rather than fail the
// request.
var ErrStoreUnavailable = errors.New("shared store unavailable")

// Queue is a FIFO of pending moderation jobs shared between processes
type Queue interface {
	// Enqueue appends a job to the queue
	Enqueue(ctx context.Context, job *models.ModerationJob) error
	// Dequeue pops the oldest job, blocking up to timeout. A nil job with
	// a nil error means the timeout elapsed with nothing to do.
	Dequeue(ctx context.Context, timeout time.Duration) (*models.ModerationJob, error)
	// Depth returns the current number of queued jobs
	Depth(ctx context.Context) (int, error)
}

// ResultStore holds job results keyed by job ID with a TTL. Polling this
// store is the only notification mechanism for async jobs.
type ResultStore interface {
	Put(ctx context.Context, result *models.JobResult, ttl time.Duration) error
	// Get returns nil when no entry exists (expired or unknown job)
	Get(ctx context.Context, jobID string) (*models.JobResult, error)
}
