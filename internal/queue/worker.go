package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/openclassifieds/gatekeeper/internal/logging"
	"github.com/openclassifieds/gatekeeper/internal/models"
	"github.com/openclassifieds/gatekeeper/internal/scorer"
)

const dequeueTimeout = 2 * time.Second

// WorkerPool consumes moderation jobs and publishes scoring results.
// Delivery is at-least-once; scoring is a pure function of the job input,
// so reprocessing a job just rewrites the same result.
type WorkerPool struct {
	queue     Queue
	results   ResultStore
	scorer    *scorer.Scorer
	resultTTL time.Duration
	logger    *logging.Logger

	wg sync.WaitGroup
}

// NewWorkerPool creates a worker pool over the given queue and result store
func NewWorkerPool(q Queue, results ResultStore, sc *scorer.Scorer, resultTTL time.Duration, logger *logging.Logger) *WorkerPool {
	if resultTTL <= 0 {
		resultTTL = time.Hour
	}
	return &WorkerPool{
		queue:     q,
		results:   results,
		scorer:    sc,
		resultTTL: resultTTL,
		logger:    logger,
	}
}

// Start launches n workers that run until the context is cancelled
func (p *WorkerPool) Start(ctx context.Context, n int) {
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.run(ctx, id)
		}(i)
	}
}

// Wait blocks until all workers have exited
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

func (p *WorkerPool) run(ctx context.Context, id int) {
	p.logger.Debug("moderation worker started", logging.WithField("worker", id))

	for {
		job, err := p.queue.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, ErrStoreUnavailable) {
				p.logger.Warn("queue unreachable, backing off",
					logging.WithField("worker", id), logging.WithField("error", err.Error()))
				select {
				case <-ctx.Done():
					return
				case <-time.After(5 * time.Second):
				}
				continue
			}
			p.logger.Error("dequeue failed",
				logging.WithField("worker", id), logging.WithField("error", err.Error()))
			continue
		}
		if job == nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		p.process(ctx, id, job)
	}
}

func (p *WorkerPool) process(ctx context.Context, id int, job *models.ModerationJob) {
	score := p.scorer.Score(ctx, job.Title, job.Description, job.ImagePaths)

	now := time.Now()
	result := &models.JobResult{
		JobID:       job.JobID,
		Status:      models.JobDone,
		Result:      score,
		QueuedAt:    job.QueuedAt,
		CompletedAt: &now,
	}

	if err := p.results.Put(ctx, result, p.resultTTL); err != nil {
		p.logger.Error("failed to publish job result",
			logging.WithField("worker", id),
			logging.WithField("job_id", job.JobID),
			logging.WithField("error", err.Error()))
		return
	}

	p.logger.Debug("job scored",
		logging.WithField("worker", id),
		logging.WithField("job_id", job.JobID),
		logging.WithField("score", score.Score))
}
