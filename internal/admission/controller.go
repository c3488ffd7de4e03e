// Package admission gatekeeps incoming submissions: per-submitter and
// per-source rate limits followed by load-adaptive mode selection.
package admission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openclassifieds/gatekeeper/internal/logging"
	"github.com/openclassifieds/gatekeeper/internal/models"
	"github.com/openclassifieds/gatekeeper/internal/queue"
	"github.com/openclassifieds/gatekeeper/internal/scorer"
)

// Status values returned to the submitter
const (
	StatusImmediate   = "immediate"
	StatusQueued      = "queued"
	StatusRateLimited = "rate_limited"
	StatusFastTrack   = "fast_track"
)

// ErrInvalidSubmission rejects malformed input before any scoring happens
var ErrInvalidSubmission = errors.New("submission requires owner_id and title")

// Config holds the admission ceilings and mode thresholds
type Config struct {
	OwnerPerMinute  int
	OwnerPerHour    int
	SourcePerMinute int
	ImmediateMax    int // queue depth below this runs synchronously
	QueuedMax       int // queue depth below this enqueues; at or above fast-tracks
	Workers         int
	PerJobTime      time.Duration
	ResultTTL       time.Duration
	JobMaxAge       time.Duration
}

// DefaultConfig returns the standard ceilings
func DefaultConfig() Config {
	return Config{
		OwnerPerMinute:  10,
		OwnerPerHour:    100,
		SourcePerMinute: 60,
		ImmediateMax:    100,
		QueuedMax:       1000,
		Workers:         4,
		PerJobTime:      500 * time.Millisecond,
		ResultTTL:       time.Hour,
		JobMaxAge:       30 * time.Minute,
	}
}

// Outcome is the admission decision returned to the submission path
type Outcome struct {
	Status        string              `json:"status"`
	Result        *models.ScoreResult `json:"result,omitempty"`
	JobID         string              `json:"job_id,omitempty"`
	RetryAfter    int                 `json:"retry_after,omitempty"`    // seconds
	EstimatedWait int                 `json:"estimated_wait,omitempty"` // seconds
}

// Controller enforces rate limits and selects the processing mode
type Controller struct {
	cfg      Config
	counters CounterStore
	queue    queue.Queue
	results  queue.ResultStore
	scorer   *scorer.Scorer
	logger   *logging.Logger
}

// NewController creates an admission controller
func NewController(cfg Config, counters CounterStore, q queue.Queue, results queue.ResultStore, sc *scorer.Scorer, logger *logging.Logger) *Controller {
	return &Controller{
		cfg:      cfg,
		counters: counters,
		queue:    q,
		results:  results,
		scorer:   sc,
		logger:   logger,
	}
}

// Admit runs the rate check and mode selection for one submission.
// If the shared store is unreachable the controller fails open: rate limits
// are skipped and the submission is scored immediately.
func (c *Controller) Admit(ctx context.Context, sub *models.Submission) (*Outcome, error) {
	if strings.TrimSpace(sub.OwnerID) == "" || strings.TrimSpace(sub.Title) == "" {
		return nil, ErrInvalidSubmission
	}

	limited, retryAfter, err := c.rateCheck(ctx, sub)
	if err != nil {
		if errors.Is(err, queue.ErrStoreUnavailable) {
			c.logger.Warn("counter store unreachable, failing open", logging.WithField("error", err.Error()))
			return c.runImmediate(ctx, sub), nil
		}
		return nil, err
	}
	if limited {
		return &Outcome{Status: StatusRateLimited, RetryAfter: retryAfter}, nil
	}

	depth, err := c.queue.Depth(ctx)
	if err != nil {
		if errors.Is(err, queue.ErrStoreUnavailable) {
			c.logger.Warn("queue unreachable, forcing immediate mode", logging.WithField("error", err.Error()))
			return c.runImmediate(ctx, sub), nil
		}
		return nil, err
	}

	switch {
	case depth < c.cfg.ImmediateMax:
		return c.runImmediate(ctx, sub), nil
	case depth < c.cfg.QueuedMax:
		return c.enqueue(ctx, sub, depth)
	default:
		return c.fastTrack(sub), nil
	}
}

// rateCheck increments all window counters and compares against ceilings.
// The per-source minute bucket is a coarser shared-infrastructure guard.
func (c *Controller) rateCheck(ctx context.Context, sub *models.Submission) (bool, int, error) {
	checks := []struct {
		key     string
		window  time.Duration
		ceiling int
	}{
		{"owner:m:" + sub.OwnerID, time.Minute, c.cfg.OwnerPerMinute},
		{"owner:h:" + sub.OwnerID, time.Hour, c.cfg.OwnerPerHour},
	}
	if addr := strings.TrimSpace(sub.SourceAddr); addr != "" {
		checks = append(checks, struct {
			key     string
			window  time.Duration
			ceiling int
		}{"src:m:" + addr, time.Minute, c.cfg.SourcePerMinute})
	}

	for _, check := range checks {
		count, remaining, err := c.counters.IncrWindow(ctx, check.key, check.window)
		if err != nil {
			return false, 0, err
		}
		if check.ceiling > 0 && count > int64(check.ceiling) {
			retry := int(remaining / time.Second)
			if retry < 1 {
				retry = 1
			}
			return true, retry, nil
		}
	}
	return false, 0, nil
}

func (c *Controller) runImmediate(ctx context.Context, sub *models.Submission) *Outcome {
	result := c.scorer.Score(ctx, sub.Title, sub.Description, sub.ImagePaths)
	return &Outcome{Status: StatusImmediate, Result: result}
}

func (c *Controller) enqueue(ctx context.Context, sub *models.Submission, depth int) (*Outcome, error) {
	job := &models.ModerationJob{
		JobID:       uuid.NewString(),
		OwnerID:     sub.OwnerID,
		Title:       sub.Title,
		Description: sub.Description,
		ImagePaths:  sub.ImagePaths,
		QueuedAt:    time.Now().UTC(),
	}

	if err := c.queue.Enqueue(ctx, job); err != nil {
		if errors.Is(err, queue.ErrStoreUnavailable) {
			c.logger.Warn("enqueue failed, falling back to immediate scoring", logging.WithField("error", err.Error()))
			return c.runImmediate(ctx, sub), nil
		}
		return nil, err
	}

	// A pending marker with the job max-age as its TTL makes expiry
	// observable to the status endpoint without a separate job index.
	pending := &models.JobResult{JobID: job.JobID, Status: models.JobPending, QueuedAt: job.QueuedAt}
	if err := c.results.Put(ctx, pending, c.cfg.JobMaxAge); err != nil {
		c.logger.Warn("failed to store pending marker", logging.WithField("job_id", job.JobID), logging.WithField("error", err.Error()))
	}

	workers := c.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	wait := time.Duration(depth/workers) * c.cfg.PerJobTime
	return &Outcome{
		Status:        StatusQueued,
		JobID:         job.JobID,
		EstimatedWait: int(wait / time.Second),
	}, nil
}

// fastTrack runs only the critical-keyword subset. Anything that passes is
// admitted with full review deferred to post-publish; this is the explicit
// degrade-under-load contract.
func (c *Controller) fastTrack(sub *models.Submission) *Outcome {
	result := c.scorer.CriticalOnly(sub.Title, sub.Description)
	if result.Safe {
		result.Warnings = append(result.Warnings,
			"fast-track check only: full review deferred until after publication")
	}
	return &Outcome{Status: StatusFastTrack, Result: result}
}

// JobStatus resolves the state of a queued job from the result store.
// A missing entry means the pending marker aged out: the job is expired and
// the client must resubmit.
func (c *Controller) JobStatus(ctx context.Context, jobID string) (*models.JobResult, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, fmt.Errorf("job id is required")
	}

	result, err := c.results.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return &models.JobResult{JobID: jobID, Status: models.JobExpired}, nil
	}
	return result, nil
}

// CurrentMode reports the mode that the next submission would receive,
// plus the observed depth. Depth reads are unsynchronized by design;
// admission control is approximate.
func (c *Controller) CurrentMode(ctx context.Context) (mode string, depth int) {
	d, err := c.queue.Depth(ctx)
	if err != nil {
		return StatusImmediate, 0
	}
	switch {
	case d < c.cfg.ImmediateMax:
		return StatusImmediate, d
	case d < c.cfg.QueuedMax:
		return StatusQueued, d
	default:
		return StatusFastTrack, d
	}
}

// Capacity returns the configured mode thresholds
func (c *Controller) Capacity() (immediateMax, queuedMax int) {
	return c.cfg.ImmediateMax, c.cfg.QueuedMax
}
