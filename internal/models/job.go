package models

import "time"

// JobStatus is the externally visible state of a queued scoring job
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobDone    JobStatus = "done"
	JobExpired JobStatus = "expired"
)

// ModerationJob is a queued unit of deferred scoring work.
// It is consumed exactly once and discarded after its result is published.
type ModerationJob struct {
	JobID       string    `json:"job_id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImagePaths  []string  `json:"image_paths,omitempty"`
	QueuedAt    time.Time `json:"queued_at"`
	Priority    int       `json:"priority"`
}

// JobResult is the published outcome for a job, kept in the result store
// with a TTL and fetched by polling.
type JobResult struct {
	JobID       string       `json:"job_id"`
	Status      JobStatus    `json:"status"`
	Result      *ScoreResult `json:"result,omitempty"`
	QueuedAt    time.Time    `json:"queued_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}
