// Package queue provides the log-processing job queue: enqueueing, worker
// pool, claim-by-lock polling, heartbeats, and stall recovery. Jobs live in
// the jobs table; delivery is at-least-once and the processing core is
// idempotent, so duplicates are harmless.
package queue

import (
	"context"
	"errors"
	"time"
)

// QueueName and JobName identify log-processing jobs in the jobs table.
const (
	QueueName = "log-processing"
	JobName   = "log-processing"
)

// Job statuses.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Sentinel errors for queue operations.
var (
	// ErrNoJobsAvailable indicates no claimable jobs are in the queue.
	ErrNoJobsAvailable = errors.New("no jobs available")
)

// JobPayload is the wire format of a log-processing job.
type JobPayload struct {
	RepoFullName   string `json:"repoFullName"`
	RunID          int64  `json:"runId"`
	InstallationID int64  `json:"installationId"`
}

// Job is one row of the jobs table.
type Job struct {
	ID              string
	Queue           string
	Name            string
	Payload         JobPayload
	Status          string
	Attempts        int
	MaxAttempts     int
	PodID           string
	ErrorMessage    string
	NextAttemptAt   time.Time
	LastHeartbeatAt *time.Time
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
}

// JobExecutor processes one claimed job end to end. A returned error marks
// the job for retry unless it is terminal (see Terminal).
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// terminalError wraps errors that must not be retried: re-running the job
// cannot change the outcome (empty archives, malformed payloads).
type terminalError struct {
	err error
}

func (t *terminalError) Error() string { return t.err.Error() }
func (t *terminalError) Unwrap() error { return t.err }

// Terminal marks an error as non-retryable.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// IsTerminal reports whether err (or anything it wraps) is non-retryable.
func IsTerminal(err error) bool {
	var t *terminalError
	return errors.As(err, &t)
}

// JobRegistry is the subset of WorkerPool used by Worker for cancellation
// registration.
type JobRegistry interface {
	RegisterJob(jobID string, cancel context.CancelFunc)
	UnregisterJob(jobID string)
}

// PoolHealth contains health information for the entire worker pool.
type PoolHealth struct {
	IsHealthy        bool           `json:"is_healthy"`
	DBReachable      bool           `json:"db_reachable"`
	DBError          string         `json:"db_error,omitempty"`
	PodID            string         `json:"pod_id"`
	ActiveWorkers    int            `json:"active_workers"`
	TotalWorkers     int            `json:"total_workers"`
	ActiveJobs       int            `json:"active_jobs"`
	QueueDepth       int            `json:"queue_depth"`
	WorkerStats      []WorkerHealth `json:"worker_stats"`
	LastStallScan    time.Time      `json:"last_stall_scan"`
	StalledRecovered int            `json:"stalled_recovered"`
}

// WorkerHealth contains health information for a single worker.
type WorkerHealth struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"` // "idle" or "working"
	CurrentJobID  string    `json:"current_job_id,omitempty"`
	JobsProcessed int       `json:"jobs_processed"`
	LastActivity  time.Time `json:"last_activity"`
}
