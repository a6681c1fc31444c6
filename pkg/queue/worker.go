package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loglens/loglens/pkg/config"
)

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// Worker is a single queue worker that polls for and processes jobs.
type Worker struct {
	id       string
	podID    string
	pool     *pgxpool.Pool
	config   *config.QueueConfig
	executor JobExecutor
	registry JobRegistry
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Health tracking
	mu            sync.RWMutex
	status        WorkerStatus
	currentJobID  string
	jobsProcessed int
	lastActivity  time.Time
}

// NewWorker creates a new queue worker.
func NewWorker(id, podID string, pool *pgxpool.Pool, cfg *config.QueueConfig, executor JobExecutor, registry JobRegistry) *Worker {
	return &Worker{
		id:           id,
		podID:        podID,
		pool:         pool,
		config:       cfg,
		executor:     executor,
		registry:     registry,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish.
// It is safe to call Stop multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:            w.id,
		Status:        string(w.status),
		CurrentJobID:  w.currentJobID,
		JobsProcessed: w.jobsProcessed,
		LastActivity:  w.lastActivity,
	}
}

// run is the main worker loop.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id, "pod_id", w.podID)
	log.Info("Worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("Worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoJobsAvailable) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("Error processing job", "error", err)
				w.sleep(time.Second) // Brief backoff on error
			}
		}
	}
}

// sleep waits for the given duration or until stop is signalled.
func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess claims a job, runs the executor under heartbeat, and writes
// the terminal or retry state.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	job, err := w.claimNextJob(ctx)
	if err != nil {
		return err
	}

	log := slog.With("job_id", job.ID, "worker_id", w.id,
		"repo", job.Payload.RepoFullName, "provider_run_id", job.Payload.RunID)
	log.Info("Job claimed", "attempt", job.Attempts)

	w.setStatus(WorkerStatusWorking, job.ID)
	defer w.setStatus(WorkerStatusIdle, "")

	// Job context bounded by the lock duration; a job that outlives its lock
	// would be swept as stalled anyway.
	jobCtx, cancelJob := context.WithTimeout(ctx, w.config.LockDuration)
	defer cancelJob()

	w.registry.RegisterJob(job.ID, cancelJob)
	defer w.registry.UnregisterJob(job.ID)

	heartbeatCtx, cancelHeartbeat := context.WithCancel(jobCtx)
	go w.runHeartbeat(heartbeatCtx, job.ID)

	execErr := w.executor.Execute(jobCtx, job)
	cancelHeartbeat()

	// Terminal state writes use a background context; jobCtx may be cancelled.
	if err := w.finishJob(context.Background(), job, execErr); err != nil {
		log.Error("Failed to record job outcome", "error", err)
		return err
	}

	w.mu.Lock()
	w.jobsProcessed++
	w.mu.Unlock()

	if execErr != nil {
		log.Warn("Job finished with error", "error", execErr, "terminal", IsTerminal(execErr))
	} else {
		log.Info("Job completed")
	}
	return nil
}

// claimNextJob atomically claims the next due pending job using
// FOR UPDATE SKIP LOCKED, ordered by creation time for FIFO processing.
func (w *Worker) claimNextJob(ctx context.Context) (*Job, error) {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var jobID string
	err = tx.QueryRow(ctx, `
		SELECT job_id FROM jobs
		WHERE queue = $1 AND status = $2 AND next_attempt_at <= now()
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED`, QueueName, StatusPending).Scan(&jobID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoJobsAvailable
		}
		return nil, fmt.Errorf("failed to query pending job: %w", err)
	}

	row := tx.QueryRow(ctx, `
		UPDATE jobs
		SET status = $2, pod_id = $3, attempts = attempts + 1,
			started_at = now(), last_heartbeat_at = now()
		WHERE job_id = $1
		RETURNING job_id, queue, name, payload, status, attempts, max_attempts,
			COALESCE(pod_id, ''), COALESCE(error_message, ''),
			next_attempt_at, last_heartbeat_at, created_at, started_at, completed_at`,
		jobID, StatusInProgress, w.podID)
	job, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return job, nil
}

// runHeartbeat periodically refreshes last_heartbeat_at for stall detection.
func (w *Worker) runHeartbeat(ctx context.Context, jobID string) {
	ticker := time.NewTicker(w.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := w.pool.Exec(ctx,
				`UPDATE jobs SET last_heartbeat_at = now() WHERE job_id = $1`, jobID)
			if err != nil {
				slog.Warn("Heartbeat update failed", "job_id", jobID, "error", err)
			}
		}
	}
}

// finishJob records the job outcome: completed, failed (terminal error or
// attempts exhausted), or re-queued with exponential backoff.
func (w *Worker) finishJob(ctx context.Context, job *Job, execErr error) error {
	if execErr == nil {
		_, err := w.pool.Exec(ctx, `
			UPDATE jobs SET status = $2, completed_at = now(), error_message = NULL
			WHERE job_id = $1`, job.ID, StatusCompleted)
		return err
	}

	if IsTerminal(execErr) || job.Attempts >= job.MaxAttempts {
		_, err := w.pool.Exec(ctx, `
			UPDATE jobs SET status = $2, completed_at = now(), error_message = $3
			WHERE job_id = $1`, job.ID, StatusFailed, execErr.Error())
		return err
	}

	delay := RetryBackoff(w.config.BackoffInitial, job.Attempts)
	_, err := w.pool.Exec(ctx, `
		UPDATE jobs SET status = $2, error_message = $3,
			next_attempt_at = now() + $4::interval
		WHERE job_id = $1`,
		job.ID, StatusPending, execErr.Error(), delay.String())
	return err
}

// RetryBackoff returns the delay before retry number attempt+1: the initial
// delay doubled for each attempt already made beyond the first.
func RetryBackoff(initial time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := initial
	for i := 1; i < attempts; i++ {
		delay *= 2
	}
	return delay
}

// pollInterval returns the poll duration with jitter.
func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	// Range: [base - jitter, base + jitter]
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

// setStatus updates the worker's health tracking state.
func (w *Worker) setStatus(status WorkerStatus, jobID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentJobID = jobID
	w.lastActivity = time.Now()
}
