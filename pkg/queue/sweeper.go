package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loglens/loglens/pkg/config"
)

// stallState tracks stall sweeper metrics (thread-safe).
type stallState struct {
	mu               sync.Mutex
	lastStallScan    time.Time
	stalledRecovered int
}

// runStallSweeper periodically scans for jobs whose worker stopped
// heartbeating. All pods run this independently; the recovery update is
// guarded so only one pod wins per job.
func (p *WorkerPool) runStallSweeper(ctx context.Context) {
	ticker := time.NewTicker(p.config.StallSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.sweepStalledJobs(ctx); err != nil {
				slog.Error("Stall sweep failed", "error", err)
			}
		}
	}
}

// sweepStalledJobs re-queues stalled jobs that still have attempts left and
// fails the rest. A job is stalled when it is in progress and its heartbeat
// is older than the lock duration.
func (p *WorkerPool) sweepStalledJobs(ctx context.Context) error {
	threshold := time.Now().Add(-p.config.LockDuration)

	requeued, err := requeueStalled(ctx, p.pool, threshold, p.config.MaxStalledRetries, p.config.BackoffInitial)
	if err != nil {
		return err
	}
	failed, err := failExhausted(ctx, p.pool, threshold, p.config.MaxStalledRetries)
	if err != nil {
		return err
	}

	if requeued > 0 || failed > 0 {
		slog.Warn("Recovered stalled jobs", "requeued", requeued, "failed", failed)
	}

	p.stalls.mu.Lock()
	p.stalls.lastStallScan = time.Now()
	p.stalls.stalledRecovered += requeued + failed
	p.stalls.mu.Unlock()
	return nil
}

// requeueStalled returns stalled jobs with remaining attempts to pending,
// with an exponential backoff delay derived from the attempts already made.
func requeueStalled(ctx context.Context, pool *pgxpool.Pool, threshold time.Time, maxRetries int, backoffInitial time.Duration) (int, error) {
	tag, err := pool.Exec(ctx, `
		UPDATE jobs
		SET status = $1,
			error_message = 'stalled: no heartbeat from pod ' || COALESCE(pod_id, 'unknown'),
			next_attempt_at = now() + ($4::interval * power(2, attempts - 1)),
			pod_id = NULL
		WHERE status = $2
		  AND last_heartbeat_at IS NOT NULL
		  AND last_heartbeat_at < $3
		  AND attempts < $5`,
		StatusPending, StatusInProgress, threshold, backoffInitial.String(), maxRetries)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stalled jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// failExhausted marks stalled jobs with no attempts left as failed.
func failExhausted(ctx context.Context, pool *pgxpool.Pool, threshold time.Time, maxRetries int) (int, error) {
	tag, err := pool.Exec(ctx, `
		UPDATE jobs
		SET status = $1, completed_at = now(),
			error_message = 'stalled after ' || attempts || ' attempt(s): no heartbeat from pod ' || COALESCE(pod_id, 'unknown')
		WHERE status = $2
		  AND last_heartbeat_at IS NOT NULL
		  AND last_heartbeat_at < $3
		  AND attempts >= $4`,
		StatusFailed, StatusInProgress, threshold, maxRetries)
	if err != nil {
		return 0, fmt.Errorf("failed to fail exhausted jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// CleanupStartupStalls re-queues jobs this pod left in progress when it
// previously crashed. Called once during startup, before workers begin.
func CleanupStartupStalls(ctx context.Context, pool *pgxpool.Pool, podID string, cfg *config.QueueConfig) error {
	if cfg == nil {
		cfg = config.DefaultQueueConfig()
	}

	tag, err := pool.Exec(ctx, `
		UPDATE jobs
		SET status = CASE WHEN attempts < $3 THEN $4 ELSE $5 END,
			error_message = 'pod ' || $2 || ' restarted while job was in progress',
			next_attempt_at = now(),
			pod_id = NULL,
			completed_at = CASE WHEN attempts < $3 THEN NULL ELSE now() END
		WHERE status = $1 AND pod_id = $2`,
		StatusInProgress, podID, cfg.MaxStalledRetries, StatusPending, StatusFailed)
	if err != nil {
		return fmt.Errorf("failed to clean up startup stalls: %w", err)
	}

	if n := tag.RowsAffected(); n > 0 {
		slog.Warn("Recovered jobs from previous pod run", "pod_id", podID, "count", n)
	}
	return nil
}
