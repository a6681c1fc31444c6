package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Client enqueues log-processing jobs. Dedup is not attempted: two webhooks
// for the same run produce two jobs, and the idempotent pipeline makes the
// second a harmless replay.
type Client struct {
	pool *pgxpool.Pool
}

// NewClient creates a queue client on the given pool.
func NewClient(pool *pgxpool.Pool) *Client {
	if pool == nil {
		panic("queue.NewClient: pool must not be nil")
	}
	return &Client{pool: pool}
}

// Enqueue inserts a pending job and returns its id.
func (c *Client) Enqueue(ctx context.Context, payload JobPayload, maxAttempts int) (string, error) {
	if payload.RepoFullName == "" {
		return "", fmt.Errorf("job payload missing repoFullName")
	}
	if payload.RunID <= 0 {
		return "", fmt.Errorf("job payload missing runId")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job payload: %w", err)
	}

	jobID := uuid.New().String()
	_, err = c.pool.Exec(ctx, `
		INSERT INTO jobs (job_id, queue, name, payload, status, max_attempts)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		jobID, QueueName, JobName, body, StatusPending, maxAttempts)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}
	return jobID, nil
}

// GetJob fetches one job by id.
func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	row := c.pool.QueryRow(ctx, `
		SELECT job_id, queue, name, payload, status, attempts, max_attempts,
			COALESCE(pod_id, ''), COALESCE(error_message, ''),
			next_attempt_at, last_heartbeat_at, created_at, started_at, completed_at
		FROM jobs WHERE job_id = $1`, jobID)
	return scanJob(row)
}

// PruneJobs deletes finished jobs with the given status whose completed_at
// is older than the retention window. Returns the number of rows removed.
func (c *Client) PruneJobs(ctx context.Context, status string, olderThan time.Duration) (int64, error) {
	tag, err := c.pool.Exec(ctx, `
		DELETE FROM jobs
		WHERE queue = $1 AND status = $2 AND completed_at < now() - $3::interval`,
		QueueName, status, olderThan.String())
	if err != nil {
		return 0, fmt.Errorf("failed to prune %s jobs: %w", status, err)
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job     Job
		rawBody []byte
	)
	err := row.Scan(&job.ID, &job.Queue, &job.Name, &rawBody, &job.Status,
		&job.Attempts, &job.MaxAttempts, &job.PodID, &job.ErrorMessage,
		&job.NextAttemptAt, &job.LastHeartbeatAt, &job.CreatedAt,
		&job.StartedAt, &job.CompletedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rawBody, &job.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload of job %s: %w", job.ID, err)
	}
	return &job, nil
}
