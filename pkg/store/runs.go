package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/loglens/loglens/pkg/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// UpsertRepository inserts or updates a repository keyed by its owner/name
// pair. The installation id is an attribute, not an identity: many
// repositories share one app installation.
func (s *Store) UpsertRepository(ctx context.Context, repo models.Repository) (models.Repository, error) {
	if repo.ID == "" {
		repo.ID = uuid.New().String()
	}

	const q = `
		INSERT INTO repositories (repository_id, installation_id, owner, name, private, user_id)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		ON CONFLICT (owner, name) DO UPDATE SET
			installation_id = EXCLUDED.installation_id,
			private         = EXCLUDED.private
		RETURNING repository_id, created_at`

	err := s.pool.QueryRow(ctx, q,
		repo.ID, repo.InstallationID, repo.Owner, repo.Name, repo.Private, repo.UserID,
	).Scan(&repo.ID, &repo.CreatedAt)
	if err != nil {
		return models.Repository{}, fmt.Errorf("failed to upsert repository: %w", err)
	}
	return repo, nil
}

// UpsertRun inserts or updates a run keyed by its provider run id.
// Status is terminal once set and is not downgraded by a second webhook.
func (s *Store) UpsertRun(ctx context.Context, run models.Run) (models.Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	const q = `
		INSERT INTO runs (run_id, repository_id, provider_run_id, workflow_name,
			status, trigger_event, commit_sha, branch, actor, provider_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (provider_run_id) DO UPDATE SET
			workflow_name = EXCLUDED.workflow_name,
			status        = EXCLUDED.status,
			trigger_event = EXCLUDED.trigger_event,
			commit_sha    = EXCLUDED.commit_sha,
			branch        = EXCLUDED.branch,
			actor         = EXCLUDED.actor,
			provider_url  = EXCLUDED.provider_url
		RETURNING run_id, created_at`

	err := s.pool.QueryRow(ctx, q,
		run.ID, run.RepositoryID, run.ProviderRunID, run.WorkflowName,
		run.Status, run.Trigger, run.CommitSHA, run.Branch, run.Actor, run.ProviderURL,
	).Scan(&run.ID, &run.CreatedAt)
	if err != nil {
		return models.Run{}, fmt.Errorf("failed to upsert run: %w", err)
	}
	return run, nil
}

// GetRun fetches a run by id.
func (s *Store) GetRun(ctx context.Context, runID string) (models.Run, error) {
	const q = `
		SELECT run_id, repository_id, provider_run_id, workflow_name, status,
			trigger_event, commit_sha, branch, actor, provider_url, created_at
		FROM runs WHERE run_id = $1`
	return s.scanRun(s.pool.QueryRow(ctx, q, runID))
}

// GetRunByProviderID fetches a run by its provider run id.
func (s *Store) GetRunByProviderID(ctx context.Context, providerRunID int64) (models.Run, error) {
	const q = `
		SELECT run_id, repository_id, provider_run_id, workflow_name, status,
			trigger_event, commit_sha, branch, actor, provider_url, created_at
		FROM runs WHERE provider_run_id = $1`
	return s.scanRun(s.pool.QueryRow(ctx, q, providerRunID))
}

// ListRecentRuns returns the most recently created runs.
func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]models.Run, error) {
	const q = `
		SELECT run_id, repository_id, provider_run_id, workflow_name, status,
			trigger_event, commit_sha, branch, actor, provider_url, created_at
		FROM runs ORDER BY created_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		run, err := s.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanRun(row rowScanner) (models.Run, error) {
	var run models.Run
	err := row.Scan(&run.ID, &run.RepositoryID, &run.ProviderRunID, &run.WorkflowName,
		&run.Status, &run.Trigger, &run.CommitSHA, &run.Branch, &run.Actor,
		&run.ProviderURL, &run.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Run{}, ErrNotFound
		}
		return models.Run{}, fmt.Errorf("failed to scan run: %w", err)
	}
	return run, nil
}
