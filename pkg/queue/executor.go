package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loglens/loglens/pkg/models"
	"github.com/loglens/loglens/pkg/pipeline"
	"github.com/loglens/loglens/pkg/provider"
	"github.com/loglens/loglens/pkg/store"
)

// RunStore is the persistence surface the executor needs to register the
// repository and run before processing.
type RunStore interface {
	UpsertRepository(ctx context.Context, repo models.Repository) (models.Repository, error)
	UpsertRun(ctx context.Context, run models.Run) (models.Run, error)
}

// LogProcessingExecutor handles one job end to end: fetch the log archive,
// register the repository and run, and push the text through the pipeline.
type LogProcessingExecutor struct {
	fetcher  provider.LogFetcher
	store    RunStore
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
}

// NewLogProcessingExecutor creates the executor.
func NewLogProcessingExecutor(fetcher provider.LogFetcher, runStore RunStore, pl *pipeline.Pipeline, logger *slog.Logger) *LogProcessingExecutor {
	if fetcher == nil {
		panic("queue.NewLogProcessingExecutor: fetcher must not be nil")
	}
	if runStore == nil {
		panic("queue.NewLogProcessingExecutor: store must not be nil")
	}
	if pl == nil {
		panic("queue.NewLogProcessingExecutor: pipeline must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProcessingExecutor{fetcher: fetcher, store: runStore, pipeline: pl, logger: logger}
}

// Execute processes one claimed job. Empty or malformed archives are
// terminal; transport and persistence errors are left retryable.
func (e *LogProcessingExecutor) Execute(ctx context.Context, job *Job) error {
	payload := job.Payload

	owner, name, ok := strings.Cut(payload.RepoFullName, "/")
	if !ok || owner == "" || name == "" {
		return Terminal(fmt.Errorf("malformed repoFullName %q", payload.RepoFullName))
	}

	rawLog, err := e.fetcher.FetchRunLog(ctx, payload.RepoFullName, payload.RunID)
	if err != nil {
		if errors.Is(err, provider.ErrEmptyLog) || errors.Is(err, provider.ErrBadArchive) {
			return Terminal(err)
		}
		return fmt.Errorf("failed to fetch run log: %w", err)
	}

	repo, err := e.store.UpsertRepository(ctx, models.Repository{
		InstallationID: payload.InstallationID,
		Owner:          owner,
		Name:           name,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert repository: %w", err)
	}

	run, err := e.store.UpsertRun(ctx, models.Run{
		RepositoryID:  repo.ID,
		ProviderRunID: payload.RunID,
		Status:        models.RunStatusFailure,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert run: %w", err)
	}

	result, err := e.pipeline.Process(ctx, run.ID, rawLog)
	if err != nil {
		return err
	}

	e.logger.Info("Run analyzed",
		"job_id", job.ID,
		"run_id", run.ID,
		"failure_type", result.FailureType,
		"used_llm", result.UsedLLM)
	return nil
}

var _ JobExecutor = (*LogProcessingExecutor)(nil)
var _ RunStore = (*store.Store)(nil)
