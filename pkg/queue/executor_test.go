package queue

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loglens/loglens/pkg/config"
	"github.com/loglens/loglens/pkg/models"
	"github.com/loglens/loglens/pkg/pipeline"
	"github.com/loglens/loglens/pkg/provider"
)

type fakeFetcher struct {
	log string
	err error
}

func (f *fakeFetcher) FetchRunLog(ctx context.Context, repoFullName string, providerRunID int64) (string, error) {
	return f.log, f.err
}

type fakeRunStore struct {
	repoErr error
	runErr  error
	gotRepo models.Repository
	gotRun  models.Run
}

func (f *fakeRunStore) UpsertRepository(ctx context.Context, repo models.Repository) (models.Repository, error) {
	if f.repoErr != nil {
		return models.Repository{}, f.repoErr
	}
	repo.ID = "repo-1"
	f.gotRepo = repo
	return repo, nil
}

func (f *fakeRunStore) UpsertRun(ctx context.Context, run models.Run) (models.Run, error) {
	if f.runErr != nil {
		return models.Run{}, f.runErr
	}
	run.ID = "run-1"
	f.gotRun = run
	return run, nil
}

type fakeChunkStore struct{}

func (fakeChunkStore) ReplaceChunks(ctx context.Context, runID string, chunks []models.Chunk) ([]models.Chunk, error) {
	return chunks, nil
}

type fakePipelineAnalyzer struct{}

func (fakePipelineAnalyzer) Analyze(ctx context.Context, runID string, chunks []models.Chunk, errs []models.DetectedError, steps []models.LogStep) (models.AnalysisResult, error) {
	return models.AnalysisResult{RunID: runID, FailureType: "TEST"}, nil
}

func (fakePipelineAnalyzer) BuildAnalysis(ctx context.Context, runID string, chunks []models.Chunk, errs []models.DetectedError, steps []models.LogStep) models.AnalysisResult {
	return models.AnalysisResult{RunID: runID, FailureType: "TEST"}
}

func newTestExecutor(fetcher *fakeFetcher, runStore *fakeRunStore) *LogProcessingExecutor {
	pl := pipeline.New(fakeChunkStore{}, nil, fakePipelineAnalyzer{}, config.DefaultPipelineConfig(), slog.Default())
	return NewLogProcessingExecutor(fetcher, runStore, pl, slog.Default())
}

func sampleJob(repoFullName string) *Job {
	return &Job{
		ID: "job-1",
		Payload: JobPayload{
			RepoFullName:   repoFullName,
			RunID:          42,
			InstallationID: 7,
		},
	}
}

func TestExecuteSuccess(t *testing.T) {
	fetcher := &fakeFetcher{log: "Run npm test\n1 test failed\n"}
	runStore := &fakeRunStore{}
	e := newTestExecutor(fetcher, runStore)

	err := e.Execute(context.Background(), sampleJob("acme/widgets"))
	require.NoError(t, err)
	assert.Equal(t, "acme", runStore.gotRepo.Owner)
	assert.Equal(t, "widgets", runStore.gotRepo.Name)
	assert.Equal(t, int64(7), runStore.gotRepo.InstallationID)
	assert.Equal(t, int64(42), runStore.gotRun.ProviderRunID)
	assert.Equal(t, "repo-1", runStore.gotRun.RepositoryID)
}

func TestExecuteMalformedRepoNameIsTerminal(t *testing.T) {
	e := newTestExecutor(&fakeFetcher{}, &fakeRunStore{})

	for _, name := range []string{"", "nosplash", "/name", "owner/"} {
		err := e.Execute(context.Background(), sampleJob(name))
		require.Error(t, err, "name %q", name)
		assert.True(t, IsTerminal(err), "name %q", name)
	}
}

func TestExecuteEmptyLogIsTerminal(t *testing.T) {
	e := newTestExecutor(&fakeFetcher{err: provider.ErrEmptyLog}, &fakeRunStore{})

	err := e.Execute(context.Background(), sampleJob("acme/widgets"))
	require.Error(t, err)
	assert.True(t, IsTerminal(err))
	assert.ErrorIs(t, err, provider.ErrEmptyLog)
}

func TestExecuteBadArchiveIsTerminal(t *testing.T) {
	e := newTestExecutor(&fakeFetcher{err: provider.ErrBadArchive}, &fakeRunStore{})

	err := e.Execute(context.Background(), sampleJob("acme/widgets"))
	require.Error(t, err)
	assert.True(t, IsTerminal(err))
}

func TestExecuteTransportErrorIsRetryable(t *testing.T) {
	e := newTestExecutor(&fakeFetcher{err: errors.New("connection reset by peer")}, &fakeRunStore{})

	err := e.Execute(context.Background(), sampleJob("acme/widgets"))
	require.Error(t, err)
	assert.False(t, IsTerminal(err))
}

func TestExecutePersistenceErrorIsRetryable(t *testing.T) {
	fetcher := &fakeFetcher{log: "Run npm test\n1 test failed\n"}
	e := newTestExecutor(fetcher, &fakeRunStore{repoErr: errors.New("deadlock detected")})

	err := e.Execute(context.Background(), sampleJob("acme/widgets"))
	require.Error(t, err)
	assert.False(t, IsTerminal(err))
	assert.Contains(t, err.Error(), "failed to upsert repository")
}
