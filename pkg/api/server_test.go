package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loglens/loglens/pkg/config"
	"github.com/loglens/loglens/pkg/models"
	"github.com/loglens/loglens/pkg/queue"
	"github.com/loglens/loglens/pkg/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStore struct {
	run         models.Run
	runErr      error
	runs        []models.Run
	analysis    models.AnalysisResult
	analysisErr error
	matches     []store.ChunkMatch
	searchErr   error
	stats       models.EmbeddingStats
	errorsOnly  bool
	gotMinSim   float64
	gotLimit    int
}

func (f *fakeStore) GetRun(ctx context.Context, runID string) (models.Run, error) {
	return f.run, f.runErr
}

func (f *fakeStore) ListRecentRuns(ctx context.Context, limit int) ([]models.Run, error) {
	return f.runs, nil
}

func (f *fakeStore) GetAnalysisByRunID(ctx context.Context, runID string) (models.AnalysisResult, error) {
	return f.analysis, f.analysisErr
}

func (f *fakeStore) FindSimilarChunks(ctx context.Context, queryVec []float32, limit int, minSim float64) ([]store.ChunkMatch, error) {
	f.errorsOnly = false
	f.gotLimit = limit
	f.gotMinSim = minSim
	return f.matches, f.searchErr
}

func (f *fakeStore) FindSimilarErrors(ctx context.Context, queryVec []float32, limit int, minSim float64) ([]store.ChunkMatch, error) {
	f.errorsOnly = true
	f.gotLimit = limit
	f.gotMinSim = minSim
	return f.matches, f.searchErr
}

func (f *fakeStore) EmbeddingStats(ctx context.Context) (models.EmbeddingStats, error) {
	return f.stats, nil
}

type fakeAnalyzer struct {
	result models.AnalysisResult
	err    error
}

func (f *fakeAnalyzer) AnalyzeText(ctx context.Context, rawLog string) (models.AnalysisResult, error) {
	return f.result, f.err
}

type fakeJobs struct {
	jobID      string
	enqueueErr error
	job        *queue.Job
	getErr     error
	gotPayload queue.JobPayload
}

func (f *fakeJobs) Enqueue(ctx context.Context, payload queue.JobPayload, maxAttempts int) (string, error) {
	f.gotPayload = payload
	return f.jobID, f.enqueueErr
}

func (f *fakeJobs) GetJob(ctx context.Context, jobID string) (*queue.Job, error) {
	return f.job, f.getErr
}

type fakeQueryEmbedder struct {
	err error
}

func (f *fakeQueryEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return make([]float32, 768), nil
}

type fakePool struct {
	health queue.PoolHealth
}

func (f *fakePool) Health() *queue.PoolHealth {
	return &f.health
}

type serverFixture struct {
	store    *fakeStore
	analyzer *fakeAnalyzer
	jobs     *fakeJobs
	embedder *fakeQueryEmbedder
	pool     *fakePool
	router   *gin.Engine
}

func newFixture() *serverFixture {
	f := &serverFixture{
		store:    &fakeStore{},
		analyzer: &fakeAnalyzer{},
		jobs:     &fakeJobs{jobID: "job-1"},
		embedder: &fakeQueryEmbedder{},
		pool:     &fakePool{health: queue.PoolHealth{IsHealthy: true, TotalWorkers: 5}},
	}
	srv := NewServer(f.store, f.analyzer, f.jobs, f.embedder, f.pool,
		config.DefaultPipelineConfig(), config.DefaultQueueConfig(), slog.Default())
	f.router = srv.Router()
	return f
}

func (f *serverFixture) do(method, path, contentType, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	t.Run("healthy pool", func(t *testing.T) {
		f := newFixture()
		w := f.do(http.MethodGet, "/health", "", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "healthy", decode(t, w)["status"])
	})

	t.Run("unhealthy pool answers 503", func(t *testing.T) {
		f := newFixture()
		f.pool.health.IsHealthy = false
		w := f.do(http.MethodGet, "/health", "", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "unhealthy", decode(t, w)["status"])
	})
}

func TestAnalyzeLog(t *testing.T) {
	t.Run("returns analysis fields", func(t *testing.T) {
		f := newFixture()
		f.analyzer.result = models.AnalysisResult{
			RootCause:    "missing module",
			FailureStage: "Install dependencies",
			SuggestedFix: "run npm install",
			FailureType:  "DEPENDENCY",
			Priority:     7,
			DetectedErrors: []models.DetectedError{
				{Category: "Dependency Issue", Message: "Cannot find module 'react'"},
			},
		}

		w := f.do(http.MethodPost, "/analyze", "text/plain", "npm ERR! Cannot find module 'react'")
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "missing module", body["rootCause"])
		assert.Equal(t, "Install dependencies", body["failureStage"])
		assert.Equal(t, "DEPENDENCY", body["failureType"])
		assert.Len(t, body["detectedErrors"], 1)
	})

	t.Run("empty body is rejected", func(t *testing.T) {
		f := newFixture()
		w := f.do(http.MethodPost, "/analyze", "text/plain", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unparseable log answers 422", func(t *testing.T) {
		f := newFixture()
		f.analyzer.err = errors.New("log produced no content after cleaning")
		w := f.do(http.MethodPost, "/analyze", "text/plain", "\x1b[31m\x1b[0m")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestCreateJob(t *testing.T) {
	t.Run("valid payload is accepted", func(t *testing.T) {
		f := newFixture()
		w := f.do(http.MethodPost, "/api/v1/jobs", "application/json",
			`{"repoFullName": "acme/widgets", "runId": 42, "installationId": 7}`)
		require.Equal(t, http.StatusAccepted, w.Code)
		body := decode(t, w)
		assert.Equal(t, "job-1", body["job_id"])
		assert.Equal(t, queue.StatusPending, body["status"])
		assert.Equal(t, "acme/widgets", f.jobs.gotPayload.RepoFullName)
	})

	t.Run("malformed JSON is rejected", func(t *testing.T) {
		f := newFixture()
		w := f.do(http.MethodPost, "/api/v1/jobs", "application/json", `{"repoFullName":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("enqueue validation error is a bad request", func(t *testing.T) {
		f := newFixture()
		f.jobs.enqueueErr = errors.New("job payload missing runId")
		w := f.do(http.MethodPost, "/api/v1/jobs", "application/json",
			`{"repoFullName": "acme/widgets"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetJob(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		f := newFixture()
		f.jobs.job = &queue.Job{ID: "job-1", Status: queue.StatusCompleted, Attempts: 1, MaxAttempts: 3}
		w := f.do(http.MethodGet, "/api/v1/jobs/job-1", "", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, queue.StatusCompleted, decode(t, w)["status"])
	})

	t.Run("missing answers 404", func(t *testing.T) {
		f := newFixture()
		f.jobs.getErr = errors.New("no rows")
		w := f.do(http.MethodGet, "/api/v1/jobs/nope", "", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestGetRunAnalysis(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		f := newFixture()
		f.store.analysis = models.AnalysisResult{RunID: "run-1", FailureType: "TEST", UsedLLM: true}
		w := f.do(http.MethodGet, "/api/v1/runs/run-1/analysis", "", "")
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "TEST", body["failureType"])
		assert.Equal(t, true, body["usedLLM"])
	})

	t.Run("missing answers 404", func(t *testing.T) {
		f := newFixture()
		f.store.analysisErr = store.ErrNotFound
		w := f.do(http.MethodGet, "/api/v1/runs/run-x/analysis", "", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestSearch(t *testing.T) {
	t.Run("missing query is rejected", func(t *testing.T) {
		f := newFixture()
		w := f.do(http.MethodGet, "/api/v1/search", "", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("defaults applied", func(t *testing.T) {
		f := newFixture()
		f.store.matches = []store.ChunkMatch{
			{Chunk: models.Chunk{ID: "c-1", StepName: "Build"}, Similarity: 0.9},
		}
		w := f.do(http.MethodGet, "/api/v1/search?q=cannot+find+module", "", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.False(t, f.store.errorsOnly)
		assert.Equal(t, defaultSearchLimit, f.store.gotLimit)
		assert.Equal(t, 0.7, f.store.gotMinSim)
		assert.Len(t, decode(t, w)["results"], 1)
	})

	t.Run("errors_only and overrides", func(t *testing.T) {
		f := newFixture()
		w := f.do(http.MethodGet, "/api/v1/search?q=timeout&errors_only=true&limit=5&min_similarity=0.85", "", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, f.store.errorsOnly)
		assert.Equal(t, 5, f.store.gotLimit)
		assert.Equal(t, 0.85, f.store.gotMinSim)
	})

	t.Run("embedding failure answers 502", func(t *testing.T) {
		f := newFixture()
		f.embedder.err = errors.New("provider down")
		w := f.do(http.MethodGet, "/api/v1/search?q=x", "", "")
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestEmbeddingStats(t *testing.T) {
	f := newFixture()
	f.store.stats = models.EmbeddingStats{Total: 10, WithEmbeddings: 8, WithoutEmbeddings: 2, PercentComplete: 80}
	w := f.do(http.MethodGet, "/api/v1/stats/embeddings", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(10), body["total"])
	assert.Equal(t, float64(80), body["percentComplete"])
}

func TestListRuns(t *testing.T) {
	f := newFixture()
	f.store.runs = []models.Run{{ID: "run-1", WorkflowName: "ci"}}
	w := f.do(http.MethodGet, "/api/v1/runs", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["runs"], 1)
}
