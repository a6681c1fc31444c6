// Package api is the HTTP surface: job submission, synchronous log analysis,
// run and analysis reads, semantic search, and health.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loglens/loglens/pkg/config"
	"github.com/loglens/loglens/pkg/models"
	"github.com/loglens/loglens/pkg/queue"
	"github.com/loglens/loglens/pkg/store"
)

// AnalysisStore is the read surface the API serves from.
type AnalysisStore interface {
	GetRun(ctx context.Context, runID string) (models.Run, error)
	ListRecentRuns(ctx context.Context, limit int) ([]models.Run, error)
	GetAnalysisByRunID(ctx context.Context, runID string) (models.AnalysisResult, error)
	FindSimilarChunks(ctx context.Context, queryVec []float32, limit int, minSim float64) ([]store.ChunkMatch, error)
	FindSimilarErrors(ctx context.Context, queryVec []float32, limit int, minSim float64) ([]store.ChunkMatch, error)
	EmbeddingStats(ctx context.Context) (models.EmbeddingStats, error)
}

// TextAnalyzer handles the synchronous analyze path.
type TextAnalyzer interface {
	AnalyzeText(ctx context.Context, rawLog string) (models.AnalysisResult, error)
}

// JobEnqueuer submits and reads queue jobs.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, payload queue.JobPayload, maxAttempts int) (string, error)
	GetJob(ctx context.Context, jobID string) (*queue.Job, error)
}

// QueryEmbedder embeds search queries.
type QueryEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// HealthReporter reports worker pool health.
type HealthReporter interface {
	Health() *queue.PoolHealth
}

// Server holds the API dependencies. Any of analyzer, jobs, embedder, and
// pool may be nil; the corresponding endpoints then answer 503.
type Server struct {
	store    AnalysisStore
	analyzer TextAnalyzer
	jobs     JobEnqueuer
	embedder QueryEmbedder
	pool     HealthReporter
	cfg      *config.PipelineConfig
	queueCfg *config.QueueConfig
	logger   *slog.Logger
}

// NewServer creates the API server.
func NewServer(st AnalysisStore, analyzer TextAnalyzer, jobs JobEnqueuer, embedder QueryEmbedder, pool HealthReporter, cfg *config.PipelineConfig, queueCfg *config.QueueConfig, logger *slog.Logger) *Server {
	if st == nil {
		panic("api.NewServer: store must not be nil")
	}
	if cfg == nil {
		cfg = config.DefaultPipelineConfig()
	}
	if queueCfg == nil {
		queueCfg = config.DefaultQueueConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:    st,
		analyzer: analyzer,
		jobs:     jobs,
		embedder: embedder,
		pool:     pool,
		cfg:      cfg,
		queueCfg: queueCfg,
		logger:   logger,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", s.Health)
	r.POST("/analyze", s.AnalyzeLog)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/jobs", s.CreateJob)
		v1.GET("/jobs/:id", s.GetJob)
		v1.GET("/runs", s.ListRuns)
		v1.GET("/runs/:id/analysis", s.GetRunAnalysis)
		v1.GET("/search", s.Search)
		v1.GET("/stats/embeddings", s.EmbeddingStats)
	}
	return r
}

// requestLogger logs each request with latency and status.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("Request handled",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start))
	}
}

// HTTPServer wraps the router in an http.Server with sane timeouts. The
// write timeout must cover a synchronous LLM-backed analyze call.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}
}
