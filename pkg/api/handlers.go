package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/loglens/loglens/pkg/models"
	"github.com/loglens/loglens/pkg/queue"
	"github.com/loglens/loglens/pkg/store"
)

// maxAnalyzeBodyBytes bounds the size of directly submitted logs.
const maxAnalyzeBodyBytes = 32 << 20 // 32 MiB

const defaultSearchLimit = 10

// Health handles GET /health.
func (s *Server) Health(c *gin.Context) {
	resp := gin.H{"status": "healthy"}

	if s.pool != nil {
		poolHealth := s.pool.Health()
		resp["queue"] = poolHealth
		if !poolHealth.IsHealthy {
			resp["status"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}

// AnalyzeLog handles POST /analyze: a text/plain log body is parsed and
// analyzed synchronously, persisting nothing.
func (s *Server) AnalyzeLog(c *gin.Context) {
	if s.analyzer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analysis is not configured"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxAnalyzeBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body is empty"})
		return
	}

	result, err := s.analyzer.AnalyzeText(c.Request.Context(), string(body))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"detectedErrors": emptyIfNil(result.DetectedErrors),
		"steps":          emptyIfNilSteps(result.Steps),
		"rootCause":      result.RootCause,
		"failureStage":   result.FailureStage,
		"suggestedFix":   result.SuggestedFix,
		"failureType":    result.FailureType,
		"priority":       result.Priority,
		"confidence":     result.Confidence,
		"usedLLM":        result.UsedLLM,
	})
}

// CreateJob handles POST /api/v1/jobs: enqueue a log-processing job.
func (s *Server) CreateJob(c *gin.Context) {
	if s.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job queue is not configured"})
		return
	}

	var payload queue.JobPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobID, err := s.jobs.Enqueue(c.Request.Context(), payload, s.queueCfg.MaxStalledRetries)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.logger.Info("Job enqueued",
		"job_id", jobID, "repo", payload.RepoFullName, "provider_run_id", payload.RunID)
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "status": queue.StatusPending})
}

// GetJob handles GET /api/v1/jobs/:id.
func (s *Server) GetJob(c *gin.Context) {
	if s.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job queue is not configured"})
		return
	}

	job, err := s.jobs.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":        job.ID,
		"status":        job.Status,
		"attempts":      job.Attempts,
		"max_attempts":  job.MaxAttempts,
		"error_message": job.ErrorMessage,
		"created_at":    job.CreatedAt,
		"started_at":    job.StartedAt,
		"completed_at":  job.CompletedAt,
	})
}

// ListRuns handles GET /api/v1/runs.
func (s *Server) ListRuns(c *gin.Context) {
	limit := intQuery(c, "limit", 20)
	runs, err := s.store.ListRecentRuns(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if runs == nil {
		runs = []models.Run{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRunAnalysis handles GET /api/v1/runs/:id/analysis.
func (s *Server) GetRunAnalysis(c *gin.Context) {
	runID := c.Param("id")

	analysis, err := s.store.GetAnalysisByRunID(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
			return
		}
		s.logger.Error("Failed to fetch analysis", "run_id", runID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// Search handles GET /api/v1/search: semantic search over log chunks.
// Query params: q (required), limit, min_similarity, errors_only.
func (s *Server) Search(c *gin.Context) {
	if s.embedder == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search is not configured"})
		return
	}

	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}

	limit := intQuery(c, "limit", defaultSearchLimit)
	minSim := floatQuery(c, "min_similarity", s.cfg.SearchDefaultMinSimilarity)
	errorsOnly := c.Query("errors_only") == "true"

	vec, err := s.embedder.EmbedText(c.Request.Context(), query)
	if err != nil {
		s.logger.Error("Failed to embed search query", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to embed query"})
		return
	}

	var matches []store.ChunkMatch
	if errorsOnly {
		matches, err = s.store.FindSimilarErrors(c.Request.Context(), vec, limit, minSim)
	} else {
		matches, err = s.store.FindSimilarChunks(c.Request.Context(), vec, limit, minSim)
	}
	if err != nil {
		s.logger.Error("Search query failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	results := make([]gin.H, 0, len(matches))
	for _, m := range matches {
		results = append(results, gin.H{
			"chunk_id":   m.Chunk.ID,
			"run_id":     m.Chunk.RunID,
			"step_name":  m.Chunk.StepName,
			"content":    m.Chunk.Content,
			"similarity": m.Similarity,
			"has_errors": m.Chunk.HasErrors,
		})
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "results": results})
}

// EmbeddingStats handles GET /api/v1/stats/embeddings.
func (s *Server) EmbeddingStats(c *gin.Context) {
	stats, err := s.store.EmbeddingStats(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to fetch embedding stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func intQuery(c *gin.Context, name string, defaultVal int) int {
	if raw := c.Query(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return defaultVal
}

func floatQuery(c *gin.Context, name string, defaultVal float64) float64 {
	if raw := c.Query(name); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 && v <= 1 {
			return v
		}
	}
	return defaultVal
}

func emptyIfNil(errs []models.DetectedError) []models.DetectedError {
	if errs == nil {
		return []models.DetectedError{}
	}
	return errs
}

func emptyIfNilSteps(steps []models.LogStep) []models.LogStep {
	if steps == nil {
		return []models.LogStep{}
	}
	return steps
}
