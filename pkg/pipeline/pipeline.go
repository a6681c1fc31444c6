// Package pipeline runs a log through every processing stage in order:
// clean, detect steps, chunk, extract errors, persist chunks, embed,
// classify, analyze. Chunk persistence completes before embedding starts,
// every embedding attempt finishes before classification, and the
// AnalysisResult upsert is the last write.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/loglens/loglens/pkg/config"
	"github.com/loglens/loglens/pkg/logparse"
	"github.com/loglens/loglens/pkg/masking"
	"github.com/loglens/loglens/pkg/models"
	"github.com/loglens/loglens/pkg/patterns"
)

// ChunkStore persists the chunk set of a run.
type ChunkStore interface {
	ReplaceChunks(ctx context.Context, runID string, chunks []models.Chunk) ([]models.Chunk, error)
}

// ChunkEmbedder embeds a run's chunks best effort.
type ChunkEmbedder interface {
	EmbedChunks(ctx context.Context, chunks []models.Chunk) (int, error)
}

// RunAnalyzer turns chunks and errors into a persisted AnalysisResult.
type RunAnalyzer interface {
	Analyze(ctx context.Context, runID string, chunks []models.Chunk, errs []models.DetectedError, steps []models.LogStep) (models.AnalysisResult, error)
	BuildAnalysis(ctx context.Context, runID string, chunks []models.Chunk, errs []models.DetectedError, steps []models.LogStep) models.AnalysisResult
}

// Pipeline processes one run's raw log end to end.
type Pipeline struct {
	store    ChunkStore
	embedder ChunkEmbedder
	analyzer RunAnalyzer
	masker   *masking.Masker
	cfg      *config.PipelineConfig
	logger   *slog.Logger
}

// New creates a Pipeline. The embedder may be nil; chunks are then persisted
// without vectors and retrieval finds nothing for this run.
func New(store ChunkStore, embedder ChunkEmbedder, analyzer RunAnalyzer, cfg *config.PipelineConfig, logger *slog.Logger) *Pipeline {
	if store == nil {
		panic("pipeline.New: store must not be nil")
	}
	if analyzer == nil {
		panic("pipeline.New: analyzer must not be nil")
	}
	if cfg == nil {
		cfg = config.DefaultPipelineConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:    store,
		embedder: embedder,
		analyzer: analyzer,
		masker:   masking.NewMasker(),
		cfg:      cfg,
		logger:   logger,
	}
}

// Process runs the full pipeline for a persisted run. The chunk replacement
// is the first write, so a retried job safely redoes everything.
func (p *Pipeline) Process(ctx context.Context, runID string, rawLog string) (models.AnalysisResult, error) {
	start := time.Now()

	// Secrets are scrubbed before anything is stored or prompted.
	lines, steps, chunks := logparse.Parse(p.masker.Mask(rawLog), p.cfg)
	if len(chunks) == 0 {
		return models.AnalysisResult{}, fmt.Errorf("log for run %s produced no content after cleaning", runID)
	}
	errs := patterns.Extract(chunks)

	p.logger.Info("Parsed log",
		"run_id", runID,
		"lines", len(lines),
		"steps", len(steps),
		"chunks", len(chunks),
		"detected_errors", len(errs))

	persisted, err := p.store.ReplaceChunks(ctx, runID, chunks)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("failed to persist chunks: %w", err)
	}

	if p.embedder != nil {
		failed, err := p.embedder.EmbedChunks(ctx, persisted)
		if err != nil {
			return models.AnalysisResult{}, fmt.Errorf("embedding pass aborted: %w", err)
		}
		if failed > 0 {
			p.logger.Warn("Some chunks have no embedding",
				"run_id", runID, "failed", failed, "total", len(persisted))
		}
	}

	result, err := p.analyzer.Analyze(ctx, runID, persisted, errs, steps)
	if err != nil {
		return models.AnalysisResult{}, err
	}

	p.logger.Info("Pipeline completed",
		"run_id", runID,
		"failure_type", result.FailureType,
		"used_llm", result.UsedLLM,
		"duration", time.Since(start))
	return result, nil
}

// AnalyzeText is the synchronous path for directly submitted logs: parse,
// extract, classify, analyze — nothing is persisted and nothing is embedded.
func (p *Pipeline) AnalyzeText(ctx context.Context, rawLog string) (models.AnalysisResult, error) {
	_, steps, chunks := logparse.Parse(p.masker.Mask(rawLog), p.cfg)
	if len(chunks) == 0 {
		return models.AnalysisResult{}, fmt.Errorf("log produced no content after cleaning")
	}
	errs := patterns.Extract(chunks)
	return p.analyzer.BuildAnalysis(ctx, "", chunks, errs, steps), nil
}
