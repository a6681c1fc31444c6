// Package embedder generates vector embeddings for log chunks. Embedding is
// best effort: a failed chunk is logged and skipped, never fatal to the
// ingestion pipeline, and the run's analysis proceeds without it.
package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/loglens/loglens/pkg/config"
	"github.com/loglens/loglens/pkg/llm"
	"github.com/loglens/loglens/pkg/models"
)

// Embedder turns chunk content into fixed-dimension vectors via an LLM
// provider and persists them through the given sink.
type Embedder struct {
	provider llm.Provider
	sink     Sink
	cfg      *config.PipelineConfig
	logger   *slog.Logger
}

// Sink persists one embedding per chunk.
type Sink interface {
	UpdateChunkEmbedding(ctx context.Context, chunkID string, vec []float32) error
}

// New creates an Embedder.
func New(provider llm.Provider, sink Sink, cfg *config.PipelineConfig, logger *slog.Logger) *Embedder {
	if provider == nil {
		panic("embedder.New: provider must not be nil")
	}
	if sink == nil {
		panic("embedder.New: sink must not be nil")
	}
	if cfg == nil {
		cfg = config.DefaultPipelineConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{provider: provider, sink: sink, cfg: cfg, logger: logger}
}

// EmbedChunks embeds and persists every chunk in order, pacing calls so the
// provider is not hammered. It returns the number of chunks that failed;
// the error return is reserved for context cancellation.
func (e *Embedder) EmbedChunks(ctx context.Context, chunks []models.Chunk) (int, error) {
	failed := 0
	for i := range chunks {
		if err := ctx.Err(); err != nil {
			return failed, err
		}

		chunk := &chunks[i]
		vec, err := e.EmbedText(ctx, chunk.Content)
		if err != nil {
			failed++
			e.logger.Warn("Failed to embed chunk",
				"chunk_id", chunk.ID,
				"chunk_index", chunk.Index,
				"error", err)
		} else if err := e.sink.UpdateChunkEmbedding(ctx, chunk.ID, vec); err != nil {
			failed++
			e.logger.Warn("Failed to persist chunk embedding",
				"chunk_id", chunk.ID,
				"chunk_index", chunk.Index,
				"error", err)
		} else {
			chunk.Embedding = vec
		}

		if i < len(chunks)-1 && e.cfg.EmbeddingInterCallDelay > 0 {
			select {
			case <-time.After(e.cfg.EmbeddingInterCallDelay):
			case <-ctx.Done():
				return failed, ctx.Err()
			}
		}
	}

	if failed > 0 {
		e.logger.Warn("Embedding pass completed with failures",
			"total", len(chunks), "failed", failed)
	}
	return failed, nil
}

// EmbedText normalizes and embeds a single text, enforcing the configured
// vector dimension.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	prepared := e.prepare(text)
	if prepared == "" {
		return nil, fmt.Errorf("nothing to embed after normalization")
	}

	vec, err := e.provider.Embed(ctx, prepared)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(vec) != e.cfg.EmbeddingDim {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d",
			len(vec), e.cfg.EmbeddingDim)
	}
	return vec, nil
}

// prepare collapses whitespace runs to single spaces and truncates to the
// provider's input ceiling.
func (e *Embedder) prepare(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	if max := e.cfg.EmbeddingMaxChars; max > 0 && len(collapsed) > max {
		e.logger.Warn("Truncating text for embedding",
			"original_chars", len(collapsed), "max_chars", max)
		collapsed = collapsed[:max]
	}
	return collapsed
}
