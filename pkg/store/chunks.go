package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/loglens/loglens/pkg/models"
)

// ReplaceChunks atomically replaces all chunks of a run: existing chunks are
// deleted, then the new set is inserted in index order with a null embedding.
// Because deletion happens first inside the transaction, re-running the same
// ingestion is idempotent.
func (s *Store) ReplaceChunks(ctx context.Context, runID string, chunks []models.Chunk) ([]models.Chunk, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE run_id = $1`, runID); err != nil {
		return nil, fmt.Errorf("failed to delete prior chunks: %w", err)
	}

	const q = `
		INSERT INTO chunks (chunk_id, run_id, chunk_index, step_name, content,
			start_line, end_line, line_count, token_estimate, has_errors, error_count, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULL)
		RETURNING created_at`

	out := make([]models.Chunk, len(chunks))
	for i, chunk := range chunks {
		chunk.ID = uuid.New().String()
		chunk.RunID = runID
		err := tx.QueryRow(ctx, q,
			chunk.ID, runID, chunk.Index, chunk.StepName, chunk.Content,
			chunk.StartLine, chunk.EndLine, chunk.LineCount, chunk.TokenEstimate,
			chunk.HasErrors, chunk.ErrorCount,
		).Scan(&chunk.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert chunk %d: %w", chunk.Index, err)
		}
		out[i] = chunk
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit chunk replacement: %w", err)
	}
	return out, nil
}

// UpdateChunkEmbedding stores the embedding vector for one chunk.
// Writing the same vector twice is a no-op at the column level.
func (s *Store) UpdateChunkEmbedding(ctx context.Context, chunkID string, vec []float32) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE chunks SET embedding = $2 WHERE chunk_id = $1`,
		chunkID, pgvector.NewVector(vec))
	if err != nil {
		return fmt.Errorf("failed to update chunk embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetChunksByRun returns a run's chunks in index order.
func (s *Store) GetChunksByRun(ctx context.Context, runID string) ([]models.Chunk, error) {
	const q = `
		SELECT chunk_id, run_id, chunk_index, step_name, content, start_line,
			end_line, line_count, token_estimate, has_errors, error_count, created_at
		FROM chunks WHERE run_id = $1 ORDER BY chunk_index`

	rows, err := s.pool.Query(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.ID, &c.RunID, &c.Index, &c.StepName, &c.Content,
			&c.StartLine, &c.EndLine, &c.LineCount, &c.TokenEstimate,
			&c.HasErrors, &c.ErrorCount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// EmbeddingStats reports embedding coverage over the chunk table.
func (s *Store) EmbeddingStats(ctx context.Context) (models.EmbeddingStats, error) {
	const q = `
		SELECT count(*), count(embedding)
		FROM chunks`

	var stats models.EmbeddingStats
	if err := s.pool.QueryRow(ctx, q).Scan(&stats.Total, &stats.WithEmbeddings); err != nil {
		return models.EmbeddingStats{}, fmt.Errorf("failed to query embedding stats: %w", err)
	}
	stats.WithoutEmbeddings = stats.Total - stats.WithEmbeddings
	if stats.Total > 0 {
		stats.PercentComplete = 100 * float64(stats.WithEmbeddings) / float64(stats.Total)
	}
	return stats, nil
}
