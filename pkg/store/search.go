package store

import (
	"context"
	"fmt"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/loglens/loglens/pkg/models"
)

// ChunkMatch is one vector-search hit: a chunk plus its cosine similarity
// (1 − cosine distance; higher is more similar).
type ChunkMatch struct {
	Chunk      models.Chunk
	Similarity float64
}

const chunkMatchColumns = `
	c.chunk_id, c.run_id, c.chunk_index, c.step_name, c.content, c.start_line,
	c.end_line, c.line_count, c.token_estimate, c.has_errors, c.error_count,
	c.created_at, 1 - (c.embedding <=> $1) AS similarity`

// FindSimilarChunks returns up to limit chunks ordered by ascending cosine
// distance whose similarity is at least minSim. Rows without an embedding
// are never candidates.
func (s *Store) FindSimilarChunks(ctx context.Context, queryVec []float32, limit int, minSim float64) ([]ChunkMatch, error) {
	q := `
		SELECT` + chunkMatchColumns + `
		FROM chunks c
		WHERE c.embedding IS NOT NULL
		  AND 1 - (c.embedding <=> $1) >= $3
		ORDER BY c.embedding <=> $1
		LIMIT $2`
	return s.queryChunkMatches(ctx, q, pgvector.NewVector(queryVec), limit, minSim)
}

// FindSimilarErrors is FindSimilarChunks restricted to error-bearing chunks.
func (s *Store) FindSimilarErrors(ctx context.Context, queryVec []float32, limit int, minSim float64) ([]ChunkMatch, error) {
	q := `
		SELECT` + chunkMatchColumns + `
		FROM chunks c
		WHERE c.embedding IS NOT NULL
		  AND c.has_errors
		  AND 1 - (c.embedding <=> $1) >= $3
		ORDER BY c.embedding <=> $1
		LIMIT $2`
	return s.queryChunkMatches(ctx, q, pgvector.NewVector(queryVec), limit, minSim)
}

// FindRelevantChunksForRun returns the chunks of a single run most similar
// to the query vector; used for per-run conversational retrieval.
func (s *Store) FindRelevantChunksForRun(ctx context.Context, runID string, queryVec []float32, limit int) ([]ChunkMatch, error) {
	q := `
		SELECT` + chunkMatchColumns + `
		FROM chunks c
		WHERE c.embedding IS NOT NULL
		  AND c.run_id = $3
		ORDER BY c.embedding <=> $1
		LIMIT $2`
	return s.queryChunkMatches(ctx, q, pgvector.NewVector(queryVec), limit, runID)
}

// FindSimilarWithAnalysis joins each candidate error chunk to its run's
// analysis result. Rows without an analysis are still returned, with null
// narrative fields, so callers see near-misses too. Chunks of excludeRunID
// are never candidates: the run under analysis has just been embedded and
// would otherwise match itself at similarity 1.
func (s *Store) FindSimilarWithAnalysis(ctx context.Context, queryVec []float32, limit int, excludeRunID string) ([]models.SimilarCase, error) {
	const q = `
		SELECT c.chunk_id, c.run_id, c.step_name, c.content,
			1 - (c.embedding <=> $1) AS similarity,
			r.workflow_name, r.branch,
			ar.root_cause, ar.suggested_fix
		FROM chunks c
		JOIN runs r ON r.run_id = c.run_id
		LEFT JOIN analysis_results ar ON ar.run_id = c.run_id
		WHERE c.embedding IS NOT NULL
		  AND c.has_errors
		  AND c.run_id <> $3
		ORDER BY c.embedding <=> $1
		LIMIT $2`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(queryVec), limit, excludeRunID)
	if err != nil {
		return nil, fmt.Errorf("failed to query similar cases: %w", err)
	}
	defer rows.Close()

	var cases []models.SimilarCase
	for rows.Next() {
		var sc models.SimilarCase
		if err := rows.Scan(&sc.ChunkID, &sc.RunID, &sc.StepName, &sc.Content,
			&sc.Similarity, &sc.WorkflowName, &sc.Branch,
			&sc.RootCause, &sc.SuggestedFix); err != nil {
			return nil, fmt.Errorf("failed to scan similar case: %w", err)
		}
		cases = append(cases, sc)
	}
	return cases, rows.Err()
}

func (s *Store) queryChunkMatches(ctx context.Context, q string, args ...any) ([]ChunkMatch, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query similar chunks: %w", err)
	}
	defer rows.Close()

	var matches []ChunkMatch
	for rows.Next() {
		var m ChunkMatch
		if err := rows.Scan(&m.Chunk.ID, &m.Chunk.RunID, &m.Chunk.Index,
			&m.Chunk.StepName, &m.Chunk.Content, &m.Chunk.StartLine,
			&m.Chunk.EndLine, &m.Chunk.LineCount, &m.Chunk.TokenEstimate,
			&m.Chunk.HasErrors, &m.Chunk.ErrorCount, &m.Chunk.CreatedAt,
			&m.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan similar chunk: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
