package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/loglens/loglens/pkg/models"
)

// UpsertAnalysisResult writes the single analysis record for a run, keyed by
// run id. Detected errors and steps are serialized as JSON.
func (s *Store) UpsertAnalysisResult(ctx context.Context, result models.AnalysisResult) (models.AnalysisResult, error) {
	if result.ID == "" {
		result.ID = uuid.New().String()
	}

	detectedJSON, err := json.Marshal(emptyIfNilErrors(result.DetectedErrors))
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("failed to marshal detected errors: %w", err)
	}
	stepsJSON, err := json.Marshal(emptyIfNilSteps(result.Steps))
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("failed to marshal steps: %w", err)
	}

	const q = `
		INSERT INTO analysis_results (analysis_id, run_id, root_cause, failure_stage,
			suggested_fix, failure_type, priority, confidence, used_llm,
			detected_errors, steps)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id) DO UPDATE SET
			root_cause      = EXCLUDED.root_cause,
			failure_stage   = EXCLUDED.failure_stage,
			suggested_fix   = EXCLUDED.suggested_fix,
			failure_type    = EXCLUDED.failure_type,
			priority        = EXCLUDED.priority,
			confidence      = EXCLUDED.confidence,
			used_llm        = EXCLUDED.used_llm,
			detected_errors = EXCLUDED.detected_errors,
			steps           = EXCLUDED.steps
		RETURNING analysis_id, created_at`

	err = s.pool.QueryRow(ctx, q,
		result.ID, result.RunID, result.RootCause, result.FailureStage,
		result.SuggestedFix, result.FailureType, result.Priority,
		result.Confidence, result.UsedLLM, detectedJSON, stepsJSON,
	).Scan(&result.ID, &result.CreatedAt)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("failed to upsert analysis result: %w", err)
	}
	return result, nil
}

// GetAnalysisByRunID fetches the analysis result for a run.
func (s *Store) GetAnalysisByRunID(ctx context.Context, runID string) (models.AnalysisResult, error) {
	const q = `
		SELECT analysis_id, run_id, root_cause, failure_stage, suggested_fix,
			failure_type, priority, confidence, used_llm, detected_errors,
			steps, created_at
		FROM analysis_results WHERE run_id = $1`

	var (
		result       models.AnalysisResult
		detectedJSON []byte
		stepsJSON    []byte
	)
	err := s.pool.QueryRow(ctx, q, runID).Scan(
		&result.ID, &result.RunID, &result.RootCause, &result.FailureStage,
		&result.SuggestedFix, &result.FailureType, &result.Priority,
		&result.Confidence, &result.UsedLLM, &detectedJSON, &stepsJSON,
		&result.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.AnalysisResult{}, ErrNotFound
		}
		return models.AnalysisResult{}, fmt.Errorf("failed to query analysis result: %w", err)
	}

	if err := json.Unmarshal(detectedJSON, &result.DetectedErrors); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("failed to unmarshal detected errors: %w", err)
	}
	if err := json.Unmarshal(stepsJSON, &result.Steps); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("failed to unmarshal steps: %w", err)
	}
	return result, nil
}

func emptyIfNilErrors(errs []models.DetectedError) []models.DetectedError {
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
