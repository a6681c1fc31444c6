// Package analyzer coordinates classification, retrieval, and the LLM call
// into a single AnalysisResult per run. The classifier always runs first;
// the LLM is consulted only when the classifier does not short-circuit, and
// its failure degrades the analysis rather than failing the run.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loglens/loglens/pkg/classify"
	"github.com/loglens/loglens/pkg/llm"
	"github.com/loglens/loglens/pkg/models"
	"github.com/loglens/loglens/pkg/rag"
)

// CaseRetriever fetches similar past cases for prompt grounding. The run id
// keeps the run under analysis out of its own retrieval results.
type CaseRetriever interface {
	Retrieve(ctx context.Context, runID string, errs []models.DetectedError, chunks []models.Chunk) ([]models.SimilarCase, error)
}

// ResultWriter persists the finished analysis.
type ResultWriter interface {
	UpsertAnalysisResult(ctx context.Context, result models.AnalysisResult) (models.AnalysisResult, error)
}

// Analyzer produces the root-cause narrative for a failed run.
type Analyzer struct {
	classifier *classify.Classifier
	retriever  CaseRetriever
	provider   llm.Provider
	writer     ResultWriter
	logger     *slog.Logger
}

// New creates an Analyzer. The retriever and provider may be nil, in which
// case every analysis falls back to the classifier's narrative.
func New(classifier *classify.Classifier, retriever CaseRetriever, provider llm.Provider, writer ResultWriter, logger *slog.Logger) *Analyzer {
	if classifier == nil {
		panic("analyzer.New: classifier must not be nil")
	}
	if writer == nil {
		panic("analyzer.New: writer must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		classifier: classifier,
		retriever:  retriever,
		provider:   provider,
		writer:     writer,
		logger:     logger,
	}
}

// Analyze classifies the run, optionally consults the LLM with retrieved
// context, and upserts the resulting AnalysisResult.
func (a *Analyzer) Analyze(ctx context.Context, runID string, chunks []models.Chunk, errs []models.DetectedError, steps []models.LogStep) (models.AnalysisResult, error) {
	analysis := a.BuildAnalysis(ctx, runID, chunks, errs, steps)

	written, err := a.writer.UpsertAnalysisResult(ctx, analysis)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("failed to persist analysis result: %w", err)
	}
	return written, nil
}

// BuildAnalysis computes the AnalysisResult without persisting it; the
// synchronous analyze endpoint uses this directly.
func (a *Analyzer) BuildAnalysis(ctx context.Context, runID string, chunks []models.Chunk, errs []models.DetectedError, steps []models.LogStep) models.AnalysisResult {
	classification := a.classifier.Classify(chunks, errs)
	a.logger.Info("Classified run",
		"run_id", runID,
		"failure_type", classification.FailureType,
		"priority", classification.Priority,
		"skip_llm", classification.SkipLLM)

	result := models.AnalysisResult{
		RunID:          runID,
		FailureType:    classification.FailureType,
		Priority:       classification.Priority,
		Confidence:     classification.Confidence,
		DetectedErrors: errs,
		Steps:          steps,
	}

	if classification.SkipLLM || a.provider == nil {
		result.RootCause = classification.RootCause
		result.FailureStage = classification.FailureStage
		result.SuggestedFix = classification.SuggestedFix
		result.UsedLLM = false
		if result.RootCause == "" {
			a.fillFallbackNarrative(&result, classification, chunks)
		}
		return result
	}

	selected := selectChunks(chunks)
	cases := a.retrieveCases(ctx, runID, errs, chunks)

	prompt := buildPrompt(errs, classification, cases, selected)
	response, err := a.provider.Generate(ctx, prompt)
	if err != nil {
		a.logger.Warn("LLM analysis failed, falling back to classifier narrative",
			"run_id", runID, "error", err)
		result.UsedLLM = false
		a.fillFallbackNarrative(&result, classification, chunks)
		return result
	}

	narrative := llm.ParseNarrative(response)
	result.RootCause = narrative.RootCause
	result.FailureStage = narrative.FailureStage
	result.SuggestedFix = narrative.SuggestedFix
	result.UsedLLM = true
	result.Confidence = rag.SynthesizeConfidence(cases)
	if result.RootCause == "" {
		a.fillFallbackNarrative(&result, classification, chunks)
	}

	if classification.FailureType == classify.TypeUnknown {
		a.reclassify(ctx, runID, &result, errs, selected)
	}
	return result
}

// retrieveCases is best effort; a retrieval failure leaves the prompt
// ungrounded rather than failing the analysis.
func (a *Analyzer) retrieveCases(ctx context.Context, runID string, errs []models.DetectedError, chunks []models.Chunk) []models.SimilarCase {
	if a.retriever == nil {
		return nil
	}
	cases, err := a.retriever.Retrieve(ctx, runID, errs, chunks)
	if err != nil {
		a.logger.Warn("Similar-case retrieval failed, proceeding without context",
			"run_id", runID, "error", err)
		return nil
	}
	return cases
}

// reclassify asks the LLM for a category when the deterministic classifier
// returned UNKNOWN. The response is normalized and mapped onto a known
// priority; a novel category keeps the UNKNOWN priority.
func (a *Analyzer) reclassify(ctx context.Context, runID string, result *models.AnalysisResult, errs []models.DetectedError, selected []models.Chunk) {
	response, err := a.provider.Generate(ctx, buildClassificationPrompt(errs, selected))
	if err != nil {
		a.logger.Warn("LLM classification failed, keeping UNKNOWN",
			"run_id", runID, "error", err)
		return
	}

	category := parseCategory(response)
	if category == classify.TypeUnknown {
		return
	}

	result.FailureType = category
	if p, ok := classify.Priorities[category]; ok {
		result.Priority = p
	} else {
		result.Priority = classify.UnknownPriority
	}
	a.logger.Info("LLM reclassified run",
		"run_id", runID, "failure_type", category, "priority", result.Priority)
}

// parseCategory extracts and normalizes the category from a classification
// response, tolerating a bare string answer without JSON.
func parseCategory(response string) string {
	var parsed struct {
		Category string `json:"category"`
	}
	if obj, ok := llm.ExtractJSON(response); ok {
		if err := json.Unmarshal([]byte(obj), &parsed); err == nil && parsed.Category != "" {
			return normalizeCategory(parsed.Category)
		}
	}
	line := strings.TrimSpace(response)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return normalizeCategory(line)
}

// fillFallbackNarrative produces a serviceable narrative from the
// deterministic signals when the LLM is unavailable or returned nothing.
func (a *Analyzer) fillFallbackNarrative(result *models.AnalysisResult, classification models.Classification, chunks []models.Chunk) {
	if result.RootCause == "" {
		if len(result.DetectedErrors) > 0 {
			first := result.DetectedErrors[0]
			result.RootCause = fmt.Sprintf("%s: %s", first.Category, first.Message)
		} else {
			result.RootCause = fmt.Sprintf("Run failed with classification %s (%s)",
				classification.FailureType, classification.Reason)
		}
	}
	if result.FailureStage == "" {
		for _, c := range chunks {
			if c.HasErrors {
				result.FailureStage = c.StepName
				break
			}
		}
	}
	if result.SuggestedFix == "" {
		result.SuggestedFix = "Inspect the failing step's log excerpt and re-run the job once the underlying error is addressed."
	}
}
