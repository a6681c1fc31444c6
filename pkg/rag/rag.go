// Package rag retrieves historically similar failures and scores how much
// trust they lend to an LLM analysis. A retriever builds a query text from
// the deterministically detected errors, embeds it, pulls the nearest
// error-bearing chunks together with their runs' prior analyses, and drops
// anything below the admission threshold.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loglens/loglens/pkg/config"
	"github.com/loglens/loglens/pkg/models"
)

const (
	maxQueryErrors     = 5
	maxQueryChunkLines = 10
)

// Searcher is the vector-search surface the retriever needs. The run id
// passed through excludes the run under analysis from its own results.
type Searcher interface {
	FindSimilarWithAnalysis(ctx context.Context, queryVec []float32, limit int, excludeRunID string) ([]models.SimilarCase, error)
}

// TextEmbedder embeds one query text.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Retriever fetches similar past cases for a failing run.
type Retriever struct {
	searcher Searcher
	embedder TextEmbedder
	cfg      *config.PipelineConfig
	logger   *slog.Logger
}

// New creates a Retriever.
func New(searcher Searcher, embedder TextEmbedder, cfg *config.PipelineConfig, logger *slog.Logger) *Retriever {
	if searcher == nil {
		panic("rag.New: searcher must not be nil")
	}
	if embedder == nil {
		panic("rag.New: embedder must not be nil")
	}
	if cfg == nil {
		cfg = config.DefaultPipelineConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{searcher: searcher, embedder: embedder, cfg: cfg, logger: logger}
}

// BuildQuery concatenates the leading detected-error messages with the head
// of the first error-bearing chunk. An empty result means there is nothing
// to retrieve on.
func BuildQuery(errs []models.DetectedError, chunks []models.Chunk) string {
	var parts []string
	for i, e := range errs {
		if i == maxQueryErrors {
			break
		}
		parts = append(parts, e.Message)
	}
	for _, chunk := range chunks {
		if !chunk.HasErrors {
			continue
		}
		lines := strings.Split(chunk.Content, "\n")
		if len(lines) > maxQueryChunkLines {
			lines = lines[:maxQueryChunkLines]
		}
		parts = append(parts, strings.Join(lines, "\n"))
		break
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// Retrieve returns up to RAGMaxCases similar cases from other runs at or
// above the minimum similarity. The current run's freshly embedded chunks
// are excluded, so every case is genuinely historical. An empty query or an
// embedding failure yields no cases; the caller proceeds without grounding.
func (r *Retriever) Retrieve(ctx context.Context, runID string, errs []models.DetectedError, chunks []models.Chunk) ([]models.SimilarCase, error) {
	query := BuildQuery(errs, chunks)
	if query == "" {
		return nil, nil
	}

	queryVec, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed retrieval query: %w", err)
	}

	candidates, err := r.searcher.FindSimilarWithAnalysis(ctx, queryVec, r.cfg.RAGMaxCases, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar cases: %w", err)
	}

	var cases []models.SimilarCase
	for _, c := range candidates {
		if c.Similarity >= r.cfg.RAGMinSimilarity {
			cases = append(cases, c)
		}
	}
	r.logger.Debug("Retrieved similar cases",
		"candidates", len(candidates), "admitted", len(cases))
	return cases, nil
}

// SynthesizeConfidence maps retrieved-case quality to an analysis confidence
// score. The top tier demands corroboration (two or more cases); a single
// strong match still beats the baseline, and no matches at all leave the
// analysis at coin-flip trust.
func SynthesizeConfidence(cases []models.SimilarCase) float64 {
	if len(cases) == 0 {
		return 0.5
	}
	top := cases[0].Similarity
	for _, c := range cases[1:] {
		if c.Similarity > top {
			top = c.Similarity
		}
	}
	switch {
	case len(cases) >= 2 && top >= 0.9:
		return 0.95
	case top >= 0.8:
		return 0.85
	case top >= 0.7:
		return 0.75
	}
	return 0.6
}

// FormatContext renders the retrieved cases as a prompt section. Empty input
// yields an empty string.
func FormatContext(cases []models.SimilarCase) string {
	if len(cases) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Similar past failures\n")
	for i, c := range cases {
		fmt.Fprintf(&b, "\n### Case %d (similarity %.2f)\n", i+1, c.Similarity)
		fmt.Fprintf(&b, "Workflow: %s, branch: %s, step: %s\n", c.WorkflowName, c.Branch, c.StepName)
		if c.RootCause != nil && *c.RootCause != "" {
			fmt.Fprintf(&b, "Prior root cause: %s\n", *c.RootCause)
		}
		if c.SuggestedFix != nil && *c.SuggestedFix != "" {
			fmt.Fprintf(&b, "Prior fix: %s\n", *c.SuggestedFix)
		}
		excerpt := c.Content
		if len(excerpt) > 500 {
			excerpt = excerpt[:500]
		}
		fmt.Fprintf(&b, "Log excerpt:\n%s\n", excerpt)
	}
	return b.String()
}
