package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loglens/loglens/pkg/config"
	"github.com/loglens/loglens/pkg/models"
)

type fakeSearcher struct {
	cases      []models.SimilarCase
	err        error
	gotLimit   int
	gotExclude string
	callCount  int
}

func (f *fakeSearcher) FindSimilarWithAnalysis(ctx context.Context, queryVec []float32, limit int, excludeRunID string) ([]models.SimilarCase, error) {
	f.callCount++
	f.gotLimit = limit
	f.gotExclude = excludeRunID
	return f.cases, f.err
}

type fakeEmbedder struct {
	err     error
	gotText string
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	f.gotText = text
	if f.err != nil {
		return nil, f.err
	}
	return make([]float32, 768), nil
}

func caseWithSimilarity(sim float64) models.SimilarCase {
	return models.SimilarCase{
		ChunkID:    fmt.Sprintf("chunk-%0.2f", sim),
		Similarity: sim,
	}
}

func TestBuildQuery(t *testing.T) {
	errsOf := func(messages ...string) []models.DetectedError {
		out := make([]models.DetectedError, len(messages))
		for i, m := range messages {
			out[i] = models.DetectedError{Message: m}
		}
		return out
	}

	t.Run("caps detected errors at five", func(t *testing.T) {
		query := BuildQuery(errsOf("e1", "e2", "e3", "e4", "e5", "e6", "e7"), nil)
		assert.Equal(t, "e1\ne2\ne3\ne4\ne5", query)
	})

	t.Run("appends head of first error chunk", func(t *testing.T) {
		var lines []string
		for i := 0; i < 25; i++ {
			lines = append(lines, fmt.Sprintf("line %d", i))
		}
		chunks := []models.Chunk{
			{Index: 0, Content: "clean chunk"},
			{Index: 1, HasErrors: true, Content: strings.Join(lines, "\n")},
			{Index: 2, HasErrors: true, Content: "second error chunk ignored"},
		}

		query := BuildQuery(errsOf("npm ERR! Cannot find module 'react'"), chunks)
		assert.True(t, strings.HasPrefix(query, "npm ERR! Cannot find module 'react'\nline 0"))
		assert.Contains(t, query, "line 9")
		assert.NotContains(t, query, "line 10")
		assert.NotContains(t, query, "second error chunk ignored")
		assert.NotContains(t, query, "clean chunk")
	})

	t.Run("empty inputs produce empty query", func(t *testing.T) {
		assert.Empty(t, BuildQuery(nil, nil))
		assert.Empty(t, BuildQuery(nil, []models.Chunk{{Content: "no errors here"}}))
	})
}

func TestRetrieve(t *testing.T) {
	cfg := config.DefaultPipelineConfig()
	sampleErrs := []models.DetectedError{{Message: "FATAL: connection refused"}}

	t.Run("filters below minimum similarity", func(t *testing.T) {
		searcher := &fakeSearcher{cases: []models.SimilarCase{
			caseWithSimilarity(0.92),
			caseWithSimilarity(0.61),
			caseWithSimilarity(0.55),
		}}
		r := New(searcher, &fakeEmbedder{}, cfg, slog.Default())

		cases, err := r.Retrieve(context.Background(), "run-1", sampleErrs, nil)
		require.NoError(t, err)
		require.Len(t, cases, 2)
		assert.Equal(t, 0.92, cases[0].Similarity)
		assert.Equal(t, 0.61, cases[1].Similarity)
		assert.Equal(t, cfg.RAGMaxCases, searcher.gotLimit)
	})

	t.Run("run under analysis is excluded from the search", func(t *testing.T) {
		searcher := &fakeSearcher{}
		r := New(searcher, &fakeEmbedder{}, cfg, slog.Default())

		_, err := r.Retrieve(context.Background(), "run-42", sampleErrs, nil)
		require.NoError(t, err)
		assert.Equal(t, "run-42", searcher.gotExclude)
	})

	t.Run("empty query skips retrieval entirely", func(t *testing.T) {
		searcher := &fakeSearcher{}
		r := New(searcher, &fakeEmbedder{}, cfg, slog.Default())

		cases, err := r.Retrieve(context.Background(), "run-1", nil, nil)
		require.NoError(t, err)
		assert.Nil(t, cases)
		assert.Zero(t, searcher.callCount)
	})

	t.Run("embedding failure is surfaced", func(t *testing.T) {
		r := New(&fakeSearcher{}, &fakeEmbedder{err: errors.New("rate limited")}, cfg, slog.Default())

		_, err := r.Retrieve(context.Background(), "run-1", sampleErrs, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to embed retrieval query")
	})

	t.Run("search failure is surfaced", func(t *testing.T) {
		r := New(&fakeSearcher{err: errors.New("database down")}, &fakeEmbedder{}, cfg, slog.Default())

		_, err := r.Retrieve(context.Background(), "run-1", sampleErrs, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to search similar cases")
	})
}

func TestSynthesizeConfidence(t *testing.T) {
	tests := []struct {
		name         string
		similarities []float64
		expected     float64
	}{
		{"no cases", nil, 0.5},
		{"single strong case lacks corroboration for the top tier", []float64{0.95}, 0.85},
		{"single moderate case", []float64{0.72}, 0.75},
		{"single weak case", []float64{0.65}, 0.6},
		{"two cases, top at least 0.9", []float64{0.91, 0.7}, 0.95},
		{"two cases, top at least 0.8", []float64{0.85, 0.65}, 0.85},
		{"two cases, top at least 0.7", []float64{0.72, 0.7}, 0.75},
		{"two weak cases", []float64{0.65, 0.62}, 0.6},
		{"top case not first in slice", []float64{0.7, 0.93}, 0.95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cases []models.SimilarCase
			for _, s := range tt.similarities {
				cases = append(cases, caseWithSimilarity(s))
			}
			assert.Equal(t, tt.expected, SynthesizeConfidence(cases))
		})
	}
}

func TestFormatContext(t *testing.T) {
	t.Run("empty cases yield empty section", func(t *testing.T) {
		assert.Empty(t, FormatContext(nil))
	})

	t.Run("renders narrative fields when present", func(t *testing.T) {
		rootCause := "missing dependency in lockfile"
		fix := "run npm install and commit package-lock.json"
		cases := []models.SimilarCase{{
			Similarity:   0.88,
			WorkflowName: "ci",
			Branch:       "main",
			StepName:     "Install dependencies",
			Content:      "npm ERR! Cannot find module 'react'",
			RootCause:    &rootCause,
			SuggestedFix: &fix,
		}}

		out := FormatContext(cases)
		assert.Contains(t, out, "Case 1 (similarity 0.88)")
		assert.Contains(t, out, "missing dependency in lockfile")
		assert.Contains(t, out, "run npm install")
		assert.Contains(t, out, "Cannot find module 'react'")
	})

	t.Run("nil narrative fields are omitted", func(t *testing.T) {
		out := FormatContext([]models.SimilarCase{caseWithSimilarity(0.7)})
		assert.NotContains(t, out, "Prior root cause")
		assert.NotContains(t, out, "Prior fix")
	})
}
