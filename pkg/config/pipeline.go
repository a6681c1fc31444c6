// Package config holds runtime configuration for the log analysis pipeline
// and the job queue. Values are loaded from the environment with built-in
// defaults; main loads a .env file first via godotenv.
package config

import (
	"os"
	"strconv"
	"time"
)

// PipelineConfig contains tuning knobs for the ingestion and analysis
// pipeline. Zero values are never used directly — construct via
// DefaultPipelineConfig or LoadPipelineConfigFromEnv.
type PipelineConfig struct {
	// MaxChunkLines is the maximum number of cleaned lines per chunk.
	MaxChunkLines int

	// TokensPerChar is the token estimate ratio (tokens ≈ chars * ratio).
	TokensPerChar float64

	// EmbeddingDim is the expected embedding vector dimensionality.
	EmbeddingDim int

	// EmbeddingMaxChars caps the text sent to the embedding endpoint.
	// Longer chunk content is truncated with a warning.
	EmbeddingMaxChars int

	// EmbeddingInterCallDelay is the fixed pause between per-chunk embedding
	// calls, acting as soft rate-limiting against the provider.
	EmbeddingInterCallDelay time.Duration

	// RAGMaxCases is the maximum number of historical cases spliced into
	// the LLM prompt.
	RAGMaxCases int

	// RAGMinSimilarity is the cosine similarity floor for RAG context
	// admission.
	RAGMinSimilarity float64

	// SearchDefaultMinSimilarity is the similarity floor for general
	// vector search queries.
	SearchDefaultMinSimilarity float64

	// IntentionalPriority is the priority assigned to INTENTIONAL
	// classifications. The upstream data disagrees on whether intentional
	// failures sort highest (0) or lowest (5) among incidents, so this is
	// configurable rather than hard-coded.
	IntentionalPriority int
}

// DefaultPipelineConfig returns the built-in pipeline defaults.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		MaxChunkLines:              1000,
		TokensPerChar:              0.25,
		EmbeddingDim:               768,
		EmbeddingMaxChars:          20000,
		EmbeddingInterCallDelay:    100 * time.Millisecond,
		RAGMaxCases:                3,
		RAGMinSimilarity:           0.6,
		SearchDefaultMinSimilarity: 0.7,
		IntentionalPriority:        0,
	}
}

// LoadPipelineConfigFromEnv returns the defaults overridden by any
// environment variables that are set.
func LoadPipelineConfigFromEnv() *PipelineConfig {
	cfg := DefaultPipelineConfig()
	cfg.MaxChunkLines = envInt("MAX_CHUNK_LINES", cfg.MaxChunkLines)
	cfg.TokensPerChar = envFloat("TOKENS_PER_CHAR", cfg.TokensPerChar)
	cfg.EmbeddingDim = envInt("EMBEDDING_DIM", cfg.EmbeddingDim)
	cfg.EmbeddingMaxChars = envInt("EMBEDDING_MAX_CHARS", cfg.EmbeddingMaxChars)
	cfg.EmbeddingInterCallDelay = time.Duration(envInt("EMBEDDING_INTER_CALL_DELAY_MS",
		int(cfg.EmbeddingInterCallDelay/time.Millisecond))) * time.Millisecond
	cfg.RAGMaxCases = envInt("RAG_MAX_CASES", cfg.RAGMaxCases)
	cfg.RAGMinSimilarity = envFloat("RAG_MIN_SIMILARITY", cfg.RAGMinSimilarity)
	cfg.SearchDefaultMinSimilarity = envFloat("SEARCH_DEFAULT_MIN_SIMILARITY", cfg.SearchDefaultMinSimilarity)
	cfg.IntentionalPriority = envInt("INTENTIONAL_PRIORITY", cfg.IntentionalPriority)
	return cfg
}

func envInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
