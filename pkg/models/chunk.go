package models

import "time"

// LogStep is a named region of a cleaned log. Line numbers are absolute
// indices into the cleaned line sequence, inclusive on both ends.
type LogStep struct {
	Name      string `json:"name"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
}

// Chunk is a contiguous slice of cleaned log lines belonging to exactly one
// step. Chunk indices are assigned globally per run, starting at 0, and form
// a dense prefix.
type Chunk struct {
	ID            string    `json:"id"`
	RunID         string    `json:"run_id"`
	Index         int       `json:"index"`
	StepName      string    `json:"step_name"`
	Content       string    `json:"content"`
	StartLine     int       `json:"start_line"`
	EndLine       int       `json:"end_line"`
	LineCount     int       `json:"line_count"`
	TokenEstimate int       `json:"token_estimate"`
	HasErrors     bool      `json:"has_errors"`
	ErrorCount    int       `json:"error_count"`
	Embedding     []float32 `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

// EmbeddingStats summarizes embedding coverage over the chunk table.
type EmbeddingStats struct {
	Total             int     `json:"total"`
	WithEmbeddings    int     `json:"withEmbeddings"`
	WithoutEmbeddings int     `json:"withoutEmbeddings"`
	PercentComplete   float64 `json:"percentComplete"`
}
