package models

import "time"

// Confidence levels attached to detected errors.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// DetectedError is a single deterministically-extracted error occurrence.
// Stored as JSON inside the AnalysisResult, not as an independent row.
type DetectedError struct {
	Category    string   `json:"category"`
	Message     string   `json:"message"`
	Confidence  string   `json:"confidence"`
	Evidence    []string `json:"evidence,omitempty"`
	Intentional bool     `json:"intentional,omitempty"`
	ChunkIndex  int      `json:"chunkIndex"`
	StepName    string   `json:"stepName"`
}

// Classification is the deterministic classifier's verdict for a run.
// When SkipLLM is set the narrative fields are authoritative and the LLM
// is not consulted.
type Classification struct {
	FailureType  string  `json:"failureType"`
	Priority     int     `json:"priority"`
	Confidence   float64 `json:"confidence"`
	Reason       string  `json:"reason"`
	SkipLLM      bool    `json:"skipLLM"`
	RootCause    string  `json:"rootCause,omitempty"`
	FailureStage string  `json:"failureStage,omitempty"`
	SuggestedFix string  `json:"suggestedFix,omitempty"`
}

// AnalysisResult is the single analysis record for a run, upserted keyed by
// run id. Provenance is visible through UsedLLM.
type AnalysisResult struct {
	ID             string          `json:"id"`
	RunID          string          `json:"run_id"`
	RootCause      string          `json:"rootCause"`
	FailureStage   string          `json:"failureStage"`
	SuggestedFix   string          `json:"suggestedFix"`
	FailureType    string          `json:"failureType"`
	Priority       int             `json:"priority"`
	Confidence     float64         `json:"confidence"`
	UsedLLM        bool            `json:"usedLLM"`
	DetectedErrors []DetectedError `json:"detectedErrors"`
	Steps          []LogStep       `json:"steps"`
	CreatedAt      time.Time       `json:"created_at"`
}

// SimilarCase is one RAG retrieval candidate: a historically similar chunk
// joined to its run's analysis (if any).
type SimilarCase struct {
	ChunkID      string  `json:"chunk_id"`
	RunID        string  `json:"run_id"`
	StepName     string  `json:"step_name"`
	Content      string  `json:"content"`
	Similarity   float64 `json:"similarity"`
	WorkflowName string  `json:"workflow_name"`
	Branch       string  `json:"branch"`
	RootCause    *string `json:"rootCause"`
	SuggestedFix *string `json:"suggestedFix"`
}
