package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/loglens/loglens/pkg/classify"
	"github.com/loglens/loglens/pkg/models"
	"github.com/loglens/loglens/pkg/rag"
)

const maxPromptLinesPerChunk = 30

// selectChunks picks the chunks worth showing the LLM: every error-bearing
// chunk plus the last two (final status and summary output), deduplicated by
// index and returned in index order.
func selectChunks(chunks []models.Chunk) []models.Chunk {
	seen := make(map[int]bool)
	var selected []models.Chunk

	add := func(c models.Chunk) {
		if !seen[c.Index] {
			seen[c.Index] = true
			selected = append(selected, c)
		}
	}

	for _, c := range chunks {
		if c.HasErrors {
			add(c)
		}
	}
	if n := len(chunks); n > 0 {
		if n >= 2 {
			add(chunks[n-2])
		}
		add(chunks[n-1])
	}

	sort.Slice(selected, func(i, j int) bool { return selected[i].Index < selected[j].Index })
	return selected
}

// tailLines returns the last n lines of content.
func tailLines(content string, n int) string {
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// priorityRules renders the failure-type ranking as prompt text so the model
// never names a lower-priority issue as root cause when a higher one exists.
func priorityRules() string {
	type entry struct {
		name     string
		priority int
	}
	var entries []entry
	for name, p := range classify.Priorities {
		if name == classify.TypeUnknown {
			continue
		}
		entries = append(entries, entry{name, p})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].priority < entries[j].priority })

	var b strings.Builder
	b.WriteString("Failure categories ranked by severity (1 = most severe):\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "  %d. %s\n", e.priority, e.name)
	}
	b.WriteString("A lower-ranked issue must never be named as root cause while a higher-ranked issue is present.\n")
	return b.String()
}

// buildPrompt assembles the analysis prompt: detected errors first (they are
// authoritative), then the priority rules, the current classification, the
// retrieved similar cases, and the tails of the selected log chunks.
func buildPrompt(errs []models.DetectedError, classification models.Classification, cases []models.SimilarCase, selected []models.Chunk) string {
	var b strings.Builder

	b.WriteString("You are analyzing a failed CI/CD run. Identify the root cause of the failure.\n\n")

	b.WriteString("## Detected errors (authoritative — these outrank the raw log text)\n")
	if len(errs) == 0 {
		b.WriteString("None detected by pattern matching.\n")
	}
	for _, e := range errs {
		fmt.Fprintf(&b, "- [%s] (%s confidence, step %q): %s\n", e.Category, e.Confidence, e.StepName, e.Message)
	}
	b.WriteString("\n")

	b.WriteString("## Priority rules\n")
	b.WriteString(priorityRules())
	b.WriteString("\n")

	b.WriteString("## Current classification\n")
	fmt.Fprintf(&b, "Type: %s (priority %d, confidence %.2f) — %s\n\n",
		classification.FailureType, classification.Priority, classification.Confidence, classification.Reason)

	if ctx := rag.FormatContext(cases); ctx != "" {
		b.WriteString(ctx)
		b.WriteString("\nPrefer the retrieved cases over speculation, but the detected errors above win on any conflict.\n\n")
	}

	b.WriteString("## Log excerpts\n")
	for _, c := range selected {
		fmt.Fprintf(&b, "\n### Step %q (chunk %d, lines %d-%d)\n", c.StepName, c.Index, c.StartLine, c.EndLine)
		b.WriteString(tailLines(c.Content, maxPromptLinesPerChunk))
		b.WriteString("\n")
	}

	b.WriteString("\nRespond with a single JSON object with exactly these keys:\n")
	b.WriteString(`{"rootCause": "...", "failureStage": "...", "suggestedFix": "..."}` + "\n")
	return b.String()
}

// buildClassificationPrompt asks the model for a single failure category when
// the deterministic classifier came up empty.
func buildClassificationPrompt(errs []models.DetectedError, selected []models.Chunk) string {
	var b strings.Builder
	b.WriteString("Classify this CI/CD failure into exactly one category.\n\n")
	b.WriteString("Known categories: TEST, BUILD, RUNTIME, INFRA, SECURITY, TIMEOUT, DEPENDENCY, CONFIG, PERMISSION, LINT.\n")
	b.WriteString("If none fit, propose a new short uppercase category name.\n\n")

	if len(errs) > 0 {
		b.WriteString("Detected errors:\n")
		for _, e := range errs {
			fmt.Fprintf(&b, "- [%s] %s\n", e.Category, e.Message)
		}
		b.WriteString("\n")
	}

	b.WriteString("Log excerpts:\n")
	for _, c := range selected {
		fmt.Fprintf(&b, "\n### %s\n%s\n", c.StepName, tailLines(c.Content, maxPromptLinesPerChunk))
	}

	b.WriteString("\nRespond with a single JSON object: {\"category\": \"...\"}\n")
	return b.String()
}

// normalizeCategory canonicalizes a model-proposed category: uppercase,
// non-alphanumerics become underscores, empty becomes UNKNOWN.
func normalizeCategory(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(raw)) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	normalized := strings.Trim(b.String(), "_")
	if normalized == "" {
		return classify.TypeUnknown
	}
	return normalized
}
