package patterns

import (
	"strings"

	"github.com/loglens/loglens/pkg/models"
)

// ExtractChunk tags every line of the chunk against the catalogue and sets
// the chunk's HasErrors / ErrorCount fields. Errors within a chunk are
// deduplicated by (category, message).
func ExtractChunk(chunk *models.Chunk) []models.DetectedError {
	var errs []models.DetectedError
	seen := make(map[string]bool)

	for _, line := range strings.Split(chunk.Content, "\n") {
		p, ok := Match(line)
		if !ok {
			continue
		}
		key := p.Category + "\x00" + line
		if seen[key] {
			continue
		}
		seen[key] = true
		errs = append(errs, models.DetectedError{
			Category:    p.Category,
			Message:     line,
			Confidence:  p.Confidence,
			Evidence:    []string{line},
			Intentional: p.Intentional,
			ChunkIndex:  chunk.Index,
			StepName:    chunk.StepName,
		})
	}

	chunk.ErrorCount = len(errs)
	chunk.HasErrors = len(errs) > 0
	return errs
}

// Extract runs ExtractChunk over every chunk and returns the run-level error
// list, deduplicated by (category, message) keeping the first occurrence.
func Extract(chunks []models.Chunk) []models.DetectedError {
	var all []models.DetectedError
	seen := make(map[string]bool)

	for i := range chunks {
		for _, e := range ExtractChunk(&chunks[i]) {
			key := e.Category + "\x00" + e.Message
			if seen[key] {
				continue
			}
			seen[key] = true
			all = append(all, e)
		}
	}
	return all
}
