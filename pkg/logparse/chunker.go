package logparse

import (
	"fmt"
	"math"
	"strings"

	"github.com/loglens/loglens/pkg/config"
	"github.com/loglens/loglens/pkg/models"
)

// ChunkSteps partitions each step into chunks of at most cfg.MaxChunkLines
// lines. A step that fits in one chunk keeps the step's name; larger steps
// become contiguous chunks named "<step> (part k)". Chunk indices are
// assigned by a global counter starting at 0 and are dense.
func ChunkSteps(lines []string, steps []models.LogStep, cfg *config.PipelineConfig) []models.Chunk {
	maxLines := cfg.MaxChunkLines
	if maxLines <= 0 {
		maxLines = config.DefaultPipelineConfig().MaxChunkLines
	}

	var chunks []models.Chunk
	index := 0
	for _, step := range steps {
		total := step.EndLine - step.StartLine + 1
		if total <= 0 {
			continue
		}
		parts := (total + maxLines - 1) / maxLines

		for part := 0; part < parts; part++ {
			start := step.StartLine + part*maxLines
			end := start + maxLines - 1
			if end > step.EndLine {
				end = step.EndLine
			}

			name := step.Name
			if parts > 1 {
				name = fmt.Sprintf("%s (part %d)", step.Name, part+1)
			}

			content := strings.Join(lines[start:end+1], "\n")
			chunks = append(chunks, models.Chunk{
				Index:         index,
				StepName:      name,
				Content:       content,
				StartLine:     start,
				EndLine:       end,
				LineCount:     end - start + 1,
				TokenEstimate: estimateTokens(content, cfg.TokensPerChar),
			})
			index++
		}
	}
	return chunks
}

// estimateTokens approximates the token count of content as
// ceil(len(content) * ratio).
func estimateTokens(content string, ratio float64) int {
	if ratio <= 0 {
		ratio = config.DefaultPipelineConfig().TokensPerChar
	}
	return int(math.Ceil(float64(len(content)) * ratio))
}

// Parse runs the full deterministic front half of the pipeline: clean,
// detect steps, chunk.
func Parse(raw string, cfg *config.PipelineConfig) ([]string, []models.LogStep, []models.Chunk) {
	lines := Clean(raw)
	steps := DetectSteps(lines)
	chunks := ChunkSteps(lines, steps, cfg)
	return lines, steps, chunks
}
