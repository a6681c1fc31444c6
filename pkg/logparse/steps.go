package logparse

import (
	"regexp"
	"strings"

	"github.com/loglens/loglens/pkg/models"
)

// FallbackStepName is used when a log contains no structural markers.
const FallbackStepName = "Full Log"

const runCommandNameLimit = 50

var (
	logFileMarkerPattern = regexp.MustCompile(`^---\s*Log File:\s*(.+\.txt)\s*---$`)
	logFilePrefixPattern = regexp.MustCompile(`^\d+_`)
	groupStartPattern    = regexp.MustCompile(`^##\[group\](.+)$`)
	groupEndPattern      = regexp.MustCompile(`^##\[endgroup\]$`)
	runCommandPattern    = regexp.MustCompile(`^Run\s+(.+)$`)
	postStepPattern      = regexp.MustCompile(`^Post\s+(.+)$`)
)

// stepOrigin records which rule opened the current step; log-file markers
// outrank group markers.
type stepOrigin int

const (
	originNone stepOrigin = iota
	originLogFile
	originGroup
	originCommand
)

// DetectSteps groups cleaned lines into named steps with absolute, inclusive
// line ranges. The returned steps cover the entire input with no gaps; the
// unclosed final step extends to the last line. A log with no markers becomes
// a single step named FallbackStepName.
func DetectSteps(lines []string) []models.LogStep {
	if len(lines) == 0 {
		return nil
	}

	type boundary struct {
		name  string
		start int
	}

	var boundaries []boundary
	origin := originNone
	open := false

	for i, line := range lines {
		if m := logFileMarkerPattern.FindStringSubmatch(line); m != nil {
			name := strings.TrimSuffix(strings.TrimSpace(m[1]), ".txt")
			name = logFilePrefixPattern.ReplaceAllString(name, "")
			boundaries = append(boundaries, boundary{name: name, start: i})
			origin = originLogFile
			open = true
			continue
		}
		if m := groupStartPattern.FindStringSubmatch(line); m != nil {
			// A log-file step swallows group markers inside it.
			if origin == originLogFile {
				continue
			}
			boundaries = append(boundaries, boundary{name: strings.TrimSpace(m[1]), start: i})
			origin = originGroup
			open = true
			continue
		}
		if groupEndPattern.MatchString(line) {
			if origin == originGroup {
				open = false
				origin = originNone
			}
			continue
		}
		if m := runCommandPattern.FindStringSubmatch(line); m != nil && !open {
			boundaries = append(boundaries, boundary{name: "Run: " + truncateName(m[1]), start: i})
			origin = originCommand
			open = true
			continue
		}
		if m := postStepPattern.FindStringSubmatch(line); m != nil && !open {
			boundaries = append(boundaries, boundary{name: "Post: " + truncateName(m[1]), start: i})
			origin = originCommand
			open = true
			continue
		}
	}

	if len(boundaries) == 0 {
		return []models.LogStep{{Name: FallbackStepName, StartLine: 0, EndLine: len(lines) - 1}}
	}

	// Ranges derive from boundary positions: each step runs until the next
	// step starts. The first step absorbs any preamble so the sequence
	// covers the whole input.
	boundaries[0].start = 0
	steps := make([]models.LogStep, len(boundaries))
	for i, b := range boundaries {
		end := len(lines) - 1
		if i+1 < len(boundaries) {
			end = boundaries[i+1].start - 1
		}
		steps[i] = models.LogStep{Name: b.name, StartLine: b.start, EndLine: end}
	}
	return steps
}

func truncateName(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	if len(cmd) <= runCommandNameLimit {
		return cmd
	}
	return cmd[:runCommandNameLimit] + "..."
}
