// Package logparse turns raw CI log text into cleaned lines, named steps,
// and size-bounded chunks. All transformations are pure and deterministic.
package logparse

import (
	"regexp"
	"strings"
)

var (
	// CSI sequences (\x1b[ ... final byte) and OSC sequences
	// (\x1b] ... BEL or ST).
	ansiCSIPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
	ansiOSCPattern = regexp.MustCompile(`\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)`)

	// Leading ISO-8601 timestamps of the form 2024-01-15T10:00:00.0000000Z
	// followed by a space, as emitted by CI log archives.
	leadingTimestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?Z?\s`)
)

// Clean normalizes raw log text into an ordered line sequence: ANSI control
// sequences and leading timestamps are stripped, stray carriage returns
// become newlines, every line is trimmed, and empty lines are dropped.
// Clean is idempotent.
func Clean(raw string) []string {
	if raw == "" {
		return nil
	}

	text := ansiCSIPattern.ReplaceAllString(raw, "")
	text = ansiOSCPattern.ReplaceAllString(text, "")

	// CRLF collapses to LF; a stray CR acts as a line break.
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	rawLines := strings.Split(text, "\n")
	lines := make([]string, 0, len(rawLines))
	for _, line := range rawLines {
		line = stripTimestamps(strings.TrimSpace(line))
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// stripTimestamps removes leading timestamps until the line is stable, so a
// line carrying stacked timestamps (archive prefix plus tool output) cleans
// to the same result no matter how often it passes through Clean.
func stripTimestamps(line string) string {
	for {
		stripped := strings.TrimSpace(leadingTimestampPattern.ReplaceAllString(line, ""))
		if stripped == line {
			return line
		}
		line = stripped
	}
}
