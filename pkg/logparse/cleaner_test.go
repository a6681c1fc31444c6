package logparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "plain lines pass through",
			input:    "first\nsecond\nthird",
			expected: []string{"first", "second", "third"},
		},
		{
			name:     "ANSI color sequences stripped",
			input:    "\x1b[31merror\x1b[0m: build failed",
			expected: []string{"error: build failed"},
		},
		{
			name:     "OSC title sequence stripped",
			input:    "\x1b]0;window title\x07npm install",
			expected: []string{"npm install"},
		},
		{
			name:     "leading ISO timestamp stripped",
			input:    "2024-01-15T10:23:45.1234567Z Run go test ./...",
			expected: []string{"Run go test ./..."},
		},
		{
			name:     "timestamp without fraction stripped",
			input:    "2024-01-15T10:23:45Z make build",
			expected: []string{"make build"},
		},
		{
			name:     "indented timestamp stripped",
			input:    "  2024-01-15T10:00:00.000Z error: build failed",
			expected: []string{"error: build failed"},
		},
		{
			name:     "stacked timestamps stripped",
			input:    "2024-01-15T10:00:00Z 2024-01-15T10:00:01Z npm ERR! code 1",
			expected: []string{"npm ERR! code 1"},
		},
		{
			name:     "mid-line timestamp preserved",
			input:    "started at 2024-01-15T10:23:45Z exactly",
			expected: []string{"started at 2024-01-15T10:23:45Z exactly"},
		},
		{
			name:     "stray carriage return becomes newline",
			input:    "progress 10%\rprogress 100%\ndone",
			expected: []string{"progress 10%", "progress 100%", "done"},
		},
		{
			name:     "CRLF treated as single newline",
			input:    "one\r\ntwo",
			expected: []string{"one", "two"},
		},
		{
			name:     "empty and whitespace lines dropped",
			input:    "one\n\n   \n\ttwo\t\n",
			expected: []string{"one", "two"},
		},
		{
			name:     "empty input",
			input:    "",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Clean(tt.input))
		})
	}
}

func TestCleanIdempotent(t *testing.T) {
	inputs := []string{
		"\x1b[32mok\x1b[0m\n2024-01-15T10:00:00.000Z Run build\r\npartial\rline\n\n  spaced  ",
		"  2024-01-15T10:00:00.000Z error: build failed",
		"2024-01-15T10:00:00Z 2024-01-15T10:00:01Z npm ERR! code 1",
		"plain\ntext",
		"",
	}
	for _, input := range inputs {
		once := Clean(input)
		twice := Clean(joinLines(once))
		assert.Equal(t, once, twice)
	}
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
