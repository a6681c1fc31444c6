package logparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loglens/loglens/pkg/models"
)

func TestDetectSteps(t *testing.T) {
	tests := []struct {
		name     string
		lines    []string
		expected []models.LogStep
	}{
		{
			name:  "no markers falls back to Full Log",
			lines: []string{"one", "two", "three"},
			expected: []models.LogStep{
				{Name: "Full Log", StartLine: 0, EndLine: 2},
			},
		},
		{
			name: "group markers delimit steps",
			lines: []string{
				"##[group]Checkout",
				"cloning repo",
				"##[endgroup]",
				"##[group]Build",
				"compiling",
			},
			expected: []models.LogStep{
				{Name: "Checkout", StartLine: 0, EndLine: 2},
				{Name: "Build", StartLine: 3, EndLine: 4},
			},
		},
		{
			name: "log file marker names step and strips prefix",
			lines: []string{
				"--- Log File: 3_Run tests.txt ---",
				"ok",
				"--- Log File: 4_Teardown.txt ---",
				"bye",
			},
			expected: []models.LogStep{
				{Name: "Run tests", StartLine: 0, EndLine: 1},
				{Name: "Teardown", StartLine: 2, EndLine: 3},
			},
		},
		{
			name: "group markers inside log file step are ignored",
			lines: []string{
				"--- Log File: 1_Build.txt ---",
				"##[group]nested group",
				"compiling",
				"##[endgroup]",
			},
			expected: []models.LogStep{
				{Name: "Build", StartLine: 0, EndLine: 3},
			},
		},
		{
			name: "run command starts step when none open",
			lines: []string{
				"Run go test ./...",
				"ok  pkg 0.3s",
				"Post Run actions/checkout",
				// Post will not open: run step never closed
			},
			expected: []models.LogStep{
				{Name: "Run: go test ./...", StartLine: 0, EndLine: 2},
			},
		},
		{
			name: "post step starts after endgroup closes",
			lines: []string{
				"##[group]Cleanup",
				"##[endgroup]",
				"Post checkout",
				"restoring",
			},
			expected: []models.LogStep{
				{Name: "Cleanup", StartLine: 0, EndLine: 1},
				{Name: "Post: checkout", StartLine: 2, EndLine: 3},
			},
		},
		{
			name: "preamble is absorbed by the first step",
			lines: []string{
				"runner version 2.311",
				"##[group]Build",
				"compiling",
			},
			expected: []models.LogStep{
				{Name: "Build", StartLine: 0, EndLine: 2},
			},
		},
		{
			name:     "empty input",
			lines:    nil,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectSteps(tt.lines))
		})
	}
}

func TestDetectStepsCovering(t *testing.T) {
	lines := []string{
		"preamble",
		"##[group]Setup",
		"a",
		"##[endgroup]",
		"between groups",
		"Run make all",
		"b",
		"--- Log File: 2_Deploy.txt ---",
		"c",
	}
	steps := DetectSteps(lines)
	require.NotEmpty(t, steps)

	// Ranges are inclusive, contiguous, and cover the whole input.
	assert.Equal(t, 0, steps[0].StartLine)
	assert.Equal(t, len(lines)-1, steps[len(steps)-1].EndLine)
	for i := 1; i < len(steps); i++ {
		assert.Equal(t, steps[i-1].EndLine+1, steps[i].StartLine)
	}
}

func TestDetectStepsRunNameTruncation(t *testing.T) {
	longCmd := strings.Repeat("x", 80)
	steps := DetectSteps([]string{"Run " + longCmd})
	require.Len(t, steps, 1)
	assert.Equal(t, "Run: "+strings.Repeat("x", 50)+"...", steps[0].Name)
}
