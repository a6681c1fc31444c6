package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		found    bool
	}{
		{
			name:     "bare object",
			input:    `{"a": 1}`,
			expected: `{"a": 1}`,
			found:    true,
		},
		{
			name:     "object surrounded by prose",
			input:    "Here is my analysis:\n{\"rootCause\": \"x\"}\nHope that helps!",
			expected: `{"rootCause": "x"}`,
			found:    true,
		},
		{
			name:     "nested objects balanced",
			input:    `prefix {"a": {"b": {"c": 2}}} suffix {"d": 3}`,
			expected: `{"a": {"b": {"c": 2}}}`,
			found:    true,
		},
		{
			name:     "braces inside string literals ignored",
			input:    `{"msg": "use {curly} braces \" and } here"}`,
			expected: `{"msg": "use {curly} braces \" and } here"}`,
			found:    true,
		},
		{
			name:  "no object",
			input: "just some text } with a stray brace",
			found: false,
		},
		{
			name:  "unterminated object",
			input: `{"a": 1`,
			found: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.input)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.expected, got)
			}
		})
	}
}

func TestParseNarrativeJSON(t *testing.T) {
	resp := "Sure, here is the analysis you asked for:\n" +
		"```json\n" +
		`{"rootCause": "missing dependency react", "failureStage": "npm install", "suggestedFix": "add react to package.json"}` +
		"\n```"

	n := ParseNarrative(resp)
	assert.Equal(t, "missing dependency react", n.RootCause)
	assert.Equal(t, "npm install", n.FailureStage)
	assert.Equal(t, "add react to package.json", n.SuggestedFix)
}

func TestParseNarrativeHeuristicFallback(t *testing.T) {
	resp := strings.Join([]string{
		"Root cause: the test suite asserts on a stale fixture",
		"which was removed in the previous commit.",
		"",
		"Stage: unit tests",
		"Fix: regenerate the fixture",
		"and commit it alongside the schema change.",
	}, "\n")

	n := ParseNarrative(resp)
	assert.Equal(t, "the test suite asserts on a stale fixture which was removed in the previous commit.", n.RootCause)
	assert.Equal(t, "unit tests", n.FailureStage)
	assert.Equal(t, "regenerate the fixture and commit it alongside the schema change.", n.SuggestedFix)
}

func TestParseNarrativeHeuristicTruncation(t *testing.T) {
	long := strings.Repeat("a", 600)
	resp := "root cause: " + long + "\nstage: " + long + "\nsolution: " + long

	n := ParseNarrative(resp)
	assert.Len(t, n.RootCause, 300)
	assert.Len(t, n.FailureStage, 100)
	assert.Len(t, n.SuggestedFix, 500)
}

func TestParseNarrativeMalformedJSONFallsBack(t *testing.T) {
	resp := "{this is not json}\nRoot cause: broken build script"
	n := ParseNarrative(resp)
	require.Equal(t, "broken build script", n.RootCause)
}

func TestParseNarrativeEmpty(t *testing.T) {
	n := ParseNarrative("")
	assert.Empty(t, n.RootCause)
	assert.Empty(t, n.FailureStage)
	assert.Empty(t, n.SuggestedFix)
}
