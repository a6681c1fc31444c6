// Package masking scrubs credentials from log text before it is persisted,
// embedded, or shown to the LLM. CI logs routinely leak tokens through echo
// statements and failed curl commands; masking happens once, right after the
// archive is flattened, so nothing downstream ever sees a live secret.
package masking

import (
	"log/slog"
	"regexp"
)

// CompiledPattern holds a pre-compiled regex with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

// patternSpecs are the built-in credential shapes, applied in order.
var patternSpecs = []struct {
	name        string
	pattern     string
	replacement string
}{
	{
		name:        "github_token",
		pattern:     `gh[pousr]_[A-Za-z0-9]{36,255}`,
		replacement: "***MASKED_GITHUB_TOKEN***",
	},
	{
		name:        "aws_access_key",
		pattern:     `(?:AKIA|ASIA)[A-Z0-9]{16}`,
		replacement: "***MASKED_AWS_KEY***",
	},
	{
		name:        "bearer_token",
		pattern:     `(?i)(authorization:\s*bearer\s+)[A-Za-z0-9\-._~+/]+=*`,
		replacement: "${1}***MASKED_TOKEN***",
	},
	{
		name:        "basic_auth_url",
		pattern:     `(https?://[^:/\s]+:)[^@/\s]+(@)`,
		replacement: "${1}***MASKED_PASSWORD***${2}",
	},
	{
		name:        "api_key_assignment",
		pattern:     `(?i)((?:api[_-]?key|secret|token|password|passwd)\s*[=:]\s*["']?)[A-Za-z0-9\-._~+/]{8,}["']?`,
		replacement: "${1}***MASKED***",
	},
	{
		name:        "private_key_block",
		pattern:     `(?s)-----BEGIN [A-Z ]*PRIVATE KEY-----.*?-----END [A-Z ]*PRIVATE KEY-----`,
		replacement: "***MASKED_PRIVATE_KEY***",
	},
	{
		name:        "jwt",
		pattern:     `eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]+`,
		replacement: "***MASKED_JWT***",
	},
}

// Masker applies the built-in credential patterns to log text.
// Created once at startup; thread-safe and stateless aside from the
// compiled patterns.
type Masker struct {
	patterns []*CompiledPattern
}

// NewMasker compiles the built-in patterns. Invalid patterns are logged and
// skipped rather than failing startup.
func NewMasker() *Masker {
	m := &Masker{}
	for _, spec := range patternSpecs {
		compiled, err := regexp.Compile(spec.pattern)
		if err != nil {
			slog.Error("Failed to compile masking pattern, skipping",
				"pattern", spec.name, "error", err)
			continue
		}
		m.patterns = append(m.patterns, &CompiledPattern{
			Name:        spec.name,
			Regex:       compiled,
			Replacement: spec.replacement,
		})
	}
	return m
}

// Mask replaces every credential match in the text.
func (m *Masker) Mask(text string) string {
	if text == "" {
		return text
	}
	for _, p := range m.patterns {
		text = p.Regex.ReplaceAllString(text, p.Replacement)
	}
	return text
}

// PatternCount reports how many patterns compiled, for startup logging.
func (m *Masker) PatternCount() int {
	return len(m.patterns)
}
