// Package patterns holds the ordered error pattern catalogue and the line
// extractor that tags log lines against it. The catalogue is data, not
// control flow: an ordered list of compiled records evaluated first-match-wins
// so extraction stays deterministic.
package patterns

import "regexp"

// Error categories produced by the catalogue.
const (
	CategoryBuildFailure    = "Build Failure"
	CategoryDependencyIssue = "Dependency Issue"
	CategoryTestFailure     = "Test Failure"
	CategorySyntaxError     = "Syntax Error"
	CategoryRuntimeError    = "Runtime Error"
	CategoryNetworkError    = "Network Error"
	CategoryAPIError        = "API Error"
	CategoryCIError         = "CI Error"
	CategoryProcessExit     = "Process Exit"
	CategoryExitFailure     = "Exit Failure"
	CategoryGeneric         = "Generic"
)

// Pattern is one catalogue record. Intentional marks deliberate non-zero
// exits (CI failure fixtures) rather than real faults.
type Pattern struct {
	Category    string
	Regex       *regexp.Regexp
	Confidence  string
	Intentional bool
}

type patternSpec struct {
	category    string
	pattern     string
	confidence  string
	intentional bool
}

// Catalogue order is load-bearing: a line is tagged by the first record that
// matches it, so earlier families win collisions (e.g. "cannot find module"
// stays a Dependency Issue even though the classifier ranks Build higher).
var catalogueSpecs = []patternSpec{
	{category: CategoryBuildFailure, pattern: `(?i)build failed`, confidence: "high"},
	{category: CategoryBuildFailure, pattern: `(?i)compilation error`, confidence: "high"},
	{category: CategoryBuildFailure, pattern: `(?i)could not compile`, confidence: "high"},

	{category: CategoryDependencyIssue, pattern: `(?i)cannot find module`, confidence: "high"},
	{category: CategoryDependencyIssue, pattern: `(?i)module not found`, confidence: "high"},
	{category: CategoryDependencyIssue, pattern: `npm ERR!`, confidence: "medium"},
	{category: CategoryDependencyIssue, pattern: `(?i)yarn error`, confidence: "medium"},
	{category: CategoryDependencyIssue, pattern: `ERESOLVE`, confidence: "medium"},
	{category: CategoryDependencyIssue, pattern: `(?i)peer dependency`, confidence: "medium"},
	{category: CategoryDependencyIssue, pattern: `ENOENT.*package\.json`, confidence: "high"},

	{category: CategoryTestFailure, pattern: `(?i)test.*failed`, confidence: "high"},
	{category: CategoryTestFailure, pattern: `(?i)assertion.*failed`, confidence: "high"},
	{category: CategoryTestFailure, pattern: `(?i)expected.*but got`, confidence: "high"},
	{category: CategoryTestFailure, pattern: `\d+ failing`, confidence: "high"},
	{category: CategoryTestFailure, pattern: `AssertionError`, confidence: "high"},

	{category: CategorySyntaxError, pattern: `SyntaxError`, confidence: "high"},
	{category: CategorySyntaxError, pattern: `(?i)unexpected token`, confidence: "high"},
	{category: CategorySyntaxError, pattern: `(?i)invalid syntax`, confidence: "high"},

	{category: CategoryRuntimeError, pattern: `TypeError`, confidence: "high"},
	{category: CategoryRuntimeError, pattern: `ReferenceError`, confidence: "high"},
	{category: CategoryRuntimeError, pattern: `RangeError`, confidence: "high"},
	{category: CategoryRuntimeError, pattern: `(?i)cannot read propert(y|ies)`, confidence: "high"},
	{category: CategoryRuntimeError, pattern: `(?i)undefined is not`, confidence: "high"},

	{category: CategoryNetworkError, pattern: `ECONNREFUSED`, confidence: "high"},
	{category: CategoryNetworkError, pattern: `ETIMEDOUT`, confidence: "high"},
	{category: CategoryNetworkError, pattern: `(?i)network error`, confidence: "medium"},

	{category: CategoryAPIError, pattern: `\bHTTP\s+(4\d\d|5\d\d)\b`, confidence: "high"},
	{category: CategoryAPIError, pattern: `(?i)\bstatus code[:\s]+(4\d\d|5\d\d)\b`, confidence: "high"},

	{category: CategoryCIError, pattern: `##\[error\]`, confidence: "high"},
	{category: CategoryCIError, pattern: `Error:\s+Process completed with exit code`, confidence: "high"},

	{category: CategoryProcessExit, pattern: `(?i)exit code [1-9]\d*`, confidence: "high"},
	{category: CategoryProcessExit, pattern: `(?i)exited with code [1-9]\d*`, confidence: "high"},
	{category: CategoryProcessExit, pattern: `(?i)command failed`, confidence: "medium"},

	{category: CategoryExitFailure, pattern: `^\s*exit\s+[1-9]\d*\s*$`, confidence: "high", intentional: true},

	{category: CategoryGeneric, pattern: `\bERROR\b`, confidence: "medium"},
	{category: CategoryGeneric, pattern: `\b(FATAL|CRITICAL)\b`, confidence: "high"},
}

var catalogue = compileCatalogue()

func compileCatalogue() []Pattern {
	compiled := make([]Pattern, 0, len(catalogueSpecs))
	for _, spec := range catalogueSpecs {
		compiled = append(compiled, Pattern{
			Category:    spec.category,
			Regex:       regexp.MustCompile(spec.pattern),
			Confidence:  spec.confidence,
			Intentional: spec.intentional,
		})
	}
	return compiled
}

// Catalogue returns the ordered compiled pattern list.
func Catalogue() []Pattern {
	return catalogue
}

// Match returns the first catalogue pattern matching the line.
// A line matches at most one pattern.
func Match(line string) (Pattern, bool) {
	for _, p := range catalogue {
		if p.Regex.MatchString(line) {
			return p, true
		}
	}
	return Pattern{}, false
}
