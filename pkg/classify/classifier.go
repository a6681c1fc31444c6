// Package classify assigns a failure category to a run deterministically,
// before any LLM is consulted. Detection order is strict: the first matching
// category wins, and INTENTIONAL short-circuits the LLM entirely.
package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/loglens/loglens/pkg/config"
	"github.com/loglens/loglens/pkg/models"
	"github.com/loglens/loglens/pkg/patterns"
)

// Failure types, in detection order. Priorities rank severity for incident
// sorting; lower is more severe (INTENTIONAL is configurable, UNKNOWN is 99).
const (
	TypeIntentional = "INTENTIONAL"
	TypeTest        = "TEST"
	TypeBuild       = "BUILD"
	TypeRuntime     = "RUNTIME"
	TypeInfra       = "INFRA"
	TypeSecurity    = "SECURITY"
	TypeTimeout     = "TIMEOUT"
	TypeDependency  = "DEPENDENCY"
	TypeConfig      = "CONFIG"
	TypePermission  = "PERMISSION"
	TypeLint        = "LINT"
	TypeUnknown     = "UNKNOWN"
)

// UnknownPriority is the sentinel priority for unclassified failures.
const UnknownPriority = 99

// Priorities maps every known failure type except INTENTIONAL (configured)
// to its rank.
var Priorities = map[string]int{
	TypeTest:       1,
	TypeBuild:      2,
	TypeRuntime:    3,
	TypeInfra:      4,
	TypeSecurity:   5,
	TypeTimeout:    6,
	TypeDependency: 7,
	TypeConfig:     8,
	TypePermission: 9,
	TypeLint:       10,
	TypeUnknown:    UnknownPriority,
}

var intentionalExitPattern = regexp.MustCompile(`(?m)^\s*exit\s+[1-9]\d*\s*$`)

// rule is one detection record: a failure type plus the error categories and
// content regexes that vote for it. Rules are evaluated in slice order.
type rule struct {
	failureType     string
	errorCategories []string
	contentPatterns []*regexp.Regexp
	noun            string
}

var rules = []rule{
	{
		failureType:     TypeTest,
		errorCategories: []string{patterns.CategoryTestFailure},
		contentPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\d+ (tests? )?fail(ing|ed)`),
			regexp.MustCompile(`(?i)FAIL(ED)?\s+\S+_test\b`),
			regexp.MustCompile(`(?i)assert(ion)?(Error|\s+failed)`),
		},
		noun: "test failure",
	},
	{
		failureType:     TypeBuild,
		errorCategories: []string{patterns.CategoryBuildFailure, patterns.CategorySyntaxError},
		contentPatterns: []*regexp.Regexp{
			regexp.MustCompile(`error TS\d+`),
			regexp.MustCompile(`(?i)(webpack|tsc|rollup|vite|esbuild).*(error|failed)`),
			regexp.MustCompile(`(?i)undefined reference to`),
		},
		noun: "build error",
	},
	{
		failureType:     TypeRuntime,
		errorCategories: []string{patterns.CategoryRuntimeError},
		contentPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(panic:|segmentation fault|NullPointerException|stack overflow)`),
		},
		noun: "runtime error",
	},
	{
		failureType:     TypeInfra,
		errorCategories: []string{patterns.CategoryNetworkError, patterns.CategoryAPIError},
		contentPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)connection (refused|reset|timed out)`),
			regexp.MustCompile(`(?i)(docker|container|kubernetes|kubelet|pod eviction)`),
			regexp.MustCompile(`(?i)(database|postgres|mysql|redis).*(unavailable|connection|refused)`),
		},
		noun: "infrastructure error",
	},
	{
		failureType: TypeSecurity,
		contentPatterns: []*regexp.Regexp{
			regexp.MustCompile(`CVE-\d{4}-\d+`),
			regexp.MustCompile(`(?i)(vulnerabilit|security audit)`),
			regexp.MustCompile(`(?i)(authentication failed|401 unauthorized|invalid credentials)`),
		},
		noun: "security finding",
	},
	{
		failureType: TypeTimeout,
		contentPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(timeout|timed out|deadline exceeded)`),
		},
		noun: "timeout",
	},
	{
		failureType:     TypeDependency,
		errorCategories: []string{patterns.CategoryDependencyIssue},
		contentPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(unable to resolve dependency|version conflict|lockfile)`),
		},
		noun: "dependency issue",
	},
	{
		failureType: TypeConfig,
		contentPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)missing (required )?env(ironment)? var`),
			regexp.MustCompile(`(?i)invalid (yaml|json)`),
			regexp.MustCompile(`(?i)(configuration|config file).*(invalid|not found|missing)`),
		},
		noun: "configuration error",
	},
	{
		failureType: TypePermission,
		contentPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(EACCES|EPERM)`),
			regexp.MustCompile(`(?i)(permission denied|operation not permitted)`),
		},
		noun: "permission error",
	},
	{
		failureType: TypeLint,
		contentPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(eslint|prettier|golangci-lint|rubocop)`),
			regexp.MustCompile(`(?i)lint(ing)? (error|warning|failed)`),
		},
		noun: "lint finding",
	},
}

// Classifier assigns failure types from chunks and the deduplicated error
// list. Stateless apart from configuration.
type Classifier struct {
	cfg *config.PipelineConfig
}

// New creates a Classifier.
func New(cfg *config.PipelineConfig) *Classifier {
	if cfg == nil {
		cfg = config.DefaultPipelineConfig()
	}
	return &Classifier{cfg: cfg}
}

// Classify runs the strict detection order over the chunks and errors.
// It always returns a verdict: UNKNOWN when nothing matches.
func (c *Classifier) Classify(chunks []models.Chunk, errs []models.DetectedError) models.Classification {
	if verdict, ok := c.classifyIntentional(chunks); ok {
		return verdict
	}

	for _, r := range rules {
		count := r.matchCount(chunks, errs)
		if count == 0 {
			continue
		}
		return models.Classification{
			FailureType: r.failureType,
			Priority:    Priorities[r.failureType],
			Confidence:  matchConfidence(count),
			Reason:      fmt.Sprintf("%d %s(s) detected", count, r.noun),
			SkipLLM:     false,
		}
	}

	return models.Classification{
		FailureType: TypeUnknown,
		Priority:    UnknownPriority,
		Confidence:  0.3,
		Reason:      "no known failure pattern matched",
		SkipLLM:     false,
	}
}

// classifyIntentional detects deliberately failed jobs: a bare `exit N`
// command, or a step whose name says it forces a failure and which carries
// errors. These short-circuit the LLM with a fixed narrative.
func (c *Classifier) classifyIntentional(chunks []models.Chunk) (models.Classification, bool) {
	for _, chunk := range chunks {
		exitLine := intentionalExitPattern.FindString(chunk.Content)
		name := strings.ToLower(chunk.StepName)
		forced := strings.Contains(name, "force") && strings.Contains(name, "fail") && chunk.HasErrors

		if exitLine == "" && !forced {
			continue
		}

		cause := "The job failed because of an explicit non-zero exit command in the workflow"
		if exitLine != "" {
			cause = fmt.Sprintf("The job failed because the workflow executed `%s` deliberately", strings.TrimSpace(exitLine))
		}

		return models.Classification{
			FailureType:  TypeIntentional,
			Priority:     c.cfg.IntentionalPriority,
			Confidence:   1.0,
			Reason:       "explicit non-zero exit detected",
			SkipLLM:      true,
			RootCause:    cause + ". This is an intentional failure, not a fault in the code under test.",
			FailureStage: chunk.StepName,
			SuggestedFix: "Remove the forced exit command from the workflow step if this intentional failure is no longer needed.",
		}, true
	}
	return models.Classification{}, false
}

// matchCount counts category hits in the error list plus content regex hits
// across chunk contents.
func (r rule) matchCount(chunks []models.Chunk, errs []models.DetectedError) int {
	count := 0
	for _, e := range errs {
		for _, cat := range r.errorCategories {
			if e.Category == cat {
				count++
				break
			}
		}
	}
	for _, chunk := range chunks {
		for _, p := range r.contentPatterns {
			count += len(p.FindAllStringIndex(chunk.Content, -1))
		}
	}
	return count
}

// matchConfidence converts a raw hit count into a score in [0,1].
func matchConfidence(count int) float64 {
	switch {
	case count >= 5:
		return 0.95
	case count >= 3:
		return 0.9
	case count == 2:
		return 0.8
	default:
		return 0.7
	}
}
