package llm

import (
	"encoding/json"
	"strings"
)

// Narrative is the structured analysis the model is prompted to return.
type Narrative struct {
	RootCause    string `json:"rootCause"`
	FailureStage string `json:"failureStage"`
	SuggestedFix string `json:"suggestedFix"`
}

// Truncation limits applied by the heuristic fallback parser.
const (
	maxRootCauseLen    = 300
	maxFailureStageLen = 100
	maxSuggestedFixLen = 500
)

// ExtractJSON returns the first balanced top-level JSON object in text.
// Braces are balanced with awareness of string literals and escapes; this is
// a scanner, not a regex, so nested objects and braces inside strings are
// handled correctly.
func ExtractJSON(text string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		ch := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// ParseNarrative parses the model's response into a Narrative. It first
// extracts and unmarshals the first balanced JSON object; if that fails it
// falls back to line-heuristic extraction of the labelled sections.
func ParseNarrative(text string) Narrative {
	if raw, ok := ExtractJSON(text); ok {
		var n Narrative
		if err := json.Unmarshal([]byte(raw), &n); err == nil && n.RootCause != "" {
			return n
		}
	}
	return heuristicParse(text)
}

// heuristicParse scans the response for "root cause", "stage"/"step", and
// "fix"/"solution" labels and captures the text that follows each, up to the
// next label.
func heuristicParse(text string) Narrative {
	type section int
	const (
		sectionNone section = iota
		sectionRootCause
		sectionStage
		sectionFix
	)

	labelOf := func(line string) (section, string) {
		lower := strings.ToLower(line)
		for _, probe := range []struct {
			keys []string
			sec  section
		}{
			{keys: []string{"root cause", "rootcause"}, sec: sectionRootCause},
			{keys: []string{"failure stage", "stage", "step"}, sec: sectionStage},
			{keys: []string{"suggested fix", "fix", "solution"}, sec: sectionFix},
		} {
			for _, key := range probe.keys {
				idx := strings.Index(lower, key)
				if idx < 0 || idx > 20 {
					continue
				}
				rest := line[idx+len(key):]
				rest = strings.TrimLeft(rest, " \t:*-—")
				return probe.sec, strings.TrimSpace(rest)
			}
		}
		return sectionNone, ""
	}

	parts := map[section][]string{}
	current := sectionNone
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if sec, rest := labelOf(line); sec != sectionNone {
			current = sec
			if rest != "" {
				parts[sec] = append(parts[sec], rest)
			}
			continue
		}
		if current != sectionNone {
			parts[current] = append(parts[current], line)
		}
	}

	joined := func(sec section) string {
		return strings.TrimSpace(strings.Join(parts[sec], " "))
	}

	return Narrative{
		RootCause:    truncate(joined(sectionRootCause), maxRootCauseLen),
		FailureStage: truncate(joined(sectionStage), maxFailureStageLen),
		SuggestedFix: truncate(joined(sectionFix), maxSuggestedFixLen),
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
