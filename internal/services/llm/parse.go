// -----------------------------------------------------------------------
// JSON Extraction - progressively permissive parsing of model output
// -----------------------------------------------------------------------

package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseStrategy records which extraction strategy finally produced valid JSON
type ParseStrategy string

const (
	ParseDirect         ParseStrategy = "direct"
	ParseFenced         ParseStrategy = "fence_stripped"
	ParseBraces         ParseStrategy = "outer_braces"
	ParseFailedStrategy ParseStrategy = "failed"
)

// ParseFailure is the typed terminal result when every strategy failed.
// It carries the raw model output for diagnostics; the parser itself never
// panics or surfaces a bare json.SyntaxError.
type ParseFailure struct {
	Raw string
	Err error
}

func (p *ParseFailure) Error() string {
	preview := p.Raw
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	return fmt.Sprintf("failed to extract JSON from model output: %v (output starts: %q)", p.Err, preview)
}

func (p *ParseFailure) Unwrap() error { return p.Err }

// ExtractJSON decodes model output into v, tolerating the model wrapping the
// JSON in prose or code fences. Strategies, in order:
//  1. direct decode
//  2. strip ```json fences and decode the fenced block
//  3. decode the outermost {...} or [...] span
//
// Returns the strategy that succeeded, or a *ParseFailure.
func ExtractJSON(raw string, v interface{}) (ParseStrategy, error) {
	trimmed := strings.TrimSpace(raw)

	if err := json.Unmarshal([]byte(trimmed), v); err == nil {
		return ParseDirect, nil
	}

	if fenced := stripCodeFences(trimmed); fenced != "" {
		if err := json.Unmarshal([]byte(fenced), v); err == nil {
			return ParseFenced, nil
		}
	}

	if span := outermostJSONSpan(trimmed); span != "" {
		if err := json.Unmarshal([]byte(span), v); err == nil {
			return ParseBraces, nil
		}
	}

	// Report the direct-parse error; it is the most informative of the three.
	directErr := json.Unmarshal([]byte(trimmed), v)
	return ParseFailedStrategy, &ParseFailure{Raw: raw, Err: directErr}
}

// stripCodeFences returns the content of the first fenced code block, or ""
func stripCodeFences(s string) string {
	start := strings.Index(s, "```")
	if start < 0 {
		return ""
	}
	rest := s[start+3:]
	// Skip an optional language tag on the fence line
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(rest[:nl])
		if firstLine == "json" || firstLine == "JSON" || firstLine == "" {
			rest = rest[nl+1:]
		}
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:end])
}

// outermostJSONSpan returns the substring from the first '{' or '[' to its
// matching close bracket, tracking string literals so braces inside values
// don't unbalance the scan.
func outermostJSONSpan(s string) string {
	start := -1
	var open, close rune
	for i, ch := range s {
		if ch == '{' {
			start, open, close = i, '{', '}'
			break
		}
		if ch == '[' {
			start, open, close = i, '[', ']'
			break
		}
	}
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := rune(s[i])
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
