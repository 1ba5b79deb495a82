package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError means model text was present but could not be coerced to JSON.
// Raw carries the original model output for diagnostic surfacing.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("model did not return valid JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Normalize strips an optional markdown code fence from raw model text and
// parses it as JSON. It guarantees a JSON object or array, nothing more;
// schema conformance is Assemble's job. There is no speculative repair
// beyond fence stripping: malformed output is terminal for the request.
func Normalize(rawText string) (any, error) {
	cleaned := stripFences(rawText)
	var payload any
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, &ParseError{Raw: rawText, Err: err}
	}
	switch payload.(type) {
	case map[string]any, []any:
		return payload, nil
	default:
		return nil, &ParseError{Raw: rawText, Err: fmt.Errorf("not a JSON object or array")}
	}
}

// stripFences removes the outermost ```lang ... ``` wrapper, if present.
func stripFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	cleaned = cleaned[3:]
	i := 0
	for i < len(cleaned) && isLetter(cleaned[i]) {
		i++
	}
	cleaned = strings.TrimSpace(cleaned[i:])
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
