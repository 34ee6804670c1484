// Package extract recovers structured JSON payloads from free-form
// language-model output, tolerating surrounding prose and markdown fencing.
package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// fencedBlock matches a ```json ... ``` (or bare ```) markdown code fence
var fencedBlock = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// Error is a typed extraction failure carrying the raw model output for
// diagnostics
type Error struct {
	Reason string
	Raw    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("extraction failed: %s", e.Reason)
}

// JSON extracts a single JSON object from raw model output. It tries, in
// order: a fenced code block, then the first balanced brace-delimited
// substring. It never panics — the result is either a valid JSON object
// or an *Error.
func JSON(raw string) (json.RawMessage, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, &Error{Reason: "empty model output", Raw: raw}
	}

	if match := fencedBlock.FindStringSubmatch(text); match != nil {
		text = strings.TrimSpace(match[1])
	}

	if candidate := balancedObject(text); candidate != "" {
		text = candidate
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &probe); err != nil {
		return nil, &Error{Reason: fmt.Sprintf("no parseable JSON object: %v", err), Raw: raw}
	}

	return json.RawMessage(text), nil
}

// Decode extracts a JSON object from raw model output and unmarshals it
// into v
func Decode(raw string, v any) error {
	payload, err := JSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return &Error{Reason: fmt.Sprintf("payload does not match expected shape: %v", err), Raw: raw}
	}
	return nil
}

// balancedObject returns the substring from the first opening brace to its
// matching close, or "" when no balanced object exists
func balancedObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
