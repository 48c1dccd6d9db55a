package llm

import (
	"encoding/json"
	"errors"
)

// ErrNoPayload is returned when a response contains no brace-delimited JSON
// object at all.
var ErrNoPayload = errors.New("no JSON payload found in response")

// ExtractJSONObject locates the first balanced brace-delimited JSON object
// embedded in text and returns it verbatim. Model responses frequently wrap
// the requested JSON in prose; everything outside the first object is
// ignored. The candidate span must also be valid JSON.
func ExtractJSONObject(text string) (string, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, r := range text {
		if start == -1 {
			if r == '{' {
				start = i
				depth = 1
			}
			continue
		}
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					candidate := text[start : i+1]
					if !json.Valid([]byte(candidate)) {
						return "", ErrNoPayload
					}
					return candidate, nil
				}
			}
		}
	}
	return "", ErrNoPayload
}
