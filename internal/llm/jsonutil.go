package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Models wrap JSON in prose or markdown fences often enough that direct
// unmarshalling fails. These helpers cut the first balanced JSON value out of
// a completion and clean it up before parsing.

// DecodeObject extracts the first JSON object from text and unmarshals it
// into v.
func DecodeObject(text string, v any) error {
	raw, err := firstBalanced(stripFences(text), '{', '}')
	if err != nil {
		return fmt.Errorf("no JSON object in response: %w", err)
	}
	if err := json.Unmarshal([]byte(cleanControlChars(raw)), v); err != nil {
		return fmt.Errorf("parse JSON object: %w", err)
	}
	return nil
}

// DecodeArray extracts the first JSON array from text and unmarshals it
// into v.
func DecodeArray(text string, v any) error {
	raw, err := firstBalanced(stripFences(text), '[', ']')
	if err != nil {
		return fmt.Errorf("no JSON array in response: %w", err)
	}
	if err := json.Unmarshal([]byte(cleanControlChars(raw)), v); err != nil {
		return fmt.Errorf("parse JSON array: %w", err)
	}
	return nil
}

// stripFences removes surrounding markdown code fences if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// firstBalanced returns the first balanced open..close span, respecting JSON
// string literals and escapes.
func firstBalanced(s string, open, close byte) (string, error) {
	start := strings.IndexByte(s, open)
	if start == -1 {
		return "", fmt.Errorf("no %q found", string(open))
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		ch := s[i]

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
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("unbalanced %q", string(open))
}

// cleanControlChars drops raw control characters that break json.Unmarshal
// inside string literals; JSON requires them escaped, and models that want a
// newline in a value emit "\n" as two characters.
func cleanControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
