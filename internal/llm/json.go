// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed marks model output that could not be parsed into the
// expected shape. It is never retried.
var ErrMalformed = errors.New("malformed model output")

// ExtractJSON pulls a JSON object out of a model reply that may wrap it in
// a code fence or surrounding prose. It returns the text between the first
// '{' and the last '}'.
func ExtractJSON(text string) (string, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in reply: %w", ErrMalformed)
	}
	return s[start : end+1], nil
}

// DecodeJSON extracts the JSON object from text and unmarshals it into v.
// All failures wrap ErrMalformed.
func DecodeJSON(text string, v any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
