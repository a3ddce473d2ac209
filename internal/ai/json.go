package ai

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON means no JSON object could be found in a completion.
var ErrNoJSON = errors.New("no JSON object in completion")

// ExtractJSON decodes text into v. When text is not valid JSON on its own
// (markdown fences, prose around the object), the substring from the first
// '{' to the last '}' is tried instead.
func ExtractJSON(text string, v interface{}) error {
	trimmed := strings.TrimSpace(text)
	if err := json.Unmarshal([]byte(trimmed), v); err == nil {
		return nil
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), v); err != nil {
		return errors.Join(ErrNoJSON, err)
	}
	return nil
}
