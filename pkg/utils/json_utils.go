// Package utils provides input parsing helpers shared by the server and the CLI.
package utils

import (
	"encoding/json"
	"strings"
)

// ParseJSON parses a JSON string, tolerating a surrounding markdown code fence
func ParseJSON(jsonStr string, result any) error {
	return json.Unmarshal([]byte(stripFence(jsonStr, "json")), result)
}

// ParseJSONObject parses a JSON object field such as initial_state. Empty,
// malformed or non-object input yields an empty map, never an error.
func ParseJSONObject(jsonStr string) map[string]interface{} {
	out := map[string]interface{}{}
	if strings.TrimSpace(jsonStr) == "" {
		return out
	}
	var parsed map[string]interface{}
	if err := ParseJSON(jsonStr, &parsed); err != nil || parsed == nil {
		return out
	}
	return parsed
}

// ObjectFromRaw accepts either a JSON object or a JSON string holding an
// object, as sent by forms that post a textarea verbatim
func ObjectFromRaw(raw json.RawMessage) map[string]interface{} {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return map[string]interface{}{}
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return map[string]interface{}{}
		}
		return ParseJSONObject(s)
	}
	return ParseJSONObject(trimmed)
}

// stripFence removes a ```lang ... ``` wrapper if present
func stripFence(s, lang string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, lang)
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}
