package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseKeyValues turns k=v pairs into an input map. Values that look like
// numbers or booleans keep that type; a later key overrides an earlier one.
func ParseKeyValues(pairs []string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid input %q, expected key=value", pair)
		}
		out[key] = scalar(value)
	}
	return out, nil
}

// MergeInputs overlays later maps on earlier ones into a new map
func MergeInputs(maps ...map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func scalar(v string) interface{} {
	if b, err := strconv.ParseBool(v); err == nil && (v == "true" || v == "false") {
		return b
	}
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && strings.ContainsAny(v, ".eE") {
		return f
	}
	return v
}
