package utils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONObject(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected map[string]interface{}
	}{
		{"empty", "", map[string]interface{}{}},
		{"object", `{"step": 1}`, map[string]interface{}{"step": float64(1)}},
		{"fenced", "```json\n{\"a\": \"b\"}\n```", map[string]interface{}{"a": "b"}},
		{"malformed", `{"step": `, map[string]interface{}{}},
		{"array", `[1, 2]`, map[string]interface{}{}},
		{"null", `null`, map[string]interface{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseJSONObject(tt.input))
		})
	}
}

func TestObjectFromRaw(t *testing.T) {
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, ObjectFromRaw(json.RawMessage(`{"a":1}`)))
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, ObjectFromRaw(json.RawMessage(`"{\"a\":1}"`)))
	assert.Equal(t, map[string]interface{}{}, ObjectFromRaw(json.RawMessage(`"not json"`)))
	assert.Equal(t, map[string]interface{}{}, ObjectFromRaw(nil))
	assert.Equal(t, map[string]interface{}{}, ObjectFromRaw(json.RawMessage(`null`)))
}

func TestParseYAML(t *testing.T) {
	var out map[string]interface{}
	require.NoError(t, ParseYAML("```yaml\ntopic: go\n```", &out))
	assert.Equal(t, "go", out["topic"])

	out = nil
	require.NoError(t, ParseYAML("```yml\ncount: 3\n```", &out))
	assert.Equal(t, 3, out["count"])
}

func TestParseKeyValues(t *testing.T) {
	got, err := ParseKeyValues([]string{"topic=go generics", "depth=3", "ratio=0.5", "verbose=true", "query=a=b", "topic=rust"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"topic":   "rust",
		"depth":   int64(3),
		"ratio":   0.5,
		"verbose": true,
		"query":   "a=b",
	}, got)

	_, err = ParseKeyValues([]string{"novalue"})
	assert.Error(t, err)
	_, err = ParseKeyValues([]string{"=x"})
	assert.Error(t, err)
}

func TestMergeInputs(t *testing.T) {
	base := map[string]interface{}{"a": 1, "b": 2}
	got := MergeInputs(base, map[string]interface{}{"b": 3}, nil)
	assert.Equal(t, map[string]interface{}{"a": 1, "b": 3}, got)
	assert.Equal(t, 2, base["b"])
}

func TestLoadInputsFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "inputs.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("topic: go\naudience:\n  - devs\n"), 0o600))
	got, err := LoadInputsFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "go", got["topic"])
	assert.Equal(t, []interface{}{"devs"}, got["audience"])

	jsonPath := filepath.Join(dir, "inputs.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"topic":"go"}`), 0o600))
	got, err = LoadInputsFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "go", got["topic"])

	emptyPath := filepath.Join(dir, "empty.yml")
	require.NoError(t, os.WriteFile(emptyPath, nil, 0o600))
	got, err = LoadInputsFile(emptyPath)
	require.NoError(t, err)
	assert.Empty(t, got)

	badPath := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badPath, []byte(`{`), 0o600))
	_, err = LoadInputsFile(badPath)
	assert.Error(t, err)

	_, err = LoadInputsFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
