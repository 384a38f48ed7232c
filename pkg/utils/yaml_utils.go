package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseYAML parses a YAML string, tolerating a surrounding markdown code fence
func ParseYAML(yamlStr string, result any) error {
	s := strings.TrimSpace(yamlStr)
	if strings.HasPrefix(s, "```yml") {
		s = "```" + strings.TrimPrefix(s, "```yml")
	}
	return yaml.Unmarshal([]byte(stripFence(s, "yaml")), result)
}

// LoadInputsFile reads kickoff inputs from a YAML or JSON file. The format
// follows the extension; anything other than .json is read as YAML.
func LoadInputsFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inputs file: %w", err)
	}

	out := map[string]interface{}{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &out)
	default:
		err = yaml.Unmarshal(data, &out)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse inputs file %s: %w", path, err)
	}
	if out == nil {
		out = map[string]interface{}{}
	}
	return out, nil
}
