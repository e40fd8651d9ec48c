package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oarkflow/json"
	"gopkg.in/yaml.v3"
)

type decodeFunc func(data []byte, v any) error

func decodeJSON(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// LoadFile reads a rule set from a .yaml, .yml or .json file.
func LoadFile(path string) (*RuleSet, error) {
	var decode decodeFunc
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		decode = yaml.Unmarshal
	case ".json":
		decode = decodeJSON
	default:
		return nil, fmt.Errorf("unsupported rule set format: %s", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule set: %w", err)
	}
	rs, err := load(data, decode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if rs.Name == "" {
		rs.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return rs, nil
}

// LoadYAML decodes a YAML rule set document.
func LoadYAML(data []byte) (*RuleSet, error) {
	return load(data, yaml.Unmarshal)
}

// LoadJSON decodes a JSON rule set document.
func LoadJSON(data []byte) (*RuleSet, error) {
	return load(data, decodeJSON)
}

// LoadString decodes a rule set from content in the given format, "yaml" or
// "json".
func LoadString(content, format string) (*RuleSet, error) {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return LoadYAML([]byte(content))
	case "json":
		return LoadJSON([]byte(content))
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func load(data []byte, decode decodeFunc) (*RuleSet, error) {
	var rs RuleSet
	if err := decode(data, &rs); err != nil {
		return nil, fmt.Errorf("decode rule set: %w", err)
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}
