package table

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
	"sigs.k8s.io/yaml"
)

// Format identifies the serialization of a table document.
type Format string

const (
	// FormatJSON is standard JSON, with comments and trailing commas
	// tolerated.
	FormatJSON Format = "json"
	// FormatYAML is YAML, converted to JSON before decoding so both
	// formats share one schema and one decode path.
	FormatYAML Format = "yaml"
)

// ParseFormat validates a configured format name. An empty name
// defaults to JSON.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "", "json", "jsonc":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported table format %q (expected json or yaml)", name)
	}
}

// DetectFormat guesses the format from a file path, falling back to
// JSON for unknown extensions.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode parses, validates, and unmarshals a table document.
func Decode(data []byte, format Format) (*Document, error) {
	std, err := standardize(data, format)
	if err != nil {
		return nil, err
	}
	if err := ValidateJSON(std); err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(std, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode table document: %w", err)
	}
	return &doc, nil
}

// standardize normalizes raw document bytes to plain JSON.
func standardize(data []byte, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		std, err := yaml.YAMLToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		return std, nil
	case FormatJSON, "":
		std, err := hujson.Standardize(data)
		if err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return std, nil
	default:
		return nil, fmt.Errorf("unsupported table format %q", format)
	}
}
