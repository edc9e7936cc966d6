package labelformat

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parse parses a label template from JSON
func Parse(data []byte) (*Template, error) {
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	return finish(&t)
}

// ParseYAML parses a label template from YAML
func ParseYAML(data []byte) (*Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	return finish(&t)
}

func finish(t *Template) (*Template, error) {
	// Editor canvas exports carry the canvas library version and no
	// design size; migrate them to the current format.
	if t.Version != CurrentVersion && t.DesignWidth == 0 && t.DesignHeight == 0 {
		t.Version = CurrentVersion
	}

	Normalize(t)

	if err := Validate(t); err != nil {
		return nil, err
	}

	return t, nil
}

// Normalize fills defaults and rewrites legacy property values in place
func Normalize(t *Template) {
	if t.Version == "" {
		t.Version = CurrentVersion
	}
	if t.DesignWidth == 0 {
		t.DesignWidth = DefaultDesignWidth
	}
	if t.DesignHeight == 0 {
		t.DesignHeight = DefaultDesignHeight
	}
	if t.Objects == nil {
		t.Objects = []Object{}
	}

	for i := range t.Objects {
		obj := &t.Objects[i]

		if obj.Type == "i-text" {
			obj.Type = TypeText
		}
		if obj.TextBaseline == "alphabetical" {
			obj.TextBaseline = "alphabetic"
		}
		if obj.Type == TypeTextbox {
			obj.Padding = 0
		}
		if obj.ScaleX == 0 {
			obj.ScaleX = 1
		}
		if obj.ScaleY == 0 {
			obj.ScaleY = 1
		}
	}
}

// ParseFile parses a template from disk, choosing the decoder by extension
func ParseFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}

	if isYAML(path) {
		return ParseYAML(data)
	}
	return Parse(data)
}

// ToJSON converts a Template to JSON bytes
func (t *Template) ToJSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// ToYAML converts a Template to YAML bytes
func (t *Template) ToYAML() ([]byte, error) {
	return yaml.Marshal(t)
}

// SaveToFile saves a Template as JSON, or YAML for .yaml/.yml paths
func (t *Template) SaveToFile(path string) error {
	var data []byte
	var err error

	if isYAML(path) {
		data, err = t.ToYAML()
	} else {
		data, err = t.ToJSON()
	}
	if err != nil {
		return fmt.Errorf("failed to encode template: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
