package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Step is one unit of work in a definition. Agent is advisory metadata and
// plays no part in dispatch.
type Step struct {
	ID     string                 `yaml:"id"`
	Agent  string                 `yaml:"agent"`
	Action string                 `yaml:"action"`
	Inputs map[string]interface{} `yaml:"inputs"`
}

// Definition is a parsed, validated workflow.
type Definition struct {
	Name  string
	Steps []Step
}

type definitionFile struct {
	Workflow struct {
		Steps []Step `yaml:"steps"`
	} `yaml:"workflow"`
}

// ParseDefinition parses a YAML workflow document and validates it: at least
// one step, unique non-empty step ids, non-empty actions.
func ParseDefinition(name string, data []byte) (*Definition, error) {
	var f definitionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse workflow %s: %w", name, err)
	}
	if len(f.Workflow.Steps) == 0 {
		return nil, fmt.Errorf("workflow %s: no steps defined", name)
	}

	seen := make(map[string]bool, len(f.Workflow.Steps))
	for i, s := range f.Workflow.Steps {
		if s.ID == "" {
			return nil, fmt.Errorf("workflow %s: step %d has no id", name, i+1)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("workflow %s: duplicate step id %q", name, s.ID)
		}
		seen[s.ID] = true
		if s.Action == "" {
			return nil, fmt.Errorf("workflow %s: step %q has no action", name, s.ID)
		}
	}

	return &Definition{Name: name, Steps: f.Workflow.Steps}, nil
}

// LoadDefinition reads one workflow file. The definition name is the file
// name without extension.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ParseDefinition(name, data)
}

// LoadDefinitions loads every .yaml/.yml file in dir, keyed by name.
func LoadDefinitions(dir string) (map[string]*Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read workflow dir %s: %w", dir, err)
	}

	defs := make(map[string]*Definition)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		def, err := LoadDefinition(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		defs[def.Name] = def
	}
	return defs, nil
}
