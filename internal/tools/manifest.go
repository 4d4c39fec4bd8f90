package tools

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed manifest.yaml
var embeddedManifest string

// ManifestEntry describes one tool in the manifest.
type ManifestEntry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// Mutating marks tools whose success has an observable effect on
	// the workspace. The progress tracker classifies outcomes with it.
	Mutating bool `yaml:"mutating"`
}

// Manifest is the declared tool set.
type Manifest struct {
	Version int             `yaml:"version"`
	Tools   []ManifestEntry `yaml:"tools"`
}

// LoadManifest parses the embedded tool manifest.
func LoadManifest() (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal([]byte(embeddedManifest), &m); err != nil {
		return nil, fmt.Errorf("failed to parse tool manifest: %w", err)
	}
	if len(m.Tools) == 0 {
		return nil, fmt.Errorf("tool manifest declares no tools")
	}
	seen := make(map[string]bool, len(m.Tools))
	for _, entry := range m.Tools {
		if entry.Name == "" {
			return nil, fmt.Errorf("tool manifest entry with empty name")
		}
		if seen[entry.Name] {
			return nil, fmt.Errorf("tool manifest declares %q twice", entry.Name)
		}
		seen[entry.Name] = true
	}
	return &m, nil
}

// Validate checks that the registry and the manifest agree: every
// declared tool is registered and every registered tool is declared.
func (m *Manifest) Validate(r *Registry) error {
	declared := make(map[string]bool, len(m.Tools))
	for _, entry := range m.Tools {
		declared[entry.Name] = true
		if !r.Exists(entry.Name) {
			return fmt.Errorf("manifest declares %q but no such tool is registered", entry.Name)
		}
	}
	for _, name := range r.Names() {
		if !declared[name] {
			return fmt.Errorf("tool %q is registered but missing from the manifest", name)
		}
	}
	return nil
}

// Mutating reports whether the named tool is declared mutating.
// Unknown names are non-mutating.
func (m *Manifest) Mutating(name string) bool {
	for _, entry := range m.Tools {
		if entry.Name == name {
			return entry.Mutating
		}
	}
	return false
}
