package rig

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var embeddedRigs embed.FS

// Parse decodes a YAML rig description.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: parse: %v", ErrRigLoad, err)
	}
	if len(def.Bones) == 0 {
		return nil, fmt.Errorf("%w: rig %q has no bones", ErrRigLoad, def.Name)
	}
	return &def, nil
}

// LoadFile reads a rig description from disk.
// The file name (without extension) is used when the rig has no name.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRigLoad, err)
	}

	def, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if def.Name == "" {
		def.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return def, nil
}

// LoadEmbedded loads one of the bundled rig templates by name.
func LoadEmbedded(name string) (*Definition, error) {
	data, err := embeddedRigs.ReadFile(fmt.Sprintf("data/%s.yaml", name))
	if err != nil {
		return nil, fmt.Errorf("%w: rig %q not found: %v", ErrRigLoad, name, err)
	}

	def, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if def.Name == "" {
		def.Name = name
	}
	return def, nil
}

// ListEmbedded returns the names of the bundled rig templates.
func ListEmbedded() ([]string, error) {
	entries, err := embeddedRigs.ReadDir("data")
	if err != nil {
		return nil, fmt.Errorf("list embedded rigs: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".yaml") {
			names = append(names, strings.TrimSuffix(entry.Name(), ".yaml"))
		}
	}
	return names, nil
}
