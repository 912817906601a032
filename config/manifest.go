package config

import (
	"errors"
	"fmt"
)

// MountType selects how a manifest entry's source is attached to an assembly.
type MountType string

const (
	DirMount     MountType = "dir"     // real directory
	ArchiveMount MountType = "archive" // archive file browsed as a directory
	FileMount    MountType = "file"    // single real file
)

// MountSpec places one source at a virtual path of an assembly.
type MountSpec struct {
	Path   string    `yaml:"path" json:"path"`
	Type   MountType `yaml:"type" json:"type"`
	Source string    `yaml:"source" json:"source"`
}

// Manifest describes the content of an assembly.
type Manifest struct {
	Mounts []MountSpec `yaml:"mounts" json:"mounts"`
}

// LoadManifest reads a manifest from a YAML or JSON file and validates it.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	if err := decodeFile(path, &m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return &m, nil
}

// Validate checks every mount names a path, a known type and a source.
func (m *Manifest) Validate() error {
	var errs []error
	for i, ms := range m.Mounts {
		if ms.Path == "" {
			errs = append(errs, fmt.Errorf("mount %d: missing path", i))
		}
		if ms.Source == "" {
			errs = append(errs, fmt.Errorf("mount %d: missing source", i))
		}
		switch ms.Type {
		case DirMount, ArchiveMount, FileMount:
		default:
			errs = append(errs, fmt.Errorf("mount %d: unknown type %q", i, ms.Type))
		}
	}
	return errors.Join(errs...)
}
