package assembly

import (
	"fmt"
	"path/filepath"

	"github.com/brettbedarf/assemblyfs/config"
)

// Apply adds every mount of m to a in order. Relative sources are resolved
// against baseDir. Sources mounted before a failure stay mounted until a is closed.
func (a *Assembly) Apply(m *config.Manifest, baseDir string) error {
	for i, ms := range m.Mounts {
		src := ms.Source
		if !filepath.IsAbs(src) {
			src = filepath.Join(baseDir, src)
		}
		var err error
		switch ms.Type {
		case config.DirMount:
			_, err = a.AddDir(ms.Path, src)
		case config.FileMount:
			_, err = a.AddFile(ms.Path, src)
		case config.ArchiveMount:
			_, err = a.AddArchive(ms.Path, src)
		default:
			err = fmt.Errorf("unknown type %q", ms.Type)
		}
		if err != nil {
			return fmt.Errorf("mount %d (%s): %w", i, ms.Path, err)
		}
	}
	return nil
}

// FromManifest creates an assembly holding the content of the manifest file at
// path. The assembly is closed again if any mount fails.
func FromManifest(path string, opts Options) (*Assembly, error) {
	m, err := config.LoadManifest(path)
	if err != nil {
		return nil, err
	}
	a, err := New(opts)
	if err != nil {
		return nil, err
	}
	if err := a.Apply(m, filepath.Dir(path)); err != nil {
		a.Close() // nolint:errcheck
		return nil, err
	}
	return a, nil
}
