package archive

import (
	"path/filepath"
	"strings"
)

// Factory creates the [Archive] variant used to read a source.
// Creating an archive does not open it.
type Factory interface {
	NewArchive(src Source) (Archive, error)
}

// FactoryFunc adapts a function to a [Factory].
type FactoryFunc func(src Source) (Archive, error)

func (f FactoryFunc) NewArchive(src Source) (Archive, error) {
	return f(src)
}

// ExtensionFactory picks a factory by the source's file extension, falling back
// to Default for unknown extensions.
type ExtensionFactory struct {
	ByExt   map[string]Factory // lower-cased extension including the dot
	Default Factory
}

func (f *ExtensionFactory) NewArchive(src Source) (Archive, error) {
	name := src.Path
	if name == "" {
		name = src.Name
	}
	if fac, ok := f.ByExt[strings.ToLower(filepath.Ext(name))]; ok {
		return fac.NewArchive(src)
	}
	return f.Default.NewArchive(src)
}
