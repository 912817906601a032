package archive

import (
	"fmt"
	"slices"
	"sync"
)

// Built-in factory names. See [RegisterBuiltins].
const (
	ZipFactoryName      = "zip"
	KZipFactoryName     = "kzip"
	SevenZipFactoryName = "7z"
	RarFactoryName      = "rar"
	CpioFactoryName     = "cpio"
	AutoFactoryName     = "auto"
)

// Registry maps factory names to archive factories. Each assembly resolves its
// factory from a Registry at construction.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register ties a factory to a name. The first registration of a name wins.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return
	}
	r.factories[name] = f
}

// Get returns the factory registered under name.
func (r *Registry) Get(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("no archive factory registered for %q", name)
	}
	return f, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// RegisterBuiltins registers all built-in factories by default or only the
// specific ones if names are provided.
func RegisterBuiltins(r *Registry, names ...string) {
	if len(names) == 0 {
		names = []string{ZipFactoryName, KZipFactoryName, SevenZipFactoryName, RarFactoryName, CpioFactoryName, AutoFactoryName}
	}

	for _, name := range names {
		switch name {
		case ZipFactoryName:
			r.Register(name, FactoryFunc(newZipArchive))
		case KZipFactoryName:
			r.Register(name, FactoryFunc(newKZipArchive))
		case SevenZipFactoryName:
			r.Register(name, FactoryFunc(newSevenZipArchive))
		case RarFactoryName:
			r.Register(name, FactoryFunc(newRarArchive))
		case CpioFactoryName:
			r.Register(name, FactoryFunc(newCpioArchive))
		case AutoFactoryName:
			r.Register(name, NewAutoFactory())
		}
	}
}

// NewAutoFactory returns a factory choosing the format from the file extension.
// Unknown extensions, including .jar and .war, are read as zip.
func NewAutoFactory() *ExtensionFactory {
	return &ExtensionFactory{
		ByExt: map[string]Factory{
			".7z":   FactoryFunc(newSevenZipArchive),
			".rar":  FactoryFunc(newRarArchive),
			".cpio": FactoryFunc(newCpioArchive),
		},
		Default: FactoryFunc(newKZipArchive),
	}
}
