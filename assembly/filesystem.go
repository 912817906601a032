package assembly

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/brettbedarf/assemblyfs"
	"github.com/brettbedarf/assemblyfs/internal/util"
)

// FileSystem exposes an Assembly as a mountable backend. Every operation maps
// the target onto the assembly tree and delegates to the resolved file. Tree
// nodes without a target show up as directories.
type FileSystem struct {
	a *Assembly
}

// NewFileSystem returns a backend serving a.
func NewFileSystem(a *Assembly) *FileSystem {
	return &FileSystem{a: a}
}

// resolved is what a target maps to: the tree node at its path, the file it
// resolves to, or both.
type resolved struct {
	node *Node
	file *assemblyfs.VirtualFile
}

// structural reports whether the path is a directory made by the tree itself.
func (r resolved) structural() bool {
	return r.node != nil && (r.file == nil || r.node.children.Size() > 0)
}

func (fs *FileSystem) lookup(mountPoint, target *assemblyfs.VirtualFile) (resolved, error) {
	parts, err := assemblyfs.RelativePath(mountPoint, target)
	if err != nil {
		return resolved{}, err
	}
	var r resolved
	r.node, _ = fs.a.root.Find(PathOf(parts))
	r.file, _ = fs.a.root.Resolve(PathOf(parts))
	if r.node == nil && r.file == nil {
		return resolved{}, fmt.Errorf("%s: %w", target.PathName(), assemblyfs.ErrNotFound)
	}
	return r, nil
}

// file returns the resolved file, failing for purely structural directories.
func (fs *FileSystem) file(mountPoint, target *assemblyfs.VirtualFile) (*assemblyfs.VirtualFile, error) {
	r, err := fs.lookup(mountPoint, target)
	if err != nil {
		return nil, err
	}
	if r.file == nil {
		return nil, fmt.Errorf("%s: is a directory", target.PathName())
	}
	return r.file, nil
}

func (fs *FileSystem) File(mountPoint, target *assemblyfs.VirtualFile) (string, error) {
	f, err := fs.file(mountPoint, target)
	if err != nil {
		return "", err
	}
	return f.PhysicalFile()
}

func (fs *FileSystem) Open(mountPoint, target *assemblyfs.VirtualFile) (io.ReadCloser, error) {
	f, err := fs.file(mountPoint, target)
	if err != nil {
		return nil, err
	}
	return f.Open()
}

func (fs *FileSystem) ReadOnly() bool {
	return false
}

// Delete removes the resolved file from its own backend. The tree is unchanged.
func (fs *FileSystem) Delete(mountPoint, target *assemblyfs.VirtualFile) bool {
	f, err := fs.file(mountPoint, target)
	return err == nil && f.Delete()
}

func (fs *FileSystem) Size(mountPoint, target *assemblyfs.VirtualFile) (int64, error) {
	r, err := fs.lookup(mountPoint, target)
	if err != nil {
		return 0, err
	}
	if r.file == nil {
		return 0, nil
	}
	return r.file.Size()
}

func (fs *FileSystem) LastModified(mountPoint, target *assemblyfs.VirtualFile) (time.Time, error) {
	r, err := fs.lookup(mountPoint, target)
	if err != nil {
		return time.Time{}, err
	}
	if r.file == nil {
		return time.Time{}, nil
	}
	return r.file.LastModified()
}

func (fs *FileSystem) Exists(mountPoint, target *assemblyfs.VirtualFile) bool {
	r, err := fs.lookup(mountPoint, target)
	return err == nil && (r.node != nil || r.file.Exists())
}

func (fs *FileSystem) IsFile(mountPoint, target *assemblyfs.VirtualFile) bool {
	r, err := fs.lookup(mountPoint, target)
	return err == nil && !r.structural() && r.file.IsFile()
}

func (fs *FileSystem) IsDirectory(mountPoint, target *assemblyfs.VirtualFile) bool {
	r, err := fs.lookup(mountPoint, target)
	if err != nil {
		return false
	}
	return r.structural() || r.file.IsDirectory()
}

// Entries merges the tree's children with the entries of the resolved file.
func (fs *FileSystem) Entries(mountPoint, target *assemblyfs.VirtualFile) []string {
	logger := util.GetLogger("AssemblyFS.Entries")
	r, err := fs.lookup(mountPoint, target)
	if err != nil {
		logger.Trace().Err(err).Msg("Cannot list entries")
		return []string{}
	}
	names := []string{}
	if r.node != nil {
		names = append(names, r.node.ChildNames()...)
	}
	if r.file != nil && r.file.IsDirectory() {
		for _, name := range r.file.ChildNames() {
			if !slices.ContainsFunc(names, func(n string) bool { return key(n) == key(name) }) {
				names = append(names, name)
			}
		}
	}
	slices.Sort(names)
	return names
}

func (fs *FileSystem) CodeSigners(mountPoint, target *assemblyfs.VirtualFile) []assemblyfs.CodeSigner {
	f, err := fs.file(mountPoint, target)
	if err != nil {
		return nil
	}
	return f.CodeSigners()
}

// MountSource identifies the assembly.
func (fs *FileSystem) MountSource() string {
	return "assembly:" + fs.a.id
}

// Close is a no-op; the assembly is closed by its owner.
func (fs *FileSystem) Close() error {
	return nil
}

var _ assemblyfs.FileSystem = (*FileSystem)(nil)
