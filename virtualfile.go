package assemblyfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"slices"
	"time"
)

// VirtualFile is a lightweight handle on a path in a VFS. Creating one does not
// touch any backend; operations locate the mount owning the path when called.
type VirtualFile struct {
	name   string
	parent *VirtualFile // nil for the root
	vfs    *VFS
	path   string // canonical absolute path, "/" for the root
}

// Name returns the last path segment, "" for the root.
func (f *VirtualFile) Name() string {
	return f.name
}

// Parent returns the parent file, or nil for the root.
func (f *VirtualFile) Parent() *VirtualFile {
	return f.parent
}

// PathName returns the canonical absolute path.
func (f *VirtualFile) PathName() string {
	return f.path
}

func (f *VirtualFile) String() string {
	return f.path
}

func (f *VirtualFile) IsRoot() bool {
	return f.parent == nil
}

// VFS returns the namespace f belongs to.
func (f *VirtualFile) VFS() *VFS {
	return f.vfs
}

// Equal reports whether f and o name the same path in the same VFS.
func (f *VirtualFile) Equal(o *VirtualFile) bool {
	if f == o {
		return true
	}
	if f == nil || o == nil {
		return false
	}
	return f.vfs == o.vfs && f.path == o.path
}

// Child returns the file at the relative path below f. The file may not exist.
func (f *VirtualFile) Child(path string) *VirtualFile {
	cur := f
	for _, seg := range Tokens(path) {
		p := "/" + seg
		if !cur.IsRoot() {
			p = cur.path + p
		}
		cur = &VirtualFile{name: seg, parent: cur, vfs: f.vfs, path: p}
	}
	return cur
}

// ExistingChild returns the direct child with the given name if it exists.
func (f *VirtualFile) ExistingChild(name string) (*VirtualFile, bool) {
	child := f.Child(name)
	if child == f || !child.Exists() {
		return nil, false
	}
	return child, true
}

func (f *VirtualFile) Exists() bool {
	if m, ok := f.vfs.mountFor(f); ok && m.fs.Exists(m.point, f) {
		return true
	}
	return len(f.vfs.impliedChildren(f)) > 0
}

func (f *VirtualFile) IsFile() bool {
	m, ok := f.vfs.mountFor(f)
	return ok && m.fs.IsFile(m.point, f)
}

func (f *VirtualFile) IsDirectory() bool {
	if m, ok := f.vfs.mountFor(f); ok && m.fs.IsDirectory(m.point, f) {
		return true
	}
	return len(f.vfs.impliedChildren(f)) > 0
}

// Size returns the size of the file in bytes.
func (f *VirtualFile) Size() (int64, error) {
	m, err := f.mount()
	if err != nil {
		return 0, err
	}
	return m.fs.Size(m.point, f)
}

func (f *VirtualFile) LastModified() (time.Time, error) {
	m, err := f.mount()
	if err != nil {
		return time.Time{}, err
	}
	return m.fs.LastModified(m.point, f)
}

// Open opens the file for reading.
func (f *VirtualFile) Open() (io.ReadCloser, error) {
	m, err := f.mount()
	if err != nil {
		return nil, err
	}
	return m.fs.Open(m.point, f)
}

// PhysicalFile returns a real OS path holding the file's content, materializing
// it first when the backend has no real file for it.
func (f *VirtualFile) PhysicalFile() (string, error) {
	m, err := f.mount()
	if err != nil {
		return "", err
	}
	return m.fs.File(m.point, f)
}

// Delete removes the file. Returns false if it could not be removed.
func (f *VirtualFile) Delete() bool {
	m, ok := f.vfs.mountFor(f)
	return ok && m.fs.Delete(m.point, f)
}

func (f *VirtualFile) CodeSigners() []CodeSigner {
	m, ok := f.vfs.mountFor(f)
	if !ok {
		return nil
	}
	return m.fs.CodeSigners(m.point, f)
}

// ChildNames returns the sorted names of f's children. Never nil.
func (f *VirtualFile) ChildNames() []string {
	var names []string
	if m, ok := f.vfs.mountFor(f); ok {
		names = append(names, m.fs.Entries(m.point, f)...)
	}
	for _, name := range f.vfs.impliedChildren(f) {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	if names == nil {
		names = []string{}
	}
	return names
}

// Children returns f's direct children in name order.
func (f *VirtualFile) Children() []*VirtualFile {
	names := f.ChildNames()
	children := make([]*VirtualFile, 0, len(names))
	for _, name := range names {
		children = append(children, f.Child(name))
	}
	return children
}

// Visit walks f's descendants depth first in name order. Returning fs.SkipDir
// from fn for a directory skips its contents; any other error stops the walk.
func (f *VirtualFile) Visit(fn func(*VirtualFile) error) error {
	stack := f.Children()
	slices.Reverse(stack)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		err := fn(cur)
		if errors.Is(err, fs.SkipDir) {
			continue
		}
		if err != nil {
			return err
		}
		if cur.IsDirectory() {
			children := cur.Children()
			slices.Reverse(children)
			stack = append(stack, children...)
		}
	}
	return nil
}

func (f *VirtualFile) mount() (*mount, error) {
	m, ok := f.vfs.mountFor(f)
	if !ok {
		return nil, fmt.Errorf("%s: %w", f.path, ErrNotMounted)
	}
	return m, nil
}
