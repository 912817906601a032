package assemblyfs

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/brettbedarf/assemblyfs/internal/util"
	"github.com/puzpuzpuz/xsync/v4"
)

// VFS is a virtual namespace made of FileSystem backends mounted at virtual paths.
// Paths outside every mount do not exist, except for the directories implied by
// the mount points themselves.
type VFS struct {
	root   *VirtualFile
	mounts *xsync.Map[string, *mount] // canonical mount path -> mount
	refs   *refCounter
}

type mount struct {
	fs    FileSystem
	point *VirtualFile
}

// New creates an empty VFS.
func New() *VFS {
	v := &VFS{
		mounts: xsync.NewMap[string, *mount](),
		refs:   newRefCounter(),
	}
	v.root = &VirtualFile{vfs: v, path: "/"}
	return v
}

// Root returns the root of the namespace.
func (v *VFS) Root() *VirtualFile {
	return v.root
}

// Child returns the file at the given absolute virtual path. The file may not exist.
func (v *VFS) Child(path string) *VirtualFile {
	return v.root.Child(path)
}

// Mount attaches fs at mountPoint. Closing the returned handle unmounts it and
// closes fs once no other mount references it.
func (v *VFS) Mount(fs FileSystem, mountPoint *VirtualFile) (io.Closer, error) {
	logger := util.GetLogger("VFS.Mount")
	if fs == nil || mountPoint == nil {
		return nil, errors.New("mount: nil filesystem or mount point")
	}
	if mountPoint.vfs != v {
		return nil, fmt.Errorf("mount %s: mount point belongs to another VFS", mountPoint.PathName())
	}
	m := &mount{fs: fs, point: mountPoint}
	if _, loaded := v.mounts.LoadOrStore(mountPoint.PathName(), m); loaded {
		return nil, fmt.Errorf("mount %s: %w", mountPoint.PathName(), ErrAlreadyMounted)
	}
	refs := v.refs.acquire(fs)
	logger.Debug().Str("path", mountPoint.PathName()).Str("source", fs.MountSource()).Int("refs", refs).Msg("Mounted filesystem")
	return &mountHandle{vfs: v, m: m}, nil
}

// MountCount returns the number of active mounts referencing fs.
func (v *VFS) MountCount(fs FileSystem) int {
	return v.refs.count(fs)
}

// mountFor returns the mount owning f: the one at f or its nearest ancestor.
func (v *VFS) mountFor(f *VirtualFile) (*mount, bool) {
	for cur := f; cur != nil; cur = cur.parent {
		if m, ok := v.mounts.Load(cur.path); ok {
			return m, true
		}
	}
	return nil, false
}

// impliedChildren returns the names of f's children that lead to mount points.
func (v *VFS) impliedChildren(f *VirtualFile) []string {
	prefix := f.path
	if prefix != "/" {
		prefix += "/"
	}
	var names []string
	v.mounts.Range(func(p string, _ *mount) bool {
		if p == f.path || !strings.HasPrefix(p, prefix) {
			return true
		}
		name, _, _ := strings.Cut(p[len(prefix):], "/")
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
		return true
	})
	return names
}

type mountHandle struct {
	vfs    *VFS
	m      *mount
	closed atomic.Bool
}

func (h *mountHandle) Close() error {
	logger := util.GetLogger("VFS.Unmount")
	path := h.m.point.PathName()
	if h.closed.Swap(true) {
		return fmt.Errorf("unmount %s: %w", path, ErrClosed)
	}
	h.vfs.mounts.Delete(path)
	logger.Debug().Str("path", path).Msg("Unmounted filesystem")
	if err := h.vfs.refs.release(h.m.fs); err != nil {
		return fmt.Errorf("close filesystem mounted at %s: %w", path, err)
	}
	return nil
}
