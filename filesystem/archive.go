package filesystem

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brettbedarf/assemblyfs"
	"github.com/brettbedarf/assemblyfs/archive"
	"github.com/brettbedarf/assemblyfs/internal/util"
	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/singleflight"
)

// ArchiveOptions configures an ArchiveFileSystem.
type ArchiveOptions struct {
	Factory       archive.Factory
	Temp          *TempProvider // where entries are materialized; File fails without one
	HandleOptions []archive.HandleOption
}

// ArchiveFileSystem is a read-only backend exposing the content of an archive
// file. The archive root maps to the mount point.
type ArchiveFileSystem struct {
	path   string
	handle *archive.Handle
	temp   *TempProvider

	mu         sync.Mutex // protects the fields below
	idx        entryIndex
	idxGen     uint64
	extractDir string

	extracted *xsync.Map[string, extraction] // entry name -> materialized copy
	group     singleflight.Group
	closed    atomic.Bool
}

type extraction struct {
	path  string
	mtime time.Time // archive mtime the copy was made from
}

// NewArchiveFileSystem creates a backend for the archive at path. The archive
// is not opened until first accessed.
func NewArchiveFileSystem(path string, opts ArchiveOptions) (*ArchiveFileSystem, error) {
	if opts.Factory == nil {
		return nil, errors.New("archive filesystem: nil factory")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	a, err := opts.Factory.NewArchive(archive.Source{Path: abs})
	if err != nil {
		return nil, fmt.Errorf("archive %s: %w", abs, err)
	}
	return &ArchiveFileSystem{
		path:      abs,
		handle:    archive.NewHandle(a, opts.HandleOptions...),
		temp:      opts.Temp,
		extracted: xsync.NewMap[string, extraction](),
	}, nil
}

// Handle returns the archive handle backing this filesystem.
func (a *ArchiveFileSystem) Handle() *archive.Handle {
	return a.handle
}

// lookup returns the index entry for target. Must not be called while acquired.
func (a *ArchiveFileSystem) lookup(mountPoint, target *assemblyfs.VirtualFile) (*indexEntry, error) {
	parts, err := assemblyfs.RelativePath(mountPoint, target)
	if err != nil {
		return nil, err
	}
	name := strings.Join(parts, "/")
	var found *indexEntry
	err = a.handle.Use(func() error {
		idx, err := a.index()
		if err != nil {
			return err
		}
		e, ok := idx[name]
		if !ok {
			return fmt.Errorf("%s!/%s: %w", a.path, name, assemblyfs.ErrNotFound)
		}
		found = e
		return nil
	})
	return found, err
}

// index returns the entry index for the currently opened archive, rebuilding
// it whenever the handle reopened. Must be called while acquired.
func (a *ArchiveFileSystem) index() (entryIndex, error) {
	gen := a.handle.Generation()
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.idx != nil && a.idxGen == gen {
		return a.idx, nil
	}
	entries, err := a.handle.Entries()
	if err != nil {
		return nil, err
	}
	a.idx = buildIndex(entries)
	a.idxGen = gen
	return a.idx, nil
}

func (a *ArchiveFileSystem) File(mountPoint, target *assemblyfs.VirtualFile) (string, error) {
	if target.Equal(mountPoint) {
		return a.path, nil
	}
	e, err := a.lookup(mountPoint, target)
	if err != nil {
		return "", err
	}
	if e.dir {
		root, err := a.extractRoot()
		if err != nil {
			return "", err
		}
		dst := filepath.Join(root, filepath.FromSlash(e.entry.Name))
		if err := os.MkdirAll(dst, 0o755); err != nil {
			return "", fmt.Errorf("materialize %s: %w", target.PathName(), err)
		}
		return dst, nil
	}
	return a.extract(e.entry)
}

// extract copies an entry into the temp dir once per archive version.
func (a *ArchiveFileSystem) extract(e archive.Entry) (string, error) {
	logger := util.GetLogger("ArchiveFS.Extract")
	mtime := a.handle.LastModified()
	if c, ok := a.extracted.Load(e.Name); ok && c.mtime.Equal(mtime) {
		return c.path, nil
	}

	v, err, _ := a.group.Do(e.Name, func() (any, error) {
		root, err := a.extractRoot()
		if err != nil {
			return "", err
		}
		dst := filepath.Join(root, filepath.FromSlash(e.Name))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return "", err
		}
		err = a.handle.Use(func() error {
			rc, err := a.handle.OpenEntry(e)
			if err != nil {
				return err
			}
			defer rc.Close()
			return writeFileAtomic(dst, rc)
		})
		if err != nil {
			return "", fmt.Errorf("extract %s!/%s: %w", a.path, e.Name, err)
		}
		a.extracted.Store(e.Name, extraction{path: dst, mtime: mtime})
		logger.Debug().Str("archive", a.path).Str("entry", e.Name).Str("dst", dst).Msg("Extracted entry")
		return dst, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (a *ArchiveFileSystem) extractRoot() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.extractDir != "" {
		return a.extractDir, nil
	}
	if a.temp == nil {
		return "", fmt.Errorf("materialize %s: no temp dir configured", a.path)
	}
	dir, err := a.temp.NewDir(filepath.Base(a.path))
	if err != nil {
		return "", err
	}
	a.extractDir = dir
	return dir, nil
}

// writeFileAtomic writes r to dst through a temporary sibling file.
func writeFileAtomic(dst string, r io.Reader) error {
	f, err := os.CreateTemp(filepath.Dir(dst), ".extract-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()           // nolint:errcheck
		os.Remove(f.Name()) // nolint:errcheck
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name()) // nolint:errcheck
		return err
	}
	return os.Rename(f.Name(), dst)
}

func (a *ArchiveFileSystem) Open(mountPoint, target *assemblyfs.VirtualFile) (io.ReadCloser, error) {
	var rc io.ReadCloser
	if target.Equal(mountPoint) {
		err := a.handle.Use(func() error {
			var err error
			rc, err = a.handle.Raw()
			return err
		})
		return rc, err
	}
	e, err := a.lookup(mountPoint, target)
	if err != nil {
		return nil, err
	}
	if e.dir {
		return nil, fmt.Errorf("open %s: is a directory", target.PathName())
	}
	err = a.handle.Use(func() error {
		var err error
		rc, err = a.handle.OpenEntry(e.entry)
		return err
	})
	return rc, err
}

func (a *ArchiveFileSystem) ReadOnly() bool {
	return true
}

func (a *ArchiveFileSystem) Delete(mountPoint, target *assemblyfs.VirtualFile) bool {
	return false
}

func (a *ArchiveFileSystem) Size(mountPoint, target *assemblyfs.VirtualFile) (int64, error) {
	if target.Equal(mountPoint) {
		return a.handle.Size(), nil
	}
	e, err := a.lookup(mountPoint, target)
	if err != nil {
		return 0, err
	}
	if e.dir {
		return 0, nil
	}
	return e.entry.Size, nil
}

// LastModified returns the entry time, or the archive's for the root and
// directories without one.
func (a *ArchiveFileSystem) LastModified(mountPoint, target *assemblyfs.VirtualFile) (time.Time, error) {
	if target.Equal(mountPoint) {
		return a.handle.LastModified(), nil
	}
	e, err := a.lookup(mountPoint, target)
	if err != nil {
		return time.Time{}, err
	}
	if e.entry.Modified.IsZero() {
		return a.handle.LastModified(), nil
	}
	return e.entry.Modified, nil
}

// Exists reports whether target is in the archive. The root exists only when the
// archive can be read.
func (a *ArchiveFileSystem) Exists(mountPoint, target *assemblyfs.VirtualFile) bool {
	_, err := a.lookup(mountPoint, target)
	return err == nil
}

func (a *ArchiveFileSystem) IsFile(mountPoint, target *assemblyfs.VirtualFile) bool {
	if target.Equal(mountPoint) {
		return false
	}
	e, err := a.lookup(mountPoint, target)
	return err == nil && !e.dir
}

func (a *ArchiveFileSystem) IsDirectory(mountPoint, target *assemblyfs.VirtualFile) bool {
	e, err := a.lookup(mountPoint, target)
	return err == nil && e.dir
}

func (a *ArchiveFileSystem) Entries(mountPoint, target *assemblyfs.VirtualFile) []string {
	logger := util.GetLogger("ArchiveFS.Entries")
	e, err := a.lookup(mountPoint, target)
	if err != nil {
		logger.Trace().Err(err).Str("path", target.PathName()).Msg("Cannot list entries")
		return []string{}
	}
	if len(e.children) == 0 {
		return []string{}
	}
	return slices.Clone(e.children)
}

func (a *ArchiveFileSystem) CodeSigners(mountPoint, target *assemblyfs.VirtualFile) []assemblyfs.CodeSigner {
	return nil
}

func (a *ArchiveFileSystem) MountSource() string {
	return a.path
}

// Close retires the archive handle and removes every materialized entry. When
// entry streams are still open the archive itself is closed by the last of them.
func (a *ArchiveFileSystem) Close() error {
	if a.closed.Swap(true) {
		return fmt.Errorf("close %s: %w", a.path, assemblyfs.ErrClosed)
	}
	errs := []error{a.handle.Retire()}
	a.mu.Lock()
	if a.extractDir != "" {
		errs = append(errs, os.RemoveAll(a.extractDir))
	}
	a.mu.Unlock()
	return errors.Join(errs...)
}

var _ assemblyfs.FileSystem = (*ArchiveFileSystem)(nil)

// indexEntry is a file or directory inside an archive. Directories that only
// appear as parents of other entries are synthesized.
type indexEntry struct {
	entry    archive.Entry
	dir      bool
	children []string // sorted child names for directories
}

// entryIndex maps entry names to entries; the archive root is "".
type entryIndex map[string]*indexEntry

func buildIndex(entries []archive.Entry) entryIndex {
	idx := entryIndex{"": {entry: archive.Entry{Dir: true}, dir: true}}
	for _, e := range entries {
		idx.add(e)
	}
	for _, e := range idx {
		slices.Sort(e.children)
	}
	return idx
}

func (idx entryIndex) add(e archive.Entry) {
	if cur, ok := idx[e.Name]; ok {
		// explicit entry for a directory synthesized earlier
		cur.entry = e
		cur.dir = cur.dir || e.Dir
		return
	}
	idx[e.Name] = &indexEntry{entry: e, dir: e.Dir}
	for name := e.Name; ; {
		parent, base := splitName(name)
		p, ok := idx[parent]
		if !ok {
			p = &indexEntry{entry: archive.Entry{Name: parent, Dir: true}}
			idx[parent] = p
		}
		p.dir = true
		p.children = append(p.children, base)
		if ok {
			return
		}
		name = parent
	}
}

func splitName(name string) (parent, base string) {
	i := strings.LastIndexByte(name, '/')
	if i < 0 {
		return "", name
	}
	return name[:i], name[i+1:]
}
