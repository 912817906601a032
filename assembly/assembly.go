// Package assembly composes already resolved virtual files, real directories
// and archives into a single tree addressed by case-insensitive virtual paths.
package assembly

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brettbedarf/assemblyfs"
	"github.com/brettbedarf/assemblyfs/archive"
	"github.com/brettbedarf/assemblyfs/config"
	"github.com/brettbedarf/assemblyfs/filesystem"
	"github.com/brettbedarf/assemblyfs/internal/util"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
)

// MountsRoot is the VFS directory below which every assembly mounts its sources.
const MountsRoot = "/assembly-mounts"

// IDGenerator returns the identifier namespacing an assembly's mount points.
type IDGenerator func() string

// Options configures a new Assembly. The zero value is usable.
type Options struct {
	VFS         *assemblyfs.VFS   // Where sources are mounted; a private VFS when nil
	Registry    *archive.Registry // Archive factories; the built-in ones when nil
	Factory     string            // Registered factory name (Default "auto")
	IDGenerator IDGenerator       // Default uuid.NewString

	TempDir    string // Base of the lazily created temp dir; system temp dir when empty
	TempPrefix string

	Reaper        *archive.Reaper // Tracks opened archives for idle eviction when set
	Metrics       *archive.Metrics
	Clock         archive.Clock
	CheckInterval time.Duration // Minimum time between archive staleness checks
}

// OptionsFromConfig maps the runtime configuration onto assembly options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Factory:       cfg.ArchiveFactory,
		TempDir:       cfg.TempDir,
		TempPrefix:    cfg.TempPrefix,
		CheckInterval: cfg.ModifiedCheckInterval,
	}
}

// Assembly is a tree of virtual files assembled from arbitrary sources. Sources
// added through AddDir, AddFile and AddArchive are mounted in the assembly's VFS
// and released by Close.
type Assembly struct {
	id         string
	root       *Node
	vfs        *assemblyfs.VFS
	factory    archive.Factory
	handleOpts []archive.HandleOption
	reaper     *archive.Reaper

	tempDir    string
	tempPrefix string
	tempMu     sync.Mutex // protects temp
	temp       *filesystem.TempProvider

	mounts *xsync.Map[uint64, io.Closer] // mount order -> handle
	seq    atomic.Uint64
	closed atomic.Bool
}

// New creates an empty assembly.
func New(opts Options) (*Assembly, error) {
	logger := util.GetLogger("Assembly.New")

	reg := opts.Registry
	if reg == nil {
		reg = archive.NewRegistry()
		archive.RegisterBuiltins(reg)
	}
	name := cmp.Or(opts.Factory, config.DefaultArchiveFactory)
	factory, err := reg.Get(name)
	if err != nil {
		return nil, fmt.Errorf("assembly: %w", err)
	}
	v := opts.VFS
	if v == nil {
		v = assemblyfs.New()
	}
	gen := opts.IDGenerator
	if gen == nil {
		gen = uuid.NewString
	}

	var handleOpts []archive.HandleOption
	if opts.Clock != nil {
		handleOpts = append(handleOpts, archive.WithClock(opts.Clock))
	}
	if opts.CheckInterval > 0 {
		handleOpts = append(handleOpts, archive.WithCheckInterval(opts.CheckInterval))
	}
	if opts.Metrics != nil {
		handleOpts = append(handleOpts, archive.WithMetrics(opts.Metrics))
	}

	a := &Assembly{
		id:         gen(),
		root:       newNode(""),
		vfs:        v,
		factory:    factory,
		handleOpts: handleOpts,
		reaper:     opts.Reaper,
		tempDir:    opts.TempDir,
		tempPrefix: cmp.Or(opts.TempPrefix, config.DefaultTempPrefix),
		mounts:     xsync.NewMap[uint64, io.Closer](),
	}
	logger.Debug().Str("id", a.id).Str("factory", name).Msg("Created assembly")
	return a, nil
}

// ID returns the identifier of the assembly.
func (a *Assembly) ID() string {
	return a.id
}

// VFS returns the namespace the assembly mounts its sources in.
func (a *Assembly) VFS() *assemblyfs.VFS {
	return a.vfs
}

// Root returns the root node of the assembly tree.
func (a *Assembly) Root() *Node {
	return a.root
}

// Add places target at its own name below the root.
func (a *Assembly) Add(target *assemblyfs.VirtualFile) {
	a.AddAt(target.Name(), target)
}

// AddAt places target at path, creating intermediate nodes as needed.
// Adding to the same path again replaces the target only.
func (a *Assembly) AddAt(path string, target *assemblyfs.VirtualFile) {
	logger := util.GetLogger("Assembly.AddAt")
	a.root.FindOrBuild(NewPath(path)).SetTarget(target)
	logger.Trace().Str("path", path).Str("target", target.PathName()).Msg("Added file")
}

// AddDir mounts the real directory dir and places it at path.
func (a *Assembly) AddDir(path, dir string) (*assemblyfs.VirtualFile, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("add %s: %w", dir, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("add %s: not a directory", dir)
	}
	return a.addReal(path, dir)
}

// AddFile mounts the real file at file and places it at path.
func (a *Assembly) AddFile(path, file string) (*assemblyfs.VirtualFile, error) {
	fi, err := os.Stat(file)
	if err != nil {
		return nil, fmt.Errorf("add %s: %w", file, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("add %s: is a directory", file)
	}
	return a.addReal(path, file)
}

func (a *Assembly) addReal(path, src string) (*assemblyfs.VirtualFile, error) {
	if a.closed.Load() {
		return nil, fmt.Errorf("add %s: %w", src, assemblyfs.ErrClosed)
	}
	mp := a.mountPoint(path)
	h, err := filesystem.MountReal(a.vfs, src, mp)
	if err != nil {
		return nil, fmt.Errorf("add %s: %w", src, err)
	}
	a.record(h)
	a.AddAt(path, mp)
	return mp, nil
}

// AddArchive mounts the archive at file and places its content at path.
// The archive is opened on first access.
func (a *Assembly) AddArchive(path, file string) (*assemblyfs.VirtualFile, error) {
	if a.closed.Load() {
		return nil, fmt.Errorf("add %s: %w", file, assemblyfs.ErrClosed)
	}
	temp, err := a.tempProvider()
	if err != nil {
		return nil, err
	}
	mp := a.mountPoint(path)
	h, afs, err := filesystem.MountArchive(a.vfs, file, mp, filesystem.ArchiveOptions{
		Factory:       a.factory,
		Temp:          temp,
		HandleOptions: a.handleOpts,
	})
	if err != nil {
		return nil, fmt.Errorf("add %s: %w", file, err)
	}
	if a.reaper != nil {
		handle := afs.Handle()
		a.reaper.Track(handle)
		h = untrackCloser{Closer: h, reaper: a.reaper, handle: handle}
	}
	a.record(h)
	a.AddAt(path, mp)
	return mp, nil
}

// mountPoint returns the private VFS location for a source added at path.
func (a *Assembly) mountPoint(path string) *assemblyfs.VirtualFile {
	return a.vfs.Child(MountsRoot).Child(a.id).Child(NewPath(path).String())
}

func (a *Assembly) record(h io.Closer) {
	a.mounts.Store(a.seq.Add(1), h)
}

func (a *Assembly) tempProvider() (*filesystem.TempProvider, error) {
	a.tempMu.Lock()
	defer a.tempMu.Unlock()
	if a.temp == nil {
		t, err := filesystem.NewTempProvider(a.tempDir, a.tempPrefix)
		if err != nil {
			return nil, err
		}
		a.temp = t
	}
	return a.temp, nil
}

// Resolve returns the file at path, see [Node.Resolve].
func (a *Assembly) Resolve(path string) (*assemblyfs.VirtualFile, bool) {
	logger := util.GetLogger("Assembly.Resolve")
	f, ok := a.root.Resolve(NewPath(path))
	logger.Trace().Str("path", path).Bool("found", ok).Msg("Resolved")
	return f, ok
}

// File resolves target relative to mountPoint through the assembly.
func (a *Assembly) File(mountPoint, target *assemblyfs.VirtualFile) (*assemblyfs.VirtualFile, error) {
	parts, err := assemblyfs.RelativePath(mountPoint, target)
	if err != nil {
		return nil, err
	}
	f, ok := a.root.Resolve(PathOf(parts))
	if !ok {
		return nil, fmt.Errorf("%s: %w", target.PathName(), assemblyfs.ErrNotFound)
	}
	return f, nil
}

// MountInto exposes the assembly at mountPoint of v. The caller owns the
// returned handle; closing the assembly does not unmount it.
func (a *Assembly) MountInto(v *assemblyfs.VFS, mountPoint *assemblyfs.VirtualFile) (io.Closer, error) {
	return v.Mount(NewFileSystem(a), mountPoint)
}

// Close unmounts every source in reverse mount order and removes the temp dir.
// All of them are attempted; failures are joined.
func (a *Assembly) Close() error {
	logger := util.GetLogger("Assembly.Close")
	if a.closed.Swap(true) {
		return fmt.Errorf("close assembly %s: %w", a.id, assemblyfs.ErrClosed)
	}

	type entry struct {
		seq uint64
		h   io.Closer
	}
	var handles []entry
	a.mounts.Range(func(seq uint64, h io.Closer) bool {
		handles = append(handles, entry{seq, h})
		return true
	})
	slices.SortFunc(handles, func(x, y entry) int { return cmp.Compare(y.seq, x.seq) })

	var errs []error
	for _, e := range handles {
		if err := e.h.Close(); err != nil {
			errs = append(errs, err)
		}
		a.mounts.Delete(e.seq)
	}

	a.tempMu.Lock()
	if a.temp != nil {
		errs = append(errs, a.temp.Close())
	}
	a.tempMu.Unlock()

	err := errors.Join(errs...)
	logger.Debug().Str("id", a.id).Int("mounts", len(handles)).Err(err).Msg("Closed assembly")
	return err
}

// untrackCloser stops the reaper from considering an archive once it is unmounted.
type untrackCloser struct {
	io.Closer
	reaper *archive.Reaper
	handle *archive.Handle
}

func (c untrackCloser) Close() error {
	c.reaper.Untrack(c.handle)
	return c.Closer.Close()
}
