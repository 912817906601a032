package server

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"syscall"
	"time"

	"github.com/brettbedarf/assemblyfs"
	"github.com/brettbedarf/assemblyfs/config"
	"github.com/brettbedarf/assemblyfs/internal/util"
	gofs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// FUSE exports a virtual directory as a read-only FUSE filesystem.
type FUSE struct {
	root   *assemblyfs.VirtualFile
	cfg    *config.Config
	server *fuse.Server
}

// NewFUSE creates an export of root configured by cfg.
func NewFUSE(root *assemblyfs.VirtualFile, cfg *config.Config) *FUSE {
	return &FUSE{root: root, cfg: cfg}
}

// Serve mounts the export at mountPoint and returns once the mount is ready.
func (f *FUSE) Serve(mountPoint string) error {
	logger := util.GetLogger("FUSE.Serve")
	opts := f.cfg.MountOptions
	attr := seconds(f.cfg.AttrTimeout)
	entry := seconds(f.cfg.EntryTimeout)
	srv, err := gofs.Mount(mountPoint, &fileNode{file: f.root}, &gofs.Options{
		AttrTimeout:  &attr,
		EntryTimeout: &entry,
		MountOptions: fuse.MountOptions{
			Name:   opts.Name,
			FsName: opts.FsName,
			Debug:  opts.Debug || f.cfg.LogLvl == util.TraceLevel,
			Logger: util.NewLogLogger("FUSE", util.TraceLevel),
		},
	})
	if err != nil {
		return err
	}
	f.server = srv
	logger.Info().Str("mountpoint", mountPoint).Str("root", f.root.PathName()).Msg("Mounted")
	return nil
}

// Wait blocks until the filesystem is unmounted.
func (f *FUSE) Wait() {
	if f.server != nil {
		f.server.Wait()
	}
}

// Unmount cleanly unmounts the filesystem.
func (f *FUSE) Unmount() error {
	if f.server == nil {
		return nil
	}
	return f.server.Unmount()
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// fileNode serves one virtual file or directory.
type fileNode struct {
	gofs.Inode
	file *assemblyfs.VirtualFile
}

var _ gofs.InodeEmbedder = (*fileNode)(nil)
var _ gofs.NodeLookuper = (*fileNode)(nil)
var _ gofs.NodeReaddirer = (*fileNode)(nil)
var _ gofs.NodeGetattrer = (*fileNode)(nil)
var _ gofs.NodeOpener = (*fileNode)(nil)

func (n *fileNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofs.Inode, syscall.Errno) {
	child, ok := n.file.ExistingChild(name)
	if !ok {
		return nil, syscall.ENOENT
	}
	fillAttr(child, &out.Attr)
	return n.NewInode(ctx, &fileNode{file: child}, gofs.StableAttr{Mode: out.Mode & syscall.S_IFMT}), 0
}

func (n *fileNode) Readdir(ctx context.Context) (gofs.DirStream, syscall.Errno) {
	if !n.file.IsDirectory() {
		return nil, syscall.ENOTDIR
	}
	children := n.file.Children()
	entries := make([]fuse.DirEntry, 0, len(children))
	for _, c := range children {
		mode := uint32(syscall.S_IFREG)
		if c.IsDirectory() {
			mode = syscall.S_IFDIR
		}
		entries = append(entries, fuse.DirEntry{Name: c.Name(), Mode: mode})
	}
	return gofs.NewListDirStream(entries), 0
}

func (n *fileNode) Getattr(ctx context.Context, fh gofs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if !n.file.Exists() {
		return syscall.ENOENT
	}
	fillAttr(n.file, &out.Attr)
	return 0
}

// Open materializes the file and serves reads from the real copy.
func (n *fileNode) Open(ctx context.Context, flags uint32) (gofs.FileHandle, uint32, syscall.Errno) {
	logger := util.GetLogger("FUSE.Open")
	if flags&(syscall.O_WRONLY|syscall.O_RDWR|syscall.O_APPEND|syscall.O_TRUNC) != 0 {
		return nil, 0, syscall.EROFS
	}
	if n.file.IsDirectory() {
		return nil, 0, syscall.EISDIR
	}
	path, err := n.file.PhysicalFile()
	if err != nil {
		logger.Debug().Err(err).Str("path", n.file.PathName()).Msg("Cannot materialize")
		return nil, 0, toErrno(err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, toErrno(err)
	}
	return &fileHandle{f: f}, fuse.FOPEN_KEEP_CACHE, 0
}

// fillAttr describes f as a read-only file or directory.
func fillAttr(f *assemblyfs.VirtualFile, out *fuse.Attr) {
	if f.IsDirectory() {
		out.Mode = syscall.S_IFDIR | 0o555
	} else {
		out.Mode = syscall.S_IFREG | 0o444
		if size, err := f.Size(); err == nil {
			out.Size = uint64(size)
		}
	}
	if mtime, err := f.LastModified(); err == nil && !mtime.IsZero() {
		out.SetTimes(nil, &mtime, nil)
	}
}

func toErrno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, assemblyfs.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return syscall.ENOENT
	case errors.Is(err, assemblyfs.ErrReadOnly):
		return syscall.EROFS
	case errors.Is(err, fs.ErrPermission):
		return syscall.EACCES
	default:
		return syscall.EIO
	}
}

// fileHandle reads from a materialized copy of a virtual file.
type fileHandle struct {
	f *os.File
}

var _ gofs.FileReader = (*fileHandle)(nil)
var _ gofs.FileReleaser = (*fileHandle)(nil)

func (h *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := h.f.ReadAt(dest, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, toErrno(err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *fileHandle) Release(ctx context.Context) syscall.Errno {
	return toErrno(h.f.Close())
}
