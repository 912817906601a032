package server

import (
	"context"
	"io"
	"io/fs"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/brettbedarf/assemblyfs"
	"github.com/brettbedarf/assemblyfs/internal/util"
	"golang.org/x/net/webdav"
)

// WebDAV serves a virtual directory over read-only WebDAV.
type WebDAV struct {
	handler *webdav.Handler
}

// NewWebDAV creates a handler exporting root. prefix is stripped from request
// paths, as in [webdav.Handler].
func NewWebDAV(root *assemblyfs.VirtualFile, prefix string) *WebDAV {
	logger := util.GetLogger("WebDAV")
	return &WebDAV{handler: &webdav.Handler{
		Prefix:     prefix,
		FileSystem: &davFS{root: root},
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			logger.Debug().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request")
		},
	}}
}

func (w *WebDAV) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	w.handler.ServeHTTP(rw, r)
}

// davFS adapts a virtual directory to webdav.FileSystem. Every mutation is refused.
type davFS struct {
	root *assemblyfs.VirtualFile
}

var _ webdav.FileSystem = (*davFS)(nil)

func (d *davFS) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	return os.ErrPermission
}

func (d *davFS) RemoveAll(ctx context.Context, name string) error {
	return os.ErrPermission
}

func (d *davFS) Rename(ctx context.Context, oldName, newName string) error {
	return os.ErrPermission
}

func (d *davFS) lookup(name string) (*assemblyfs.VirtualFile, error) {
	f := d.root.Child(name)
	if !f.Exists() {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return f, nil
}

func (d *davFS) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	f, err := d.lookup(name)
	if err != nil {
		return nil, err
	}
	return statOf(f), nil
}

func (d *davFS) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) != 0 {
		return nil, os.ErrPermission
	}
	f, err := d.lookup(name)
	if err != nil {
		return nil, err
	}
	if f.IsDirectory() {
		return &davDir{file: f}, nil
	}
	path, err := f.PhysicalFile()
	if err != nil {
		return nil, err
	}
	osf, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &davFile{File: osf, info: statOf(f)}, nil
}

// davFile reads from a materialized copy of a virtual file.
type davFile struct {
	*os.File
	info os.FileInfo
}

func (f *davFile) Write(p []byte) (int, error) {
	return 0, os.ErrPermission
}

func (f *davFile) Readdir(count int) ([]fs.FileInfo, error) {
	return nil, os.ErrInvalid
}

// Stat reports the virtual name and timestamps rather than the temp copy's.
func (f *davFile) Stat() (fs.FileInfo, error) {
	return f.info, nil
}

// davDir lists a virtual directory.
type davDir struct {
	file    *assemblyfs.VirtualFile
	entries []fs.FileInfo
	loaded  bool
	pos     int
}

func (d *davDir) Close() error {
	return nil
}

func (d *davDir) Read(p []byte) (int, error) {
	return 0, os.ErrInvalid
}

func (d *davDir) Seek(offset int64, whence int) (int64, error) {
	return 0, os.ErrInvalid
}

func (d *davDir) Write(p []byte) (int, error) {
	return 0, os.ErrPermission
}

func (d *davDir) Stat() (fs.FileInfo, error) {
	return statOf(d.file), nil
}

func (d *davDir) Readdir(count int) ([]fs.FileInfo, error) {
	if !d.loaded {
		for _, c := range d.file.Children() {
			d.entries = append(d.entries, statOf(c))
		}
		d.loaded = true
	}
	rest := d.entries[d.pos:]
	if count <= 0 {
		d.pos = len(d.entries)
		return slices.Clone(rest), nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	n := min(count, len(rest))
	d.pos += n
	return slices.Clone(rest[:n]), nil
}

// fileInfo is a snapshot of a virtual file's attributes.
type fileInfo struct {
	name    string
	size    int64
	dir     bool
	modTime time.Time
}

func statOf(f *assemblyfs.VirtualFile) *fileInfo {
	fi := &fileInfo{name: f.Name(), dir: f.IsDirectory()}
	if fi.name == "" {
		fi.name = "/"
	}
	if !fi.dir {
		fi.size, _ = f.Size()
	}
	fi.modTime, _ = f.LastModified()
	return fi
}

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return fi.size }
func (fi *fileInfo) ModTime() time.Time { return fi.modTime }
func (fi *fileInfo) IsDir() bool        { return fi.dir }
func (fi *fileInfo) Sys() any           { return nil }

func (fi *fileInfo) Mode() fs.FileMode {
	if fi.dir {
		return fs.ModeDir | 0o555
	}
	return 0o444
}
