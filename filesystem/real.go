package filesystem

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"slices"
	"time"

	"github.com/brettbedarf/assemblyfs"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// RealFileSystem exposes a real directory, or a single real file, as a mounted backend.
type RealFileSystem struct {
	root string
	fs   billy.Filesystem
}

// NewRealFileSystem creates a backend rooted at the real path root.
func NewRealFileSystem(root string) (*RealFileSystem, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}
	return &RealFileSystem{root: abs, fs: osfs.New(abs)}, nil
}

// rel returns the OS path of target relative to the backend root.
func (r *RealFileSystem) rel(mountPoint, target *assemblyfs.VirtualFile) (string, error) {
	parts, err := assemblyfs.RelativePath(mountPoint, target)
	if err != nil {
		return "", err
	}
	return filepath.Join(parts...), nil
}

func (r *RealFileSystem) stat(mountPoint, target *assemblyfs.VirtualFile) (fs.FileInfo, error) {
	rel, err := r.rel(mountPoint, target)
	if err != nil {
		return nil, err
	}
	fi, err := r.fs.Stat(rel)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w: %w", target.PathName(), assemblyfs.ErrNotFound, err)
	}
	return fi, err
}

func (r *RealFileSystem) File(mountPoint, target *assemblyfs.VirtualFile) (string, error) {
	if target.Equal(mountPoint) {
		return r.root, nil
	}
	rel, err := r.rel(mountPoint, target)
	if err != nil {
		return "", err
	}
	return filepath.Join(r.root, rel), nil
}

func (r *RealFileSystem) Open(mountPoint, target *assemblyfs.VirtualFile) (io.ReadCloser, error) {
	rel, err := r.rel(mountPoint, target)
	if err != nil {
		return nil, err
	}
	f, err := r.fs.Open(rel)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("open %s: %w: %w", target.PathName(), assemblyfs.ErrNotFound, err)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", target.PathName(), err)
	}
	return f, nil
}

func (r *RealFileSystem) ReadOnly() bool {
	return false
}

func (r *RealFileSystem) Delete(mountPoint, target *assemblyfs.VirtualFile) bool {
	rel, err := r.rel(mountPoint, target)
	if err != nil {
		return false
	}
	return r.fs.Remove(rel) == nil
}

// Size returns the file length; directories report 0.
func (r *RealFileSystem) Size(mountPoint, target *assemblyfs.VirtualFile) (int64, error) {
	fi, err := r.stat(mountPoint, target)
	if err != nil {
		return 0, err
	}
	if fi.IsDir() {
		return 0, nil
	}
	return fi.Size(), nil
}

func (r *RealFileSystem) LastModified(mountPoint, target *assemblyfs.VirtualFile) (time.Time, error) {
	fi, err := r.stat(mountPoint, target)
	if err != nil {
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}

func (r *RealFileSystem) Exists(mountPoint, target *assemblyfs.VirtualFile) bool {
	_, err := r.stat(mountPoint, target)
	return err == nil
}

func (r *RealFileSystem) IsFile(mountPoint, target *assemblyfs.VirtualFile) bool {
	fi, err := r.stat(mountPoint, target)
	return err == nil && fi.Mode().IsRegular()
}

func (r *RealFileSystem) IsDirectory(mountPoint, target *assemblyfs.VirtualFile) bool {
	fi, err := r.stat(mountPoint, target)
	return err == nil && fi.IsDir()
}

func (r *RealFileSystem) Entries(mountPoint, target *assemblyfs.VirtualFile) []string {
	rel, err := r.rel(mountPoint, target)
	if err != nil {
		return []string{}
	}
	infos, err := r.fs.ReadDir(rel)
	if err != nil {
		return []string{}
	}
	names := make([]string, 0, len(infos))
	for _, fi := range infos {
		names = append(names, fi.Name())
	}
	slices.Sort(names)
	return names
}

func (r *RealFileSystem) CodeSigners(mountPoint, target *assemblyfs.VirtualFile) []assemblyfs.CodeSigner {
	return nil
}

func (r *RealFileSystem) MountSource() string {
	return r.root
}

func (r *RealFileSystem) Close() error {
	return nil
}

var _ assemblyfs.FileSystem = (*RealFileSystem)(nil)
