package filesystem

import (
	"io"

	"github.com/brettbedarf/assemblyfs"
)

// MountReal mounts the real directory or file at root onto mountPoint.
func MountReal(v *assemblyfs.VFS, root string, mountPoint *assemblyfs.VirtualFile) (io.Closer, error) {
	fs, err := NewRealFileSystem(root)
	if err != nil {
		return nil, err
	}
	return v.Mount(fs, mountPoint)
}

// MountArchive mounts the archive at path onto mountPoint. The archive
// filesystem is closed if mounting fails.
func MountArchive(v *assemblyfs.VFS, path string, mountPoint *assemblyfs.VirtualFile, opts ArchiveOptions) (io.Closer, *ArchiveFileSystem, error) {
	fs, err := NewArchiveFileSystem(path, opts)
	if err != nil {
		return nil, nil, err
	}
	h, err := v.Mount(fs, mountPoint)
	if err != nil {
		fs.Close() // nolint:errcheck
		return nil, nil, err
	}
	return h, fs, nil
}
