package assemblyfs

import (
	"crypto/x509"
	"io"
	"time"
)

// FileSystem defines the operations a backend provides for the files mounted under it.
// Every operation receives the mount point the backend was mounted at and the
// target file, which is always the mount point itself or one of its descendants.
type FileSystem interface {
	// Returns a real OS path holding the target's content, materializing it if needed
	File(mountPoint, target *VirtualFile) (string, error)

	// Opens the target for reading
	Open(mountPoint, target *VirtualFile) (io.ReadCloser, error)

	ReadOnly() bool

	// Deletes the target. Returns false on any failure
	Delete(mountPoint, target *VirtualFile) bool

	// Returns the size of the target in bytes
	Size(mountPoint, target *VirtualFile) (int64, error)

	LastModified(mountPoint, target *VirtualFile) (time.Time, error)

	Exists(mountPoint, target *VirtualFile) bool
	IsFile(mountPoint, target *VirtualFile) bool
	IsDirectory(mountPoint, target *VirtualFile) bool

	// Returns the names of the target's direct children. Never nil; empty when the
	// target is not a directory or cannot be listed
	Entries(mountPoint, target *VirtualFile) []string

	// Returns the signers of the target, or nil when unsigned or unsupported
	CodeSigners(mountPoint, target *VirtualFile) []CodeSigner

	// Returns a description of the real input behind this backend
	MountSource() string

	// Releases the backing resource. Called once, after the last mount is gone
	io.Closer
}

// CodeSigner identifies one signer of a file along with its certificate chain.
type CodeSigner struct {
	Name         string
	Certificates []*x509.Certificate
}
