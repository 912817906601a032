package assemblyfs

import "errors"

var (
	// ErrNotFound is returned when a virtual path has no backing entry.
	ErrNotFound = errors.New("file not found")
	// ErrNotDescendant is returned when a target is not below the mount point it was paired with.
	ErrNotDescendant = errors.New("target is not a descendant of mount point")
	// ErrClosed is returned by operations on a closed resource.
	ErrClosed = errors.New("already closed")
	// ErrInUse is returned when closing a resource that still has active readers.
	ErrInUse = errors.New("resource in use")
	// ErrNotAcquired is returned when reading from an archive handle that was not acquired.
	ErrNotAcquired = errors.New("handle not acquired")
	ErrAlreadyMounted = errors.New("mount point already in use")
	ErrReadOnly       = errors.New("read-only filesystem")
	ErrNotMounted     = errors.New("no filesystem mounted")
)
