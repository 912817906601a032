// Package archive manages shared, reference counted access to compressed archives.
//
// An [Archive] is the format specific reader for one archive source. A [Handle]
// owns an Archive on behalf of every reader using it: readers [Handle.Acquire]
// before reading and [Handle.Release] after, the handle opens the archive lazily,
// reopens it after the source changes on disk and refuses to close while in use.
package archive

import (
	"io"
	"path"
	"slices"
	"strings"
	"time"
)

// Archive is the format specific view of an archive source.
//
// Open and Close may alternate any number of times; Entries, OpenEntry are only
// valid in between. Name, Size, Exists, LastModified and Raw work on the source
// itself and never require the archive to be open.
type Archive interface {
	// Opens the underlying resource and indexes its entries
	Open() error

	Name() string
	// Size of the archive source in bytes
	Size() int64
	Exists() bool
	LastModified() time.Time

	Entries() ([]Entry, error)
	OpenEntry(e Entry) (io.ReadCloser, error)

	// Returns the raw bytes of the whole archive
	Raw() (io.ReadCloser, error)

	// Releases the resource opened by Open
	Close() error
}

// Entry describes a single member of an archive.
type Entry struct {
	Name     string // slash separated, no leading or trailing slash
	Size     int64  // uncompressed size
	Modified time.Time
	Dir      bool

	index int // position in the owning archive, used to skip a lookup on open
}

// cleanName normalizes an entry name as stored in an archive to the form used by [Entry].
// Returns "" for names referring to the archive root.
func cleanName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}

// find returns the position of e in entries, preferring its recorded index.
func find(entries []Entry, e Entry) int {
	if e.index >= 0 && e.index < len(entries) && entries[e.index].Name == e.Name {
		return e.index
	}
	return slices.IndexFunc(entries, func(o Entry) bool { return o.Name == e.Name })
}
