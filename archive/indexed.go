package archive

import (
	"fmt"
	"io"
	"slices"

	"github.com/brettbedarf/assemblyfs"
)

// indexed holds the state of formats with a central directory that can open any
// entry directly: zip and 7z.
type indexed struct {
	source
	closer  io.Closer
	entries []Entry
	openers []func() (io.ReadCloser, error)
	opened  bool
}

// reset drops any previous index and records the closer for the newly opened source.
func (x *indexed) reset(closer io.Closer) {
	if x.closer != nil {
		x.closer.Close() // nolint:errcheck
	}
	x.closer = closer
	x.entries = nil
	x.openers = nil
	x.opened = true
}

func (x *indexed) add(e Entry, open func() (io.ReadCloser, error)) {
	e.Name = cleanName(e.Name)
	if e.Name == "" {
		return
	}
	e.index = len(x.entries)
	x.entries = append(x.entries, e)
	x.openers = append(x.openers, open)
}

func (x *indexed) Entries() ([]Entry, error) {
	if !x.opened {
		return nil, fmt.Errorf("%s: %w", x.Name(), assemblyfs.ErrNotAcquired)
	}
	return slices.Clone(x.entries), nil
}

func (x *indexed) OpenEntry(e Entry) (io.ReadCloser, error) {
	if !x.opened {
		return nil, fmt.Errorf("%s: %w", x.Name(), assemblyfs.ErrNotAcquired)
	}
	i := find(x.entries, e)
	if i < 0 {
		return nil, fmt.Errorf("%s!/%s: %w", x.Name(), e.Name, assemblyfs.ErrNotFound)
	}
	if x.entries[i].Dir {
		return nil, fmt.Errorf("%s!/%s: is a directory", x.Name(), e.Name)
	}
	return x.openers[i]()
}

func (x *indexed) Close() error {
	if !x.opened {
		return nil
	}
	x.opened = false
	x.entries = nil
	x.openers = nil
	closer := x.closer
	x.closer = nil
	if closer == nil {
		return nil
	}
	if err := closer.Close(); err != nil {
		return fmt.Errorf("close %s: %w", x.Name(), err)
	}
	return nil
}
