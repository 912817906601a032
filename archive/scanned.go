package archive

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/brettbedarf/assemblyfs"
)

// scanner reads a streaming archive format one entry at a time. Read returns the
// content of the entry last returned by next.
type scanner interface {
	io.Reader
	next() (Entry, error)
}

// scanned holds the state of formats that can only be read front to back: rar and cpio.
// Open scans once to build the index; each OpenEntry rescans to the requested entry.
type scanned struct {
	source
	newScanner func(io.Reader) (scanner, error)
	entries    []Entry
	opened     bool
}

func (s *scanned) Open() error {
	rc, err := s.reader()
	if err != nil {
		return err
	}
	defer rc.Close() // nolint:errcheck

	sc, err := s.newScanner(rc)
	if err != nil {
		return fmt.Errorf("read %s: %w", s.Name(), err)
	}
	var entries []Entry
	for {
		e, err := sc.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", s.Name(), err)
		}
		e.Name = cleanName(e.Name)
		if e.Name == "" {
			continue
		}
		e.index = len(entries)
		entries = append(entries, e)
	}
	s.entries = entries
	s.opened = true
	return nil
}

func (s *scanned) Entries() ([]Entry, error) {
	if !s.opened {
		return nil, fmt.Errorf("%s: %w", s.Name(), assemblyfs.ErrNotAcquired)
	}
	return slices.Clone(s.entries), nil
}

func (s *scanned) OpenEntry(e Entry) (io.ReadCloser, error) {
	if !s.opened {
		return nil, fmt.Errorf("%s: %w", s.Name(), assemblyfs.ErrNotAcquired)
	}
	i := find(s.entries, e)
	if i < 0 {
		return nil, fmt.Errorf("%s!/%s: %w", s.Name(), e.Name, assemblyfs.ErrNotFound)
	}
	if s.entries[i].Dir {
		return nil, fmt.Errorf("%s!/%s: is a directory", s.Name(), e.Name)
	}
	want := s.entries[i].Name

	rc, err := s.reader()
	if err != nil {
		return nil, err
	}
	sc, err := s.newScanner(rc)
	if err != nil {
		rc.Close() // nolint:errcheck
		return nil, fmt.Errorf("read %s: %w", s.Name(), err)
	}
	for {
		cur, err := sc.next()
		if err != nil {
			rc.Close() // nolint:errcheck
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%s!/%s: %w", s.Name(), want, assemblyfs.ErrNotFound)
			}
			return nil, fmt.Errorf("read %s: %w", s.Name(), err)
		}
		if cleanName(cur.Name) == want {
			return struct {
				io.Reader
				io.Closer
			}{sc, rc}, nil
		}
	}
}

func (s *scanned) Close() error {
	s.opened = false
	s.entries = nil
	return nil
}

// reader opens the source for a sequential pass.
func (s *scanned) reader() (io.ReadCloser, error) {
	return s.Raw()
}
