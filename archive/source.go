package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/brettbedarf/assemblyfs"
)

// Source is where an archive's bytes come from: a real file, or an archive nested
// inside another one exposed as a ReaderAt.
type Source struct {
	Path string // real file path

	ReaderAt io.ReaderAt // nested archive content, used when Path is empty
	Size     int64       // length of ReaderAt
	Name     string      // display name of a nested archive
}

func (s Source) validate() error {
	if s.Path == "" && s.ReaderAt == nil {
		return errors.New("archive source needs a path or a reader")
	}
	return nil
}

// source implements the source level operations of [Archive] shared by every format.
type source struct {
	src Source
}

func (s source) Name() string {
	if s.src.Path != "" {
		return s.src.Path
	}
	return s.src.Name
}

func (s source) Size() int64 {
	if s.src.Path == "" {
		return s.src.Size
	}
	fi, err := os.Stat(s.src.Path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func (s source) Exists() bool {
	if s.src.Path == "" {
		return true
	}
	_, err := os.Stat(s.src.Path)
	return err == nil
}

// LastModified returns the source mtime; zero for nested sources or on error.
func (s source) LastModified() time.Time {
	if s.src.Path == "" {
		return time.Time{}
	}
	fi, err := os.Stat(s.src.Path)
	if err != nil {
		return time.Time{}
	}
	return fi.ModTime()
}

func (s source) Raw() (io.ReadCloser, error) {
	if s.src.Path == "" {
		return io.NopCloser(io.NewSectionReader(s.src.ReaderAt, 0, s.src.Size)), nil
	}
	f, err := os.Open(s.src.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", s.src.Path, assemblyfs.ErrNotFound)
	}
	return f, err
}

// readerAt opens the source for random access. The returned closer must be
// closed once the reader is no longer needed.
func (s source) readerAt() (io.ReaderAt, int64, io.Closer, error) {
	if s.src.Path == "" {
		return s.src.ReaderAt, s.src.Size, io.NopCloser(nil), nil
	}
	f, err := os.Open(s.src.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, nil, fmt.Errorf("%s: %w", s.src.Path, assemblyfs.ErrNotFound)
		}
		return nil, 0, nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close() // nolint:errcheck
		return nil, 0, nil, err
	}
	return f, fi.Size(), f, nil
}
