package archive

import (
	"fmt"

	"github.com/bodgit/sevenzip"
)

type sevenZipArchive struct {
	indexed
}

func newSevenZipArchive(src Source) (Archive, error) {
	if err := src.validate(); err != nil {
		return nil, err
	}
	return &sevenZipArchive{indexed{source: source{src}}}, nil
}

func (z *sevenZipArchive) Open() error {
	ra, size, closer, err := z.readerAt()
	if err != nil {
		return err
	}
	r, err := sevenzip.NewReader(ra, size)
	if err != nil {
		closer.Close() // nolint:errcheck
		return fmt.Errorf("read 7z %s: %w", z.Name(), err)
	}
	z.reset(closer)
	for _, f := range r.File {
		z.add(Entry{
			Name:     f.Name,
			Size:     int64(f.UncompressedSize),
			Modified: f.Modified,
			Dir:      f.FileInfo().IsDir(),
		}, f.Open)
	}
	return nil
}
