package archive

import (
	"archive/zip"
	"fmt"
)

// zipArchive reads zip and jar files with the standard library reader.
type zipArchive struct {
	indexed
}

func newZipArchive(src Source) (Archive, error) {
	if err := src.validate(); err != nil {
		return nil, err
	}
	return &zipArchive{indexed{source: source{src}}}, nil
}

func (z *zipArchive) Open() error {
	ra, size, closer, err := z.readerAt()
	if err != nil {
		return err
	}
	r, err := zip.NewReader(ra, size)
	if err != nil {
		closer.Close() // nolint:errcheck
		return fmt.Errorf("read zip %s: %w", z.Name(), err)
	}
	z.reset(closer)
	for _, f := range r.File {
		z.add(Entry{
			Name:     f.Name,
			Size:     int64(f.UncompressedSize64),
			Modified: f.Modified,
			Dir:      f.FileInfo().IsDir(),
		}, f.Open)
	}
	return nil
}
