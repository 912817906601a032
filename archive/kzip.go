package archive

import (
	"fmt"

	kzip "github.com/klauspost/compress/zip"
)

// kzipArchive reads zip and jar files with klauspost's faster inflate implementation.
type kzipArchive struct {
	indexed
}

func newKZipArchive(src Source) (Archive, error) {
	if err := src.validate(); err != nil {
		return nil, err
	}
	return &kzipArchive{indexed{source: source{src}}}, nil
}

func (z *kzipArchive) Open() error {
	ra, size, closer, err := z.readerAt()
	if err != nil {
		return err
	}
	r, err := kzip.NewReader(ra, size)
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
