package archive

import (
	"io"

	"github.com/cavaliergopher/cpio"
)

// cpioTypeMask selects the file type bits of a cpio mode.
const cpioTypeMask = 0o170000

type cpioScanner struct {
	*cpio.Reader
}

func newCpioScanner(r io.Reader) (scanner, error) {
	return cpioScanner{cpio.NewReader(r)}, nil
}

func (c cpioScanner) next() (Entry, error) {
	h, err := c.Next()
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Name:     h.Name,
		Size:     h.Size,
		Modified: h.ModTime,
		Dir:      h.Mode&cpioTypeMask == cpio.TypeDir,
	}, nil
}

// newCpioArchive reads SVR4 (newc) cpio archives. Entries are located by scanning.
func newCpioArchive(src Source) (Archive, error) {
	if err := src.validate(); err != nil {
		return nil, err
	}
	return &scanned{source: source{src}, newScanner: newCpioScanner}, nil
}
