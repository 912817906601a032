package archive

import (
	"io"

	"github.com/nwaples/rardecode/v2"
)

type rarScanner struct {
	*rardecode.Reader
}

func newRarScanner(r io.Reader) (scanner, error) {
	rr, err := rardecode.NewReader(r)
	if err != nil {
		return nil, err
	}
	return rarScanner{rr}, nil
}

func (r rarScanner) next() (Entry, error) {
	h, err := r.Next()
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Name:     h.Name,
		Size:     h.UnPackedSize,
		Modified: h.ModificationTime,
		Dir:      h.IsDir,
	}, nil
}

// newRarArchive reads single volume rar files. Entries are located by scanning.
func newRarArchive(src Source) (Archive, error) {
	if err := src.validate(); err != nil {
		return nil, err
	}
	return &scanned{source: source{src}, newScanner: newRarScanner}, nil
}
