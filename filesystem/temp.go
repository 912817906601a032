package filesystem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/brettbedarf/assemblyfs"
	"github.com/brettbedarf/assemblyfs/internal/util"
	"github.com/gofrs/flock"
)

// lockName is the file inside every temp dir whose lock marks the dir as in use.
const lockName = ".assemblyfs.lock"

// TempProvider owns a private temp directory used to materialize archive entries.
// The directory is locked for its lifetime so [CleanStale] can tell live
// directories from the ones left behind by crashed processes.
type TempProvider struct {
	dir    string
	lock   *flock.Flock
	closed atomic.Bool
}

// NewTempProvider creates a locked directory named prefix* under base
// (the system temp dir when empty).
func NewTempProvider(base, prefix string) (*TempProvider, error) {
	logger := util.GetLogger("TempProvider")
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create temp base %s: %w", base, err)
	}
	dir, err := os.MkdirTemp(base, prefix)
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	lock := flock.New(filepath.Join(dir, lockName))
	locked, err := lock.TryLock()
	if err == nil && !locked {
		err = errors.New("lock held by another process")
	}
	if err != nil {
		os.RemoveAll(dir) // nolint:errcheck
		return nil, fmt.Errorf("lock temp dir %s: %w", dir, err)
	}
	logger.Debug().Str("dir", dir).Msg("Created temp dir")
	return &TempProvider{dir: dir, lock: lock}, nil
}

// Dir returns the provider's directory.
func (t *TempProvider) Dir() string {
	return t.dir
}

// NewDir creates a fresh subdirectory named after name.
func (t *TempProvider) NewDir(name string) (string, error) {
	if t.closed.Load() {
		return "", fmt.Errorf("temp dir %s: %w", t.dir, assemblyfs.ErrClosed)
	}
	dir, err := os.MkdirTemp(t.dir, sanitize(name)+"-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	return dir, nil
}

// Close unlocks and removes the directory with everything materialized in it.
func (t *TempProvider) Close() error {
	logger := util.GetLogger("TempProvider")
	if t.closed.Swap(true) {
		return fmt.Errorf("temp dir %s: %w", t.dir, assemblyfs.ErrClosed)
	}
	err := errors.Join(t.lock.Unlock(), os.RemoveAll(t.dir))
	logger.Debug().Str("dir", t.dir).Err(err).Msg("Removed temp dir")
	return err
}

// CleanStale removes the prefix* directories under base that no live provider
// holds the lock for. Returns the number removed.
func CleanStale(base, prefix string) (int, error) {
	logger := util.GetLogger("CleanStale")
	if base == "" {
		base = os.TempDir()
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", base, err)
	}
	removed := 0
	var errs []error
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		dir := filepath.Join(base, e.Name())
		lock := flock.New(filepath.Join(dir, lockName))
		locked, err := lock.TryLock()
		if err != nil || !locked {
			continue
		}
		err = os.RemoveAll(dir)
		lock.Unlock() // nolint:errcheck
		if err != nil {
			errs = append(errs, err)
			continue
		}
		logger.Debug().Str("dir", dir).Msg("Removed stale temp dir")
		removed++
	}
	return removed, errors.Join(errs...)
}

// sanitize makes name safe to use as a single path segment.
func sanitize(name string) string {
	name = filepath.Base(name)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
