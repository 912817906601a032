package archive

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/brettbedarf/assemblyfs"
	"github.com/brettbedarf/assemblyfs/internal/util"
)

// DefaultCheckInterval is the minimum time between two stat checks of an archive source.
const DefaultCheckInterval = time.Second

type state int

const (
	stateUnopened state = iota
	stateOpen
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateUnopened:
		return "unopened"
	case stateOpen:
		return "open"
	case stateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Handle owns an [Archive] on behalf of every reader sharing it.
//
// Each successful Acquire must be paired with exactly one Release; [Handle.Use]
// does the pairing for a function call. The archive is opened on first acquisition,
// reopened when idle and its source changed on disk, and released by Evict once idle.
// Close is terminal and refused while any reader holds the handle; Retire defers
// it to the last Release instead.
type Handle struct {
	archive       Archive
	clock         Clock
	checkInterval time.Duration
	metrics       *Metrics

	mu           sync.Mutex // protects the fields below
	state        state
	refCount     int
	generation   uint64 // bumped every time the archive is (re)opened
	lastUsed     time.Time
	lastModified time.Time
	lastChecked  time.Time
	closePending bool // set by Retire while readers remain
}

// HandleOption configures a Handle.
type HandleOption func(*Handle)

// WithClock sets the time source used for staleness checks and idle tracking.
func WithClock(c Clock) HandleOption {
	return func(h *Handle) { h.clock = c }
}

// WithCheckInterval sets the minimum time between two stat checks of the source.
func WithCheckInterval(d time.Duration) HandleOption {
	return func(h *Handle) { h.checkInterval = d }
}

func WithMetrics(m *Metrics) HandleOption {
	return func(h *Handle) { h.metrics = m }
}

// NewHandle creates an unopened Handle for a.
func NewHandle(a Archive, opts ...HandleOption) *Handle {
	h := &Handle{
		archive:       a,
		clock:         RealClock(),
		checkInterval: DefaultCheckInterval,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.lastModified = a.LastModified()
	h.lastUsed = h.clock.Now()
	return h
}

func (h *Handle) Name() string {
	return h.archive.Name()
}

// Size returns the size of the archive source in bytes.
func (h *Handle) Size() int64 {
	return h.archive.Size()
}

func (h *Handle) Exists() bool {
	return h.archive.Exists()
}

// LastModified returns the source mtime recorded by the latest check.
func (h *Handle) LastModified() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastModified
}

// Acquire registers a reader, opening the archive first if needed.
// Fails with [assemblyfs.ErrClosed] after Close.
func (h *Handle) Acquire() error {
	logger := util.GetLogger("Handle.Acquire")
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case h.state == stateClosed || h.closePending:
		return fmt.Errorf("acquire %s: %w", h.Name(), assemblyfs.ErrClosed)
	case h.state == stateOpen:
		// Only an unused archive can be swapped for a fresh view of its source
		if h.refCount == 0 && h.hasBeenModifiedLocked() {
			logger.Debug().Str("archive", h.Name()).Msg("Source changed on disk, reopening")
			if err := h.archive.Close(); err != nil {
				logger.Warn().Err(err).Str("archive", h.Name()).Msg("Failed to close stale archive")
			}
			h.state = stateUnopened
			h.metrics.released()
			h.metrics.reopened()
		}
	}

	if h.state == stateUnopened {
		if err := h.archive.Open(); err != nil {
			return fmt.Errorf("open archive %s: %w", h.Name(), err)
		}
		h.state = stateOpen
		h.generation++
		h.metrics.opened()
		logger.Debug().Str("archive", h.Name()).Uint64("generation", h.generation).Msg("Opened archive")
	}

	h.refCount++
	h.lastUsed = h.clock.Now()
	h.metrics.readers(1)
	return nil
}

// Release unregisters a reader registered by Acquire. The last release of a
// retired handle closes it.
// Returns [assemblyfs.ErrNotAcquired] for an unbalanced release.
func (h *Handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.refCount == 0 {
		return fmt.Errorf("release %s: %w", h.Name(), assemblyfs.ErrNotAcquired)
	}
	h.refCount--
	h.lastUsed = h.clock.Now()
	h.metrics.readers(-1)
	if h.refCount == 0 && h.closePending {
		return h.closeLocked()
	}
	return nil
}

// Use runs fn while holding an acquisition and always releases it afterwards.
func (h *Handle) Use(fn func() error) (err error) {
	if err := h.Acquire(); err != nil {
		return err
	}
	defer func() {
		if rerr := h.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn()
}

// RefCount returns the number of outstanding acquisitions.
func (h *Handle) RefCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refCount
}

// LastUsed returns when the handle was last acquired or released.
func (h *Handle) LastUsed() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastUsed
}

// Generation identifies the current opening of the archive. It changes whenever
// the archive is reopened so callers can drop data derived from an older view.
func (h *Handle) Generation() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.generation
}

func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state == stateClosed
}

// HasBeenModified reports whether the source mtime changed since the previous check.
// Probes closer together than the check interval return false without touching the source.
func (h *Handle) HasBeenModified() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hasBeenModifiedLocked()
}

func (h *Handle) hasBeenModifiedLocked() bool {
	now := h.clock.Now()
	if !h.lastChecked.IsZero() && now.Sub(h.lastChecked) < h.checkInterval {
		return false
	}
	h.lastChecked = now
	lm := h.archive.LastModified()
	if lm.Equal(h.lastModified) {
		return false
	}
	h.lastModified = lm
	return true
}

// Entries lists the archive members. Requires an acquisition.
func (h *Handle) Entries() ([]Entry, error) {
	a, err := h.acquired()
	if err != nil {
		return nil, err
	}
	return a.Entries()
}

// OpenEntry opens a member for reading. Requires an acquisition; the returned
// stream holds its own until closed.
func (h *Handle) OpenEntry(e Entry) (io.ReadCloser, error) {
	a, err := h.acquired()
	if err != nil {
		return nil, err
	}
	if err := h.Acquire(); err != nil {
		return nil, err
	}
	rc, err := a.OpenEntry(e)
	if err != nil {
		h.Release() // nolint:errcheck
		return nil, err
	}
	return &handleReader{ReadCloser: rc, h: h}, nil
}

// Raw opens the whole archive source for reading. Requires an acquisition; the
// returned stream holds its own until closed.
func (h *Handle) Raw() (io.ReadCloser, error) {
	a, err := h.acquired()
	if err != nil {
		return nil, err
	}
	if err := h.Acquire(); err != nil {
		return nil, err
	}
	rc, err := a.Raw()
	if err != nil {
		h.Release() // nolint:errcheck
		return nil, err
	}
	return &handleReader{ReadCloser: rc, h: h}, nil
}

// acquired returns the archive if the caller may read from it.
func (h *Handle) acquired() (Archive, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case h.state == stateClosed:
		return nil, fmt.Errorf("%s: %w", h.Name(), assemblyfs.ErrClosed)
	case h.state != stateOpen || h.refCount == 0:
		return nil, fmt.Errorf("%s: %w", h.Name(), assemblyfs.ErrNotAcquired)
	}
	return h.archive, nil
}

// Evict releases the opened archive if nobody holds the handle and it has been
// idle for at least idle. The handle stays usable; the next Acquire reopens it.
func (h *Handle) Evict(idle time.Duration) bool {
	logger := util.GetLogger("Handle.Evict")
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != stateOpen || h.refCount > 0 {
		return false
	}
	if h.clock.Now().Sub(h.lastUsed) < idle {
		return false
	}
	if err := h.archive.Close(); err != nil {
		logger.Warn().Err(err).Str("archive", h.Name()).Msg("Failed to close idle archive")
	}
	h.state = stateUnopened
	h.metrics.released()
	h.metrics.evicted()
	logger.Debug().Str("archive", h.Name()).Msg("Released idle archive")
	return true
}

// Close permanently closes the handle. Refused with [assemblyfs.ErrInUse] while
// acquired; a second Close returns [assemblyfs.ErrClosed].
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case h.state == stateClosed:
		return fmt.Errorf("close %s: %w", h.Name(), assemblyfs.ErrClosed)
	case h.refCount > 0:
		return fmt.Errorf("close %s with %d readers: %w", h.Name(), h.refCount, assemblyfs.ErrInUse)
	}
	return h.closeLocked()
}

// Retire closes the handle like Close, but when readers still hold it the
// close is deferred to the last Release instead of being dropped. New
// acquisitions fail from then on. The returned error still reports
// [assemblyfs.ErrInUse] in that case.
func (h *Handle) Retire() error {
	logger := util.GetLogger("Handle.Retire")
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case h.state == stateClosed || h.closePending:
		return fmt.Errorf("close %s: %w", h.Name(), assemblyfs.ErrClosed)
	case h.refCount > 0:
		h.closePending = true
		logger.Debug().Str("archive", h.Name()).Int("readers", h.refCount).Msg("Close deferred until last release")
		return fmt.Errorf("close %s with %d readers: %w", h.Name(), h.refCount, assemblyfs.ErrInUse)
	}
	return h.closeLocked()
}

func (h *Handle) closeLocked() error {
	logger := util.GetLogger("Handle.Close")
	var err error
	if h.state == stateOpen {
		err = h.archive.Close()
		h.metrics.released()
	}
	h.state = stateClosed
	h.closePending = false
	logger.Debug().Str("archive", h.Name()).Msg("Closed archive handle")
	if err != nil {
		return fmt.Errorf("close %s: %w", h.Name(), err)
	}
	return nil
}

// handleReader releases its handle acquisition when closed.
type handleReader struct {
	io.ReadCloser
	h    *Handle
	once sync.Once
}

func (r *handleReader) Close() error {
	err := r.ReadCloser.Close()
	r.once.Do(func() {
		r.h.Release() // nolint:errcheck
	})
	return err
}
