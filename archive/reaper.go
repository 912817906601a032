package archive

import (
	"context"
	"time"

	"github.com/brettbedarf/assemblyfs/internal/util"
	"github.com/puzpuzpuz/xsync/v4"
)

// Reaper periodically releases archives that nobody has used for a while.
type Reaper struct {
	idle     time.Duration
	interval time.Duration
	handles  *xsync.Map[*Handle, struct{}]
}

// NewReaper creates a Reaper evicting handles idle for at least idle, checking
// every interval once started with Run.
func NewReaper(idle, interval time.Duration) *Reaper {
	return &Reaper{
		idle:     idle,
		interval: interval,
		handles:  xsync.NewMap[*Handle, struct{}](),
	}
}

// Track adds h to the set of handles considered for eviction.
func (r *Reaper) Track(h *Handle) {
	r.handles.Store(h, struct{}{})
}

func (r *Reaper) Untrack(h *Handle) {
	r.handles.Delete(h)
}

// Len returns the number of tracked handles.
func (r *Reaper) Len() int {
	return r.handles.Size()
}

// Sweep evicts every idle handle and forgets closed ones. Returns the number evicted.
func (r *Reaper) Sweep() int {
	evicted := 0
	r.handles.Range(func(h *Handle, _ struct{}) bool {
		if h.Closed() {
			r.handles.Delete(h)
			return true
		}
		if h.Evict(r.idle) {
			evicted++
		}
		return true
	})
	return evicted
}

// Run sweeps every interval until ctx is done.
func (r *Reaper) Run(ctx context.Context) {
	logger := util.GetLogger("Reaper")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	logger.Debug().Dur("idle", r.idle).Dur("interval", r.interval).Msg("Reaper started")
	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("Reaper stopped")
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				logger.Debug().Int("evicted", n).Int("tracked", r.Len()).Msg("Released idle archives")
			}
		}
	}
}
