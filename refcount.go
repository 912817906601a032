package assemblyfs

import "sync"

// refCounter tracks how many mounts reference each FileSystem so a backend
// mounted at several points is closed only when its last mount goes away.
type refCounter struct {
	mu     sync.Mutex
	counts map[FileSystem]int
}

func newRefCounter() *refCounter {
	return &refCounter{counts: make(map[FileSystem]int)}
}

func (r *refCounter) acquire(fs FileSystem) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[fs]++
	return r.counts[fs]
}

// release drops one reference and closes fs when none remain.
func (r *refCounter) release(fs FileSystem) error {
	r.mu.Lock()
	n := r.counts[fs] - 1
	if n > 0 {
		r.counts[fs] = n
		r.mu.Unlock()
		return nil
	}
	delete(r.counts, fs)
	r.mu.Unlock()
	return fs.Close()
}

func (r *refCounter) count(fs FileSystem) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[fs]
}
