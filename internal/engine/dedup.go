package engine

import "sync"

// dedupSet tracks block fingerprints that are being applied (pending) or
// have been applied.
//
// With horizon == 0 the applied set grows without bound: every fingerprint
// ever applied is remembered and every redelivery is a duplicate. With
// horizon > 0 only the most recent horizon fingerprints are kept, in FIFO
// order; an older block delivered again is evaluated from scratch.
type dedupSet struct {
	mu      sync.Mutex
	pending map[uint64]chan struct{} // closed when the claim resolves
	applied map[uint64]struct{}
	order   []uint64 // applied fingerprints, oldest first; only with a horizon
	horizon int
}

func newDedupSet(horizon int) *dedupSet {
	return &dedupSet{
		pending: make(map[uint64]chan struct{}),
		applied: make(map[uint64]struct{}),
		horizon: horizon,
	}
}

// claim reserves h and returns true. If h is already applied it returns
// false and a nil channel. If another copy holds h, it returns false and a
// channel that is closed once that copy is committed or released; a
// pending copy may still be rejected, so the caller must claim again.
func (d *dedupSet) claim(h uint64) (bool, <-chan struct{}) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.applied[h]; ok {
		return false, nil
	}
	if wait, ok := d.pending[h]; ok {
		return false, wait
	}
	d.pending[h] = make(chan struct{})
	return true, nil
}

// commit moves a claimed h into the applied set, evicting the oldest
// entries beyond the horizon.
func (d *dedupSet) commit(h uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.resolve(h)
	if _, ok := d.applied[h]; ok {
		return
	}
	d.applied[h] = struct{}{}

	if d.horizon <= 0 {
		return
	}
	d.order = append(d.order, h)
	for len(d.order) > d.horizon {
		delete(d.applied, d.order[0])
		d.order[0] = 0
		d.order = d.order[1:]
	}
}

// release drops a claim without applying it.
func (d *dedupSet) release(h uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resolve(h)
}

// resolve wakes waiters on h. d.mu must be held.
func (d *dedupSet) resolve(h uint64) {
	if wait, ok := d.pending[h]; ok {
		close(wait)
		delete(d.pending, h)
	}
}

func (d *dedupSet) contains(h uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.applied[h]
	return ok
}
