package engine

import "sync/atomic"

// Clock is the monotonic logical clock that stamps applied blocks.
//
// Every applied block gets a strictly increasing seq. The journal is
// replayed in seq order, so a restore applies blocks in exactly the order
// they were first applied.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Observe advances the clock to seq if it is behind. Used on restore so
// new blocks are stamped after every journaled one.
func (c *Clock) Observe(seq int64) {
	for {
		cur := c.seq.Load()
		if seq <= cur || c.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}
