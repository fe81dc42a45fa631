package engine

import (
	"sync"

	"github.com/roach88/hyperhistory/internal/history"
)

// Delivery is one block handed over by the transport, together with the
// subject context it was received under.
type Delivery struct {
	Block   history.Block
	Subject Subject
}

// deliveryQueue is a thread-safe FIFO queue of deliveries.
//
// The queue is unbounded; backpressure belongs to the transport.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type deliveryQueue struct {
	mu     sync.Mutex
	items  []Delivery
	closed bool
	signal chan struct{} // buffered, size 1
}

func newDeliveryQueue() *deliveryQueue {
	return &deliveryQueue{
		items:  make([]Delivery, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a delivery to the back of the queue.
// Returns false if the queue is closed.
func (q *deliveryQueue) Enqueue(d Delivery) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, d)

	// Non-blocking: the buffer of 1 coalesces signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// DrainUpTo removes and returns up to n deliveries from the front, in order.
func (q *deliveryQueue) DrainUpTo(n int) []Delivery {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	if n > len(q.items) {
		n = len(q.items)
	}

	out := make([]Delivery, n)
	copy(out, q.items[:n])
	clear(q.items[:n])
	if n == len(q.items) {
		q.items = q.items[:0]
	} else {
		q.items = q.items[n:]
	}
	return out
}

// Wait returns a channel that signals when deliveries may be available.
// The channel is closed once the queue is closed.
func (q *deliveryQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *deliveryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Closed reports whether Close has been called.
func (q *deliveryQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more deliveries will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *deliveryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
