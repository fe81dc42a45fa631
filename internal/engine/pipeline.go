package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// windowSize bounds how many queued deliveries Run verifies as one group.
const windowSize = 64

// Source is the transport side of the engine: it yields deliveries until
// it returns io.EOF.
type Source interface {
	Next(ctx context.Context) (Delivery, error)
}

// SliceSource yields a fixed list of deliveries.
type SliceSource struct {
	items []Delivery
	idx   int
}

// NewSliceSource returns a Source over ds.
func NewSliceSource(ds ...Delivery) *SliceSource {
	return &SliceSource{items: ds}
}

// Next implements Source.
func (s *SliceSource) Next(ctx context.Context) (Delivery, error) {
	if err := ctx.Err(); err != nil {
		return Delivery{}, err
	}
	if s.idx >= len(s.items) {
		return Delivery{}, io.EOF
	}
	d := s.items[s.idx]
	s.idx++
	return d, nil
}

// Enqueue submits a delivery for processing by the Run loop.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the engine has been stopped.
func (e *Engine) Enqueue(d Delivery) bool {
	return e.queue.Enqueue(d)
}

// QueueLen returns the number of deliveries waiting for Run.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Stop closes the queue. Run drains what is already queued and returns.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Consume pumps src into the queue until src is exhausted.
// Returns nil on io.EOF and ErrStopped if the engine stops first.
func (e *Engine) Consume(ctx context.Context, src Source) error {
	for {
		d, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("consume: %w", err)
		}
		if !e.Enqueue(d) {
			return ErrStopped
		}
	}
}

// Run processes queued deliveries until ctx is cancelled or Stop is called.
//
// Deliveries are taken from the queue in windows. Within a window,
// fingerprints are claimed in receipt order, envelope signatures are
// verified in parallel, and blocks are then applied strictly in receipt
// order. Never apply-before-verify.
//
// Must be called from exactly ONE goroutine.
//
// ERROR HANDLING: a rejected block is logged and reported to the outcome
// handler; processing continues with the next delivery.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "verify_workers", e.verifyWorkers, "batch", e.Batch())

	for {
		if window := e.queue.DrainUpTo(windowSize); len(window) > 0 {
			e.processWindow(ctx, window)
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel is closed along with the queue
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed", "applied", e.Applied())
				return nil
			}
		}
	}
}

// processWindow claims, verifies and applies one window. A delivery whose
// fingerprint is held by an earlier copy (in this window or a concurrent
// Deliver) is deferred to its apply turn, when that copy has resolved, and
// is then claimed again and verified on its own. Only the first copy of a
// fingerprint in a window may claim up front, so a deferred delivery never
// waits on a later one.
func (e *Engine) processWindow(ctx context.Context, window []Delivery) {
	outs := make([]Outcome, len(window))
	claimed := make([]bool, len(window))
	deferred := make([]bool, len(window))
	first := make(map[uint64]bool, len(window))
	for i, d := range window {
		h := d.Block.Hash()
		if first[h] {
			outs[i] = Outcome{Hash: h, Kind: kindOf(d.Block)}
			deferred[i] = true
			continue
		}
		first[h] = true

		var wait <-chan struct{}
		outs[i], claimed[i], wait = e.tryClaim(d.Block)
		deferred[i] = !claimed[i] && wait != nil
	}

	verdicts := e.verifyAll(window, claimed)

	for i, d := range window {
		switch {
		case claimed[i]:
			outs[i] = e.finish(ctx, d.Block, d.Subject, outs[i], verdicts[i])
		case deferred[i]:
			var ok bool
			if outs[i], ok = e.acquire(d.Block); ok {
				outs[i] = e.finish(ctx, d.Block, d.Subject, outs[i], e.verify(d.Block))
			}
		}
		if e.handler != nil {
			e.handler(d, outs[i])
		}
	}
}

// verifyAll checks every claimed envelope using up to verifyWorkers
// goroutines. verdicts[i] is nil for a valid signature.
func (e *Engine) verifyAll(window []Delivery, claimed []bool) []*Rejection {
	verdicts := make([]*Rejection, len(window))

	if e.verifyWorkers == 1 {
		for i, d := range window {
			if claimed[i] {
				verdicts[i] = e.verify(d.Block)
			}
		}
		return verdicts
	}

	sem := make(chan struct{}, e.verifyWorkers)
	var wg sync.WaitGroup
	for i, d := range window {
		if !claimed[i] {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			verdicts[i] = e.verify(d.Block)
		}()
	}
	wg.Wait()
	return verdicts
}
