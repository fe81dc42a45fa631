package engine

import (
	"context"
	"fmt"

	"github.com/roach88/hyperhistory/internal/history"
	"github.com/roach88/hyperhistory/internal/store"
)

// Restore rebuilds state from a journal.
//
// Journaled blocks go through the same verify and dispatch path as live
// deliveries, in seq order, keeping their original seq. Nothing is written
// back. A block that no longer passes (for example because an
// administrator has since been removed from the capability registry) is
// logged and skipped. The clock resumes after the highest restored seq.
//
// Returns the number of blocks applied.
func (e *Engine) Restore(ctx context.Context, st *store.Store) (int, error) {
	records, err := st.ReadBlocks(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore: %w", err)
	}
	return e.replay(ctx, records)
}

func (e *Engine) replay(ctx context.Context, records []store.Record) (int, error) {
	applied := 0
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return applied, err
		}

		if ok, _ := e.dedup.claim(rec.Hash); !ok {
			continue
		}
		if rej := e.verify(rec.Block); rej != nil {
			e.dedup.release(rec.Hash)
			e.logger.Warn("journaled block failed verification",
				"seq", rec.Seq,
				"hash", history.FormatHash(rec.Hash),
				"code", rej.Code,
			)
			continue
		}

		seq := rec.Seq
		subj := Subject{Server: rec.Server, Member: rec.Member}
		if _, err := e.dispatch(rec.Block, subj, func() (int64, error) { return seq, nil }); err != nil {
			e.dedup.release(rec.Hash)
			e.logger.Warn("journaled block no longer applies",
				"seq", rec.Seq,
				"hash", history.FormatHash(rec.Hash),
				"error", err,
			)
			continue
		}

		e.dedup.commit(rec.Hash)
		e.applied.Add(1)
		e.clock.Observe(seq)
		applied++
	}

	e.logger.Info("journal replayed", "records", len(records), "applied", applied, "seq", e.clock.Current())
	return applied, nil
}
