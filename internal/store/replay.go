package store

import (
	"context"
	"fmt"
)

// JournalState summarizes the journal for diagnostics.
type JournalState struct {
	Blocks     int
	Rejections int
	LastSeq    int64
	Batches    int
}

// GetJournalState counts blocks, rejections and batches in one pass.
func (s *Store) GetJournalState(ctx context.Context) (JournalState, error) {
	var state JournalState
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM blocks),
			(SELECT COUNT(*) FROM rejections),
			(SELECT COALESCE(MAX(seq), 0) FROM blocks),
			(SELECT COUNT(DISTINCT batch) FROM blocks)
	`).Scan(&state.Blocks, &state.Rejections, &state.LastSeq, &state.Batches)
	if err != nil {
		return state, fmt.Errorf("get journal state: %w", err)
	}
	return state, nil
}
