package store

import (
	"context"
	"fmt"

	"github.com/roach88/hyperhistory/internal/history"
	"github.com/roach88/hyperhistory/internal/keys"
)

// Record is one journaled, applied block.
type Record struct {
	Seq    int64
	Hash   uint64
	Block  history.Block
	Server keys.PublicKey // zero when the delivery had no server subject
	Member keys.PublicKey // zero when the delivery had no member subject
	Batch  string
}

// Rejection is one audited rejected delivery.
type Rejection struct {
	ID      int64
	Hash    uint64
	Author  keys.PublicKey
	Kind    history.Kind
	Code    string
	Message string
	Batch   string
}

// WriteBlock appends an applied block to the journal.
//
// Uses ON CONFLICT(hash) DO NOTHING: a block whose fingerprint is already
// journaled is ignored and inserted is false. A seq collision with a
// different fingerprint is still an error.
func (s *Store) WriteBlock(ctx context.Context, rec Record) (inserted bool, err error) {
	actionJSON, err := marshalAction(rec.Block.Action)
	if err != nil {
		return false, fmt.Errorf("write block: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO blocks
		(seq, hash, author, kind, action, sign, server, member, batch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`,
		rec.Seq,
		history.FormatHash(rec.Hash),
		rec.Block.Author.String(),
		string(rec.Block.Action.Kind()),
		actionJSON,
		rec.Block.Sign.String(),
		formatKey(rec.Server),
		formatKey(rec.Member),
		rec.Batch,
	)
	if err != nil {
		return false, fmt.Errorf("write block: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write block: rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// WriteRejection appends an audit row for a rejected delivery and returns
// its id. Rejections are not deduplicated: every attempt is recorded.
func (s *Store) WriteRejection(ctx context.Context, rej Rejection) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO rejections
		(hash, author, kind, code, message, batch)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		history.FormatHash(rej.Hash),
		formatKey(rej.Author),
		string(rej.Kind),
		rej.Code,
		rej.Message,
		rej.Batch,
	)
	if err != nil {
		return 0, fmt.Errorf("write rejection: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("write rejection: last insert id: %w", err)
	}
	return id, nil
}
