package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/hyperhistory/internal/history"
)

// ReadBlocks returns every journaled block ordered by seq ASC.
// This is the replay order.
//
// Returns an empty slice (not nil) if the journal is empty.
func (s *Store) ReadBlocks(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, hash, author, action, sign, server, member, batch
		FROM blocks
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query blocks: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// ReadBatch returns the blocks journaled under one batch token, in seq order.
func (s *Store) ReadBatch(ctx context.Context, batch string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, hash, author, action, sign, server, member, batch
		FROM blocks
		WHERE batch = ?
		ORDER BY seq ASC
	`, batch)
	if err != nil {
		return nil, fmt.Errorf("query batch %s: %w", batch, err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// ReadBlock retrieves a single journaled block by fingerprint.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadBlock(ctx context.Context, hash uint64) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, hash, author, action, sign, server, member, batch
		FROM blocks
		WHERE hash = ?
	`, history.FormatHash(hash))

	return scanRecord(row)
}

// HasBlock reports whether a fingerprint is journaled.
func (s *Store) HasBlock(ctx context.Context, hash uint64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM blocks WHERE hash = ?
	`, history.FormatHash(hash)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check block: %w", err)
	}
	return count > 0, nil
}

// CountBlocks returns the number of journaled blocks.
func (s *Store) CountBlocks(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blocks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count blocks: %w", err)
	}
	return count, nil
}

// LastSeq returns the highest journaled seq, or 0 for an empty journal.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM blocks`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}

// ReadRejections returns every audited rejection in insertion order.
func (s *Store) ReadRejections(ctx context.Context) ([]Rejection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hash, author, kind, code, message, batch
		FROM rejections
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query rejections: %w", err)
	}
	defer rows.Close()

	rejections := []Rejection{}
	for rows.Next() {
		var (
			rej                Rejection
			hash, author, kind string
		)
		if err := rows.Scan(&rej.ID, &hash, &author, &kind, &rej.Code, &rej.Message, &rej.Batch); err != nil {
			return nil, fmt.Errorf("scan rejection: %w", err)
		}
		if rej.Hash, err = parseHash(hash); err != nil {
			return nil, err
		}
		if rej.Author, err = parseKey("author", author); err != nil {
			return nil, err
		}
		rej.Kind = history.Kind(kind)
		rejections = append(rejections, rej)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rejections: %w", err)
	}
	return rejections, nil
}

// BatchSummary describes one ingest batch.
type BatchSummary struct {
	Batch    string
	Blocks   int
	FirstSeq int64
	LastSeq  int64
}

// ListBatches returns one summary per batch token, ordered by first seq.
func (s *Store) ListBatches(ctx context.Context) ([]BatchSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT batch, COUNT(*), MIN(seq), MAX(seq)
		FROM blocks
		GROUP BY batch
		ORDER BY MIN(seq) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	batches := []BatchSummary{}
	for rows.Next() {
		var b BatchSummary
		if err := rows.Scan(&b.Batch, &b.Blocks, &b.FirstSeq, &b.LastSeq); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return batches, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func collectRecords(rows *sql.Rows) ([]Record, error) {
	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocks: %w", err)
	}
	return records, nil
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec                        Record
		hash, author, action, sign string
		server, member             string
	)
	if err := row.Scan(&rec.Seq, &hash, &author, &action, &sign, &server, &member, &rec.Batch); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scan block: %w", err)
	}

	var err error
	if rec.Hash, err = parseHash(hash); err != nil {
		return Record{}, err
	}
	if rec.Block.Author, err = parseKey("author", author); err != nil {
		return Record{}, err
	}
	if rec.Block.Action, err = unmarshalAction(action); err != nil {
		return Record{}, err
	}
	if rec.Block.Sign, err = parseSignature(sign); err != nil {
		return Record{}, err
	}
	if rec.Server, err = parseKey("server", server); err != nil {
		return Record{}, err
	}
	if rec.Member, err = parseKey("member", member); err != nil {
		return Record{}, err
	}
	return rec, nil
}
