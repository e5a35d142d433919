package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const ownershipColumns = "id, book_id, owner_id, acquired_via, acquired_at, ended_at, previous_owner_id"

func scanOwnership(row scanner) (*OwnershipRecord, error) {
	var (
		rec         OwnershipRecord
		via         string
		acquiredRaw string
		endedRaw    sql.NullString
		previous    sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.BookID, &rec.OwnerID, &via, &acquiredRaw, &endedRaw, &previous); err != nil {
		return nil, err
	}
	rec.AcquiredVia = Acquisition(via)
	if acquired, err := parseTimeString(acquiredRaw); err == nil {
		rec.AcquiredAt = acquired
	}
	rec.EndedAt = parseNullTime(endedRaw)
	rec.PreviousOwnerID = previous.String
	return &rec, nil
}

// CurrentOwnership returns the open ownership record for bookID, or nil.
func (t *Tx) CurrentOwnership(ctx context.Context, bookID int64) (*OwnershipRecord, error) {
	rec, err := scanOwnership(t.tx.QueryRowContext(ctx,
		"SELECT "+ownershipColumns+" FROM ownership_records WHERE book_id = ? AND ended_at IS NULL", bookID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("current ownership for book %d: %w", bookID, err)
	}
	return rec, nil
}

// InsertOwnership opens a new ownership record.
func (t *Tx) InsertOwnership(ctx context.Context, rec *OwnershipRecord) error {
	if rec.AcquiredAt.IsZero() {
		rec.AcquiredAt = t.now
	}
	res, err := t.tx.ExecContext(ctx,
		"INSERT INTO ownership_records (book_id, owner_id, acquired_via, acquired_at, ended_at, previous_owner_id) VALUES (?, ?, ?, ?, NULL, ?)",
		rec.BookID, rec.OwnerID, string(rec.AcquiredVia), formatTime(rec.AcquiredAt), nullableString(rec.PreviousOwnerID))
	if err != nil {
		return fmt.Errorf("insert ownership record: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

// EndOwnership closes an open ownership record.
func (t *Tx) EndOwnership(ctx context.Context, id int64, endedAt time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE ownership_records SET ended_at = ? WHERE id = ? AND ended_at IS NULL", formatTime(endedAt), id)
	if err != nil {
		return fmt.Errorf("end ownership record %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("end ownership record %d: already ended", id)
	}
	return nil
}

// ListOwnership returns every ownership record for bookID in acquisition order.
func (s *Store) ListOwnership(ctx context.Context, bookID int64) ([]OwnershipRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+ownershipColumns+" FROM ownership_records WHERE book_id = ? ORDER BY id", bookID)
	if err != nil {
		return nil, fmt.Errorf("list ownership: %w", err)
	}
	defer rows.Close()

	var records []OwnershipRecord
	for rows.Next() {
		rec, err := scanOwnership(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ownership: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}
