package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const queueColumns = "book_id, user_id, position, pass_count, last_pass_reason, joined_at, offered_at"

func scanQueueEntry(row scanner) (*QueueEntry, error) {
	var (
		entry      QueueEntry
		reason     sql.NullString
		joinedRaw  string
		offeredRaw sql.NullString
	)
	if err := row.Scan(&entry.BookID, &entry.UserID, &entry.Position, &entry.PassCount, &reason, &joinedRaw, &offeredRaw); err != nil {
		return nil, err
	}
	entry.LastPassReason = reason.String
	if joined, err := parseTimeString(joinedRaw); err == nil {
		entry.JoinedAt = joined
	}
	entry.OfferedAt = parseNullTime(offeredRaw)
	return &entry, nil
}

func listQueue(ctx context.Context, q querier, bookID int64) ([]QueueEntry, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+queueColumns+" FROM queue_entries WHERE book_id = ? ORDER BY position", bookID)
	if err != nil {
		return nil, fmt.Errorf("list queue for book %d: %w", bookID, err)
	}
	defer rows.Close()

	var entries []QueueEntry
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func queryQueueEntry(ctx context.Context, q querier, query string, args ...any) (*QueueEntry, error) {
	entry, err := scanQueueEntry(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get queue entry: %w", err)
	}
	return entry, nil
}

// ListQueue returns the waitlist for bookID ordered by position.
func (t *Tx) ListQueue(ctx context.Context, bookID int64) ([]QueueEntry, error) {
	return listQueue(ctx, t.tx, bookID)
}

// GetQueueEntry returns userID's entry for bookID, or nil.
func (t *Tx) GetQueueEntry(ctx context.Context, bookID int64, userID string) (*QueueEntry, error) {
	return queryQueueEntry(ctx, t.tx,
		"SELECT "+queueColumns+" FROM queue_entries WHERE book_id = ? AND user_id = ?", bookID, userID)
}

// QueueEntryAt returns the entry holding position for bookID, or nil.
func (t *Tx) QueueEntryAt(ctx context.Context, bookID int64, position int) (*QueueEntry, error) {
	return queryQueueEntry(ctx, t.tx,
		"SELECT "+queueColumns+" FROM queue_entries WHERE book_id = ? AND position = ?", bookID, position)
}

// MaxQueuePosition returns the highest position in use, 0 for an empty queue.
func (t *Tx) MaxQueuePosition(ctx context.Context, bookID int64) (int, error) {
	var max sql.NullInt64
	if err := t.tx.QueryRowContext(ctx, "SELECT MAX(position) FROM queue_entries WHERE book_id = ?", bookID).Scan(&max); err != nil {
		return 0, fmt.Errorf("max queue position: %w", err)
	}
	return int(max.Int64), nil
}

// InsertQueueEntry adds entry to its book's waitlist.
func (t *Tx) InsertQueueEntry(ctx context.Context, entry *QueueEntry) error {
	if entry.JoinedAt.IsZero() {
		entry.JoinedAt = t.now
	}
	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO queue_entries ("+queueColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		entry.BookID,
		entry.UserID,
		entry.Position,
		entry.PassCount,
		nullableString(entry.LastPassReason),
		formatTime(entry.JoinedAt),
		nullableTime(entry.OfferedAt),
	)
	if err != nil {
		return fmt.Errorf("insert queue entry: %w", err)
	}
	return nil
}

// UpdateQueueEntry persists pass bookkeeping and the offer clock. Position
// changes go through CloseQueueGap and SwapQueuePositions only.
func (t *Tx) UpdateQueueEntry(ctx context.Context, entry *QueueEntry) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE queue_entries SET pass_count = ?, last_pass_reason = ?, offered_at = ? WHERE book_id = ? AND user_id = ?",
		entry.PassCount,
		nullableString(entry.LastPassReason),
		nullableTime(entry.OfferedAt),
		entry.BookID,
		entry.UserID,
	)
	if err != nil {
		return fmt.Errorf("update queue entry: %w", err)
	}
	return nil
}

// DeleteQueueEntry removes a single entry without renumbering.
func (t *Tx) DeleteQueueEntry(ctx context.Context, bookID int64, userID string) error {
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM queue_entries WHERE book_id = ? AND user_id = ?", bookID, userID); err != nil {
		return fmt.Errorf("delete queue entry: %w", err)
	}
	return nil
}

// CloseQueueGap shifts every entry after position up by one and resets their
// pass counts. The shift goes through negative positions so the
// (book_id, position) unique index never sees a transient duplicate.
func (t *Tx) CloseQueueGap(ctx context.Context, bookID int64, position int) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE queue_entries SET position = -(position - 1), pass_count = 0 WHERE book_id = ? AND position > ?",
		bookID, position)
	if err != nil {
		return 0, fmt.Errorf("shift queue positions: %w", err)
	}
	moved, _ := res.RowsAffected()
	if _, err := t.tx.ExecContext(ctx,
		"UPDATE queue_entries SET position = -position WHERE book_id = ? AND position < 0", bookID); err != nil {
		return 0, fmt.Errorf("restore queue positions: %w", err)
	}
	return moved, nil
}

// SwapQueuePositions exchanges the entries at positions a and b.
func (t *Tx) SwapQueuePositions(ctx context.Context, bookID int64, a, b int) error {
	if _, err := t.tx.ExecContext(ctx,
		"UPDATE queue_entries SET position = CASE position WHEN ? THEN -? ELSE -? END WHERE book_id = ? AND position IN (?, ?)",
		a, b, a, bookID, a, b); err != nil {
		return fmt.Errorf("swap queue positions: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx,
		"UPDATE queue_entries SET position = -position WHERE book_id = ? AND position < 0", bookID); err != nil {
		return fmt.Errorf("restore swapped positions: %w", err)
	}
	return nil
}

// ClearOffers stops every offer clock on bookID's waitlist.
func (t *Tx) ClearOffers(ctx context.Context, bookID int64) error {
	if _, err := t.tx.ExecContext(ctx, "UPDATE queue_entries SET offered_at = NULL WHERE book_id = ?", bookID); err != nil {
		return fmt.Errorf("clear offers: %w", err)
	}
	return nil
}

// ClearQueue deletes the whole waitlist and returns what was removed.
func (t *Tx) ClearQueue(ctx context.Context, bookID int64) ([]QueueEntry, error) {
	entries, err := listQueue(ctx, t.tx, bookID)
	if err != nil {
		return nil, err
	}
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM queue_entries WHERE book_id = ?", bookID); err != nil {
		return nil, fmt.Errorf("clear queue: %w", err)
	}
	return entries, nil
}

// ListQueue returns the waitlist for bookID outside of any transaction.
func (s *Store) ListQueue(ctx context.Context, bookID int64) ([]QueueEntry, error) {
	return listQueue(ensureContext(ctx), s.db, bookID)
}

// QueuedBooks returns every entry userID holds across all waitlists.
func (s *Store) QueuedBooks(ctx context.Context, userID string) ([]QueueEntry, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+queueColumns+" FROM queue_entries WHERE user_id = ? ORDER BY book_id", userID)
	if err != nil {
		return nil, fmt.Errorf("list queued books: %w", err)
	}
	defer rows.Close()

	var entries []QueueEntry
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// ExpiredOffers returns head entries of available books whose offer clock
// started at or before cutoff.
func (s *Store) ExpiredOffers(ctx context.Context, cutoff time.Time) ([]QueueEntry, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT q.book_id, q.user_id, q.position, q.pass_count, q.last_pass_reason, q.joined_at, q.offered_at
		FROM queue_entries q JOIN books b ON b.id = q.book_id
		WHERE q.position = 1 AND q.offered_at IS NOT NULL AND q.offered_at <= ? AND b.status = ?
		ORDER BY q.offered_at`,
		formatTime(cutoff), string(StatusAvailable))
	if err != nil {
		return nil, fmt.Errorf("list expired offers: %w", err)
	}
	defer rows.Close()

	var entries []QueueEntry
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}
