package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrHandoffFrozen is returned when a write targets a handoff that has
// already closed.
var ErrHandoffFrozen = errors.New("handoff is closed")

const handoffColumns = "id, book_id, giver_id, receiver_id, kind, created_at, giver_confirmed_at, receiver_confirmed_at, both_confirmed_at"

func scanHandoff(row scanner) (*Handoff, error) {
	var (
		h           Handoff
		kind        string
		createdRaw  string
		giverRaw    sql.NullString
		receiverRaw sql.NullString
		bothRaw     sql.NullString
	)
	if err := row.Scan(&h.ID, &h.BookID, &h.GiverID, &h.ReceiverID, &kind, &createdRaw, &giverRaw, &receiverRaw, &bothRaw); err != nil {
		return nil, err
	}
	h.Kind = HandoffKind(kind)
	if created, err := parseTimeString(createdRaw); err == nil {
		h.CreatedAt = created
	}
	h.GiverConfirmedAt = parseNullTime(giverRaw)
	h.ReceiverConfirmedAt = parseNullTime(receiverRaw)
	h.BothConfirmedAt = parseNullTime(bothRaw)
	return &h, nil
}

func queryHandoff(ctx context.Context, q querier, query string, args ...any) (*Handoff, error) {
	h, err := scanHandoff(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get handoff: %w", err)
	}
	return h, nil
}

func listHandoffs(ctx context.Context, q querier, query string, args ...any) ([]*Handoff, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list handoffs: %w", err)
	}
	defer rows.Close()

	var handoffs []*Handoff
	for rows.Next() {
		h, err := scanHandoff(rows)
		if err != nil {
			return nil, fmt.Errorf("scan handoff: %w", err)
		}
		handoffs = append(handoffs, h)
	}
	return handoffs, rows.Err()
}

// GetHandoff fetches a handoff by id, or nil.
func (t *Tx) GetHandoff(ctx context.Context, id string) (*Handoff, error) {
	return queryHandoff(ctx, t.tx, "SELECT "+handoffColumns+" FROM handoffs WHERE id = ?", id)
}

// OpenHandoffForBook returns the unclosed handoff for bookID, or nil.
func (t *Tx) OpenHandoffForBook(ctx context.Context, bookID int64) (*Handoff, error) {
	return queryHandoff(ctx, t.tx,
		"SELECT "+handoffColumns+" FROM handoffs WHERE book_id = ? AND both_confirmed_at IS NULL", bookID)
}

// InsertHandoff stores a new open handoff.
func (t *Tx) InsertHandoff(ctx context.Context, h *Handoff) error {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = t.now
	}
	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO handoffs ("+handoffColumns+") VALUES (?, ?, ?, ?, ?, ?, NULL, NULL, NULL)",
		h.ID, h.BookID, h.GiverID, h.ReceiverID, string(h.Kind), formatTime(h.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert handoff: %w", err)
	}
	return nil
}

// UpdateHandoffConfirmations writes the confirmation timestamps. The update
// only matches open handoffs; a closed one yields ErrHandoffFrozen.
func (t *Tx) UpdateHandoffConfirmations(ctx context.Context, h *Handoff) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE handoffs SET giver_confirmed_at = ?, receiver_confirmed_at = ?, both_confirmed_at = ?, kind = ?
		WHERE id = ? AND both_confirmed_at IS NULL`,
		nullableTime(h.GiverConfirmedAt),
		nullableTime(h.ReceiverConfirmedAt),
		nullableTime(h.BothConfirmedAt),
		string(h.Kind),
		h.ID,
	)
	if err != nil {
		return fmt.Errorf("update handoff %s: %w", h.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update handoff %s: %w", h.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update handoff %s: %w", h.ID, ErrHandoffFrozen)
	}
	return nil
}

// GetHandoff fetches a handoff outside of any transaction.
func (s *Store) GetHandoff(ctx context.Context, id string) (*Handoff, error) {
	return queryHandoff(ensureContext(ctx), s.db, "SELECT "+handoffColumns+" FROM handoffs WHERE id = ?", id)
}

// ListOpenHandoffs returns unclosed handoffs where userID is a party.
func (s *Store) ListOpenHandoffs(ctx context.Context, userID string) ([]*Handoff, error) {
	return listHandoffs(ensureContext(ctx), s.db,
		"SELECT "+handoffColumns+" FROM handoffs WHERE both_confirmed_at IS NULL AND (giver_id = ? OR receiver_id = ?) ORDER BY created_at",
		userID, userID)
}

// ListOpenHandoffsBetween returns unclosed handoffs between two users in
// either direction.
func (s *Store) ListOpenHandoffsBetween(ctx context.Context, userID, counterpartyID string) ([]*Handoff, error) {
	return listHandoffs(ensureContext(ctx), s.db,
		`SELECT `+handoffColumns+` FROM handoffs WHERE both_confirmed_at IS NULL
		AND ((giver_id = ? AND receiver_id = ?) OR (giver_id = ? AND receiver_id = ?)) ORDER BY created_at`,
		userID, counterpartyID, counterpartyID, userID)
}

// ListBookHandoffs returns every handoff for bookID, newest last.
func (s *Store) ListBookHandoffs(ctx context.Context, bookID int64) ([]*Handoff, error) {
	return listHandoffs(ensureContext(ctx), s.db,
		"SELECT "+handoffColumns+" FROM handoffs WHERE book_id = ? ORDER BY created_at", bookID)
}
