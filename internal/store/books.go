package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const bookColumns = "id, title, author, owner_id, holder_id, status, due_date, gift_on_borrow, owner_recall_active, recall_requested, off_shelf_return, holder_since, created_at, updated_at"

func scanBook(row scanner) (*Book, error) {
	var (
		book          Book
		author        sql.NullString
		holder        sql.NullString
		statusStr     string
		dueRaw        sql.NullString
		gift          int
		recall        int
		requested     int
		offShelf      sql.NullString
		holderSinceRw sql.NullString
		createdRaw    string
		updatedRaw    string
	)
	if err := row.Scan(
		&book.ID,
		&book.Title,
		&author,
		&book.OwnerID,
		&holder,
		&statusStr,
		&dueRaw,
		&gift,
		&recall,
		&requested,
		&offShelf,
		&holderSinceRw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	book.Author = author.String
	book.HolderID = holder.String
	book.Status = Status(statusStr)
	book.DueDate = parseNullTime(dueRaw)
	book.GiftOnBorrow = gift != 0
	book.OwnerRecallActive = recall != 0
	book.RecallRequested = requested != 0
	book.OffShelfReturn = ReturnStatus(offShelf.String)
	book.HolderSince = parseNullTime(holderSinceRw)
	if created, err := parseTimeString(createdRaw); err == nil {
		book.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		book.UpdatedAt = updated
	}
	return &book, nil
}

func getBook(ctx context.Context, q querier, id int64) (*Book, error) {
	row := q.QueryRowContext(ctx, "SELECT "+bookColumns+" FROM books WHERE id = ?", id)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get book %d: %w", id, err)
	}
	return book, nil
}

// GetBook fetches a book by id. A missing book yields (nil, nil).
func (t *Tx) GetBook(ctx context.Context, id int64) (*Book, error) {
	return getBook(ctx, t.tx, id)
}

// InsertBook stores a new book and assigns its ID.
func (t *Tx) InsertBook(ctx context.Context, book *Book) error {
	if err := book.CheckInvariants(); err != nil {
		return err
	}
	book.CreatedAt = t.now
	book.UpdatedAt = t.now
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO books (title, author, owner_id, holder_id, status, due_date, gift_on_borrow,
			owner_recall_active, recall_requested, off_shelf_return, holder_since, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		book.Title,
		nullableString(book.Author),
		book.OwnerID,
		nullableString(book.HolderID),
		string(book.Status),
		nullableTime(book.DueDate),
		boolToInt(book.GiftOnBorrow),
		boolToInt(book.OwnerRecallActive),
		boolToInt(book.RecallRequested),
		nullableString(string(book.OffShelfReturn)),
		nullableTime(book.HolderSince),
		formatTime(book.CreatedAt),
		formatTime(book.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("book id: %w", err)
	}
	book.ID = id
	return nil
}

// UpdateBook persists every mutable column of book.
func (t *Tx) UpdateBook(ctx context.Context, book *Book) error {
	if err := book.CheckInvariants(); err != nil {
		return err
	}
	book.UpdatedAt = t.now
	res, err := t.tx.ExecContext(ctx,
		`UPDATE books SET title = ?, author = ?, owner_id = ?, holder_id = ?, status = ?, due_date = ?,
			gift_on_borrow = ?, owner_recall_active = ?, recall_requested = ?, off_shelf_return = ?, holder_since = ?, updated_at = ?
		WHERE id = ?`,
		book.Title,
		nullableString(book.Author),
		book.OwnerID,
		nullableString(book.HolderID),
		string(book.Status),
		nullableTime(book.DueDate),
		boolToInt(book.GiftOnBorrow),
		boolToInt(book.OwnerRecallActive),
		boolToInt(book.RecallRequested),
		nullableString(string(book.OffShelfReturn)),
		nullableTime(book.HolderSince),
		formatTime(book.UpdatedAt),
		book.ID,
	)
	if err != nil {
		return fmt.Errorf("update book %d: %w", book.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update book %d: %w", book.ID, sql.ErrNoRows)
	}
	return nil
}

// DeleteBook removes the book row; queue entries cascade.
func (t *Tx) DeleteBook(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM books WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete book %d: %w", id, err)
	}
	return nil
}

// GetBook fetches a book outside of any transaction.
func (s *Store) GetBook(ctx context.Context, id int64) (*Book, error) {
	return getBook(ensureContext(ctx), s.db, id)
}

// ListBooks returns books matching filter ordered by id.
func (s *Store) ListBooks(ctx context.Context, filter BookFilter) ([]*Book, error) {
	ctx = ensureContext(ctx)
	var (
		clauses []string
		args    []any
	)
	if filter.OwnerID != "" {
		clauses = append(clauses, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.HolderID != "" {
		clauses = append(clauses, "holder_id = ?")
		args = append(args, filter.HolderID)
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, string(status))
		}
	}
	query := "SELECT " + bookColumns + " FROM books"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, book)
	}
	return books, rows.Err()
}
