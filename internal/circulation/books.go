package circulation

import (
	"context"
	"fmt"
	"strings"

	"pagepass/internal/events"
	"pagepass/internal/faults"
	"pagepass/internal/store"
)

// AddBook puts a new book on ownerID's shelf.
func (c *Coordinator) AddBook(ctx context.Context, ownerID, title, author string) (*store.Book, error) {
	ownerID = strings.TrimSpace(ownerID)
	title = strings.TrimSpace(title)
	if ownerID == "" {
		return nil, faults.Wrap(faults.ErrNotAuthorized, "add book", "no signed-in user")
	}
	if title == "" {
		return nil, faults.Wrap(faults.ErrInvalidArgument, "add book", "title is required")
	}

	var (
		book  *store.Book
		batch *events.Batch
	)
	err := c.store.WithTx(ctx, func(tx *store.Tx) error {
		batch = &events.Batch{}
		book = &store.Book{
			Title:   title,
			Author:  strings.TrimSpace(author),
			OwnerID: ownerID,
			Status:  store.StatusAvailable,
		}
		if err := tx.InsertBook(ctx, book); err != nil {
			return err
		}
		if err := tx.InsertOwnership(ctx, &store.OwnershipRecord{
			BookID:      book.ID,
			OwnerID:     ownerID,
			AcquiredVia: store.AcquiredAdded,
			AcquiredAt:  tx.Now(),
		}); err != nil {
			return err
		}
		batch.Record(events.HistoryBookAdded, book.ID, ownerID, tx.Now(), map[string]any{
			"title":  book.Title,
			"author": book.Author,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.dispatch(ctx, "add book", batch)
	return book, nil
}

// RemoveBook withdraws a book that is on its owner's shelf. Everyone waiting
// for it is told and dropped from the queue.
func (c *Coordinator) RemoveBook(ctx context.Context, ownerID string, bookID int64) error {
	return c.mutate(ctx, "remove book", bookID, func(ctx context.Context, tx *store.Tx, book *store.Book, batch *events.Batch) error {
		if err := requireOwner("remove book", book, ownerID); err != nil {
			return err
		}
		if !book.Status.OnOwnerShelf() {
			return faults.Wrap(faults.ErrInvalidState, "remove book", fmt.Sprintf("book is %s; wait until it is back on your shelf", book.Status))
		}
		open, err := tx.OpenHandoffForBook(ctx, book.ID)
		if err != nil {
			return err
		}
		if open != nil {
			return faults.Wrap(faults.ErrInvalidState, "remove book", "finish the current handoff first")
		}

		displaced, err := c.queue.Clear(ctx, tx, book.ID)
		if err != nil {
			return err
		}
		for _, entry := range displaced {
			batch.Notify(entry.UserID, events.NoticeRemovedFromQueue, book.ID,
				fmt.Sprintf("%q was removed by its owner.", book.Title),
				map[string]any{"reason": "removed"})
		}
		current, err := tx.CurrentOwnership(ctx, book.ID)
		if err != nil {
			return err
		}
		if current != nil {
			if err := tx.EndOwnership(ctx, current.ID, tx.Now()); err != nil {
				return err
			}
		}
		if err := tx.DeleteBook(ctx, book.ID); err != nil {
			return err
		}
		batch.Record(events.HistoryBookRemoved, book.ID, ownerID, tx.Now(), map[string]any{
			"title":     book.Title,
			"displaced": len(displaced),
		})
		return nil
	})
}

// Recall asks the current borrower to bring the book back to the owner next,
// ahead of the queue.
func (c *Coordinator) Recall(ctx context.Context, ownerID string, bookID int64) (*store.Book, error) {
	var out *store.Book
	err := c.mutate(ctx, "recall", bookID, func(ctx context.Context, tx *store.Tx, book *store.Book, batch *events.Batch) error {
		if err := requireOwner("recall", book, ownerID); err != nil {
			return err
		}
		switch book.Status {
		case store.StatusBorrowed:
		case store.StatusInTransit:
			return faults.Wrap(faults.ErrInvalidState, "recall", "finish the current handoff first")
		case store.StatusAvailable, store.StatusOffShelf:
			return faults.Wrap(faults.ErrInvalidState, "recall", "the book is already on your shelf")
		default:
			return faults.Wrap(faults.ErrInvalidState, "recall", fmt.Sprintf("unknown status %q", book.Status))
		}
		out = book
		if book.RecallRequested {
			return nil
		}
		alreadyAsked := book.OwnerRecallActive
		book.OwnerRecallActive = true
		book.RecallRequested = true
		if err := tx.UpdateBook(ctx, book); err != nil {
			return err
		}
		batch.Record(events.HistoryRecallRequested, book.ID, ownerID, tx.Now(), nil)
		if !alreadyAsked {
			batch.Notify(book.HolderID, events.NoticeRecallRequested, book.ID,
				fmt.Sprintf("The owner of %q would like it back when you are done.", book.Title), nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ToggleGift flips whether the next loan of the book gives it away.
func (c *Coordinator) ToggleGift(ctx context.Context, ownerID string, bookID int64) (bool, error) {
	var enabled bool
	err := c.mutate(ctx, "toggle gift", bookID, func(ctx context.Context, tx *store.Tx, book *store.Book, batch *events.Batch) error {
		if err := requireOwner("toggle gift", book, ownerID); err != nil {
			return err
		}
		if !book.Status.OnOwnerShelf() {
			return faults.Wrap(faults.ErrGiftLocked, "toggle gift", fmt.Sprintf("book is %s; the gift flag can only change while it is on your shelf", book.Status))
		}
		book.GiftOnBorrow = !book.GiftOnBorrow
		if err := tx.UpdateBook(ctx, book); err != nil {
			return err
		}
		enabled = book.GiftOnBorrow
		batch.Record(events.HistoryGiftFlagChanged, book.ID, ownerID, tx.Now(), map[string]any{"gift_on_borrow": enabled})
		return nil
	})
	return enabled, err
}

// Book returns one book.
func (c *Coordinator) Book(ctx context.Context, bookID int64) (*store.Book, error) {
	book, err := c.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, faults.Wrap(faults.ErrNotFound, "get book", fmt.Sprintf("book %d does not exist", bookID))
	}
	return book, nil
}

// Books lists books matching filter.
func (c *Coordinator) Books(ctx context.Context, filter store.BookFilter) ([]*store.Book, error) {
	return c.store.ListBooks(ctx, filter)
}

// Queue returns the waitlist of a book in position order.
func (c *Coordinator) Queue(ctx context.Context, bookID int64) ([]store.QueueEntry, error) {
	if _, err := c.Book(ctx, bookID); err != nil {
		return nil, err
	}
	return c.store.ListQueue(ctx, bookID)
}

// OpenHandoffs lists the handoffs userID still has to finish.
func (c *Coordinator) OpenHandoffs(ctx context.Context, userID string) ([]*store.Handoff, error) {
	return c.store.ListOpenHandoffs(ctx, userID)
}

// Ownership returns the ownership chain of a book, oldest first.
func (c *Coordinator) Ownership(ctx context.Context, bookID int64) ([]store.OwnershipRecord, error) {
	return c.store.ListOwnership(ctx, bookID)
}

// Waitlists returns every queue entry userID holds, one per book.
func (c *Coordinator) Waitlists(ctx context.Context, userID string) ([]store.QueueEntry, error) {
	return c.store.QueuedBooks(ctx, userID)
}

// Stats counts books by status.
func (c *Coordinator) Stats(ctx context.Context) (map[store.Status]int, error) {
	return c.store.Stats(ctx)
}

// Health reports the state of the circulation database.
func (c *Coordinator) Health(ctx context.Context) (store.DatabaseHealth, error) {
	return c.store.CheckHealth(ctx)
}
