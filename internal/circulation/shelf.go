package circulation

import (
	"context"
	"fmt"

	"pagepass/internal/events"
	"pagepass/internal/faults"
	"pagepass/internal/store"
)

// ToggleShelf takes a book off the owner's shelf or puts it back. For a
// borrowed book the change is deferred: the borrower is asked to return it
// and it lands off the shelf. Toggling again before then cancels the request.
func (c *Coordinator) ToggleShelf(ctx context.Context, ownerID string, bookID int64) (*store.Book, error) {
	var out *store.Book
	err := c.mutate(ctx, "toggle shelf", bookID, func(ctx context.Context, tx *store.Tx, book *store.Book, batch *events.Batch) error {
		if err := requireOwner("toggle shelf", book, ownerID); err != nil {
			return err
		}
		now := tx.Now()

		switch book.Status {
		case store.StatusAvailable:
			book.Status = store.StatusOffShelf
			if err := tx.UpdateBook(ctx, book); err != nil {
				return err
			}
			if err := c.queue.PauseOffers(ctx, tx, book.ID); err != nil {
				return err
			}
			queue, err := tx.ListQueue(ctx, book.ID)
			if err != nil {
				return err
			}
			for _, entry := range queue {
				batch.Notify(entry.UserID, events.NoticeShelfPaused, book.ID,
					fmt.Sprintf("%q is off the shelf for now. You keep your place in line.", book.Title),
					map[string]any{"position": entry.Position})
			}
			batch.Record(events.HistoryShelfOff, book.ID, ownerID, now, map[string]any{"queued": len(queue)})

		case store.StatusOffShelf:
			book.Status = store.StatusAvailable
			if err := tx.UpdateBook(ctx, book); err != nil {
				return err
			}
			if err := c.queue.ResumeOffer(ctx, tx, book, batch); err != nil {
				return err
			}
			batch.Record(events.HistoryShelfOn, book.ID, ownerID, now, nil)

		case store.StatusBorrowed:
			if book.OffShelfReturn == store.ReturnOffShelf {
				book.OffShelfReturn = ""
				book.OwnerRecallActive = book.RecallRequested
				if err := tx.UpdateBook(ctx, book); err != nil {
					return err
				}
				batch.Record(events.HistoryRecallCancelled, book.ID, ownerID, now,
					map[string]any{"recall_kept": book.RecallRequested})
				break
			}
			alreadyAsked := book.OwnerRecallActive
			book.OffShelfReturn = store.ReturnOffShelf
			book.OwnerRecallActive = true
			if err := tx.UpdateBook(ctx, book); err != nil {
				return err
			}
			batch.Record(events.HistoryShelfOff, book.ID, ownerID, now, map[string]any{"pending": true})
			if !alreadyAsked {
				batch.Notify(book.HolderID, events.NoticeRecallRequested, book.ID,
					fmt.Sprintf("The owner of %q would like it back when you are done.", book.Title),
					map[string]any{"off_shelf": true})
			}

		case store.StatusInTransit:
			return faults.Wrap(faults.ErrInvalidState, "toggle shelf", "finish the current handoff first")

		default:
			return faults.Wrap(faults.ErrInvalidState, "toggle shelf", fmt.Sprintf("unknown status %q", book.Status))
		}
		out = book
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
