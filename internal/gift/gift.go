// Package gift performs permanent ownership transfers.
//
// A transfer is distinct from a loan: it closes the current owner's tenure,
// opens a new one, and discards the waitlist, which was scoped to the old
// owner's lending terms. It runs inside the caller's transaction; the handoff
// coordinator invokes it when a two-party handoff out of a gift-flagged
// owner's hands closes.
package gift

import (
	"context"
	"fmt"

	"pagepass/internal/events"
	"pagepass/internal/faults"
	"pagepass/internal/store"
	"pagepass/internal/waitlist"
)

// Transferrer moves ownership of a book to a new owner.
type Transferrer struct {
	queue *waitlist.Manager
}

// New constructs a Transferrer.
func New(queue *waitlist.Manager) *Transferrer {
	return &Transferrer{queue: queue}
}

// Outcome describes a completed transfer.
type Outcome struct {
	PreviousOwnerID string
	NewOwnerID      string
	Record          *store.OwnershipRecord
	Displaced       []string
}

// Transfer makes newOwnerID the owner of book. The book lands available on the
// new owner's shelf with no holder, no recall, a cleared gift flag, and an
// empty queue.
func (g *Transferrer) Transfer(ctx context.Context, tx *store.Tx, book *store.Book, newOwnerID string, batch *events.Batch) (*Outcome, error) {
	if !book.GiftOnBorrow {
		return nil, faults.Wrap(faults.ErrInvalidState, "gift", fmt.Sprintf("book %d is not marked as a gift", book.ID))
	}
	if newOwnerID == "" || newOwnerID == book.OwnerID {
		return nil, faults.Wrap(faults.ErrInvalidState, "gift", "new owner must differ from the current owner")
	}

	now := tx.Now()
	previousOwner := book.OwnerID

	current, err := tx.CurrentOwnership(ctx, book.ID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("gift book %d: no open ownership record", book.ID)
	}
	if err := tx.EndOwnership(ctx, current.ID, now); err != nil {
		return nil, err
	}
	record := &store.OwnershipRecord{
		BookID:          book.ID,
		OwnerID:         newOwnerID,
		AcquiredVia:     store.AcquiredGift,
		AcquiredAt:      now,
		PreviousOwnerID: previousOwner,
	}
	if err := tx.InsertOwnership(ctx, record); err != nil {
		return nil, err
	}

	book.OwnerID = newOwnerID
	book.GiftOnBorrow = false
	book.OwnerRecallActive = false
	book.RecallRequested = false
	book.OffShelfReturn = ""
	book.Status = store.StatusAvailable
	book.HolderID = ""
	book.HolderSince = nil
	book.DueDate = nil
	if err := tx.UpdateBook(ctx, book); err != nil {
		return nil, err
	}

	entries, err := g.queue.Clear(ctx, tx, book.ID)
	if err != nil {
		return nil, err
	}
	outcome := &Outcome{PreviousOwnerID: previousOwner, NewOwnerID: newOwnerID, Record: record}
	for _, entry := range entries {
		if entry.UserID == newOwnerID {
			continue
		}
		outcome.Displaced = append(outcome.Displaced, entry.UserID)
		batch.Notify(entry.UserID, events.NoticeRemovedFromQueue, book.ID,
			fmt.Sprintf("%q was gifted to a new owner, so its waitlist was cleared.", book.Title),
			map[string]any{"reason": "gift"})
	}

	batch.ResetVisibility(book.ID, newOwnerID)
	batch.Record(events.HistoryGiftTransferred, book.ID, newOwnerID, now, map[string]any{
		"previous_owner_id": previousOwner,
		"displaced":         len(outcome.Displaced),
	})
	batch.Notify(previousOwner, events.NoticeGiftGiven, book.ID,
		fmt.Sprintf("%q now belongs to %s.", book.Title, newOwnerID), nil)
	batch.Notify(newOwnerID, events.NoticeGiftReceived, book.ID,
		fmt.Sprintf("%q is yours to keep.", book.Title), map[string]any{"previous_owner_id": previousOwner})
	return outcome, nil
}
