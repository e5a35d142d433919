// Package waitlist maintains the ordered queue of users waiting for a book.
//
// Every operation runs inside the caller's store transaction so that queue
// changes commit atomically with the book and handoff changes they
// accompany. Positions are always exactly 1..N: removals close the gap with a
// single bulk update, and escalation swaps two positions in place.
//
// The head of the queue holds an offer while the book sits available on the
// owner's shelf. The offer clock (QueueEntry.OfferedAt) is what the expiry
// sweep measures.
package waitlist

import (
	"context"
	"fmt"

	"pagepass/internal/events"
	"pagepass/internal/faults"
	"pagepass/internal/store"
)

// DefaultPassThreshold is the number of consecutive passes at the head of the
// queue after which the entry drops one place.
const DefaultPassThreshold = 3

// Manager applies queue policy.
type Manager struct {
	passThreshold int
}

// New constructs a Manager. A non-positive threshold uses DefaultPassThreshold.
func New(passThreshold int) *Manager {
	if passThreshold <= 0 {
		passThreshold = DefaultPassThreshold
	}
	return &Manager{passThreshold: passThreshold}
}

// PassThreshold returns the configured escalation threshold.
func (m *Manager) PassThreshold() int {
	return m.passThreshold
}

// PassResult describes what a pass did to the queue.
type PassResult struct {
	UserID         string
	PassCount      int
	Position       int
	Escalated      bool
	PromotedUserID string
}

// Join appends userID to the book's queue and returns the assigned position.
func (m *Manager) Join(ctx context.Context, tx *store.Tx, book *store.Book, userID string, batch *events.Batch) (int, error) {
	if userID == book.OwnerID {
		return 0, faults.Wrap(faults.ErrInvalidState, "join queue", "owners cannot queue for their own book")
	}
	if userID == book.HolderID {
		return 0, faults.Wrap(faults.ErrInvalidState, "join queue", "you already have this book")
	}
	existing, err := tx.GetQueueEntry(ctx, book.ID, userID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, faults.Wrap(faults.ErrAlreadyQueued, "join queue",
			fmt.Sprintf("already at position %d", existing.Position))
	}

	max, err := tx.MaxQueuePosition(ctx, book.ID)
	if err != nil {
		return 0, err
	}
	entry := &store.QueueEntry{
		BookID:   book.ID,
		UserID:   userID,
		Position: max + 1,
		JoinedAt: tx.Now(),
	}
	if err := tx.InsertQueueEntry(ctx, entry); err != nil {
		return 0, err
	}
	batch.Record(events.HistoryQueueJoined, book.ID, userID, tx.Now(), map[string]any{"position": entry.Position})

	if entry.Position == 1 {
		if err := m.StartOffer(ctx, tx, book, batch); err != nil {
			return 0, err
		}
	}
	return entry.Position, nil
}

// Leave removes userID from the queue and renumbers everyone behind them.
func (m *Manager) Leave(ctx context.Context, tx *store.Tx, book *store.Book, userID string, batch *events.Batch) error {
	entry, err := tx.GetQueueEntry(ctx, book.ID, userID)
	if err != nil {
		return err
	}
	if entry == nil {
		return faults.Wrap(faults.ErrNotQueued, "leave queue", fmt.Sprintf("%s is not waiting for book %d", userID, book.ID))
	}
	if err := m.remove(ctx, tx, entry); err != nil {
		return err
	}
	batch.Record(events.HistoryQueueLeft, book.ID, userID, tx.Now(), map[string]any{"position": entry.Position})

	if entry.Position == 1 {
		return m.StartOffer(ctx, tx, book, batch)
	}
	return nil
}

// RemoveUser drops userID from the queue if present, renumbering the rest.
// It reports whether an entry was removed.
func (m *Manager) RemoveUser(ctx context.Context, tx *store.Tx, bookID int64, userID string) (bool, error) {
	entry, err := tx.GetQueueEntry(ctx, bookID, userID)
	if err != nil || entry == nil {
		return false, err
	}
	if err := m.remove(ctx, tx, entry); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) remove(ctx context.Context, tx *store.Tx, entry *store.QueueEntry) error {
	if err := tx.DeleteQueueEntry(ctx, entry.BookID, entry.UserID); err != nil {
		return err
	}
	_, err := tx.CloseQueueGap(ctx, entry.BookID, entry.Position)
	return err
}

// RecordPass notes that userID declined the book for now. At the head of the
// queue, reaching the pass threshold swaps the entry with position 2 and
// resets both counts.
func (m *Manager) RecordPass(ctx context.Context, tx *store.Tx, book *store.Book, userID, reason string, batch *events.Batch) (PassResult, error) {
	entry, err := tx.GetQueueEntry(ctx, book.ID, userID)
	if err != nil {
		return PassResult{}, err
	}
	if entry == nil {
		return PassResult{}, faults.Wrap(faults.ErrNotQueued, "pass", fmt.Sprintf("%s is not waiting for book %d", userID, book.ID))
	}

	entry.PassCount++
	entry.LastPassReason = reason
	result := PassResult{UserID: userID, PassCount: entry.PassCount, Position: entry.Position}
	batch.Record(events.HistoryOfferPassed, book.ID, userID, tx.Now(), map[string]any{
		"reason":     reason,
		"pass_count": entry.PassCount,
		"position":   entry.Position,
	})

	wasHead := entry.Position == 1
	if wasHead {
		entry.OfferedAt = nil
	}

	if wasHead && entry.PassCount >= m.passThreshold {
		next, err := tx.QueueEntryAt(ctx, book.ID, 2)
		if err != nil {
			return PassResult{}, err
		}
		entry.PassCount = 0
		result.PassCount = 0
		if err := tx.UpdateQueueEntry(ctx, entry); err != nil {
			return PassResult{}, err
		}
		if next != nil {
			if err := tx.SwapQueuePositions(ctx, book.ID, 1, 2); err != nil {
				return PassResult{}, err
			}
			next.PassCount = 0
			next.OfferedAt = nil
			if err := tx.UpdateQueueEntry(ctx, next); err != nil {
				return PassResult{}, err
			}
			result.Escalated = true
			result.Position = 2
			result.PromotedUserID = next.UserID
			batch.Record(events.HistoryPassEscalated, book.ID, userID, tx.Now(), map[string]any{
				"promoted_user_id": next.UserID,
				"threshold":        m.passThreshold,
			})
			batch.Notify(userID, events.NoticePassEscalated, book.ID,
				fmt.Sprintf("After %d passes in a row you moved to position 2 for %q.", m.passThreshold, book.Title), nil)
			if book.Status != store.StatusAvailable {
				batch.Notify(next.UserID, events.NoticeMovedUp, book.ID,
					fmt.Sprintf("You are now first in line for %q.", book.Title), nil)
			}
		}
	} else if err := tx.UpdateQueueEntry(ctx, entry); err != nil {
		return PassResult{}, err
	}

	if wasHead {
		if err := m.restartOffer(ctx, tx, book, userID, batch); err != nil {
			return PassResult{}, err
		}
	}
	return result, nil
}

// PeekHead returns the position-1 entry, or nil for an empty queue.
func (m *Manager) PeekHead(ctx context.Context, tx *store.Tx, bookID int64) (*store.QueueEntry, error) {
	return tx.QueueEntryAt(ctx, bookID, 1)
}

// Clear deletes the entire queue and returns the displaced entries.
func (m *Manager) Clear(ctx context.Context, tx *store.Tx, bookID int64) ([]store.QueueEntry, error) {
	return tx.ClearQueue(ctx, bookID)
}

// StartOffer starts the head's offer clock if the book is available and no
// offer is running, and tells the head it is their turn.
func (m *Manager) StartOffer(ctx context.Context, tx *store.Tx, book *store.Book, batch *events.Batch) error {
	return m.startOffer(ctx, tx, book, batch, events.NoticeYourTurn,
		fmt.Sprintf("%q is available. Request it or pass.", book.Title))
}

// ResumeOffer is StartOffer for a book coming back onto its owner's shelf.
func (m *Manager) ResumeOffer(ctx context.Context, tx *store.Tx, book *store.Book, batch *events.Batch) error {
	return m.startOffer(ctx, tx, book, batch, events.NoticeShelfResumed,
		fmt.Sprintf("%q is back on the shelf and you are first in line. Request it or pass.", book.Title))
}

func (m *Manager) startOffer(ctx context.Context, tx *store.Tx, book *store.Book, batch *events.Batch, kind events.NoticeKind, message string) error {
	if book.Status != store.StatusAvailable {
		return nil
	}
	head, err := m.PeekHead(ctx, tx, book.ID)
	if err != nil || head == nil || head.OfferedAt != nil {
		return err
	}
	now := tx.Now()
	head.OfferedAt = &now
	if err := tx.UpdateQueueEntry(ctx, head); err != nil {
		return err
	}
	batch.Notify(head.UserID, kind, book.ID, message, nil)
	return nil
}

// restartOffer gives the head after a pass a fresh offer window. The passing
// user is not re-notified when they remain at the head.
func (m *Manager) restartOffer(ctx context.Context, tx *store.Tx, book *store.Book, passedBy string, batch *events.Batch) error {
	if book.Status != store.StatusAvailable {
		return nil
	}
	head, err := m.PeekHead(ctx, tx, book.ID)
	if err != nil || head == nil {
		return err
	}
	now := tx.Now()
	head.OfferedAt = &now
	if err := tx.UpdateQueueEntry(ctx, head); err != nil {
		return err
	}
	if head.UserID != passedBy {
		batch.Notify(head.UserID, events.NoticeYourTurn, book.ID,
			fmt.Sprintf("%q is available. Request it or pass.", book.Title), nil)
	}
	return nil
}

// PauseOffers stops the offer clock, used whenever the book leaves the shelf.
func (m *Manager) PauseOffers(ctx context.Context, tx *store.Tx, bookID int64) error {
	return tx.ClearOffers(ctx, bookID)
}
