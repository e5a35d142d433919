package handoff

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"pagepass/internal/events"
	"pagepass/internal/faults"
	"pagepass/internal/gift"
	"pagepass/internal/store"
	"pagepass/internal/waitlist"
)

// DefaultLoanPeriod is how long a borrower keeps a book before it is due.
const DefaultLoanPeriod = 14 * 24 * time.Hour

// Outcome is the result of a single confirmation.
type Outcome string

const (
	OutcomeWaiting Outcome = "waiting"
	OutcomeClosed  Outcome = "closed"
)

// ConfirmResult reports the handoff and book state after Confirm.
type ConfirmResult struct {
	Handoff *store.Handoff
	Book    *store.Book
	Outcome Outcome
	Kind    store.HandoffKind
	Gifted  bool
}

// Coordinator creates and confirms handoffs.
type Coordinator struct {
	queue      *waitlist.Manager
	gifts      *gift.Transferrer
	loanPeriod time.Duration
	newID      func() string
}

// New constructs a Coordinator. A non-positive loanPeriod uses DefaultLoanPeriod.
func New(queue *waitlist.Manager, gifts *gift.Transferrer, loanPeriod time.Duration) *Coordinator {
	if loanPeriod <= 0 {
		loanPeriod = DefaultLoanPeriod
	}
	return &Coordinator{
		queue:      queue,
		gifts:      gifts,
		loanPeriod: loanPeriod,
		newID:      uuid.NewString,
	}
}

// Initiate opens a handoff of book from giverID to receiverID and puts the
// book in transit. initiatedBy is whichever party asked; the other one is
// notified.
func (c *Coordinator) Initiate(ctx context.Context, tx *store.Tx, book *store.Book, giverID, receiverID, initiatedBy string, batch *events.Batch) (*store.Handoff, error) {
	open, err := tx.OpenHandoffForBook(ctx, book.ID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, faults.Wrap(faults.ErrInvalidState, "start handoff", "another handoff is already in progress")
	}

	switch book.Status {
	case store.StatusAvailable:
		if giverID != book.OwnerID {
			return nil, faults.Wrap(faults.ErrInvalidState, "start handoff", "only the owner can hand over a shelved book")
		}
	case store.StatusBorrowed:
		if giverID != book.HolderID {
			return nil, faults.Wrap(faults.ErrInvalidState, "start handoff", "only the current holder can pass the book on")
		}
	case store.StatusInTransit:
		return nil, faults.Wrap(faults.ErrInvalidState, "start handoff", "finish the current handoff first")
	case store.StatusOffShelf:
		return nil, faults.Wrap(faults.ErrInvalidState, "start handoff", "the book is off the shelf")
	default:
		return nil, faults.Wrap(faults.ErrInvalidState, "start handoff", fmt.Sprintf("unknown status %q", book.Status))
	}
	if receiverID == "" || receiverID == giverID {
		return nil, faults.Wrap(faults.ErrInvalidState, "start handoff", "giver and receiver must be different people")
	}

	now := tx.Now()
	kind := store.HandoffPagepass
	if receiverID == book.OwnerID {
		kind = store.HandoffReturn
	}
	h := &store.Handoff{
		ID:         c.newID(),
		BookID:     book.ID,
		GiverID:    giverID,
		ReceiverID: receiverID,
		Kind:       kind,
		CreatedAt:  now,
	}
	if err := tx.InsertHandoff(ctx, h); err != nil {
		return nil, err
	}

	book.Status = store.StatusInTransit
	book.HolderID = giverID
	if book.HolderSince == nil {
		book.HolderSince = &now
	}
	book.DueDate = nil
	if err := tx.UpdateBook(ctx, book); err != nil {
		return nil, err
	}
	if err := c.queue.PauseOffers(ctx, tx, book.ID); err != nil {
		return nil, err
	}

	batch.Record(events.HistoryHandoffInitiated, book.ID, initiatedBy, now, map[string]any{
		"handoff_id":  h.ID,
		"giver_id":    giverID,
		"receiver_id": receiverID,
		"kind":        string(kind),
	})
	data := map[string]any{"handoff_id": h.ID, "kind": string(kind)}
	switch initiatedBy {
	case receiverID:
		batch.Notify(giverID, events.NoticeHandoffRequested, book.ID,
			fmt.Sprintf("%s asked for %q. Confirm once you have handed it over.", receiverID, book.Title), data)
	default:
		batch.Notify(receiverID, events.NoticeHandoffRequested, book.ID,
			fmt.Sprintf("%s is handing %q to you. Confirm once you have it.", giverID, book.Title), data)
	}
	return h, nil
}

// Confirm records userID's confirmation in role. The second confirmation
// closes the handoff and applies the return, loan, or gift.
func (c *Coordinator) Confirm(ctx context.Context, tx *store.Tx, handoffID, userID string, role store.HandoffRole, batch *events.Batch) (*ConfirmResult, error) {
	h, err := tx.GetHandoff(ctx, handoffID)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, faults.Wrap(faults.ErrNotFound, "confirm handoff", fmt.Sprintf("handoff %s does not exist", handoffID))
	}
	if role != store.RoleGiver && role != store.RoleReceiver {
		return nil, faults.Wrap(faults.ErrInvalidArgument, "confirm handoff", fmt.Sprintf("unknown role %q", role))
	}
	if h.Party(role) != userID {
		return nil, faults.Wrap(faults.ErrNotAuthorized, "confirm handoff", fmt.Sprintf("you are not the %s of this handoff", role))
	}
	if h.ConfirmedAt(role) != nil {
		return nil, faults.Wrap(faults.ErrAlreadyConfirmed, "confirm handoff", fmt.Sprintf("%s side already confirmed", role))
	}
	if !h.Open() {
		return nil, faults.Wrap(faults.ErrHandoffComplete, "confirm handoff", "handoff already closed")
	}

	now := tx.Now()
	var other *time.Time
	if role == store.RoleGiver {
		h.GiverConfirmedAt = &now
		other = h.ReceiverConfirmedAt
	} else {
		h.ReceiverConfirmedAt = &now
		other = h.GiverConfirmedAt
	}
	batch.Record(events.HistoryHandoffConfirmed, h.BookID, userID, now, map[string]any{
		"handoff_id": h.ID,
		"role":       string(role),
	})

	book, err := tx.GetBook(ctx, h.BookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, faults.Wrap(faults.ErrNotFound, "confirm handoff", fmt.Sprintf("book %d no longer exists", h.BookID))
	}

	if other == nil {
		if err := tx.UpdateHandoffConfirmations(ctx, h); err != nil {
			return nil, err
		}
		batch.Notify(h.Counterparty(userID), events.NoticeHandoffWaiting, book.ID,
			fmt.Sprintf("%s confirmed the handoff of %q. Waiting for you.", userID, book.Title),
			map[string]any{"handoff_id": h.ID})
		return &ConfirmResult{Handoff: h, Book: book, Outcome: OutcomeWaiting, Kind: h.Kind}, nil
	}

	h.BothConfirmedAt = &now
	h.Kind = store.HandoffPagepass
	if h.ReceiverID == book.OwnerID {
		h.Kind = store.HandoffReturn
	}
	if err := tx.UpdateHandoffConfirmations(ctx, h); err != nil {
		return nil, err
	}
	return c.close(ctx, tx, h, book, batch)
}

func (c *Coordinator) close(ctx context.Context, tx *store.Tx, h *store.Handoff, book *store.Book, batch *events.Batch) (*ConfirmResult, error) {
	now := tx.Now()
	heldSince := book.HolderSince
	giverWasOwner := h.GiverID == book.OwnerID
	result := &ConfirmResult{Handoff: h, Book: book, Outcome: OutcomeClosed, Kind: h.Kind}

	switch {
	case h.Kind == store.HandoffReturn:
		if err := c.closeReturn(ctx, tx, h, book, batch); err != nil {
			return nil, err
		}
	case book.GiftOnBorrow:
		if _, err := c.gifts.Transfer(ctx, tx, book, h.ReceiverID, batch); err != nil {
			return nil, err
		}
		result.Gifted = true
	default:
		if err := c.closeLoan(ctx, tx, h, book, batch); err != nil {
			return nil, err
		}
	}

	holding := map[string]any{
		"handoff_id":  h.ID,
		"receiver_id": h.ReceiverID,
		"role":        "borrower",
	}
	if giverWasOwner {
		holding["role"] = "owner"
	}
	// An owner's shelf period is not a holding, so only borrowers get a
	// duration.
	if heldSince != nil && !giverWasOwner {
		holding["held_since"] = heldSince.UTC().Format(time.RFC3339)
		holding["days_held"] = int(math.Floor(now.Sub(*heldSince).Hours() / 24))
	}
	batch.Record(events.HistoryHoldingEnded, book.ID, h.GiverID, now, holding)

	message := fmt.Sprintf("Handoff of %q is complete.", book.Title)
	data := map[string]any{"handoff_id": h.ID, "kind": string(h.Kind)}
	batch.Notify(h.GiverID, events.NoticeHandoffCompleted, book.ID, message, data)
	batch.Notify(h.ReceiverID, events.NoticeHandoffCompleted, book.ID, message, data)
	return result, nil
}

func (c *Coordinator) closeReturn(ctx context.Context, tx *store.Tx, h *store.Handoff, book *store.Book, batch *events.Batch) error {
	landing := store.StatusAvailable
	if book.OffShelfReturn == store.ReturnOffShelf {
		landing = store.StatusOffShelf
	}
	book.Status = landing
	book.HolderID = ""
	book.HolderSince = nil
	book.DueDate = nil
	book.OffShelfReturn = ""
	book.OwnerRecallActive = false
	book.RecallRequested = false
	if err := tx.UpdateBook(ctx, book); err != nil {
		return err
	}
	batch.Record(events.HistoryBookReturned, book.ID, h.GiverID, tx.Now(), map[string]any{
		"handoff_id": h.ID,
		"landed":     string(landing),
	})
	return c.queue.StartOffer(ctx, tx, book, batch)
}

func (c *Coordinator) closeLoan(ctx context.Context, tx *store.Tx, h *store.Handoff, book *store.Book, batch *events.Batch) error {
	now := tx.Now()
	due := now.Add(c.loanPeriod)
	book.Status = store.StatusBorrowed
	book.HolderID = h.ReceiverID
	book.HolderSince = &now
	book.DueDate = &due
	if err := tx.UpdateBook(ctx, book); err != nil {
		return err
	}
	if _, err := c.queue.RemoveUser(ctx, tx, book.ID, h.ReceiverID); err != nil {
		return err
	}
	batch.Record(events.HistoryLoanStarted, book.ID, h.ReceiverID, now, map[string]any{
		"handoff_id": h.ID,
		"giver_id":   h.GiverID,
		"due_date":   due.UTC().Format(time.RFC3339),
	})
	return nil
}
