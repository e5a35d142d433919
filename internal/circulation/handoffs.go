package circulation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pagepass/internal/events"
	"pagepass/internal/faults"
	"pagepass/internal/handoff"
	"pagepass/internal/store"
)

// RequestBorrow starts a handoff from the owner to userID. When people are
// waiting, only the head of the queue may ask.
func (c *Coordinator) RequestBorrow(ctx context.Context, userID string, bookID int64) (*store.Handoff, error) {
	var h *store.Handoff
	err := c.mutate(ctx, "request borrow", bookID, func(ctx context.Context, tx *store.Tx, book *store.Book, batch *events.Batch) error {
		if book.OwnerID == userID {
			return faults.Wrap(faults.ErrInvalidState, "request borrow", "you already own this book")
		}
		if book.Status != store.StatusAvailable {
			return faults.Wrap(faults.ErrInvalidState, "request borrow", fmt.Sprintf("book is %s", book.Status))
		}
		head, err := c.queue.PeekHead(ctx, tx, book.ID)
		if err != nil {
			return err
		}
		if head != nil && head.UserID != userID {
			return faults.Wrap(faults.ErrInvalidState, "request borrow", "someone is ahead of you in the queue; join it instead")
		}
		h, err = c.handoffs.Initiate(ctx, tx, book, book.OwnerID, userID, userID, batch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// MarkReadyToPassOn is called by the borrower when they are done. It picks
// the next recipient and opens a handoff to them.
func (c *Coordinator) MarkReadyToPassOn(ctx context.Context, userID string, bookID int64) (*store.Handoff, handoff.Recipient, error) {
	var (
		h         *store.Handoff
		recipient handoff.Recipient
	)
	err := c.mutate(ctx, "ready to pass on", bookID, func(ctx context.Context, tx *store.Tx, book *store.Book, batch *events.Batch) error {
		if book.HolderID != userID {
			return faults.Wrap(faults.ErrNotAuthorized, "ready to pass on", "only the current borrower can pass the book on")
		}
		if book.Status != store.StatusBorrowed {
			return faults.Wrap(faults.ErrInvalidState, "ready to pass on", fmt.Sprintf("book is %s", book.Status))
		}
		var err error
		recipient, err = c.handoffs.DecideRecipient(ctx, tx, book)
		if err != nil {
			return err
		}
		h, err = c.handoffs.Initiate(ctx, tx, book, userID, recipient.UserID, userID, batch)
		return err
	})
	if err != nil {
		return nil, handoff.Recipient{}, err
	}
	return h, recipient, nil
}

// ConfirmHandoff records userID's side of a handoff.
func (c *Coordinator) ConfirmHandoff(ctx context.Context, userID, handoffID string, role store.HandoffRole) (*handoff.ConfirmResult, error) {
	bookID, err := c.bookForHandoff(ctx, "confirm handoff", handoffID)
	if err != nil {
		return nil, err
	}
	var result *handoff.ConfirmResult
	err = c.mutate(ctx, "confirm handoff", bookID, func(ctx context.Context, tx *store.Tx, _ *store.Book, batch *events.Batch) error {
		var err error
		result, err = c.handoffs.Confirm(ctx, tx, handoffID, userID, role, batch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// BatchItem is one confirmation in a batch.
type BatchItem struct {
	HandoffID string
	Role      store.HandoffRole
}

// BatchResult classifies one item of a batch confirmation.
type BatchResult string

const (
	BatchClosed           BatchResult = "closed"
	BatchWaiting          BatchResult = "waiting"
	BatchAlreadyConfirmed BatchResult = "already_confirmed"
	BatchError            BatchResult = "error"
)

// BatchOutcome reports what happened to one batch item.
type BatchOutcome struct {
	HandoffID string
	Role      store.HandoffRole
	BookID    int64
	Result    BatchResult
	ErrorKind faults.Kind
	Message   string
}

// ConfirmBatch confirms each item independently. One failing item never
// affects the others.
func (c *Coordinator) ConfirmBatch(ctx context.Context, userID string, items []BatchItem) []BatchOutcome {
	outcomes := make([]BatchOutcome, 0, len(items))
	for _, item := range items {
		out := BatchOutcome{HandoffID: item.HandoffID, Role: item.Role}
		result, err := c.ConfirmHandoff(ctx, userID, item.HandoffID, item.Role)
		switch {
		case err == nil:
			out.BookID = result.Handoff.BookID
			out.Result = BatchWaiting
			if result.Outcome == handoff.OutcomeClosed {
				out.Result = BatchClosed
			}
		case errors.Is(err, faults.ErrAlreadyConfirmed):
			out.Result = BatchAlreadyConfirmed
			out.ErrorKind = faults.KindOf(err)
			out.Message = err.Error()
		default:
			out.Result = BatchError
			out.ErrorKind = faults.KindOf(err)
			out.Message = err.Error()
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// ConfirmAllWith confirms every open handoff between userID and
// counterpartyID that userID has not confirmed yet.
func (c *Coordinator) ConfirmAllWith(ctx context.Context, userID, counterpartyID string) ([]BatchOutcome, error) {
	counterpartyID = strings.TrimSpace(counterpartyID)
	if counterpartyID == "" || counterpartyID == userID {
		return nil, faults.Wrap(faults.ErrInvalidArgument, "confirm all", "name the other person in the handoffs")
	}
	open, err := c.store.ListOpenHandoffsBetween(ctx, userID, counterpartyID)
	if err != nil {
		return nil, err
	}
	items := make([]BatchItem, 0, len(open))
	for _, h := range open {
		role := store.RoleReceiver
		if h.GiverID == userID {
			role = store.RoleGiver
		}
		if h.ConfirmedAt(role) != nil {
			continue
		}
		items = append(items, BatchItem{HandoffID: h.ID, Role: role})
	}
	return c.ConfirmBatch(ctx, userID, items), nil
}
