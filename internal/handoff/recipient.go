package handoff

import (
	"context"

	"pagepass/internal/store"
)

// RecipientReason explains why a recipient was chosen.
type RecipientReason string

const (
	ReasonRecall RecipientReason = "recall"
	ReasonQueue  RecipientReason = "queue"
	ReasonReturn RecipientReason = "return"
)

// Recipient is the next person a book should go to.
type Recipient struct {
	UserID string
	Reason RecipientReason
}

// DecideRecipient picks who receives book when its holder is done with it:
// the owner on recall, otherwise the head of the queue, otherwise the owner.
// It reads current state from tx on every call.
func (c *Coordinator) DecideRecipient(ctx context.Context, tx *store.Tx, book *store.Book) (Recipient, error) {
	if book.OwnerRecallActive {
		return Recipient{UserID: book.OwnerID, Reason: ReasonRecall}, nil
	}
	head, err := c.queue.PeekHead(ctx, tx, book.ID)
	if err != nil {
		return Recipient{}, err
	}
	if head != nil {
		return Recipient{UserID: head.UserID, Reason: ReasonQueue}, nil
	}
	return Recipient{UserID: book.OwnerID, Reason: ReasonReturn}, nil
}
