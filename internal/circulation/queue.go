package circulation

import (
	"context"
	"strings"

	"pagepass/internal/events"
	"pagepass/internal/store"
	"pagepass/internal/waitlist"
)

// JoinQueue adds userID to the end of the book's waitlist.
func (c *Coordinator) JoinQueue(ctx context.Context, userID string, bookID int64) (int, error) {
	var position int
	err := c.mutate(ctx, "join queue", bookID, func(ctx context.Context, tx *store.Tx, book *store.Book, batch *events.Batch) error {
		var err error
		position, err = c.queue.Join(ctx, tx, book, userID, batch)
		return err
	})
	return position, err
}

// LeaveQueue removes userID from the waitlist.
func (c *Coordinator) LeaveQueue(ctx context.Context, userID string, bookID int64) error {
	return c.mutate(ctx, "leave queue", bookID, func(ctx context.Context, tx *store.Tx, book *store.Book, batch *events.Batch) error {
		return c.queue.Leave(ctx, tx, book, userID, batch)
	})
}

// PassOffer records that userID does not want the book right now.
func (c *Coordinator) PassOffer(ctx context.Context, userID string, bookID int64, reason string) (waitlist.PassResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "not right now"
	}
	var result waitlist.PassResult
	err := c.mutate(ctx, "pass", bookID, func(ctx context.Context, tx *store.Tx, book *store.Book, batch *events.Batch) error {
		var err error
		result, err = c.queue.RecordPass(ctx, tx, book, userID, reason, batch)
		return err
	})
	return result, err
}
