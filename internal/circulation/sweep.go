package circulation

import (
	"context"
	"fmt"
	"time"

	"pagepass/internal/events"
	"pagepass/internal/logging"
	"pagepass/internal/store"
	"pagepass/internal/waitlist"
)

// SweepReport summarizes one offer-expiry sweep.
type SweepReport struct {
	Checked   int
	Passed    int
	Escalated int
	Skipped   int
	Failed    int
}

// SweepExpiredOffers passes on behalf of every queue head who has left an
// offer open longer than the offer window. Each candidate is re-checked under
// its book lock, so an offer that was answered or restarted in the meantime
// is skipped.
func (c *Coordinator) SweepExpiredOffers(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	cutoff := c.clock().UTC().Add(-c.offerWindow)
	candidates, err := c.store.ExpiredOffers(ctx, cutoff)
	if err != nil {
		return report, fmt.Errorf("list expired offers: %w", err)
	}
	reason := fmt.Sprintf("no response within %s", formatWindow(c.offerWindow))
	logger := logging.WithContext(ctx, c.logger)

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		var (
			result  waitlist.PassResult
			expired bool
		)
		err := c.mutate(ctx, "offer sweep", candidate.BookID, func(ctx context.Context, tx *store.Tx, book *store.Book, batch *events.Batch) error {
			expired = false
			if book.Status != store.StatusAvailable {
				return nil
			}
			head, err := c.queue.PeekHead(ctx, tx, book.ID)
			if err != nil {
				return err
			}
			if head == nil || head.UserID != candidate.UserID || head.OfferedAt == nil || head.OfferedAt.After(tx.Now().Add(-c.offerWindow)) {
				return nil
			}
			expired = true
			result, err = c.queue.RecordPass(ctx, tx, book, head.UserID, reason, batch)
			if err != nil {
				return err
			}
			batch.Notify(head.UserID, events.NoticeOfferExpired, book.ID,
				fmt.Sprintf("Your turn for %q passed after %s without a response.", book.Title, formatWindow(c.offerWindow)),
				map[string]any{"pass_count": result.PassCount, "escalated": result.Escalated})
			return nil
		})
		switch {
		case err != nil:
			report.Failed++
			logging.WarnWithContext(logger, "offer sweep failed for book", "offer_sweep_failed",
				logging.Int64(logging.FieldBookID, candidate.BookID),
				logging.String(logging.FieldUserID, candidate.UserID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "offer stays open until the next sweep"),
			)
		case !expired:
			report.Skipped++
		default:
			report.Passed++
			if result.Escalated {
				report.Escalated++
			}
		}
	}

	return report, nil
}

func formatWindow(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d/time.Hour))
	}
	return d.String()
}
