package circulation

import (
	"context"

	"pagepass/internal/events"
	"pagepass/internal/logging"
)

// dispatch delivers a committed batch. Every failure is logged and dropped.
func (c *Coordinator) dispatch(ctx context.Context, op string, batch *events.Batch) {
	if batch.Empty() {
		return
	}
	logger := logging.WithContext(ctx, c.logger)

	for _, entry := range batch.History {
		if err := c.ledger.Append(ctx, entry); err != nil {
			logging.WarnWithContext(logger, "history append failed", "history_append_failed",
				logging.String("operation", op),
				logging.String("history_type", string(entry.Type)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check database health with pagepass status"),
				logging.String(logging.FieldImpact, "audit trail is missing this entry"),
			)
		}
	}
	for _, reset := range batch.Visibility {
		if err := c.visibility.ResetVisibility(ctx, reset.BookID, reset.OwnerID); err != nil {
			logging.WarnWithContext(logger, "visibility reset failed", "visibility_reset_failed",
				logging.String("operation", op),
				logging.String("owner_id", reset.OwnerID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "book may stay visible in the previous owner's circles"),
			)
		}
	}
	for _, notice := range batch.Notices {
		if err := c.notifier.Notify(ctx, notice); err != nil {
			logging.WarnWithContext(logger, "notification failed", "notification_failed",
				logging.String("operation", op),
				logging.String(logging.FieldUserID, notice.UserID),
				logging.String("notice_kind", string(notice.Kind)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "verify notifications.ntfy_url is reachable"),
				logging.String(logging.FieldImpact, "user was not told about this change"),
			)
		}
	}
	logger.Debug("effects dispatched",
		logging.String("operation", op),
		logging.Int("notices", len(batch.Notices)),
		logging.Int("history", len(batch.History)),
	)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, events.Notice) error { return nil }

type nopLedger struct{}

func (nopLedger) Append(context.Context, events.HistoryEntry) error { return nil }

type nopVisibility struct{}

func (nopVisibility) ResetVisibility(context.Context, int64, string) error { return nil }
