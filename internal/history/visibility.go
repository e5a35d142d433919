package history

import (
	"context"

	"pagepass/internal/events"
	"pagepass/internal/logging"
)

// VisibilityRecorder stands in for the circle-membership service: it records
// each reset request in the ledger so the collaborator can pick it up.
type VisibilityRecorder struct {
	ledger *Ledger
}

// NewVisibilityRecorder returns a recorder writing to ledger.
func NewVisibilityRecorder(ledger *Ledger) *VisibilityRecorder {
	return &VisibilityRecorder{ledger: ledger}
}

// ResetVisibility records that bookID must be re-scoped to ownerID's circles.
func (v *VisibilityRecorder) ResetVisibility(ctx context.Context, bookID int64, ownerID string) error {
	if err := v.ledger.Append(ctx, events.HistoryEntry{
		Type:     events.HistoryVisibilityReset,
		BookID:   bookID,
		UserID:   ownerID,
		Metadata: map[string]any{"reason": "ownership_changed"},
	}); err != nil {
		return err
	}
	logging.WithContext(ctx, v.ledger.logger).Info("visibility reset requested",
		logging.String(logging.FieldEventType, "visibility_reset"),
		logging.Int64(logging.FieldBookID, bookID),
		logging.String("owner_id", ownerID),
	)
	return nil
}
