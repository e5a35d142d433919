package api

import (
	"time"

	"pagepass/internal/circulation"
	"pagepass/internal/faults"
	"pagepass/internal/handoff"
	"pagepass/internal/history"
	"pagepass/internal/store"
	"pagepass/internal/waitlist"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// FromBook converts a store book to its API representation.
func FromBook(book *store.Book) Book {
	if book == nil {
		return Book{}
	}
	return Book{
		ID:                book.ID,
		Title:             book.Title,
		Author:            book.Author,
		OwnerID:           book.OwnerID,
		HolderID:          book.HolderID,
		Status:            string(book.Status),
		DueDate:           formatTimePtr(book.DueDate),
		HolderSince:       formatTimePtr(book.HolderSince),
		GiftOnBorrow:      book.GiftOnBorrow,
		OwnerRecallActive: book.OwnerRecallActive,
		OffShelfOnReturn:  book.OffShelfReturn == store.ReturnOffShelf,
		CreatedAt:         formatTime(book.CreatedAt),
		UpdatedAt:         formatTime(book.UpdatedAt),
	}
}

// FromBooks converts a slice of books into API DTOs.
func FromBooks(books []*store.Book) []Book {
	out := make([]Book, 0, len(books))
	for _, book := range books {
		out = append(out, FromBook(book))
	}
	return out
}

// FromQueueEntries converts waitlist entries, preserving position order.
func FromQueueEntries(entries []store.QueueEntry) []QueueEntry {
	out := make([]QueueEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, QueueEntry{
			BookID:         e.BookID,
			UserID:         e.UserID,
			Position:       e.Position,
			PassCount:      e.PassCount,
			LastPassReason: e.LastPassReason,
			JoinedAt:       formatTime(e.JoinedAt),
			OfferedAt:      formatTimePtr(e.OfferedAt),
		})
	}
	return out
}

// FromHandoff converts a handoff record.
func FromHandoff(h *store.Handoff) Handoff {
	if h == nil {
		return Handoff{}
	}
	return Handoff{
		ID:                  h.ID,
		BookID:              h.BookID,
		GiverID:             h.GiverID,
		ReceiverID:          h.ReceiverID,
		Kind:                string(h.Kind),
		CreatedAt:           formatTime(h.CreatedAt),
		GiverConfirmedAt:    formatTimePtr(h.GiverConfirmedAt),
		ReceiverConfirmedAt: formatTimePtr(h.ReceiverConfirmedAt),
		BothConfirmedAt:     formatTimePtr(h.BothConfirmedAt),
		Open:                h.Open(),
	}
}

// FromHandoffs converts a slice of handoffs.
func FromHandoffs(handoffs []*store.Handoff) []Handoff {
	out := make([]Handoff, 0, len(handoffs))
	for _, h := range handoffs {
		out = append(out, FromHandoff(h))
	}
	return out
}

// FromOwnership converts an ownership history, oldest first.
func FromOwnership(records []store.OwnershipRecord) []OwnershipRecord {
	out := make([]OwnershipRecord, 0, len(records))
	for _, r := range records {
		out = append(out, OwnershipRecord{
			ID:              r.ID,
			BookID:          r.BookID,
			OwnerID:         r.OwnerID,
			AcquiredVia:     string(r.AcquiredVia),
			AcquiredAt:      formatTime(r.AcquiredAt),
			EndedAt:         formatTimePtr(r.EndedAt),
			PreviousOwnerID: r.PreviousOwnerID,
		})
	}
	return out
}

// FromConfirmResult converts the result of one confirmation.
func FromConfirmResult(result *handoff.ConfirmResult) ConfirmResult {
	if result == nil {
		return ConfirmResult{}
	}
	dto := ConfirmResult{
		Outcome: string(result.Outcome),
		Kind:    string(result.Kind),
		Gifted:  result.Gifted,
		Handoff: FromHandoff(result.Handoff),
	}
	if result.Book != nil {
		b := FromBook(result.Book)
		dto.Book = &b
	}
	return dto
}

// SummarizeBatch converts per-item outcomes and counts them by result.
// Already-confirmed items are reported but counted neither as closed nor as
// failed.
func SummarizeBatch(outcomes []circulation.BatchOutcome) BatchSummary {
	summary := BatchSummary{Items: make([]BatchItemResult, 0, len(outcomes))}
	for _, o := range outcomes {
		switch o.Result {
		case circulation.BatchClosed:
			summary.ClosedCount++
		case circulation.BatchWaiting:
			summary.WaitingCount++
		case circulation.BatchError:
			summary.FailedCount++
		}
		summary.Items = append(summary.Items, BatchItemResult{
			HandoffID: o.HandoffID,
			Role:      string(o.Role),
			BookID:    o.BookID,
			Result:    string(o.Result),
			ErrorKind: string(o.ErrorKind),
			Message:   o.Message,
		})
	}
	return summary
}

// FromPassResult converts a pass outcome.
func FromPassResult(result waitlist.PassResult) PassResult {
	return PassResult{
		UserID:         result.UserID,
		PassCount:      result.PassCount,
		Position:       result.Position,
		Escalated:      result.Escalated,
		PromotedUserID: result.PromotedUserID,
	}
}

// FromReady converts the handoff and recipient chosen by MarkReadyToPassOn.
func FromReady(h *store.Handoff, recipient handoff.Recipient) ReadyResponse {
	return ReadyResponse{
		Handoff:     FromHandoff(h),
		RecipientID: recipient.UserID,
		Reason:      string(recipient.Reason),
	}
}

// FromSweepReport converts a sweep summary.
func FromSweepReport(report circulation.SweepReport) SweepReport {
	return SweepReport{
		Checked:   report.Checked,
		Passed:    report.Passed,
		Escalated: report.Escalated,
		Skipped:   report.Skipped,
		Failed:    report.Failed,
	}
}

// FromHistoryEvents converts ledger events.
func FromHistoryEvents(items []history.Event) []HistoryEvent {
	out := make([]HistoryEvent, 0, len(items))
	for _, e := range items {
		out = append(out, HistoryEvent{
			ID:         e.ID,
			Type:       string(e.Type),
			BookID:     e.BookID,
			UserID:     e.UserID,
			OccurredAt: formatTime(e.OccurredAt),
			Metadata:   e.Metadata,
		})
	}
	return out
}

// FromTypeCounts converts ledger statistics.
func FromTypeCounts(counts []history.TypeCount) []TypeCount {
	out := make([]TypeCount, 0, len(counts))
	for _, c := range counts {
		out = append(out, TypeCount{Type: string(c.Type), Count: c.Count})
	}
	return out
}

// ErrorFrom classifies err into the error envelope. Infrastructure failures
// are reported without their detail.
func ErrorFrom(err error) ErrorBody {
	if err == nil {
		return ErrorBody{}
	}
	kind := faults.KindOf(err)
	message := err.Error()
	if kind == faults.KindInternal {
		message = "internal error"
	}
	return ErrorBody{Error: ErrorDetail{Kind: string(kind), Message: message}}
}
