// Package events collects the side effects of one circulation operation.
//
// Domain code appends notices, history entries, and visibility resets to a
// Batch while its transaction runs. The facade dispatches the batch only
// after commit, so a rolled-back operation never notifies anyone.
package events

import (
	"fmt"
	"time"
)

// NoticeKind identifies a user-facing notification.
type NoticeKind string

const (
	NoticeHandoffRequested NoticeKind = "handoff_requested"
	NoticeHandoffWaiting   NoticeKind = "handoff_waiting"
	NoticeHandoffCompleted NoticeKind = "handoff_completed"
	NoticeReturned         NoticeKind = "book_returned"
	NoticeYourTurn         NoticeKind = "your_turn"
	NoticePassEscalated    NoticeKind = "pass_escalated"
	NoticeMovedUp          NoticeKind = "moved_up"
	NoticeOfferExpired     NoticeKind = "offer_expired"
	NoticeRemovedFromQueue NoticeKind = "removed_from_queue"
	NoticeGiftReceived     NoticeKind = "gift_received"
	NoticeGiftGiven        NoticeKind = "gift_given"
	NoticeShelfPaused      NoticeKind = "shelf_paused"
	NoticeShelfResumed     NoticeKind = "shelf_resumed"
	NoticeRecallRequested  NoticeKind = "recall_requested"
	NoticeTest             NoticeKind = "test_notification"
)

// Category groups notice kinds for per-category delivery toggles.
type Category string

const (
	CategoryHandoffs Category = "handoffs"
	CategoryQueue    Category = "queue"
	CategoryGifts    Category = "gifts"
	CategoryShelf    Category = "shelf"
)

// Category returns the delivery category of k.
func (k NoticeKind) Category() Category {
	switch k {
	case NoticeHandoffRequested, NoticeHandoffWaiting, NoticeHandoffCompleted, NoticeReturned, NoticeRecallRequested:
		return CategoryHandoffs
	case NoticeYourTurn, NoticePassEscalated, NoticeMovedUp, NoticeOfferExpired, NoticeRemovedFromQueue:
		return CategoryQueue
	case NoticeGiftReceived, NoticeGiftGiven:
		return CategoryGifts
	case NoticeShelfPaused, NoticeShelfResumed:
		return CategoryShelf
	default:
		return CategoryHandoffs
	}
}

// Notice is one message to one user.
type Notice struct {
	UserID  string
	Kind    NoticeKind
	Message string
	Link    string
	Data    map[string]any
}

// HistoryType names an audit ledger event.
type HistoryType string

const (
	HistoryBookAdded        HistoryType = "book_added"
	HistoryBookRemoved      HistoryType = "book_removed"
	HistoryHandoffInitiated HistoryType = "handoff_initiated"
	HistoryHandoffConfirmed HistoryType = "handoff_confirmed"
	HistoryLoanStarted      HistoryType = "loan_started"
	HistoryBookReturned     HistoryType = "book_returned"
	HistoryHoldingEnded     HistoryType = "holding_ended"
	HistoryQueueJoined      HistoryType = "queue_joined"
	HistoryQueueLeft        HistoryType = "queue_left"
	HistoryOfferPassed      HistoryType = "offer_passed"
	HistoryPassEscalated    HistoryType = "pass_escalated"
	HistoryGiftFlagChanged  HistoryType = "gift_flag_changed"
	HistoryGiftTransferred  HistoryType = "gift_transferred"
	HistoryShelfOff         HistoryType = "shelf_off"
	HistoryShelfOn          HistoryType = "shelf_on"
	HistoryRecallRequested  HistoryType = "recall_requested"
	HistoryRecallCancelled  HistoryType = "recall_cancelled"
	HistoryVisibilityReset  HistoryType = "visibility_reset"
)

// HistoryEntry is one audit record awaiting append.
type HistoryEntry struct {
	Type       HistoryType
	BookID     int64
	UserID     string
	OccurredAt time.Time
	Metadata   map[string]any
}

// VisibilityReset asks the circle-membership collaborator to recompute where
// a book is visible after its owner changed.
type VisibilityReset struct {
	BookID  int64
	OwnerID string
}

// Batch accumulates the effects of one operation.
type Batch struct {
	Notices    []Notice
	History    []HistoryEntry
	Visibility []VisibilityReset
}

// Notify queues a notice.
func (b *Batch) Notify(userID string, kind NoticeKind, bookID int64, message string, data map[string]any) {
	if b == nil || userID == "" {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["book_id"] = bookID
	b.Notices = append(b.Notices, Notice{
		UserID:  userID,
		Kind:    kind,
		Message: message,
		Link:    BookLink(bookID),
		Data:    data,
	})
}

// Record queues a history entry.
func (b *Batch) Record(kind HistoryType, bookID int64, userID string, at time.Time, metadata map[string]any) {
	if b == nil {
		return
	}
	b.History = append(b.History, HistoryEntry{
		Type:       kind,
		BookID:     bookID,
		UserID:     userID,
		OccurredAt: at,
		Metadata:   metadata,
	})
}

// ResetVisibility queues a visibility recompute for the book's new owner.
func (b *Batch) ResetVisibility(bookID int64, ownerID string) {
	if b == nil {
		return
	}
	b.Visibility = append(b.Visibility, VisibilityReset{BookID: bookID, OwnerID: ownerID})
}

// Empty reports whether the batch carries nothing to dispatch.
func (b *Batch) Empty() bool {
	return b == nil || (len(b.Notices) == 0 && len(b.History) == 0 && len(b.Visibility) == 0)
}

// NoticesFor returns the notices addressed to userID.
func (b *Batch) NoticesFor(userID string) []Notice {
	var out []Notice
	for _, n := range b.Notices {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// BookLink is the app-relative link a notice points at.
func BookLink(bookID int64) string {
	return fmt.Sprintf("/books/%d", bookID)
}
