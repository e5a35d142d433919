package store

import (
	"fmt"
	"strings"
	"time"
)

// Status is the circulation state of a book.
type Status string

const (
	StatusAvailable Status = "available"
	StatusBorrowed  Status = "borrowed"
	StatusInTransit Status = "in_transit"
	StatusOffShelf  Status = "off_shelf"
)

var allStatuses = []Status{
	StatusAvailable,
	StatusBorrowed,
	StatusInTransit,
	StatusOffShelf,
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a string into a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// HasHolder reports whether a book in this status must have a holder.
func (s Status) HasHolder() bool {
	switch s {
	case StatusBorrowed, StatusInTransit:
		return true
	case StatusAvailable, StatusOffShelf:
		return false
	default:
		return false
	}
}

// OnOwnerShelf reports whether the owner physically has the book.
func (s Status) OnOwnerShelf() bool {
	switch s {
	case StatusAvailable, StatusOffShelf:
		return true
	case StatusBorrowed, StatusInTransit:
		return false
	default:
		return false
	}
}

// ReturnStatus records where a book lands when it comes back to its owner.
// The zero value means the default, available.
type ReturnStatus string

const ReturnOffShelf ReturnStatus = "off_shelf"

// Book is one physical copy with one owner and at most one holder.
// OwnerRecallActive drives the recipient decision; RecallRequested records
// that the owner asked for it explicitly, so cancelling a pending off-shelf
// return leaves that recall in place.
type Book struct {
	ID                int64
	Title             string
	Author            string
	OwnerID           string
	HolderID          string
	Status            Status
	DueDate           *time.Time
	GiftOnBorrow      bool
	OwnerRecallActive bool
	RecallRequested   bool
	OffShelfReturn    ReturnStatus
	HolderSince       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Possessor is whoever physically has the book right now.
func (b *Book) Possessor() string {
	if b.HolderID != "" {
		return b.HolderID
	}
	return b.OwnerID
}

// CheckInvariants verifies the holder and due-date rules for the current status.
func (b *Book) CheckInvariants() error {
	if (b.HolderID != "") != b.Status.HasHolder() {
		return fmt.Errorf("book %d: holder %q inconsistent with status %s", b.ID, b.HolderID, b.Status)
	}
	if b.DueDate != nil && b.Status != StatusBorrowed {
		return fmt.Errorf("book %d: due date set while %s", b.ID, b.Status)
	}
	if (b.HolderSince != nil) != (b.HolderID != "") {
		return fmt.Errorf("book %d: holder_since inconsistent with holder %q", b.ID, b.HolderID)
	}
	if b.RecallRequested && !b.OwnerRecallActive {
		return fmt.Errorf("book %d: recall requested but not active", b.ID)
	}
	return nil
}

// QueueEntry is one user's place in a book's waitlist.
type QueueEntry struct {
	BookID         int64
	UserID         string
	Position       int
	PassCount      int
	LastPassReason string
	JoinedAt       time.Time
	OfferedAt      *time.Time
}

// HandoffKind distinguishes a return to the owner from a pass onward.
type HandoffKind string

const (
	HandoffReturn   HandoffKind = "return"
	HandoffPagepass HandoffKind = "pagepass"
)

// HandoffRole names a party to a handoff.
type HandoffRole string

const (
	RoleGiver    HandoffRole = "giver"
	RoleReceiver HandoffRole = "receiver"
)

// ParseRole converts a string into a HandoffRole.
func ParseRole(value string) (HandoffRole, bool) {
	switch HandoffRole(strings.ToLower(strings.TrimSpace(value))) {
	case RoleGiver:
		return RoleGiver, true
	case RoleReceiver:
		return RoleReceiver, true
	default:
		return "", false
	}
}

// Handoff is a two-party confirmation moving a book between people.
type Handoff struct {
	ID                  string
	BookID              int64
	GiverID             string
	ReceiverID          string
	Kind                HandoffKind
	CreatedAt           time.Time
	GiverConfirmedAt    *time.Time
	ReceiverConfirmedAt *time.Time
	BothConfirmedAt     *time.Time
}

// Open reports whether the handoff still awaits a confirmation.
func (h *Handoff) Open() bool {
	return h.BothConfirmedAt == nil
}

// Party returns the user expected to confirm in role.
func (h *Handoff) Party(role HandoffRole) string {
	if role == RoleGiver {
		return h.GiverID
	}
	return h.ReceiverID
}

// ConfirmedAt returns the confirmation timestamp for role.
func (h *Handoff) ConfirmedAt(role HandoffRole) *time.Time {
	if role == RoleGiver {
		return h.GiverConfirmedAt
	}
	return h.ReceiverConfirmedAt
}

// Counterparty returns the other party of the handoff for userID.
func (h *Handoff) Counterparty(userID string) string {
	if userID == h.GiverID {
		return h.ReceiverID
	}
	return h.GiverID
}

// Acquisition names how an owner came to own a book.
type Acquisition string

const (
	AcquiredAdded Acquisition = "added"
	AcquiredGift  Acquisition = "gift"
)

// OwnershipRecord is one owner's tenure of a book.
type OwnershipRecord struct {
	ID              int64
	BookID          int64
	OwnerID         string
	AcquiredVia     Acquisition
	AcquiredAt      time.Time
	EndedAt         *time.Time
	PreviousOwnerID string
}

// BookFilter narrows ListBooks.
type BookFilter struct {
	OwnerID  string
	HolderID string
	Statuses []Status
}
