package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Book describes a book in a transport-friendly format.
type Book struct {
	ID                int64  `json:"id"`
	Title             string `json:"title"`
	Author            string `json:"author,omitempty"`
	OwnerID           string `json:"ownerId"`
	HolderID          string `json:"holderId,omitempty"`
	Status            string `json:"status"`
	DueDate           string `json:"dueDate,omitempty"`
	HolderSince       string `json:"holderSince,omitempty"`
	GiftOnBorrow      bool   `json:"giftOnBorrow"`
	OwnerRecallActive bool   `json:"ownerRecallActive"`
	OffShelfOnReturn  bool   `json:"offShelfOnReturn"`
	CreatedAt         string `json:"createdAt,omitempty"`
	UpdatedAt         string `json:"updatedAt,omitempty"`
}

// QueueEntry is one user's place in a waitlist.
type QueueEntry struct {
	BookID         int64  `json:"bookId"`
	UserID         string `json:"userId"`
	Position       int    `json:"position"`
	PassCount      int    `json:"passCount"`
	LastPassReason string `json:"lastPassReason,omitempty"`
	JoinedAt       string `json:"joinedAt,omitempty"`
	OfferedAt      string `json:"offeredAt,omitempty"`
}

// Handoff describes a two-party handoff.
type Handoff struct {
	ID                  string `json:"id"`
	BookID              int64  `json:"bookId"`
	GiverID             string `json:"giverId"`
	ReceiverID          string `json:"receiverId"`
	Kind                string `json:"kind"`
	CreatedAt           string `json:"createdAt,omitempty"`
	GiverConfirmedAt    string `json:"giverConfirmedAt,omitempty"`
	ReceiverConfirmedAt string `json:"receiverConfirmedAt,omitempty"`
	BothConfirmedAt     string `json:"bothConfirmedAt,omitempty"`
	Open                bool   `json:"open"`
}

// OwnershipRecord is one owner's tenure.
type OwnershipRecord struct {
	ID              int64  `json:"id"`
	BookID          int64  `json:"bookId"`
	OwnerID         string `json:"ownerId"`
	AcquiredVia     string `json:"acquiredVia"`
	AcquiredAt      string `json:"acquiredAt"`
	EndedAt         string `json:"endedAt,omitempty"`
	PreviousOwnerID string `json:"previousOwnerId,omitempty"`
}

// ConfirmResult reports one confirmation.
type ConfirmResult struct {
	Outcome string  `json:"outcome"`
	Kind    string  `json:"kind"`
	Gifted  bool    `json:"gifted"`
	Handoff Handoff `json:"handoff"`
	Book    *Book   `json:"book,omitempty"`
}

// BatchItemResult reports one item of a batch confirmation.
type BatchItemResult struct {
	HandoffID string `json:"handoffId"`
	Role      string `json:"role"`
	BookID    int64  `json:"bookId,omitempty"`
	Result    string `json:"result"`
	ErrorKind string `json:"errorKind,omitempty"`
	Message   string `json:"message,omitempty"`
}

// BatchSummary aggregates a batch confirmation.
type BatchSummary struct {
	ClosedCount  int               `json:"closedCount"`
	WaitingCount int               `json:"waitingCount"`
	FailedCount  int               `json:"failedCount"`
	Items        []BatchItemResult `json:"items"`
}

// PassResult reports a pass on an offer.
type PassResult struct {
	UserID         string `json:"userId"`
	PassCount      int    `json:"passCount"`
	Position       int    `json:"position"`
	Escalated      bool   `json:"escalated"`
	PromotedUserID string `json:"promotedUserId,omitempty"`
}

// JoinResult reports a queue join.
type JoinResult struct {
	BookID   int64 `json:"bookId"`
	Position int   `json:"position"`
}

// GiftFlag reports the gift flag after a toggle.
type GiftFlag struct {
	BookID       int64 `json:"bookId"`
	GiftOnBorrow bool  `json:"giftOnBorrow"`
}

// ReadyResponse reports the handoff opened when a holder is done with a book.
type ReadyResponse struct {
	Handoff     Handoff `json:"handoff"`
	RecipientID string  `json:"recipientId"`
	Reason      string  `json:"reason"`
}

// SweepReport summarizes an offer-expiry sweep.
type SweepReport struct {
	Checked   int `json:"checked"`
	Passed    int `json:"passed"`
	Escalated int `json:"escalated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// HistoryEvent is one audit ledger entry.
type HistoryEvent struct {
	ID         int64          `json:"id"`
	Type       string         `json:"type"`
	BookID     int64          `json:"bookId,omitempty"`
	UserID     string         `json:"userId,omitempty"`
	OccurredAt string         `json:"occurredAt"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// TypeCount is the number of ledger events of one type.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// ErrorDetail carries a classified failure.
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ErrorBody is the error envelope returned by the HTTP API.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// Health reports daemon liveness.
type Health struct {
	Status      string `json:"status"`
	PID         int    `json:"pid"`
	StartedAt   string `json:"startedAt"`
	OfferWindow string `json:"offerWindow"`
	NextSweep   string `json:"nextSweep,omitempty"`
}

// ListResponse wraps collection payloads.
type ListResponse[T any] struct {
	Items []T `json:"items"`
}
