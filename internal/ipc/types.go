package ipc

import "pagepass/internal/api"

// StartRequest asks the daemon to start its services.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops daemon services.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon and database status.
type StatusResponse struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	StartedAt     string         `json:"started_at"`
	DBPath        string         `json:"db_path"`
	LockPath      string         `json:"lock_path"`
	APIAddress    string         `json:"api_address"`
	OfferWindow   string         `json:"offer_window"`
	NextSweep     string         `json:"next_sweep"`
	Books         map[string]int `json:"books"`
	SchemaVersion int            `json:"schema_version"`
	OpenHandoffs  int            `json:"open_handoffs"`
	QueuedEntries int            `json:"queued_entries"`
	DatabaseError string         `json:"database_error"`
}

// BookRequest names a book acted on by a user.
type BookRequest struct {
	UserID string `json:"user_id"`
	BookID int64  `json:"book_id"`
}

// AddBookRequest creates a book.
type AddBookRequest struct {
	UserID string `json:"user_id"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

// BookListRequest filters a book listing.
type BookListRequest struct {
	OwnerID  string   `json:"owner_id"`
	HolderID string   `json:"holder_id"`
	Statuses []string `json:"statuses"`
}

// BookListResponse contains books.
type BookListResponse struct {
	Items []api.Book `json:"items"`
}

// BookResponse carries one book.
type BookResponse struct {
	Book api.Book `json:"book"`
}

// EmptyResponse acknowledges an operation without a payload.
type EmptyResponse struct{}

// HandoffResponse carries one handoff.
type HandoffResponse struct {
	Handoff api.Handoff `json:"handoff"`
}

// HandoffListRequest lists open handoffs of a user.
type HandoffListRequest struct {
	UserID string `json:"user_id"`
}

// HandoffListResponse contains handoffs.
type HandoffListResponse struct {
	Items []api.Handoff `json:"items"`
}

// ReadyResponse carries the handoff opened by a holder.
type ReadyResponse struct {
	Ready api.ReadyResponse `json:"ready"`
}

// ConfirmRequest confirms one side of a handoff.
type ConfirmRequest struct {
	UserID    string `json:"user_id"`
	HandoffID string `json:"handoff_id"`
	Role      string `json:"role"`
}

// ConfirmResponse carries the confirmation result.
type ConfirmResponse struct {
	Result api.ConfirmResult `json:"result"`
}

// ConfirmBatchRequest confirms several handoffs.
type ConfirmBatchRequest struct {
	UserID string                 `json:"user_id"`
	Items  []api.BatchConfirmItem `json:"items"`
}

// ConfirmWithRequest confirms every open handoff with a counterparty.
type ConfirmWithRequest struct {
	UserID         string `json:"user_id"`
	CounterpartyID string `json:"counterparty_id"`
}

// BatchResponse carries a batch summary.
type BatchResponse struct {
	Summary api.BatchSummary `json:"summary"`
}

// GiftResponse carries the gift flag after a toggle.
type GiftResponse struct {
	Flag api.GiftFlag `json:"flag"`
}

// JoinResponse carries the assigned queue position.
type JoinResponse struct {
	Joined api.JoinResult `json:"joined"`
}

// PassRequest declines an offer.
type PassRequest struct {
	UserID string `json:"user_id"`
	BookID int64  `json:"book_id"`
	Reason string `json:"reason"`
}

// PassResponse carries the pass outcome.
type PassResponse struct {
	Result api.PassResult `json:"result"`
}

// QueueResponse contains waitlist entries.
type QueueResponse struct {
	Items []api.QueueEntry `json:"items"`
}

// OwnershipResponse contains the ownership chain.
type OwnershipResponse struct {
	Items []api.OwnershipRecord `json:"items"`
}

// HistoryRequest filters ledger queries.
type HistoryRequest struct {
	BookID int64    `json:"book_id"`
	UserID string   `json:"user_id"`
	Types  []string `json:"types"`
	Limit  int      `json:"limit"`
}

// HistoryResponse contains ledger events.
type HistoryResponse struct {
	Items []api.HistoryEvent `json:"items"`
}

// HistoryStatsResponse contains per-type counts.
type HistoryStatsResponse struct {
	Items []api.TypeCount `json:"items"`
}

// SweepRequest triggers an offer sweep.
type SweepRequest struct{}

// SweepResponse carries the sweep report.
type SweepResponse struct {
	Report api.SweepReport `json:"report"`
}

// TestNotificationRequest sends a test notice to a user.
type TestNotificationRequest struct {
	UserID string `json:"user_id"`
}

// TestNotificationResponse reports whether the notice was sent.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
