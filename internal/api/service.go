package api

import (
	"context"
	"fmt"
	"strings"

	"pagepass/internal/circulation"
	"pagepass/internal/events"
	"pagepass/internal/faults"
	"pagepass/internal/handoff"
	"pagepass/internal/history"
	"pagepass/internal/store"
	"pagepass/internal/waitlist"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// Circulation abstracts the coordinator operations exposed over the API.
type Circulation interface {
	AddBook(ctx context.Context, ownerID, title, author string) (*store.Book, error)
	RemoveBook(ctx context.Context, ownerID string, bookID int64) error
	Recall(ctx context.Context, ownerID string, bookID int64) (*store.Book, error)
	ToggleGift(ctx context.Context, ownerID string, bookID int64) (bool, error)
	ToggleShelf(ctx context.Context, ownerID string, bookID int64) (*store.Book, error)
	RequestBorrow(ctx context.Context, userID string, bookID int64) (*store.Handoff, error)
	MarkReadyToPassOn(ctx context.Context, userID string, bookID int64) (*store.Handoff, handoff.Recipient, error)
	ConfirmHandoff(ctx context.Context, userID, handoffID string, role store.HandoffRole) (*handoff.ConfirmResult, error)
	ConfirmBatch(ctx context.Context, userID string, items []circulation.BatchItem) []circulation.BatchOutcome
	ConfirmAllWith(ctx context.Context, userID, counterpartyID string) ([]circulation.BatchOutcome, error)
	JoinQueue(ctx context.Context, userID string, bookID int64) (int, error)
	LeaveQueue(ctx context.Context, userID string, bookID int64) error
	PassOffer(ctx context.Context, userID string, bookID int64, reason string) (waitlist.PassResult, error)
	Book(ctx context.Context, bookID int64) (*store.Book, error)
	Books(ctx context.Context, filter store.BookFilter) ([]*store.Book, error)
	Queue(ctx context.Context, bookID int64) ([]store.QueueEntry, error)
	Waitlists(ctx context.Context, userID string) ([]store.QueueEntry, error)
	OpenHandoffs(ctx context.Context, userID string) ([]*store.Handoff, error)
	Ownership(ctx context.Context, bookID int64) ([]store.OwnershipRecord, error)
	Stats(ctx context.Context) (map[store.Status]int, error)
}

// HistoryReader abstracts ledger queries.
type HistoryReader interface {
	Query(ctx context.Context, filter history.Filter) ([]history.Event, error)
	Stats(ctx context.Context, filter history.Filter) ([]history.TypeCount, error)
}

// SweepRunner performs an immediate offer-expiry sweep.
type SweepRunner interface {
	RunOnce(ctx context.Context) (circulation.SweepReport, error)
}

// BookQuery narrows a book listing. Empty fields match everything.
type BookQuery struct {
	OwnerID  string
	HolderID string
	Statuses []string
}

// HistoryQuery narrows a ledger listing.
type HistoryQuery struct {
	BookID int64
	UserID string
	Types  []string
	Limit  int
}

// Service exposes circulation operations returning API DTOs.
type Service struct {
	circulation Circulation
	history     HistoryReader
	sweeper     SweepRunner
}

// NewService constructs a Service. history and sweeper may be nil, in which
// case the corresponding operations report an internal error.
func NewService(c Circulation, h HistoryReader, s SweepRunner) *Service {
	return &Service{circulation: c, history: h, sweeper: s}
}

// AddBook validates req and creates a book owned by userID.
func (s *Service) AddBook(ctx context.Context, userID string, req AddBookRequest) (Book, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Author = strings.TrimSpace(req.Author)
	if err := Validate(req); err != nil {
		return Book{}, err
	}
	book, err := s.circulation.AddBook(ctx, userID, req.Title, req.Author)
	if err != nil {
		return Book{}, err
	}
	return FromBook(book), nil
}

// Book fetches a single book.
func (s *Service) Book(ctx context.Context, bookID int64) (Book, error) {
	book, err := s.circulation.Book(ctx, bookID)
	if err != nil {
		return Book{}, err
	}
	return FromBook(book), nil
}

// Books lists books matching query.
func (s *Service) Books(ctx context.Context, query BookQuery) ([]Book, error) {
	filter := store.BookFilter{
		OwnerID:  strings.TrimSpace(query.OwnerID),
		HolderID: strings.TrimSpace(query.HolderID),
	}
	for _, raw := range query.Statuses {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		status, ok := store.ParseStatus(raw)
		if !ok {
			return nil, faults.Wrap(faults.ErrInvalidArgument, "list books", fmt.Sprintf("unknown status %q", raw))
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	books, err := s.circulation.Books(ctx, filter)
	if err != nil {
		return nil, err
	}
	return FromBooks(books), nil
}

// RemoveBook deletes a book from userID's shelf.
func (s *Service) RemoveBook(ctx context.Context, userID string, bookID int64) error {
	return s.circulation.RemoveBook(ctx, userID, bookID)
}

// Recall asks the current holder to return a book to userID.
func (s *Service) Recall(ctx context.Context, userID string, bookID int64) (Book, error) {
	book, err := s.circulation.Recall(ctx, userID, bookID)
	if err != nil {
		return Book{}, err
	}
	return FromBook(book), nil
}

// ToggleGift flips the gift-on-borrow flag.
func (s *Service) ToggleGift(ctx context.Context, userID string, bookID int64) (GiftFlag, error) {
	enabled, err := s.circulation.ToggleGift(ctx, userID, bookID)
	if err != nil {
		return GiftFlag{}, err
	}
	return GiftFlag{BookID: bookID, GiftOnBorrow: enabled}, nil
}

// ToggleShelf takes a book off the shelf or puts it back.
func (s *Service) ToggleShelf(ctx context.Context, userID string, bookID int64) (Book, error) {
	book, err := s.circulation.ToggleShelf(ctx, userID, bookID)
	if err != nil {
		return Book{}, err
	}
	return FromBook(book), nil
}

// RequestBorrow opens a handoff from the owner to userID.
func (s *Service) RequestBorrow(ctx context.Context, userID string, bookID int64) (Handoff, error) {
	h, err := s.circulation.RequestBorrow(ctx, userID, bookID)
	if err != nil {
		return Handoff{}, err
	}
	return FromHandoff(h), nil
}

// MarkReady opens a handoff from the holder to the next recipient.
func (s *Service) MarkReady(ctx context.Context, userID string, bookID int64) (ReadyResponse, error) {
	h, recipient, err := s.circulation.MarkReadyToPassOn(ctx, userID, bookID)
	if err != nil {
		return ReadyResponse{}, err
	}
	return FromReady(h, recipient), nil
}

// Confirm records userID's side of a handoff.
func (s *Service) Confirm(ctx context.Context, userID, handoffID string, req ConfirmRequest) (ConfirmResult, error) {
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))
	if err := Validate(req); err != nil {
		return ConfirmResult{}, err
	}
	role, err := ParseRole(req.Role)
	if err != nil {
		return ConfirmResult{}, err
	}
	result, err := s.circulation.ConfirmHandoff(ctx, userID, strings.TrimSpace(handoffID), role)
	if err != nil {
		return ConfirmResult{}, err
	}
	return FromConfirmResult(result), nil
}

// ConfirmBatch confirms each requested handoff independently.
func (s *Service) ConfirmBatch(ctx context.Context, userID string, req ConfirmBatchRequest) (BatchSummary, error) {
	for i := range req.Items {
		req.Items[i].Role = strings.ToLower(strings.TrimSpace(req.Items[i].Role))
	}
	if err := Validate(req); err != nil {
		return BatchSummary{}, err
	}
	items, err := req.BatchItems()
	if err != nil {
		return BatchSummary{}, err
	}
	return SummarizeBatch(s.circulation.ConfirmBatch(ctx, userID, items)), nil
}

// ConfirmWith confirms every open handoff between userID and a counterparty.
func (s *Service) ConfirmWith(ctx context.Context, userID string, req ConfirmWithRequest) (BatchSummary, error) {
	req.CounterpartyID = strings.TrimSpace(req.CounterpartyID)
	if err := Validate(req); err != nil {
		return BatchSummary{}, err
	}
	outcomes, err := s.circulation.ConfirmAllWith(ctx, userID, req.CounterpartyID)
	if err != nil {
		return BatchSummary{}, err
	}
	return SummarizeBatch(outcomes), nil
}

// OpenHandoffs lists handoffs userID still has to finish, newest first.
func (s *Service) OpenHandoffs(ctx context.Context, userID string) ([]Handoff, error) {
	handoffs, err := s.circulation.OpenHandoffs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return SortHandoffsNewestFirst(FromHandoffs(handoffs)), nil
}

// JoinQueue appends userID to a waitlist.
func (s *Service) JoinQueue(ctx context.Context, userID string, bookID int64) (JoinResult, error) {
	position, err := s.circulation.JoinQueue(ctx, userID, bookID)
	if err != nil {
		return JoinResult{}, err
	}
	return JoinResult{BookID: bookID, Position: position}, nil
}

// LeaveQueue removes userID from a waitlist.
func (s *Service) LeaveQueue(ctx context.Context, userID string, bookID int64) error {
	return s.circulation.LeaveQueue(ctx, userID, bookID)
}

// Pass declines the current offer.
func (s *Service) Pass(ctx context.Context, userID string, bookID int64, req PassRequest) (PassResult, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if err := Validate(req); err != nil {
		return PassResult{}, err
	}
	result, err := s.circulation.PassOffer(ctx, userID, bookID, req.Reason)
	if err != nil {
		return PassResult{}, err
	}
	return FromPassResult(result), nil
}

// Queue returns a book's waitlist in position order.
func (s *Service) Queue(ctx context.Context, bookID int64) ([]QueueEntry, error) {
	entries, err := s.circulation.Queue(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return FromQueueEntries(entries), nil
}

// Waitlists returns userID's place in every waitlist they joined.
func (s *Service) Waitlists(ctx context.Context, userID string) ([]QueueEntry, error) {
	entries, err := s.circulation.Waitlists(ctx, userID)
	if err != nil {
		return nil, err
	}
	return FromQueueEntries(entries), nil
}

// Ownership returns a book's ownership chain.
func (s *Service) Ownership(ctx context.Context, bookID int64) ([]OwnershipRecord, error) {
	if _, err := s.circulation.Book(ctx, bookID); err != nil {
		return nil, err
	}
	records, err := s.circulation.Ownership(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return FromOwnership(records), nil
}

// Stats returns book counts keyed by status string.
func (s *Service) Stats(ctx context.Context) (map[string]int, error) {
	stats, err := s.circulation.Stats(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out, nil
}

// History lists ledger events, newest first.
func (s *Service) History(ctx context.Context, query HistoryQuery) ([]HistoryEvent, error) {
	if s.history == nil {
		return nil, fmt.Errorf("history ledger not configured")
	}
	filter, err := historyFilter(query)
	if err != nil {
		return nil, err
	}
	items, err := s.history.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	return FromHistoryEvents(items), nil
}

// HistoryStats counts ledger events per type.
func (s *Service) HistoryStats(ctx context.Context, query HistoryQuery) ([]TypeCount, error) {
	if s.history == nil {
		return nil, fmt.Errorf("history ledger not configured")
	}
	filter, err := historyFilter(query)
	if err != nil {
		return nil, err
	}
	counts, err := s.history.Stats(ctx, filter)
	if err != nil {
		return nil, err
	}
	return FromTypeCounts(counts), nil
}

// Sweep runs the offer-expiry sweep now.
func (s *Service) Sweep(ctx context.Context) (SweepReport, error) {
	if s.sweeper == nil {
		return SweepReport{}, fmt.Errorf("offer sweeper not configured")
	}
	report, err := s.sweeper.RunOnce(ctx)
	if err != nil {
		return SweepReport{}, err
	}
	return FromSweepReport(report), nil
}

func historyFilter(query HistoryQuery) (history.Filter, error) {
	filter := history.Filter{
		BookID: query.BookID,
		UserID: strings.TrimSpace(query.UserID),
		Limit:  query.Limit,
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultHistoryLimit
	case filter.Limit > maxHistoryLimit:
		return history.Filter{}, faults.Wrap(faults.ErrInvalidArgument, "history",
			fmt.Sprintf("limit %d exceeds %d", query.Limit, maxHistoryLimit))
	}
	for _, raw := range query.Types {
		raw = strings.ToLower(strings.TrimSpace(raw))
		if raw == "" {
			continue
		}
		filter.Types = append(filter.Types, events.HistoryType(raw))
	}
	return filter, nil
}
