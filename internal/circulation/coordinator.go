package circulation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pagepass/internal/events"
	"pagepass/internal/faults"
	"pagepass/internal/gift"
	"pagepass/internal/handoff"
	"pagepass/internal/logging"
	"pagepass/internal/reqctx"
	"pagepass/internal/store"
	"pagepass/internal/waitlist"
)

// DefaultOfferWindow is how long the head of a queue may sit on an offer
// before the sweep passes on their behalf.
const DefaultOfferWindow = 48 * time.Hour

// Notifier delivers one notice to one user.
type Notifier interface {
	Notify(ctx context.Context, notice events.Notice) error
}

// Ledger appends audit entries.
type Ledger interface {
	Append(ctx context.Context, entry events.HistoryEntry) error
}

// VisibilityPublisher asks the circle-membership collaborator to recompute
// where a book is visible for its new owner.
type VisibilityPublisher interface {
	ResetVisibility(ctx context.Context, bookID int64, ownerID string) error
}

// Options configures a Coordinator. Nil collaborators are replaced by no-ops.
type Options struct {
	Notifier      Notifier
	Ledger        Ledger
	Visibility    VisibilityPublisher
	Logger        *slog.Logger
	Clock         func() time.Time
	LoanPeriod    time.Duration
	PassThreshold int
	OfferWindow   time.Duration
}

// Coordinator exposes the circulation operations.
type Coordinator struct {
	store       *store.Store
	queue       *waitlist.Manager
	handoffs    *handoff.Coordinator
	gifts       *gift.Transferrer
	notifier    Notifier
	ledger      Ledger
	visibility  VisibilityPublisher
	logger      *slog.Logger
	clock       func() time.Time
	offerWindow time.Duration
	locks       *keyedMutex
}

// New wires a Coordinator around st.
func New(st *store.Store, opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	st.SetClock(clock)

	window := opts.OfferWindow
	if window <= 0 {
		window = DefaultOfferWindow
	}
	queue := waitlist.New(opts.PassThreshold)
	gifts := gift.New(queue)

	c := &Coordinator{
		store:       st,
		queue:       queue,
		handoffs:    handoff.New(queue, gifts, opts.LoanPeriod),
		gifts:       gifts,
		notifier:    opts.Notifier,
		ledger:      opts.Ledger,
		visibility:  opts.Visibility,
		logger:      logging.NewComponentLogger(logger, "circulation"),
		clock:       clock,
		offerWindow: window,
		locks:       newKeyedMutex(),
	}
	if c.notifier == nil {
		c.notifier = nopNotifier{}
	}
	if c.ledger == nil {
		c.ledger = nopLedger{}
	}
	if c.visibility == nil {
		c.visibility = nopVisibility{}
	}
	return c
}

// OfferWindow returns the configured offer window.
func (c *Coordinator) OfferWindow() time.Duration {
	return c.offerWindow
}

// mutate runs fn for bookID under the book lock and inside one transaction,
// then dispatches the collected effects. fn may run more than once when the
// store retries on contention; each attempt receives a fresh batch.
func (c *Coordinator) mutate(ctx context.Context, op string, bookID int64, fn func(ctx context.Context, tx *store.Tx, book *store.Book, batch *events.Batch) error) error {
	ctx = reqctx.WithBookID(ctx, bookID)
	unlock := c.locks.Lock(bookID)
	defer unlock()

	var batch *events.Batch
	err := c.store.WithTx(ctx, func(tx *store.Tx) error {
		batch = &events.Batch{}
		book, err := tx.GetBook(ctx, bookID)
		if err != nil {
			return err
		}
		if book == nil {
			return faults.Wrap(faults.ErrNotFound, op, fmt.Sprintf("book %d does not exist", bookID))
		}
		return fn(ctx, tx, book, batch)
	})
	if err != nil {
		return err
	}
	c.dispatch(ctx, op, batch)
	return nil
}

// bookForHandoff resolves the book a handoff belongs to so the caller can
// lock it before touching the handoff.
func (c *Coordinator) bookForHandoff(ctx context.Context, op, handoffID string) (int64, error) {
	h, err := c.store.GetHandoff(ctx, handoffID)
	if err != nil {
		return 0, err
	}
	if h == nil {
		return 0, faults.Wrap(faults.ErrNotFound, op, fmt.Sprintf("handoff %s does not exist", handoffID))
	}
	return h.BookID, nil
}

func requireOwner(op string, book *store.Book, userID string) error {
	if book.OwnerID != userID {
		return faults.Wrap(faults.ErrNotAuthorized, op, "only the owner can do this")
	}
	return nil
}
