package api_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagepass/internal/api"
	"pagepass/internal/circulation"
	"pagepass/internal/faults"
	"pagepass/internal/history"
	"pagepass/internal/testsupport"
)

type fakeSweeper struct {
	report circulation.SweepReport
	err    error
	calls  int
}

func (f *fakeSweeper) RunOnce(context.Context) (circulation.SweepReport, error) {
	f.calls++
	return f.report, f.err
}

type fixture struct {
	svc     *api.Service
	clock   *testsupport.Clock
	sweeper *fakeSweeper
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	clock := testsupport.NewClock(time.Time{})
	ledger := history.New(st.DB(), history.OptionsFromConfig(cfg, nil))
	coord := circulation.New(st, circulation.Options{
		Ledger:        ledger,
		Clock:         clock.Now,
		LoanPeriod:    cfg.LoanPeriod(),
		PassThreshold: cfg.Circulation.PassEscalationThreshold,
		OfferWindow:   cfg.OfferWindow(),
	})
	sw := &fakeSweeper{report: circulation.SweepReport{Checked: 2, Passed: 1}}
	return &fixture{svc: api.NewService(coord, ledger, sw), clock: clock, sweeper: sw}
}

func TestServiceLendingRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	book, err := f.svc.AddBook(ctx, "olive", api.AddBookRequest{Title: "  Piranesi ", Author: "Susanna Clarke"})
	require.NoError(t, err)
	assert.Equal(t, "Piranesi", book.Title)
	assert.Equal(t, "available", book.Status)
	assert.Equal(t, "2026-03-02T09:00:00.000Z", book.CreatedAt)

	h, err := f.svc.RequestBorrow(ctx, "bea", book.ID)
	require.NoError(t, err)
	assert.Equal(t, "olive", h.GiverID)
	assert.Equal(t, "pagepass", h.Kind)
	assert.True(t, h.Open)

	open, err := f.svc.OpenHandoffs(ctx, "olive")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "giver", open[0].AwaitingRole("olive"))

	first, err := f.svc.Confirm(ctx, "olive", h.ID, api.ConfirmRequest{Role: "Giver"})
	require.NoError(t, err)
	assert.Equal(t, "waiting", first.Outcome)

	f.clock.Advance(time.Hour)
	second, err := f.svc.Confirm(ctx, "bea", h.ID, api.ConfirmRequest{Role: "receiver"})
	require.NoError(t, err)
	assert.Equal(t, "closed", second.Outcome)
	require.NotNil(t, second.Book)
	assert.Equal(t, "borrowed", second.Book.Status)
	assert.Equal(t, "bea", second.Book.HolderID)
	assert.Equal(t, "2026-03-16T10:00:00.000Z", second.Book.DueDate)
	assert.False(t, second.Handoff.Open)
	assert.False(t, second.Book.Overdue(f.clock.Now()))
	assert.True(t, second.Book.Overdue(f.clock.Now().Add(15*24*time.Hour)))

	recorded, err := f.svc.History(ctx, api.HistoryQuery{BookID: book.ID})
	require.NoError(t, err)
	types := make([]string, 0, len(recorded))
	for _, e := range recorded {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, "loan_started")
	assert.Equal(t, "book_added", types[len(types)-1])

	stats, err := f.svc.HistoryStats(ctx, api.HistoryQuery{BookID: book.ID, Types: []string{"HANDOFF_CONFIRMED"}})
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, api.TypeCount{Type: "handoff_confirmed", Count: 2}, stats[0])

	counts, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts["borrowed"])
	assert.Equal(t, 0, counts["available"])
}

func TestServiceValidatesRequests(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AddBook(ctx, "olive", api.AddBookRequest{Title: "   "})
	require.Error(t, err)
	assert.Equal(t, faults.KindInvalidArgument, faults.KindOf(err))
	assert.Contains(t, err.Error(), "title is required")

	book, err := f.svc.AddBook(ctx, "olive", api.AddBookRequest{Title: "Kindred"})
	require.NoError(t, err)
	h, err := f.svc.RequestBorrow(ctx, "bea", book.ID)
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, "olive", h.ID, api.ConfirmRequest{Role: "courier"})
	assert.Equal(t, faults.KindInvalidArgument, faults.KindOf(err))
	assert.Contains(t, err.Error(), "role must be one of: giver, receiver")

	_, err = f.svc.ConfirmBatch(ctx, "olive", api.ConfirmBatchRequest{})
	assert.Equal(t, faults.KindInvalidArgument, faults.KindOf(err))

	_, err = f.svc.ConfirmBatch(ctx, "olive", api.ConfirmBatchRequest{Items: []api.BatchConfirmItem{{HandoffID: "nope", Role: "giver"}}})
	assert.Equal(t, faults.KindInvalidArgument, faults.KindOf(err))
	assert.Contains(t, err.Error(), "items[0].handoffId must be a handoff id")

	_, err = f.svc.Books(ctx, api.BookQuery{Statuses: []string{"lost"}})
	assert.Equal(t, faults.KindInvalidArgument, faults.KindOf(err))

	_, err = f.svc.History(ctx, api.HistoryQuery{Limit: 5000})
	assert.Equal(t, faults.KindInvalidArgument, faults.KindOf(err))

	_, err = f.svc.Ownership(ctx, 999)
	assert.Equal(t, faults.KindNotFound, faults.KindOf(err))
}

func TestServiceConfirmBatchSummarizes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	one, err := f.svc.AddBook(ctx, "olive", api.AddBookRequest{Title: "Kindred"})
	require.NoError(t, err)
	two, err := f.svc.AddBook(ctx, "olive", api.AddBookRequest{Title: "Beloved"})
	require.NoError(t, err)
	h1, err := f.svc.RequestBorrow(ctx, "bea", one.ID)
	require.NoError(t, err)
	h2, err := f.svc.RequestBorrow(ctx, "bea", two.ID)
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, "bea", h1.ID, api.ConfirmRequest{Role: "receiver"})
	require.NoError(t, err)

	summary, err := f.svc.ConfirmBatch(ctx, "olive", api.ConfirmBatchRequest{Items: []api.BatchConfirmItem{
		{HandoffID: h1.ID, Role: "giver"},
		{HandoffID: h2.ID, Role: "giver"},
		{HandoffID: h2.ID, Role: "receiver"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ClosedCount)
	assert.Equal(t, 1, summary.WaitingCount)
	assert.Equal(t, 1, summary.FailedCount)
	require.Len(t, summary.Items, 3)
	assert.Equal(t, "closed", summary.Items[0].Result)
	assert.Equal(t, "waiting", summary.Items[1].Result)
	assert.Equal(t, "error", summary.Items[2].Result)
	assert.Equal(t, "not_authorized", summary.Items[2].ErrorKind)

	rest, err := f.svc.ConfirmWith(ctx, "bea", api.ConfirmWithRequest{CounterpartyID: " olive "})
	require.NoError(t, err)
	assert.Equal(t, 1, rest.ClosedCount)
	require.Len(t, rest.Items, 1)
	assert.Equal(t, h2.ID, rest.Items[0].HandoffID)
}

func TestServiceQueueAndPass(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	book, err := f.svc.AddBook(ctx, "olive", api.AddBookRequest{Title: "Kindred"})
	require.NoError(t, err)
	for i, user := range []string{"ann", "bo"} {
		joined, err := f.svc.JoinQueue(ctx, user, book.ID)
		require.NoError(t, err)
		assert.Equal(t, i+1, joined.Position)
	}

	passed, err := f.svc.Pass(ctx, "ann", book.ID, api.PassRequest{Reason: " traveling "})
	require.NoError(t, err)
	assert.Equal(t, 1, passed.PassCount)
	assert.False(t, passed.Escalated)

	entries, err := f.svc.Queue(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "traveling", entries[0].LastPassReason)

	mine, err := f.svc.Waitlists(ctx, "bo")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, 2, mine[0].Position)

	require.NoError(t, f.svc.LeaveQueue(ctx, "ann", book.ID))
	mine, err = f.svc.Waitlists(ctx, "bo")
	require.NoError(t, err)
	assert.Equal(t, 1, mine[0].Position)

	flag, err := f.svc.ToggleGift(ctx, "olive", book.ID)
	require.NoError(t, err)
	assert.True(t, flag.GiftOnBorrow)

	shelved, err := f.svc.ToggleShelf(ctx, "olive", book.ID)
	require.NoError(t, err)
	assert.Equal(t, "off_shelf", shelved.Status)

	owners, err := f.svc.Ownership(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, owners, 1)
	assert.Equal(t, "added", owners[0].AcquiredVia)
}

func TestServiceSweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	report, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, api.SweepReport{Checked: 2, Passed: 1}, report)

	f.sweeper.err = errors.New("disk full")
	_, err = f.svc.Sweep(ctx)
	require.Error(t, err)
	assert.Equal(t, 2, f.sweeper.calls)

	body := api.ErrorFrom(err)
	assert.Equal(t, "internal", body.Error.Kind)
	assert.Equal(t, "internal error", body.Error.Message)
}
