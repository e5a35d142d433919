package handoff_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagepass/internal/events"
	"pagepass/internal/faults"
	"pagepass/internal/gift"
	"pagepass/internal/handoff"
	"pagepass/internal/store"
	"pagepass/internal/testsupport"
	"pagepass/internal/waitlist"
)

type fixture struct {
	store *store.Store
	clock *testsupport.Clock
	queue *waitlist.Manager
	coord *handoff.Coordinator
	book  *store.Book
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	clock := testsupport.NewClock(time.Time{})
	s.SetClock(clock.Now)
	queue := waitlist.New(3)
	f := &fixture{
		store: s,
		clock: clock,
		queue: queue,
		coord: handoff.New(queue, gift.New(queue), 0),
		book:  &store.Book{Title: "Kindred", OwnerID: "olivia", Status: store.StatusAvailable},
	}
	require.NoError(t, s.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.InsertBook(ctx, f.book); err != nil {
			return err
		}
		return tx.InsertOwnership(ctx, &store.OwnershipRecord{
			BookID:      f.book.ID,
			OwnerID:     "olivia",
			AcquiredVia: store.AcquiredAdded,
			AcquiredAt:  tx.Now(),
		})
	}))
	return f
}

func (f *fixture) run(t *testing.T, fn func(ctx context.Context, tx *store.Tx, batch *events.Batch) error) (*events.Batch, error) {
	t.Helper()
	var batch *events.Batch
	err := f.store.WithTx(context.Background(), func(tx *store.Tx) error {
		batch = &events.Batch{}
		book, err := tx.GetBook(context.Background(), f.book.ID)
		if err != nil {
			return err
		}
		f.book = book
		return fn(context.Background(), tx, batch)
	})
	return batch, err
}

func (f *fixture) join(t *testing.T, user string) {
	t.Helper()
	_, err := f.run(t, func(ctx context.Context, tx *store.Tx, batch *events.Batch) error {
		_, err := f.queue.Join(ctx, tx, f.book, user, batch)
		return err
	})
	require.NoError(t, err)
}

func (f *fixture) initiate(t *testing.T, giver, receiver string) *store.Handoff {
	t.Helper()
	var h *store.Handoff
	_, err := f.run(t, func(ctx context.Context, tx *store.Tx, batch *events.Batch) error {
		var err error
		h, err = f.coord.Initiate(ctx, tx, f.book, giver, receiver, receiver, batch)
		return err
	})
	require.NoError(t, err)
	return h
}

func (f *fixture) confirm(t *testing.T, id, user string, role store.HandoffRole) (*handoff.ConfirmResult, *events.Batch, error) {
	t.Helper()
	var res *handoff.ConfirmResult
	batch, err := f.run(t, func(ctx context.Context, tx *store.Tx, batch *events.Batch) error {
		var err error
		res, err = f.coord.Confirm(ctx, tx, id, user, role, batch)
		return err
	})
	return res, batch, err
}

func (f *fixture) reload(t *testing.T) *store.Book {
	t.Helper()
	book, err := f.store.GetBook(context.Background(), f.book.ID)
	require.NoError(t, err)
	return book
}

func TestLendFromOwnerStartsLoan(t *testing.T) {
	f := newFixture(t)
	f.join(t, "ann")
	f.join(t, "ben")

	h := f.initiate(t, "olivia", "ann")
	assert.Equal(t, store.HandoffPagepass, h.Kind)

	book := f.reload(t)
	assert.Equal(t, store.StatusInTransit, book.Status)
	assert.Equal(t, "olivia", book.HolderID)

	res, batch, err := f.confirm(t, h.ID, "olivia", store.RoleGiver)
	require.NoError(t, err)
	assert.Equal(t, handoff.OutcomeWaiting, res.Outcome)
	require.Len(t, batch.NoticesFor("ann"), 1)
	assert.Equal(t, events.NoticeHandoffWaiting, batch.NoticesFor("ann")[0].Kind)

	f.clock.Advance(time.Hour)
	res, _, err = f.confirm(t, h.ID, "ann", store.RoleReceiver)
	require.NoError(t, err)
	assert.Equal(t, handoff.OutcomeClosed, res.Outcome)
	assert.False(t, res.Gifted)

	book = f.reload(t)
	assert.Equal(t, store.StatusBorrowed, book.Status)
	assert.Equal(t, "ann", book.HolderID)
	require.NotNil(t, book.DueDate)
	assert.WithinDuration(t, f.clock.Now().Add(14*24*time.Hour), *book.DueDate, time.Second)

	queue, err := f.store.ListQueue(context.Background(), f.book.ID)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, "ben", queue[0].UserID)
	assert.Equal(t, 1, queue[0].Position)
}

func TestConfirmRejectsWrongPartyAndRepeats(t *testing.T) {
	f := newFixture(t)
	h := f.initiate(t, "olivia", "ann")

	_, _, err := f.confirm(t, h.ID, "mallory", store.RoleReceiver)
	require.ErrorIs(t, err, faults.ErrNotAuthorized)

	_, _, err = f.confirm(t, h.ID, "ann", store.RoleGiver)
	require.ErrorIs(t, err, faults.ErrNotAuthorized)

	_, _, err = f.confirm(t, h.ID, "ann", store.HandoffRole("courier"))
	require.ErrorIs(t, err, faults.ErrInvalidArgument)

	_, _, err = f.confirm(t, "missing", "ann", store.RoleReceiver)
	require.ErrorIs(t, err, faults.ErrNotFound)

	_, _, err = f.confirm(t, h.ID, "ann", store.RoleReceiver)
	require.NoError(t, err)
	_, _, err = f.confirm(t, h.ID, "ann", store.RoleReceiver)
	require.ErrorIs(t, err, faults.ErrAlreadyConfirmed)

	stored, err := f.store.GetHandoff(context.Background(), h.ID)
	require.NoError(t, err)
	assert.True(t, stored.Open())
}

func TestReturnLandsAvailableAndOffersHead(t *testing.T) {
	f := newFixture(t)
	h := f.initiate(t, "olivia", "ann")
	_, _, err := f.confirm(t, h.ID, "olivia", store.RoleGiver)
	require.NoError(t, err)
	_, _, err = f.confirm(t, h.ID, "ann", store.RoleReceiver)
	require.NoError(t, err)

	f.join(t, "ben")
	f.clock.Advance(72 * time.Hour)

	back := f.initiate(t, "ann", "olivia")
	assert.Equal(t, store.HandoffReturn, back.Kind)
	_, _, err = f.confirm(t, back.ID, "ann", store.RoleGiver)
	require.NoError(t, err)
	res, batch, err := f.confirm(t, back.ID, "olivia", store.RoleReceiver)
	require.NoError(t, err)
	assert.Equal(t, store.HandoffReturn, res.Kind)

	book := f.reload(t)
	assert.Equal(t, store.StatusAvailable, book.Status)
	assert.Empty(t, book.HolderID)
	assert.Nil(t, book.DueDate)
	assert.Nil(t, book.HolderSince)

	queue, err := f.store.ListQueue(context.Background(), f.book.ID)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.NotNil(t, queue[0].OfferedAt)

	var ended *events.HistoryEntry
	for i := range batch.History {
		if batch.History[i].Type == events.HistoryHoldingEnded {
			ended = &batch.History[i]
		}
	}
	require.NotNil(t, ended)
	assert.Equal(t, "ann", ended.UserID)
	assert.Equal(t, 3, ended.Metadata["days_held"])
}

func TestOwnerHoldingEndedOmitsDuration(t *testing.T) {
	f := newFixture(t)
	h := f.initiate(t, "olivia", "ann")
	f.clock.Advance(50 * time.Hour)
	_, _, err := f.confirm(t, h.ID, "olivia", store.RoleGiver)
	require.NoError(t, err)
	_, batch, err := f.confirm(t, h.ID, "ann", store.RoleReceiver)
	require.NoError(t, err)

	var ended *events.HistoryEntry
	for i := range batch.History {
		if batch.History[i].Type == events.HistoryHoldingEnded {
			ended = &batch.History[i]
		}
	}
	require.NotNil(t, ended)
	assert.Equal(t, "olivia", ended.UserID)
	assert.Equal(t, "owner", ended.Metadata["role"])
	assert.NotContains(t, ended.Metadata, "days_held")
	assert.NotContains(t, ended.Metadata, "held_since")
}

func TestReturnHonorsPendingOffShelf(t *testing.T) {
	f := newFixture(t)
	h := f.initiate(t, "olivia", "ann")
	_, _, _ = f.confirm(t, h.ID, "olivia", store.RoleGiver)
	_, _, err := f.confirm(t, h.ID, "ann", store.RoleReceiver)
	require.NoError(t, err)

	_, err = f.run(t, func(ctx context.Context, tx *store.Tx, _ *events.Batch) error {
		f.book.OffShelfReturn = store.ReturnOffShelf
		f.book.OwnerRecallActive = true
		return tx.UpdateBook(ctx, f.book)
	})
	require.NoError(t, err)

	back := f.initiate(t, "ann", "olivia")
	_, _, _ = f.confirm(t, back.ID, "olivia", store.RoleReceiver)
	_, _, err = f.confirm(t, back.ID, "ann", store.RoleGiver)
	require.NoError(t, err)

	book := f.reload(t)
	assert.Equal(t, store.StatusOffShelf, book.Status)
	assert.Empty(t, string(book.OffShelfReturn))
	assert.False(t, book.OwnerRecallActive)
}

func TestGiftFlagTransfersOnClose(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(t, func(ctx context.Context, tx *store.Tx, _ *events.Batch) error {
		f.book.GiftOnBorrow = true
		return tx.UpdateBook(ctx, f.book)
	})
	require.NoError(t, err)
	f.join(t, "ann")
	f.join(t, "ben")

	h := f.initiate(t, "olivia", "ann")
	_, _, _ = f.confirm(t, h.ID, "olivia", store.RoleGiver)
	res, batch, err := f.confirm(t, h.ID, "ann", store.RoleReceiver)
	require.NoError(t, err)
	assert.True(t, res.Gifted)

	book := f.reload(t)
	assert.Equal(t, "ann", book.OwnerID)
	assert.Equal(t, store.StatusAvailable, book.Status)
	assert.Empty(t, book.HolderID)

	queue, err := f.store.ListQueue(context.Background(), f.book.ID)
	require.NoError(t, err)
	assert.Empty(t, queue)
	assert.Len(t, batch.Visibility, 1)
}

func TestInitiateRejectsConflicts(t *testing.T) {
	f := newFixture(t)
	f.initiate(t, "olivia", "ann")

	_, err := f.run(t, func(ctx context.Context, tx *store.Tx, batch *events.Batch) error {
		_, err := f.coord.Initiate(ctx, tx, f.book, "olivia", "ben", "ben", batch)
		return err
	})
	require.ErrorIs(t, err, faults.ErrInvalidState)

	g := newFixture(t)
	_, err = g.run(t, func(ctx context.Context, tx *store.Tx, batch *events.Batch) error {
		_, err := g.coord.Initiate(ctx, tx, g.book, "ann", "ben", "ben", batch)
		return err
	})
	require.ErrorIs(t, err, faults.ErrInvalidState)
}

func TestDecideRecipientOrder(t *testing.T) {
	f := newFixture(t)
	decide := func() handoff.Recipient {
		var r handoff.Recipient
		_, err := f.run(t, func(ctx context.Context, tx *store.Tx, _ *events.Batch) error {
			var err error
			r, err = f.coord.DecideRecipient(ctx, tx, f.book)
			return err
		})
		require.NoError(t, err)
		return r
	}

	assert.Equal(t, handoff.Recipient{UserID: "olivia", Reason: handoff.ReasonReturn}, decide())

	f.join(t, "ann")
	assert.Equal(t, handoff.Recipient{UserID: "ann", Reason: handoff.ReasonQueue}, decide())

	_, err := f.run(t, func(ctx context.Context, tx *store.Tx, _ *events.Batch) error {
		f.book.OwnerRecallActive = true
		return tx.UpdateBook(ctx, f.book)
	})
	require.NoError(t, err)
	assert.Equal(t, handoff.Recipient{UserID: "olivia", Reason: handoff.ReasonRecall}, decide())
}
