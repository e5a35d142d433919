package waitlist_test

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagepass/internal/events"
	"pagepass/internal/faults"
	"pagepass/internal/store"
	"pagepass/internal/testsupport"
	"pagepass/internal/waitlist"
)

type fixture struct {
	store *store.Store
	book  *store.Book
	mgr   *waitlist.Manager
}

func newFixture(t *testing.T, status store.Status) *fixture {
	t.Helper()
	s := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	book := &store.Book{Title: "Piranesi", OwnerID: "olivia", Status: store.StatusAvailable}
	require.NoError(t, s.WithTx(context.Background(), func(tx *store.Tx) error {
		if err := tx.InsertBook(context.Background(), book); err != nil {
			return err
		}
		if status == store.StatusOffShelf {
			book.Status = status
			return tx.UpdateBook(context.Background(), book)
		}
		return nil
	}))
	return &fixture{store: s, book: book, mgr: waitlist.New(3)}
}

func (f *fixture) run(t *testing.T, fn func(ctx context.Context, tx *store.Tx, batch *events.Batch) error) (*events.Batch, error) {
	t.Helper()
	var batch *events.Batch
	err := f.store.WithTx(context.Background(), func(tx *store.Tx) error {
		batch = &events.Batch{}
		return fn(context.Background(), tx, batch)
	})
	return batch, err
}

func (f *fixture) join(t *testing.T, user string) int {
	t.Helper()
	var pos int
	_, err := f.run(t, func(ctx context.Context, tx *store.Tx, batch *events.Batch) error {
		var err error
		pos, err = f.mgr.Join(ctx, tx, f.book, user, batch)
		return err
	})
	require.NoError(t, err)
	return pos
}

func (f *fixture) pass(t *testing.T, user string) waitlist.PassResult {
	t.Helper()
	var res waitlist.PassResult
	_, err := f.run(t, func(ctx context.Context, tx *store.Tx, batch *events.Batch) error {
		var err error
		res, err = f.mgr.RecordPass(ctx, tx, f.book, user, "busy this week", batch)
		return err
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) queue(t *testing.T) []store.QueueEntry {
	t.Helper()
	entries, err := f.store.ListQueue(context.Background(), f.book.ID)
	require.NoError(t, err)
	return entries
}

func requireContiguous(t *testing.T, entries []store.QueueEntry) {
	t.Helper()
	for i, e := range entries {
		require.Equal(t, i+1, e.Position, "queue positions must be 1..N, got %+v", entries)
	}
}

func TestJoinAssignsNextPosition(t *testing.T) {
	f := newFixture(t, store.StatusOffShelf)

	assert.Equal(t, 1, f.join(t, "ann"))
	assert.Equal(t, 2, f.join(t, "ben"))
	assert.Equal(t, 3, f.join(t, "cat"))

	_, err := f.run(t, func(ctx context.Context, tx *store.Tx, batch *events.Batch) error {
		_, err := f.mgr.Join(ctx, tx, f.book, "ben", batch)
		return err
	})
	require.ErrorIs(t, err, faults.ErrAlreadyQueued)

	_, err = f.run(t, func(ctx context.Context, tx *store.Tx, batch *events.Batch) error {
		_, err := f.mgr.Join(ctx, tx, f.book, "olivia", batch)
		return err
	})
	require.ErrorIs(t, err, faults.ErrInvalidState)

	for _, e := range f.queue(t) {
		assert.Nil(t, e.OfferedAt, "no offers while the book is off the shelf")
	}
}

func TestJoinAvailableBookOffersToHead(t *testing.T) {
	f := newFixture(t, store.StatusAvailable)

	batch, err := f.run(t, func(ctx context.Context, tx *store.Tx, batch *events.Batch) error {
		_, err := f.mgr.Join(ctx, tx, f.book, "ann", batch)
		return err
	})
	require.NoError(t, err)
	notices := batch.NoticesFor("ann")
	require.Len(t, notices, 1)
	assert.Equal(t, events.NoticeYourTurn, notices[0].Kind)

	f.join(t, "ben")
	entries := f.queue(t)
	require.NotNil(t, entries[0].OfferedAt)
	assert.Nil(t, entries[1].OfferedAt)
}

func TestLeaveRenumbersAndOffersNewHead(t *testing.T) {
	f := newFixture(t, store.StatusAvailable)
	f.join(t, "ann")
	f.join(t, "ben")
	f.join(t, "cat")

	batch, err := f.run(t, func(ctx context.Context, tx *store.Tx, batch *events.Batch) error {
		return f.mgr.Leave(ctx, tx, f.book, "ann", batch)
	})
	require.NoError(t, err)

	entries := f.queue(t)
	require.Len(t, entries, 2)
	requireContiguous(t, entries)
	assert.Equal(t, "ben", entries[0].UserID)
	assert.NotNil(t, entries[0].OfferedAt)
	assert.Len(t, batch.NoticesFor("ben"), 1)

	_, err = f.run(t, func(ctx context.Context, tx *store.Tx, batch *events.Batch) error {
		return f.mgr.Leave(ctx, tx, f.book, "ann", batch)
	})
	require.ErrorIs(t, err, faults.ErrNotQueued)
}

func TestRandomJoinLeaveKeepsPositionsContiguous(t *testing.T) {
	f := newFixture(t, store.StatusOffShelf)
	rng := rand.New(rand.NewSource(7))
	queued := map[string]bool{}

	for step := 0; step < 60; step++ {
		user := fmt.Sprintf("user-%d", rng.Intn(10))
		_, err := f.run(t, func(ctx context.Context, tx *store.Tx, batch *events.Batch) error {
			if queued[user] {
				return f.mgr.Leave(ctx, tx, f.book, user, batch)
			}
			_, err := f.mgr.Join(ctx, tx, f.book, user, batch)
			return err
		})
		require.NoError(t, err)
		queued[user] = !queued[user]

		entries := f.queue(t)
		requireContiguous(t, entries)
		count := 0
		for _, in := range queued {
			if in {
				count++
			}
		}
		require.Len(t, entries, count)
	}
}

func TestThreePassesDemoteHead(t *testing.T) {
	f := newFixture(t, store.StatusAvailable)
	f.join(t, "ben")
	f.join(t, "cat")

	first := f.pass(t, "ben")
	assert.Equal(t, 1, first.PassCount)
	assert.False(t, first.Escalated)
	f.pass(t, "ben")
	third := f.pass(t, "ben")

	assert.True(t, third.Escalated)
	assert.Equal(t, 2, third.Position)
	assert.Equal(t, "cat", third.PromotedUserID)

	entries := f.queue(t)
	requireContiguous(t, entries)
	assert.Equal(t, "cat", entries[0].UserID)
	assert.Equal(t, 0, entries[0].PassCount)
	assert.NotNil(t, entries[0].OfferedAt, "promoted head gets a fresh offer")
	assert.Equal(t, "ben", entries[1].UserID)
	assert.Equal(t, 0, entries[1].PassCount)
	assert.Nil(t, entries[1].OfferedAt)
	assert.Equal(t, "busy this week", entries[1].LastPassReason)

	fourth := f.pass(t, "ben")
	assert.Equal(t, 1, fourth.PassCount, "count restarts after demotion")
	assert.Equal(t, 2, fourth.Position)
	assert.False(t, fourth.Escalated)
}

func TestLoneHeadResetsWithoutMoving(t *testing.T) {
	f := newFixture(t, store.StatusAvailable)
	f.join(t, "ben")

	for i := 0; i < 3; i++ {
		f.pass(t, "ben")
	}
	entries := f.queue(t)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Position)
	assert.Equal(t, 0, entries[0].PassCount)
	assert.NotNil(t, entries[0].OfferedAt)
}

func TestPassRequiresQueueEntry(t *testing.T) {
	f := newFixture(t, store.StatusAvailable)
	_, err := f.run(t, func(ctx context.Context, tx *store.Tx, batch *events.Batch) error {
		_, err := f.mgr.RecordPass(ctx, tx, f.book, "nobody", "", batch)
		return err
	})
	require.ErrorIs(t, err, faults.ErrNotQueued)
}

func TestClearReturnsDisplacedEntries(t *testing.T) {
	f := newFixture(t, store.StatusOffShelf)
	f.join(t, "ann")
	f.join(t, "ben")

	var displaced []store.QueueEntry
	_, err := f.run(t, func(ctx context.Context, tx *store.Tx, batch *events.Batch) error {
		var err error
		displaced, err = f.mgr.Clear(ctx, tx, f.book.ID)
		return err
	})
	require.NoError(t, err)
	assert.Len(t, displaced, 2)
	assert.Empty(t, f.queue(t))
}
