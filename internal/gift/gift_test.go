package gift_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagepass/internal/events"
	"pagepass/internal/faults"
	"pagepass/internal/gift"
	"pagepass/internal/store"
	"pagepass/internal/testsupport"
	"pagepass/internal/waitlist"
)

func seedBook(t *testing.T, s *store.Store, giftFlag bool, queued ...string) *store.Book {
	t.Helper()
	ctx := context.Background()
	book := &store.Book{Title: "The Left Hand of Darkness", OwnerID: "olivia", Status: store.StatusOffShelf, GiftOnBorrow: giftFlag}
	mgr := waitlist.New(3)
	require.NoError(t, s.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.InsertBook(ctx, book); err != nil {
			return err
		}
		if err := tx.InsertOwnership(ctx, &store.OwnershipRecord{
			BookID:      book.ID,
			OwnerID:     "olivia",
			AcquiredVia: store.AcquiredAdded,
			AcquiredAt:  tx.Now(),
		}); err != nil {
			return err
		}
		for _, user := range queued {
			if _, err := mgr.Join(ctx, tx, book, user, &events.Batch{}); err != nil {
				return err
			}
		}
		return nil
	}))
	return book
}

func TestTransferMovesOwnershipAndClearsQueue(t *testing.T) {
	ctx := context.Background()
	s := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	book := seedBook(t, s, true, "ann", "ben", "cat")
	g := gift.New(waitlist.New(3))

	var outcome *gift.Outcome
	var batch *events.Batch
	require.NoError(t, s.WithTx(ctx, func(tx *store.Tx) error {
		batch = &events.Batch{}
		var err error
		outcome, err = g.Transfer(ctx, tx, book, "ben", batch)
		return err
	}))

	assert.Equal(t, "olivia", outcome.PreviousOwnerID)
	assert.Equal(t, "ben", outcome.NewOwnerID)
	assert.ElementsMatch(t, []string{"ann", "cat"}, outcome.Displaced)

	stored, err := s.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "ben", stored.OwnerID)
	assert.Equal(t, store.StatusAvailable, stored.Status)
	assert.False(t, stored.GiftOnBorrow)
	assert.Empty(t, stored.HolderID)
	assert.Nil(t, stored.DueDate)

	queue, err := s.ListQueue(ctx, book.ID)
	require.NoError(t, err)
	assert.Empty(t, queue)

	records, err := s.ListOwnership(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	open := 0
	for _, rec := range records {
		if rec.EndedAt == nil {
			open++
			assert.Equal(t, "ben", rec.OwnerID)
			assert.Equal(t, store.AcquiredGift, rec.AcquiredVia)
			assert.Equal(t, "olivia", rec.PreviousOwnerID)
		} else {
			assert.Equal(t, "olivia", rec.OwnerID)
		}
	}
	assert.Equal(t, 1, open)

	require.Len(t, batch.Visibility, 1)
	assert.Equal(t, events.VisibilityReset{BookID: book.ID, OwnerID: "ben"}, batch.Visibility[0])
	for _, n := range batch.NoticesFor("ben") {
		assert.NotEqual(t, events.NoticeRemovedFromQueue, n.Kind)
	}
	require.Len(t, batch.NoticesFor("ann"), 1)
	assert.Equal(t, events.NoticeRemovedFromQueue, batch.NoticesFor("ann")[0].Kind)
	require.Len(t, batch.NoticesFor("olivia"), 1)
	assert.Equal(t, events.NoticeGiftGiven, batch.NoticesFor("olivia")[0].Kind)
}

func TestTransferRequiresGiftFlag(t *testing.T) {
	ctx := context.Background()
	s := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	book := seedBook(t, s, false)
	g := gift.New(waitlist.New(3))

	err := s.WithTx(ctx, func(tx *store.Tx) error {
		_, err := g.Transfer(ctx, tx, book, "ben", &events.Batch{})
		return err
	})
	require.ErrorIs(t, err, faults.ErrInvalidState)

	book.GiftOnBorrow = true
	err = s.WithTx(ctx, func(tx *store.Tx) error {
		_, err := g.Transfer(ctx, tx, book, "olivia", &events.Batch{})
		return err
	})
	require.ErrorIs(t, err, faults.ErrInvalidState)
}
