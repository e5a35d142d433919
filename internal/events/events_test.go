package events_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagepass/internal/events"
)

func TestBatchCollectsEffects(t *testing.T) {
	var b events.Batch
	require.True(t, b.Empty())

	b.Notify("ann", events.NoticeYourTurn, 7, "Dune is ready for you", nil)
	b.Notify("", events.NoticeYourTurn, 7, "dropped", nil)
	b.Record(events.HistoryQueueJoined, 7, "ann", time.Unix(0, 0), map[string]any{"position": 1})
	b.ResetVisibility(7, "ann")

	require.False(t, b.Empty())
	require.Len(t, b.Notices, 1)
	assert.Equal(t, "/books/7", b.Notices[0].Link)
	assert.Equal(t, int64(7), b.Notices[0].Data["book_id"])
	assert.Len(t, b.NoticesFor("ann"), 1)
	assert.Empty(t, b.NoticesFor("ben"))
	assert.Len(t, b.History, 1)
	assert.Equal(t, []events.VisibilityReset{{BookID: 7, OwnerID: "ann"}}, b.Visibility)
}

func TestNoticeCategories(t *testing.T) {
	assert.Equal(t, events.CategoryQueue, events.NoticeOfferExpired.Category())
	assert.Equal(t, events.CategoryGifts, events.NoticeGiftReceived.Category())
	assert.Equal(t, events.CategoryShelf, events.NoticeShelfResumed.Category())
	assert.Equal(t, events.CategoryHandoffs, events.NoticeRecallRequested.Category())
}
