package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagepass/internal/circulation"
	"pagepass/internal/faults"
	"pagepass/internal/store"
)

func TestSortHandoffsNewestFirst(t *testing.T) {
	items := []Handoff{
		{ID: "a", CreatedAt: "2026-03-02T09:00:00.000Z"},
		{ID: "c", CreatedAt: "2026-03-04T09:00:00.000Z"},
		{ID: "b", CreatedAt: "2026-03-04T09:00:00.000Z"},
		{ID: "z", CreatedAt: "garbage"},
	}
	sorted := SortHandoffsNewestFirst(items)
	ids := make([]string, 0, len(sorted))
	for _, h := range sorted {
		ids = append(ids, h.ID)
	}
	assert.Equal(t, []string{"c", "b", "a", "z"}, ids)
	assert.Equal(t, "a", items[0].ID, "input untouched")
}

func TestFromBookFormatsTimes(t *testing.T) {
	due := time.Date(2026, time.March, 16, 10, 0, 0, 0, time.FixedZone("EST", -5*3600))
	since := due.Add(-14 * 24 * time.Hour)
	dto := FromBook(&store.Book{
		ID:             3,
		Title:          "Kindred",
		OwnerID:        "olive",
		HolderID:       "bea",
		Status:         store.StatusBorrowed,
		DueDate:        &due,
		HolderSince:    &since,
		OffShelfReturn: store.ReturnOffShelf,
	})
	assert.Equal(t, "2026-03-16T15:00:00.000Z", dto.DueDate)
	assert.Equal(t, "borrowed", dto.Status)
	assert.True(t, dto.OffShelfOnReturn)
	assert.Empty(t, dto.CreatedAt)
	assert.True(t, due.Equal(ParseTime(dto.DueDate)))
}

func TestAwaitingRole(t *testing.T) {
	h := FromHandoff(&store.Handoff{ID: "h", GiverID: "olive", ReceiverID: "bea"})
	assert.True(t, h.Open)
	assert.Equal(t, "giver", h.AwaitingRole("olive"))
	assert.Equal(t, "receiver", h.AwaitingRole("bea"))
	assert.Equal(t, "", h.AwaitingRole("cy"))

	h.GiverConfirmedAt = "2026-03-02T09:00:00.000Z"
	assert.Equal(t, "", h.AwaitingRole("olive"))
}

func TestSummarizeBatchCounts(t *testing.T) {
	summary := SummarizeBatch([]circulation.BatchOutcome{
		{HandoffID: "1", Role: store.RoleGiver, Result: circulation.BatchClosed, BookID: 4},
		{HandoffID: "2", Role: store.RoleGiver, Result: circulation.BatchAlreadyConfirmed, ErrorKind: faults.KindAlreadyConfirmed},
		{HandoffID: "3", Role: store.RoleReceiver, Result: circulation.BatchError, ErrorKind: faults.KindNotFound, Message: "missing"},
	})
	assert.Equal(t, 1, summary.ClosedCount)
	assert.Equal(t, 0, summary.WaitingCount)
	assert.Equal(t, 1, summary.FailedCount)
	require.Len(t, summary.Items, 3)
	assert.Equal(t, "already_confirmed", summary.Items[1].Result)
	assert.Equal(t, "not_found", summary.Items[2].ErrorKind)
	assert.Equal(t, "receiver", summary.Items[2].Role)
}

func TestErrorFromKeepsDomainMessages(t *testing.T) {
	err := faults.Wrap(faults.ErrGiftLocked, "toggle gift", "book is lent out")
	body := ErrorFrom(err)
	assert.Equal(t, "gift_locked", body.Error.Kind)
	assert.Equal(t, err.Error(), body.Error.Message)
}
