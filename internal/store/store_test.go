package store_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"pagepass/internal/store"
	"pagepass/internal/testsupport"
)

func insertBook(t *testing.T, s *store.Store, owner string) *store.Book {
	t.Helper()
	book := &store.Book{Title: "Dune", Author: "Frank Herbert", OwnerID: owner, Status: store.StatusAvailable}
	err := s.WithTx(context.Background(), func(tx *store.Tx) error {
		return tx.InsertBook(context.Background(), book)
	})
	if err != nil {
		t.Fatalf("InsertBook failed: %v", err)
	}
	return book
}

func queuePositions(t *testing.T, s *store.Store, bookID int64) map[string]int {
	t.Helper()
	entries, err := s.ListQueue(context.Background(), bookID)
	if err != nil {
		t.Fatalf("ListQueue failed: %v", err)
	}
	out := make(map[string]int, len(entries))
	for _, e := range entries {
		out[e.UserID] = e.Position
	}
	return out
}

func TestOpenCreatesSchemaAndRoundTripsBook(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)

	book := insertBook(t, s, "olivia")
	if book.ID == 0 {
		t.Fatal("expected book ID to be assigned")
	}

	fetched, err := s.GetBook(context.Background(), book.ID)
	if err != nil {
		t.Fatalf("GetBook failed: %v", err)
	}
	if fetched == nil || fetched.Title != "Dune" || fetched.OwnerID != "olivia" || fetched.Status != store.StatusAvailable {
		t.Fatalf("unexpected fetched book: %#v", fetched)
	}
	if fetched.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be set")
	}

	missing, err := s.GetBook(context.Background(), book.ID+100)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing book, got %#v err=%v", missing, err)
	}

	health, err := s.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || health.SchemaVersion != 2 {
		t.Fatalf("unexpected health: %#v", health)
	}
}

func TestReopenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := s.DB().Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = s.Close()

	if _, err := store.Open(cfg); !errors.Is(err, store.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestUpdateBookRejectsInvariantViolations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	book := insertBook(t, s, "olivia")

	due := time.Now().Add(time.Hour)
	cases := []struct {
		name   string
		mutate func(b *store.Book)
	}{
		{"borrowed without holder", func(b *store.Book) { b.Status = store.StatusBorrowed }},
		{"holder while available", func(b *store.Book) { b.HolderID = "ann" }},
		{"due date while in transit", func(b *store.Book) {
			b.Status = store.StatusInTransit
			b.HolderID = "olivia"
			b.HolderSince = &due
			b.DueDate = &due
		}},
		{"recall requested without active recall", func(b *store.Book) { b.RecallRequested = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			copyBook := *book
			tc.mutate(&copyBook)
			err := s.WithTx(context.Background(), func(tx *store.Tx) error {
				return tx.UpdateBook(context.Background(), &copyBook)
			})
			if err == nil {
				t.Fatal("expected invariant violation")
			}
		})
	}
}

func TestCloseQueueGapKeepsPositionsContiguous(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	book := insertBook(t, s, "olivia")
	ctx := context.Background()

	users := []string{"ann", "ben", "cat", "dan", "eve"}
	err := s.WithTx(ctx, func(tx *store.Tx) error {
		for i, u := range users {
			entry := &store.QueueEntry{BookID: book.ID, UserID: u, Position: i + 1, PassCount: 2}
			if err := tx.InsertQueueEntry(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed queue: %v", err)
	}

	err = s.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.DeleteQueueEntry(ctx, book.ID, "ben"); err != nil {
			return err
		}
		moved, err := tx.CloseQueueGap(ctx, book.ID, 2)
		if err != nil {
			return err
		}
		if moved != 3 {
			return fmt.Errorf("expected 3 moved entries, got %d", moved)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("close gap: %v", err)
	}

	got := queuePositions(t, s, book.ID)
	want := map[string]int{"ann": 1, "cat": 2, "dan": 3, "eve": 4}
	for user, pos := range want {
		if got[user] != pos {
			t.Fatalf("user %s: expected position %d, got %d (all=%v)", user, pos, got[user], got)
		}
	}

	entries, _ := s.ListQueue(ctx, book.ID)
	for _, e := range entries {
		if e.UserID == "ann" && e.PassCount != 2 {
			t.Fatalf("expected unmoved entry to keep pass count, got %d", e.PassCount)
		}
		if e.UserID != "ann" && e.PassCount != 0 {
			t.Fatalf("expected moved entry %s to reset pass count, got %d", e.UserID, e.PassCount)
		}
	}
}

func TestSwapQueuePositions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	book := insertBook(t, s, "olivia")
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *store.Tx) error {
		for i, u := range []string{"ann", "ben", "cat"} {
			if err := tx.InsertQueueEntry(ctx, &store.QueueEntry{BookID: book.ID, UserID: u, Position: i + 1}); err != nil {
				return err
			}
		}
		return tx.SwapQueuePositions(ctx, book.ID, 1, 2)
	})
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	got := queuePositions(t, s, book.ID)
	if got["ann"] != 2 || got["ben"] != 1 || got["cat"] != 3 {
		t.Fatalf("unexpected positions after swap: %v", got)
	}
}

func TestOpenHandoffUniquePerBook(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	book := insertBook(t, s, "olivia")
	ctx := context.Background()

	first := &store.Handoff{ID: "h-1", BookID: book.ID, GiverID: "olivia", ReceiverID: "ann", Kind: store.HandoffPagepass}
	if err := s.WithTx(ctx, func(tx *store.Tx) error { return tx.InsertHandoff(ctx, first) }); err != nil {
		t.Fatalf("insert first handoff: %v", err)
	}
	second := &store.Handoff{ID: "h-2", BookID: book.ID, GiverID: "olivia", ReceiverID: "ben", Kind: store.HandoffPagepass}
	if err := s.WithTx(ctx, func(tx *store.Tx) error { return tx.InsertHandoff(ctx, second) }); err == nil {
		t.Fatal("expected unique violation for second open handoff")
	}

	now := time.Now()
	first.GiverConfirmedAt = &now
	first.ReceiverConfirmedAt = &now
	first.BothConfirmedAt = &now
	if err := s.WithTx(ctx, func(tx *store.Tx) error { return tx.UpdateHandoffConfirmations(ctx, first) }); err != nil {
		t.Fatalf("close handoff: %v", err)
	}
	err := s.WithTx(ctx, func(tx *store.Tx) error { return tx.UpdateHandoffConfirmations(ctx, first) })
	if !errors.Is(err, store.ErrHandoffFrozen) {
		t.Fatalf("expected ErrHandoffFrozen, got %v", err)
	}
	if err := s.WithTx(ctx, func(tx *store.Tx) error { return tx.InsertHandoff(ctx, second) }); err != nil {
		t.Fatalf("expected new handoff after close, got %v", err)
	}

	open, err := s.ListOpenHandoffsBetween(ctx, "ben", "olivia")
	if err != nil {
		t.Fatalf("ListOpenHandoffsBetween: %v", err)
	}
	if len(open) != 1 || open[0].ID != "h-2" {
		t.Fatalf("unexpected open handoffs: %#v", open)
	}
}

func TestOwnershipSingleOpenRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	book := insertBook(t, s, "olivia")
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *store.Tx) error {
		return tx.InsertOwnership(ctx, &store.OwnershipRecord{BookID: book.ID, OwnerID: "olivia", AcquiredVia: store.AcquiredAdded})
	})
	if err != nil {
		t.Fatalf("insert ownership: %v", err)
	}
	err = s.WithTx(ctx, func(tx *store.Tx) error {
		return tx.InsertOwnership(ctx, &store.OwnershipRecord{BookID: book.ID, OwnerID: "ann", AcquiredVia: store.AcquiredGift})
	})
	if err == nil {
		t.Fatal("expected second open ownership record to be rejected")
	}

	err = s.WithTx(ctx, func(tx *store.Tx) error {
		current, err := tx.CurrentOwnership(ctx, book.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return sql.ErrNoRows
		}
		if err := tx.EndOwnership(ctx, current.ID, tx.Now()); err != nil {
			return err
		}
		return tx.InsertOwnership(ctx, &store.OwnershipRecord{BookID: book.ID, OwnerID: "ann", AcquiredVia: store.AcquiredGift, PreviousOwnerID: "olivia"})
	})
	if err != nil {
		t.Fatalf("transfer ownership: %v", err)
	}

	records, err := s.ListOwnership(ctx, book.ID)
	if err != nil {
		t.Fatalf("ListOwnership: %v", err)
	}
	if len(records) != 2 || records[0].EndedAt == nil || records[1].EndedAt != nil || records[1].PreviousOwnerID != "olivia" {
		t.Fatalf("unexpected ownership records: %#v", records)
	}
}

func TestExpiredOffersOnlyAvailableHeads(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	available := insertBook(t, s, "olivia")
	offShelf := insertBook(t, s, "olivia")

	old := time.Now().Add(-72 * time.Hour)
	recent := time.Now().Add(-time.Hour)
	err := s.WithTx(ctx, func(tx *store.Tx) error {
		offShelf.Status = store.StatusOffShelf
		if err := tx.UpdateBook(ctx, offShelf); err != nil {
			return err
		}
		entries := []*store.QueueEntry{
			{BookID: available.ID, UserID: "ann", Position: 1, OfferedAt: &old},
			{BookID: available.ID, UserID: "ben", Position: 2},
			{BookID: offShelf.ID, UserID: "cat", Position: 1, OfferedAt: &old},
		}
		for _, e := range entries {
			if err := tx.InsertQueueEntry(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	expired, err := s.ExpiredOffers(ctx, time.Now().Add(-48*time.Hour))
	if err != nil {
		t.Fatalf("ExpiredOffers: %v", err)
	}
	if len(expired) != 1 || expired[0].UserID != "ann" {
		t.Fatalf("unexpected expired offers: %#v", expired)
	}

	notYet, err := s.ExpiredOffers(ctx, recent.Add(-100*time.Hour))
	if err != nil {
		t.Fatalf("ExpiredOffers: %v", err)
	}
	if len(notYet) != 0 {
		t.Fatalf("expected no offers older than cutoff, got %#v", notYet)
	}
}

func TestStatsCountsEveryStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	insertBook(t, s, "olivia")
	insertBook(t, s, "olivia")

	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[store.StatusAvailable] != 2 {
		t.Fatalf("expected 2 available, got %d", stats[store.StatusAvailable])
	}
	if _, ok := stats[store.StatusOffShelf]; !ok {
		t.Fatal("expected every status key present")
	}
}

func TestParseStatus(t *testing.T) {
	for _, status := range store.AllStatuses() {
		got, ok := store.ParseStatus(string(status))
		if !ok || got != status {
			t.Fatalf("ParseStatus(%q) = %q, %v", status, got, ok)
		}
	}
	if _, ok := store.ParseStatus("lost"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}
