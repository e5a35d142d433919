package faults_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"pagepass/internal/faults"
)

func TestWrapPreservesSentinel(t *testing.T) {
	err := faults.Wrap(faults.ErrAlreadyQueued, "join", "user bob already in queue for book 7")
	if !errors.Is(err, faults.ErrAlreadyQueued) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
	if got := err.Error(); got != "already queued: join: user bob already in queue for book 7" {
		t.Fatalf("unexpected message: %q", got)
	}
	if faults.KindOf(err) != faults.KindAlreadyQueued {
		t.Fatalf("unexpected kind: %q", faults.KindOf(err))
	}
	if faults.HTTPStatus(err) != http.StatusConflict {
		t.Fatalf("unexpected status: %d", faults.HTTPStatus(err))
	}
}

func TestKindOfInfrastructureError(t *testing.T) {
	err := fmt.Errorf("load book: %w", errors.New("disk I/O error"))
	if faults.KindOf(err) != faults.KindInternal {
		t.Fatalf("expected internal kind, got %q", faults.KindOf(err))
	}
	if faults.HTTPStatus(err) != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", faults.HTTPStatus(err))
	}
	if faults.KindOf(nil) != "" {
		t.Fatal("expected empty kind for nil error")
	}
}

func TestFromKindRestoresSentinel(t *testing.T) {
	err := faults.FromKind(faults.KindGiftLocked, "gift locked: toggle gift: book is borrowed")
	if !errors.Is(err, faults.ErrGiftLocked) {
		t.Fatalf("expected gift locked sentinel, got %v", err)
	}
	if err.Error() != "gift locked: toggle gift: book is borrowed" {
		t.Fatalf("expected message preserved, got %q", err.Error())
	}
	if faults.FromKind(faults.KindNotFound, "") != faults.ErrNotFound {
		t.Fatal("expected bare sentinel for empty message")
	}
}
