package ipc_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pagepass/internal/api"
	"pagepass/internal/daemon"
	"pagepass/internal/faults"
	"pagepass/internal/ipc"
	"pagepass/internal/logging"
	"pagepass/internal/testsupport"
)

func newIPCClient(t *testing.T) *ipc.Client {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	clock := testsupport.NewClock(time.Time{})
	d, err := daemon.New(cfg, st, logger, daemon.Options{Clock: clock.Now})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	socket := filepath.Join(cfg.Paths.DataDir, "ipc-test.sock")
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})
	return client
}

func TestIPCServerClient(t *testing.T) {
	client := newIPCClient(t)

	startResp, err := client.Start()
	if err != nil {
		t.Fatalf("Start RPC failed: %v", err)
	}
	if !startResp.Started {
		t.Fatalf("expected Started=true, message=%s", startResp.Message)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running {
		t.Fatal("expected daemon running")
	}
	if status.SchemaVersion == 0 {
		t.Fatalf("expected schema version in status, got %+v", status)
	}
	if status.NextSweep == "" {
		t.Fatal("expected next sweep time")
	}

	book, err := client.AddBook("olive", "The Dispossessed", "Ursula K. Le Guin")
	if err != nil {
		t.Fatalf("AddBook RPC failed: %v", err)
	}
	if book.Status != "available" || book.OwnerID != "olive" {
		t.Fatalf("unexpected book %+v", book)
	}

	h, err := client.Borrow("bea", book.ID)
	if err != nil {
		t.Fatalf("Borrow RPC failed: %v", err)
	}
	if h.GiverID != "olive" || h.ReceiverID != "bea" || !h.Open {
		t.Fatalf("unexpected handoff %+v", h)
	}

	summary, err := client.ConfirmWith("olive", "bea")
	if err != nil {
		t.Fatalf("ConfirmWith RPC failed: %v", err)
	}
	if summary.WaitingCount != 1 {
		t.Fatalf("expected one waiting handoff, got %+v", summary)
	}

	result, err := client.Confirm("bea", h.ID, "receiver")
	if err != nil {
		t.Fatalf("Confirm RPC failed: %v", err)
	}
	if result.Book == nil || result.Book.HolderID != "bea" || result.Book.DueDate == "" {
		t.Fatalf("expected bea to hold the book with a due date, got %+v", result)
	}

	joined, err := client.JoinQueue("cy", book.ID)
	if err != nil {
		t.Fatalf("JoinQueue RPC failed: %v", err)
	}
	if joined.Position != 1 {
		t.Fatalf("expected position 1, got %d", joined.Position)
	}

	waiting, err := client.Waitlists("cy")
	if err != nil {
		t.Fatalf("Waitlists RPC failed: %v", err)
	}
	if len(waiting) != 1 || waiting[0].BookID != book.ID {
		t.Fatalf("unexpected waitlists %+v", waiting)
	}

	events, err := client.History(ipc.HistoryRequest{BookID: book.ID})
	if err != nil {
		t.Fatalf("History RPC failed: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("expected ledger events for the book")
	}

	if _, err := client.Stop(); err != nil {
		t.Fatalf("Stop RPC failed: %v", err)
	}
	status, err = client.Status()
	if err != nil {
		t.Fatalf("Status after stop failed: %v", err)
	}
	if status.Running {
		t.Fatal("expected daemon stopped")
	}
}

func TestIPCErrorsKeepTheirKind(t *testing.T) {
	client := newIPCClient(t)

	_, err := client.Book(9999)
	if !errors.Is(err, faults.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	book, err := client.AddBook("olive", "Kindred", "")
	if err != nil {
		t.Fatalf("AddBook RPC failed: %v", err)
	}
	if _, err := client.Recall("bea", book.ID); !errors.Is(err, faults.ErrNotAuthorized) {
		t.Fatalf("expected not authorized for non-owner recall, got %v", err)
	}
	if _, err := client.JoinQueue("bea", book.ID); err != nil {
		t.Fatalf("JoinQueue RPC failed: %v", err)
	}
	if _, err := client.JoinQueue("bea", book.ID); !errors.Is(err, faults.ErrAlreadyQueued) {
		t.Fatalf("expected already queued, got %v", err)
	}
	if _, err := client.Confirm("olive", "not-a-handoff", "sideways"); !errors.Is(err, faults.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if _, err := client.ConfirmBatch("olive", []api.BatchConfirmItem{}); !errors.Is(err, faults.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for empty batch, got %v", err)
	}
}

func TestTestNotificationWithoutSink(t *testing.T) {
	client := newIPCClient(t)
	resp, err := client.TestNotification("olive")
	if err != nil {
		t.Fatalf("TestNotification RPC failed: %v", err)
	}
	if resp.Sent {
		t.Fatal("expected no notification without an ntfy url")
	}
	if resp.Message == "" {
		t.Fatal("expected explanation message")
	}
}
