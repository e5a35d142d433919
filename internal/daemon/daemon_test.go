package daemon_test

import (
	"context"
	"testing"

	"github.com/gofrs/flock"

	"pagepass/internal/daemon"
	"pagepass/internal/testsupport"
)

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, st, nil, daemon.Options{})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.APIAddress == "" {
		t.Fatal("expected api address while running")
	}
	if status.NextSweep.IsZero() {
		t.Fatal("expected next sweep to be scheduled")
	}
	if status.Database.SchemaVersion == 0 {
		t.Fatalf("expected schema version, got %+v", status.Database)
	}
	if got := status.Books["available"]; got != 0 {
		t.Fatalf("expected empty library, got %d available", got)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
	if status.APIAddress != "" {
		t.Fatalf("expected api to be closed, got %q", status.APIAddress)
	}
}

func TestDaemonRefusesSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	other := flock.New(cfg.LockPath())
	locked, err := other.TryLock()
	if err != nil || !locked {
		t.Fatalf("pre-lock failed: locked=%v err=%v", locked, err)
	}
	defer other.Unlock()

	d, err := daemon.New(cfg, st, nil, daemon.Options{})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err == nil {
		d.Stop()
		t.Fatal("expected start to fail while another instance holds the lock")
	}
	if d.Running() {
		t.Fatal("daemon must not report running after a failed start")
	}
}

func TestDaemonRejectsBadSchedule(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Circulation.SweepSchedule = "whenever"
	st := testsupport.MustOpenStore(t, cfg)
	if _, err := daemon.New(cfg, st, nil, daemon.Options{}); err == nil {
		t.Fatal("expected invalid sweep schedule to be rejected")
	}
}

func TestTestNotificationWithoutSink(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, st, nil, daemon.Options{})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	sent, message, err := d.TestNotification(context.Background(), "olive")
	if err != nil || sent {
		t.Fatalf("expected a skipped notification, got sent=%v err=%v", sent, err)
	}
	if message != "ntfy url not configured" {
		t.Fatalf("unexpected message %q", message)
	}
}
