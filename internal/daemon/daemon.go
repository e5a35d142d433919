package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"pagepass/internal/api"
	"pagepass/internal/circulation"
	"pagepass/internal/config"
	"pagepass/internal/events"
	"pagepass/internal/history"
	"pagepass/internal/identity"
	"pagepass/internal/logging"
	"pagepass/internal/notifications"
	"pagepass/internal/store"
	"pagepass/internal/sweeper"
)

// Daemon owns the circulation services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	notifier notifications.Service
	ledger   *history.Ledger
	coord    *circulation.Coordinator
	sweeper  *sweeper.Sweeper
	service  *api.Service
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
}

// Options carries optional collaborators. Zero values select the production
// implementations derived from the config.
type Options struct {
	Notifier notifications.Service
	Clock    func() time.Time
}

// Status represents daemon runtime information.
type Status struct {
	Running     bool
	PID         int
	StartedAt   time.Time
	DBPath      string
	LockPath    string
	APIAddress  string
	OfferWindow time.Duration
	NextSweep   time.Time
	Books       map[string]int
	Database    store.DatabaseHealth
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, opts Options) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	ledgerOpts := history.OptionsFromConfig(cfg, logger)
	ledgerOpts.Clock = opts.Clock
	ledger := history.New(st.DB(), ledgerOpts)
	coord := circulation.New(st, circulation.Options{
		Notifier:      notifier,
		Ledger:        ledger,
		Visibility:    history.NewVisibilityRecorder(ledger),
		Logger:        logger,
		Clock:         opts.Clock,
		LoanPeriod:    cfg.LoanPeriod(),
		PassThreshold: cfg.Circulation.PassEscalationThreshold,
		OfferWindow:   cfg.OfferWindow(),
	})
	sw, err := sweeper.New(cfg.Circulation.SweepSchedule, coord, logger)
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		notifier: notifier,
		ledger:   ledger,
		coord:    coord,
		sweeper:  sw,
		service:  api.NewService(coord, ledger, sw),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	d.api = newAPIServer(cfg, d, identity.NewAuthenticator(cfg), logger)
	return d, nil
}

// Start acquires the daemon lock, schedules the offer sweep, and starts the
// HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another pagepass daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api: %w", err)
	}
	d.sweeper.Start(runCtx)

	d.cancel = cancel
	d.startedAt = time.Now().UTC()
	d.running.Store(true)
	d.logger.Info("pagepass daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
	)
	return nil
}

// Stop halts the sweeper and API and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.sweeper.Stop()
	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "next daemon start may report a running instance"),
		)
	}
	d.running.Store(false)
	d.logger.Info("pagepass daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Service returns the DTO service shared by the HTTP and IPC layers.
func (d *Daemon) Service() *api.Service {
	return d.service
}

// Running reports whether Start has succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:     d.running.Load(),
		PID:         os.Getpid(),
		DBPath:      d.store.Path(),
		LockPath:    d.lockPath,
		APIAddress:  d.api.address(),
		OfferWindow: d.coord.OfferWindow(),
	}
	d.mu.Lock()
	status.StartedAt = d.startedAt
	d.mu.Unlock()
	if status.Running {
		status.NextSweep = d.sweeper.NextRun()
	}
	if books, err := d.service.Stats(ctx); err == nil {
		status.Books = books
	} else {
		d.logger.Debug("book stats unavailable", logging.Error(err))
	}
	health, err := d.coord.Health(ctx)
	if err != nil && health.Error == "" {
		health.Error = err.Error()
	}
	status.Database = health
	return status
}

// TestNotification sends a test notice to userID using the configured sink.
func (d *Daemon) TestNotification(ctx context.Context, userID string) (bool, string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, "user id is required", nil
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyURL) == "" {
		return false, "ntfy url not configured", nil
	}
	notice := events.Notice{
		UserID:  userID,
		Kind:    events.NoticeTest,
		Message: "This is a test notification from PagePass.",
		Data:    map[string]any{"test": true},
	}
	if err := d.notifier.Notify(ctx, notice); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent to " + notifications.TopicFor(d.cfg.Notifications.TopicPrefix, userID), nil
}
