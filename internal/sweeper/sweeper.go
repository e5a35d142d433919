// Package sweeper runs the offer-expiry sweep on a cron schedule.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"pagepass/internal/circulation"
	"pagepass/internal/logging"
)

// Runner performs one sweep.
type Runner interface {
	SweepExpiredOffers(ctx context.Context) (circulation.SweepReport, error)
}

// Sweeper schedules Runner on a cron spec such as "@every 15m".
type Sweeper struct {
	schedule string
	runner   Runner
	logger   *slog.Logger
	cron     *cron.Cron
	entry    cron.EntryID

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New validates schedule and prepares a stopped Sweeper.
func New(schedule string, runner Runner, logger *slog.Logger) (*Sweeper, error) {
	schedule = strings.TrimSpace(schedule)
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "sweeper")
	s := &Sweeper{
		schedule: schedule,
		runner:   runner,
		logger:   logger,
	}
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger: logger})))
	entry, err := s.cron.AddFunc(schedule, s.tick)
	if err != nil {
		return nil, fmt.Errorf("schedule sweep: %w", err)
	}
	s.entry = entry
	return s, nil
}

// Start begins running sweeps until ctx is cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.logger.Info("offer sweep scheduled", logging.String("schedule", s.schedule))
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	<-s.cron.Stop().Done()
	cancel()
}

// NextRun returns when the next scheduled sweep fires, or the zero time when
// the schedule is not running.
func (s *Sweeper) NextRun() time.Time {
	return s.cron.Entry(s.entry).Next
}

// RunOnce performs a sweep immediately.
func (s *Sweeper) RunOnce(ctx context.Context) (circulation.SweepReport, error) {
	report, err := s.runner.SweepExpiredOffers(ctx)
	if err != nil {
		logging.ErrorWithContext(s.logger, "offer sweep failed", "offer_sweep_error",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database health with pagepass status"),
		)
		return report, err
	}
	if report.Checked > 0 {
		s.logger.Info("offer sweep finished",
			logging.String(logging.FieldEventType, "offer_sweep_finished"),
			logging.Int("checked", report.Checked),
			logging.Int("passed", report.Passed),
			logging.Int("escalated", report.Escalated),
			logging.Int("skipped", report.Skipped),
			logging.Int("failed", report.Failed),
		)
	}
	return report, nil
}

func (s *Sweeper) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	_, _ = s.RunOnce(ctx)
}

// cronLogger routes robfig/cron's own messages into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{logging.Error(err)}, keysAndValues...)...)
}
