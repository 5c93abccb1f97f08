// Package scheduler runs the reconciliation jobs: auto-close, reminders,
// the hourly health check and the weekly orphan cleanup.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/punchclock/config"
	"github.com/cppla/punchclock/services"
)

// Job names.
const (
	JobAutoClose     = "auto_close"
	JobReminders     = "reminders"
	JobHealthCheck   = "health_check"
	JobOrphanCleanup = "orphan_cleanup"
)

// Alerter receives health-check alerts.
type Alerter interface {
	Info(message string) error
	Error(message string) error
}

// ReminderLedger de-duplicates reminders. Forget releases a key whose
// reminder was not delivered so a later run retries it.
type ReminderLedger interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Forget(ctx context.Context, key string) error
}

// Options tune cadence, fan-out and alert thresholds. A non-positive
// interval disables the job's ticker; the Run* methods still work.
type Options struct {
	AutoCloseInterval       time.Duration
	ReminderInterval        time.Duration
	HealthCheckInterval     time.Duration
	OrphanCleanupInterval   time.Duration
	Concurrency             int
	OpenPunchAlertThreshold int
	OrphanAlertThreshold    int
}

// OptionsFromConfig converts the scheduler section.
func OptionsFromConfig(c config.SchedulerConfig) Options {
	return Options{
		AutoCloseInterval:       time.Duration(c.AutoCloseIntervalSec) * time.Second,
		ReminderInterval:        time.Duration(c.ReminderIntervalSec) * time.Second,
		HealthCheckInterval:     time.Duration(c.HealthCheckIntervalSec) * time.Second,
		OrphanCleanupInterval:   time.Duration(c.OrphanCleanupIntervalHours) * time.Hour,
		Concurrency:             c.Concurrency,
		OpenPunchAlertThreshold: c.OpenPunchAlertThreshold,
		OrphanAlertThreshold:    c.OrphanAlertThreshold,
	}
}

// Scheduler owns the job tickers. Construct it with New, then Start and Stop
// it from the process entry point.
type Scheduler struct {
	engine  *services.Engine
	ledger  ReminderLedger
	alerter Alerter
	opts    Options
	logger  *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New builds a scheduler. A nil alerter only logs.
func New(engine *services.Engine, ledger ReminderLedger, alerter Alerter, opts Options, logger *zap.Logger) *Scheduler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if alerter == nil {
		alerter = nopAlerter{}
	}
	return &Scheduler{engine: engine, ledger: ledger, alerter: alerter, opts: opts, logger: logger}
}

// Start launches one ticker goroutine per enabled job. Calling Start twice is a no-op.
func (s *Scheduler) Start(parent context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.running = true

	s.every(ctx, JobAutoClose, s.opts.AutoCloseInterval, func(ctx context.Context) JobReport { return s.RunAutoClose(ctx, false) })
	s.every(ctx, JobReminders, s.opts.ReminderInterval, s.RunReminders)
	s.every(ctx, JobHealthCheck, s.opts.HealthCheckInterval, s.RunHealthCheck)
	s.every(ctx, JobOrphanCleanup, s.opts.OrphanCleanupInterval, s.RunOrphanCleanup)
	s.logger.Info("scheduler started")
}

// Stop cancels running jobs between users and waits for the goroutines.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) every(ctx context.Context, name string, interval time.Duration, run func(context.Context) JobReport) {
	if interval <= 0 {
		s.logger.Info("job disabled", zap.String("job", name))
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				report := run(ctx)
				s.logReport(report)
			}
		}
	}()
}

func (s *Scheduler) logReport(r JobReport) {
	fields := []zap.Field{
		zap.String("job", r.Job),
		zap.Int("processed", r.Processed),
		zap.Int("succeeded", r.Succeeded),
		zap.Int("failed", r.Failed),
		zap.Duration("took", r.FinishedAt.Sub(r.StartedAt)),
	}
	if r.Failed > 0 {
		s.logger.Warn("job finished with failures", append(fields, zap.Uints("failed_users", r.FailedUsers))...)
		return
	}
	s.logger.Info("job finished", fields...)
}

type nopAlerter struct{}

func (nopAlerter) Info(string) error  { return nil }
func (nopAlerter) Error(string) error { return nil }
