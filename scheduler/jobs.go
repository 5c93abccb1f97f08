package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cppla/punchclock/models"
	"github.com/cppla/punchclock/services"
	"github.com/cppla/punchclock/utils"
)

const reminderLedgerTTL = 36 * time.Hour

// JobReport aggregates one run. Users that failed are excluded from
// Succeeded and listed in FailedUsers.
type JobReport struct {
	Job         string    `json:"job"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Processed   int       `json:"processed"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	FailedUsers []uint    `json:"failedUsers"`
	Cancelled   bool      `json:"cancelled"`
	Error       string    `json:"error,omitempty"`

	Closed          int  `json:"closedCount"`
	RemindersSent   int  `json:"remindersSent"`
	OpenPunches     int  `json:"openPunches"`
	OrphanedPunches int  `json:"orphanedPunches"`
	Annotated       int  `json:"annotated"`
	Alerted         bool `json:"alerted"`
}

// RunAutoClose closes open sessions of users whose local time has reached
// the trigger, and any session left open on an earlier local day. force
// closes regardless of the local time.
func (s *Scheduler) RunAutoClose(ctx context.Context, force bool) JobReport {
	report, closed := s.forEachUser(ctx, JobAutoClose, func(ctx context.Context, u *models.User) (bool, error) {
		res, err := s.engine.Punches.AutoCloseUser(ctx, u, force)
		if err != nil {
			return false, err
		}
		if res.Closed {
			s.logger.Info("auto-closed open punch", zap.Uint("user_id", u.ID), zap.Time("in", res.OpenedAt), zap.Time("out", res.Punch.PunchTime))
		}
		return res.Closed, nil
	})
	report.Closed = closed
	return report
}

// RunReminders reminds users whose session has been open for the reminder
// threshold. Each open IN gets at most one delivered reminder; a failed
// delivery counts the user as failed and is retried on the next run.
func (s *Scheduler) RunReminders(ctx context.Context) JobReport {
	threshold := s.engine.Policy.ReminderAfter
	report, sent := s.forEachUser(ctx, JobReminders, func(ctx context.Context, u *models.User) (bool, error) {
		open, err := s.engine.Detector.OpenSession(ctx, u)
		if err != nil || open == nil {
			return false, err
		}
		if s.engine.Clock.Now().Sub(open.InTime) < threshold {
			return false, nil
		}
		key := "reminder:" + open.PunchID
		first, err := s.ledger.MarkOnce(ctx, key, reminderLedgerTTL)
		if err != nil || !first {
			return false, err
		}
		if err := s.engine.Notifier.SendReminder(ctx, *u, open.InTime); err != nil {
			if ferr := s.ledger.Forget(ctx, key); ferr != nil {
				s.logger.Warn("reminder ledger release failed", zap.Uint("user_id", u.ID), zap.Error(ferr))
			}
			return false, fmt.Errorf("send reminder: %w", err)
		}
		return true, nil
	})
	report.RemindersSent = sent
	return report
}

// RunHealthCheck takes the open-punch census and a dry-run orphan scan and
// alerts when either count crosses its threshold. It never repairs anything.
func (s *Scheduler) RunHealthCheck(ctx context.Context) JobReport {
	report := JobReport{Job: JobHealthCheck, StartedAt: time.Now(), FailedUsers: []uint{}}
	defer func() { report.FinishedAt = time.Now() }()

	census, err := s.engine.Detector.OpenPunchCensus(ctx)
	if err != nil {
		report.Error = err.Error()
		report.Cancelled = ctx.Err() != nil
		s.logger.Error("health check census failed", zap.Error(err))
		return report
	}
	orphans, err := s.engine.Detector.ScanOrphans(ctx, true)
	if err != nil {
		report.Error = err.Error()
		report.Cancelled = ctx.Err() != nil
		s.logger.Error("health check orphan scan failed", zap.Error(err))
		return report
	}

	report.Processed = census.Scanned
	report.OpenPunches = len(census.Open)
	report.OrphanedPunches = len(orphans.Flagged)
	report.FailedUsers = mergeFailures(census.Failures, orphans.Failures)
	report.Failed = len(report.FailedUsers)
	report.Succeeded = report.Processed - report.Failed

	if report.OpenPunches > s.opts.OpenPunchAlertThreshold {
		report.Alerted = true
		s.alert(fmt.Sprintf("health check: %d open punches exceed threshold %d", report.OpenPunches, s.opts.OpenPunchAlertThreshold))
	}
	if report.OrphanedPunches > s.opts.OrphanAlertThreshold {
		report.Alerted = true
		s.alert(fmt.Sprintf("health check: %d orphaned punches exceed threshold %d", report.OrphanedPunches, s.opts.OrphanAlertThreshold))
	}
	s.logger.Info("health check",
		zap.Int("open_punches", report.OpenPunches),
		zap.Int("orphaned_punches", report.OrphanedPunches),
		zap.Bool("alerted", report.Alerted),
	)
	return report
}

// RunOrphanCleanup runs the orphan scan in annotate mode.
func (s *Scheduler) RunOrphanCleanup(ctx context.Context) JobReport {
	report := JobReport{Job: JobOrphanCleanup, StartedAt: time.Now(), FailedUsers: []uint{}}
	defer func() { report.FinishedAt = time.Now() }()

	res, err := s.engine.Detector.ScanOrphans(ctx, false)
	report.Processed = res.Scanned
	report.OrphanedPunches = len(res.Flagged)
	report.Annotated = res.Annotated
	report.FailedUsers = mergeFailures(res.Failures)
	report.Failed = len(report.FailedUsers)
	report.Succeeded = report.Processed - report.Failed
	if err != nil {
		report.Error = err.Error()
		report.Cancelled = ctx.Err() != nil
		s.logger.Error("orphan cleanup stopped", zap.Error(err))
	}
	return report
}

func (s *Scheduler) alert(msg string) {
	s.logger.Warn(msg)
	if err := s.alerter.Error(msg); err != nil {
		s.logger.Warn("alert delivery failed", zap.Error(err))
	}
}

// forEachUser fans fn out over active users, at most Concurrency at a time.
// A failing user is logged and counted; the rest still run. Cancellation is
// checked before each user starts. hits counts users for which fn returned true.
func (s *Scheduler) forEachUser(ctx context.Context, job string, fn func(context.Context, *models.User) (bool, error)) (JobReport, int) {
	report := JobReport{Job: job, StartedAt: time.Now(), FailedUsers: []uint{}}
	users, err := s.engine.Users.ListActiveUsers(ctx)
	if err != nil {
		report.Error = err.Error()
		report.Cancelled = ctx.Err() != nil
		report.FinishedAt = time.Now()
		s.logger.Error("list active users failed", zap.String("job", job), zap.Error(err))
		return report, 0
	}

	var (
		mu   sync.Mutex
		hits int
		g    errgroup.Group
	)
	g.SetLimit(s.opts.Concurrency)
	for i := range users {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		u := &users[i]
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			hit, err := runIsolated(ctx, u, fn)

			mu.Lock()
			defer mu.Unlock()
			report.Processed++
			if err != nil {
				report.Failed++
				report.FailedUsers = append(report.FailedUsers, u.ID)
				s.logger.Warn("job failed for user", zap.String("job", job), zap.Uint("user_id", u.ID), zap.Error(err))
				return nil
			}
			report.Succeeded++
			if hit {
				hits++
			}
			return nil
		})
	}
	_ = g.Wait()
	if ctx.Err() != nil {
		report.Cancelled = true
	}
	report.FailedUsers = utils.SortedUnique(report.FailedUsers)
	report.FinishedAt = time.Now()
	return report, hits
}

// runIsolated converts a panic in fn into an error for that user.
func runIsolated(ctx context.Context, u *models.User, fn func(context.Context, *models.User) (bool, error)) (hit bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, u)
}

func mergeFailures(lists ...[]services.UserFailure) []uint {
	ids := []uint{}
	for _, l := range lists {
		for _, f := range l {
			ids = append(ids, f.UserID)
		}
	}
	return utils.SortedUnique(ids)
}
