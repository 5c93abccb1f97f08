package scheduler_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cppla/punchclock/config"
	"github.com/cppla/punchclock/models"
	"github.com/cppla/punchclock/scheduler"
	"github.com/cppla/punchclock/services"
	"github.com/cppla/punchclock/store"
	"github.com/cppla/punchclock/utils"
)

type countingNotifier struct {
	services.NopNotifier
	mu          sync.Mutex
	reminders   []uint
	missed      []uint
	reminderErr error
	attempts    int
}

func (n *countingNotifier) SendReminder(_ context.Context, u models.User, _ time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.attempts++
	if n.reminderErr != nil {
		return n.reminderErr
	}
	n.reminders = append(n.reminders, u.ID)
	return nil
}

func (n *countingNotifier) SendMissedPunchOutAlert(_ context.Context, u models.User, _, _ time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.missed = append(n.missed, u.ID)
	return nil
}

type recordingAlerter struct {
	mu     sync.Mutex
	errors []string
}

func (a *recordingAlerter) Info(string) error { return nil }

func (a *recordingAlerter) Error(msg string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errors = append(a.errors, msg)
	return nil
}

type fixture struct {
	repos    *store.Repositories
	engine   *services.Engine
	notifier *countingNotifier
	alerter  *recordingAlerter
	clock    *services.ManualClock
	sched    *scheduler.Scheduler
}

func newFixture(t *testing.T, now time.Time, opts scheduler.Options) *fixture {
	t.Helper()
	db, err := config.OpenDatabase(config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "sched.db"),
	}, "silent", store.Models()...)
	require.NoError(t, err)
	repos := store.New(db)

	f := &fixture{repos: repos, notifier: &countingNotifier{}, alerter: &recordingAlerter{}, clock: services.NewManualClock(now)}
	f.engine = services.NewEngine(services.DefaultPolicy(), services.Deps{
		Punches:  repos.Punches,
		Users:    repos.Users,
		Tx:       repos.Tx,
		Notifier: f.notifier,
		Clock:    f.clock,
	})
	if opts.Concurrency == 0 {
		opts.Concurrency = 2
	}
	f.sched = scheduler.New(f.engine, utils.NewOnceStore(nil, "test:"), f.alerter, opts, zap.NewNop())
	return f
}

func (f *fixture) user(t *testing.T, name, tz string) *models.User {
	t.Helper()
	u := &models.User{Username: name, Timezone: tz, Active: true}
	require.NoError(t, f.repos.Users.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) punch(t *testing.T, userID uint, typ string, at time.Time) *models.Punch {
	t.Helper()
	p := &models.Punch{UserID: userID, PunchType: typ, PunchTime: at, Source: models.SourceManual}
	require.NoError(t, f.repos.Punches.InsertPunch(context.Background(), p))
	return p
}

func TestRunAutoCloseIsolatesFailingUser(t *testing.T) {
	now := time.Date(2026, 3, 10, 23, 59, 30, 0, time.UTC)
	f := newFixture(t, now, scheduler.Options{})
	alice := f.user(t, "alice", "UTC")
	bob := f.user(t, "bob", "Mars/Phobos")
	f.user(t, "carol", "UTC")
	f.punch(t, alice.ID, models.PunchIn, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))
	f.punch(t, bob.ID, models.PunchIn, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))

	report := f.sched.RunAutoClose(context.Background(), false)

	assert.Equal(t, scheduler.JobAutoClose, report.Job)
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []uint{bob.ID}, report.FailedUsers)
	assert.Equal(t, 1, report.Closed)
	assert.Equal(t, []uint{alice.ID}, f.notifier.missed)

	last, err := f.repos.Punches.FindLastPunch(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PunchOut, last.PunchType)
	assert.Equal(t, models.SourceSystem, last.Source)
	assert.True(t, last.PunchTime.Before(now))
	assert.Contains(t, last.Notes, "missed punch out")

	// A second pass finds nothing left open.
	again := f.sched.RunAutoClose(context.Background(), false)
	assert.Equal(t, 0, again.Closed)
}

func TestRunAutoCloseNotDueBeforeTrigger(t *testing.T) {
	now := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	f := newFixture(t, now, scheduler.Options{})
	alice := f.user(t, "alice", "UTC")
	f.punch(t, alice.ID, models.PunchIn, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))

	report := f.sched.RunAutoClose(context.Background(), false)
	assert.Equal(t, 0, report.Closed)
	assert.Equal(t, 1, report.Succeeded)

	forced := f.sched.RunAutoClose(context.Background(), true)
	assert.Equal(t, 1, forced.Closed)
	last, err := f.repos.Punches.FindLastPunch(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.True(t, last.PunchTime.Equal(now))
}

func TestRunRemindersSendsOncePerOpenPunch(t *testing.T) {
	now := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	f := newFixture(t, now, scheduler.Options{})
	alice := f.user(t, "alice", "UTC")
	bob := f.user(t, "bob", "UTC")
	f.punch(t, alice.ID, models.PunchIn, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))
	f.punch(t, bob.ID, models.PunchIn, time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC))

	first := f.sched.RunReminders(context.Background())
	assert.Equal(t, 1, first.RemindersSent)
	assert.Equal(t, []uint{alice.ID}, f.notifier.reminders)

	second := f.sched.RunReminders(context.Background())
	assert.Equal(t, 0, second.RemindersSent)
	assert.Len(t, f.notifier.reminders, 1)
}

func TestRunAutoCloseAcrossMidnightAtDefaultCadence(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 10, 23, 55, 30, 0, time.UTC), scheduler.Options{})
	alice := f.user(t, "alice", "UTC")
	f.punch(t, alice.ID, models.PunchIn, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))

	// Ticks every five minutes never land inside 23:59..00:00.
	closed := 0
	for i := 0; i < 3; i++ {
		report := f.sched.RunAutoClose(context.Background(), false)
		assert.Zero(t, report.Failed)
		closed += report.Closed
		f.clock.Advance(5 * time.Minute)
	}
	assert.Equal(t, 1, closed)

	last, err := f.repos.Punches.FindLastPunch(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PunchOut, last.PunchType)
	assert.Equal(t, models.SourceSystem, last.Source)
	assert.Equal(t, "2026-03-10 23:58", last.PunchTime.Format("2006-01-02 15:04"))
	assert.Equal(t, []uint{alice.ID}, f.notifier.missed)
}

func TestRunRemindersRetriesFailedDelivery(t *testing.T) {
	now := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	f := newFixture(t, now, scheduler.Options{})
	alice := f.user(t, "alice", "UTC")
	f.punch(t, alice.ID, models.PunchIn, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))

	f.notifier.reminderErr = errors.New("smtp unavailable")
	first := f.sched.RunReminders(context.Background())
	assert.Equal(t, 0, first.RemindersSent)
	assert.Equal(t, 1, first.Failed)
	assert.Equal(t, 0, first.Succeeded)
	assert.Equal(t, []uint{alice.ID}, first.FailedUsers)

	f.notifier.reminderErr = nil
	second := f.sched.RunReminders(context.Background())
	assert.Equal(t, 1, second.RemindersSent)
	assert.Equal(t, 0, second.Failed)
	assert.Equal(t, []uint{alice.ID}, f.notifier.reminders)
	assert.Equal(t, 2, f.notifier.attempts)

	third := f.sched.RunReminders(context.Background())
	assert.Equal(t, 0, third.RemindersSent)
	assert.Equal(t, 2, f.notifier.attempts)
}

func TestRunHealthCheckAlertsOverThreshold(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now, scheduler.Options{OpenPunchAlertThreshold: 0, OrphanAlertThreshold: 5})
	alice := f.user(t, "alice", "UTC")
	f.punch(t, alice.ID, models.PunchIn, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))

	report := f.sched.RunHealthCheck(context.Background())

	assert.Equal(t, 1, report.OpenPunches)
	assert.Equal(t, 0, report.OrphanedPunches)
	assert.True(t, report.Alerted)
	require.Len(t, f.alerter.errors, 1)
	assert.Contains(t, f.alerter.errors[0], "1 open punches")
}

func TestRunOrphanCleanupAnnotatesOnce(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now, scheduler.Options{})
	alice := f.user(t, "alice", "UTC")
	f.punch(t, alice.ID, models.PunchIn, time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC))
	orphan := f.punch(t, alice.ID, models.PunchIn, time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC))

	health := f.sched.RunHealthCheck(context.Background())
	assert.Equal(t, 1, health.OrphanedPunches)

	first := f.sched.RunOrphanCleanup(context.Background())
	assert.Equal(t, 1, first.OrphanedPunches)
	assert.Equal(t, 1, first.Annotated)

	second := f.sched.RunOrphanCleanup(context.Background())
	assert.Equal(t, 1, second.OrphanedPunches)
	assert.Equal(t, 0, second.Annotated)

	got, err := f.repos.Punches.FindPunchByID(context.Background(), orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, "[orphan-scan] expected OUT", got.Notes)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	now := time.Date(2026, 3, 10, 23, 59, 30, 0, time.UTC)
	f := newFixture(t, now, scheduler.Options{})
	f.user(t, "alice", "UTC")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := f.sched.RunAutoClose(ctx, false)
	assert.True(t, report.Cancelled)
	assert.Equal(t, 0, report.Processed)
}

func TestStartStop(t *testing.T) {
	f := newFixture(t, time.Now().UTC(), scheduler.Options{AutoCloseInterval: time.Hour})
	f.sched.Start(context.Background())
	f.sched.Start(context.Background())
	f.sched.Stop()
	f.sched.Stop()
}
