package services

import (
	"context"
	"time"

	"github.com/cppla/punchclock/models"
)

// PunchStore is the ordered per-user event log.
type PunchStore interface {
	// FindPunchesInRange returns punches with start <= time <= end ordered by time.
	FindPunchesInRange(ctx context.Context, userID uint, start, end time.Time) ([]models.Punch, error)
	// FindLastPunch returns nil when the user has no punches.
	FindLastPunch(ctx context.Context, userID uint) (*models.Punch, error)
	FindPunchByID(ctx context.Context, id string) (*models.Punch, error)
	InsertPunch(ctx context.Context, punch *models.Punch) error
	// UpdatePunchFields never overwrites an original* column already set.
	UpdatePunchFields(ctx context.Context, id string, changes models.PunchChanges) error
	DeletePunch(ctx context.Context, id string) error
}

// AuditSink receives a record for every edit, delete and system write.
type AuditSink interface {
	Record(ctx context.Context, entry models.AuditLog) error
}

// Transactor runs fn with stores bound to one database transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(punches PunchStore, audit AuditSink) error) error
}

// UserDirectory reads work profiles.
type UserDirectory interface {
	FindUser(ctx context.Context, id uint) (*models.User, error)
	ListActiveUsers(ctx context.Context) ([]models.User, error)
}

// Notifier delivers best-effort messages. Errors are logged by the engine
// and never fail the punch operation.
type Notifier interface {
	SendWeekendWarning(ctx context.Context, user models.User, punch models.Punch) error
	SendMissedPunchOutAlert(ctx context.Context, user models.User, inTime, outTime time.Time) error
	SendReminder(ctx context.Context, user models.User, inTime time.Time) error
}

// UserLocker serialises read-validate-write sequences of one user.
type UserLocker interface {
	Lock(ctx context.Context, userID uint) (unlock func(), err error)
}

// NopNotifier drops every message.
type NopNotifier struct{}

func (NopNotifier) SendWeekendWarning(context.Context, models.User, models.Punch) error { return nil }
func (NopNotifier) SendMissedPunchOutAlert(context.Context, models.User, time.Time, time.Time) error {
	return nil
}
func (NopNotifier) SendReminder(context.Context, models.User, time.Time) error { return nil }
