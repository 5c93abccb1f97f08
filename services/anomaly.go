package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/punchclock/models"
)

// AnomalyType names a detected irregularity.
type AnomalyType string

const (
	AnomalyOddPunchCount    AnomalyType = "ODD_PUNCH_COUNT"
	AnomalyLongOpenPunch    AnomalyType = "LONG_OPEN_PUNCH"
	AnomalyShortSession     AnomalyType = "SHORT_SESSION"
	AnomalyMultipleSessions AnomalyType = "MULTIPLE_SESSIONS"
)

// OrphanMarker prefixes the note written on orphaned punches.
const OrphanMarker = "[orphan-scan]"

// Anomaly is one finding of a detection run.
type Anomaly struct {
	Type       AnomalyType `json:"type"`
	Severity   Severity    `json:"severity"`
	Message    string      `json:"message"`
	PunchIDs   []string    `json:"punchIds,omitempty"`
	PunchTimes []time.Time `json:"punchTimes,omitempty"`
}

// DetectAnomalies inspects one day of ascending punches.
func DetectAnomalies(punches []models.Punch, now time.Time, policy Policy) []Anomaly {
	out := []Anomaly{}
	n := len(punches)
	if n == 0 {
		return out
	}

	if n%2 == 1 {
		out = append(out, Anomaly{
			Type:     AnomalyOddPunchCount,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("odd number of punches today (%d)", n),
		})
	}

	if last := punches[n-1]; last.IsIn() {
		if open := now.Sub(last.PunchTime); open > policy.LongOpenThreshold {
			out = append(out, Anomaly{
				Type:       AnomalyLongOpenPunch,
				Severity:   SeverityError,
				Message:    fmt.Sprintf("punched in for %.1f hours without punching out", open.Hours()),
				PunchIDs:   []string{last.ID},
				PunchTimes: []time.Time{last.PunchTime},
			})
		}
	}

	sessions := PairSessions(punches)
	for _, s := range sessions {
		if s.Out.PunchTime.Sub(s.In.PunchTime) < policy.ShortSessionThreshold {
			out = append(out, Anomaly{
				Type:       AnomalyShortSession,
				Severity:   SeverityInfo,
				Message:    fmt.Sprintf("session of %s is shorter than %s", FormatMinutes(s.Minutes), FormatMinutes(policy.ShortSessionThreshold.Minutes())),
				PunchIDs:   []string{s.In.ID, s.Out.ID},
				PunchTimes: []time.Time{s.In.PunchTime, s.Out.PunchTime},
			})
		}
	}

	if len(sessions) > policy.MultipleSessionsThreshold {
		out = append(out, Anomaly{
			Type:     AnomalyMultipleSessions,
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("%d sessions today", len(sessions)),
		})
	}
	return out
}

// OrphanedPunch is a punch that breaks IN/OUT alternation.
type OrphanedPunch struct {
	PunchID   string    `json:"punchId"`
	UserID    uint      `json:"userId"`
	PunchType string    `json:"punchType"`
	PunchTime time.Time `json:"punchTime"`
	Expected  string    `json:"expected"`
}

// FindOrphans walks ascending punches expecting IN first. After every punch
// the expectation flips from the observed type, so one bad punch is flagged
// alone.
func FindOrphans(punches []models.Punch) []OrphanedPunch {
	out := []OrphanedPunch{}
	expected := models.PunchIn
	for _, p := range punches {
		if p.PunchType != expected {
			out = append(out, OrphanedPunch{
				PunchID:   p.ID,
				UserID:    p.UserID,
				PunchType: p.PunchType,
				PunchTime: p.PunchTime,
				Expected:  expected,
			})
		}
		expected = models.OppositeType(p.PunchType)
	}
	return out
}

// OpenPunch is a session still open today.
type OpenPunch struct {
	UserID       uint      `json:"userId"`
	Username     string    `json:"username"`
	Timezone     string    `json:"timezone"`
	PunchID      string    `json:"punchId"`
	InTime       time.Time `json:"inTime"`
	HoursSinceIn float64   `json:"hoursSinceIn"`
}

// UserFailure records a user skipped by a fleet run.
type UserFailure struct {
	UserID uint   `json:"userId"`
	Error  string `json:"error"`
}

// CensusReport lists open sessions across active users.
type CensusReport struct {
	Scanned  int           `json:"scanned"`
	Open     []OpenPunch   `json:"open"`
	Failures []UserFailure `json:"failures"`
}

// OrphanReport is the result of a fleet orphan scan.
type OrphanReport struct {
	DryRun    bool            `json:"dryRun"`
	Scanned   int             `json:"scanned"`
	Flagged   []OrphanedPunch `json:"flagged"`
	Annotated int             `json:"annotated"`
	Failures  []UserFailure   `json:"failures"`
}

// Detector runs anomaly detection for one user or the whole fleet.
type Detector struct {
	punches PunchStore
	users   UserDirectory
	tx      Transactor
	locker  UserLocker
	policy  Policy
	clock   Clock
	logger  *zap.Logger
}

// NewDetector wires a detector.
func NewDetector(punches PunchStore, users UserDirectory, tx Transactor, locker UserLocker, policy Policy, clock Clock, logger *zap.Logger) *Detector {
	return &Detector{punches: punches, users: users, tx: tx, locker: locker, policy: policy, clock: clock, logger: logger}
}

// DetectIssues checks today's punches of userID in timezone.
func (d *Detector) DetectIssues(ctx context.Context, userID uint, timezone string) ([]Anomaly, error) {
	now := d.clock.Now()
	start, end, err := DayBoundsUTC(timezone, now)
	if err != nil {
		return nil, err
	}
	punches, err := d.punches.FindPunchesInRange(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	return DetectAnomalies(punches, now, d.policy), nil
}

// DetectForUser is DetectIssues with the user's resolved timezone.
func (d *Detector) DetectForUser(ctx context.Context, user *models.User) ([]Anomaly, error) {
	return d.DetectIssues(ctx, user.ID, ResolveTimezone(user, d.policy.DefaultTimezone))
}

// OpenSession returns the user's open session of today, or nil.
func (d *Detector) OpenSession(ctx context.Context, user *models.User) (*OpenPunch, error) {
	tz := ResolveTimezone(user, d.policy.DefaultTimezone)
	now := d.clock.Now()
	start, end, err := DayBoundsUTC(tz, now)
	if err != nil {
		return nil, err
	}
	punches, err := d.punches.FindPunchesInRange(ctx, user.ID, start, end)
	if err != nil {
		return nil, err
	}
	if len(punches) == 0 || !punches[len(punches)-1].IsIn() {
		return nil, nil
	}
	last := punches[len(punches)-1]
	return &OpenPunch{
		UserID:       user.ID,
		Username:     user.Username,
		Timezone:     tz,
		PunchID:      last.ID,
		InTime:       last.PunchTime,
		HoursSinceIn: now.Sub(last.PunchTime).Hours(),
	}, nil
}

// OpenPunchCensus lists every active user whose last punch today is IN.
func (d *Detector) OpenPunchCensus(ctx context.Context) (CensusReport, error) {
	report := CensusReport{Open: []OpenPunch{}, Failures: []UserFailure{}}
	users, err := d.users.ListActiveUsers(ctx)
	if err != nil {
		return report, err
	}
	for i := range users {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++
		op, err := d.OpenSession(ctx, &users[i])
		if err != nil {
			d.logger.Warn("open punch census failed for user", zap.Uint("user_id", users[i].ID), zap.Error(err))
			report.Failures = append(report.Failures, UserFailure{UserID: users[i].ID, Error: err.Error()})
			continue
		}
		if op != nil {
			report.Open = append(report.Open, *op)
		}
	}
	return report, nil
}

// ScanOrphans walks every active user's punches over the orphan window. In
// dry-run mode nothing is written.
func (d *Detector) ScanOrphans(ctx context.Context, dryRun bool) (OrphanReport, error) {
	report := OrphanReport{DryRun: dryRun, Flagged: []OrphanedPunch{}, Failures: []UserFailure{}}
	users, err := d.users.ListActiveUsers(ctx)
	if err != nil {
		return report, err
	}
	for i := range users {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++
		flagged, annotated, err := d.ScanUserOrphans(ctx, users[i].ID, dryRun)
		if err != nil {
			d.logger.Warn("orphan scan failed for user", zap.Uint("user_id", users[i].ID), zap.Error(err))
			report.Failures = append(report.Failures, UserFailure{UserID: users[i].ID, Error: err.Error()})
			continue
		}
		report.Flagged = append(report.Flagged, flagged...)
		report.Annotated += annotated
	}
	return report, nil
}

// ScanUserOrphans flags one user's orphaned punches and, unless dryRun,
// appends the orphan note to each one not already carrying it.
func (d *Detector) ScanUserOrphans(ctx context.Context, userID uint, dryRun bool) ([]OrphanedPunch, int, error) {
	now := d.clock.Now()
	punches, err := d.punches.FindPunchesInRange(ctx, userID, now.Add(-d.policy.OrphanWindow), now)
	if err != nil {
		return nil, 0, err
	}
	flagged := FindOrphans(punches)
	if dryRun || len(flagged) == 0 {
		return flagged, 0, nil
	}

	unlock, err := d.locker.Lock(ctx, userID)
	if err != nil {
		return flagged, 0, err
	}
	defer unlock()

	annotated := 0
	err = d.tx.WithinTransaction(ctx, func(store PunchStore, audit AuditSink) error {
		for _, o := range flagged {
			p, err := store.FindPunchByID(ctx, o.PunchID)
			if err != nil {
				if IsNotFound(err) {
					continue
				}
				return err
			}
			if strings.Contains(p.Notes, OrphanMarker) {
				continue
			}
			before := punchState(*p)
			notes := appendNote(p.Notes, fmt.Sprintf("%s expected %s", OrphanMarker, o.Expected))
			if err := store.UpdatePunchFields(ctx, p.ID, models.PunchChanges{Notes: &notes}); err != nil {
				return err
			}
			p.Notes = notes
			if err := audit.Record(ctx, models.AuditLog{
				Action:        models.AuditOrphanAnnotate,
				TargetUser:    userID,
				PunchID:       p.ID,
				PreviousState: before,
				NewState:      punchState(*p),
				Description:   fmt.Sprintf("orphaned %s punch, expected %s", o.PunchType, o.Expected),
			}); err != nil {
				return err
			}
			annotated++
		}
		return nil
	})
	if err != nil {
		return flagged, 0, err
	}
	return flagged, annotated, nil
}
