package services

import (
	"context"
	"math"
	"time"

	"github.com/cppla/punchclock/models"
)

// Status values of a snapshot.
const (
	StatusWorking    = "WORKING"
	StatusNotWorking = "NOT_WORKING"
)

// Alerts are the flags shown next to a snapshot.
type Alerts struct {
	OpenPunch        bool `json:"openPunch"`
	OddPunchCount    bool `json:"oddPunchCount"`
	NonWorkingDay    bool `json:"nonWorkingDay"`
	StuckOpenSession bool `json:"stuckOpenSession"`
}

// Snapshot is the derived per-user status for today.
type Snapshot struct {
	UserID             uint           `json:"userId"`
	Timezone           string         `json:"timezone"`
	Date               string         `json:"date"`
	Status             string         `json:"status"`
	NextPunchType      string         `json:"nextPunchType"`
	Punches            []models.Punch `json:"punches"`
	WorkedMinutes      float64        `json:"workedMinutes"`
	WorkedFormatted    string         `json:"workedFormatted"`
	RemainingMinutes   float64        `json:"remainingMinutes"`
	RemainingFormatted string         `json:"remainingFormatted"`
	TargetMinutes      float64        `json:"targetMinutes"`
	ProgressPercent    float64        `json:"progressPercent"`
	PredictedExit      *time.Time     `json:"predictedExit"`
	SessionCount       int            `json:"sessionCount"`
	Work               WorkedTime     `json:"work"`
	Alerts             Alerts         `json:"alerts"`
	GeneratedAt        time.Time      `json:"generatedAt"`
}

// DaySummary is one row of a weekly summary.
type DaySummary struct {
	Date          string  `json:"date"`
	Weekday       string  `json:"weekday"`
	WorkedMinutes float64 `json:"workedMinutes"`
	PunchCount    int     `json:"punchCount"`
	IsWorkingDay  bool    `json:"isWorkingDay"`
	TargetMet     bool    `json:"targetMet"`
	IsToday       bool    `json:"isToday"`
}

// WeeklySummary rolls up an ISO week (Monday first) in the user's timezone.
type WeeklySummary struct {
	UserID              uint         `json:"userId"`
	Timezone            string       `json:"timezone"`
	WeekOffset          int          `json:"weekOffset"`
	WeekStart           string       `json:"weekStart"`
	WeekEnd             string       `json:"weekEnd"`
	Days                []DaySummary `json:"days"`
	TotalWorkedMinutes  float64      `json:"totalWorkedMinutes"`
	WorkingDaysCount    int          `json:"workingDaysCount"`
	DailyTargetMinutes  float64      `json:"dailyTargetMinutes"`
	WeeklyTargetMinutes float64      `json:"weeklyTargetMinutes"`
	ProgressPercent     float64      `json:"progressPercent"`
}

// Aggregator builds snapshots and weekly summaries.
type Aggregator struct {
	punches PunchStore
	policy  Policy
	clock   Clock
}

// NewAggregator wires an aggregator.
func NewAggregator(punches PunchStore, policy Policy, clock Clock) *Aggregator {
	return &Aggregator{punches: punches, policy: policy, clock: clock}
}

// TodayPunches loads the user's punches of the current local day.
func (a *Aggregator) TodayPunches(ctx context.Context, user *models.User) ([]models.Punch, UserPolicy, error) {
	up, err := a.policy.ForUser(user)
	if err != nil {
		return nil, up, err
	}
	start, end := DayBounds(up.Location, a.clock.Now())
	punches, err := a.punches.FindPunchesInRange(ctx, user.ID, start, end)
	return punches, up, err
}

// GetDailySnapshot recomputes the snapshot of today.
func (a *Aggregator) GetDailySnapshot(ctx context.Context, user *models.User) (Snapshot, error) {
	punches, up, err := a.TodayPunches(ctx, user)
	if err != nil {
		return Snapshot{}, err
	}
	return BuildSnapshot(user.ID, up, punches, a.clock.Now(), a.policy.ClampStuckOpenSession), nil
}

// BuildSnapshot derives a snapshot from today's ascending punches.
func BuildSnapshot(userID uint, up UserPolicy, punches []models.Punch, now time.Time, clamp bool) Snapshot {
	if punches == nil {
		punches = []models.Punch{}
	}
	work := CalculateWorkedTime(punches, now, true, clamp)
	open := len(punches) > 0 && punches[len(punches)-1].IsIn()

	s := Snapshot{
		UserID:           userID,
		Timezone:         up.Timezone,
		Date:             LocalDate(now, up.Location),
		Status:           StatusNotWorking,
		NextPunchType:    NextPunchType(punches),
		Punches:          punches,
		WorkedMinutes:    work.Minutes,
		RemainingMinutes: CalculateRemainingMinutes(work.Minutes, up.TargetMinutes),
		TargetMinutes:    up.TargetMinutes,
		ProgressPercent:  progressPercent(work.Minutes, up.TargetMinutes),
		PredictedExit:    CalculatePredictedExit(punches, up.TargetMinutes, up.Location),
		SessionCount:     SessionCount(punches),
		Work:             work,
		Alerts: Alerts{
			OpenPunch:        open,
			OddPunchCount:    len(punches)%2 == 1,
			NonWorkingDay:    !up.IsWorkingDay(now),
			StuckOpenSession: work.StuckOpenSession,
		},
		GeneratedAt: now,
	}
	if open {
		s.Status = StatusWorking
	}
	s.WorkedFormatted = FormatMinutes(s.WorkedMinutes)
	s.RemainingFormatted = FormatMinutes(s.RemainingMinutes)
	return s
}

// GetWeeklySummary summarises the ISO week weekOffset weeks from the current
// one (0 current, -1 previous). Only today may include an open session.
func (a *Aggregator) GetWeeklySummary(ctx context.Context, user *models.User, weekOffset int) (WeeklySummary, error) {
	up, err := a.policy.ForUser(user)
	if err != nil {
		return WeeklySummary{}, err
	}
	now := a.clock.Now()
	monday := WeekStart(now, up.Location, weekOffset)
	sunday := time.Date(monday.Year(), monday.Month(), monday.Day()+6, 0, 0, 0, 0, up.Location)
	_, weekEnd := DayBounds(up.Location, sunday)

	punches, err := a.punches.FindPunchesInRange(ctx, user.ID, monday.UTC(), weekEnd)
	if err != nil {
		return WeeklySummary{}, err
	}
	byDay := map[string][]models.Punch{}
	for _, p := range punches {
		key := LocalDate(p.PunchTime, up.Location)
		byDay[key] = append(byDay[key], p)
	}
	return buildWeeklySummary(user.ID, up, weekOffset, monday, byDay, now, a.policy.ClampStuckOpenSession), nil
}

func buildWeeklySummary(userID uint, up UserPolicy, offset int, monday time.Time, byDay map[string][]models.Punch, now time.Time, clamp bool) WeeklySummary {
	today := LocalDate(now, up.Location)
	ws := WeeklySummary{
		UserID:             userID,
		Timezone:           up.Timezone,
		WeekOffset:         offset,
		WeekStart:          monday.Format("2006-01-02"),
		DailyTargetMinutes: up.TargetMinutes,
		Days:               make([]DaySummary, 0, 7),
	}
	for i := 0; i < 7; i++ {
		day := time.Date(monday.Year(), monday.Month(), monday.Day()+i, 0, 0, 0, 0, up.Location)
		key := day.Format("2006-01-02")
		dayPunches := byDay[key]
		isToday := key == today
		worked := CalculateWorkedTime(dayPunches, now, isToday, clamp).Minutes
		working := up.WorkingDays[day.Weekday()]

		ws.Days = append(ws.Days, DaySummary{
			Date:          key,
			Weekday:       day.Weekday().String(),
			WorkedMinutes: worked,
			PunchCount:    len(dayPunches),
			IsWorkingDay:  working,
			TargetMet:     working && worked >= up.TargetMinutes,
			IsToday:       isToday,
		})
		ws.TotalWorkedMinutes += worked
		if working {
			ws.WorkingDaysCount++
		}
		ws.WeekEnd = key
	}
	ws.WeeklyTargetMinutes = float64(ws.WorkingDaysCount) * up.TargetMinutes
	ws.ProgressPercent = progressPercent(ws.TotalWorkedMinutes, ws.WeeklyTargetMinutes)
	return ws
}

// WeekStart returns local midnight of the Monday of the week containing now,
// shifted by offset weeks.
func WeekStart(now time.Time, loc *time.Location, offset int) time.Time {
	local := now.In(loc)
	sinceMonday := (int(local.Weekday()) + 6) % 7
	y, m, d := local.Date()
	return time.Date(y, m, d-sinceMonday+7*offset, 0, 0, 0, 0, loc)
}

func progressPercent(worked, target float64) float64 {
	if target <= 0 {
		return 0
	}
	return math.Min(100, math.Round(worked/target*10000)/100)
}
