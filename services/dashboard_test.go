package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/punchclock/models"
)

func TestBuildSnapshotWorking(t *testing.T) {
	up := defaultUserPolicy(t)
	s := BuildSnapshot(1, up, seq(in(at(9, 0))), at(11, 0), true)

	assert.Equal(t, StatusWorking, s.Status)
	assert.Equal(t, models.PunchOut, s.NextPunchType)
	assert.Equal(t, "2026-03-10", s.Date)
	assert.InDelta(t, 120, s.WorkedMinutes, 0.001)
	assert.Equal(t, "2h 0m", s.WorkedFormatted)
	assert.InDelta(t, 360, s.RemainingMinutes, 0.001)
	assert.Equal(t, "6h 0m", s.RemainingFormatted)
	assert.Equal(t, 25.0, s.ProgressPercent)
	assert.Equal(t, 1, s.SessionCount)
	require.NotNil(t, s.PredictedExit)
	assert.True(t, s.PredictedExit.Equal(at(17, 0)))
	assert.Equal(t, Alerts{OpenPunch: true, OddPunchCount: true}, s.Alerts)
}

func TestBuildSnapshotEmptyDay(t *testing.T) {
	saturday := tuesday.AddDate(0, 0, 4).Add(12 * time.Hour)
	s := BuildSnapshot(1, defaultUserPolicy(t), nil, saturday, true)

	assert.Equal(t, StatusNotWorking, s.Status)
	assert.Equal(t, models.PunchIn, s.NextPunchType)
	assert.NotNil(t, s.Punches)
	assert.Empty(t, s.Punches)
	assert.Nil(t, s.PredictedExit)
	assert.Zero(t, s.WorkedMinutes)
	assert.Equal(t, "8h 0m", s.RemainingFormatted)
	assert.True(t, s.Alerts.NonWorkingDay)
	assert.False(t, s.Alerts.OpenPunch)
}

func TestBuildSnapshotCapsProgress(t *testing.T) {
	s := BuildSnapshot(1, defaultUserPolicy(t), seq(in(at(7, 0)), out(at(17, 0))), at(18, 0), true)
	assert.Equal(t, 100.0, s.ProgressPercent)
	assert.Zero(t, s.RemainingMinutes)
	assert.Equal(t, StatusNotWorking, s.Status)
}

func TestBuildSnapshotStuckSession(t *testing.T) {
	s := BuildSnapshot(1, defaultUserPolicy(t), seq(in(at(0, 0))), at(17, 0), true)
	assert.True(t, s.Alerts.StuckOpenSession)
	assert.InDelta(t, 480, s.WorkedMinutes, 0.001)
}

func TestWeekStart(t *testing.T) {
	monday := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, monday, WeekStart(at(15, 0), time.UTC, 0))
	assert.Equal(t, monday, WeekStart(monday, time.UTC, 0))
	assert.Equal(t, monday, WeekStart(time.Date(2026, 3, 15, 23, 0, 0, 0, time.UTC), time.UTC, 0))
	assert.Equal(t, monday.AddDate(0, 0, -7), WeekStart(at(15, 0), time.UTC, -1))
	assert.Equal(t, monday.AddDate(0, 0, 7), WeekStart(at(15, 0), time.UTC, 1))

	// Sunday evening UTC is already Monday in Tokyo.
	tokyo, err := LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	ws := WeekStart(time.Date(2026, 3, 8, 20, 0, 0, 0, time.UTC), tokyo, 0)
	assert.Equal(t, "2026-03-09", ws.Format("2006-01-02"))
	assert.Equal(t, tokyo, ws.Location())
}

func TestBuildWeeklySummary(t *testing.T) {
	up := defaultUserPolicy(t)
	now := at(10, 0)
	monday := WeekStart(now, up.Location, 0)
	mon := monday
	byDay := map[string][]models.Punch{
		"2026-03-09": seq(in(mon.Add(9*time.Hour)), out(mon.Add(17*time.Hour))),
		"2026-03-10": seq(in(at(9, 0))),
		"2026-03-14": seq(in(mon.AddDate(0, 0, 5).Add(9 * time.Hour))),
	}

	ws := buildWeeklySummary(1, up, 0, monday, byDay, now, true)

	assert.Equal(t, "2026-03-09", ws.WeekStart)
	assert.Equal(t, "2026-03-15", ws.WeekEnd)
	require.Len(t, ws.Days, 7)
	assert.Equal(t, "Monday", ws.Days[0].Weekday)
	assert.True(t, ws.Days[0].TargetMet)
	assert.InDelta(t, 480, ws.Days[0].WorkedMinutes, 0.001)
	assert.True(t, ws.Days[1].IsToday)
	assert.InDelta(t, 60, ws.Days[1].WorkedMinutes, 0.001)
	assert.False(t, ws.Days[1].TargetMet)
	// Open sessions only count for today.
	assert.Zero(t, ws.Days[5].WorkedMinutes)
	assert.Equal(t, 1, ws.Days[5].PunchCount)
	assert.False(t, ws.Days[5].IsWorkingDay)

	assert.Equal(t, 5, ws.WorkingDaysCount)
	assert.InDelta(t, 540, ws.TotalWorkedMinutes, 0.001)
	assert.Equal(t, 2400.0, ws.WeeklyTargetMinutes)
	assert.Equal(t, 22.5, ws.ProgressPercent)
}

func TestProgressPercent(t *testing.T) {
	assert.Zero(t, progressPercent(100, 0))
	assert.Equal(t, 33.33, progressPercent(160, 480))
}
