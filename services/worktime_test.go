package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/punchclock/models"
)

func TestCalculateWorkedTime(t *testing.T) {
	tests := []struct {
		name        string
		punches     []models.Punch
		now         time.Time
		includeOpen bool
		clamp       bool
		want        float64
	}{
		{"empty", nil, at(12, 0), true, true, 0},
		{"one closed session", seq(in(at(9, 0)), out(at(17, 0))), at(18, 0), true, true, 480},
		{"two sessions", seq(in(at(9, 0)), out(at(12, 0)), in(at(13, 0)), out(at(17, 30))), at(18, 0), true, true, 450},
		{"open session counted", seq(in(at(9, 0))), at(9, 30), true, true, 30},
		{"open session excluded", seq(in(at(9, 0))), at(9, 30), false, true, 0},
		{"consecutive ins reset the pending in", seq(in(at(8, 0)), in(at(9, 0)), out(at(10, 0))), at(12, 0), true, true, 60},
		{"leading out is ignored", seq(out(at(7, 0)), in(at(8, 0)), out(at(9, 0))), at(12, 0), true, true, 60},
		{"open session at the stuck limit", seq(in(at(0, 0))), at(16, 0), true, true, 960},
		{"stuck open session clamped", seq(in(at(0, 0))), at(17, 0), true, true, 480},
		{"stuck open session raw", seq(in(at(0, 0))), at(17, 0), true, false, 1020},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wt := CalculateWorkedTime(tt.punches, tt.now, tt.includeOpen, tt.clamp)
			assert.InDelta(t, tt.want, wt.Minutes, 0.001)
		})
	}
}

func TestCalculateWorkedTimeDiscardsLongClosedSessions(t *testing.T) {
	punches := seq(in(at(8, 0)), out(at(8, 0).Add(25*time.Hour)))
	wt := CalculateWorkedTime(punches, at(8, 0).Add(26*time.Hour), true, true)

	assert.Zero(t, wt.Minutes)
	assert.Equal(t, 1, wt.DiscardedSessions)
	assert.False(t, wt.HasOpenSession)
}

func TestCalculateWorkedTimeReportsStuckSession(t *testing.T) {
	wt := CalculateWorkedTime(seq(in(at(0, 0))), at(17, 0), true, true)

	assert.True(t, wt.HasOpenSession)
	assert.True(t, wt.StuckOpenSession)
	assert.InDelta(t, 1020, wt.RawOpenSessionMinutes, 0.001)
	assert.InDelta(t, StuckOpenFallbackMinutes, wt.OpenSessionMinutes, 0.001)
}

func TestCalculateWorkedMinutesClamps(t *testing.T) {
	assert.InDelta(t, 480, CalculateWorkedMinutes(seq(in(at(0, 0))), true, at(20, 0)), 0.001)
}

func TestCalculateRemainingMinutes(t *testing.T) {
	assert.Equal(t, 180.0, CalculateRemainingMinutes(300, 480))
	assert.Equal(t, 0.0, CalculateRemainingMinutes(500, 480))
}

func TestCalculatePredictedExit(t *testing.T) {
	t.Run("open session", func(t *testing.T) {
		punches := seq(in(at(9, 0)), out(at(12, 0)), in(at(13, 0)))
		exit := CalculatePredictedExit(punches, 480, time.UTC)
		require.NotNil(t, exit)
		assert.True(t, exit.Equal(at(18, 0)), "got %s", exit)
	})
	t.Run("closed day", func(t *testing.T) {
		assert.Nil(t, CalculatePredictedExit(seq(in(at(9, 0)), out(at(17, 0))), 480, time.UTC))
	})
	t.Run("no punches", func(t *testing.T) {
		assert.Nil(t, CalculatePredictedExit(nil, 480, time.UTC))
	})
	t.Run("rendered in the user location", func(t *testing.T) {
		tokyo, err := LoadLocation("Asia/Tokyo")
		require.NoError(t, err)
		exit := CalculatePredictedExit(seq(in(at(0, 0))), 480, tokyo)
		require.NotNil(t, exit)
		assert.Equal(t, "17:00", exit.Format("15:04"))
	})
}

func TestFormatMinutes(t *testing.T) {
	cases := map[float64]string{
		0:     "0m",
		45:    "45m",
		59.6:  "1h 0m",
		90:    "1h 30m",
		480:   "8h 0m",
		-5:    "0m",
		615.2: "10h 15m",
	}
	for m, want := range cases {
		assert.Equal(t, want, FormatMinutes(m), "FormatMinutes(%v)", m)
	}
}

func TestSessionCountAndNextPunchType(t *testing.T) {
	assert.Equal(t, 0, SessionCount(nil))
	assert.Equal(t, 1, SessionCount(seq(in(at(9, 0)))))
	assert.Equal(t, 1, SessionCount(seq(in(at(9, 0)), out(at(10, 0)))))
	assert.Equal(t, 2, SessionCount(seq(in(at(9, 0)), out(at(10, 0)), in(at(11, 0)))))

	assert.Equal(t, models.PunchIn, NextPunchType(nil))
	assert.Equal(t, models.PunchOut, NextPunchType(seq(in(at(9, 0)))))
	assert.Equal(t, models.PunchIn, NextPunchType(seq(in(at(9, 0)), out(at(10, 0)))))
}

func TestPairSessions(t *testing.T) {
	sessions := PairSessions(seq(in(at(9, 0)), in(at(9, 30)), out(at(10, 0)), out(at(11, 0))))
	require.Len(t, sessions, 1)
	assert.InDelta(t, 30, sessions[0].Minutes, 0.001)
}
