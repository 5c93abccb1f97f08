package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/punchclock/models"
)

func anomalyTypes(as []Anomaly) []AnomalyType {
	out := make([]AnomalyType, 0, len(as))
	for _, a := range as {
		out = append(out, a.Type)
	}
	return out
}

func TestDetectAnomalies(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name    string
		punches []models.Punch
		want    []AnomalyType
	}{
		{"no punches", nil, []AnomalyType{}},
		{"clean day", seq(in(at(9, 0)), out(at(17, 0))), []AnomalyType{}},
		{"open session", seq(in(at(9, 0))), []AnomalyType{AnomalyOddPunchCount}},
		{"long open session", seq(in(at(0, 0))), []AnomalyType{AnomalyOddPunchCount, AnomalyLongOpenPunch}},
		{"short session", seq(in(at(9, 0)), out(at(9, 10))), []AnomalyType{AnomalyShortSession}},
		{"many sessions", seq(
			in(at(8, 0)), out(at(9, 0)),
			in(at(10, 0)), out(at(11, 0)),
			in(at(11, 30)), out(at(12, 30)),
			in(at(12, 40)), out(at(13, 40)),
		), []AnomalyType{AnomalyMultipleSessions}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectAnomalies(tt.punches, at(13, 0).Add(1), p)
			assert.Equal(t, tt.want, anomalyTypes(got))
		})
	}
}

func TestDetectAnomaliesPayload(t *testing.T) {
	p := DefaultPolicy()
	punches := seq(in(at(9, 0)), out(at(9, 10)))

	got := DetectAnomalies(punches, at(10, 0), p)
	require.Len(t, got, 1)
	assert.Equal(t, SeverityInfo, got[0].Severity)
	assert.Equal(t, []string{punches[0].ID, punches[1].ID}, got[0].PunchIDs)
	assert.Equal(t, "session of 10m is shorter than 30m", got[0].Message)

	open := seq(in(at(0, 0)))
	got = DetectAnomalies(open, at(13, 0), p)
	require.Len(t, got, 2)
	assert.Equal(t, SeverityError, got[1].Severity)
	assert.Equal(t, []string{open[0].ID}, got[1].PunchIDs)
}

func TestFindOrphans(t *testing.T) {
	assert.Empty(t, FindOrphans(seq(in(at(8, 0)), out(at(9, 0)), in(at(10, 0)))))

	punches := seq(out(at(7, 0)), in(at(8, 0)), out(at(9, 0)), out(at(10, 0)), in(at(11, 0)))
	got := FindOrphans(punches)
	require.Len(t, got, 2)
	assert.Equal(t, punches[0].ID, got[0].PunchID)
	assert.Equal(t, models.PunchIn, got[0].Expected)
	assert.Equal(t, punches[3].ID, got[1].PunchID)
	assert.Equal(t, models.PunchIn, got[1].Expected)
	assert.Equal(t, models.PunchOut, got[1].PunchType)
}

func TestFindOrphansDoubleIn(t *testing.T) {
	punches := seq(in(at(8, 0)), in(at(9, 0)), out(at(10, 0)))
	got := FindOrphans(punches)
	require.Len(t, got, 1)
	assert.Equal(t, punches[1].ID, got[0].PunchID)
	assert.Equal(t, models.PunchOut, got[0].Expected)
}
