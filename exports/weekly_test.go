package exports

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/cppla/punchclock/services"
)

func TestWeeklyWorkbookRows(t *testing.T) {
	summary := services.WeeklySummary{
		UserID:    7,
		Timezone:  "UTC",
		WeekStart: "2026-03-09",
		WeekEnd:   "2026-03-15",
		Days: []services.DaySummary{
			{Date: "2026-03-09", Weekday: "Monday", WorkedMinutes: 485, PunchCount: 2, IsWorkingDay: true, TargetMet: true},
			{Date: "2026-03-14", Weekday: "Saturday", WorkedMinutes: 90.4, PunchCount: 2},
		},
		TotalWorkedMinutes:  575.4,
		WorkingDaysCount:    5,
		DailyTargetMinutes:  480,
		WeeklyTargetMinutes: 2400,
		ProgressPercent:     23.98,
	}

	f, err := WeeklyWorkbook(summary)
	require.NoError(t, err)
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	back, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer func() { _ = back.Close() }()

	rows, err := back.GetRows(WeeklySheet)
	require.NoError(t, err)
	require.Len(t, rows, 6)

	assert.Equal(t, "Week 2026-03-09 to 2026-03-15 (UTC)", rows[0][0])
	assert.Equal(t, []string{"Date", "Weekday", "Working day", "Worked", "Worked minutes", "Punches", "Target met"}, rows[2])
	assert.Equal(t, []string{"2026-03-09", "Monday", "Yes", "8h 5m", "485", "2", "Yes"}, rows[3])
	assert.Equal(t, []string{"2026-03-14", "Saturday", "No", "1h 30m", "90", "2", "No"}, rows[4])
	assert.Equal(t, "Total", rows[5][0])
	assert.Equal(t, "9h 35m", rows[5][3])
	assert.Equal(t, "23.98%", rows[5][6])
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "timesheet-7-2026-03-09.xlsx", ExportFilename(services.WeeklySummary{UserID: 7, WeekStart: "2026-03-09"}))
}
