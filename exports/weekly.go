// Package exports renders summaries as spreadsheets.
package exports

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"

	"github.com/cppla/punchclock/services"
)

// WeeklySheet is the name of the only sheet in a weekly workbook.
const WeeklySheet = "Week"

var weeklyHeader = []interface{}{"Date", "Weekday", "Working day", "Worked", "Worked minutes", "Punches", "Target met"}

// WeeklyWorkbook renders one row per day of s followed by a totals row.
// The caller closes the returned file.
func WeeklyWorkbook(s services.WeeklySummary) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), WeeklySheet); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := writeWeek(f, s); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// ExportFilename is the attachment name for the week of s.
func ExportFilename(s services.WeeklySummary) string {
	return fmt.Sprintf("timesheet-%d-%s.xlsx", s.UserID, s.WeekStart)
}

func writeWeek(f *excelize.File, s services.WeeklySummary) error {
	title := fmt.Sprintf("Week %s to %s (%s)", s.WeekStart, s.WeekEnd, s.Timezone)
	if err := f.SetCellValue(WeeklySheet, "A1", title); err != nil {
		return err
	}
	if err := f.SetSheetRow(WeeklySheet, "A3", &weeklyHeader); err != nil {
		return err
	}

	row := 4
	for _, d := range s.Days {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := []interface{}{
			d.Date,
			d.Weekday,
			yesNo(d.IsWorkingDay),
			services.FormatMinutes(d.WorkedMinutes),
			math.Round(d.WorkedMinutes),
			d.PunchCount,
			yesNo(d.TargetMet),
		}
		if err := f.SetSheetRow(WeeklySheet, cell, &values); err != nil {
			return err
		}
		row++
	}

	cell, _ := excelize.CoordinatesToCellName(1, row)
	totals := []interface{}{
		"Total",
		fmt.Sprintf("%d working days", s.WorkingDaysCount),
		services.FormatMinutes(s.WeeklyTargetMinutes),
		services.FormatMinutes(s.TotalWorkedMinutes),
		math.Round(s.TotalWorkedMinutes),
		"",
		fmt.Sprintf("%.2f%%", s.ProgressPercent),
	}
	if err := f.SetSheetRow(WeeklySheet, cell, &totals); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(weeklyHeader), row)
	if err := f.SetCellStyle(WeeklySheet, "A1", "A1", bold); err != nil {
		return err
	}
	if err := f.SetCellStyle(WeeklySheet, "A3", "G3", bold); err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetCellStyle(WeeklySheet, first, last, bold); err != nil {
		return err
	}
	return f.SetColWidth(WeeklySheet, "A", "G", 16)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
