package services

import (
	"fmt"
	"time"

	"github.com/cppla/punchclock/models"
)

// tuesday is 2026-03-10 00:00 UTC.
var tuesday = time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return tuesday.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func punch(typ string, t time.Time) models.Punch {
	return models.Punch{
		ID:        fmt.Sprintf("%s-%d", typ, t.Unix()),
		UserID:    1,
		PunchType: typ,
		PunchTime: t,
		Source:    models.SourceNFC,
	}
}

func in(t time.Time) models.Punch  { return punch(models.PunchIn, t) }
func out(t time.Time) models.Punch { return punch(models.PunchOut, t) }

func seq(ps ...models.Punch) []models.Punch { return ps }
