package services

import (
	"strings"
	"sync"
	"time"

	"github.com/cppla/punchclock/models"
)

var locationCache sync.Map // timezone id -> *time.Location

// ResolveTimezone returns the user's timezone or fallback when the user is
// nil or has none configured. It never fails; validity is checked on load.
func ResolveTimezone(user *models.User, fallback string) string {
	if user != nil {
		if tz := strings.TrimSpace(user.Timezone); tz != "" {
			return tz
		}
	}
	if fallback == "" {
		return "UTC"
	}
	return fallback
}

// loadLocation loads an IANA zone, rejecting unknown ids with a ConfigurationError.
func loadLocation(tz string) (*time.Location, error) {
	if v, ok := locationCache.Load(tz); ok {
		return v.(*time.Location), nil
	}
	// time.LoadLocation maps "" to UTC and accepts "Local"; neither is a real user setting.
	if tz == "" || tz == "Local" {
		return nil, &ConfigurationError{Field: "timezone", Value: tz}
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, &ConfigurationError{Field: "timezone", Value: tz, Err: err}
	}
	locationCache.Store(tz, loc)
	return loc, nil
}

// LoadLocation exposes the validated zone loader.
func LoadLocation(tz string) (*time.Location, error) {
	return loadLocation(tz)
}

// DayBounds returns local midnight and local 23:59:59.999 of the day that
// contains ref, both converted to UTC. Both bounds are inclusive.
func DayBounds(loc *time.Location, ref time.Time) (time.Time, time.Time) {
	local := ref.In(loc)
	y, m, d := local.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)
	return start.UTC(), end.UTC()
}

// DayBoundsUTC is DayBounds for a timezone id.
func DayBoundsUTC(tz string, ref time.Time) (time.Time, time.Time, error) {
	loc, err := loadLocation(tz)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, end := DayBounds(loc, ref)
	return start, end, nil
}

// LocalDate formats the local calendar date of t.
func LocalDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
