package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cppla/punchclock/config"
	"github.com/cppla/punchclock/models"
)

// Thresholds of the worked-time calculator.
const (
	MaxSessionMinutes        = 1440.0 // closed sessions longer than this are discarded
	MaxOpenSessionMinutes    = 960.0  // open sessions longer than this are stuck
	StuckOpenFallbackMinutes = 480.0
)

// ClockTime is a local time of day in minutes after midnight.
type ClockTime int

// ParseClockTime parses HH:MM.
func ParseClockTime(s string) (ClockTime, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return ClockTime(h*60 + m), nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// minutesOfDay returns the fractional minutes elapsed since local midnight.
func minutesOfDay(t time.Time) float64 {
	return float64(t.Hour()*60+t.Minute()) + float64(t.Second())/60 + float64(t.Nanosecond())/6e10
}

// Policy is the immutable process-wide work policy.
type Policy struct {
	DefaultTimezone           string
	BusinessHoursStart        ClockTime
	BusinessHoursEnd          ClockTime
	ShiftStartTime            ClockTime
	GraceMinutes              int
	LateEscalationMinutes     int
	MinimumWorkHours          float64
	DailyTargetMinutes        int
	WorkingDays               []time.Weekday
	DoublePunchWindow         time.Duration
	LongOpenThreshold         time.Duration
	ShortSessionThreshold     time.Duration
	MultipleSessionsThreshold int
	ReminderAfter             time.Duration
	OrphanWindow              time.Duration
	AutoCloseAt               ClockTime
	ClampStuckOpenSession     bool
}

// DefaultPolicy returns the built-in defaults.
func DefaultPolicy() Policy {
	return Policy{
		DefaultTimezone:           "UTC",
		BusinessHoursStart:        7 * 60,
		BusinessHoursEnd:          20 * 60,
		ShiftStartTime:            9 * 60,
		GraceMinutes:              15,
		LateEscalationMinutes:     30,
		MinimumWorkHours:          4,
		DailyTargetMinutes:        480,
		WorkingDays:               []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		DoublePunchWindow:         60 * time.Second,
		LongOpenThreshold:         12 * time.Hour,
		ShortSessionThreshold:     30 * time.Minute,
		MultipleSessionsThreshold: 3,
		ReminderAfter:             8 * time.Hour,
		OrphanWindow:              30 * 24 * time.Hour,
		AutoCloseAt:               23*60 + 59,
		ClampStuckOpenSession:     true,
	}
}

// NewPolicy converts the configuration section into an engine policy.
func NewPolicy(c config.PolicyConfig) (Policy, error) {
	p := Policy{
		DefaultTimezone:           c.DefaultTimezone,
		GraceMinutes:              c.GraceMinutes,
		LateEscalationMinutes:     c.LateEscalationMinutes,
		MinimumWorkHours:          c.MinimumWorkHours,
		DailyTargetMinutes:        c.DailyTargetMinutes,
		DoublePunchWindow:         time.Duration(c.DoublePunchWindowSec) * time.Second,
		LongOpenThreshold:         time.Duration(c.LongOpenHours) * time.Hour,
		ShortSessionThreshold:     time.Duration(c.ShortSessionMinutes) * time.Minute,
		MultipleSessionsThreshold: c.MultipleSessionsThreshold,
		ReminderAfter:             time.Duration(c.ReminderAfterHours) * time.Hour,
		OrphanWindow:              time.Duration(c.OrphanWindowDays) * 24 * time.Hour,
		ClampStuckOpenSession:     c.Clamp(),
	}
	if _, err := loadLocation(c.DefaultTimezone); err != nil {
		return p, err
	}
	clocks := []struct {
		field string
		value string
		dst   *ClockTime
	}{
		{"policy.business_hours_start", c.BusinessHoursStart, &p.BusinessHoursStart},
		{"policy.business_hours_end", c.BusinessHoursEnd, &p.BusinessHoursEnd},
		{"policy.shift_start_time", c.ShiftStartTime, &p.ShiftStartTime},
		{"policy.auto_close_at", c.AutoCloseAt, &p.AutoCloseAt},
	}
	for _, ck := range clocks {
		v, err := ParseClockTime(ck.value)
		if err != nil {
			return p, &ConfigurationError{Field: ck.field, Value: ck.value, Err: err}
		}
		*ck.dst = v
	}
	days, err := parseWorkingDays(c.WorkingDays)
	if err != nil {
		return p, err
	}
	p.WorkingDays = days
	if p.DoublePunchWindow <= 0 {
		return p, &ConfigurationError{Field: "policy.double_punch_window_sec", Value: strconv.Itoa(c.DoublePunchWindowSec)}
	}
	return p, nil
}

// UserPolicy is the policy in effect for one user after applying the
// profile overrides.
type UserPolicy struct {
	Timezone           string
	Location           *time.Location
	BusinessHoursStart ClockTime
	BusinessHoursEnd   ClockTime
	ShiftStartTime     ClockTime
	GraceMinutes       int
	MinimumWorkHours   float64
	TargetMinutes      float64
	WorkingDays        map[time.Weekday]bool
}

// IsWorkingDay reports whether the local weekday of t is a working day.
func (u UserPolicy) IsWorkingDay(t time.Time) bool {
	return u.WorkingDays[t.In(u.Location).Weekday()]
}

// ForUser resolves the effective policy of user. A nil user gets the defaults.
func (p Policy) ForUser(user *models.User) (UserPolicy, error) {
	tz := ResolveTimezone(user, p.DefaultTimezone)
	loc, err := loadLocation(tz)
	if err != nil {
		return UserPolicy{}, err
	}
	up := UserPolicy{
		Timezone:           tz,
		Location:           loc,
		BusinessHoursStart: p.BusinessHoursStart,
		BusinessHoursEnd:   p.BusinessHoursEnd,
		ShiftStartTime:     p.ShiftStartTime,
		GraceMinutes:       p.GraceMinutes,
		MinimumWorkHours:   p.MinimumWorkHours,
		TargetMinutes:      float64(p.DailyTargetMinutes),
		WorkingDays:        make(map[time.Weekday]bool, 7),
	}
	for _, d := range p.WorkingDays {
		up.WorkingDays[d] = true
	}
	if user == nil {
		return up, nil
	}

	overrides := []struct {
		field string
		value *string
		dst   *ClockTime
	}{
		{"business_hours_start", user.BusinessHoursStart, &up.BusinessHoursStart},
		{"business_hours_end", user.BusinessHoursEnd, &up.BusinessHoursEnd},
		{"shift_start_time", user.ShiftStartTime, &up.ShiftStartTime},
	}
	for _, o := range overrides {
		if o.value == nil || strings.TrimSpace(*o.value) == "" {
			continue
		}
		v, err := ParseClockTime(*o.value)
		if err != nil {
			return UserPolicy{}, &ConfigurationError{Field: "user." + o.field, Value: *o.value, Err: err}
		}
		*o.dst = v
	}
	if user.GraceMinutes != nil {
		up.GraceMinutes = *user.GraceMinutes
	}
	if user.MinimumWorkHours != nil {
		up.MinimumWorkHours = *user.MinimumWorkHours
	}
	if user.DailyWorkTargetMinutes > 0 {
		up.TargetMinutes = float64(user.DailyWorkTargetMinutes)
	}
	if names := user.WorkingDayNames(); len(names) > 0 {
		days, err := parseWorkingDays(names)
		if err != nil {
			return UserPolicy{}, err
		}
		up.WorkingDays = make(map[time.Weekday]bool, len(days))
		for _, d := range days {
			up.WorkingDays[d] = true
		}
	}
	return up, nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

func parseWorkingDays(names []string) ([]time.Weekday, error) {
	days := make([]time.Weekday, 0, len(names))
	for _, n := range names {
		d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return nil, &ConfigurationError{Field: "working_days", Value: n}
		}
		days = append(days, d)
	}
	return days, nil
}
