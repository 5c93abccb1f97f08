package services

import (
	"fmt"
	"math"
	"time"

	"github.com/cppla/punchclock/models"
)

// WorkedTime is the detailed result of reducing a punch sequence.
type WorkedTime struct {
	// Minutes is the total that callers display: closed sessions plus the
	// open-session contribution.
	Minutes       float64 `json:"minutes"`
	ClosedMinutes float64 `json:"closedMinutes"`
	// OpenSessionMinutes is what the open session contributed to Minutes.
	OpenSessionMinutes float64 `json:"openSessionMinutes"`
	// RawOpenSessionMinutes is the true elapsed time of the open session.
	RawOpenSessionMinutes float64 `json:"rawOpenSessionMinutes"`
	HasOpenSession        bool    `json:"hasOpenSession"`
	// StuckOpenSession is set when the open session is older than 16 hours.
	StuckOpenSession  bool `json:"stuckOpenSession"`
	DiscardedSessions int  `json:"discardedSessions"`
}

// CalculateWorkedTime scans ascending punches. Consecutive INs reset the
// pending IN, an OUT without a pending IN is ignored and closed sessions
// over 24 hours are discarded. When clamp is set a stuck open session
// contributes a fixed 480 minutes instead of its elapsed time.
func CalculateWorkedTime(punches []models.Punch, now time.Time, includeOpen, clamp bool) WorkedTime {
	var wt WorkedTime
	var pendingIn *models.Punch

	for i := range punches {
		p := punches[i]
		if p.IsIn() {
			pendingIn = &punches[i]
			continue
		}
		if pendingIn == nil {
			continue
		}
		duration := p.PunchTime.Sub(pendingIn.PunchTime).Minutes()
		if duration > MaxSessionMinutes {
			wt.DiscardedSessions++
		} else {
			wt.ClosedMinutes += duration
		}
		pendingIn = nil
	}

	wt.Minutes = wt.ClosedMinutes
	if pendingIn != nil {
		wt.HasOpenSession = true
		raw := math.Max(0, now.Sub(pendingIn.PunchTime).Minutes())
		wt.RawOpenSessionMinutes = raw
		wt.StuckOpenSession = raw > MaxOpenSessionMinutes
		if includeOpen {
			switch {
			case !wt.StuckOpenSession:
				wt.OpenSessionMinutes = raw
			case clamp:
				wt.OpenSessionMinutes = StuckOpenFallbackMinutes
			default:
				wt.OpenSessionMinutes = raw
			}
			wt.Minutes += wt.OpenSessionMinutes
		}
	}
	if wt.Minutes < 0 {
		wt.Minutes = 0
	}
	return wt
}

// CalculateWorkedMinutes returns the clamped total used by every existing report.
func CalculateWorkedMinutes(punches []models.Punch, includeOpen bool, now time.Time) float64 {
	return CalculateWorkedTime(punches, now, includeOpen, true).Minutes
}

// CalculateRemainingMinutes is max(0, target-worked).
func CalculateRemainingMinutes(worked, target float64) float64 {
	return math.Max(0, target-worked)
}

// CalculatePredictedExit projects when the open session reaches target.
// It returns nil when the last IN has already been closed or there is none.
func CalculatePredictedExit(punches []models.Punch, targetMinutes float64, loc *time.Location) *time.Time {
	lastIn := -1
	for i := len(punches) - 1; i >= 0; i-- {
		if punches[i].IsIn() {
			lastIn = i
			break
		}
	}
	if lastIn < 0 || lastIn != len(punches)-1 {
		return nil
	}
	before := CalculateWorkedMinutes(punches[:lastIn], false, punches[lastIn].PunchTime)
	remaining := targetMinutes - before
	exit := punches[lastIn].PunchTime.Add(time.Duration(remaining * float64(time.Minute)))
	if loc != nil {
		exit = exit.In(loc)
	}
	return &exit
}

// FormatMinutes renders minutes as "1h 30m" from an hour up, else "45m".
func FormatMinutes(m float64) string {
	total := int(math.Round(m))
	if total < 0 {
		total = 0
	}
	if total >= 60 {
		return fmt.Sprintf("%dh %dm", total/60, total%60)
	}
	return fmt.Sprintf("%dm", total)
}

// Session is an adjacent IN->OUT pair.
type Session struct {
	In      models.Punch `json:"in"`
	Out     models.Punch `json:"out"`
	Minutes float64      `json:"minutes"`
}

// PairSessions returns every IN immediately followed by an OUT.
func PairSessions(punches []models.Punch) []Session {
	var out []Session
	for i := 0; i+1 < len(punches); i++ {
		if punches[i].IsIn() && !punches[i+1].IsIn() {
			out = append(out, Session{
				In:      punches[i],
				Out:     punches[i+1],
				Minutes: punches[i+1].PunchTime.Sub(punches[i].PunchTime).Minutes(),
			})
			i++
		}
	}
	return out
}

// SessionCount is floor(count/2) plus one for an open session.
func SessionCount(punches []models.Punch) int {
	n := len(punches) / 2
	if len(punches) > 0 && punches[len(punches)-1].IsIn() {
		n++
	}
	return n
}

// NextPunchType is the opposite of the most recent punch, or IN when there is none.
func NextPunchType(punches []models.Punch) string {
	if len(punches) == 0 {
		return models.PunchIn
	}
	return models.OppositeType(punches[len(punches)-1].PunchType)
}
