package services

import (
	"fmt"
	"math"
	"time"

	"github.com/cppla/punchclock/models"
)

// SequenceState is the per-day punch state machine.
type SequenceState string

const (
	StateNoPunches SequenceState = "NO_PUNCHES"
	StateOpen      SequenceState = "OPEN"
	StateClosed    SequenceState = "CLOSED"
)

// Sequence error messages.
const (
	MsgDoubleIn     = "cannot punch IN twice in a row"
	MsgFirstMustIn  = "first punch must be IN"
	MsgDoubleOut    = "cannot punch OUT twice in a row"
	msgDoublePunchF = "duplicate punch: wait at least %d seconds between punches"
)

// DeriveState returns the state after the given ascending punches and the
// IN punch that keeps the session open, if any.
func DeriveState(punches []models.Punch) (SequenceState, *models.Punch) {
	if len(punches) == 0 {
		return StateNoPunches, nil
	}
	last := punches[len(punches)-1]
	if last.IsIn() {
		return StateOpen, &last
	}
	return StateClosed, nil
}

// ValidationInput is everything the validator needs about a new punch.
type ValidationInput struct {
	PunchType string
	PunchTime time.Time
	// DayPunches are the user's punches of the local day that precede PunchTime, ascending.
	DayPunches []models.Punch
	// LastPunch is the user's most recent punch of any day, used for the debounce.
	LastPunch *models.Punch
}

// ValidationResult is the outcome of a validation run. Structural errors
// make Valid false; warnings never do.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Warnings Warnings `json:"warnings"`
	Errors   []string `json:"errors"`

	cause error
}

// Err returns the rejection as a ValidationError, or nil when valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return newValidationError(r.cause, r.Errors...)
}

// Validator gates new punches.
type Validator struct {
	policy Policy
}

// NewValidator builds a validator for policy.
func NewValidator(policy Policy) *Validator {
	return &Validator{policy: policy}
}

// Validate runs the debounce, the sequence check and the policy checks, in that order.
func (v *Validator) Validate(in ValidationInput, up UserPolicy) ValidationResult {
	res := ValidationResult{Valid: true, Warnings: Warnings{}, Errors: []string{}}

	if !models.ValidPunchType(in.PunchType) {
		res.Valid = false
		res.cause = ErrInvalidPunchType
		res.Errors = append(res.Errors, ErrInvalidPunchType.Error())
		return res
	}

	// The debounce wins over every other check.
	if in.LastPunch != nil {
		gap := in.PunchTime.Sub(in.LastPunch.PunchTime)
		if gap < 0 {
			gap = -gap
		}
		if gap < v.policy.DoublePunchWindow {
			res.Valid = false
			res.cause = ErrDoublePunch
			res.Errors = append(res.Errors, fmt.Sprintf(msgDoublePunchF, int(v.policy.DoublePunchWindow/time.Second)))
			return res
		}
	}

	state, openIn := DeriveState(in.DayPunches)
	if msg := sequenceError(state, in.PunchType); msg != "" {
		res.Valid = false
		res.cause = ErrSequence
		res.Errors = append(res.Errors, msg)
		return res
	}

	res.Warnings = v.policyWarnings(in, up, openIn)
	return res
}

func sequenceError(state SequenceState, punchType string) string {
	switch {
	case punchType == models.PunchIn && state == StateOpen:
		return MsgDoubleIn
	case punchType == models.PunchOut && state == StateNoPunches:
		return MsgFirstMustIn
	case punchType == models.PunchOut && state == StateClosed:
		return MsgDoubleOut
	}
	return ""
}

func (v *Validator) policyWarnings(in ValidationInput, up UserPolicy, openIn *models.Punch) Warnings {
	ws := Warnings{}
	local := in.PunchTime.In(up.Location)
	mod := minutesOfDay(local)

	if mod < float64(up.BusinessHoursStart) || mod >= float64(up.BusinessHoursEnd) {
		ws = append(ws, Warning{
			Kind:             WarningOutsideBusinessHours,
			Severity:         SeverityWarning,
			Message:          fmt.Sprintf("punch at %s is outside business hours %s-%s", local.Format("15:04"), up.BusinessHoursStart, up.BusinessHoursEnd),
			RequiresApproval: true,
		})
	}

	if !up.WorkingDays[local.Weekday()] {
		ws = append(ws, Warning{
			Kind:      WarningNonWorkingDay,
			Severity:  SeverityWarning,
			Message:   fmt.Sprintf("%s is not a working day", local.Weekday()),
			IsWeekend: true,
		})
	}

	if in.PunchType == models.PunchIn {
		if late := mod - float64(up.ShiftStartTime); late > float64(up.GraceMinutes) {
			minutes := int(math.Floor(late))
			sev := SeverityWarning
			if minutes > v.policy.LateEscalationMinutes {
				sev = SeverityError
			}
			ws = append(ws, Warning{
				Kind:        WarningLateArrival,
				Severity:    sev,
				Message:     fmt.Sprintf("late by %d minutes (shift starts %s)", minutes, up.ShiftStartTime),
				MinutesLate: minutes,
			})
		}
	}

	if in.PunchType == models.PunchOut && openIn != nil {
		worked := in.PunchTime.Sub(openIn.PunchTime).Hours()
		if worked < up.MinimumWorkHours {
			shortfall := math.Round((up.MinimumWorkHours-worked)*100) / 100
			ws = append(ws, Warning{
				Kind:           WarningEarlyDeparture,
				Severity:       SeverityWarning,
				Message:        fmt.Sprintf("early departure: %.2fh worked, %.2fh required", worked, up.MinimumWorkHours),
				ShortfallHours: shortfall,
			})
		}
	}
	return ws
}

// LateNote is the system note attached to a late IN punch.
func LateNote(minutesLate int) string {
	return fmt.Sprintf("late by %dm", minutesLate)
}
