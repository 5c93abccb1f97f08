package services

// Severity grades warnings and anomalies.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// WarningKind tags the policy check that produced a warning.
type WarningKind string

const (
	WarningOutsideBusinessHours WarningKind = "OUTSIDE_BUSINESS_HOURS"
	WarningNonWorkingDay        WarningKind = "NON_WORKING_DAY"
	WarningLateArrival          WarningKind = "LATE_ARRIVAL"
	WarningEarlyDeparture       WarningKind = "EARLY_DEPARTURE"
)

// Warning is a non-blocking policy finding. Only the payload fields that
// belong to Kind are set.
type Warning struct {
	Kind     WarningKind `json:"kind"`
	Severity Severity    `json:"severity"`
	Message  string      `json:"message"`

	RequiresApproval bool    `json:"requiresApproval,omitempty"`
	IsWeekend        bool    `json:"isWeekend,omitempty"`
	MinutesLate      int     `json:"minutesLate,omitempty"`
	ShortfallHours   float64 `json:"shortfallHours,omitempty"`
}

// Warnings is a typed list of policy findings.
type Warnings []Warning

// Has reports whether a warning of kind k is present.
func (ws Warnings) Has(k WarningKind) bool {
	_, ok := ws.Find(k)
	return ok
}

// Find returns the first warning of kind k.
func (ws Warnings) Find(k WarningKind) (Warning, bool) {
	for _, w := range ws {
		if w.Kind == k {
			return w, true
		}
	}
	return Warning{}, false
}

// Messages returns the human readable text of each warning.
func (ws Warnings) Messages() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Message)
	}
	return out
}
