// Package attendance implements attendance-deficit reconciliation.
//
// Raw clock-in/clock-out intervals are summed per employee and local day,
// compared with the hours the employee's working schedule expected on that
// day (as of that day, not as of today), and every actionable shortfall is
// materialized as exactly one deficit correction per (employee, day).
package attendance

import (
	"time"

	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID = generic.EntityID

type (
	IntervalID   string
	CalendarID   string
	RulesetID    string
	CorrectionID string
	RunID        string
)

// =============================================================================
// EMPLOYEE
// =============================================================================

// Employee carries what reconciliation needs to know about a person: the
// zone their days are counted in, the working schedule assigned today and
// the overtime ruleset.
type Employee struct {
	ID         EmployeeID
	Name       string
	TZ         string
	CalendarID CalendarID
	ResourceID string
	RulesetID  RulesetID
}

// Location returns the employee's zone, UTC when unset or unknown.
func (e Employee) Location() *time.Location {
	return generic.LoadLocation(e.TZ)
}

// =============================================================================
// ATTENDANCE INTERVAL
// =============================================================================

// Interval is one clock-in/clock-out record from the attendance ledger.
// ValidatedOvertimeHours is zero until someone validates the overtime by hand.
type Interval struct {
	ID                     IntervalID
	EmployeeID             EmployeeID
	CheckIn                time.Time
	CheckOut               *time.Time
	WorkedHours            generic.Amount
	OvertimeHours          generic.Amount
	ValidatedOvertimeHours generic.Amount
}

// Complete reports whether the interval has been checked out.
func (iv Interval) Complete() bool {
	return iv.CheckOut != nil
}

// =============================================================================
// SCHEDULE CHANGE
// =============================================================================

// ScheduleChange is an audit fact: before EffectiveOn, the employee worked
// under PreviousCalendarID.
type ScheduleChange struct {
	ID                 string
	EmployeeID         EmployeeID
	EffectiveOn        generic.TimePoint
	PreviousCalendarID CalendarID
}

// =============================================================================
// RULESET
// =============================================================================

type RuleBase string

const (
	RuleBaseQuantity RuleBase = "quantity"
	RuleBaseTiming   RuleBase = "timing"
)

// ThresholdRule is one overtime rule. Quantity rules that do not derive
// their expectation from the contract carry a flat ExpectedHours figure.
type ThresholdRule struct {
	Sequence                  int
	BaseOff                   RuleBase
	ExpectedHoursFromContract bool
	ExpectedHours             generic.Amount
}

type Ruleset struct {
	ID    RulesetID
	Name  string
	Rules []ThresholdRule
}

// =============================================================================
// CORRECTION ENTRY
// =============================================================================

type CorrectionStatus string

const (
	StatusToApprove CorrectionStatus = "to_approve"
	StatusApproved  CorrectionStatus = "approved"
	StatusRefused   CorrectionStatus = "refused"
)

// CorrectionKind tags the kind of entry downstream consumers receive.
type CorrectionKind string

const KindAbsenceDeficit CorrectionKind = "absence_deficit"

// Correction is the only record this engine writes. At most one exists per
// (EmployeeID, Date). Duration is signed, negative for a deficit.
// ManualDuration mirrors Duration until someone edits it by hand.
type Correction struct {
	ID             CorrectionID
	EmployeeID     EmployeeID
	Date           generic.TimePoint
	Duration       generic.Amount
	ManualDuration generic.Amount
	Compensable    bool
	Status         CorrectionStatus
	TimeStart      time.Time
	TimeStop       time.Time
	Kind           CorrectionKind
}

// CorrectionFilter narrows ListCorrections. Zero fields match everything.
type CorrectionFilter struct {
	EmployeeID EmployeeID
	From       *generic.TimePoint
	To         *generic.TimePoint
}

// Matches reports whether c passes the filter.
func (f CorrectionFilter) Matches(c Correction) bool {
	if f.EmployeeID != "" && c.EmployeeID != f.EmployeeID {
		return false
	}
	if f.From != nil && c.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && c.Date.After(*f.To) {
		return false
	}
	return true
}

// =============================================================================
// RECONCILIATION RUN
// =============================================================================

type RunMode string

const (
	ModeDryRun RunMode = "dry_run"
	ModeCommit RunMode = "commit"
)

type RunStatus string

const (
	RunStatusDryRun    RunStatus = "dry_run"
	RunStatusCommitted RunStatus = "committed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is the history record of one reconciliation invocation.
type Run struct {
	ID          RunID
	Mode        RunMode
	Since       generic.TimePoint
	StartedAt   time.Time
	CompletedAt time.Time
	Status      RunStatus
	Applied     int
	Skipped     int
	Report      string
	Error       string
}
