/*
evaluator.go - Per-day deficit decision

PURPOSE:
  Decides, for one (employee, day, worked hours) total, whether a deficit
  correction applies. Every abstention is a tagged Outcome, never an error.
  Errors are reserved for collaborators that could not be read.

STEP CHAIN (fixed order, first abstention wins):
  1. schedule      Unscheduled -> dropped silently
                   Flexible    -> reported skip
  2. shortfall     worked >= expected -> no shortfall (silent)
  3. threshold     worked < floor     -> below threshold (silent)
  4. completeness  no intervals, or any without check-out -> incomplete (silent)
  5. anchor        latest check-out among the day's intervals
  6. validated     validated != overtime AND validated != 0 -> reported skip
  7. candidate     duration = deficit, window = [check-in, check-out + |deficit|]

  The flexible skip fires before the shortfall comparison, so a flexible
  day is reported even when the employee worked more than enough.

OUTPUT:
  Outcome carries both the candidate (if any) and its report line, so a
  single pass feeds the unit of work and the report.
*/
package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// OUTCOME
// =============================================================================

type OutcomeKind string

const (
	OutcomeUnscheduled       OutcomeKind = "unscheduled"
	OutcomeFlexibleSkip      OutcomeKind = "flexible_calendar"
	OutcomeNoShortfall       OutcomeKind = "no_shortfall"
	OutcomeBelowThreshold    OutcomeKind = "below_threshold"
	OutcomeIncomplete        OutcomeKind = "incomplete_day"
	OutcomeValidatedMismatch OutcomeKind = "validated_mismatch"
	OutcomeCorrection        OutcomeKind = "correction"
)

// Outcome is the decision for one (employee, day).
type Outcome struct {
	Kind        OutcomeKind
	Employee    Employee
	Day         generic.TimePoint
	Worked      generic.Amount
	Expectation Expectation
	Minimum     generic.Amount
	Deficit     generic.Amount

	// Anchor is set once the day's intervals were loaded and an anchor chosen.
	Anchor    *Interval
	Candidate *Candidate
}

// Reported reports whether the outcome produces a report line.
func (o Outcome) Reported() bool {
	switch o.Kind {
	case OutcomeFlexibleSkip, OutcomeValidatedMismatch, OutcomeCorrection:
		return true
	}
	return false
}

// ReportLine returns the human-readable line for reported outcomes, "" otherwise.
func (o Outcome) ReportLine() string {
	switch o.Kind {
	case OutcomeFlexibleSkip:
		return fmt.Sprintf(" - Employee %s skipped on %s (flexible calendar)", o.Employee.ID, o.Day)
	case OutcomeValidatedMismatch:
		return fmt.Sprintf(" - Attendance %s on %s skipped (validated mismatch)", o.Anchor.ID, o.Day)
	case OutcomeCorrection:
		return fmt.Sprintf(" - Attendance %s: %sh missing vs expected", o.Anchor.ID, o.Deficit.Abs())
	}
	return ""
}

// Candidate is a correction ready to be upserted for (EmployeeID, Date).
type Candidate struct {
	EmployeeID EmployeeID
	Date       generic.TimePoint
	Duration   generic.Amount
	TimeStart  time.Time
	TimeStop   time.Time
	AnchorID   IntervalID
}

// Apply overwrites the correction fields owned by reconciliation. Identity
// fields of c are left untouched.
func (cand Candidate) Apply(c Correction) Correction {
	c.EmployeeID = cand.EmployeeID
	c.Date = cand.Date
	c.Duration = cand.Duration
	c.ManualDuration = cand.Duration
	c.Compensable = true
	c.Status = StatusApproved
	c.TimeStart = cand.TimeStart
	c.TimeStop = cand.TimeStop
	c.Kind = KindAbsenceDeficit
	return c
}

// =============================================================================
// EVALUATOR
// =============================================================================

// DiscrepancyEvaluator runs the step chain for each daily total.
type DiscrepancyEvaluator struct {
	Resolver *ScheduleResolver
	Policy   *ThresholdPolicy
	Ledger   AttendanceLedger
}

// evaluation is the state threaded through the steps.
type evaluation struct {
	out       Outcome
	intervals []Interval
}

// step returns a non-empty kind to stop the chain with that outcome.
type step func(ctx context.Context, ev *evaluation) (OutcomeKind, error)

// Evaluate decides the outcome for one daily total.
func (e *DiscrepancyEvaluator) Evaluate(ctx context.Context, total DailyTotal) (Outcome, error) {
	ev := &evaluation{out: Outcome{
		Employee: total.Employee,
		Day:      total.Day,
		Worked:   total.WorkedHours,
	}}

	steps := []step{
		e.resolveSchedule,
		e.checkShortfall,
		e.checkThreshold,
		e.loadDay,
		e.pickAnchor,
		e.checkValidated,
	}
	for _, s := range steps {
		kind, err := s(ctx, ev)
		if err != nil {
			return Outcome{}, err
		}
		if kind != "" {
			ev.out.Kind = kind
			return ev.out, nil
		}
	}

	anchor := ev.out.Anchor
	ev.out.Kind = OutcomeCorrection
	ev.out.Candidate = &Candidate{
		EmployeeID: total.Employee.ID,
		Date:       total.Day,
		Duration:   ev.out.Deficit,
		TimeStart:  anchor.CheckIn,
		TimeStop:   anchor.CheckOut.Add(ev.out.Deficit.Abs().Duration()),
		AnchorID:   anchor.ID,
	}
	return ev.out, nil
}

func (e *DiscrepancyEvaluator) resolveSchedule(ctx context.Context, ev *evaluation) (OutcomeKind, error) {
	exp, err := e.Resolver.Resolve(ctx, ev.out.Employee, ev.out.Day)
	if err != nil {
		return "", fmt.Errorf("resolve schedule for %s on %s: %w", ev.out.Employee.ID, ev.out.Day, err)
	}
	ev.out.Expectation = exp

	switch exp.Status {
	case ExpectationUnscheduled:
		return OutcomeUnscheduled, nil
	case ExpectationFlexible:
		return OutcomeFlexibleSkip, nil
	}
	return "", nil
}

func (e *DiscrepancyEvaluator) checkShortfall(_ context.Context, ev *evaluation) (OutcomeKind, error) {
	ev.out.Deficit = ev.out.Worked.Sub(ev.out.Expectation.Hours)
	if !ev.out.Deficit.IsNegative() {
		return OutcomeNoShortfall, nil
	}
	return "", nil
}

func (e *DiscrepancyEvaluator) checkThreshold(ctx context.Context, ev *evaluation) (OutcomeKind, error) {
	minimum, err := e.Policy.MinimumHours(ctx, ev.out.Employee)
	if err != nil {
		return "", fmt.Errorf("threshold for %s: %w", ev.out.Employee.ID, err)
	}
	ev.out.Minimum = minimum
	if ev.out.Worked.LessThan(minimum) {
		return OutcomeBelowThreshold, nil
	}
	return "", nil
}

func (e *DiscrepancyEvaluator) loadDay(ctx context.Context, ev *evaluation) (OutcomeKind, error) {
	window := ev.out.Day.WindowIn(ev.out.Employee.Location())
	intervals, err := e.Ledger.IntervalsBetween(ctx, ev.out.Employee.ID, window.Start, window.End)
	if err != nil {
		return "", fmt.Errorf("load intervals for %s on %s: %w", ev.out.Employee.ID, ev.out.Day, err)
	}
	if len(intervals) == 0 {
		return OutcomeIncomplete, nil
	}
	for _, iv := range intervals {
		if !iv.Complete() {
			return OutcomeIncomplete, nil
		}
	}
	ev.intervals = intervals
	return "", nil
}

func (e *DiscrepancyEvaluator) pickAnchor(_ context.Context, ev *evaluation) (OutcomeKind, error) {
	anchor := SelectAnchor(ev.intervals)
	ev.out.Anchor = &anchor
	return "", nil
}

func (e *DiscrepancyEvaluator) checkValidated(_ context.Context, ev *evaluation) (OutcomeKind, error) {
	a := ev.out.Anchor
	if !a.ValidatedOvertimeHours.Equal(a.OvertimeHours) && !a.ValidatedOvertimeHours.IsZero() {
		return OutcomeValidatedMismatch, nil
	}
	return "", nil
}

// SelectAnchor returns the interval with the strictly latest check-out. On
// equal check-outs the earlier one in the slice is kept. All intervals must
// be complete and the slice non-empty.
func SelectAnchor(intervals []Interval) Interval {
	best := intervals[0]
	for _, iv := range intervals[1:] {
		if iv.CheckOut.After(*best.CheckOut) {
			best = iv
		}
	}
	return best
}
