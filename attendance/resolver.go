/*
resolver.go - Point-in-time expected hours

PURPOSE:
  Answers "how many hours was this employee expected to work on this day?"
  using the schedule that was active THEN.

ALGORITHM:
  1. Local day window: midnight to midnight in the employee's zone.
  2. Baseline: total duration of the CURRENT calendar's work intervals
     inside that window, for the employee's resource (leaves removed).
  3. Override: when the baseline is positive and the employee has schedule
     changes, the first change (ascending effective day) strictly after the
     day replaces the baseline with the previous calendar's flat
     HoursPerDay. A zero HoursPerDay makes the day Flexible.
  4. A zero baseline with no override is Unscheduled.

  Changes are ordered by (effective day, previous calendar id); the first
  match wins even when a later change would also qualify.

STATUS:
  Scheduled:   Hours is the expectation
  Unscheduled: Day is dropped without a report line
  Flexible:    Day is reported as a flexible-calendar skip

SEE ALSO:
  - generic/history.go: FirstAfter lookup
  - calendar.go: WorkIntervals expansion
*/
package attendance

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/warp/attendance-engine/generic"
)

type ExpectationStatus string

const (
	ExpectationScheduled   ExpectationStatus = "scheduled"
	ExpectationUnscheduled ExpectationStatus = "unscheduled"
	ExpectationFlexible    ExpectationStatus = "flexible"
)

// Expectation is the resolved schedule for one (employee, day).
type Expectation struct {
	Status   ExpectationStatus
	Hours    generic.Amount
	Baseline generic.Amount

	// CalendarID is the calendar Hours was taken from. It differs from the
	// employee's current calendar when Historical is set.
	CalendarID CalendarID
	Historical bool
}

// ScheduleResolver resolves expected hours against per-employee schedule histories.
type ScheduleResolver struct {
	calendars CalendarService
	histories map[EmployeeID]*generic.History[CalendarID]
}

// NewScheduleResolver builds one history per employee from the audit events.
// Events without a previous calendar carry no usable value and are ignored.
func NewScheduleResolver(calendars CalendarService, changes []ScheduleChange) *ScheduleResolver {
	sorted := make([]ScheduleChange, 0, len(changes))
	for _, c := range changes {
		if c.PreviousCalendarID == "" {
			continue
		}
		sorted = append(sorted, c)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].EffectiveOn.Equal(sorted[j].EffectiveOn) {
			return sorted[i].EffectiveOn.Before(sorted[j].EffectiveOn)
		}
		return sorted[i].PreviousCalendarID < sorted[j].PreviousCalendarID
	})

	histories := make(map[EmployeeID]*generic.History[CalendarID])
	for _, c := range sorted {
		h, ok := histories[c.EmployeeID]
		if !ok {
			h = generic.NewHistory[CalendarID]()
			histories[c.EmployeeID] = h
		}
		h.Add(c.EffectiveOn, c.PreviousCalendarID)
	}

	return &ScheduleResolver{calendars: calendars, histories: histories}
}

// LoadScheduleResolver reads the whole audit trail once and builds a resolver.
func LoadScheduleResolver(ctx context.Context, audit ScheduleAuditSource, calendars CalendarService) (*ScheduleResolver, error) {
	changes, err := audit.ScheduleChanges(ctx)
	if err != nil {
		return nil, fmt.Errorf("load schedule changes: %w", err)
	}
	r := NewScheduleResolver(calendars, changes)

	versions := 0
	for _, h := range r.histories {
		versions += h.Len()
	}
	log.Ctx(ctx).Debug().
		Int("employees", len(r.histories)).
		Int("versions", versions).
		Msg("schedule history loaded")
	return r, nil
}

// Resolve computes the expectation for emp on day.
func (r *ScheduleResolver) Resolve(ctx context.Context, emp Employee, day generic.TimePoint) (Expectation, error) {
	baseline, err := r.baseline(ctx, emp, day)
	if err != nil {
		return Expectation{}, err
	}

	exp := Expectation{
		Status:     ExpectationUnscheduled,
		Hours:      baseline,
		Baseline:   baseline,
		CalendarID: emp.CalendarID,
	}
	if !baseline.IsPositive() {
		return exp, nil
	}
	exp.Status = ExpectationScheduled

	version, ok := r.histories[emp.ID].FirstAfter(day)
	if !ok {
		return exp, nil
	}

	exp.CalendarID = version.Value
	exp.Historical = true

	previous, err := r.calendars.Calendar(ctx, version.Value)
	if errors.Is(err, generic.ErrCalendarNotFound) {
		exp.Status = ExpectationFlexible
		exp.Hours = generic.ZeroHours()
		return exp, nil
	}
	if err != nil {
		return Expectation{}, fmt.Errorf("load calendar %s: %w", version.Value, err)
	}

	if previous.Flexible() {
		exp.Status = ExpectationFlexible
		exp.Hours = generic.ZeroHours()
		return exp, nil
	}
	exp.Hours = previous.HoursPerDay
	return exp, nil
}

// baseline sums the current calendar's work time inside the employee's local day.
func (r *ScheduleResolver) baseline(ctx context.Context, emp Employee, day generic.TimePoint) (generic.Amount, error) {
	if emp.CalendarID == "" {
		return generic.ZeroHours(), nil
	}
	cal, err := r.calendars.Calendar(ctx, emp.CalendarID)
	if errors.Is(err, generic.ErrCalendarNotFound) {
		return generic.ZeroHours(), nil
	}
	if err != nil {
		return generic.Amount{}, fmt.Errorf("load calendar %s: %w", emp.CalendarID, err)
	}

	loc := emp.Location()
	window := day.WindowIn(loc)
	return generic.TotalHours(cal.WorkIntervals(window, emp.ResourceID, loc)), nil
}
