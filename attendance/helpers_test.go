package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// Monday 2025-12-08 is the reference day D.
var dayD = generic.NewTimePoint(2025, time.December, 8)

var since = time.Date(2025, time.December, 5, 0, 0, 0, 0, time.UTC)

func hours(n float64) generic.Amount { return generic.Hours(n) }

func at(day generic.TimePoint, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.UTC)
}

func closed(id string, emp attendance.EmployeeID, in, out time.Time) attendance.Interval {
	return attendance.Interval{
		ID:                     attendance.IntervalID(id),
		EmployeeID:             emp,
		CheckIn:                in,
		CheckOut:               &out,
		WorkedHours:            generic.HoursOf(out.Sub(in)),
		OvertimeHours:          generic.ZeroHours(),
		ValidatedOvertimeHours: generic.ZeroHours(),
	}
}

func open(id string, emp attendance.EmployeeID, in time.Time) attendance.Interval {
	return attendance.Interval{
		ID:                     attendance.IntervalID(id),
		EmployeeID:             emp,
		CheckIn:                in,
		WorkedHours:            generic.ZeroHours(),
		OvertimeHours:          generic.ZeroHours(),
		ValidatedOvertimeHours: generic.ZeroHours(),
	}
}

// weekCalendar builds a Monday-Friday calendar split around a lunch break.
func weekCalendar(id string, perDay float64, morning, afternoon [2]float64) attendance.Calendar {
	cal := attendance.Calendar{ID: attendance.CalendarID(id), Name: id, TZ: "UTC", HoursPerDay: hours(perDay)}
	for wd := time.Monday; wd <= time.Friday; wd++ {
		cal.Slots = append(cal.Slots,
			attendance.WorkSlot{Weekday: wd, HourFrom: morning[0], HourTo: morning[1]},
			attendance.WorkSlot{Weekday: wd, HourFrom: afternoon[0], HourTo: afternoon[1]},
		)
	}
	return cal
}

func fullTime() attendance.Calendar {
	return weekCalendar("cal-40h", 8, [2]float64{8, 12}, [2]float64{13, 17})
}

func partTime() attendance.Calendar {
	return weekCalendar("cal-30h", 6, [2]float64{9, 12}, [2]float64{13, 16})
}

func flexible() attendance.Calendar {
	return attendance.Calendar{ID: "cal-flex", Name: "Flexible", TZ: "UTC", HoursPerDay: generic.ZeroHours()}
}

type fixture struct {
	ctx   context.Context
	store *memory.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{ctx: context.Background(), store: memory.New()}
	for _, cal := range []attendance.Calendar{fullTime(), partTime(), flexible()} {
		require.NoError(t, f.store.PutCalendar(f.ctx, cal))
	}
	f.employee(t, "emp-1", "UTC")
	return f
}

func (f *fixture) employee(t *testing.T, id attendance.EmployeeID, tz string) {
	t.Helper()
	require.NoError(t, f.store.PutEmployee(f.ctx, attendance.Employee{
		ID:         id,
		Name:       string(id),
		TZ:         tz,
		CalendarID: "cal-40h",
		ResourceID: "res-" + string(id),
	}))
}

func (f *fixture) intervals(t *testing.T, ivs ...attendance.Interval) {
	t.Helper()
	for _, iv := range ivs {
		require.NoError(t, f.store.PutInterval(f.ctx, iv))
	}
}

func (f *fixture) change(t *testing.T, id string, emp attendance.EmployeeID, effective generic.TimePoint, previous attendance.CalendarID) {
	t.Helper()
	require.NoError(t, f.store.PutScheduleChange(f.ctx, attendance.ScheduleChange{
		ID:                 id,
		EmployeeID:         emp,
		EffectiveOn:        effective,
		PreviousCalendarID: previous,
	}))
}

func (f *fixture) runner() *attendance.ReconciliationRunner {
	return attendance.NewReconciliationRunner(f.store, "")
}

func (f *fixture) commit(t *testing.T) *attendance.Result {
	t.Helper()
	res, err := f.runner().Run(f.ctx, attendance.RunOptions{Since: since, Commit: true})
	require.NoError(t, err)
	return res
}

func (f *fixture) corrections(t *testing.T) []attendance.Correction {
	t.Helper()
	out, err := f.store.ListCorrections(f.ctx, attendance.CorrectionFilter{})
	require.NoError(t, err)
	return out
}

func (f *fixture) evaluator(t *testing.T, defaultRuleset attendance.RulesetID) *attendance.DiscrepancyEvaluator {
	t.Helper()
	resolver, err := attendance.LoadScheduleResolver(f.ctx, f.store, f.store)
	require.NoError(t, err)
	return &attendance.DiscrepancyEvaluator{
		Resolver: resolver,
		Policy:   &attendance.ThresholdPolicy{Rulesets: f.store, DefaultRulesetID: defaultRuleset},
		Ledger:   f.store,
	}
}

func (f *fixture) total(t *testing.T, emp attendance.EmployeeID, day generic.TimePoint, worked float64) attendance.DailyTotal {
	t.Helper()
	e, err := f.store.Employee(f.ctx, emp)
	require.NoError(t, err)
	return attendance.DailyTotal{Employee: *e, Day: day, WorkedHours: hours(worked)}
}
