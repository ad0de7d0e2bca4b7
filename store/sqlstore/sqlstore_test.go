package sqlstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/store/sqlstore"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var day = generic.NewTimePoint(2025, time.December, 8)

func newStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	s, err := sqlstore.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func at(hour, minute int) time.Time {
	return time.Date(2025, time.December, 8, hour, minute, 0, 0, time.UTC)
}

func interval(id string, in, out time.Time) attendance.Interval {
	return attendance.Interval{
		ID:                     attendance.IntervalID(id),
		EmployeeID:             "emp-1",
		CheckIn:                in,
		CheckOut:               &out,
		WorkedHours:            generic.HoursOf(out.Sub(in)),
		OvertimeHours:          generic.ZeroHours(),
		ValidatedOvertimeHours: generic.ZeroHours(),
	}
}

func correction(id string, d generic.TimePoint, duration float64) attendance.Correction {
	return attendance.Correction{
		ID:             attendance.CorrectionID(id),
		EmployeeID:     "emp-1",
		Date:           d,
		Duration:       generic.Hours(duration),
		ManualDuration: generic.Hours(duration),
		Compensable:    true,
		Status:         attendance.StatusApproved,
		TimeStart:      at(8, 0),
		TimeStop:       at(13, 0),
		Kind:           attendance.KindAbsenceDeficit,
	}
}

func fullTime() attendance.Calendar {
	cal := attendance.Calendar{ID: "cal-40h", Name: "Standard", TZ: "UTC", HoursPerDay: generic.Hours(8)}
	for wd := time.Monday; wd <= time.Friday; wd++ {
		cal.Slots = append(cal.Slots,
			attendance.WorkSlot{Weekday: wd, HourFrom: 8, HourTo: 12},
			attendance.WorkSlot{Weekday: wd, HourFrom: 13, HourTo: 17},
		)
	}
	return cal
}

// =============================================================================
// CONFIGURATION COLLABORATORS
// =============================================================================

func TestEmployee_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.PutEmployee(ctx, attendance.Employee{
		ID: "emp-1", Name: "Ada", TZ: "Europe/Brussels", CalendarID: "cal-40h", ResourceID: "res-1", RulesetID: "rs-1",
	}))
	require.NoError(t, s.PutEmployee(ctx, attendance.Employee{
		ID: "emp-1", Name: "Ada L.", TZ: "Europe/Brussels", CalendarID: "cal-30h", ResourceID: "res-1", RulesetID: "rs-1",
	}))

	e, err := s.Employee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", e.Name)
	assert.Equal(t, attendance.CalendarID("cal-30h"), e.CalendarID)

	_, err = s.Employee(ctx, "ghost")
	assert.ErrorIs(t, err, generic.ErrEmployeeNotFound)
}

func TestCalendar_StoredAsDocument(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.PutCalendar(ctx, fullTime()))

	cal, err := s.Calendar(ctx, "cal-40h")
	require.NoError(t, err)

	window := day.WindowIn(time.UTC)
	assert.True(t, generic.TotalHours(cal.WorkIntervals(window, "res-1", time.UTC)).Equal(generic.Hours(8)))

	_, err = s.Calendar(ctx, "missing")
	assert.ErrorIs(t, err, generic.ErrCalendarNotFound)
}

func TestRuleset_MissingIsNil(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.PutRuleset(ctx, attendance.Ruleset{
		ID: "rs-1", Name: "Office",
		Rules: []attendance.ThresholdRule{{Sequence: 1, BaseOff: attendance.RuleBaseQuantity, ExpectedHours: generic.Hours(4)}},
	}))

	rs, err := s.Ruleset(ctx, "rs-1")
	require.NoError(t, err)
	require.NotNil(t, rs)
	rule, ok := rs.FloorRule()
	require.True(t, ok)
	assert.True(t, rule.ExpectedHours.Equal(generic.Hours(4)))

	rs, err = s.Ruleset(ctx, "rs-none")
	assert.NoError(t, err)
	assert.Nil(t, rs)
}

func TestScheduleChanges_GeneratesIDs(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.PutScheduleChange(ctx, attendance.ScheduleChange{EmployeeID: "emp-1", EffectiveOn: day, PreviousCalendarID: "cal-30h"}))
	require.NoError(t, s.PutScheduleChange(ctx, attendance.ScheduleChange{EmployeeID: "emp-1", EffectiveOn: day.AddDays(7), PreviousCalendarID: "cal-40h"}))

	changes, err := s.ScheduleChanges(ctx)
	require.NoError(t, err)

	require.Len(t, changes, 2)
	assert.NotEmpty(t, changes[0].ID)
	assert.NotEqual(t, changes[0].ID, changes[1].ID)
	assert.True(t, changes[0].EffectiveOn.Equal(day))
}

// =============================================================================
// ATTENDANCE LEDGER
// =============================================================================

func TestIntervals_CompletedAndBetween(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.PutInterval(ctx, interval("iv-2", at(13, 0), at(15, 30))))
	require.NoError(t, s.PutInterval(ctx, interval("iv-1", at(8, 0), at(12, 0))))
	require.NoError(t, s.PutInterval(ctx, attendance.Interval{ID: "iv-open", EmployeeID: "emp-1", CheckIn: at(16, 0)}))
	require.NoError(t, s.PutInterval(ctx, interval("iv-old", at(8, 0).AddDate(0, 0, -10), at(9, 0).AddDate(0, 0, -10))))

	completed, err := s.CompletedIntervals(ctx, at(0, 0))
	require.NoError(t, err)
	require.Len(t, completed, 2)
	assert.Equal(t, attendance.IntervalID("iv-1"), completed[0].ID)
	assert.True(t, completed[1].WorkedHours.Equal(generic.Hours(2.5)))

	window := day.WindowIn(time.UTC)
	between, err := s.IntervalsBetween(ctx, "emp-1", window.Start, window.End)
	require.NoError(t, err)
	require.Len(t, between, 3)
	assert.False(t, between[2].Complete())
}

func TestRecomputeOvertime(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.PutInterval(ctx, interval("iv-1", at(8, 0), at(12, 0))))
	c := correction("c-1", day, -4)
	c.ManualDuration = generic.Hours(-3)
	require.NoError(t, s.CreateCorrection(ctx, c))

	require.NoError(t, s.RecomputeOvertime(ctx, []attendance.IntervalID{"iv-1"}))

	iv, err := s.Interval(ctx, "iv-1")
	require.NoError(t, err)
	assert.True(t, iv.OvertimeHours.Equal(generic.Hours(-4)))
	assert.True(t, iv.ValidatedOvertimeHours.Equal(generic.Hours(-3)))

	assert.Error(t, s.RecomputeOvertime(ctx, []attendance.IntervalID{"iv-ghost"}))
}

// =============================================================================
// CORRECTIONS
// =============================================================================

func TestCorrections_UniquePerEmployeeDay(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.CreateCorrection(ctx, correction("c-1", day, -1)))

	err := s.CreateCorrection(ctx, correction("c-2", day, -2))

	assert.ErrorIs(t, err, generic.ErrDuplicateCorrection)
}

func TestCorrections_FindUpdateList(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.CreateCorrection(ctx, correction("c-1", day, -1)))
	require.NoError(t, s.CreateCorrection(ctx, correction("c-2", day.AddDays(1), -2)))

	found, err := s.FindCorrection(ctx, "emp-1", day)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.Compensable)
	assert.True(t, found.TimeStart.Equal(at(8, 0)))

	found.Duration = generic.Hours(-2.25)
	found.Status = attendance.StatusToApprove
	require.NoError(t, s.UpdateCorrection(ctx, *found))

	ghost := correction("c-ghost", day, -1)
	assert.ErrorIs(t, s.UpdateCorrection(ctx, ghost), generic.ErrCorrectionNotFound)

	to := day
	list, err := s.ListCorrections(ctx, attendance.CorrectionFilter{EmployeeID: "emp-1", To: &to})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Duration.Equal(generic.Hours(-2.25)))
	assert.Equal(t, attendance.StatusToApprove, list[0].Status)

	none, err := s.FindCorrection(ctx, "emp-2", day)
	assert.NoError(t, err)
	assert.Nil(t, none)
}

func TestWithTx_RollbackDiscardsWrites(t *testing.T) {
	// GIVEN: An existing correction
	// WHEN: A transaction updates it, creates another and then fails
	// THEN: Neither write survives
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.CreateCorrection(ctx, correction("c-1", day, -1)))

	err := s.WithTx(ctx, func(tx attendance.Tx) error {
		if err := tx.UpdateCorrection(ctx, correction("c-1", day, -5)); err != nil {
			return err
		}
		if err := tx.CreateCorrection(ctx, correction("c-2", day.AddDays(1), -1)); err != nil {
			return err
		}
		inTx, err := tx.ListCorrections(ctx, attendance.CorrectionFilter{})
		if err != nil {
			return err
		}
		assert.Len(t, inTx, 2, "writes visible inside the transaction")
		return errors.New("abort")
	})
	require.Error(t, err)

	list, err := s.ListCorrections(ctx, attendance.CorrectionFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Duration.Equal(generic.Hours(-1)))
}

// =============================================================================
// RUN HISTORY
// =============================================================================

func TestRuns_UpsertAndNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	first := attendance.Run{ID: "r-1", Mode: attendance.ModeDryRun, Since: day, StartedAt: at(9, 0), CompletedAt: at(9, 1), Status: attendance.RunStatusDryRun}
	second := attendance.Run{ID: "r-2", Mode: attendance.ModeCommit, Since: day, StartedAt: at(10, 0), Status: attendance.RunStatusCommitted}
	require.NoError(t, s.SaveRun(ctx, first))
	require.NoError(t, s.SaveRun(ctx, second))
	second.Applied = 3
	second.Report = "Corrections applied:"
	require.NoError(t, s.SaveRun(ctx, second))

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, attendance.RunID("r-2"), runs[0].ID)
	assert.Equal(t, 3, runs[0].Applied)
	assert.True(t, runs[1].Since.Equal(day))

	limited, err := s.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

// =============================================================================
// END TO END
// =============================================================================

func TestRunner_CommitAgainstSQLite(t *testing.T) {
	// GIVEN: A full-time employee who worked 4h on a Monday
	// WHEN: Reconciliation commits twice
	// THEN: One -4h correction exists, anchored and recomputed on the interval
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.PutCalendar(ctx, fullTime()))
	require.NoError(t, s.PutEmployee(ctx, attendance.Employee{ID: "emp-1", Name: "Ada", TZ: "UTC", CalendarID: "cal-40h", ResourceID: "res-1"}))
	require.NoError(t, s.PutInterval(ctx, interval("iv-1", at(8, 0), at(12, 0))))

	runner := attendance.NewReconciliationRunner(s, "")
	since := time.Date(2025, time.December, 5, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		_, err := runner.Run(ctx, attendance.RunOptions{Since: since, Commit: true})
		require.NoError(t, err)
	}

	list, err := s.ListCorrections(ctx, attendance.CorrectionFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Duration.Equal(generic.Hours(-4)))
	assert.True(t, list[0].TimeStop.Equal(at(16, 0)))

	iv, err := s.Interval(ctx, "iv-1")
	require.NoError(t, err)
	assert.True(t, iv.OvertimeHours.Equal(generic.Hours(-4)))

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestReset_ClearsEverything(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.PutEmployee(ctx, attendance.Employee{ID: "emp-1", Name: "Ada"}))
	require.NoError(t, s.CreateCorrection(ctx, correction("c-1", day, -1)))

	require.NoError(t, s.Reset(ctx))

	_, err := s.Employee(ctx, "emp-1")
	assert.ErrorIs(t, err, generic.ErrEmployeeNotFound)
	list, err := s.ListCorrections(ctx, attendance.CorrectionFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := sqlstore.Open(context.Background(), "mysql", "dsn")
	assert.Error(t, err)
}
