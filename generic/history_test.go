package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/generic"
)

func date(year int, month time.Month, day int) generic.TimePoint {
	return generic.NewTimePoint(year, month, day)
}

// =============================================================================
// HISTORY
// =============================================================================

func TestHistory_FirstAfter_StrictlyAfter(t *testing.T) {
	h := generic.NewHistory[string]()
	h.Add(date(2025, time.June, 1), "june")
	h.Add(date(2025, time.March, 1), "march")

	v, ok := h.FirstAfter(date(2025, time.April, 10))
	require.True(t, ok)
	assert.Equal(t, "june", v.Value)

	v, ok = h.FirstAfter(date(2025, time.March, 1))
	require.True(t, ok)
	assert.Equal(t, "june", v.Value, "a version effective on the day itself does not apply")

	v, ok = h.FirstAfter(date(2025, time.February, 28))
	require.True(t, ok)
	assert.Equal(t, "march", v.Value, "the first qualifying version wins")

	_, ok = h.FirstAfter(date(2025, time.June, 1))
	assert.False(t, ok)
}

func TestHistory_SameDay_KeepsInsertionOrder(t *testing.T) {
	h := generic.NewHistory[int]()
	h.Add(date(2025, time.May, 1), 1)
	h.Add(date(2025, time.May, 1), 2)
	h.Add(date(2025, time.January, 1), 0)

	assert.Equal(t, 3, h.Len())

	v, ok := h.FirstAfter(date(2024, time.December, 31))
	require.True(t, ok)
	assert.Equal(t, 0, v.Value)

	v, ok = h.FirstAfter(date(2025, time.April, 30))
	require.True(t, ok)
	assert.Equal(t, 1, v.Value)
}

func TestHistory_NilSafe(t *testing.T) {
	var h *generic.History[string]

	_, ok := h.FirstAfter(date(2025, time.January, 1))
	assert.False(t, ok)
	assert.Equal(t, 0, h.Len())
}

// =============================================================================
// DAYS AND INTERVALS
// =============================================================================

func TestDayOf_UsesLocalCalendarDay(t *testing.T) {
	brussels := generic.LoadLocation("Europe/Brussels")
	instant := time.Date(2025, time.December, 8, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, "2025-12-09", generic.DayOf(instant, brussels).String())
	assert.Equal(t, "2025-12-08", generic.DayOf(instant, time.UTC).String())
}

func TestWindowIn_DSTDayIs23Hours(t *testing.T) {
	brussels := generic.LoadLocation("Europe/Brussels")

	w := date(2025, time.March, 30).WindowIn(brussels)

	assert.Equal(t, 23*time.Hour, w.Duration())
}

func TestLoadLocation_FallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, generic.LoadLocation(""))
	assert.Equal(t, time.UTC, generic.LoadLocation("Mars/Olympus_Mons"))
}

func TestInterval_SubtractAndTotal(t *testing.T) {
	base := time.Date(2025, time.December, 8, 0, 0, 0, 0, time.UTC)
	work := generic.Interval{Start: base.Add(8 * time.Hour), End: base.Add(17 * time.Hour)}
	lunch := generic.Interval{Start: base.Add(12 * time.Hour), End: base.Add(13 * time.Hour)}

	pieces := work.Subtract(lunch)

	require.Len(t, pieces, 2)
	assert.True(t, generic.TotalHours(pieces).Equal(generic.Hours(8)))
	assert.Empty(t, lunch.Subtract(work))
	assert.Equal(t, []generic.Interval{work}, work.Subtract(generic.Interval{Start: base, End: base.Add(time.Hour)}))
}

func TestPeriod_Validate(t *testing.T) {
	ok := generic.Period{Start: date(2025, time.January, 1), End: date(2025, time.January, 3)}
	bad := generic.Period{Start: date(2025, time.January, 3), End: date(2025, time.January, 1)}

	assert.NoError(t, ok.Validate())
	assert.ErrorIs(t, bad.Validate(), generic.ErrInvalidPeriod)
	assert.Equal(t, "[2025-01-03, 2025-01-01]", bad.String())
}

func TestAmount_HoursOf_Exact(t *testing.T) {
	assert.True(t, generic.HoursOf(90*time.Minute).Equal(generic.Hours(1.5)))
	assert.True(t, generic.HoursOf(45*time.Minute).Equal(generic.Hours(0.75)))
	assert.Equal(t, 90*time.Minute, generic.Hours(1.5).Duration())
	assert.True(t, generic.Hours(-2).Abs().Equal(generic.Hours(2)))
}
