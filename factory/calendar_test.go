package factory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/generic"
)

const standardCalendar = `{
	"id": "cal-40h",
	"name": "Standard 40 hours",
	"tz": "Europe/Brussels",
	"hours_per_day": 8,
	"attendances": [
		{"weekday": "monday", "hour_from": 8, "hour_to": 12},
		{"weekday": "Monday", "hour_from": 12.5, "hour_to": 16.5}
	],
	"leaves": [
		{"from": "2025-12-25T00:00:00Z", "to": "2025-12-26T00:00:00Z", "name": "Christmas"},
		{"from": "2025-12-08T08:00:00Z", "to": "2025-12-08T12:00:00Z", "resource_id": "res-1"}
	]
}`

func TestParseCalendar(t *testing.T) {
	f := factory.NewScheduleFactory()

	cal, err := f.ParseCalendar(standardCalendar)
	require.NoError(t, err)

	assert.Equal(t, attendance.CalendarID("cal-40h"), cal.ID)
	assert.Equal(t, "Europe/Brussels", cal.TZ)
	assert.True(t, cal.HoursPerDay.Equal(generic.Hours(8)))
	require.Len(t, cal.Slots, 2)
	assert.Equal(t, time.Monday, cal.Slots[1].Weekday)
	assert.Equal(t, 12.5, cal.Slots[1].HourFrom)
	require.Len(t, cal.Leaves, 2)
	assert.Empty(t, cal.Leaves[0].ResourceID)
	assert.Equal(t, "res-1", cal.Leaves[1].ResourceID)
	assert.False(t, cal.Flexible())
}

func TestParseCalendar_FlexibleWithoutSlots(t *testing.T) {
	cal, err := factory.NewScheduleFactory().ParseCalendar(`{"id": "cal-flex", "name": "Flexible", "hours_per_day": 0}`)
	require.NoError(t, err)

	assert.True(t, cal.Flexible())
	assert.True(t, cal.HoursPerDay.IsZero())
}

func TestParseCalendar_Rejects(t *testing.T) {
	cases := map[string]string{
		"bad json":        `{`,
		"missing id":      `{"name": "x"}`,
		"unknown weekday": `{"id": "c", "attendances": [{"weekday": "funday", "hour_from": 8, "hour_to": 9}]}`,
		"inverted slot":   `{"id": "c", "attendances": [{"weekday": "monday", "hour_from": 9, "hour_to": 8}]}`,
		"slot past 24h":   `{"id": "c", "attendances": [{"weekday": "monday", "hour_from": 20, "hour_to": 25}]}`,
		"bad leave":       `{"id": "c", "leaves": [{"from": "yesterday", "to": "2025-01-01T00:00:00Z"}]}`,
		"negative hours":  `{"id": "c", "hours_per_day": -1}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := factory.NewScheduleFactory().ParseCalendar(doc)
			assert.Error(t, err)
		})
	}
}

func TestCalendar_MarshalParse_KeepsWorkIntervals(t *testing.T) {
	f := factory.NewScheduleFactory()
	original, err := f.ParseCalendar(standardCalendar)
	require.NoError(t, err)

	doc, err := f.MarshalCalendar(*original)
	require.NoError(t, err)
	parsed, err := f.ParseCalendar(doc)
	require.NoError(t, err)

	window := generic.NewTimePoint(2025, time.December, 8).WindowIn(generic.LoadLocation("Europe/Brussels"))
	want := original.WorkIntervals(window, "res-2", time.UTC)
	got := parsed.WorkIntervals(window, "res-2", time.UTC)
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].Start.Equal(got[i].Start))
		assert.True(t, want[i].End.Equal(got[i].End))
	}
	assert.True(t, generic.TotalHours(got).Equal(generic.Hours(8)))
}

func TestParseRuleset(t *testing.T) {
	f := factory.NewScheduleFactory()

	rs, err := f.ParseRuleset(`{
		"id": "rs-1",
		"name": "Office",
		"rules": [
			{"sequence": 20, "expected_hours": 4},
			{"sequence": 10, "base_off": "quantity", "expected_hours_from_contract": true},
			{"sequence": 5, "base_off": "timing"}
		]
	}`)
	require.NoError(t, err)

	require.Len(t, rs.Rules, 3)
	assert.Equal(t, attendance.RuleBaseQuantity, rs.Rules[0].BaseOff)
	rule, ok := rs.FloorRule()
	require.True(t, ok)
	assert.Equal(t, 20, rule.Sequence)
	assert.True(t, rule.ExpectedHours.Equal(generic.Hours(4)))

	doc, err := f.MarshalRuleset(*rs)
	require.NoError(t, err)
	again, err := f.ParseRuleset(doc)
	require.NoError(t, err)
	assert.Equal(t, len(rs.Rules), len(again.Rules))
}

func TestParseRuleset_UnknownBase(t *testing.T) {
	_, err := factory.NewScheduleFactory().ParseRuleset(`{"id": "rs", "rules": [{"base_off": "vibes"}]}`)
	assert.Error(t, err)
}
