package attendance

import (
	"math"
	"time"

	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// WORKING SCHEDULE (CALENDAR)
// =============================================================================

// WorkSlot is one recurring block of expected work, in wall-clock hours of
// the calendar's zone (8.5 = 08:30).
type WorkSlot struct {
	Weekday  time.Weekday
	HourFrom float64
	HourTo   float64
}

// Leave closes calendar time. An empty ResourceID closes it for everyone
// (public holiday); otherwise only for that resource.
type Leave struct {
	From       time.Time
	To         time.Time
	ResourceID string
}

func (l Leave) appliesTo(resourceID string) bool {
	return l.ResourceID == "" || l.ResourceID == resourceID
}

// Calendar is a working schedule. HoursPerDay is the flat daily figure used
// when a past day is evaluated against a schedule the employee no longer has.
type Calendar struct {
	ID          CalendarID
	Name        string
	TZ          string
	HoursPerDay generic.Amount
	Slots       []WorkSlot
	Leaves      []Leave
}

// Flexible reports whether the calendar has no fixed daily expectation.
func (c Calendar) Flexible() bool {
	return c.HoursPerDay.IsZero()
}

// Location returns the calendar zone, or fallback when the calendar has none.
func (c Calendar) Location(fallback *time.Location) *time.Location {
	if c.TZ == "" {
		if fallback == nil {
			return time.UTC
		}
		return fallback
	}
	return generic.LoadLocation(c.TZ)
}

// WorkIntervals expands the weekly slots over window for one resource, clipped
// to the window and with applicable leaves removed. Slots are laid out in the
// calendar's zone; fallback is used when the calendar does not name one.
func (c Calendar) WorkIntervals(window generic.Interval, resourceID string, fallback *time.Location) []generic.Interval {
	loc := c.Location(fallback)

	// Slots are anchored to calendar-local days; widen by one day on each
	// side so zone offsets between window and calendar never drop a slot.
	first := generic.DayOf(window.Start, loc).AddDays(-1)
	last := generic.DayOf(window.End, loc).AddDays(1)

	var out []generic.Interval
	for day := first; day.BeforeOrEqual(last); day = day.AddDays(1) {
		for _, slot := range c.Slots {
			if slot.Weekday != day.Weekday() || slot.HourTo <= slot.HourFrom {
				continue
			}
			iv := generic.Interval{
				Start: wallClock(day, slot.HourFrom, loc),
				End:   wallClock(day, slot.HourTo, loc),
			}.Intersect(window)
			if iv.IsEmpty() {
				continue
			}
			out = append(out, c.withoutLeaves(iv, resourceID)...)
		}
	}
	generic.SortIntervals(out)
	return out
}

func (c Calendar) withoutLeaves(iv generic.Interval, resourceID string) []generic.Interval {
	pieces := []generic.Interval{iv}
	for _, leave := range c.Leaves {
		if !leave.appliesTo(resourceID) {
			continue
		}
		closed := generic.Interval{Start: leave.From, End: leave.To}
		var next []generic.Interval
		for _, p := range pieces {
			next = append(next, p.Subtract(closed)...)
		}
		pieces = next
	}
	return pieces
}

func wallClock(day generic.TimePoint, hours float64, loc *time.Location) time.Time {
	whole := math.Floor(hours)
	minutes := int(math.Round((hours - whole) * 60))
	return time.Date(day.Year(), day.Month(), day.Day(), int(whole), minutes, 0, 0, loc)
}
