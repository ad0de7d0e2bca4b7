package generic

import (
	"sort"
	"time"
)

// =============================================================================
// PERIOD - Inclusive range of calendar days
// =============================================================================

// Period is an inclusive range of days, used for queries such as
// "corrections between March 1 and March 31".
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Validate returns ErrInvalidPeriod when End is before Start.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// INTERVAL - Half-open range of instants
// =============================================================================

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) Duration() time.Duration {
	if !iv.End.After(iv.Start) {
		return 0
	}
	return iv.End.Sub(iv.Start)
}

func (iv Interval) IsEmpty() bool { return !iv.End.After(iv.Start) }

// Intersect returns the overlap of two intervals, empty when they are disjoint.
func (iv Interval) Intersect(other Interval) Interval {
	start := iv.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := iv.End
	if other.End.Before(end) {
		end = other.End
	}
	if !end.After(start) {
		return Interval{Start: start, End: start}
	}
	return Interval{Start: start, End: end}
}

// Subtract removes other from iv and returns what is left (zero, one or two pieces).
func (iv Interval) Subtract(other Interval) []Interval {
	cut := iv.Intersect(other)
	if cut.IsEmpty() {
		return []Interval{iv}
	}
	var out []Interval
	if cut.Start.After(iv.Start) {
		out = append(out, Interval{Start: iv.Start, End: cut.Start})
	}
	if iv.End.After(cut.End) {
		out = append(out, Interval{Start: cut.End, End: iv.End})
	}
	return out
}

// TotalHours sums interval durations as an hour amount.
func TotalHours(ivs []Interval) Amount {
	var total time.Duration
	for _, iv := range ivs {
		total += iv.Duration()
	}
	return HoursOf(total)
}

// SortIntervals orders intervals by start time in place.
func SortIntervals(ivs []Interval) {
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].Start.Before(ivs[j].Start) })
}
