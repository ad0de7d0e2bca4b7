package generic

import (
	"time"
)

// =============================================================================
// TIME POINT - A calendar day
// =============================================================================

// TimePoint is a calendar day. Time always holds midnight UTC of that day so
// two TimePoints for the same date compare equal regardless of where they
// were derived from.
type TimePoint struct {
	Time time.Time
}

// DateLayout is the storage and wire format of a TimePoint.
const DateLayout = "2006-01-02"

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf returns the calendar day t falls on when observed in loc.
func DayOf(t time.Time, loc *time.Location) TimePoint {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return NewTimePoint(local.Year(), local.Month(), local.Day())
}

// ParseTimePoint parses a YYYY-MM-DD date.
func ParseTimePoint(s string) (TimePoint, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return TimePoint{}, err
	}
	return TimePoint{Time: t}, nil
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Time.After(other.Time) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }

func (tp TimePoint) String() string {
	return tp.Time.Format(DateLayout)
}

// =============================================================================
// DAY WINDOWS - Local day boundaries
// =============================================================================

// WindowIn returns the half-open interval [local midnight, next local midnight)
// of this day in loc. On DST transition days the window is 23 or 25 hours long.
func (tp TimePoint) WindowIn(loc *time.Location) Interval {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(tp.Year(), tp.Month(), tp.Day(), 0, 0, 0, 0, loc)
	end := time.Date(tp.Year(), tp.Month(), tp.Day()+1, 0, 0, 0, 0, loc)
	return Interval{Start: start, End: end}
}

// LoadLocation resolves an IANA zone name, falling back to UTC for empty or
// unknown names.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
