/*
Package generic provides the domain-agnostic building blocks of the
attendance engine.

PURPOSE:
  This package contains the small value types every other package speaks:
  quantities of time, calendar days, periods and intervals, and the
  versioned history used for point-in-time configuration lookups. It has
  no knowledge of employees, calendars or corrections.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (e.g., 7.5 hours)
  - EntityID: Type-safe identifier for the subject of a record

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point drift when
     summing many worked-hour values
  2. Type Safety: Strong typing for identifiers
  3. Value semantics: Every operation returns a new value

USAGE:
  worked := generic.NewAmount(4, generic.UnitHours)
  expected := generic.NewAmount(6, generic.UnitHours)
  deficit := worked.Sub(expected) // -2 hours

SEE ALSO:
  - time.go: TimePoint (calendar day) and day windows
  - period.go: Period and Interval
  - history.go: Versioned configuration history
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitHours   Unit = "hours"
	UnitMinutes Unit = "minutes"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

// Hours is shorthand for NewAmount(value, UnitHours).
func Hours(value float64) Amount {
	return NewAmount(value, UnitHours)
}

// ZeroHours returns an empty hour amount.
func ZeroHours() Amount {
	return Amount{Value: decimal.Zero, Unit: UnitHours}
}

// HoursOf converts a duration to an hour amount without going through float64.
func HoursOf(d time.Duration) Amount {
	return Amount{
		Value: decimal.NewFromInt(int64(d)).Div(decimal.NewFromInt(int64(time.Hour))),
		Unit:  UnitHours,
	}
}

// ParseAmount parses a stored decimal string. Invalid input yields zero.
func ParseAmount(value string, unit Unit) Amount {
	return Amount{Value: MustParseDecimal(value), Unit: unit}
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Add(b Amount) Amount    { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount    { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Abs() Amount            { return Amount{Value: a.Value.Abs(), Unit: a.Unit} }
func (a Amount) IsNegative() bool       { return a.Value.IsNegative() }
func (a Amount) IsZero() bool           { return a.Value.IsZero() }
func (a Amount) IsPositive() bool       { return a.Value.IsPositive() }
func (a Amount) Equal(b Amount) bool    { return a.Value.Equal(b.Value) }
func (a Amount) LessThan(b Amount) bool { return a.Value.LessThan(b.Value) }
func (a Amount) String() string         { return a.Value.String() }

// Duration converts an hour amount back to a time.Duration, truncated to nanoseconds.
func (a Amount) Duration() time.Duration {
	perUnit := int64(time.Hour)
	if a.Unit == UnitMinutes {
		perUnit = int64(time.Minute)
	}
	return time.Duration(a.Value.Mul(decimal.NewFromInt(perUnit)).IntPart())
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

// EntityID identifies the subject of a record (an employee, in practice).
type EntityID string
