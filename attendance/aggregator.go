package attendance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/warp/attendance-engine/generic"
)

// DailyTotal is the worked time of one employee on one local day.
type DailyTotal struct {
	Employee    Employee
	Day         generic.TimePoint
	WorkedHours generic.Amount
}

// DailyAggregator groups completed intervals into per-employee, per-day totals.
type DailyAggregator struct {
	Ledger    AttendanceLedger
	Directory EmployeeDirectory
}

// Aggregate sums WorkedHours of completed intervals checked in at or after
// since, grouped by employee and by the calendar day of the check-in in the
// employee's own zone. Days without intervals are absent from the result.
// Results are ordered by employee then day.
func (a *DailyAggregator) Aggregate(ctx context.Context, since time.Time) ([]DailyTotal, error) {
	intervals, err := a.Ledger.CompletedIntervals(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load completed intervals: %w", err)
	}

	type key struct {
		employee EmployeeID
		day      generic.TimePoint
	}

	employees := make(map[EmployeeID]*Employee)
	totals := make(map[key]*DailyTotal)

	for _, iv := range intervals {
		if !iv.Complete() {
			continue
		}
		emp, ok := employees[iv.EmployeeID]
		if !ok {
			emp, err = a.Directory.Employee(ctx, iv.EmployeeID)
			if err != nil {
				return nil, fmt.Errorf("load employee %s: %w", iv.EmployeeID, err)
			}
			employees[iv.EmployeeID] = emp
		}

		k := key{employee: iv.EmployeeID, day: generic.DayOf(iv.CheckIn, emp.Location())}
		total, ok := totals[k]
		if !ok {
			total = &DailyTotal{Employee: *emp, Day: k.day, WorkedHours: generic.ZeroHours()}
			totals[k] = total
		}
		total.WorkedHours = total.WorkedHours.Add(iv.WorkedHours)
	}

	out := make([]DailyTotal, 0, len(totals))
	for _, t := range totals {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Employee.ID != out[j].Employee.ID {
			return out[i].Employee.ID < out[j].Employee.ID
		}
		return out[i].Day.Before(out[j].Day)
	})
	return out, nil
}
