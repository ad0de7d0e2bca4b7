/*
store.go - Collaborator interfaces consumed by the reconciliation pipeline

PURPOSE:
  Everything reconciliation reads or writes goes through these interfaces.
  Attendance intervals, schedule audit events, calendars, rulesets and the
  employee directory are owned elsewhere and consumed read-only. The
  correction store is the only place this engine writes to.

KEY INTERFACES:
  AttendanceLedger:    Raw intervals + recompute of derived overtime fields
  ScheduleAuditSource: Schedule reassignment audit trail
  CalendarService:     Working schedules
  RulesetService:      Overtime threshold rules
  EmployeeDirectory:   Employee zone / schedule / ruleset assignment
  CorrectionStore:     Find / create / update correction entries
  RunStore:            Reconciliation run history
  TxStore:             Atomic unit for the commit step

ATOMICITY:
  WithTx hands the callback a Tx bound to one database transaction. If the
  callback returns an error nothing it wrote is kept. The per-day
  read-then-write of CorrectionUpserter always runs inside that Tx.

IMPLEMENTATIONS:
  - store/memory: In-memory, snapshot + rollback
  - store/sqlstore: SQLite / PostgreSQL

SEE ALSO:
  - unitofwork.go: Stages writes and flushes them through WithTx
*/
package attendance

import (
	"context"
	"time"

	"github.com/warp/attendance-engine/generic"
)

// AttendanceLedger is the external clock-in/clock-out ledger.
type AttendanceLedger interface {
	// CompletedIntervals returns intervals with both endpoints set and
	// CheckIn >= since.
	CompletedIntervals(ctx context.Context, since time.Time) ([]Interval, error)

	// IntervalsBetween returns every interval of the employee, complete or
	// not, with CheckIn in [from, to).
	IntervalsBetween(ctx context.Context, employeeID EmployeeID, from, to time.Time) ([]Interval, error)

	// RecomputeOvertime refreshes OvertimeHours and ValidatedOvertimeHours of
	// the given intervals from the corrections anchored to them.
	RecomputeOvertime(ctx context.Context, ids []IntervalID) error
}

type ScheduleAuditSource interface {
	// ScheduleChanges returns every recorded schedule reassignment.
	ScheduleChanges(ctx context.Context) ([]ScheduleChange, error)
}

type CalendarService interface {
	// Calendar returns generic.ErrCalendarNotFound for unknown ids.
	Calendar(ctx context.Context, id CalendarID) (*Calendar, error)
}

type RulesetService interface {
	// Ruleset returns nil, nil when no ruleset has that id.
	Ruleset(ctx context.Context, id RulesetID) (*Ruleset, error)
}

type EmployeeDirectory interface {
	// Employee returns generic.ErrEmployeeNotFound for unknown ids.
	Employee(ctx context.Context, id EmployeeID) (*Employee, error)
}

type CorrectionStore interface {
	// FindCorrection returns nil, nil when no correction exists for the key.
	FindCorrection(ctx context.Context, employeeID EmployeeID, day generic.TimePoint) (*Correction, error)
	CreateCorrection(ctx context.Context, c Correction) error
	UpdateCorrection(ctx context.Context, c Correction) error
	ListCorrections(ctx context.Context, filter CorrectionFilter) ([]Correction, error)
}

type RunStore interface {
	SaveRun(ctx context.Context, run Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// Tx is the write side available inside one transaction.
type Tx interface {
	AttendanceLedger
	CorrectionStore
}

// TxStore runs fn inside a transaction: committed when fn returns nil,
// rolled back otherwise.
type TxStore interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Store is everything the reconciliation runner needs.
type Store interface {
	AttendanceLedger
	ScheduleAuditSource
	CalendarService
	RulesetService
	EmployeeDirectory
	CorrectionStore
	RunStore
	TxStore
}
