/*
Package scenario loads attendance fixtures from YAML into a store.

PURPOSE:
  Demo and test data for reconciliation: employees, working schedules,
  overtime rulesets, attendance intervals, schedule-change audit rows and
  pre-existing corrections, described in one YAML document per scenario.
  The same fixtures drive the HTTP demo (POST /api/scenarios/load), the
  batch binary (-seed) and end-to-end tests.

FIXTURE FORMAT:
  id: schedule-change
  name: Part-time until Tuesday
  description: ...
  since: 2025-12-05
  calendars:
    - id: cal-40h
      name: Standard 40 hours
      tz: UTC
      hours_per_day: 8
      weekdays: [monday, tuesday, wednesday, thursday, friday]
      slots: [[8, 12], [13, 17]]
  rulesets:
    - id: rs-office
      rules: [{sequence: 10, expected_hours: 2}]
  employees:
    - {id: emp-1, name: Ada, tz: UTC, calendar_id: cal-40h}
  attendances:
    - {id: att-1, employee_id: emp-1, check_in: 2025-12-08T08:00:00Z, check_out: 2025-12-08T12:00:00Z}
  schedule_changes:
    - {employee_id: emp-1, effective_on: 2025-12-09, previous_calendar_id: cal-30h}
  corrections:
    - {employee_id: emp-1, date: 2025-12-08, duration: -1}

HOW LOADING WORKS:
 1. Reset the store
 2. Calendars and rulesets through the factory documents
 3. Employees, attendances, schedule changes
 4. Existing corrections

NOTE:
  Loading resets the store. Only use in development/demo environments.

SEE ALSO:
  - factory/calendar.go: CalendarJSON / RulesetJSON
  - api/scenarios.go: HTTP handlers
*/
package scenario

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/generic"
)

//go:embed fixtures/*.yaml
var fixtures embed.FS

// Seeder is what a fixture is loaded into. Both store implementations
// satisfy it.
type Seeder interface {
	Reset(ctx context.Context) error
	PutEmployee(ctx context.Context, e attendance.Employee) error
	PutCalendar(ctx context.Context, c attendance.Calendar) error
	PutRuleset(ctx context.Context, rs attendance.Ruleset) error
	PutInterval(ctx context.Context, iv attendance.Interval) error
	PutScheduleChange(ctx context.Context, c attendance.ScheduleChange) error
	CreateCorrection(ctx context.Context, c attendance.Correction) error
}

// =============================================================================
// FIXTURE TYPES
// =============================================================================

// Info describes a scenario for listings.
type Info struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Since       string `json:"since" yaml:"since"`
}

type Fixture struct {
	Info `yaml:",inline"`

	Calendars       []CalendarFixture     `yaml:"calendars"`
	Rulesets        []factory.RulesetJSON `yaml:"rulesets"`
	Employees       []EmployeeFixture     `yaml:"employees"`
	Attendances     []AttendanceFixture   `yaml:"attendances"`
	ScheduleChanges []ChangeFixture       `yaml:"schedule_changes"`
	Corrections     []CorrectionFixture   `yaml:"corrections"`
}

// CalendarFixture is a calendar document plus a weekly shorthand: every
// slot in Slots is repeated on every day in Weekdays.
type CalendarFixture struct {
	factory.CalendarJSON `yaml:",inline"`

	Weekdays []string     `yaml:"weekdays"`
	Slots    [][2]float64 `yaml:"slots"`
}

type EmployeeFixture struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	TZ         string `yaml:"tz"`
	CalendarID string `yaml:"calendar_id"`
	ResourceID string `yaml:"resource_id"`
	RulesetID  string `yaml:"ruleset_id"`
}

type AttendanceFixture struct {
	ID                     string  `yaml:"id"`
	EmployeeID             string  `yaml:"employee_id"`
	CheckIn                string  `yaml:"check_in"`
	CheckOut               string  `yaml:"check_out"`
	OvertimeHours          float64 `yaml:"overtime_hours"`
	ValidatedOvertimeHours float64 `yaml:"validated_overtime_hours"`
}

type ChangeFixture struct {
	ID                 string `yaml:"id"`
	EmployeeID         string `yaml:"employee_id"`
	EffectiveOn        string `yaml:"effective_on"`
	PreviousCalendarID string `yaml:"previous_calendar_id"`
}

type CorrectionFixture struct {
	ID         string  `yaml:"id"`
	EmployeeID string  `yaml:"employee_id"`
	Date       string  `yaml:"date"`
	Duration   float64 `yaml:"duration"`
	Status     string  `yaml:"status"`
}

// =============================================================================
// CATALOG
// =============================================================================

// ErrScenarioNotFound is returned by Get and Load for unknown ids.
var ErrScenarioNotFound = errors.New("scenario not found")

// List returns the embedded scenarios ordered by id.
func List() ([]Info, error) {
	entries, err := fixtures.ReadDir("fixtures")
	if err != nil {
		return nil, err
	}
	var out []Info
	for _, entry := range entries {
		fx, err := read(entry.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, fx.Info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get returns one embedded scenario.
func Get(id string) (*Fixture, error) {
	all, err := fixtures.ReadDir("fixtures")
	if err != nil {
		return nil, err
	}
	for _, entry := range all {
		fx, err := read(entry.Name())
		if err != nil {
			return nil, err
		}
		if fx.ID == id {
			return fx, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrScenarioNotFound, id)
}

func read(name string) (*Fixture, error) {
	data, err := fixtures.ReadFile(path.Join("fixtures", name))
	if err != nil {
		return nil, err
	}
	fx, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if fx.ID == "" {
		fx.ID = strings.TrimSuffix(name, path.Ext(name))
	}
	return fx, nil
}

// Parse decodes a YAML fixture.
func Parse(data []byte) (*Fixture, error) {
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}
	return &fx, nil
}

// SinceTime returns the configured aggregation start, or the zero time.
func (fx *Fixture) SinceTime() (time.Time, error) {
	if fx.Since == "" {
		return time.Time{}, nil
	}
	tp, err := generic.ParseTimePoint(fx.Since)
	if err != nil {
		return time.Time{}, fmt.Errorf("scenario %s: since: %w", fx.ID, err)
	}
	return tp.Time, nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load resets seeder and loads the embedded scenario id into it.
func Load(ctx context.Context, seeder Seeder, id string) (*Fixture, error) {
	fx, err := Get(id)
	if err != nil {
		return nil, err
	}
	if err := Apply(ctx, seeder, fx); err != nil {
		return nil, err
	}
	return fx, nil
}

// Apply resets seeder and writes every record of fx.
func Apply(ctx context.Context, seeder Seeder, fx *Fixture) error {
	schedules := factory.NewScheduleFactory()

	if err := seeder.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	for _, cf := range fx.Calendars {
		cal, err := schedules.CalendarFromJSON(cf.expand())
		if err != nil {
			return err
		}
		if err := seeder.PutCalendar(ctx, *cal); err != nil {
			return err
		}
	}

	for _, rj := range fx.Rulesets {
		rs, err := schedules.RulesetFromJSON(rj)
		if err != nil {
			return err
		}
		if err := seeder.PutRuleset(ctx, *rs); err != nil {
			return err
		}
	}

	for _, ef := range fx.Employees {
		resourceID := ef.ResourceID
		if resourceID == "" {
			resourceID = "res-" + ef.ID
		}
		err := seeder.PutEmployee(ctx, attendance.Employee{
			ID:         attendance.EmployeeID(ef.ID),
			Name:       ef.Name,
			TZ:         ef.TZ,
			CalendarID: attendance.CalendarID(ef.CalendarID),
			ResourceID: resourceID,
			RulesetID:  attendance.RulesetID(ef.RulesetID),
		})
		if err != nil {
			return err
		}
	}

	for _, af := range fx.Attendances {
		iv, err := af.interval()
		if err != nil {
			return fmt.Errorf("scenario %s: %w", fx.ID, err)
		}
		if err := seeder.PutInterval(ctx, iv); err != nil {
			return err
		}
	}

	for _, cf := range fx.ScheduleChanges {
		effective, err := generic.ParseTimePoint(cf.EffectiveOn)
		if err != nil {
			return fmt.Errorf("scenario %s: schedule change: %w", fx.ID, err)
		}
		err = seeder.PutScheduleChange(ctx, attendance.ScheduleChange{
			ID:                 cf.ID,
			EmployeeID:         attendance.EmployeeID(cf.EmployeeID),
			EffectiveOn:        effective,
			PreviousCalendarID: attendance.CalendarID(cf.PreviousCalendarID),
		})
		if err != nil {
			return err
		}
	}

	for _, cf := range fx.Corrections {
		c, err := cf.correction()
		if err != nil {
			return fmt.Errorf("scenario %s: %w", fx.ID, err)
		}
		if err := seeder.CreateCorrection(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (cf CalendarFixture) expand() factory.CalendarJSON {
	cj := cf.CalendarJSON
	for _, wd := range cf.Weekdays {
		for _, slot := range cf.Slots {
			cj.Attendances = append(cj.Attendances, factory.WorkSlotJSON{Weekday: wd, HourFrom: slot[0], HourTo: slot[1]})
		}
	}
	return cj
}

func (af AttendanceFixture) interval() (attendance.Interval, error) {
	checkIn, err := time.Parse(time.RFC3339, af.CheckIn)
	if err != nil {
		return attendance.Interval{}, fmt.Errorf("attendance %s: check_in: %w", af.ID, err)
	}
	iv := attendance.Interval{
		ID:                     attendance.IntervalID(af.ID),
		EmployeeID:             attendance.EmployeeID(af.EmployeeID),
		CheckIn:                checkIn,
		WorkedHours:            generic.ZeroHours(),
		OvertimeHours:          generic.Hours(af.OvertimeHours),
		ValidatedOvertimeHours: generic.Hours(af.ValidatedOvertimeHours),
	}
	if af.CheckOut != "" {
		checkOut, err := time.Parse(time.RFC3339, af.CheckOut)
		if err != nil {
			return attendance.Interval{}, fmt.Errorf("attendance %s: check_out: %w", af.ID, err)
		}
		if checkOut.Before(checkIn) {
			return attendance.Interval{}, fmt.Errorf("attendance %s: check_out before check_in", af.ID)
		}
		iv.CheckOut = &checkOut
		iv.WorkedHours = generic.HoursOf(checkOut.Sub(checkIn))
	}
	return iv, nil
}

func (cf CorrectionFixture) correction() (attendance.Correction, error) {
	date, err := generic.ParseTimePoint(cf.Date)
	if err != nil {
		return attendance.Correction{}, fmt.Errorf("correction %s: date: %w", cf.ID, err)
	}
	id := cf.ID
	if id == "" {
		id = uuid.NewString()
	}
	status := attendance.CorrectionStatus(cf.Status)
	if status == "" {
		status = attendance.StatusApproved
	}
	return attendance.Correction{
		ID:             attendance.CorrectionID(id),
		EmployeeID:     attendance.EmployeeID(cf.EmployeeID),
		Date:           date,
		Duration:       generic.Hours(cf.Duration),
		ManualDuration: generic.Hours(cf.Duration),
		Compensable:    true,
		Status:         status,
		TimeStart:      date.Time,
		TimeStop:       date.Time,
		Kind:           attendance.KindAbsenceDeficit,
	}, nil
}
