/*
Package factory provides JSON to Go conversion for working schedules and
overtime rulesets.

PURPOSE:
  Calendars and rulesets are configuration owned by HR. They are stored as
  JSON documents (config_json columns) and edited through the admin API,
  so the factory is the single place that turns those documents into
  attendance.Calendar / attendance.Ruleset and back.

CALENDAR JSON:
  {
    "id": "cal-40h",
    "name": "Standard 40 hours",
    "tz": "Europe/Brussels",
    "hours_per_day": 8,
    "attendances": [
      {"weekday": "monday", "hour_from": 8, "hour_to": 12},
      {"weekday": "monday", "hour_from": 13, "hour_to": 17}
    ],
    "leaves": [
      {"from": "2025-12-25T00:00:00Z", "to": "2025-12-26T00:00:00Z"}
    ]
  }

RULESET JSON:
  {
    "id": "rs-default",
    "name": "Default overtime rules",
    "rules": [
      {"sequence": 10, "base_off": "quantity", "expected_hours": 4}
    ]
  }

DEFAULTS:
  - Missing base_off means "quantity"
  - Unknown weekdays and inverted slots are rejected

SEE ALSO:
  - attendance/calendar.go: Calendar.WorkIntervals
  - attendance/threshold.go: Ruleset.FloorRule
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// DOCUMENT SCHEMA TYPES (JSON config_json, YAML fixtures)
// =============================================================================

type CalendarJSON struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	TZ          string         `json:"tz,omitempty" yaml:"tz,omitempty"`
	HoursPerDay float64        `json:"hours_per_day" yaml:"hours_per_day"`
	Attendances []WorkSlotJSON `json:"attendances,omitempty" yaml:"attendances,omitempty"`
	Leaves      []LeaveJSON    `json:"leaves,omitempty" yaml:"leaves,omitempty"`
}

type WorkSlotJSON struct {
	Weekday  string  `json:"weekday" yaml:"weekday"`
	HourFrom float64 `json:"hour_from" yaml:"hour_from"`
	HourTo   float64 `json:"hour_to" yaml:"hour_to"`
}

// LeaveJSON closes calendar time. Without resource_id it applies to everyone.
type LeaveJSON struct {
	From       string `json:"from" yaml:"from"`
	To         string `json:"to" yaml:"to"`
	ResourceID string `json:"resource_id,omitempty" yaml:"resource_id,omitempty"`
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
}

type RulesetJSON struct {
	ID    string     `json:"id" yaml:"id"`
	Name  string     `json:"name" yaml:"name"`
	Rules []RuleJSON `json:"rules" yaml:"rules"`
}

type RuleJSON struct {
	Sequence                  int     `json:"sequence" yaml:"sequence"`
	BaseOff                   string  `json:"base_off,omitempty" yaml:"base_off,omitempty"`
	ExpectedHoursFromContract bool    `json:"expected_hours_from_contract,omitempty" yaml:"expected_hours_from_contract,omitempty"`
	ExpectedHours             float64 `json:"expected_hours,omitempty" yaml:"expected_hours,omitempty"`
}

// =============================================================================
// SCHEDULE FACTORY
// =============================================================================

// ScheduleFactory converts calendar and ruleset documents.
type ScheduleFactory struct{}

func NewScheduleFactory() *ScheduleFactory {
	return &ScheduleFactory{}
}

// ParseCalendar parses a calendar document.
func (f *ScheduleFactory) ParseCalendar(jsonStr string) (*attendance.Calendar, error) {
	var cj CalendarJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return nil, fmt.Errorf("failed to parse calendar JSON: %w", err)
	}
	return f.CalendarFromJSON(cj)
}

func (f *ScheduleFactory) CalendarFromJSON(cj CalendarJSON) (*attendance.Calendar, error) {
	if cj.ID == "" {
		return nil, fmt.Errorf("calendar without id")
	}
	if cj.HoursPerDay < 0 {
		return nil, fmt.Errorf("calendar %s: negative hours_per_day", cj.ID)
	}

	cal := &attendance.Calendar{
		ID:          attendance.CalendarID(cj.ID),
		Name:        cj.Name,
		TZ:          cj.TZ,
		HoursPerDay: generic.Hours(cj.HoursPerDay),
	}

	for _, sj := range cj.Attendances {
		wd, err := parseWeekday(sj.Weekday)
		if err != nil {
			return nil, fmt.Errorf("calendar %s: %w", cj.ID, err)
		}
		if sj.HourFrom < 0 || sj.HourTo > 24 || sj.HourTo <= sj.HourFrom {
			return nil, fmt.Errorf("calendar %s: invalid slot %v-%v on %s", cj.ID, sj.HourFrom, sj.HourTo, sj.Weekday)
		}
		cal.Slots = append(cal.Slots, attendance.WorkSlot{Weekday: wd, HourFrom: sj.HourFrom, HourTo: sj.HourTo})
	}

	for _, lj := range cj.Leaves {
		from, err := time.Parse(time.RFC3339, lj.From)
		if err != nil {
			return nil, fmt.Errorf("calendar %s: leave start: %w", cj.ID, err)
		}
		to, err := time.Parse(time.RFC3339, lj.To)
		if err != nil {
			return nil, fmt.Errorf("calendar %s: leave end: %w", cj.ID, err)
		}
		cal.Leaves = append(cal.Leaves, attendance.Leave{From: from, To: to, ResourceID: lj.ResourceID})
	}

	return cal, nil
}

// CalendarToJSON converts a Calendar back to its document form.
func (f *ScheduleFactory) CalendarToJSON(cal attendance.Calendar) CalendarJSON {
	cj := CalendarJSON{
		ID:          string(cal.ID),
		Name:        cal.Name,
		TZ:          cal.TZ,
		HoursPerDay: cal.HoursPerDay.Value.InexactFloat64(),
	}
	for _, s := range cal.Slots {
		cj.Attendances = append(cj.Attendances, WorkSlotJSON{
			Weekday:  strings.ToLower(s.Weekday.String()),
			HourFrom: s.HourFrom,
			HourTo:   s.HourTo,
		})
	}
	for _, l := range cal.Leaves {
		cj.Leaves = append(cj.Leaves, LeaveJSON{
			From:       l.From.UTC().Format(time.RFC3339),
			To:         l.To.UTC().Format(time.RFC3339),
			ResourceID: l.ResourceID,
		})
	}
	return cj
}

func (f *ScheduleFactory) MarshalCalendar(cal attendance.Calendar) (string, error) {
	b, err := json.Marshal(f.CalendarToJSON(cal))
	if err != nil {
		return "", fmt.Errorf("failed to marshal calendar %s: %w", cal.ID, err)
	}
	return string(b), nil
}

// ParseRuleset parses a ruleset document.
func (f *ScheduleFactory) ParseRuleset(jsonStr string) (*attendance.Ruleset, error) {
	var rj RulesetJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return nil, fmt.Errorf("failed to parse ruleset JSON: %w", err)
	}
	return f.RulesetFromJSON(rj)
}

func (f *ScheduleFactory) RulesetFromJSON(rj RulesetJSON) (*attendance.Ruleset, error) {
	if rj.ID == "" {
		return nil, fmt.Errorf("ruleset without id")
	}
	rs := &attendance.Ruleset{ID: attendance.RulesetID(rj.ID), Name: rj.Name}
	for _, r := range rj.Rules {
		base, err := parseRuleBase(r.BaseOff)
		if err != nil {
			return nil, fmt.Errorf("ruleset %s: %w", rj.ID, err)
		}
		rs.Rules = append(rs.Rules, attendance.ThresholdRule{
			Sequence:                  r.Sequence,
			BaseOff:                   base,
			ExpectedHoursFromContract: r.ExpectedHoursFromContract,
			ExpectedHours:             generic.Hours(r.ExpectedHours),
		})
	}
	return rs, nil
}

func (f *ScheduleFactory) RulesetToJSON(rs attendance.Ruleset) RulesetJSON {
	rj := RulesetJSON{ID: string(rs.ID), Name: rs.Name, Rules: []RuleJSON{}}
	for _, r := range rs.Rules {
		rj.Rules = append(rj.Rules, RuleJSON{
			Sequence:                  r.Sequence,
			BaseOff:                   string(r.BaseOff),
			ExpectedHoursFromContract: r.ExpectedHoursFromContract,
			ExpectedHours:             r.ExpectedHours.Value.InexactFloat64(),
		})
	}
	return rj
}

func (f *ScheduleFactory) MarshalRuleset(rs attendance.Ruleset) (string, error) {
	b, err := json.Marshal(f.RulesetToJSON(rs))
	if err != nil {
		return "", fmt.Errorf("failed to marshal ruleset %s: %w", rs.ID, err)
	}
	return string(b), nil
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseWeekday(s string) (time.Weekday, error) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", s)
	}
	return wd, nil
}

func parseRuleBase(s string) (attendance.RuleBase, error) {
	switch s {
	case "", "quantity":
		return attendance.RuleBaseQuantity, nil
	case "timing":
		return attendance.RuleBaseTiming, nil
	default:
		return "", fmt.Errorf("unknown rule base %q", s)
	}
}
