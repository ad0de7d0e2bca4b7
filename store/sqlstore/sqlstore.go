/*
Package sqlstore provides a SQL-backed implementation of attendance.Store.

PURPOSE:
  Persists everything reconciliation reads and writes: employees, working
  schedules, overtime rulesets, attendance intervals, schedule-change audit
  rows, correction entries and run history. The same queries serve SQLite
  (local runs, tests) and PostgreSQL (production).

DIALECTS:
  sqlite:   mattn/go-sqlite3, opened in WAL mode, one connection
  postgres: jackc/pgx/v5 through database/sql ("pgx" driver)

  Queries are written with "?" placeholders and rebound to $n for
  PostgreSQL. Both connections are wrapped by otelsql so every statement
  shows up as a span under the reconciliation run.

KEY TABLES:
  attendances:       Clock-in/clock-out intervals, overtime columns recomputed
  schedule_changes:  Audit rows "before effective_on, employee had calendar X"
  calendars:         Working schedules stored as config_json (see factory)
  rulesets:          Overtime rulesets stored as config_json
  corrections:       Deficit corrections, UNIQUE(employee_id, date)
  reconciliation_runs: One row per run

TIMESTAMPS:
  Stored as TEXT in UTC with a fixed-width layout so that string comparison
  orders them chronologically in both dialects. Hours are decimal TEXT.

CONCURRENCY:
  Uses sync.RWMutex like the in-memory store. Inside WithTx every query goes
  through the *sql.Tx, never the pool.

USAGE:
  store, err := sqlstore.NewSQLite("./data/attendance.db")
  if err != nil {
      log.Fatal().Err(err).Msg("open store")
  }
  defer store.Close()

SEE ALSO:
  - attendance/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
  - factory/calendar.go: config_json documents
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/generic"
)

// Dialect selects placeholder style and driver.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// timestampLayout is fixed width so TEXT comparison is chronological.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements attendance.Store on database/sql.
type Store struct {
	db        *sql.DB
	dialect   Dialect
	schedules *factory.ScheduleFactory
	mu        sync.RWMutex
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewSQLite opens a SQLite database at path. Use ":memory:" for tests.
func NewSQLite(path string) (*Store, error) {
	db, err := otelsql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000",
		otelsql.WithAttributes(semconv.DBSystemSqlite))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A ":memory:" database lives and dies with its connection.
	db.SetMaxOpenConns(1)

	return newStore(context.Background(), db, DialectSQLite)
}

// NewPostgres connects to PostgreSQL and verifies the connection.
func NewPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := otelsql.Open("pgx", dsn,
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
		otelsql.WithSQLCommenter(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return newStore(ctx, db, DialectPostgres)
}

// Open picks the dialect by driver name (sqlite or postgres).
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch Dialect(driver) {
	case DialectSQLite, "sqlite3":
		return NewSQLite(dsn)
	case DialectPostgres, "pgx":
		return NewPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func newStore(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{db: db, dialect: dialect, schedules: factory.NewScheduleFactory()}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		tz TEXT NOT NULL DEFAULT '',
		calendar_id TEXT NOT NULL DEFAULT '',
		resource_id TEXT NOT NULL DEFAULT '',
		ruleset_id TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS calendars (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		config_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rulesets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		config_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS attendances (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		check_in TEXT NOT NULL,
		check_out TEXT,
		worked_hours TEXT NOT NULL DEFAULT '0',
		overtime_hours TEXT NOT NULL DEFAULT '0',
		validated_overtime_hours TEXT NOT NULL DEFAULT '0'
	);

	CREATE INDEX IF NOT EXISTS idx_attendances_check_in
		ON attendances(check_in);
	CREATE INDEX IF NOT EXISTS idx_attendances_employee_check_in
		ON attendances(employee_id, check_in);

	CREATE TABLE IF NOT EXISTS schedule_changes (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		effective_on TEXT NOT NULL,
		previous_calendar_id TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS corrections (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		duration TEXT NOT NULL,
		manual_duration TEXT NOT NULL,
		compensable INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		time_start TEXT NOT NULL,
		time_stop TEXT NOT NULL,
		kind TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(employee_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_corrections_anchor
		ON corrections(employee_id, time_start);

	CREATE TABLE IF NOT EXISTS reconciliation_runs (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		since TEXT NOT NULL,
		started_at TEXT NOT NULL,
		completed_at TEXT NOT NULL,
		status TEXT NOT NULL,
		applied INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		report TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT ''
	)
	`

	// pgx does not accept several statements with arguments in one Exec;
	// run them one by one for both dialects.
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites "?" placeholders to "$1, $2..." for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// =============================================================================
// SEEDING (scenario.Seeder)
// =============================================================================

func (s *Store) PutEmployee(ctx context.Context, e attendance.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (id, name, tz, calendar_id, resource_id, ruleset_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			tz = excluded.tz,
			calendar_id = excluded.calendar_id,
			resource_id = excluded.resource_id,
			ruleset_id = excluded.ruleset_id
	`
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		string(e.ID), e.Name, e.TZ, string(e.CalendarID), e.ResourceID, string(e.RulesetID))
	if err != nil {
		return fmt.Errorf("failed to save employee %s: %w", e.ID, err)
	}
	return nil
}

func (s *Store) PutCalendar(ctx context.Context, c attendance.Calendar) error {
	doc, err := s.schedules.MarshalCalendar(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO calendars (id, name, config_json) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, config_json = excluded.config_json
	`
	if _, err := s.db.ExecContext(ctx, s.rebind(query), string(c.ID), c.Name, doc); err != nil {
		return fmt.Errorf("failed to save calendar %s: %w", c.ID, err)
	}
	return nil
}

func (s *Store) PutRuleset(ctx context.Context, rs attendance.Ruleset) error {
	doc, err := s.schedules.MarshalRuleset(rs)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO rulesets (id, name, config_json) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, config_json = excluded.config_json
	`
	if _, err := s.db.ExecContext(ctx, s.rebind(query), string(rs.ID), rs.Name, doc); err != nil {
		return fmt.Errorf("failed to save ruleset %s: %w", rs.ID, err)
	}
	return nil
}

func (s *Store) PutInterval(ctx context.Context, iv attendance.Interval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var checkOut sql.NullString
	if iv.CheckOut != nil {
		checkOut = sql.NullString{String: formatTimestamp(*iv.CheckOut), Valid: true}
	}

	query := `
		INSERT INTO attendances (id, employee_id, check_in, check_out, worked_hours,
			overtime_hours, validated_overtime_hours)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			employee_id = excluded.employee_id,
			check_in = excluded.check_in,
			check_out = excluded.check_out,
			worked_hours = excluded.worked_hours,
			overtime_hours = excluded.overtime_hours,
			validated_overtime_hours = excluded.validated_overtime_hours
	`
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		string(iv.ID), string(iv.EmployeeID), formatTimestamp(iv.CheckIn), checkOut,
		iv.WorkedHours.Value.String(), iv.OvertimeHours.Value.String(), iv.ValidatedOvertimeHours.Value.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to save attendance %s: %w", iv.ID, err)
	}
	return nil
}

// PutScheduleChange records an audit row. An empty ID gets a fresh uuid.
func (s *Store) PutScheduleChange(ctx context.Context, c attendance.ScheduleChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	query := `
		INSERT INTO schedule_changes (id, employee_id, effective_on, previous_calendar_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			employee_id = excluded.employee_id,
			effective_on = excluded.effective_on,
			previous_calendar_id = excluded.previous_calendar_id
	`
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		c.ID, string(c.EmployeeID), c.EffectiveOn.String(), string(c.PreviousCalendarID))
	if err != nil {
		return fmt.Errorf("failed to save schedule change %s: %w", c.ID, err)
	}
	return nil
}

// =============================================================================
// READ-ONLY COLLABORATORS
// =============================================================================

func (s *Store) Employee(ctx context.Context, id attendance.EmployeeID) (*attendance.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, name, tz, calendar_id, resource_id, ruleset_id FROM employees WHERE id = ?`

	var (
		e                            attendance.Employee
		empID, calendarID, rulesetID string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(query), string(id)).
		Scan(&empID, &e.Name, &e.TZ, &calendarID, &e.ResourceID, &rulesetID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", generic.ErrEmployeeNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load employee %s: %w", id, err)
	}
	e.ID = attendance.EmployeeID(empID)
	e.CalendarID = attendance.CalendarID(calendarID)
	e.RulesetID = attendance.RulesetID(rulesetID)
	return &e, nil
}

func (s *Store) Calendar(ctx context.Context, id attendance.CalendarID) (*attendance.Calendar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT config_json FROM calendars WHERE id = ?`), string(id)).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", generic.ErrCalendarNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar %s: %w", id, err)
	}
	return s.schedules.ParseCalendar(doc)
}

// Ruleset returns nil, nil when the ruleset does not exist.
func (s *Store) Ruleset(ctx context.Context, id attendance.RulesetID) (*attendance.Ruleset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT config_json FROM rulesets WHERE id = ?`), string(id)).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ruleset %s: %w", id, err)
	}
	return s.schedules.ParseRuleset(doc)
}

func (s *Store) ScheduleChanges(ctx context.Context) ([]attendance.ScheduleChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, employee_id, effective_on, previous_calendar_id
		FROM schedule_changes
		ORDER BY employee_id, effective_on, id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule changes: %w", err)
	}
	defer rows.Close()

	var changes []attendance.ScheduleChange
	for rows.Next() {
		var (
			c                               attendance.ScheduleChange
			employeeID, effectiveOn, prevID string
		)
		if err := rows.Scan(&c.ID, &employeeID, &effectiveOn, &prevID); err != nil {
			return nil, fmt.Errorf("failed to scan schedule change: %w", err)
		}
		c.EmployeeID = attendance.EmployeeID(employeeID)
		c.PreviousCalendarID = attendance.CalendarID(prevID)
		if c.EffectiveOn, err = generic.ParseTimePoint(effectiveOn); err != nil {
			return nil, fmt.Errorf("schedule change %s: %w", c.ID, err)
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// =============================================================================
// ATTENDANCE LEDGER
// =============================================================================

const attendanceColumns = `id, employee_id, check_in, check_out, worked_hours, overtime_hours, validated_overtime_hours`

func (s *Store) CompletedIntervals(ctx context.Context, since time.Time) ([]attendance.Interval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completedIntervals(ctx, s.db, since)
}

func (s *Store) IntervalsBetween(ctx context.Context, employeeID attendance.EmployeeID, from, to time.Time) ([]attendance.Interval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.intervalsBetween(ctx, s.db, employeeID, from, to)
}

func (s *Store) RecomputeOvertime(ctx context.Context, ids []attendance.IntervalID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recompute(ctx, s.db, ids)
}

// Interval returns one interval by id, nil when absent.
func (s *Store) Interval(ctx context.Context, id attendance.IntervalID) (*attendance.Interval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ivs, err := s.queryIntervals(ctx, s.db, `SELECT `+attendanceColumns+` FROM attendances WHERE id = ?`, string(id))
	if err != nil || len(ivs) == 0 {
		return nil, err
	}
	return &ivs[0], nil
}

func (s *Store) completedIntervals(ctx context.Context, q querier, since time.Time) ([]attendance.Interval, error) {
	query := `
		SELECT ` + attendanceColumns + `
		FROM attendances
		WHERE check_out IS NOT NULL AND check_in >= ?
		ORDER BY check_in, id
	`
	return s.queryIntervals(ctx, q, query, formatTimestamp(since))
}

func (s *Store) intervalsBetween(ctx context.Context, q querier, employeeID attendance.EmployeeID, from, to time.Time) ([]attendance.Interval, error) {
	query := `
		SELECT ` + attendanceColumns + `
		FROM attendances
		WHERE employee_id = ? AND check_in >= ? AND check_in < ?
		ORDER BY check_in, id
	`
	return s.queryIntervals(ctx, q, query, string(employeeID), formatTimestamp(from), formatTimestamp(to))
}

// recompute sets overtime_hours and validated_overtime_hours from the
// approved corrections anchored at each interval's check-in.
func (s *Store) recompute(ctx context.Context, q querier, ids []attendance.IntervalID) error {
	for _, id := range ids {
		var employeeID, checkIn string
		err := q.QueryRowContext(ctx, s.rebind(`SELECT employee_id, check_in FROM attendances WHERE id = ?`), string(id)).
			Scan(&employeeID, &checkIn)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("recompute: attendance %s not found", id)
		}
		if err != nil {
			return fmt.Errorf("recompute: load attendance %s: %w", id, err)
		}

		rows, err := q.QueryContext(ctx, s.rebind(`
			SELECT duration, manual_duration FROM corrections
			WHERE employee_id = ? AND status = ? AND time_start = ?
		`), employeeID, string(attendance.StatusApproved), checkIn)
		if err != nil {
			return fmt.Errorf("recompute: load corrections for %s: %w", id, err)
		}
		overtime, validated := generic.ZeroHours(), generic.ZeroHours()
		for rows.Next() {
			var duration, manual string
			if err := rows.Scan(&duration, &manual); err != nil {
				rows.Close()
				return fmt.Errorf("recompute: scan correction: %w", err)
			}
			overtime = overtime.Add(parseHours(duration))
			validated = validated.Add(parseHours(manual))
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		_, err = q.ExecContext(ctx, s.rebind(`
			UPDATE attendances SET overtime_hours = ?, validated_overtime_hours = ? WHERE id = ?
		`), overtime.Value.String(), validated.Value.String(), string(id))
		if err != nil {
			return fmt.Errorf("recompute: update attendance %s: %w", id, err)
		}
	}
	return nil
}

func (s *Store) queryIntervals(ctx context.Context, q querier, query string, args ...any) ([]attendance.Interval, error) {
	rows, err := q.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendances: %w", err)
	}
	defer rows.Close()

	var out []attendance.Interval
	for rows.Next() {
		iv, err := scanInterval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

func scanInterval(rows *sql.Rows) (attendance.Interval, error) {
	var (
		iv                          attendance.Interval
		id, employeeID, checkIn     string
		checkOut                    sql.NullString
		worked, overtime, validated string
	)
	if err := rows.Scan(&id, &employeeID, &checkIn, &checkOut, &worked, &overtime, &validated); err != nil {
		return iv, fmt.Errorf("failed to scan attendance: %w", err)
	}

	iv.ID = attendance.IntervalID(id)
	iv.EmployeeID = attendance.EmployeeID(employeeID)
	iv.CheckIn = parseTimestamp(checkIn)
	if checkOut.Valid {
		t := parseTimestamp(checkOut.String)
		iv.CheckOut = &t
	}
	iv.WorkedHours = parseHours(worked)
	iv.OvertimeHours = parseHours(overtime)
	iv.ValidatedOvertimeHours = parseHours(validated)
	return iv, nil
}

// =============================================================================
// CORRECTIONS
// =============================================================================

const correctionColumns = `id, employee_id, date, duration, manual_duration, compensable, status, time_start, time_stop, kind`

func (s *Store) FindCorrection(ctx context.Context, employeeID attendance.EmployeeID, day generic.TimePoint) (*attendance.Correction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findCorrection(ctx, s.db, employeeID, day)
}

func (s *Store) CreateCorrection(ctx context.Context, c attendance.Correction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createCorrection(ctx, s.db, c)
}

func (s *Store) UpdateCorrection(ctx context.Context, c attendance.Correction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateCorrection(ctx, s.db, c)
}

func (s *Store) ListCorrections(ctx context.Context, filter attendance.CorrectionFilter) ([]attendance.Correction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCorrections(ctx, s.db, filter)
}

func (s *Store) findCorrection(ctx context.Context, q querier, employeeID attendance.EmployeeID, day generic.TimePoint) (*attendance.Correction, error) {
	query := `SELECT ` + correctionColumns + ` FROM corrections WHERE employee_id = ? AND date = ?`
	found, err := s.queryCorrections(ctx, q, query, string(employeeID), day.String())
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return &found[0], nil
}

func (s *Store) createCorrection(ctx context.Context, q querier, c attendance.Correction) error {
	now := formatTimestamp(time.Now())
	query := `
		INSERT INTO corrections (` + correctionColumns + `, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, s.rebind(query),
		string(c.ID), string(c.EmployeeID), c.Date.String(),
		c.Duration.Value.String(), c.ManualDuration.Value.String(), boolToInt(c.Compensable),
		string(c.Status), formatTimestamp(c.TimeStart), formatTimestamp(c.TimeStop), string(c.Kind),
		now, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s on %s", generic.ErrDuplicateCorrection, c.EmployeeID, c.Date)
		}
		return fmt.Errorf("failed to create correction: %w", err)
	}
	return nil
}

func (s *Store) updateCorrection(ctx context.Context, q querier, c attendance.Correction) error {
	query := `
		UPDATE corrections SET
			duration = ?, manual_duration = ?, compensable = ?, status = ?,
			time_start = ?, time_stop = ?, kind = ?, updated_at = ?
		WHERE id = ? AND employee_id = ? AND date = ?
	`
	res, err := q.ExecContext(ctx, s.rebind(query),
		c.Duration.Value.String(), c.ManualDuration.Value.String(), boolToInt(c.Compensable), string(c.Status),
		formatTimestamp(c.TimeStart), formatTimestamp(c.TimeStop), string(c.Kind), formatTimestamp(time.Now()),
		string(c.ID), string(c.EmployeeID), c.Date.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update correction %s: %w", c.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update correction %s: %w", c.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", generic.ErrCorrectionNotFound, c.ID)
	}
	return nil
}

func (s *Store) listCorrections(ctx context.Context, q querier, filter attendance.CorrectionFilter) ([]attendance.Correction, error) {
	var (
		where []string
		args  []any
	)
	if filter.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, string(filter.EmployeeID))
	}
	if filter.From != nil {
		where = append(where, "date >= ?")
		args = append(args, filter.From.String())
	}
	if filter.To != nil {
		where = append(where, "date <= ?")
		args = append(args, filter.To.String())
	}

	query := `SELECT ` + correctionColumns + ` FROM corrections`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY employee_id, date`
	return s.queryCorrections(ctx, q, query, args...)
}

func (s *Store) queryCorrections(ctx context.Context, q querier, query string, args ...any) ([]attendance.Correction, error) {
	rows, err := q.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query corrections: %w", err)
	}
	defer rows.Close()

	var out []attendance.Correction
	for rows.Next() {
		var (
			c                                     attendance.Correction
			id, employeeID, date, status, kind    string
			duration, manual, timeStart, timeStop string
			compensable                           int
		)
		if err := rows.Scan(&id, &employeeID, &date, &duration, &manual, &compensable,
			&status, &timeStart, &timeStop, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan correction: %w", err)
		}
		c.ID = attendance.CorrectionID(id)
		c.EmployeeID = attendance.EmployeeID(employeeID)
		if c.Date, err = generic.ParseTimePoint(date); err != nil {
			return nil, fmt.Errorf("correction %s: %w", id, err)
		}
		c.Duration = parseHours(duration)
		c.ManualDuration = parseHours(manual)
		c.Compensable = compensable != 0
		c.Status = attendance.CorrectionStatus(status)
		c.TimeStart = parseTimestamp(timeStart)
		c.TimeStop = parseTimestamp(timeStop)
		c.Kind = attendance.CorrectionKind(kind)
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// RUN HISTORY
// =============================================================================

func (s *Store) SaveRun(ctx context.Context, r attendance.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO reconciliation_runs (id, mode, since, started_at, completed_at,
			status, applied, skipped, report, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			completed_at = excluded.completed_at,
			status = excluded.status,
			applied = excluded.applied,
			skipped = excluded.skipped,
			report = excluded.report,
			error = excluded.error
	`
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		string(r.ID), string(r.Mode), r.Since.String(),
		formatTimestamp(r.StartedAt), formatTimestamp(r.CompletedAt),
		string(r.Status), r.Applied, r.Skipped, r.Report, r.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", r.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]attendance.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, mode, since, started_at, completed_at, status, applied, skipped, report, error
		FROM reconciliation_runs
		ORDER BY started_at DESC, id DESC
	`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []attendance.Run
	for rows.Next() {
		var (
			r                                               attendance.Run
			id, mode, since, startedAt, completedAt, status string
		)
		if err := rows.Scan(&id, &mode, &since, &startedAt, &completedAt, &status,
			&r.Applied, &r.Skipped, &r.Report, &r.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.ID = attendance.RunID(id)
		r.Mode = attendance.RunMode(mode)
		r.Status = attendance.RunStatus(status)
		r.Since, _ = generic.ParseTimePoint(since)
		r.StartedAt = parseTimestamp(startedAt)
		r.CompletedAt = parseTimestamp(completedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (attendance.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(attendance.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txView{tx: sqlTx, parent: s}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type txView struct {
	tx     *sql.Tx
	parent *Store
}

func (tv *txView) CompletedIntervals(ctx context.Context, since time.Time) ([]attendance.Interval, error) {
	return tv.parent.completedIntervals(ctx, tv.tx, since)
}

func (tv *txView) IntervalsBetween(ctx context.Context, employeeID attendance.EmployeeID, from, to time.Time) ([]attendance.Interval, error) {
	return tv.parent.intervalsBetween(ctx, tv.tx, employeeID, from, to)
}

func (tv *txView) RecomputeOvertime(ctx context.Context, ids []attendance.IntervalID) error {
	return tv.parent.recompute(ctx, tv.tx, ids)
}

func (tv *txView) FindCorrection(ctx context.Context, employeeID attendance.EmployeeID, day generic.TimePoint) (*attendance.Correction, error) {
	return tv.parent.findCorrection(ctx, tv.tx, employeeID, day)
}

func (tv *txView) CreateCorrection(ctx context.Context, c attendance.Correction) error {
	return tv.parent.createCorrection(ctx, tv.tx, c)
}

func (tv *txView) UpdateCorrection(ctx context.Context, c attendance.Correction) error {
	return tv.parent.updateCorrection(ctx, tv.tx, c)
}

func (tv *txView) ListCorrections(ctx context.Context, filter attendance.CorrectionFilter) ([]attendance.Correction, error) {
	return tv.parent.listCorrections(ctx, tv.tx, filter)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"corrections", "attendances", "schedule_changes", "reconciliation_runs", "employees", "calendars", "rulesets"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) time.Time {
	t, _ := time.Parse(timestampLayout, s)
	return t
}

func parseHours(value string) generic.Amount {
	return generic.ParseAmount(value, generic.UnitHours)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

var (
	_ attendance.Store = (*Store)(nil)
	_ attendance.Tx    = (*txView)(nil)
)
