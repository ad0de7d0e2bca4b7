// Package memory provides an in-memory attendance.Store for tests and demos.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Operations that can be made to fail with SetFault.
const (
	OpCreateCorrection = "create_correction"
	OpUpdateCorrection = "update_correction"
	OpRecompute        = "recompute"
	OpSaveRun          = "save_run"
)

type Store struct {
	mu sync.RWMutex
	state

	faults map[string]error
}

// state is everything WithTx snapshots and restores.
type state struct {
	employees   map[attendance.EmployeeID]attendance.Employee
	calendars   map[attendance.CalendarID]attendance.Calendar
	rulesets    map[attendance.RulesetID]attendance.Ruleset
	intervals   map[attendance.IntervalID]attendance.Interval
	changes     []attendance.ScheduleChange
	corrections map[correctionKey]attendance.Correction
	runs        []attendance.Run
}

type correctionKey struct {
	EmployeeID attendance.EmployeeID
	Date       string
}

func keyOf(employeeID attendance.EmployeeID, day generic.TimePoint) correctionKey {
	return correctionKey{EmployeeID: employeeID, Date: day.String()}
}

func New() *Store {
	return &Store{state: emptyState(), faults: make(map[string]error)}
}

func emptyState() state {
	return state{
		employees:   make(map[attendance.EmployeeID]attendance.Employee),
		calendars:   make(map[attendance.CalendarID]attendance.Calendar),
		rulesets:    make(map[attendance.RulesetID]attendance.Ruleset),
		intervals:   make(map[attendance.IntervalID]attendance.Interval),
		corrections: make(map[correctionKey]attendance.Correction),
	}
}

// Reset drops all data. Faults are kept.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = emptyState()
	return nil
}

// SetFault makes every later call of op fail with err. A nil err clears it.
func (s *Store) SetFault(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

// =============================================================================
// SEEDING
// =============================================================================

func (s *Store) PutEmployee(_ context.Context, e attendance.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[e.ID] = e
	return nil
}

func (s *Store) PutCalendar(_ context.Context, c attendance.Calendar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calendars[c.ID] = c
	return nil
}

func (s *Store) PutRuleset(_ context.Context, rs attendance.Ruleset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rulesets[rs.ID] = rs
	return nil
}

func (s *Store) PutInterval(_ context.Context, iv attendance.Interval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intervals[iv.ID] = iv
	return nil
}

func (s *Store) PutScheduleChange(_ context.Context, c attendance.ScheduleChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = append(s.changes, c)
	return nil
}

// =============================================================================
// READ-ONLY COLLABORATORS
// =============================================================================

func (s *Store) Employee(_ context.Context, id attendance.EmployeeID) (*attendance.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.employees[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", generic.ErrEmployeeNotFound, id)
	}
	return &e, nil
}

func (s *Store) Calendar(_ context.Context, id attendance.CalendarID) (*attendance.Calendar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.calendars[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", generic.ErrCalendarNotFound, id)
	}
	return &c, nil
}

func (s *Store) Ruleset(_ context.Context, id attendance.RulesetID) (*attendance.Ruleset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs, ok := s.rulesets[id]
	if !ok {
		return nil, nil
	}
	return &rs, nil
}

func (s *Store) ScheduleChanges(_ context.Context) ([]attendance.ScheduleChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]attendance.ScheduleChange, len(s.changes))
	copy(out, s.changes)
	return out, nil
}

// =============================================================================
// ATTENDANCE LEDGER
// =============================================================================

func (s *Store) CompletedIntervals(_ context.Context, since time.Time) ([]attendance.Interval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completedIntervals(since), nil
}

func (s *Store) IntervalsBetween(_ context.Context, employeeID attendance.EmployeeID, from, to time.Time) ([]attendance.Interval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.intervalsBetween(employeeID, from, to), nil
}

func (s *Store) RecomputeOvertime(_ context.Context, ids []attendance.IntervalID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recompute(ids)
}

// Interval returns one interval by id, mostly for assertions.
func (s *Store) Interval(_ context.Context, id attendance.IntervalID) (*attendance.Interval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	iv, ok := s.intervals[id]
	if !ok {
		return nil, fmt.Errorf("interval %s not found", id)
	}
	return &iv, nil
}

func (st *state) completedIntervals(since time.Time) []attendance.Interval {
	var out []attendance.Interval
	for _, iv := range st.intervals {
		if iv.Complete() && !iv.CheckIn.Before(since) {
			out = append(out, iv)
		}
	}
	sortIntervals(out)
	return out
}

func (st *state) intervalsBetween(employeeID attendance.EmployeeID, from, to time.Time) []attendance.Interval {
	var out []attendance.Interval
	for _, iv := range st.intervals {
		if iv.EmployeeID != employeeID {
			continue
		}
		if !iv.CheckIn.Before(from) && iv.CheckIn.Before(to) {
			out = append(out, iv)
		}
	}
	sortIntervals(out)
	return out
}

// recompute sets OvertimeHours and ValidatedOvertimeHours from the approved
// corrections anchored at each interval's check-in.
func (s *Store) recompute(ids []attendance.IntervalID) error {
	if err := s.faults[OpRecompute]; err != nil {
		return err
	}
	for _, id := range ids {
		iv, ok := s.intervals[id]
		if !ok {
			return fmt.Errorf("recompute: interval %s not found", id)
		}
		overtime, validated := generic.ZeroHours(), generic.ZeroHours()
		for _, c := range s.corrections {
			if c.EmployeeID != iv.EmployeeID || c.Status != attendance.StatusApproved || !c.TimeStart.Equal(iv.CheckIn) {
				continue
			}
			overtime = overtime.Add(c.Duration)
			validated = validated.Add(c.ManualDuration)
		}
		iv.OvertimeHours = overtime
		iv.ValidatedOvertimeHours = validated
		s.intervals[id] = iv
	}
	return nil
}

func sortIntervals(ivs []attendance.Interval) {
	sort.Slice(ivs, func(i, j int) bool {
		if !ivs[i].CheckIn.Equal(ivs[j].CheckIn) {
			return ivs[i].CheckIn.Before(ivs[j].CheckIn)
		}
		return ivs[i].ID < ivs[j].ID
	})
}

// =============================================================================
// CORRECTIONS
// =============================================================================

func (s *Store) FindCorrection(_ context.Context, employeeID attendance.EmployeeID, day generic.TimePoint) (*attendance.Correction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findCorrection(employeeID, day), nil
}

func (s *Store) CreateCorrection(_ context.Context, c attendance.Correction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createCorrection(c)
}

func (s *Store) UpdateCorrection(_ context.Context, c attendance.Correction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateCorrection(c)
}

func (s *Store) ListCorrections(_ context.Context, filter attendance.CorrectionFilter) ([]attendance.Correction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCorrections(filter), nil
}

func (st *state) findCorrection(employeeID attendance.EmployeeID, day generic.TimePoint) *attendance.Correction {
	c, ok := st.corrections[keyOf(employeeID, day)]
	if !ok {
		return nil
	}
	return &c
}

func (s *Store) createCorrection(c attendance.Correction) error {
	if err := s.faults[OpCreateCorrection]; err != nil {
		return err
	}
	k := keyOf(c.EmployeeID, c.Date)
	if _, exists := s.corrections[k]; exists {
		return fmt.Errorf("%w: %s on %s", generic.ErrDuplicateCorrection, c.EmployeeID, c.Date)
	}
	s.corrections[k] = c
	return nil
}

func (s *Store) updateCorrection(c attendance.Correction) error {
	if err := s.faults[OpUpdateCorrection]; err != nil {
		return err
	}
	k := keyOf(c.EmployeeID, c.Date)
	existing, ok := s.corrections[k]
	if !ok || existing.ID != c.ID {
		return fmt.Errorf("%w: %s", generic.ErrCorrectionNotFound, c.ID)
	}
	s.corrections[k] = c
	return nil
}

func (st *state) listCorrections(filter attendance.CorrectionFilter) []attendance.Correction {
	var out []attendance.Correction
	for _, c := range st.corrections {
		if filter.Matches(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeID != out[j].EmployeeID {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// =============================================================================
// RUN HISTORY
// =============================================================================

func (s *Store) SaveRun(_ context.Context, run attendance.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.faults[OpSaveRun]; err != nil {
		return err
	}
	s.runs = append(s.runs, run)
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(_ context.Context, limit int) ([]attendance.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]attendance.Run, 0, len(s.runs))
	for i := len(s.runs) - 1; i >= 0; i-- {
		out = append(out, s.runs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (s *Store) WithTx(ctx context.Context, fn func(attendance.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(&txView{parent: s}); err != nil {
		s.state = snap
		return err
	}
	return nil
}

func (s *Store) snapshot() state {
	snap := state{
		employees:   s.employees,
		calendars:   s.calendars,
		rulesets:    s.rulesets,
		changes:     s.changes,
		runs:        s.runs,
		intervals:   make(map[attendance.IntervalID]attendance.Interval, len(s.intervals)),
		corrections: make(map[correctionKey]attendance.Correction, len(s.corrections)),
	}
	for k, v := range s.intervals {
		snap.intervals[k] = v
	}
	for k, v := range s.corrections {
		snap.corrections[k] = v
	}
	return snap
}

// txView is the Tx handed to WithTx callbacks. The parent lock is already held.
type txView struct {
	parent *Store
}

func (tv *txView) CompletedIntervals(_ context.Context, since time.Time) ([]attendance.Interval, error) {
	return tv.parent.completedIntervals(since), nil
}

func (tv *txView) IntervalsBetween(_ context.Context, employeeID attendance.EmployeeID, from, to time.Time) ([]attendance.Interval, error) {
	return tv.parent.intervalsBetween(employeeID, from, to), nil
}

func (tv *txView) RecomputeOvertime(_ context.Context, ids []attendance.IntervalID) error {
	return tv.parent.recompute(ids)
}

func (tv *txView) FindCorrection(_ context.Context, employeeID attendance.EmployeeID, day generic.TimePoint) (*attendance.Correction, error) {
	return tv.parent.findCorrection(employeeID, day), nil
}

func (tv *txView) CreateCorrection(_ context.Context, c attendance.Correction) error {
	return tv.parent.createCorrection(c)
}

func (tv *txView) UpdateCorrection(_ context.Context, c attendance.Correction) error {
	return tv.parent.updateCorrection(c)
}

func (tv *txView) ListCorrections(_ context.Context, filter attendance.CorrectionFilter) ([]attendance.Correction, error) {
	return tv.parent.listCorrections(filter), nil
}

var (
	_ attendance.Store = (*Store)(nil)
	_ attendance.Tx    = (*txView)(nil)
)
