/*
handlers_test.go - HTTP tests for the reconciliation API

Tests for:
- Dry run (409 + report) and commit run (200 + corrections)
- Persistence failure (500, nothing kept)
- Correction listing filters, run history, expected-hours preview
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type recordingPublisher struct {
	batches [][]attendance.Upserted
}

func (p *recordingPublisher) PublishCorrections(_ context.Context, _ attendance.RunID, c []attendance.Upserted) error {
	p.batches = append(p.batches, c)
	return nil
}

type recordingNotifier struct {
	runs []attendance.Run
}

func (n *recordingNotifier) NotifyDryRun(_ context.Context, run attendance.Run) error {
	n.runs = append(n.runs, run)
	return nil
}

func setupTestServer(t *testing.T, scenarioID string) (*Handler, *memory.Store, http.Handler) {
	t.Helper()
	store := memory.New()
	h := NewHandler(store, time.Date(2025, time.December, 5, 0, 0, 0, 0, time.UTC))
	router := NewRouter(h)
	if scenarioID != "" {
		rec := do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: scenarioID})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	return h, store, router
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// RECONCILIATION RUNS
// =============================================================================

func TestRunReconciliation_DryRunIsBlocking(t *testing.T) {
	// GIVEN: The standard week with two short days
	h, store, router := setupTestServer(t, "standard-week")
	notifier := &recordingNotifier{}
	h.Notifier = notifier

	// WHEN: A run is requested without commit
	rec := do(t, router, http.MethodPost, "/api/reconciliation/run", RunRequest{})

	// THEN: 409 with the pending report, nothing written, operators notified
	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[RunResponse](t, rec)
	assert.Equal(t, 2, resp.Pending)
	assert.Equal(t, "dry_run", resp.Run.Status)
	assert.Contains(t, resp.Report, "Corrections pending (dry run):")

	list, err := store.ListCorrections(context.Background(), attendance.CorrectionFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	require.Len(t, notifier.runs, 1)
	assert.Equal(t, 2, notifier.runs[0].Applied)
}

func TestRunReconciliation_Commit(t *testing.T) {
	h, _, router := setupTestServer(t, "standard-week")
	publisher := &recordingPublisher{}
	h.Publisher = publisher

	rec := do(t, router, http.MethodPost, "/api/reconciliation/run", RunRequest{Commit: true})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[RunResponse](t, rec)
	assert.Equal(t, "committed", resp.Run.Status)
	require.Len(t, resp.Corrections, 2)
	assert.Equal(t, "-1", resp.Corrections[0].Duration)
	require.NotNil(t, resp.Corrections[0].Created)
	assert.True(t, *resp.Corrections[0].Created)
	require.Len(t, publisher.batches, 1)
	assert.Len(t, publisher.batches[0], 2)

	// A second commit updates in place.
	rec = do(t, router, http.MethodPost, "/api/reconciliation/run", RunRequest{Commit: true})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[RunResponse](t, rec)
	require.Len(t, resp.Corrections, 2)
	assert.False(t, *resp.Corrections[0].Created)
}

func TestRunReconciliation_CommitFailure(t *testing.T) {
	// GIVEN: A store that fails while recomputing overtime
	_, store, router := setupTestServer(t, "standard-week")
	store.SetFault(memory.OpRecompute, errors.New("disk full"))

	rec := do(t, router, http.MethodPost, "/api/reconciliation/run", RunRequest{Commit: true})

	// THEN: 500 and no correction survives
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "commit_failed", decode[ErrorResponse](t, rec).Code)
	list, err := store.ListCorrections(context.Background(), attendance.CorrectionFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRunReconciliation_BadInput(t *testing.T) {
	_, _, router := setupTestServer(t, "")

	rec := do(t, router, http.MethodPost, "/api/reconciliation/run", RunRequest{Since: "yesterday"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/reconciliation/run", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunReconciliation_SinceExcludesEarlierDays(t *testing.T) {
	// GIVEN: A start date after the standard week's Monday
	_, _, router := setupTestServer(t, "standard-week")

	rec := do(t, router, http.MethodPost, "/api/reconciliation/run", RunRequest{Since: "2025-12-09", Commit: true})

	// THEN: Only Thursday is corrected
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[RunResponse](t, rec)
	require.Len(t, resp.Corrections, 1)
	assert.Equal(t, "2025-12-11", resp.Corrections[0].Date)
}

func TestListReconciliationRuns(t *testing.T) {
	_, _, router := setupTestServer(t, "standard-week")
	do(t, router, http.MethodPost, "/api/reconciliation/run", RunRequest{})
	do(t, router, http.MethodPost, "/api/reconciliation/run", RunRequest{Commit: true})

	rec := do(t, router, http.MethodGet, "/api/reconciliation/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[[]RunDTO](t, rec)
	require.Len(t, runs, 2)
	assert.ElementsMatch(t, []string{"dry_run", "committed"}, []string{runs[0].Status, runs[1].Status})

	rec = do(t, router, http.MethodGet, "/api/reconciliation/runs?limit=1", nil)
	assert.Len(t, decode[[]RunDTO](t, rec), 1)

	rec = do(t, router, http.MethodGet, "/api/reconciliation/runs?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// CORRECTIONS
// =============================================================================

func TestListCorrections_Filters(t *testing.T) {
	_, _, router := setupTestServer(t, "standard-week")
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/api/reconciliation/run", RunRequest{Commit: true}).Code)

	tests := []struct {
		name  string
		query string
		dates []string
	}{
		{"all", "", []string{"2025-12-08", "2025-12-11"}},
		{"by employee", "?employee_id=emp-ada", []string{"2025-12-08", "2025-12-11"}},
		{"other employee", "?employee_id=emp-nobody", []string{}},
		{"from", "?from=2025-12-09", []string{"2025-12-11"}},
		{"to", "?to=2025-12-10", []string{"2025-12-08"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodGet, "/api/corrections"+tt.query, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			dates := []string{}
			for _, c := range decode[[]CorrectionDTO](t, rec) {
				dates = append(dates, c.Date)
			}
			assert.Equal(t, tt.dates, dates)
		})
	}
}

func TestListCorrections_BadRange(t *testing.T) {
	_, _, router := setupTestServer(t, "")

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/api/corrections?from=nope", nil).Code)

	rec := do(t, router, http.MethodGet, "/api/corrections?from=2025-12-10&to=2025-12-01", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	got := decode[ErrorResponse](t, rec)
	assert.Equal(t, "Invalid period [2025-12-10, 2025-12-01]", got.Error)
	assert.Equal(t, generic.ErrInvalidPeriod.Error(), got.Details)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid period", generic.ErrInvalidPeriod, http.StatusBadRequest},
		{"wrapped employee not found", fmt.Errorf("lookup: %w", generic.ErrEmployeeNotFound), http.StatusNotFound},
		{"calendar not found", generic.ErrCalendarNotFound, http.StatusNotFound},
		{"anything else", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorStatus(tt.err))
		})
	}
}

// =============================================================================
// EXPECTED HOURS
// =============================================================================

func TestGetExpectedHours(t *testing.T) {
	_, _, router := setupTestServer(t, "schedule-change")

	tests := []struct {
		name     string
		date     string
		status   string
		calendar string
		hours    string
	}{
		{"before first change uses flexible calendar", "2025-12-05", "flexible", "cal-flex", "0"},
		{"monday under part-time calendar", "2025-12-08", "scheduled", "cal-30h", "6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodGet, "/api/employees/emp-eve/expected-hours?date="+tt.date, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			got := decode[ExpectationDTO](t, rec)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.calendar, got.CalendarID)
			assert.Equal(t, tt.hours, got.ExpectedHours)
		})
	}
}

func TestGetExpectedHours_Errors(t *testing.T) {
	_, _, router := setupTestServer(t, "standard-week")

	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/api/employees/emp-ghost/expected-hours?date=2025-12-08", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/api/employees/emp-ada/expected-hours", nil).Code)
}
