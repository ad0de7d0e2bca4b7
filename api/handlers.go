/*
handlers.go - HTTP API handlers for the attendance reconciliation engine

PURPOSE:
  Exposes reconciliation runs, correction entries and schedule previews over
  REST. Handles HTTP request/response and JSON serialization, and delegates
  to the attendance package.

ENDPOINTS:
  Reconciliation:
    POST   /api/reconciliation/run           Trigger a dry run or a commit run
    GET    /api/reconciliation/runs          Run history, newest first

  Corrections:
    GET    /api/corrections                  ?employee_id=&from=&to=

  Employees:
    GET    /api/employees/{id}/expected-hours ?date=YYYY-MM-DD

  Scenarios:
    GET    /api/scenarios                    List demo scenarios
    GET    /api/scenarios/current            Last loaded scenario
    POST   /api/scenarios/load               Load a demo scenario

RUN STATUS CODES:
  200: Commit run, corrections persisted
  409: Dry run. The body carries the report; nothing was persisted and a
       commit run has to be requested explicitly.
  500: Persistence failure. Nothing of the batch was kept.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/scenario"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Backend is a store that the runner reads and writes and that scenarios can
// be loaded into.
type Backend interface {
	attendance.Store
	scenario.Seeder
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store            Backend
	DefaultRulesetID attendance.RulesetID

	// Since is the aggregation start used when a request does not name one.
	Since time.Time

	// Optional delivery of run results.
	Publisher attendance.CorrectionPublisher
	Notifier  attendance.ReportNotifier

	// One run at a time per process.
	runMu sync.Mutex

	mu              sync.Mutex
	currentScenario string
	scenarioSince   time.Time
}

// NewHandler creates a new handler with the given store.
func NewHandler(store Backend, since time.Time) *Handler {
	return &Handler{Store: store, Since: since}
}

// Reconcile runs one pass with the handler's collaborators.
func (h *Handler) Reconcile(ctx context.Context, opts attendance.RunOptions) (*attendance.Result, error) {
	h.runMu.Lock()
	defer h.runMu.Unlock()

	runner := attendance.NewReconciliationRunner(h.Store, h.DefaultRulesetID)
	runner.Publisher = h.Publisher
	runner.Notifier = h.Notifier
	return runner.Run(ctx, opts)
}

// =============================================================================
// RECONCILIATION HANDLERS
// =============================================================================

// RunReconciliation triggers a dry run or a commit run.
func (h *Handler) RunReconciliation(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	since := h.defaultSince()
	if req.Since != "" {
		tp, err := generic.ParseTimePoint(req.Since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid since date", err)
			return
		}
		since = tp.Time
	}

	result, err := h.Reconcile(r.Context(), attendance.RunOptions{Since: since, Commit: req.Commit})

	var notice *attendance.DryRunNotice
	var commitErr *attendance.CommitError
	switch {
	case errors.As(err, &notice):
		writeJSON(w, http.StatusConflict, RunResponse{
			Run:     toRunDTO(result.Run),
			Report:  notice.Report,
			Pending: notice.Pending,
		})
	case errors.As(err, &commitErr):
		log.Ctx(r.Context()).Error().Err(err).Msg("reconciliation commit failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "Reconciliation commit failed, nothing was persisted",
			Code:    "commit_failed",
			Details: err.Error(),
		})
	case err != nil:
		log.Ctx(r.Context()).Error().Err(err).Msg("reconciliation run failed")
		writeError(w, http.StatusInternalServerError, "Reconciliation run failed", err)
	default:
		writeJSON(w, http.StatusOK, RunResponse{
			Run:         toRunDTO(result.Run),
			Report:      result.Report.String(),
			Corrections: toUpsertedDTOs(result.Corrections),
		})
	}
}

// ListReconciliationRuns returns run history, newest first.
func (h *Handler) ListReconciliationRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	runs, err := h.Store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toRunDTO(run))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CORRECTION HANDLERS
// =============================================================================

// ListCorrections returns correction entries matching the query filter.
func (h *Handler) ListCorrections(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := attendance.CorrectionFilter{EmployeeID: attendance.EmployeeID(q.Get("employee_id"))}

	for _, p := range []struct {
		name string
		dst  **generic.TimePoint
	}{{"from", &filter.From}, {"to", &filter.To}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		tp, err := generic.ParseTimePoint(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid "+p.name+" date", err)
			return
		}
		*p.dst = &tp
	}
	if filter.From != nil && filter.To != nil {
		period := generic.Period{Start: *filter.From, End: *filter.To}
		if err := period.Validate(); err != nil {
			writeError(w, errorStatus(err), "Invalid period "+period.String(), err)
			return
		}
	}

	list, err := h.Store.ListCorrections(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list corrections", err)
		return
	}

	dtos := make([]CorrectionDTO, 0, len(list))
	for _, c := range list {
		dtos = append(dtos, toCorrectionDTO(c))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// GetExpectedHours previews the schedule resolution and threshold of one
// employee-day without evaluating attendance.
func (h *Handler) GetExpectedHours(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := attendance.EmployeeID(chi.URLParam(r, "id"))

	day, err := generic.ParseTimePoint(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing date", err)
		return
	}

	emp, err := h.Store.Employee(ctx, id)
	if err != nil {
		writeError(w, errorStatus(err), "Failed to get employee", err)
		return
	}

	resolver, err := attendance.LoadScheduleResolver(ctx, h.Store, h.Store)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load schedule history", err)
		return
	}
	exp, err := resolver.Resolve(ctx, *emp, day)
	if err != nil {
		writeError(w, errorStatus(err), "Failed to resolve schedule", err)
		return
	}
	policy := &attendance.ThresholdPolicy{Rulesets: h.Store, DefaultRulesetID: h.DefaultRulesetID}
	floor, err := policy.MinimumHours(ctx, *emp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve threshold", err)
		return
	}

	writeJSON(w, http.StatusOK, ExpectationDTO{
		EmployeeID:    string(emp.ID),
		Date:          day.String(),
		Status:        string(exp.Status),
		CalendarID:    string(exp.CalendarID),
		Historical:    exp.Historical,
		ExpectedHours: exp.Hours.String(),
		BaselineHours: exp.Baseline.String(),
		MinimumHours:  floor.String(),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case generic.IsClientError(err):
		return http.StatusBadRequest
	case generic.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
