/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON shapes of the HTTP surface, kept apart from the attendance domain
  types so the wire contract can evolve on its own.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Composite response wrappers

AMOUNTS:
  Hours are rendered as decimal strings ("-1.5"), never floats, so the
  values on the wire are exactly the ones that were stored.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// RunRequest triggers one reconciliation pass. An empty Since uses the
// configured start date.
type RunRequest struct {
	Since  string `json:"since,omitempty"`
	Commit bool   `json:"commit"`
}

// LoadScenarioRequest is the request to load a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// RunDTO is one entry of the run history.
type RunDTO struct {
	ID          string `json:"id"`
	Mode        string `json:"mode"`
	Since       string `json:"since"`
	Status      string `json:"status"`
	Applied     int    `json:"applied"`
	Skipped     int    `json:"skipped"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at,omitempty"`
	Report      string `json:"report"`
	Error       string `json:"error,omitempty"`
}

// RunResponse is returned by POST /api/reconciliation/run. Pending is only
// set for dry runs.
type RunResponse struct {
	Run         RunDTO          `json:"run"`
	Report      string          `json:"report"`
	Pending     int             `json:"pending,omitempty"`
	Corrections []CorrectionDTO `json:"corrections,omitempty"`
}

// CorrectionDTO is a correction entry.
type CorrectionDTO struct {
	ID             string `json:"id"`
	EmployeeID     string `json:"employee_id"`
	Date           string `json:"date"`
	Duration       string `json:"duration"`
	ManualDuration string `json:"manual_duration"`
	Compensable    bool   `json:"compensable"`
	Status         string `json:"status"`
	Kind           string `json:"kind"`
	TimeStart      string `json:"time_start"`
	TimeStop       string `json:"time_stop"`
	Created        *bool  `json:"created,omitempty"`
}

// ExpectationDTO previews how a day of an employee would be judged.
type ExpectationDTO struct {
	EmployeeID    string `json:"employee_id"`
	Date          string `json:"date"`
	Status        string `json:"status"`
	CalendarID    string `json:"calendar_id,omitempty"`
	Historical    bool   `json:"historical"`
	ExpectedHours string `json:"expected_hours"`
	BaselineHours string `json:"baseline_hours"`
	MinimumHours  string `json:"minimum_hours"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Since       string `json:"since,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toRunDTO(run attendance.Run) RunDTO {
	dto := RunDTO{
		ID:        string(run.ID),
		Mode:      string(run.Mode),
		Since:     run.Since.String(),
		Status:    string(run.Status),
		Applied:   run.Applied,
		Skipped:   run.Skipped,
		StartedAt: run.StartedAt.UTC().Format(time.RFC3339),
		Report:    run.Report,
		Error:     run.Error,
	}
	if !run.CompletedAt.IsZero() {
		dto.CompletedAt = run.CompletedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toCorrectionDTO(c attendance.Correction) CorrectionDTO {
	return CorrectionDTO{
		ID:             string(c.ID),
		EmployeeID:     string(c.EmployeeID),
		Date:           c.Date.String(),
		Duration:       c.Duration.String(),
		ManualDuration: c.ManualDuration.String(),
		Compensable:    c.Compensable,
		Status:         string(c.Status),
		Kind:           string(c.Kind),
		TimeStart:      c.TimeStart.UTC().Format(time.RFC3339),
		TimeStop:       c.TimeStop.UTC().Format(time.RFC3339),
	}
}

func toUpsertedDTOs(written []attendance.Upserted) []CorrectionDTO {
	out := make([]CorrectionDTO, 0, len(written))
	for _, u := range written {
		dto := toCorrectionDTO(u.Correction)
		created := u.Created
		dto.Created = &created
		out = append(out, dto)
	}
	return out
}
