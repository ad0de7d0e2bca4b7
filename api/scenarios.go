/*
scenarios.go - Demo scenario endpoints

PURPOSE:
  Loads the embedded YAML scenarios of the scenario package into the
  handler's store, so a reconciliation run can be tried against realistic
  data.

HOW SCENARIOS WORK:
 1. Reset the store (all data dropped)
 2. Write calendars, rulesets, employees, attendances, schedule changes
    and any pre-existing corrections of the fixture
 3. Use the fixture's start date for later runs that do not name one

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "schedule-change"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - scenario/fixtures: Scenario definitions
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/warp/attendance-engine/scenario"
)

func toScenarioDTO(info scenario.Info) ScenarioDTO {
	return ScenarioDTO{
		ID:          info.ID,
		Name:        info.Name,
		Description: info.Description,
		Since:       info.Since,
	}
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	infos, err := scenario.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list scenarios", err)
		return
	}
	dtos := make([]ScenarioDTO, 0, len(infos))
	for _, info := range infos {
		dtos = append(dtos, toScenarioDTO(info))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	fx, err := scenario.Get(current)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, toScenarioDTO(fx.Info))
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	// No run may observe a half-loaded store.
	h.runMu.Lock()
	defer h.runMu.Unlock()

	fx, err := scenario.Load(r.Context(), h.Store, req.ScenarioID)
	if errors.Is(err, scenario.ErrScenarioNotFound) {
		writeError(w, http.StatusNotFound, "Unknown scenario", err)
		return
	}
	if err != nil {
		h.setScenario("", time.Time{})
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}
	since, err := fx.SinceTime()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.setScenario(fx.ID, since)
	log.Ctx(r.Context()).Info().Str("scenario", fx.ID).Msg("scenario loaded")

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": fx.ID})
}

// ResetDatabase drops all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.runMu.Lock()
	defer h.runMu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.setScenario("", time.Time{})
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) setScenario(id string, since time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentScenario = id
	h.scenarioSince = since
}

// defaultSince is the loaded scenario's start date, or the configured one.
func (h *Handler) defaultSince() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.scenarioSince.IsZero() {
		return h.scenarioSince
	}
	return h.Since
}
