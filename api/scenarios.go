/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos. Each scenario creates schedules, profiles and time
	entries for the previous fortnight, then lets the trigger tracker
	accrue TOIL exactly as it would for live data.

AVAILABLE SCENARIOS:

	standard-overtime:  Organization fortnight, one long day earns TOIL
	nine-day-fortnight: Personal schedule with an RDO on the second Friday
	part-time:          0.6 FTE on three short days, lower threshold
	leave-suppressed:   A long day while on leave, no TOIL accrues

HOW SCENARIOS WORK:
 1. Reset database and trigger state
 2. Create schedules via factory presets
 3. Create the user profile
 4. Log entries day by day, observing each day as the API would
 5. Wait for accrual computations to finish

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "nine-day-fortnight"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: observeDay
  - factory/presets.go: Schedule JSON presets
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/toil-engine/factory"
	"github.com/warp/toil-engine/generic"
	"github.com/warp/toil-engine/schedule"
	"github.com/warp/toil-engine/timesheet"
	"github.com/warp/toil-engine/toil"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "standard-overtime",
		Name:        "Standard Overtime",
		Description: "Organization 09:00-17:00 fortnight with one 9.5 hour day",
		UserID:      "alice",
	},
	{
		ID:          "nine-day-fortnight",
		Name:        "Nine Day Fortnight",
		Description: "Personal 07:30-16:30 schedule, RDO on the second Friday",
		UserID:      "bob",
	},
	{
		ID:          "part-time",
		Name:        "Part Time",
		Description: "0.6 FTE working Monday to Wednesday, one 7 hour day",
		UserID:      "carol",
	},
	{
		ID:          "leave-suppressed",
		Name:        "Leave Suppressed",
		Description: "A 10 hour day logged while on leave earns nothing",
		UserID:      "dave",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	current := h.currentScenario
	h.scenarioMu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(context.Context, generic.TimePoint) error
	switch req.ScenarioID {
	case "standard-overtime":
		load = h.loadStandardOvertimeScenario
	case "nine-day-fortnight":
		load = h.loadNineDayFortnightScenario
	case "part-time":
		load = h.loadPartTimeScenario
	case "leave-suppressed":
		load = h.loadLeaveSuppressedScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	if err := load(ctx, h.previousFortnight()); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.Tracker.Wait()

	h.scenarioMu.Lock()
	h.currentScenario = req.ScenarioID
	h.scenarioMu.Unlock()

	h.Log.Info().Str("scenario", req.ScenarioID).Msg("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data and trigger state.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) reset(ctx context.Context) error {
	h.Tracker.Reset()
	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	if err := h.Thresholds.ResetToDefault(ctx); err != nil {
		return err
	}

	h.versionsMu.Lock()
	h.versions = make(map[toil.DayKey]uint64)
	h.versionsMu.Unlock()

	h.scenarioMu.Lock()
	h.currentScenario = ""
	h.scenarioMu.Unlock()
	return nil
}

// previousFortnight returns the first day of the fortnight before today's.
func (h *Handler) previousFortnight() generic.TimePoint {
	return h.Evaluator.Resolver.Fortnight.PeriodFor(generic.Today()).Start.AddDays(-14)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadStandardOvertimeScenario(ctx context.Context, start generic.TimePoint) error {
	if err := h.createSchedule(ctx, factory.StandardFortnightJSON("std-fortnight", "Standard fortnight", "09:00", "17:00")); err != nil {
		return err
	}
	if err := h.Store.SaveProfile(ctx, toil.Profile{UserID: "alice", Category: toil.FullTime, FTE: decimal.NewFromInt(1)}); err != nil {
		return err
	}

	// Week 1: full days, Wednesday runs long
	for offset, worked := range map[int]string{0: "7.25", 1: "7.25", 2: "9.5", 3: "7.25", 4: "7.25"} {
		if err := h.logDay(ctx, "alice", start.AddDays(offset), worked, offset == 2); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadNineDayFortnightScenario(ctx context.Context, start generic.TimePoint) error {
	ws, err := h.Factory.ParseSchedule(factory.NineDayFortnightJSON("bob-9df", "Bob nine day fortnight", "07:30", "16:30"))
	if err != nil {
		return err
	}
	ws.Owner = schedule.Owner{Kind: schedule.OwnerUser, ID: "bob"}
	if err := h.Store.SaveSchedule(ctx, ws); err != nil {
		return err
	}
	if err := h.Store.SaveProfile(ctx, toil.Profile{UserID: "bob", Category: toil.FullTime, FTE: decimal.NewFromInt(1), ScheduleID: ws.ID}); err != nil {
		return err
	}

	// Nine working days; the second Friday (offset 11) is the RDO
	for _, offset := range []int{0, 1, 2, 3, 4, 7, 8, 9, 10} {
		worked, eligible := "8.25", false
		if offset == 8 {
			worked, eligible = "10", true
		}
		if err := h.logDay(ctx, "bob", start.AddDays(offset), worked, eligible); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadPartTimeScenario(ctx context.Context, start generic.TimePoint) error {
	day := `{"start": "09:00", "end": "15:00", "breaks": {"lunch": true}}`
	week := fmt.Sprintf(`{"monday": %s, "tuesday": %s, "wednesday": %s}`, day, day, day)
	if err := h.createSchedule(ctx, fmt.Sprintf(`{
		"id": "carol-3day",
		"name": "Three short days",
		"owner": {"kind": "user", "id": "carol"},
		"weeks": {"1": %s, "2": %s}
	}`, week, week)); err != nil {
		return err
	}
	if err := h.Store.SaveProfile(ctx, toil.Profile{
		UserID: "carol", Category: toil.PartTime, FTE: decimal.RequireFromString("0.6"), ScheduleID: "carol-3day",
	}); err != nil {
		return err
	}

	for offset, worked := range map[int]string{0: "5.5", 1: "7", 2: "5.5"} {
		if err := h.logDay(ctx, "carol", start.AddDays(offset), worked, offset == 1); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadLeaveSuppressedScenario(ctx context.Context, start generic.TimePoint) error {
	if err := h.createSchedule(ctx, factory.StandardFortnightJSON("std-fortnight", "Standard fortnight", "09:00", "17:00")); err != nil {
		return err
	}
	if err := h.Store.SaveProfile(ctx, toil.Profile{UserID: "dave", Category: toil.FullTime, FTE: decimal.NewFromInt(1)}); err != nil {
		return err
	}

	monday := start
	if err := h.Store.SaveDayStatus(ctx, timesheet.DayStatus{UserID: "dave", Date: monday, LeaveActive: true}); err != nil {
		return err
	}
	return h.logDay(ctx, "dave", monday, "10", true)
}

func (h *Handler) createSchedule(ctx context.Context, jsonStr string) error {
	ws, err := h.Factory.ParseSchedule(jsonStr)
	if err != nil {
		return err
	}
	return h.Store.SaveSchedule(ctx, ws)
}

// logDay stores one entry for date and observes the day.
func (h *Handler) logDay(ctx context.Context, userID generic.UserID, date generic.TimePoint, worked string, toilEligible bool) error {
	entry := timesheet.TimeEntry{
		ID:             timesheet.EntryID(fmt.Sprintf("%s-%s", userID, date)),
		UserID:         userID,
		Date:           date,
		Hours:          decimal.RequireFromString(worked),
		Description:    "Scenario entry",
		IsOvertime:     toilEligible,
		IsToilEligible: toilEligible,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.Store.SaveEntry(ctx, entry); err != nil {
		return err
	}
	_, err := h.observeDay(ctx, userID, date)
	return err
}
