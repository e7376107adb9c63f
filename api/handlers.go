/*
handlers.go - HTTP API handlers for the TOIL engine

PURPOSE:
  Exposes schedules, time entries and TOIL balances over REST. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Schedules:
    GET    /api/schedules                       List schedules
    POST   /api/schedules                       Create or replace a schedule
    GET    /api/schedules/{id}                  Get schedule
    GET    /api/schedules/{id}/fortnight?fte=   Fortnight total
    GET    /api/schedules/{id}/days/{date}      Resolved day and its hours

  Users:
    GET    /api/users/{id}/profile              Get profile
    PUT    /api/users/{id}/profile              Set category, FTE and schedule
    GET    /api/users/{id}/entries?date=        Entries for one day
    POST   /api/users/{id}/entries              Log work
    DELETE /api/users/{id}/entries/{entryID}    Remove an entry
    PUT    /api/users/{id}/days/{date}/status   Leave/TOIL flags
    GET    /api/users/{id}/days/{date}          Day outcome and trigger state
    GET    /api/users/{id}/toil                 TOIL balance and ledger

  Thresholds:
    GET    /api/toil/thresholds                 Current thresholds
    PUT    /api/toil/thresholds                 Replace thresholds
    POST   /api/toil/thresholds/reset           Restore defaults

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Persist the change
  4. Re-evaluate the affected day and feed the trigger tracker
  5. Serialize response

  Only data changes drive the tracker. Reading a day never triggers accrual.

ERROR HANDLING:
  Errors are returned as JSON with the status from statusFor:
  - 400: Validation errors, invalid input
  - 404: Schedule, entry or profile not found
  - 422: Stored schedule data is corrupt
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - toil/tracker.go: Trigger state machine
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/toil-engine/factory"
	"github.com/warp/toil-engine/generic"
	"github.com/warp/toil-engine/metrics"
	"github.com/warp/toil-engine/schedule"
	"github.com/warp/toil-engine/store/sqlite"
	"github.com/warp/toil-engine/timesheet"
	"github.com/warp/toil-engine/toil"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Options configures a Handler. Zero values fall back to the store and defaults.
type Options struct {
	// KV holds the TOIL thresholds. Nil uses the SQLite settings table.
	KV generic.KVStore

	Fortnight     generic.FortnightConfig
	DailyFallback decimal.Decimal
	Log           zerolog.Logger
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Factory    *factory.ScheduleFactory
	Evaluator  *timesheet.Evaluator
	Calculator *toil.Calculator
	Tracker    *toil.Tracker
	Thresholds *toil.ThresholdService
	Log        zerolog.Logger

	// Observation versions per user-day, taken before the day is read.
	versionsMu sync.Mutex
	versions   map[toil.DayKey]uint64

	// Track currently loaded scenario
	scenarioMu      sync.Mutex
	currentScenario string
}

// NewHandler wires the engine on top of store.
func NewHandler(store *sqlite.Store, opts Options) *Handler {
	kv := opts.KV
	if kv == nil {
		kv = store
	}

	evaluator := timesheet.NewEvaluator(opts.Fortnight)
	evaluator.DailyFallback = opts.DailyFallback

	thresholds := toil.NewThresholdService(kv, opts.Log)
	calc := &toil.Calculator{
		Profiles:   store,
		Schedules:  store,
		Entries:    store,
		Ledger:     generic.NewLedger(store),
		Thresholds: thresholds,
		Evaluator:  evaluator,
		Log:        opts.Log,
	}

	return &Handler{
		Store:      store,
		Factory:    factory.NewScheduleFactory(),
		Evaluator:  evaluator,
		Calculator: calc,
		Tracker:    toil.NewTracker(calc, opts.Log),
		Thresholds: thresholds,
		Log:        opts.Log,
		versions:   make(map[toil.DayKey]uint64),
	}
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// ListSchedules returns all schedules.
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.Store.ListSchedules(r.Context())
	if err != nil {
		writeError(w, statusFor(err), "Failed to list schedules", err)
		return
	}

	dtos := make([]factory.ScheduleJSON, len(schedules))
	for i, ws := range schedules {
		dtos[i] = h.Factory.ToJSON(ws)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateSchedule validates and stores a schedule. Existing IDs are replaced.
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req factory.ScheduleJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required", nil)
		return
	}

	ws, err := h.Factory.FromJSON(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid schedule", err)
		return
	}
	if err := h.Store.SaveSchedule(r.Context(), ws); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save schedule", err)
		return
	}

	h.Log.Info().Str("schedule_id", string(ws.ID)).Str("owner", string(ws.Owner.Kind)).Msg("schedule saved")
	writeJSON(w, http.StatusCreated, h.Factory.ToJSON(ws))
}

// GetSchedule returns a single schedule.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	ws, err := h.Store.GetSchedule(r.Context(), schedule.ScheduleID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, statusFor(err), "Failed to get schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Factory.ToJSON(ws))
}

// GetFortnight returns the FTE-scaled fortnight total. fte defaults to 1.
func (h *Handler) GetFortnight(w http.ResponseWriter, r *http.Request) {
	id := schedule.ScheduleID(chi.URLParam(r, "id"))

	fte := decimal.NewFromInt(1)
	if raw := r.URL.Query().Get("fte"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid fte", fmt.Errorf("%w: %q", generic.ErrInvalidFTE, raw))
			return
		}
		fte = parsed
	}

	ws, err := h.Store.GetSchedule(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), "Failed to get schedule", err)
		return
	}

	summary, err := schedule.Fortnight(ws, fte)
	if err != nil {
		writeError(w, statusFor(err), "Failed to compute fortnight hours", err)
		return
	}
	writeJSON(w, http.StatusOK, toFortnightDTO(id, summary))
}

// GetScheduleDay resolves a calendar date against a schedule.
func (h *Handler) GetScheduleDay(w http.ResponseWriter, r *http.Request) {
	date, err := generic.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	ws, err := h.Store.GetSchedule(r.Context(), schedule.ScheduleID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, statusFor(err), "Failed to get schedule", err)
		return
	}

	res, err := h.Evaluator.Resolver.Resolve(date, ws)
	if err != nil {
		writeError(w, statusFor(err), "Failed to resolve day", err)
		return
	}
	b, err := res.Hours()
	if err != nil {
		writeError(w, statusFor(err), "Failed to compute hours", err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDayDTO(res, b))
}

// =============================================================================
// PROFILE HANDLERS
// =============================================================================

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.Profile(r.Context(), generic.UserID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, statusFor(err), "Failed to get profile", err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(p))
}

// PutProfile sets a user's category, FTE and optional schedule.
func (h *Handler) PutProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	category, err := toil.ParseCategory(req.Category)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid category", err)
		return
	}
	p := toil.Profile{
		UserID:     generic.UserID(chi.URLParam(r, "id")),
		Category:   category,
		FTE:        decimal.NewFromFloat(req.FTE),
		ScheduleID: schedule.ScheduleID(req.ScheduleID),
	}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid profile", err)
		return
	}
	if p.ScheduleID != "" {
		if _, err := h.Store.GetSchedule(r.Context(), p.ScheduleID); err != nil {
			writeError(w, statusFor(err), "Unknown schedule", err)
			return
		}
	}

	if err := h.Store.SaveProfile(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save profile", err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(p))
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

// ListEntries returns a user's entries for ?date=.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	date, err := generic.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	entries, err := h.Store.EntriesForDay(r.Context(), generic.UserID(chi.URLParam(r, "id")), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list entries", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// CreateEntry stores an entry and re-evaluates its day.
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	userID := generic.UserID(chi.URLParam(r, "id"))

	var req CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	entry := timesheet.TimeEntry{
		ID:             timesheet.EntryID(req.ID),
		UserID:         userID,
		Date:           date,
		Hours:          decimal.NewFromFloat(req.Hours),
		Description:    req.Description,
		Category:       req.Category,
		IsOvertime:     req.IsOvertime,
		IsToilEligible: req.IsToilEligible,
		CreatedAt:      time.Now().UTC(),
	}
	if err := entry.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid entry", err)
		return
	}
	if err := h.Store.SaveEntry(r.Context(), entry); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save entry", err)
		return
	}

	day, err := h.observeDay(r.Context(), userID, date)
	if err != nil {
		writeError(w, statusFor(err), "Entry saved but day evaluation failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, EntryResponse{Entry: toEntryDTO(entry), Day: day})
}

// DeleteEntry removes an entry and re-evaluates its day.
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	userID := generic.UserID(chi.URLParam(r, "id"))

	removed, err := h.Store.DeleteEntry(r.Context(), userID, timesheet.EntryID(chi.URLParam(r, "entryID")))
	if err != nil {
		writeError(w, statusFor(err), "Failed to delete entry", err)
		return
	}

	day, err := h.observeDay(r.Context(), userID, removed.Date)
	if err != nil {
		writeError(w, statusFor(err), "Entry deleted but day evaluation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, EntryResponse{Entry: toEntryDTO(removed), Day: day})
}

// =============================================================================
// DAY HANDLERS
// =============================================================================

// PutDayStatus records leave/TOIL flags and re-evaluates the day.
func (h *Handler) PutDayStatus(w http.ResponseWriter, r *http.Request) {
	userID := generic.UserID(chi.URLParam(r, "id"))
	date, err := generic.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	var req DayStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	status := timesheet.DayStatus{UserID: userID, Date: date, LeaveActive: req.LeaveActive, ToilActive: req.ToilActive}
	if err := h.Store.SaveDayStatus(r.Context(), status); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save day status", err)
		return
	}

	day, err := h.observeDay(r.Context(), userID, date)
	if err != nil {
		writeError(w, statusFor(err), "Status saved but day evaluation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

// GetDay reports the day's outcome and trigger state without observing it.
// ?start=HH:MM&end=HH:MM previews unsaved times when the day has no entries;
// ?lunch= and ?smoko= toggle their breaks.
func (h *Handler) GetDay(w http.ResponseWriter, r *http.Request) {
	userID := generic.UserID(chi.URLParam(r, "id"))
	date, err := generic.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	var proposed *schedule.DayConfig
	q := r.URL.Query()
	if q.Get("start") != "" || q.Get("end") != "" {
		proposed = &schedule.DayConfig{
			Start:  q.Get("start"),
			End:    q.Get("end"),
			Breaks: schedule.BreakConfig{Lunch: q.Get("lunch") == "true", Smoko: q.Get("smoko") == "true"},
		}
	}

	ev, err := h.evaluate(r.Context(), userID, date, proposed)
	if err != nil {
		writeError(w, statusFor(err), "Failed to evaluate day", err)
		return
	}

	key := toil.NewDayKey(userID, date)
	state := toil.NextState(toil.ObservationFor(ev.outcome, ev.status, len(ev.entries), 0))
	day := ev.toDTO(userID, date, state)
	if snap, ok := h.Tracker.Snapshot(key); ok {
		day.Trigger.State = string(snap.State)
		day.Trigger.InFlight = snap.InFlight
		day.Trigger.Settled = snap.Settled
		day.Trigger.Failures = snap.Failures
	}
	writeJSON(w, http.StatusOK, day)
}

// GetToil returns the user's TOIL balance and ledger, optionally ?asOf=.
func (h *Handler) GetToil(w http.ResponseWriter, r *http.Request) {
	userID := generic.UserID(chi.URLParam(r, "id"))

	asOf := generic.Today()
	if raw := r.URL.Query().Get("asOf"); raw != "" {
		parsed, err := generic.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid asOf", err)
			return
		}
		asOf = parsed
	}

	balance, err := h.Calculator.Balance(r.Context(), userID, asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute balance", err)
		return
	}
	txs, err := h.Calculator.Ledger.Transactions(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load transactions", err)
		return
	}

	writeJSON(w, http.StatusOK, ToilDTO{
		UserID:       string(userID),
		AsOf:         asOf.String(),
		Balance:      hours(balance),
		Transactions: toTransactionDTOs(txs),
	})
}

// =============================================================================
// THRESHOLD HANDLERS
// =============================================================================

func (h *Handler) GetThresholds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toThresholdsDTO(h.Thresholds.Get(r.Context())))
}

// PutThresholds replaces all three thresholds. A failed write leaves the
// previous values in force.
func (h *Handler) PutThresholds(w http.ResponseWriter, r *http.Request) {
	var req ThresholdsDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	t := toil.Thresholds{FullTime: req.FullTime, PartTime: req.PartTime, Casual: req.Casual}
	if err := h.Thresholds.Set(r.Context(), t); err != nil {
		writeError(w, statusFor(err), "Failed to save thresholds", err)
		return
	}
	writeJSON(w, http.StatusOK, toThresholdsDTO(t))
}

func (h *Handler) ResetThresholds(w http.ResponseWriter, r *http.Request) {
	if err := h.Thresholds.ResetToDefault(r.Context()); err != nil {
		writeError(w, statusFor(err), "Failed to reset thresholds", err)
		return
	}
	writeJSON(w, http.StatusOK, toThresholdsDTO(toil.DefaultThresholds()))
}

// Health reports database reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database not ready", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// DAY EVALUATION
// =============================================================================

type evaluation struct {
	outcome timesheet.DayOutcome
	status  timesheet.DayStatus
	entries []timesheet.TimeEntry
}

func (ev evaluation) toDTO(userID generic.UserID, date generic.TimePoint, state toil.State) DayDTO {
	return DayDTO{
		UserID:      string(userID),
		Date:        date.String(),
		Outcome:     toOutcomeDTO(ev.outcome),
		LeaveActive: ev.status.LeaveActive,
		ToilActive:  ev.status.ToilActive,
		EntryCount:  len(ev.entries),
		Trigger:     TriggerDTO{State: string(state)},
	}
}

// evaluate reads the day's data and classifies it. Users without a profile
// follow the organization default schedule.
func (h *Handler) evaluate(ctx context.Context, userID generic.UserID, date generic.TimePoint, proposed *schedule.DayConfig) (evaluation, error) {
	profile, err := h.Store.Profile(ctx, userID)
	if err != nil && !errors.Is(err, generic.ErrProfileNotFound) {
		return evaluation{}, err
	}
	ws, err := toil.ScheduleFor(ctx, h.Store, profile)
	if err != nil {
		return evaluation{}, err
	}
	entries, err := h.Store.EntriesForDay(ctx, userID, date)
	if err != nil {
		return evaluation{}, err
	}
	status, err := h.Store.DayStatus(ctx, userID, date)
	if err != nil {
		return evaluation{}, err
	}

	out, err := h.Evaluator.EvaluateDay(ws, date, entries, proposed)
	if err != nil {
		return evaluation{}, err
	}
	return evaluation{outcome: out, status: status, entries: entries}, nil
}

// observeDay re-evaluates a day after its data changed and feeds the tracker.
// The version is taken before the read so a slower, older read is discarded.
func (h *Handler) observeDay(ctx context.Context, userID generic.UserID, date generic.TimePoint) (DayDTO, error) {
	key := toil.NewDayKey(userID, date)
	version := h.nextVersion(key)

	ev, err := h.evaluate(ctx, userID, date, nil)
	if err != nil {
		return DayDTO{}, err
	}
	metrics.IncDayEvaluation(outcomeLabel(ev.outcome))

	obs := toil.ObservationFor(ev.outcome, ev.status, len(ev.entries), version)
	decision := h.Tracker.Observe(ctx, key, obs)

	day := ev.toDTO(userID, date, decision.State)
	day.Trigger.Triggered = decision.Triggered
	day.Trigger.Coalesced = decision.Coalesced
	if snap, ok := h.Tracker.Snapshot(key); ok {
		day.Trigger.State = string(snap.State)
		day.Trigger.InFlight = snap.InFlight
		day.Trigger.Settled = snap.Settled
		day.Trigger.Failures = snap.Failures
	}

	h.Log.Debug().Str("day", key.String()).Str("state", day.Trigger.State).
		Bool("triggered", decision.Triggered).Bool("stale", decision.Stale).Msg("day observed")
	return day, nil
}

func (h *Handler) nextVersion(key toil.DayKey) uint64 {
	h.versionsMu.Lock()
	defer h.versionsMu.Unlock()
	h.versions[key]++
	return h.versions[key]
}

// forgetVersions drops counters for days before cutoff that the tracker no
// longer holds. A kept record still compares against its counter.
func (h *Handler) forgetVersions(cutoff generic.TimePoint) {
	h.versionsMu.Lock()
	defer h.versionsMu.Unlock()
	for key := range h.versions {
		if _, tracked := h.Tracker.Snapshot(key); key.Date.Before(cutoff) && !tracked {
			delete(h.versions, key)
		}
	}
}

func outcomeLabel(out timesheet.DayOutcome) string {
	switch {
	case !out.HasEntries:
		return "empty"
	case out.IsOverScheduled:
		return "over"
	case out.IsComplete:
		return "complete"
	default:
		return "under"
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case generic.IsConfigurationError(err):
		return http.StatusUnprocessableEntity
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
