/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Schedule CRUD, fortnight totals and day resolution
- Entry logging driving TOIL accrual through the trigger tracker
- Leave suppression and read-only day previews
- Threshold administration
- Error status mapping
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/toil-engine/factory"
	"github.com/warp/toil-engine/generic"
	"github.com/warp/toil-engine/store/sqlite"
	"github.com/warp/toil-engine/toil"
)

const monday = "2025-03-03"

func newTestHandler(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)

	h := NewHandler(store, Options{Fortnight: generic.DefaultFortnight(), Log: zerolog.Nop()})
	t.Cleanup(func() {
		h.Tracker.Wait()
		store.Close()
	})
	return h, NewRouter(h)
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func keyFor(t *testing.T, userID, date string) toil.DayKey {
	t.Helper()
	d, err := generic.ParseDate(date)
	require.NoError(t, err)
	return toil.NewDayKey(generic.UserID(userID), d)
}

// seedAlice stores the 09:00-17:00 organization fortnight and a full-time profile.
func seedAlice(t *testing.T, router http.Handler) {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/schedules",
		factory.StandardFortnightJSON("std", "Standard", "09:00", "17:00"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodPut, "/api/users/alice/profile",
		ProfileDTO{Category: "full_time", FTE: 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

// =============================================================================
// SCHEDULES
// =============================================================================

func TestSchedules_CreateAndFortnight(t *testing.T) {
	// GIVEN: The standard organization fortnight
	_, router := newTestHandler(t)
	seedAlice(t, router)

	// WHEN: Asking for the fortnight total at 0.8 FTE
	rec := do(t, router, http.MethodGet, "/api/schedules/std/fortnight?fte=0.8", nil)

	// THEN: 72.5 x 0.8 = 58
	require.Equal(t, http.StatusOK, rec.Code)
	fn := decode[FortnightDTO](t, rec)
	assert.Equal(t, 58.0, fn.Total)
	assert.Equal(t, 72.5, fn.Unscaled)
	assert.Equal(t, 36.25, fn.Week1Hours)
	assert.Equal(t, 10, fn.WorkingDays)

	list := decode[[]factory.ScheduleJSON](t, do(t, router, http.MethodGet, "/api/schedules", nil))
	assert.Len(t, list, 1)
}

func TestSchedules_RejectsBadInput(t *testing.T) {
	_, router := newTestHandler(t)
	seedAlice(t, router)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"week three", http.MethodPost, "/api/schedules",
			`{"id":"x","name":"x","weeks":{"3":{"monday":{"start":"09:00","end":"17:00"}}}}`, http.StatusBadRequest},
		{"midnight span", http.MethodPost, "/api/schedules",
			`{"id":"x","name":"x","weeks":{"1":{"friday":{"start":"22:00","end":"06:00"}}}}`, http.StatusBadRequest},
		{"missing name", http.MethodPost, "/api/schedules", `{"id":"x"}`, http.StatusBadRequest},
		{"fte above one", http.MethodGet, "/api/schedules/std/fortnight?fte=1.5", nil, http.StatusBadRequest},
		{"fte not a number", http.MethodGet, "/api/schedules/std/fortnight?fte=abc", nil, http.StatusBadRequest},
		{"unknown schedule", http.MethodGet, "/api/schedules/nope", nil, http.StatusNotFound},
		{"bad date", http.MethodGet, "/api/schedules/std/days/03-03-2025", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestSchedules_ResolveDay(t *testing.T) {
	_, router := newTestHandler(t)
	seedAlice(t, router)

	day := decode[ScheduleDayDTO](t, do(t, router, http.MethodGet, "/api/schedules/std/days/"+monday, nil))
	assert.True(t, day.Working)
	assert.Equal(t, "monday", day.Weekday)
	assert.Equal(t, 8.0, day.RawHours)
	assert.Equal(t, 0.75, day.BreakHours)
	assert.Equal(t, 7.25, day.NetHours)

	saturday := decode[ScheduleDayDTO](t, do(t, router, http.MethodGet, "/api/schedules/std/days/2025-03-08", nil))
	assert.False(t, saturday.Working)
	assert.Equal(t, 0.0, saturday.NetHours)
}

// =============================================================================
// ENTRIES AND ACCRUAL
// =============================================================================

func TestEntries_OvertimeAccruesToil(t *testing.T) {
	// GIVEN: Alice on a 7.25 hour Monday
	h, router := newTestHandler(t)
	seedAlice(t, router)

	// WHEN: She logs 9 TOIL-eligible hours
	rec := do(t, router, http.MethodPost, "/api/users/alice/entries", CreateEntryRequest{
		ID: "e1", Date: monday, Hours: 9, IsToilEligible: true,
	})

	// THEN: The day is over target and the accrual was triggered once
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[EntryResponse](t, rec)
	assert.Equal(t, 7.25, resp.Day.Outcome.ScheduledHours)
	assert.Equal(t, 1.75, resp.Day.Outcome.OverHours)
	assert.True(t, resp.Day.Outcome.IsOverScheduled)
	assert.Equal(t, "eligible", resp.Day.Trigger.State)
	assert.True(t, resp.Day.Trigger.Triggered)

	h.Tracker.Wait()
	toilDTO := decode[ToilDTO](t, do(t, router, http.MethodGet, "/api/users/alice/toil", nil))
	assert.Equal(t, 1.75, toilDTO.Balance)
	require.Len(t, toilDTO.Transactions, 1)
	assert.Equal(t, "accrual", toilDTO.Transactions[0].Type)

	// WHEN: Another half hour is logged
	rec = do(t, router, http.MethodPost, "/api/users/alice/entries", CreateEntryRequest{
		ID: "e2", Date: monday, Hours: 0.5,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, decode[EntryResponse](t, rec).Day.Trigger.Triggered, "entry count changed")

	// THEN: An adjustment tops the day up to 2.25
	h.Tracker.Wait()
	toilDTO = decode[ToilDTO](t, do(t, router, http.MethodGet, "/api/users/alice/toil", nil))
	assert.Equal(t, 2.25, toilDTO.Balance)
	require.Len(t, toilDTO.Transactions, 2)
	assert.Equal(t, "adjustment", toilDTO.Transactions[1].Type)
	assert.Equal(t, 2.25, toilDTO.Transactions[1].Balance)

	entries := decode[[]EntryDTO](t, do(t, router, http.MethodGet, "/api/users/alice/entries?date="+monday, nil))
	assert.Len(t, entries, 2)
}

func TestEntries_DeleteReevaluatesDay(t *testing.T) {
	h, router := newTestHandler(t)
	seedAlice(t, router)

	do(t, router, http.MethodPost, "/api/users/alice/entries", CreateEntryRequest{ID: "e1", Date: monday, Hours: 4})

	rec := do(t, router, http.MethodDelete, "/api/users/alice/entries/e1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[EntryResponse](t, rec)
	assert.Equal(t, "e1", resp.Entry.ID)
	assert.Equal(t, "idle", resp.Day.Trigger.State)
	assert.False(t, resp.Day.Outcome.HasEntries)

	rec = do(t, router, http.MethodDelete, "/api/users/alice/entries/e1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	h.Tracker.Wait()
	snap, ok := h.Tracker.Snapshot(keyFor(t, "alice", monday))
	require.True(t, ok)
	assert.Zero(t, snap.Triggers)
}

func TestEntries_RejectsNegativeHours(t *testing.T) {
	_, router := newTestHandler(t)

	rec := do(t, router, http.MethodPost, "/api/users/alice/entries", CreateEntryRequest{Date: monday, Hours: -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/users/alice/entries", CreateEntryRequest{Date: "yesterday", Hours: 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDayStatus_LeaveSuppressesAccrual(t *testing.T) {
	// GIVEN: Alice is on leave Monday
	h, router := newTestHandler(t)
	seedAlice(t, router)

	rec := do(t, router, http.MethodPut, "/api/users/alice/days/"+monday+"/status", DayStatusRequest{LeaveActive: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "suppressed", decode[DayDTO](t, rec).Trigger.State)

	// WHEN: A long day is logged anyway
	rec = do(t, router, http.MethodPost, "/api/users/alice/entries", CreateEntryRequest{
		Date: monday, Hours: 10, IsToilEligible: true,
	})

	// THEN: Nothing is triggered and no TOIL accrues
	resp := decode[EntryResponse](t, rec)
	assert.Equal(t, "suppressed", resp.Day.Trigger.State)
	assert.False(t, resp.Day.Trigger.Triggered)

	h.Tracker.Wait()
	toilDTO := decode[ToilDTO](t, do(t, router, http.MethodGet, "/api/users/alice/toil", nil))
	assert.Zero(t, toilDTO.Balance)
	assert.Empty(t, toilDTO.Transactions)
}

func TestGetDay_PreviewDoesNotTrigger(t *testing.T) {
	h, router := newTestHandler(t)
	seedAlice(t, router)

	// 09:00-17:30 with lunch = 8 net hours against 7.25
	rec := do(t, router, http.MethodGet,
		"/api/users/alice/days/"+monday+"?start=09:00&end=17:30&lunch=true", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	day := decode[DayDTO](t, rec)
	assert.Equal(t, 8.0, day.Outcome.ActualHours)
	assert.Equal(t, 0.75, day.Outcome.OverHours)
	assert.False(t, day.Outcome.HasEntries)
	assert.Equal(t, "idle", day.Trigger.State)
	assert.Zero(t, h.Tracker.Len(), "reading a day never observes it")

	rec = do(t, router, http.MethodGet, "/api/users/alice/days/"+monday+"?start=17:00&end=09:00", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetDay_NoScheduleUsesDailyFallback(t *testing.T) {
	_, router := newTestHandler(t)

	rec := do(t, router, http.MethodGet, "/api/users/zed/days/"+monday, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7.6, decode[DayDTO](t, rec).Outcome.ScheduledHours)
}

// =============================================================================
// PROFILES AND THRESHOLDS
// =============================================================================

func TestProfiles(t *testing.T) {
	_, router := newTestHandler(t)
	seedAlice(t, router)

	p := decode[ProfileDTO](t, do(t, router, http.MethodGet, "/api/users/alice/profile", nil))
	assert.Equal(t, "full_time", p.Category)

	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/api/users/bob/profile", nil).Code)
	assert.Equal(t, http.StatusBadRequest,
		do(t, router, http.MethodPut, "/api/users/bob/profile", ProfileDTO{Category: "contractor", FTE: 1}).Code)
	assert.Equal(t, http.StatusBadRequest,
		do(t, router, http.MethodPut, "/api/users/bob/profile", ProfileDTO{Category: "casual", FTE: 0}).Code)
	assert.Equal(t, http.StatusNotFound,
		do(t, router, http.MethodPut, "/api/users/bob/profile", ProfileDTO{Category: "casual", FTE: 1, ScheduleID: "nope"}).Code)
}

func TestThresholds(t *testing.T) {
	_, router := newTestHandler(t)

	got := decode[ThresholdsDTO](t, do(t, router, http.MethodGet, "/api/toil/thresholds", nil))
	assert.Equal(t, ThresholdsDTO{FullTime: 8, PartTime: 6, Casual: 4}, got)

	rec := do(t, router, http.MethodPut, "/api/toil/thresholds", ThresholdsDTO{FullTime: -1, PartTime: 6, Casual: 4})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPut, "/api/toil/thresholds", ThresholdsDTO{FullTime: 7.5, PartTime: 5, Casual: 3})
	require.Equal(t, http.StatusOK, rec.Code)
	got = decode[ThresholdsDTO](t, do(t, router, http.MethodGet, "/api/toil/thresholds", nil))
	assert.Equal(t, 7.5, got.FullTime)

	rec = do(t, router, http.MethodPost, "/api/toil/thresholds/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got = decode[ThresholdsDTO](t, do(t, router, http.MethodGet, "/api/toil/thresholds", nil))
	assert.Equal(t, 8.0, got.FullTime)
}

func TestHealth(t *testing.T) {
	_, router := newTestHandler(t)
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/healthz", nil).Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{&generic.TimeRangeError{Week: 1, Weekday: generic.Monday, Start: "17:00", End: "09:00"}, http.StatusUnprocessableEntity},
		{fmt.Errorf("load schedule: %w", &generic.WeekNumberError{Week: 3}), http.StatusUnprocessableEntity},
		{generic.ErrScheduleNotFound, http.StatusNotFound},
		{generic.ErrInvalidFTE, http.StatusBadRequest},
		{fmt.Errorf("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, statusFor(tt.err), tt.err.Error())
	}
}

// =============================================================================
// PRUNING
// =============================================================================

func TestPruneScheduler_DropsOldDays(t *testing.T) {
	h, router := newTestHandler(t)
	seedAlice(t, router)
	do(t, router, http.MethodPost, "/api/users/alice/entries", CreateEntryRequest{Date: monday, Hours: 4})
	do(t, router, http.MethodPost, "/api/users/alice/entries", CreateEntryRequest{Date: "2025-04-28", Hours: 4})
	h.Tracker.Wait()
	require.Equal(t, 2, h.Tracker.Len())

	ps := NewPruneScheduler(h)
	ps.now = func() time.Time { return time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC) }

	assert.Equal(t, 1, ps.Prune())
	assert.Equal(t, 1, h.Tracker.Len())

	// A fresh observation of the pruned day starts over
	rec := do(t, router, http.MethodPost, "/api/users/alice/entries", CreateEntryRequest{Date: monday, Hours: 1})
	assert.Equal(t, "pending", decode[EntryResponse](t, rec).Day.Trigger.State)
}

func TestPruneScheduler_StartStop(t *testing.T) {
	h, _ := newTestHandler(t)
	ps := NewPruneScheduler(h)
	ps.CheckInterval = 10 * time.Millisecond

	ps.Start()
	ps.Start()
	ps.Stop()
	ps.Stop()

	ps.Enabled = false
	ps.Start()
	ps.Stop()
}
