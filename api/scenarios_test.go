package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_LoadAccruesExpectedToil(t *testing.T) {
	tests := []struct {
		scenario string
		userID   string
		balance  float64
	}{
		{"standard-overtime", "alice", 2.25}, // 9.5 against 7.25
		{"nine-day-fortnight", "bob", 1.75},  // 10 against 8.25
		{"part-time", "carol", 1.5},          // 7 against 5.5, over the 6 hour threshold
		{"leave-suppressed", "dave", 0},      // on leave
	}

	// One handler for all scenarios: each load resets the previous one
	_, router := newTestHandler(t)

	for _, tt := range tests {
		t.Run(tt.scenario, func(t *testing.T) {
			// GIVEN: A freshly loaded scenario
			rec := do(t, router, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": tt.scenario})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			// THEN: The user's TOIL balance reflects the long day only
			toilDTO := decode[ToilDTO](t, do(t, router, http.MethodGet, "/api/users/"+tt.userID+"/toil", nil))
			assert.Equal(t, tt.balance, toilDTO.Balance)

			current := decode[ScenarioDTO](t, do(t, router, http.MethodGet, "/api/scenarios/current", nil))
			assert.Equal(t, tt.scenario, current.ID)
		})
	}
}

func TestScenarios_LoadReplacesPreviousData(t *testing.T) {
	_, router := newTestHandler(t)

	do(t, router, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "standard-overtime"})
	do(t, router, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "part-time"})

	toilDTO := decode[ToilDTO](t, do(t, router, http.MethodGet, "/api/users/alice/toil", nil))
	assert.Empty(t, toilDTO.Transactions)

	schedules := decode[[]map[string]any](t, do(t, router, http.MethodGet, "/api/schedules", nil))
	assert.Len(t, schedules, 1)
}

func TestScenarios_UnknownAndReset(t *testing.T) {
	_, router := newTestHandler(t)

	rec := do(t, router, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	list := decode[[]ScenarioDTO](t, do(t, router, http.MethodGet, "/api/scenarios", nil))
	assert.Len(t, list, 4)

	do(t, router, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "leave-suppressed"})
	rec = do(t, router, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null\n", do(t, router, http.MethodGet, "/api/scenarios/current", nil).Body.String())
}
