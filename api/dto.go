/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Hours are decimals
  internally and plain JSON numbers on the wire.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Schedules:
    factory.ScheduleJSON (request and response), FortnightDTO, ScheduleDayDTO

  Users:
    ProfileDTO, CreateEntryRequest, EntryDTO, DayStatusRequest

  Days:
    DayDTO (outcome + trigger state), EntryResponse

  TOIL:
    ToilDTO, TransactionDTO, ThresholdsDTO

  Scenarios:
    ScenarioDTO

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/schedule.go: ScheduleJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/toil-engine/generic"
	"github.com/warp/toil-engine/schedule"
	"github.com/warp/toil-engine/timesheet"
	"github.com/warp/toil-engine/toil"
)

// =============================================================================
// SCHEDULES
// =============================================================================

// FortnightDTO is the FTE-scaled fortnight total with its breakdown.
type FortnightDTO struct {
	ScheduleID  string  `json:"scheduleId"`
	FTE         float64 `json:"fte"`
	Week1Hours  float64 `json:"week1Hours"`
	Week2Hours  float64 `json:"week2Hours"`
	Unscaled    float64 `json:"unscaledHours"`
	Total       float64 `json:"totalHours"`
	WorkingDays int     `json:"workingDays"`
	RDODays     int     `json:"rdoDays"`
}

// ScheduleDayDTO is what a schedule says about one calendar date.
type ScheduleDayDTO struct {
	Date       string  `json:"date"`
	Weekday    string  `json:"weekday"`
	Week       int     `json:"week"`
	IsRDO      bool    `json:"isRdo"`
	Working    bool    `json:"working"`
	Start      string  `json:"start,omitempty"`
	End        string  `json:"end,omitempty"`
	Lunch      bool    `json:"lunch"`
	Smoko      bool    `json:"smoko"`
	RawHours   float64 `json:"rawHours"`
	BreakHours float64 `json:"breakHours"`
	NetHours   float64 `json:"netHours"`
}

// =============================================================================
// USERS
// =============================================================================

type ProfileDTO struct {
	UserID     string  `json:"userId"`
	Category   string  `json:"category"`
	FTE        float64 `json:"fte"`
	ScheduleID string  `json:"scheduleId,omitempty"`
}

// CreateEntryRequest logs work against a date. ID is generated when empty.
type CreateEntryRequest struct {
	ID             string  `json:"id,omitempty"`
	Date           string  `json:"date"`
	Hours          float64 `json:"hours"`
	Description    string  `json:"description,omitempty"`
	Category       string  `json:"category,omitempty"`
	IsOvertime     bool    `json:"isOvertime"`
	IsToilEligible bool    `json:"isToilEligible"`
}

type EntryDTO struct {
	ID             string  `json:"id"`
	UserID         string  `json:"userId"`
	Date           string  `json:"date"`
	Hours          float64 `json:"hours"`
	Description    string  `json:"description,omitempty"`
	Category       string  `json:"category,omitempty"`
	IsOvertime     bool    `json:"isOvertime"`
	IsToilEligible bool    `json:"isToilEligible"`
	CreatedAt      string  `json:"createdAt"`
}

type DayStatusRequest struct {
	LeaveActive bool `json:"leaveActive"`
	ToilActive  bool `json:"toilActive"`
}

// =============================================================================
// DAYS
// =============================================================================

// OutcomeDTO mirrors timesheet.DayOutcome.
type OutcomeDTO struct {
	ScheduledHours  float64 `json:"scheduledHours"`
	ActualHours     float64 `json:"actualHours"`
	BreakAdjustment float64 `json:"breakAdjustment"`
	RemainingHours  float64 `json:"remainingHours"`
	OverHours       float64 `json:"overHours"`
	Variance        float64 `json:"variance"`
	PercentComplete float64 `json:"percentComplete"`
	IsComplete      bool    `json:"isComplete"`
	IsOverScheduled bool    `json:"isOverScheduled"`
	IsUndertime     bool    `json:"isUndertime"`
	HasEntries      bool    `json:"hasEntries"`
}

// TriggerDTO is the TOIL trigger state of a user-day.
type TriggerDTO struct {
	State     string `json:"state"`
	Triggered bool   `json:"triggered,omitempty"`
	Coalesced bool   `json:"coalesced,omitempty"`
	InFlight  bool   `json:"inFlight"`
	Settled   bool   `json:"settled"`
	Failures  int    `json:"failures"`
}

type DayDTO struct {
	UserID      string     `json:"userId"`
	Date        string     `json:"date"`
	Outcome     OutcomeDTO `json:"outcome"`
	LeaveActive bool       `json:"leaveActive"`
	ToilActive  bool       `json:"toilActive"`
	EntryCount  int        `json:"entryCount"`
	Trigger     TriggerDTO `json:"trigger"`
}

type EntryResponse struct {
	Entry EntryDTO `json:"entry"`
	Day   DayDTO   `json:"day"`
}

// =============================================================================
// TOIL
// =============================================================================

type TransactionDTO struct {
	ID          string  `json:"id"`
	UserID      string  `json:"userId"`
	EffectiveAt string  `json:"effectiveAt"`
	Delta       float64 `json:"delta"`
	Unit        string  `json:"unit"`
	Type        string  `json:"type"`
	Reason      string  `json:"reason,omitempty"`
	Balance     float64 `json:"balance"` // running balance after this transaction
}

type ToilDTO struct {
	UserID       string           `json:"userId"`
	AsOf         string           `json:"asOf"`
	Balance      float64          `json:"balance"`
	Transactions []TransactionDTO `json:"transactions"`
}

// ThresholdsDTO carries the minimum actual hours per employment category.
type ThresholdsDTO struct {
	FullTime float64 `json:"fullTime"`
	PartTime float64 `json:"partTime"`
	Casual   float64 `json:"casual"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	UserID      string `json:"userId"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func hours(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func toFortnightDTO(id schedule.ScheduleID, s schedule.FortnightSummary) FortnightDTO {
	return FortnightDTO{
		ScheduleID:  string(id),
		FTE:         hours(s.FTE),
		Week1Hours:  hours(s.WeekHours[1]),
		Week2Hours:  hours(s.WeekHours[2]),
		Unscaled:    hours(s.Unscaled),
		Total:       hours(s.Total),
		WorkingDays: s.WorkingDays,
		RDODays:     s.RDODays,
	}
}

func toScheduleDayDTO(res schedule.Resolution, b schedule.Breakdown) ScheduleDayDTO {
	dto := ScheduleDayDTO{
		Date:       res.Date.String(),
		Weekday:    string(res.Weekday),
		Week:       res.Week,
		IsRDO:      res.IsRDO,
		Working:    res.Working(),
		RawHours:   hours(b.Raw),
		BreakHours: hours(b.Breaks),
		NetHours:   hours(b.Net),
	}
	if res.Day != nil {
		dto.Start = res.Day.Start
		dto.End = res.Day.End
		dto.Lunch = res.Day.Breaks.Lunch
		dto.Smoko = res.Day.Breaks.Smoko
	}
	return dto
}

func toProfileDTO(p toil.Profile) ProfileDTO {
	return ProfileDTO{
		UserID:     string(p.UserID),
		Category:   string(p.Category),
		FTE:        hours(p.FTE),
		ScheduleID: string(p.ScheduleID),
	}
}

func toEntryDTO(e timesheet.TimeEntry) EntryDTO {
	return EntryDTO{
		ID:             string(e.ID),
		UserID:         string(e.UserID),
		Date:           e.Date.String(),
		Hours:          hours(e.Hours),
		Description:    e.Description,
		Category:       e.Category,
		IsOvertime:     e.IsOvertime,
		IsToilEligible: e.IsToilEligible,
		CreatedAt:      e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toEntryDTOs(entries []timesheet.TimeEntry) []EntryDTO {
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	return dtos
}

func toOutcomeDTO(out timesheet.DayOutcome) OutcomeDTO {
	return OutcomeDTO{
		ScheduledHours:  hours(out.ScheduledHours),
		ActualHours:     hours(out.ActualHours),
		BreakAdjustment: hours(out.BreakAdjustment),
		RemainingHours:  hours(out.RemainingHours),
		OverHours:       hours(out.OverHours),
		Variance:        hours(out.Variance),
		PercentComplete: hours(out.PercentComplete),
		IsComplete:      out.IsComplete,
		IsOverScheduled: out.IsOverScheduled,
		IsUndertime:     out.IsUndertime,
		HasEntries:      out.HasEntries,
	}
}

// toTransactionDTOs expects txs in ledger order and fills the running balance.
func toTransactionDTOs(txs []generic.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	running := decimal.Zero
	for i, tx := range txs {
		running = running.Add(tx.Delta.Value)
		dtos[i] = TransactionDTO{
			ID:          string(tx.ID),
			UserID:      string(tx.UserID),
			EffectiveAt: tx.EffectiveAt.String(),
			Delta:       hours(tx.Delta.Value),
			Unit:        string(tx.Delta.Unit),
			Type:        string(tx.Type),
			Reason:      tx.Reason,
			Balance:     hours(running),
		}
	}
	return dtos
}

func toThresholdsDTO(t toil.Thresholds) ThresholdsDTO {
	return ThresholdsDTO{FullTime: t.FullTime, PartTime: t.PartTime, Casual: t.Casual}
}
